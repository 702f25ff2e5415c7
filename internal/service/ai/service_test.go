package ai

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/research-desk/backend/internal/config"
	"github.com/zhouzirui/research-desk/backend/internal/model/assistant"
	"github.com/zhouzirui/research-desk/backend/internal/model/chat"
	"github.com/zhouzirui/research-desk/backend/internal/service/search"
)

type scriptedModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	err     error
	inputs  [][]*schema.Message
	tools   []*schema.ToolInfo
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inputs = append(m.inputs, input)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.replies) == 0 {
		return schema.AssistantMessage("", nil), nil
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = tools
	return m, nil
}

type stubTool struct {
	kind    search.Kind
	answer  string
	err     error
	queries []string
}

func (s *stubTool) Kind() search.Kind   { return s.kind }
func (s *stubTool) Name() string        { return s.kind.String() }
func (s *stubTool) Description() string { return "stub " + s.kind.String() }

func (s *stubTool) Query(_ context.Context, text string) (string, error) {
	s.queries = append(s.queries, text)
	return s.answer, s.err
}

func toolCallReply(name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       "call_1",
			Type:     "function",
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

func newTestService(t *testing.T, m *scriptedModel, tools []search.Tool, gotCredential *string, gotCreativity *float64) *Service {
	t.Helper()
	svc, err := NewService(config.LLMConfig{Provider: config.ProviderGroq, Model: "gemma2-9b-it", MaxStep: 6}, assistant.Default(), tools,
		WithModelFactory(func(_ context.Context, credential string, creativity float64) (model.ToolCallingChatModel, error) {
			if gotCredential != nil {
				*gotCredential = credential
			}
			if gotCreativity != nil {
				*gotCreativity = creativity
			}
			return m, nil
		}))
	require.NoError(t, err)
	return svc
}

func transcriptWith(question string) []chat.Message {
	return []chat.Message{
		chat.AssistantMessage(assistant.Default().Greeting),
		chat.UserMessage(question),
	}
}

func TestRunCallsToolThenAnswers(t *testing.T) {
	wiki := &stubTool{kind: search.WikipediaLookup, answer: "Page: Quantum entanglement\nSummary: ..."}
	tools := []search.Tool{&stubTool{kind: search.WebSearch}, &stubTool{kind: search.ArxivLookup}, wiki}
	m := &scriptedModel{replies: []*schema.Message{
		toolCallReply("wikipedia", `{"query":"quantum entanglement"}`),
		schema.AssistantMessage("Quantum entanglement is…", nil),
	}}

	var credential string
	var creativity float64
	svc := newTestService(t, m, tools, &credential, &creativity)

	var steps []Step
	ctx := WithStepObserver(context.Background(), func(s Step) { steps = append(steps, s) })

	reply, err := svc.Run(ctx, Request{Credential: "k1", Creativity: 0.3, Transcript: transcriptWith("What is quantum entanglement?")})
	require.NoError(t, err)

	assert.Equal(t, "Quantum entanglement is…", reply)
	assert.Equal(t, "k1", credential)
	assert.InDelta(t, 0.3, creativity, 1e-9)
	assert.Equal(t, []string{"quantum entanglement"}, wiki.queries)

	require.Len(t, steps, 1)
	assert.Equal(t, "wikipedia", steps[0].Tool)
	assert.Equal(t, "quantum entanglement", steps[0].Input)

	require.Len(t, m.tools, 3)
	assert.Equal(t, "web_search", m.tools[0].Name)

	first := m.inputs[0]
	require.Len(t, first, 3)
	assert.Equal(t, schema.System, first[0].Role)
	assert.Equal(t, schema.Assistant, first[1].Role)
	assert.Equal(t, assistant.Default().Greeting, first[1].Content)
	assert.Equal(t, schema.User, first[2].Role)
	assert.Equal(t, "What is quantum entanglement?", first[2].Content)
}

func TestRunFeedsToolErrorsBackToModel(t *testing.T) {
	arxiv := &stubTool{kind: search.ArxivLookup, err: errors.New("HTTP 503 from export.arxiv.org")}
	m := &scriptedModel{replies: []*schema.Message{
		toolCallReply("arxiv", `"markov bases"`),
		schema.AssistantMessage("I could not reach arxiv.", nil),
	}}
	svc := newTestService(t, m, []search.Tool{arxiv}, nil, nil)

	var steps []Step
	ctx := WithStepObserver(context.Background(), func(s Step) { steps = append(steps, s) })

	reply, err := svc.Run(ctx, Request{Credential: "k1", Transcript: transcriptWith("papers on markov bases")})
	require.NoError(t, err)
	assert.Equal(t, "I could not reach arxiv.", reply)
	assert.Equal(t, []string{"markov bases"}, arxiv.queries)
	require.Len(t, steps, 1)
	assert.Contains(t, steps[0].Error, "503")

	last := m.inputs[1][len(m.inputs[1])-1]
	assert.Equal(t, schema.Tool, last.Role)
	assert.Contains(t, last.Content, "arxiv lookup failed")
}

func TestRunPropagatesModelFailure(t *testing.T) {
	m := &scriptedModel{err: errors.New("401 Invalid API Key")}
	svc := newTestService(t, m, nil, nil, nil)

	_, err := svc.Run(context.Background(), Request{Credential: "bad", Transcript: transcriptWith("hi")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API Key")
}

func TestRunRejectsEmptyReply(t *testing.T) {
	m := &scriptedModel{replies: []*schema.Message{schema.AssistantMessage("   ", nil)}}
	svc := newTestService(t, m, nil, nil, nil)

	_, err := svc.Run(context.Background(), Request{Credential: "k1", Transcript: transcriptWith("hi")})
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestRunFactoryErrorIsWrapped(t *testing.T) {
	svc, err := NewService(config.LLMConfig{Provider: config.ProviderGroq}, assistant.Default(), nil,
		WithModelFactory(func(context.Context, string, float64) (model.ToolCallingChatModel, error) {
			return nil, errors.New("boom")
		}))
	require.NoError(t, err)

	_, err = svc.Run(context.Background(), Request{Credential: "k1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestNewServiceRejectsUnknownProvider(t *testing.T) {
	_, err := NewService(config.LLMConfig{Provider: "telepathy"}, assistant.Default(), nil)
	assert.Error(t, err)
}

func TestBuildSystemPromptListsTools(t *testing.T) {
	prompt := BuildSystemPrompt(assistant.Default(), []search.Tool{&stubTool{kind: search.ArxivLookup}})

	assert.Contains(t, prompt, "Smart Research Assistant")
	assert.Contains(t, prompt, "- arxiv: stub arxiv")
	assert.Contains(t, prompt, "Rules:")
}

func TestParseQueryArgs(t *testing.T) {
	assert.Equal(t, "a", parseQueryArgs(`{"query":"a"}`))
	assert.Equal(t, "b", parseQueryArgs(`"b"`))
	assert.Equal(t, "c d", parseQueryArgs(` c d `))
}
