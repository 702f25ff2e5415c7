package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openAICompatModel adapts an OpenAI-compatible chat completions endpoint (Groq by default)
// to eino's ToolCallingChatModel. It holds no conversation state.
type openAICompatModel struct {
	client      openai.Client
	model       string
	temperature float32
	maxTokens   *int
	tools       []openai.ChatCompletionToolParam
}

var _ model.ToolCallingChatModel = (*openAICompatModel)(nil)

func newOpenAICompatModel(baseURL, apiKey, modelName string, temperature float32, maxTokens *int) *openAICompatModel {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	)
	return &openAICompatModel{
		client:      client,
		model:       modelName,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// WithTools returns a copy bound to the given tool definitions.
func (m *openAICompatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	converted, err := toOpenAITools(tools)
	if err != nil {
		return nil, err
	}
	clone := *m
	clone.tools = converted
	return &clone, nil
}

// Generate sends one chat completion request.
func (m *openAICompatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Temperature: &m.temperature,
		Model:       &m.model,
		MaxTokens:   m.maxTokens,
	}, opts...)

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(*options.Model),
		Messages: toOpenAIMessages(input),
	}
	if options.Temperature != nil {
		params.Temperature = openai.Float(float64(*options.Temperature))
	}
	if options.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*options.MaxTokens))
	}

	tools := m.tools
	if len(options.Tools) > 0 {
		converted, err := toOpenAITools(options.Tools)
		if err != nil {
			return nil, err
		}
		tools = converted
	}
	if len(tools) > 0 {
		params.Tools = tools
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	return fromOpenAICompletion(resp)
}

// Stream wraps Generate; the agent only needs the final message.
func (m *openAICompatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func toOpenAIMessages(input []*schema.Message) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(input))
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case schema.User:
			messages = append(messages, openai.UserMessage(msg.Content))
		case schema.Assistant:
			messages = append(messages, toOpenAIAssistantMessage(msg))
		case schema.Tool:
			messages = append(messages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}
	return messages
}

func toOpenAIAssistantMessage(msg *schema.Message) openai.ChatCompletionMessageParamUnion {
	if len(msg.ToolCalls) == 0 {
		return openai.AssistantMessage(msg.Content)
	}

	calls := make([]openai.ChatCompletionMessageToolCallParam, 0, len(msg.ToolCalls))
	for _, call := range msg.ToolCalls {
		calls = append(calls, openai.ChatCompletionMessageToolCallParam{
			ID: call.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}

	assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
	if msg.Content != "" {
		assistant.Content.OfString = openai.String(msg.Content)
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

func toOpenAITools(tools []*schema.ToolInfo) ([]openai.ChatCompletionToolParam, error) {
	converted := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, info := range tools {
		if info == nil {
			continue
		}

		params := openai.FunctionParameters{"type": "object", "properties": map[string]any{}}
		if info.ParamsOneOf != nil {
			js, err := info.ParamsOneOf.ToJSONSchema()
			if err != nil {
				return nil, fmt.Errorf("convert parameters of tool %s: %w", info.Name, err)
			}
			raw, err := json.Marshal(js)
			if err != nil {
				return nil, fmt.Errorf("marshal parameters of tool %s: %w", info.Name, err)
			}
			params = openai.FunctionParameters{}
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, fmt.Errorf("unmarshal parameters of tool %s: %w", info.Name, err)
			}
		}

		converted = append(converted, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        info.Name,
				Description: openai.String(info.Desc),
				Parameters:  params,
			},
		})
	}
	return converted, nil
}

func fromOpenAICompletion(resp *openai.ChatCompletion) (*schema.Message, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	choice := resp.Choices[0]
	msg := &schema.Message{
		Role:    schema.Assistant,
		Content: choice.Message.Content,
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: string(choice.FinishReason),
			Usage: &schema.TokenUsage{
				PromptTokens:     int(resp.Usage.PromptTokens),
				CompletionTokens: int(resp.Usage.CompletionTokens),
				TotalTokens:      int(resp.Usage.TotalTokens),
			},
		},
	}

	for i, call := range choice.Message.ToolCalls {
		index := i
		msg.ToolCalls = append(msg.ToolCalls, schema.ToolCall{
			Index: &index,
			ID:    call.ID,
			Type:  "function",
			Function: schema.FunctionCall{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}
	return msg, nil
}
