package ai

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"github.com/cockroachdb/errors"

	"github.com/zhouzirui/research-desk/backend/internal/config"
	"github.com/zhouzirui/research-desk/backend/internal/model/assistant"
	"github.com/zhouzirui/research-desk/backend/internal/model/chat"
	"github.com/zhouzirui/research-desk/backend/internal/service/search"
	"github.com/zhouzirui/research-desk/backend/pkg/logging"
)

// ErrEmptyReply is returned when the agent finishes without any text.
var ErrEmptyReply = errors.New("agent returned an empty reply")

// Request carries everything one reasoning call needs.
type Request struct {
	Credential string
	Creativity float64
	Transcript []chat.Message
}

// Service runs the tool-augmented reasoning call. It keeps no per-session state:
// every Run builds a new model bound to the request credential.
type Service struct {
	cfg      config.LLMConfig
	tools    []search.Tool
	newModel ModelFactory
	template prompt.ChatTemplate
	system   string
	logger   *log.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithModelFactory replaces the provider selected from configuration.
func WithModelFactory(factory ModelFactory) Option {
	return func(s *Service) {
		s.newModel = factory
	}
}

// NewService creates a new reasoning service.
func NewService(cfg config.LLMConfig, profile assistant.Profile, tools []search.Tool, opts ...Option) (*Service, error) {
	svc := &Service{
		cfg:    cfg,
		tools:  tools,
		system: BuildSystemPrompt(profile, tools),
		template: prompt.FromMessages(
			schema.FString,
			schema.SystemMessage("{system}"),
			schema.MessagesPlaceholder("history", false),
		),
		logger: logging.Named("ai"),
	}
	for _, opt := range opts {
		opt(svc)
	}

	if svc.newModel == nil {
		factory, err := NewModelFactory(cfg)
		if err != nil {
			return nil, err
		}
		svc.newModel = factory
	}
	if svc.cfg.MaxStep <= 0 {
		svc.cfg.MaxStep = 12
	}
	return svc, nil
}

// Model returns the configured model identifier.
func (s *Service) Model() string {
	return s.cfg.Model
}

// Run executes one blocking reasoning call and returns the final answer text.
func (s *Service) Run(ctx context.Context, req Request) (string, error) {
	chatModel, err := s.newModel(ctx, req.Credential, req.Creativity)
	if err != nil {
		return "", errors.Wrap(err, "create chat model")
	}

	agent, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: chatModel,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: wrapTools(s.tools),
		},
		MaxStep: s.cfg.MaxStep,
	})
	if err != nil {
		return "", errors.Wrap(err, "build agent")
	}

	input, err := s.buildInput(ctx, req.Transcript)
	if err != nil {
		return "", err
	}

	start := time.Now()
	reply, err := agent.Generate(ctx, input)
	if err != nil {
		return "", errors.Wrap(err, "agent run")
	}
	if reply == nil || strings.TrimSpace(reply.Content) == "" {
		return "", ErrEmptyReply
	}

	s.logger.Info("generated reply",
		"provider", s.cfg.Provider,
		"model", s.cfg.Model,
		"history", len(req.Transcript),
		"length", len(reply.Content),
		"elapsed", time.Since(start),
	)
	return strings.TrimSpace(reply.Content), nil
}

func (s *Service) buildInput(ctx context.Context, transcript []chat.Message) ([]*schema.Message, error) {
	messages, err := s.template.Format(ctx, map[string]any{
		"system":  s.system,
		"history": buildHistoryMessages(transcript),
	})
	if err != nil {
		return nil, errors.Wrap(err, "format prompt")
	}
	return messages, nil
}

func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
