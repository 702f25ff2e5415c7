package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/research-desk/backend/internal/config"
)

// ModelFactory builds a fresh chat model bound to one turn's credential and creativity.
type ModelFactory func(ctx context.Context, credential string, creativity float64) (model.ToolCallingChatModel, error)

// NewModelFactory selects the provider named in the configuration.
func NewModelFactory(cfg config.LLMConfig) (ModelFactory, error) {
	switch cfg.Provider {
	case config.ProviderGroq, "":
		return func(_ context.Context, credential string, creativity float64) (model.ToolCallingChatModel, error) {
			return newOpenAICompatModel(cfg.BaseURL, credential, cfg.Model, float32(creativity), cfg.MaxTokens), nil
		}, nil
	case config.ProviderArk:
		return func(ctx context.Context, credential string, creativity float64) (model.ToolCallingChatModel, error) {
			return newArkModel(ctx, cfg, credential, creativity)
		}, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func newArkModel(ctx context.Context, cfg config.LLMConfig, credential string, creativity float64) (model.ToolCallingChatModel, error) {
	temperature := float32(creativity)

	var maxTokens *int
	if cfg.MaxTokens != nil {
		val := *cfg.MaxTokens
		maxTokens = &val
	}

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     cfg.BaseURL,
		Region:      cfg.Region,
		APIKey:      credential,
		Model:       cfg.Model,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ark chat model: %w", err)
	}
	return &arkModel{ChatModel: chatModel}, nil
}

// arkModel adds WithTools on top of BindTools. Each turn builds its own
// instance, so binding in place is safe.
type arkModel struct {
	*ark.ChatModel
}

var _ model.ToolCallingChatModel = (*arkModel)(nil)

func (m *arkModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if err := m.BindTools(tools); err != nil {
		return nil, fmt.Errorf("failed to bind ark tools: %w", err)
	}
	return m, nil
}
