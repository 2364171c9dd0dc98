package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/neoclaw-ai/remindclaw/internal/config"
)

// anthropicOracle answers through the Anthropic Messages API.
type anthropicOracle struct {
	client   anthropic.Client
	model    anthropic.Model
	defaults limits
}

// newAnthropicOracle builds the client from cfg. Extra request options are
// appended after the configured ones, so tests can point it at a local server.
func newAnthropicOracle(cfg config.LLMProviderConfig, extra ...option.RequestOption) (*anthropicOracle, error) {
	if err := requireCredentials("anthropic", cfg); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}
	opts = append(opts, extra...)

	return &anthropicOracle{
		client:   anthropic.NewClient(opts...),
		model:    anthropic.Model(cfg.Model),
		defaults: limits{maxTokens: cfg.MaxTokens},
	}, nil
}

// Chat sends req as one Messages call and joins the returned text blocks.
func (o *anthropicOracle) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	turns, err := anthropicTurns(req.Messages)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     o.model,
		MaxTokens: int64(o.defaults.resolve(req.MaxTokens)),
		Messages:  turns,
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	// The instruction prompts are fixed per purpose, so they cache well.
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{
			Text:         req.SystemPrompt,
			CacheControl: anthropic.NewCacheControlEphemeralParam(),
		}}
	}

	msg, err := o.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		tb, ok := block.AsAny().(anthropic.TextBlock)
		if !ok || tb.Text == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteByte('\n')
		}
		text.WriteString(tb.Text)
	}

	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return &ChatResponse{
		Content: text.String(),
		Usage:   TokenUsage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
	}, nil
}

func anthropicTurns(messages []ChatMessage) ([]anthropic.MessageParam, error) {
	turns := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case RoleUser:
			turns = append(turns, anthropic.NewUserMessage(block))
		case RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(block))
		default:
			return nil, fmt.Errorf("anthropic: unsupported message role %q", m.Role)
		}
	}
	return turns, nil
}
