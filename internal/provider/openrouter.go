package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/neoclaw-ai/remindclaw/internal/config"
)

const openRouterEndpoint = "https://openrouter.ai/api/v1/chat/completions"

// maxErrorBody caps how much of a failed response ends up in the error.
const maxErrorBody = 512

// openRouterOracle answers through OpenRouter's OpenAI-compatible chat
// completions endpoint.
type openRouterOracle struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	defaults limits
}

func newOpenRouterOracle(cfg config.LLMProviderConfig, endpoint string, client *http.Client) (*openRouterOracle, error) {
	if err := requireCredentials("openrouter", cfg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(endpoint) == "" {
		endpoint = openRouterEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &openRouterOracle{
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		endpoint: endpoint,
		client:   client,
		defaults: limits{maxTokens: cfg.MaxTokens},
	}, nil
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string              `json:"model"`
	Messages    []completionMessage `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature *float64            `json:"temperature,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message completionMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Chat posts req as one completion and returns the first choice.
func (o *openRouterOracle) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	messages := make([]completionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, completionMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		messages = append(messages, completionMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(completionRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   o.defaults.resolve(req.MaxTokens),
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("openrouter: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openrouter: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("openrouter: status %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var decoded completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("openrouter: decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("openrouter: response has no choices")
	}

	return &ChatResponse{
		Content: decoded.Choices[0].Message.Content,
		Usage: TokenUsage{
			InputTokens:  decoded.Usage.PromptTokens,
			OutputTokens: decoded.Usage.CompletionTokens,
			TotalTokens:  decoded.Usage.TotalTokens,
		},
	}, nil
}
