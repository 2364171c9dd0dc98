// Package provider talks to the language model oracle that classifies,
// splits and answers chat messages.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrOracleUnavailable reports that the oracle could not produce an answer.
// Callers never substitute a default for it.
var ErrOracleUnavailable = errors.New("oracle unavailable")

// Provider sends chat requests to an LLM backend.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Role is the author role for a chat message.
type Role string

const (
	// RoleUser is a user-authored message.
	RoleUser Role = "user"
	// RoleAssistant is an assistant-authored message.
	RoleAssistant Role = "assistant"
)

// ChatMessage is a single message in model conversation history.
type ChatMessage struct {
	Role    Role
	Content string
}

// TokenUsage reports provider token accounting for one response.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// ChatRequest is the provider-agnostic request payload.
type ChatRequest struct {
	SystemPrompt string
	Messages     []ChatMessage
	MaxTokens    int
	// Temperature overrides the backend's sampling temperature when set.
	Temperature *float64
}

// ChatResponse is the provider-agnostic response payload.
type ChatResponse struct {
	Content string
	Usage   TokenUsage
}

// judgeMaxTokens bounds answers that are parsed rather than shown.
const judgeMaxTokens = 256

// Complete sends a single-turn prompt and returns the trimmed text answer.
// Transport failures and empty answers are wrapped in ErrOracleUnavailable.
func Complete(ctx context.Context, p Provider, systemPrompt, userText string) (string, error) {
	return ask(ctx, p, singleTurn(systemPrompt, userText))
}

// Judge is Complete at temperature zero with a short token budget. It serves
// the classification and splitting prompts, whose answers are parsed.
func Judge(ctx context.Context, p Provider, systemPrompt, userText string) (string, error) {
	req := singleTurn(systemPrompt, userText)
	zero := 0.0
	req.Temperature = &zero
	req.MaxTokens = judgeMaxTokens
	return ask(ctx, p, req)
}

func singleTurn(systemPrompt, userText string) ChatRequest {
	return ChatRequest{
		SystemPrompt: systemPrompt,
		Messages:     []ChatMessage{{Role: RoleUser, Content: userText}},
	}
}

func ask(ctx context.Context, p Provider, req ChatRequest) (string, error) {
	if p == nil {
		return "", fmt.Errorf("%w: no provider configured", ErrOracleUnavailable)
	}
	resp, err := p.Chat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("%w: empty response", ErrOracleUnavailable)
	}
	return strings.TrimSpace(resp.Content), nil
}
