package provider

import (
	"fmt"
	"strings"

	"github.com/neoclaw-ai/remindclaw/internal/config"
)

// fallbackMaxTokens applies when neither the request nor the profile sets a
// token limit.
const fallbackMaxTokens = 1024

// limits holds the per-profile request defaults.
type limits struct {
	maxTokens int
}

// resolve picks the request's own limit, then the profile's, then the fallback.
func (l limits) resolve(requested int) int {
	switch {
	case requested > 0:
		return requested
	case l.maxTokens > 0:
		return l.maxTokens
	default:
		return fallbackMaxTokens
	}
}

func requireCredentials(name string, cfg config.LLMProviderConfig) error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return fmt.Errorf("%s api key is required", name)
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return fmt.Errorf("%s model is required", name)
	}
	return nil
}

// NewProviderFromConfig builds the oracle for the selected LLM profile.
func NewProviderFromConfig(cfg config.LLMProviderConfig) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "anthropic":
		o, err := newAnthropicOracle(cfg)
		if err != nil {
			return nil, err
		}
		return o, nil
	case "openrouter":
		o, err := newOpenRouterOracle(cfg, "", nil)
		if err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}
