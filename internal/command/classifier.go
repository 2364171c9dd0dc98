package command

import (
	"context"
	"fmt"

	"github.com/neoclaw-ai/remindclaw/internal/logging"
	"github.com/neoclaw-ai/remindclaw/internal/provider"
)

// Classifier asks the oracle what a message wants and splits scheduling
// requests into Fields. Oracle failures surface as
// provider.ErrOracleUnavailable and are never defaulted.
type Classifier struct {
	oracle provider.Provider
}

// NewClassifier creates a classifier backed by oracle.
func NewClassifier(oracle provider.Provider) *Classifier {
	return &Classifier{oracle: oracle}
}

// Classify returns the command the message asks for.
func (c *Classifier) Classify(ctx context.Context, message string) (Command, error) {
	answer, err := provider.Judge(ctx, c.oracle, judgeCommandPrompt, message)
	if err != nil {
		return Other, fmt.Errorf("classify message: %w", err)
	}
	cmd := ParseCommand(answer)
	logging.Logger().Debug("message classified", "answer", answer, "command", cmd.String())
	return cmd, nil
}

// OneTimeTrigger splits a one-time scheduling request.
func (c *Classifier) OneTimeTrigger(ctx context.Context, message string) (Fields, error) {
	answer, err := provider.Judge(ctx, c.oracle, splitOneTimePrompt, message)
	if err != nil {
		return Fields{}, fmt.Errorf("split one-time trigger: %w", err)
	}
	return ExtractOneTime(answer), nil
}

// DailyTrigger splits a daily scheduling request.
func (c *Classifier) DailyTrigger(ctx context.Context, message string) (Fields, error) {
	answer, err := provider.Judge(ctx, c.oracle, splitDailyPrompt, message)
	if err != nil {
		return Fields{}, fmt.Errorf("split daily trigger: %w", err)
	}
	return ExtractDaily(answer), nil
}
