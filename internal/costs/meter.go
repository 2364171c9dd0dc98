package costs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neoclaw-ai/remindclaw/internal/logging"
	"github.com/neoclaw-ai/remindclaw/internal/provider"
)

// ErrLimitReached reports that a spend limit blocks further oracle calls.
var ErrLimitReached = errors.New("spend limit reached")

// Limits caps oracle spend in USD. Zero disables a limit.
type Limits struct {
	DailyUSD   float64
	MonthlyUSD float64
}

// Meter wraps a provider, refusing calls over the limits and recording the
// usage of every answered call.
type Meter struct {
	next     provider.Provider
	tracker  *Tracker
	provider string
	model    string
	limits   Limits
	now      func() time.Time
}

var _ provider.Provider = (*Meter)(nil)

// NewMeter creates a metering provider around next.
func NewMeter(next provider.Provider, tracker *Tracker, providerName, model string, limits Limits) *Meter {
	return &Meter{
		next:     next,
		tracker:  tracker,
		provider: providerName,
		model:    model,
		limits:   limits,
		now:      time.Now,
	}
}

// Chat implements provider.Provider.
func (m *Meter) Chat(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	if err := m.checkLimits(ctx); err != nil {
		return nil, err
	}

	resp, err := m.next.Chat(ctx, req)
	if err != nil {
		return nil, err
	}

	usage := resp.Usage
	cost, _ := EstimateUSD(m.provider, m.model, usage.InputTokens, usage.OutputTokens)
	if err := m.tracker.Append(ctx, Record{
		Timestamp:    m.now(),
		Provider:     m.provider,
		Model:        m.model,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		TotalTokens:  usage.TotalTokens,
		CostUSD:      cost,
	}); err != nil {
		logging.Logger().Warn("failed to record oracle usage", "err", err)
	}
	return resp, nil
}

func (m *Meter) checkLimits(ctx context.Context) error {
	if m.limits.DailyUSD <= 0 && m.limits.MonthlyUSD <= 0 {
		return nil
	}
	spend, err := m.tracker.Spend(ctx, m.now())
	if err != nil {
		return fmt.Errorf("read spend: %w", err)
	}
	if m.limits.DailyUSD > 0 && spend.TodayUSD >= m.limits.DailyUSD {
		return fmt.Errorf("%w: daily limit $%.2f (spent $%.2f)", ErrLimitReached, m.limits.DailyUSD, spend.TodayUSD)
	}
	if m.limits.MonthlyUSD > 0 && spend.MonthUSD >= m.limits.MonthlyUSD {
		return fmt.Errorf("%w: monthly limit $%.2f (spent $%.2f)", ErrLimitReached, m.limits.MonthlyUSD, spend.MonthUSD)
	}
	return nil
}
