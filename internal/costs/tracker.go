// Package costs meters oracle token usage into a JSONL log and enforces
// optional daily and monthly spend limits.
package costs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is one persisted oracle call.
type Record struct {
	Timestamp    time.Time `json:"timestamp"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
	CostUSD      float64   `json:"cost_usd"`
}

// Spend holds aggregated totals for the current day and month.
type Spend struct {
	TodayUSD   float64
	MonthUSD   float64
	TodayCalls int
	MonthCalls int
}

// Tracker appends usage records and sums them per calendar period.
type Tracker struct {
	path string
	loc  *time.Location
	mu   sync.Mutex
}

// New returns a Tracker over the JSONL file at path. Days and months are
// counted in loc.
func New(path string, loc *time.Location) *Tracker {
	if loc == nil {
		loc = time.Local
	}
	return &Tracker{path: path, loc: loc}
}

// Append writes one usage record.
func (t *Tracker) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.path == "" {
		return errors.New("usage path is required")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal usage record: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("create usage directory: %w", err)
	}
	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open usage file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("append usage record: %w", err)
	}
	return nil
}

// Spend sums the records falling on now's day and month. Malformed lines are
// skipped.
func (t *Tracker) Spend(ctx context.Context, now time.Time) (Spend, error) {
	if err := ctx.Err(); err != nil {
		return Spend{}, err
	}
	if t.path == "" {
		return Spend{}, errors.New("usage path is required")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := os.Open(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return Spend{}, nil
	}
	if err != nil {
		return Spend{}, fmt.Errorf("open usage file: %w", err)
	}
	defer f.Close()

	year, month, day := now.In(t.loc).Date()
	var totals Spend
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		y, m, d := rec.Timestamp.In(t.loc).Date()
		if y != year || m != month {
			continue
		}
		totals.MonthUSD += rec.CostUSD
		totals.MonthCalls++
		if d == day {
			totals.TodayUSD += rec.CostUSD
			totals.TodayCalls++
		}
	}
	if err := scanner.Err(); err != nil {
		return Spend{}, fmt.Errorf("scan usage file: %w", err)
	}
	return totals, nil
}
