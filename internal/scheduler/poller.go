// Package scheduler periodically finds due triggers across all identities
// and fires them.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/neoclaw-ai/remindclaw/internal/identity"
	"github.com/neoclaw-ai/remindclaw/internal/logging"
	"github.com/neoclaw-ai/remindclaw/internal/trigger"
)

// Firer delivers one due trigger for its identity.
type Firer interface {
	Fire(ctx context.Context, ident *identity.Identity, t trigger.Trigger) error
}

// Report summarizes one poll cycle.
type Report struct {
	Identities int
	Checked    int
	Due        int
	Fired      int
	Failed     int
	Corrupt    int
	// Skipped counts one-time triggers another poller claimed first.
	Skipped int
}

// Poller runs due-now cycles over an identity store.
type Poller struct {
	store  identity.Store
	firer  Firer
	window int
	loc    *time.Location
	now    func() time.Time
}

// NewPoller creates a poller that treats a trigger as due within
// windowMinutes of its scheduled time in loc.
func NewPoller(store identity.Store, firer Firer, windowMinutes int, loc *time.Location) *Poller {
	if loc == nil {
		loc = time.Local
	}
	return &Poller{
		store:  store,
		firer:  firer,
		window: windowMinutes,
		loc:    loc,
		now:    time.Now,
	}
}

// RunOnce evaluates every trigger once. One-time triggers are claimed
// (removed) before firing, so each fires at most once even when firing
// fails. A failing trigger never aborts the rest of the cycle.
func (p *Poller) RunOnce(ctx context.Context) (Report, error) {
	var report Report
	if p.store == nil || p.firer == nil {
		return report, errors.New("poller is not configured")
	}
	now := p.now().In(p.loc)

	identities, err := p.store.ListAll(ctx)
	if err != nil {
		return report, err
	}
	report.Identities = len(identities)

	for _, ident := range identities {
		for _, t := range ident.Triggers() {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Checked++

			due, err := t.Due(p.window, now)
			if err != nil {
				report.Corrupt++
				logging.Logger().Warn("skipping corrupt trigger", "identity_id", ident.ID(), "trigger_id", t.ID, "date", t.Date, "time", t.Time, "err", err)
				continue
			}
			if !due {
				continue
			}
			report.Due++

			if t.OneTime() {
				claimed, err := p.store.ClaimTrigger(ctx, ident.ID(), t.ID)
				if err != nil {
					report.Failed++
					logging.Logger().Warn("trigger claim failed", "identity_id", ident.ID(), "trigger_id", t.ID, "err", err)
					continue
				}
				if !claimed {
					report.Skipped++
					logging.Logger().Debug("trigger already claimed", "identity_id", ident.ID(), "trigger_id", t.ID)
					continue
				}
			}

			if err := p.firer.Fire(ctx, ident, t); err != nil {
				report.Failed++
				logging.Logger().Warn("trigger fire failed", "identity_id", ident.ID(), "trigger_id", t.ID, "err", err)
				continue
			}
			report.Fired++
		}
	}
	return report, nil
}
