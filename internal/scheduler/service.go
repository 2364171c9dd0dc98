package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neoclaw-ai/remindclaw/internal/logging"
	"github.com/robfig/cron/v3"
)

// Service runs the poller on a cron schedule aligned to the due window.
type Service struct {
	poller  *Poller
	spec    string
	cron    *cron.Cron
	started bool
}

// NewService creates a cron-backed service that polls every windowMinutes
// in loc.
func NewService(poller *Poller, windowMinutes int, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		poller: poller,
		spec:   cronSpec(windowMinutes),
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
	}
}

// Spec returns the cron expression the service polls on.
func (s *Service) Spec() string {
	return s.spec
}

// Start registers the poll cycle and starts cron execution.
func (s *Service) Start(ctx context.Context) error {
	if s.started {
		return errors.New("scheduler already started")
	}
	if s.poller == nil {
		return errors.New("poller is required")
	}

	if _, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.RunNow(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Logger().Warn("poll cycle failed", "err", err)
		}
	}); err != nil {
		return fmt.Errorf("register poll schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.started = true
	logging.Logger().Info("scheduler started", "spec", s.spec)
	return nil
}

// Stop stops cron and waits for an in-flight cycle to finish or ctx cancellation.
func (s *Service) Stop(ctx context.Context) error {
	if !s.started {
		return nil
	}

	doneCtx := s.cron.Stop()
	s.started = false
	select {
	case <-doneCtx.Done():
		logging.Logger().Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes one poll cycle immediately.
func (s *Service) RunNow(ctx context.Context) (Report, error) {
	report, err := s.poller.RunOnce(ctx)
	if err != nil {
		return report, err
	}
	logging.Logger().Info(
		"poll cycle complete",
		"identities", report.Identities,
		"checked", report.Checked,
		"due", report.Due,
		"fired", report.Fired,
		"failed", report.Failed,
		"corrupt", report.Corrupt,
		"skipped", report.Skipped,
	)
	return report, nil
}

// cronSpec aligns polls to wall-clock multiples of the window when the
// window divides an hour, so consecutive windows tile the day.
func cronSpec(windowMinutes int) string {
	switch {
	case windowMinutes <= 0:
		return "@every 1m"
	case windowMinutes == 60:
		return "0 * * * *"
	case 60%windowMinutes == 0:
		return fmt.Sprintf("*/%d * * * *", windowMinutes)
	default:
		return fmt.Sprintf("@every %dm", windowMinutes)
	}
}
