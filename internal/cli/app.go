package cli

import (
	"context"
	"time"

	"github.com/neoclaw-ai/remindclaw/internal/bootstrap"
	"github.com/neoclaw-ai/remindclaw/internal/chat"
	"github.com/neoclaw-ai/remindclaw/internal/command"
	"github.com/neoclaw-ai/remindclaw/internal/commands"
	"github.com/neoclaw-ai/remindclaw/internal/config"
	"github.com/neoclaw-ai/remindclaw/internal/costs"
	"github.com/neoclaw-ai/remindclaw/internal/identity"
	"github.com/neoclaw-ai/remindclaw/internal/provider"
	"github.com/neoclaw-ai/remindclaw/internal/runtime"
	"github.com/neoclaw-ai/remindclaw/internal/scheduler"
)

var providerFactory = provider.NewProviderFromConfig

// app holds the dependencies shared by every subcommand.
type app struct {
	cfg        *config.Config
	store      identity.Store
	chat       *chat.Service
	usage      *costs.Tracker
	location   *time.Location
	closeStore func() error
}

// newApp opens the configured identity store, seeds the default identity and
// builds the chat service over a metered oracle. Callers must Close the app.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := bootstrap.SeedDefaultIdentity(ctx, store); err != nil {
		closeStore()
		return nil, err
	}

	llm := cfg.DefaultLLM()
	upstream, err := providerFactory(llm)
	if err != nil {
		closeStore()
		return nil, err
	}
	usage := costs.New(cfg.UsagePath(), loc)
	oracle := costs.NewMeter(upstream, usage, llm.Provider, llm.Model, costs.Limits{
		DailyUSD:   cfg.Costs.DailyLimit,
		MonthlyUSD: cfg.Costs.MonthlyLimit,
	})

	svc, err := chat.New(chat.Options{
		Store:               store,
		Classifier:          command.NewClassifier(oracle),
		Oracle:              oracle,
		ConversationPath:    cfg.ConversationPath,
		Location:            loc,
		RecentMessages:      cfg.Bot.RecentMessages,
		UsePersonalRequests: cfg.Bot.UsePersonalRequests,
		UseDefaultRequests:  cfg.Bot.UseDefaultRequests,
	})
	if err != nil {
		closeStore()
		return nil, err
	}

	return &app{
		cfg:        cfg,
		store:      store,
		chat:       svc,
		usage:      usage,
		location:   loc,
		closeStore: closeStore,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (identity.Store, func() error, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverSQLite:
		s, err := identity.OpenSQLite(ctx, cfg.SQLitePath())
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return identity.NewFileStore(cfg.IdentitiesPath()), func() error { return nil }, nil
	}
}

// Close releases the identity store.
func (a *app) Close() error {
	return a.closeStore()
}

// handler routes slash commands before the chat service.
func (a *app) handler() runtime.Handler {
	return commands.Router{
		Commands: commands.New(a.chat),
		Next:     a.chat,
	}
}

// newScheduler builds the cron-driven poller over the app's store, firing
// through the chat service.
func (a *app) newScheduler() *scheduler.Service {
	window := a.cfg.Scheduler.WindowMinutes
	poller := scheduler.NewPoller(a.store, a.chat, window, a.location)
	return scheduler.NewService(poller, window, a.location)
}
