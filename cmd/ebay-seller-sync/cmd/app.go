package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/donaldgifford/ebay-seller-sync/internal/config"
	"github.com/donaldgifford/ebay-seller-sync/internal/ebay"
	"github.com/donaldgifford/ebay-seller-sync/internal/engine"
	"github.com/donaldgifford/ebay-seller-sync/internal/notify"
	"github.com/donaldgifford/ebay-seller-sync/internal/store"
	"github.com/donaldgifford/ebay-seller-sync/internal/syncer"
	"github.com/donaldgifford/ebay-seller-sync/internal/tokens"
	"github.com/donaldgifford/ebay-seller-sync/internal/vault"
	"github.com/donaldgifford/ebay-seller-sync/internal/worker"
)

// app holds the wired service components shared by serve and the one-shot
// commands.
type app struct {
	cfg       *config.Config
	log       *slog.Logger
	store     *store.PostgresStore
	vault     *vault.Vault
	limiter   *ebay.RateLimiter
	provider  *tokens.Provider
	refresher *tokens.Refresher
	coord     *worker.Coordinator
	registry  *worker.Registry
	driver    *engine.Driver
}

// openStore connects to PostgreSQL and applies pending migrations.
func openStore(ctx context.Context, cfg *config.Config) (*store.PostgresStore, error) {
	s, err := store.NewPostgresStore(ctx, cfg.Database.DSN(),
		store.WithMaxConns(int32(cfg.Database.PoolSize)), //nolint:gosec // pool size comes from config
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	s, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	v, err := vault.New(cfg.Vault.Secret, vault.WithLogger(log))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	httpClient := ebay.NewHTTPClient(cfg.Ebay.ConnectTimeout, cfg.Ebay.RequestTimeout)

	tokenURL := cfg.Ebay.TokenURL
	if tokenURL == "" {
		tokenURL = ebay.TokenURL(cfg.Ebay.Environment)
	}
	oauth := ebay.NewOAuthClient(cfg.Ebay.ClientID, cfg.Ebay.ClientSecret,
		ebay.WithTokenURL(tokenURL),
		ebay.WithHTTPClient(httpClient),
	)

	limiter := ebay.NewRateLimiter(
		cfg.Ebay.RateLimit.PerSecond,
		cfg.Ebay.RateLimit.Burst,
		cfg.Ebay.RateLimit.DailyLimit,
	)

	sellURL, financesURL := ebay.SellURLs(cfg.Ebay.Environment)
	if cfg.Ebay.APIURL != "" {
		sellURL = cfg.Ebay.APIURL
	}
	if cfg.Ebay.FinancesURL != "" {
		financesURL = cfg.Ebay.FinancesURL
	}
	sell := ebay.NewSellClient(
		ebay.WithSellURL(sellURL),
		ebay.WithFinancesURL(financesURL),
		ebay.WithMarketplace(cfg.Ebay.Marketplace),
		ebay.WithSellHTTPClient(httpClient),
		ebay.WithRateLimiter(limiter),
	)

	provider := tokens.NewProvider(s, v, oauth,
		tokens.WithLogger(log),
		tokens.WithNotifier(newNotifier(cfg, log)),
		tokens.WithEnvironment(cfg.Ebay.Environment),
		tokens.WithRefreshMargin(cfg.Tokens.RefreshMargin),
	)
	refresher := tokens.NewRefresher(s, provider,
		tokens.WithSweepLogger(log),
		tokens.WithLookahead(cfg.Tokens.Lookahead),
		tokens.WithConcurrency(cfg.Tokens.Concurrency),
	)

	coord := worker.NewCoordinator(s,
		worker.WithLogger(log),
		worker.WithInterval(cfg.Worker.Interval),
		worker.WithStaleTimeout(cfg.Worker.StaleTimeout),
	)

	registry := worker.NewRegistry()
	if err := syncer.Register(registry, sell, s, s, syncer.Options{
		PageSize:       cfg.Worker.PageSize,
		MaxPages:       cfg.Worker.MaxPages,
		BackfillWindow: cfg.Worker.BackfillWindow,
		Logger:         log,
	}); err != nil {
		s.Close()
		return nil, fmt.Errorf("registering sync routines: %w", err)
	}

	driver := engine.NewDriver(coord, provider, registry,
		engine.WithLogger(log),
		engine.WithFamilies(cfg.Worker.Families...),
		engine.WithConcurrency(cfg.Worker.Concurrency),
		engine.WithPairTimeout(cfg.Worker.RunTimeout),
	)

	return &app{
		cfg:       cfg,
		log:       log,
		store:     s,
		vault:     v,
		limiter:   limiter,
		provider:  provider,
		refresher: refresher,
		coord:     coord,
		registry:  registry,
		driver:    driver,
	}, nil
}

func (a *app) scheduler() (*engine.Scheduler, error) {
	return engine.NewScheduler(a.store, a.refresher, a.driver, a.coord, engine.ScheduleConfig{
		RefreshInterval: a.cfg.Schedule.RefreshInterval,
		SyncInterval:    a.cfg.Schedule.SyncInterval,
		CleanupInterval: a.cfg.Schedule.CleanupInterval,
		JobTimeout:      a.cfg.Schedule.JobTimeout,
		RunRetention:    a.cfg.Worker.RunRetention,
		LogRetention:    a.cfg.Worker.LogRetention,
	}, a.log)
}

func (a *app) Close() {
	a.store.Close()
}

func newNotifier(cfg *config.Config, log *slog.Logger) notify.Notifier {
	if cfg.Notifications.Discord.Enabled {
		return notify.NewDiscordNotifier(cfg.Notifications.Discord.WebhookURL)
	}
	return notify.NewNoOpNotifier(log)
}
