package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/donaldgifford/ebay-seller-sync/api/openapi"
	"github.com/donaldgifford/ebay-seller-sync/internal/api/handlers"
	"github.com/donaldgifford/ebay-seller-sync/internal/api/middleware"
	"github.com/donaldgifford/ebay-seller-sync/internal/engine"
	"github.com/donaldgifford/ebay-seller-sync/internal/telemetry"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and scheduler",
		Long: "Start the HTTP API and the scheduler that runs the token refresh sweep,\n" +
			"the sync cycle and cleanup on their configured intervals.",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       cfg.Telemetry.Endpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: Version,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(sctx); err != nil {
			log.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.scheduler()
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	e := newEcho(a, sched, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(e, "ebay-seller-sync"),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	sched.Start()
	log.Info("scheduler started",
		"refresh_interval", cfg.Schedule.RefreshInterval,
		"sync_interval", cfg.Schedule.SyncInterval,
		"cleanup_interval", cfg.Schedule.CleanupInterval,
	)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", addr, "environment", string(cfg.Ebay.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Error("server error", "error", err)
		}
	}

	log.Info("shutting down")
	return shutdown(srv, sched, log)
}

func shutdown(srv *http.Server, sched *engine.Scheduler, log *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	serverErr := srv.Shutdown(ctx)

	select {
	case <-sched.Stop().Done():
	case <-ctx.Done():
		log.Warn("scheduler jobs still running at shutdown")
	}

	if serverErr != nil {
		return fmt.Errorf("shutting down server: %w", serverErr)
	}
	log.Info("server stopped")
	return nil
}

func newEcho(a *app, sched *engine.Scheduler, log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(log))
	e.Use(middleware.RequestLog(log))
	e.Use(middleware.Metrics())

	health := handlers.NewHealthHandler(a.store)
	e.GET("/healthz", health.Healthz)
	e.GET("/readyz", health.Readyz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := humaecho.New(e, huma.DefaultConfig("ebay-seller-sync API", Version))
	registerRoutes(api, a, sched)
	openapi.RegisterRoutes(e)
	return e
}

func registerRoutes(api huma.API, a *app, sched *engine.Scheduler) {
	handlers.RegisterAccountRoutes(api, handlers.NewAccountsHandler(a.store, a.cfg.Ebay.Environment))
	handlers.RegisterTokenRoutes(api, handlers.NewTokensHandler(a.provider, a.store))
	handlers.RegisterSyncRoutes(api, handlers.NewSyncHandler(a.store, a.coord, a.driver))
	handlers.RegisterRunRoutes(api, handlers.NewRunsHandler(a.store))
	handlers.RegisterJobRoutes(api, handlers.NewJobsHandler(a.store))
	handlers.RegisterTriggerRoutes(api, handlers.NewTriggerHandler(sched))
	handlers.RegisterQuotaRoutes(api, handlers.NewQuotaHandler(a.limiter))
}
