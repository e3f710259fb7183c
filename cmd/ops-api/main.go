// Package main is the entry point for the Postline ops API, a read-only
// HTTP server over the attempt ledger and the pipeline coverage report.
// It serves whatever the ledger and mirror currently say; nothing here
// writes or schedules.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"postline/internal/assets"
	"postline/internal/config"
	"postline/internal/db"
	"postline/internal/health"
	"postline/internal/ledger"
	"postline/internal/ops"
	"postline/internal/types"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := newLogger(cfg.LogLevel)

	profiles, err := config.LoadProfiles(cfg.ProfilesPath)
	if err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queues := make(map[string]health.QueueDepther)
	profileList := make([]types.Profile, 0, len(profiles))
	for _, profile := range profiles {
		profileList = append(profileList, profile)
		if profile.QuotaIfQueued {
			queues[profile.Key] = assets.NewFileQueue(profile.Source)
		}
	}

	led := ledger.New(cfg.Ledger.Path)
	reporterCfg := health.ReporterConfig{
		Checker: health.NewChecker(health.CheckerConfig{
			Profiles: profileList,
			Queues:   queues,
			Logger:   logger,
		}),
		Ledger: led,
		Logger: logger,
	}
	if cfg.Mirror.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Mirror.URL)
		if err != nil {
			logger.WarnContext(ctx, "mirror connection failed, serving from ledger file", "error", err)
		} else {
			defer pool.Close()
			reporterCfg.Mirror = db.NewPostingLogRepository(pool)
		}
	}

	handler := ops.NewHandler(led, health.NewReporter(reporterCfg))
	server := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Ops.Port),
		Handler:           ops.NewRouter(handler, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.InfoContext(ctx, "ops API starting",
		"environment", cfg.Environment,
		"port", cfg.Ops.Port,
		"ledger", cfg.Ledger.Path,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("ops API stopped")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
