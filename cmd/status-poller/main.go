// Package main is the entry point for the Postline status poller. Each run
// reduces the ledger to its pending attempts, asks the posting service what
// became of them, and appends one observation row per answer. Terminal
// attempts are never re-queried, so successive runs converge to a no-op.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"postline/internal/config"
	"postline/internal/external"
	"postline/internal/ledger"
	"postline/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	maxBatch := flag.Int("max-batch", 0, "maximum pending attempts to query per run (0 = all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.UploadPost.APIKey == "" {
		return fmt.Errorf("UPLOAD_POST_API_KEY is required")
	}

	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := external.NewUploadPostClient(
		&http.Client{Timeout: cfg.UploadPost.Timeout},
		external.UploadPostConfig{
			APIKey:  cfg.UploadPost.APIKey,
			BaseURL: cfg.UploadPost.BaseURL,
			Logger:  logger,
		},
	)

	rec := scheduler.NewReconciler(scheduler.ReconcilerConfig{
		Ledger:           ledger.New(cfg.Ledger.Path),
		Client:           client,
		QueriesPerSecond: cfg.UploadPost.StatusQueriesPerSecond,
		Logger:           logger,
	})

	logger.InfoContext(ctx, "status poller starting",
		"environment", cfg.Environment,
		"max_batch", *maxBatch,
	)

	summary, err := rec.Reconcile(ctx, *maxBatch)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "status poller finished",
		"candidates", summary.Candidates,
		"queried", summary.Queried,
		"updated", summary.Updated,
		"check_failed", summary.CheckFailed,
	)
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
