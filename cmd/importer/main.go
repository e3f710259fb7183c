// Package main is the entry point for the Postline importer. It mirrors the
// attempt ledger into Postgres so operators can query posting history with
// SQL without touching the CSV file. The mirror's de-duplication constraint
// makes every run idempotent; cron it as often as you like.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"postline/internal/config"
	"postline/internal/db"
	"postline/internal/importer"
	"postline/internal/ledger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	limit := flag.Int("limit", 0, "import only the most recent N ledger rows (0 = all)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.Mirror.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Mirror.URL)
	if err != nil {
		return fmt.Errorf("connecting to mirror: %w", err)
	}
	defer pool.Close()

	repo := db.NewPostingLogRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return err
	}

	imp := importer.NewImporter(importer.ImporterConfig{
		Ledger: ledger.New(cfg.Ledger.Path),
		Repo:   repo,
		Logger: logger,
	})

	logger.InfoContext(ctx, "importer starting",
		"environment", cfg.Environment,
		"ledger", cfg.Ledger.Path,
		"limit", *limit,
	)

	summary, err := imp.Import(ctx, *limit)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "importer finished",
		"read", summary.Read,
		"inserted", summary.Inserted,
		"skipped", summary.Skipped,
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
