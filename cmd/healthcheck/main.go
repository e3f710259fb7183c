// Package main is the entry point for the Postline coverage health check.
// It verifies that every monitored profile has its expected number of
// attempts booked for tomorrow and prints the report as JSON on stdout.
//
// Exit codes: 0 when coverage is complete, 2 on a coverage deficit, 1 on any
// operational failure (bad config, unreadable row sources). The distinction
// lets cron alert differently on "under-scheduled" versus "check broken".
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"postline/internal/assets"
	"postline/internal/config"
	"postline/internal/db"
	"postline/internal/health"
	"postline/internal/ledger"
	"postline/internal/types"
)

func main() {
	err := run()
	if err == nil {
		return
	}
	var appErr *types.AppError
	if errors.As(err, &appErr) && appErr.Code == types.ErrCodeCoverageDeficit {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
	os.Exit(1)
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

	checker := health.NewChecker(health.CheckerConfig{
		Profiles: profileList,
		Queues:   queues,
		Logger:   logger,
	})

	reporterCfg := health.ReporterConfig{
		Checker: checker,
		Ledger:  ledger.New(cfg.Ledger.Path),
		Logger:  logger,
	}
	if cfg.Mirror.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Mirror.URL)
		if err != nil {
			logger.WarnContext(ctx, "mirror connection failed, using ledger file", "error", err)
		} else {
			defer pool.Close()
			reporterCfg.Mirror = db.NewPostingLogRepository(pool)
		}
	}

	report, err := health.NewReporter(reporterCfg).Report(ctx)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	return report.Err()
}

// newLogger creates a structured slog.Logger configured for the given log
// level. Logs go to stderr so stdout stays parseable as the report itself.
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
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
