// Package main is the entry point for the Postline scheduler. One run books
// every slot of the target profile's next local day against the posting
// service, records each attempt in the ledger, and moves consumed assets out
// of the intake queue. Running it again for the same profile books the day
// after the new "tomorrow"; it keeps no state of its own.
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

	"postline/internal/assets"
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
	profileKey := flag.String("profile", "", "profile key to schedule (required)")
	flag.Parse()
	if *profileKey == "" {
		return fmt.Errorf("missing required flag: -profile")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.UploadPost.APIKey == "" {
		return fmt.Errorf("UPLOAD_POST_API_KEY is required")
	}

	logger := newLogger(cfg.LogLevel)

	profiles, err := config.LoadProfiles(cfg.ProfilesPath)
	if err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}
	profile, err := config.Profile(profiles, *profileKey)
	if err != nil {
		return err
	}

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

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Ledger:  ledger.New(cfg.Ledger.Path),
		Client:  client,
		Source:  assets.NewFileQueue(profile.Source),
		Profile: profile,
		Logger:  logger,
	})

	logger.InfoContext(ctx, "scheduler starting",
		"environment", cfg.Environment,
		"profile", profile.Key,
		"slots", len(profile.Slots),
	)

	summary, err := sched.ScheduleNextDay(ctx)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "scheduler finished",
		"run_id", summary.RunID,
		"day", summary.Day,
		"scheduled", summary.Scheduled,
		"failed", summary.Failed,
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
