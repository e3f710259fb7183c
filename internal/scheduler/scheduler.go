package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"postline/internal/assets"
	"postline/internal/timewindow"
	"postline/internal/types"
)

// Scheduler submits one profile's next-day cadence. Each slot yields exactly
// one ledger row: scheduled on acceptance, failed otherwise. A failed slot
// does not abort the remaining slots, and its asset stays in the intake
// queue as a retry candidate for the next run. Only an impossible
// invocation (bad config, unreadable queue, lost ledger write) aborts.
type Scheduler struct {
	ledger  AttemptLedger
	client  PostingClient
	source  AssetSource
	profile types.Profile
	now     func() time.Time
	logger  *slog.Logger
}

// SchedulerConfig holds the dependencies for creating a Scheduler.
type SchedulerConfig struct {
	Ledger  AttemptLedger
	Client  PostingClient
	Source  AssetSource
	Profile types.Profile
	Now     func() time.Time // defaults to time.Now
	Logger  *slog.Logger
}

// NewScheduler creates a Scheduler for one profile.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		ledger:  cfg.Ledger,
		client:  cfg.Client,
		source:  cfg.Source,
		profile: cfg.Profile,
		now:     now,
		logger:  logger,
	}
}

// ScheduleNextDay resolves tomorrow's date in the profile's zone and submits
// every configured slot in ascending time order.
func (s *Scheduler) ScheduleNextDay(ctx context.Context) (*RunSummary, error) {
	day, err := timewindow.TomorrowInZone(s.now(), s.profile.Timezone)
	if err != nil {
		return nil, fmt.Errorf("resolving tomorrow for %s: %w", s.profile.Key, err)
	}

	needed := 0
	for _, slot := range s.profile.Slots {
		needed += slot.AssetCount
	}
	ready, err := s.source.Ready(needed)
	if err != nil {
		return nil, fmt.Errorf("listing intake queue for %s: %w", s.profile.Key, err)
	}
	if len(ready) < needed {
		return nil, types.NewAppError(types.ErrCodeAssetShortage,
			fmt.Sprintf("profile %s needs %d assets for %s, found %d", s.profile.Key, needed, day, len(ready)), nil)
	}

	runID := uuid.NewString()
	summary := &RunSummary{RunID: runID, Profile: s.profile.Key, Day: day.String()}

	s.logger.InfoContext(ctx, "scheduling next day",
		"profile", s.profile.Key,
		"day", day.String(),
		"timezone", s.profile.Timezone,
		"slots", len(s.profile.Slots),
		"run_id", runID,
	)

	next := 0 // cursor into the ordered asset list
	for _, slot := range s.profile.Slots {
		slotAssets := ready[next : next+slot.AssetCount]
		next += slot.AssetCount

		if err := s.scheduleSlot(ctx, day, slot, slotAssets, runID, summary); err != nil {
			return summary, err
		}
	}

	s.logger.InfoContext(ctx, "scheduling run complete",
		"profile", s.profile.Key,
		"scheduled", summary.Scheduled,
		"failed", summary.Failed,
	)
	return summary, nil
}

// scheduleSlot submits one slot and records the outcome. Only ledger write
// failures return an error; submission failures are recorded and absorbed.
func (s *Scheduler) scheduleSlot(
	ctx context.Context,
	day timewindow.Date,
	slot types.Slot,
	slotAssets []string,
	runID string,
	summary *RunSummary,
) error {
	wallClock := timewindow.LocalWallClock(day, slot.Hour, slot.Minute)
	caption := assets.BuildCaption(s.profile, slot, slotAssets[0])

	req := types.ScheduleRequest{
		AccountRef:  s.profile.AccountRef,
		Title:       slot.Title,
		Caption:     caption,
		Platforms:   s.profile.Platforms,
		ScheduledAt: wallClock,
		Timezone:    s.profile.Timezone,
		Kind:        slot.Kind,
	}
	if slot.Kind == types.KindReel {
		req.VideoPath = slotAssets[0]
	} else {
		req.PhotoPaths = slotAssets
	}

	row := s.baseRow(slot, slotAssets, runID, wallClock, caption)

	s.logger.InfoContext(ctx, "submitting slot",
		"profile", s.profile.Key,
		"scheduled_at", wallClock,
		"kind", string(slot.Kind),
	)

	// Once the request is sent we must wait for its response; an
	// unresolved outcome is unrecoverable ambiguity, so a lost response is
	// recorded as failed and left for the next run to retry.
	outcome, err := s.client.SchedulePost(ctx, req)
	if err != nil {
		return s.recordFailure(ctx, row, "", err.Error(), summary)
	}

	switch o := outcome.(type) {
	case types.ScheduleAccepted:
		return s.recordAccepted(ctx, row, o, slotAssets, summary)
	case types.ScheduleRejected:
		return s.recordFailure(ctx, row, o.Raw(), o.Error(), summary)
	case types.ScheduleMalformed:
		msg := fmt.Sprintf("undecodable response (HTTP %d)", o.StatusCode)
		return s.recordFailure(ctx, row, o.Raw(), msg, summary)
	default:
		return s.recordFailure(ctx, row, outcome.Raw(), fmt.Sprintf("unhandled outcome %T", outcome), summary)
	}
}

func (s *Scheduler) recordAccepted(
	ctx context.Context,
	row types.PostingAttempt,
	o types.ScheduleAccepted,
	slotAssets []string,
	summary *RunSummary,
) error {
	row.Status = types.StatusScheduled
	row.JobID = o.JobID
	row.RequestID = o.RequestID
	row.RawResponse = o.Raw()
	if err := s.ledger.Append(row); err != nil {
		return err
	}
	summary.Scheduled++

	// Consume only after the row is durably recorded. A consume failure
	// risks reuse on the next run but must not fail the invocation: the
	// submission already happened.
	for _, asset := range slotAssets {
		if err := s.source.Consume(asset); err != nil {
			s.logger.ErrorContext(ctx, "failed to consume asset; it may be selected again",
				"profile", s.profile.Key,
				"asset", asset,
				"error", err,
			)
		}
	}

	s.logger.InfoContext(ctx, "slot scheduled",
		"profile", s.profile.Key,
		"scheduled_at", row.ScheduledAt,
		"job_id", o.JobID,
		"request_id", o.RequestID,
	)
	return nil
}

func (s *Scheduler) recordFailure(
	ctx context.Context,
	row types.PostingAttempt,
	raw, errMsg string,
	summary *RunSummary,
) error {
	row.Status = types.StatusFailed
	row.RawResponse = raw
	row.Error = errMsg
	if err := s.ledger.Append(row); err != nil {
		return err
	}
	summary.Failed++

	s.logger.ErrorContext(ctx, "slot submission failed",
		"profile", s.profile.Key,
		"scheduled_at", row.ScheduledAt,
		"error", errMsg,
	)
	return nil
}

// baseRow builds the common ledger fields for an attempt at this slot.
func (s *Scheduler) baseRow(slot types.Slot, slotAssets []string, runID, wallClock, caption string) types.PostingAttempt {
	row := types.PostingAttempt{
		RecordedAt:  s.now().UTC(),
		Profile:     s.profile.Key,
		RunID:       runID,
		AccountRef:  s.profile.AccountRef,
		Platform:    s.profile.LedgerPlatform(),
		Caption:     caption,
		ScheduledAt: wallClock,
		Timezone:    s.profile.Timezone,
	}

	names := make([]string, len(slotAssets))
	for i, p := range slotAssets {
		names[i] = filepath.Base(p)
	}
	if slot.Kind == types.KindReel {
		row.VideoFile = names[0]
		row.SourceVideoPath = slotAssets[0]
	} else {
		row.ImageFile = strings.Join(names, "|")
		row.SourceImagePath = strings.Join(slotAssets, "|")
	}
	return row
}
