// Package importer copies attempt ledger rows into the Postgres mirror.
// Imports are idempotent: the mirror's de-duplication constraint makes
// re-running the importer over the same ledger a no-op for rows already
// stored, so it can run on any cadence without bookkeeping.
package importer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"postline/internal/db"
	"postline/internal/timewindow"
	"postline/internal/types"
)

// AttemptLedger is the slice of the ledger the importer reads.
type AttemptLedger interface {
	ReadAll() ([]types.PostingAttempt, error)
	Tail(n int) ([]types.PostingAttempt, error)
}

// MirrorRepository is the write side of the Postgres mirror.
type MirrorRepository interface {
	Upsert(ctx context.Context, rows []db.MirrorRow) (int, error)
}

type ImporterConfig struct {
	Ledger AttemptLedger
	Repo   MirrorRepository
	Logger *slog.Logger
	Now    func() time.Time
}

type Importer struct {
	ledger AttemptLedger
	repo   MirrorRepository
	logger *slog.Logger
	now    func() time.Time
}

func NewImporter(cfg ImporterConfig) *Importer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Importer{
		ledger: cfg.Ledger,
		repo:   cfg.Repo,
		logger: cfg.Logger,
		now:    cfg.Now,
	}
}

// ImportSummary reports one importer run.
type ImportSummary struct {
	Read     int
	Inserted int
	Skipped  int
}

// Import reads ledger rows, maps them to mirror rows and upserts them.
// A limit > 0 restricts the run to the most recent rows; 0 imports the
// whole ledger. Duplicate rows are counted as skipped, not errors.
func (i *Importer) Import(ctx context.Context, limit int) (ImportSummary, error) {
	var (
		rows []types.PostingAttempt
		err  error
	)
	if limit > 0 {
		rows, err = i.ledger.Tail(limit)
	} else {
		rows, err = i.ledger.ReadAll()
	}
	if err != nil {
		return ImportSummary{}, err
	}
	if len(rows) == 0 {
		i.logger.InfoContext(ctx, "ledger empty, nothing to import")
		return ImportSummary{}, nil
	}

	mirror := make([]db.MirrorRow, 0, len(rows))
	fallback := i.now().UTC()
	for _, row := range rows {
		mirror = append(mirror, MapRow(row, fallback))
	}

	inserted, err := i.repo.Upsert(ctx, mirror)
	summary := ImportSummary{Read: len(rows), Inserted: inserted, Skipped: len(rows) - inserted}
	if err != nil {
		return summary, err
	}
	i.logger.InfoContext(ctx, "ledger import complete",
		"read", summary.Read, "inserted", summary.Inserted, "skipped", summary.Skipped)
	return summary, nil
}

// MapRow converts one ledger attempt into its mirror shape. The scheduled
// wall-clock is resolved against the row's own timezone; rows with a
// malformed or missing wall-clock mirror with a NULL scheduled_at rather
// than failing the import. fallback stands in for a missing recorded_at.
func MapRow(a types.PostingAttempt, fallback time.Time) db.MirrorRow {
	at := a.RecordedAt
	if at.IsZero() {
		at = fallback
	}
	row := db.MirrorRow{
		At:              at,
		Profile:         a.Profile,
		RunID:           nullIfEmpty(a.RunID),
		VideoFile:       nullIfEmpty(a.VideoFile),
		ImageFile:       nullIfEmpty(a.ImageFile),
		SourceVideoPath: nullIfEmpty(a.SourceVideoPath),
		SourceImagePath: nullIfEmpty(a.SourceImagePath),
		AccountRef:      nullIfEmpty(a.AccountRef),
		Platform:        nullIfEmpty(a.Platform),
		Status:          string(a.Status),
		Caption:         nullIfEmpty(a.Caption),
		Timezone:        nullIfEmpty(a.Timezone),
		JobID:           nullIfEmpty(a.JobID),
		RequestID:       nullIfEmpty(a.RequestID),
		Error:           nullIfEmpty(a.Error),
		Source:          "importer",
	}
	if a.ScheduledAt != "" && a.Timezone != "" {
		if ts, err := timewindow.ParseWallClock(a.ScheduledAt, a.Timezone); err == nil {
			utc := ts.UTC()
			row.ScheduledAt = &utc
		}
	}
	if a.RawResponse != "" {
		row.RawResponse = rawJSON(a.RawResponse)
	}
	return row
}

// rawJSON passes valid JSON through untouched and wraps anything else so
// the jsonb column never rejects a row.
func rawJSON(s string) []byte {
	if json.Valid([]byte(s)) {
		return []byte(s)
	}
	wrapped, err := json.Marshal(map[string]string{"_raw": s})
	if err != nil {
		return nil
	}
	return wrapped
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
