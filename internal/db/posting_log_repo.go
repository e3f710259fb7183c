package db

import (
	"context"
	"time"

	"postline/internal/types"
)

const createPostingLogSQL = `
CREATE TABLE IF NOT EXISTS posting_log (
	id               BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	at               TIMESTAMPTZ NOT NULL,
	profile          TEXT NOT NULL,
	run_id           TEXT,
	video_file       TEXT,
	image_file       TEXT,
	source_video_path TEXT,
	source_image_path TEXT,
	account_ref      TEXT,
	platform         TEXT,
	status           TEXT NOT NULL,
	caption          TEXT,
	scheduled_at     TIMESTAMPTZ,
	timezone         TEXT,
	external_job_id  TEXT,
	external_request_id TEXT,
	raw_response     JSONB,
	error            TEXT,
	source           TEXT NOT NULL DEFAULT 'importer',
	imported_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT posting_log_dedup UNIQUE NULLS NOT DISTINCT (profile, external_job_id, status, scheduled_at)
)`

// MirrorRow is one posting_log row as stored in Postgres. Optional ledger
// columns map to NULL via pointer fields; ScheduledAt is the slot wall-clock
// resolved against the attempt's timezone.
type MirrorRow struct {
	At              time.Time
	Profile         string
	RunID           *string
	VideoFile       *string
	ImageFile       *string
	SourceVideoPath *string
	SourceImagePath *string
	AccountRef      *string
	Platform        *string
	Status          string
	Caption         *string
	ScheduledAt     *time.Time
	Timezone        *string
	JobID           *string
	RequestID       *string
	RawResponse     []byte
	Error           *string
	Source          string
}

// PostingLogRepository mirrors ledger attempts into the posting_log table.
type PostingLogRepository struct {
	db DBTX
}

func NewPostingLogRepository(db DBTX) *PostingLogRepository {
	return &PostingLogRepository{db: db}
}

// EnsureSchema creates the posting_log table and its de-duplication
// constraint if they do not exist yet.
func (r *PostingLogRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createPostingLogSQL); err != nil {
		return types.NewAppError(types.ErrCodeMirrorDB, "failed to ensure posting_log schema", err)
	}
	return nil
}

const insertPostingLogSQL = `
INSERT INTO posting_log (
	at, profile, run_id, video_file, image_file,
	source_video_path, source_image_path, account_ref, platform, status,
	caption, scheduled_at, timezone, external_job_id, external_request_id,
	raw_response, error, source
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
ON CONFLICT ON CONSTRAINT posting_log_dedup DO NOTHING`

// Upsert inserts the given rows, silently skipping any row whose
// (profile, external_job_id, status, scheduled_at) tuple is already
// mirrored. Profile is part of the key because failed submissions carry no
// job id; without it, two profiles failing at the same wall-clock instant
// would collapse to one row. Returns the number of rows actually inserted.
func (r *PostingLogRepository) Upsert(ctx context.Context, rows []MirrorRow) (int, error) {
	inserted := 0
	for _, row := range rows {
		tag, err := r.db.Exec(ctx, insertPostingLogSQL,
			row.At, row.Profile, row.RunID, row.VideoFile, row.ImageFile,
			row.SourceVideoPath, row.SourceImagePath, row.AccountRef, row.Platform, row.Status,
			row.Caption, row.ScheduledAt, row.Timezone, row.JobID, row.RequestID,
			row.RawResponse, row.Error, row.Source,
		)
		if err != nil {
			return inserted, types.NewAppError(types.ErrCodeMirrorDB, "failed to insert posting_log row", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

const recentPostingLogSQL = `
SELECT at, profile, run_id, video_file, image_file,
	source_video_path, source_image_path, account_ref, platform, status,
	caption, scheduled_at, timezone, external_job_id, external_request_id,
	raw_response, error, source
FROM posting_log
ORDER BY at DESC
LIMIT $1`

// RecentRows returns the most recently recorded mirror rows, newest first.
// The health checker uses this when the ledger file is not reachable.
func (r *PostingLogRepository) RecentRows(ctx context.Context, limit int) ([]MirrorRow, error) {
	pgRows, err := r.db.Query(ctx, recentPostingLogSQL, limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeMirrorDB, "failed to query posting_log", err)
	}
	defer pgRows.Close()

	var rows []MirrorRow
	for pgRows.Next() {
		var row MirrorRow
		if err := pgRows.Scan(
			&row.At, &row.Profile, &row.RunID, &row.VideoFile, &row.ImageFile,
			&row.SourceVideoPath, &row.SourceImagePath, &row.AccountRef, &row.Platform, &row.Status,
			&row.Caption, &row.ScheduledAt, &row.Timezone, &row.JobID, &row.RequestID,
			&row.RawResponse, &row.Error, &row.Source,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeMirrorDB, "failed to scan posting_log row", err)
		}
		rows = append(rows, row)
	}
	if err := pgRows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeMirrorDB, "failed to read posting_log rows", err)
	}
	return rows, nil
}

// Attempt converts a mirror row back into the ledger's attempt shape so
// ledger-oriented code (coverage checks, the ops API) can consume mirror
// data when the file itself is unavailable. The scheduled wall-clock is
// re-rendered in the attempt's own timezone when both are present.
func (row MirrorRow) Attempt() types.PostingAttempt {
	a := types.PostingAttempt{
		RecordedAt: row.At,
		Profile:    row.Profile,
		Status:     types.AttemptStatus(row.Status),
	}
	a.RunID = deref(row.RunID)
	a.VideoFile = deref(row.VideoFile)
	a.ImageFile = deref(row.ImageFile)
	a.SourceVideoPath = deref(row.SourceVideoPath)
	a.SourceImagePath = deref(row.SourceImagePath)
	a.AccountRef = deref(row.AccountRef)
	a.Platform = deref(row.Platform)
	a.Caption = deref(row.Caption)
	a.Timezone = deref(row.Timezone)
	a.JobID = deref(row.JobID)
	a.RequestID = deref(row.RequestID)
	a.Error = deref(row.Error)
	a.RawResponse = string(row.RawResponse)
	if row.ScheduledAt != nil && a.Timezone != "" {
		if loc, err := time.LoadLocation(a.Timezone); err == nil {
			a.ScheduledAt = row.ScheduledAt.In(loc).Format(types.WallClockLayout)
		}
	}
	return a
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
