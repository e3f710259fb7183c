package ops

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"postline/internal/types"
)

// LedgerReader is the slice of the ledger the ops API serves.
type LedgerReader interface {
	Tail(n int) ([]types.PostingAttempt, error)
}

// CoverageReporter produces the pipeline coverage report on demand.
type CoverageReporter interface {
	Report(ctx context.Context) (*types.CoverageReport, error)
}

const (
	defaultLogLimit = 50
	maxLogLimit     = 1000
)

// attemptRow is the wire shape of one ledger row. Field names follow the
// ledger's own column names.
type attemptRow struct {
	RecordedAt      time.Time `json:"recorded_at"`
	Profile         string    `json:"profile"`
	RunID           string    `json:"run_id,omitempty"`
	VideoFile       string    `json:"video_file,omitempty"`
	ImageFile       string    `json:"image_file,omitempty"`
	SourceVideoPath string    `json:"source_video_path,omitempty"`
	SourceImagePath string    `json:"source_image_path,omitempty"`
	AccountRef      string    `json:"external_account_ref,omitempty"`
	Platform        string    `json:"platform,omitempty"`
	Status          string    `json:"status"`
	Caption         string    `json:"caption,omitempty"`
	ScheduledAt     string    `json:"scheduled_at,omitempty"`
	Timezone        string    `json:"timezone,omitempty"`
	JobID           string    `json:"external_job_id,omitempty"`
	RequestID       string    `json:"external_request_id,omitempty"`
	Error           string    `json:"error,omitempty"`
}

func toAttemptRow(a types.PostingAttempt) attemptRow {
	return attemptRow{
		RecordedAt:      a.RecordedAt,
		Profile:         a.Profile,
		RunID:           a.RunID,
		VideoFile:       a.VideoFile,
		ImageFile:       a.ImageFile,
		SourceVideoPath: a.SourceVideoPath,
		SourceImagePath: a.SourceImagePath,
		AccountRef:      a.AccountRef,
		Platform:        a.Platform,
		Status:          string(a.Status),
		Caption:         a.Caption,
		ScheduledAt:     a.ScheduledAt,
		Timezone:        a.Timezone,
		JobID:           a.JobID,
		RequestID:       a.RequestID,
		Error:           a.Error,
	}
}

type Handler struct {
	ledger   LedgerReader
	coverage CoverageReporter
}

func NewHandler(ledger LedgerReader, coverage CoverageReporter) *Handler {
	return &Handler{ledger: ledger, coverage: coverage}
}

// GetPostingLog returns the most recent ledger rows, oldest first.
// GET /api/posting-log?limit=N
func (h *Handler) GetPostingLog(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, APIErrorResponse{
				Error: ErrorDetail{
					Code:    "invalid_request",
					Message: "limit must be a positive integer",
				},
			})
			return
		}
		limit = min(n, maxLogLimit)
	}

	rows, err := h.ledger.Tail(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]attemptRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, toAttemptRow(row))
	}
	writeJSON(w, http.StatusOK, APIResponse{Data: map[string]any{
		"count": len(out),
		"rows":  out,
	}})
}

// GetPipelineHealth returns the coverage report for tomorrow's slots.
// Always 200 when the report could be computed; the ok field carries the
// verdict so dashboards can distinguish "unhealthy" from "unreachable".
// GET /api/pipeline-health
func (h *Handler) GetPipelineHealth(w http.ResponseWriter, r *http.Request) {
	report, err := h.coverage.Report(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Data: report})
}
