package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/ratelimit"

	"postline/internal/ledger"
	"postline/internal/types"
)

// Reconciler asks the posting service what became of attempts whose
// effective status is still non-terminal, and appends the answers to the
// ledger as new rows. History is never mutated: a confirmation is one more
// row for the key, and a failed status query is a status_check_failed row
// that leaves the last real status standing.
type Reconciler struct {
	ledger  AttemptLedger
	client  PostingClient
	limiter ratelimit.Limiter
	now     func() time.Time
	logger  *slog.Logger
}

// ReconcilerConfig holds the dependencies for creating a Reconciler.
// QueriesPerSecond paces successive status queries; it defaults to 3, which
// matches the service's documented courtesy limit.
type ReconcilerConfig struct {
	Ledger           AttemptLedger
	Client           PostingClient
	QueriesPerSecond int
	Now              func() time.Time
	Logger           *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	qps := cfg.QueriesPerSecond
	if qps <= 0 {
		qps = 3
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		ledger:  cfg.Ledger,
		client:  cfg.Client,
		limiter: ratelimit.New(qps),
		now:     now,
		logger:  logger,
	}
}

// Reconcile reduces the ledger to the latest state per correlation key,
// selects up to maxBatch keys still awaiting a terminal outcome, and
// queries each one. A failed query or unparseable answer affects only its
// own key; the batch continues. maxBatch <= 0 means no bound.
func (r *Reconciler) Reconcile(ctx context.Context, maxBatch int) (*ReconcileSummary, error) {
	rows, err := r.ledger.ReadAll()
	if err != nil {
		return nil, err
	}

	states, order := ledger.ReduceOrdered(rows)

	var candidates []ledger.KeyState
	for _, key := range order {
		state := states[key]
		if !state.Pending() {
			continue
		}
		if state.Latest.JobID == "" && state.Latest.RequestID == "" {
			// Never got identifiers from the service; there is nothing to
			// query. Typically a failed submission, which is terminal anyway.
			continue
		}
		candidates = append(candidates, state)
	}

	summary := &ReconcileSummary{Candidates: len(candidates)}
	if maxBatch > 0 && len(candidates) > maxBatch {
		candidates = candidates[:maxBatch]
	}

	r.logger.InfoContext(ctx, "reconciling pending attempts",
		"pending", summary.Candidates,
		"batch", len(candidates),
	)

	for _, state := range candidates {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		r.limiter.Take() // pace calls to the service

		if err := r.reconcileOne(ctx, state.Latest, summary); err != nil {
			// Only ledger write failures reach here; those abort the batch.
			return summary, err
		}
		summary.Queried++
	}

	r.logger.InfoContext(ctx, "reconcile pass complete",
		"queried", summary.Queried,
		"updated", summary.Updated,
		"check_failed", summary.CheckFailed,
	)
	return summary, nil
}

// reconcileOne queries one key and appends the resulting row.
func (r *Reconciler) reconcileOne(ctx context.Context, prior types.PostingAttempt, summary *ReconcileSummary) error {
	report, err := r.client.GetStatus(ctx, prior.JobID, prior.RequestID)
	if err != nil {
		return r.appendCheckFailed(ctx, prior, err.Error(), summary)
	}

	status, ok := normalizeStatus(report.Status)
	if !ok {
		msg := fmt.Sprintf("unrecognized status %q from posting service", report.Status)
		return r.appendCheckFailed(ctx, prior, msg, summary)
	}

	_, failCount, resultMsg := report.Summary()

	row := r.updateRow(prior)
	row.Status = status
	row.RawResponse = compactReport(report)
	if failCount > 0 {
		row.Error = resultMsg
	}

	if err := r.ledger.Append(row); err != nil {
		return err
	}
	summary.Updated++

	r.logger.InfoContext(ctx, "attempt status updated",
		"profile", prior.Profile,
		"job_id", prior.JobID,
		"request_id", prior.RequestID,
		"status", string(status),
	)
	return nil
}

func (r *Reconciler) appendCheckFailed(ctx context.Context, prior types.PostingAttempt, msg string, summary *ReconcileSummary) error {
	row := r.updateRow(prior)
	row.Status = types.StatusCheckFailed
	row.Error = msg

	if err := r.ledger.Append(row); err != nil {
		return err
	}
	summary.CheckFailed++

	r.logger.ErrorContext(ctx, "status check failed",
		"profile", prior.Profile,
		"job_id", prior.JobID,
		"request_id", prior.RequestID,
		"error", msg,
	)
	return nil
}

// updateRow carries the identifying fields of the prior row forward into a
// new status row, so the new row correlates to the same key.
func (r *Reconciler) updateRow(prior types.PostingAttempt) types.PostingAttempt {
	return types.PostingAttempt{
		RecordedAt:      r.now().UTC(),
		Profile:         prior.Profile,
		RunID:           prior.RunID,
		VideoFile:       prior.VideoFile,
		ImageFile:       prior.ImageFile,
		SourceVideoPath: prior.SourceVideoPath,
		SourceImagePath: prior.SourceImagePath,
		AccountRef:      prior.AccountRef,
		Platform:        prior.Platform,
		Caption:         prior.Caption,
		ScheduledAt:     prior.ScheduledAt,
		Timezone:        prior.Timezone,
		JobID:           prior.JobID,
		RequestID:       prior.RequestID,
	}
}

// normalizeStatus maps the service's status vocabulary onto the local one.
// Unknown values are reported as a failed check rather than invented.
func normalizeStatus(s string) (types.AttemptStatus, bool) {
	switch s {
	case "completed", "confirmed":
		return types.StatusConfirmed, true
	case "in_progress", "processing":
		return types.StatusInProgress, true
	case "scheduled", "pending":
		return types.StatusScheduled, true
	case "failed", "error":
		return types.StatusFailed, true
	}
	return "", false
}

// compactReport re-serializes the fields worth keeping from a status
// payload for the ledger's forensics column.
func compactReport(report *types.StatusReport) string {
	out, err := json.Marshal(struct {
		Status     string                 `json:"status"`
		Results    []types.PlatformResult `json:"results"`
		LastUpdate string                 `json:"last_update,omitempty"`
	}{report.Status, report.Results, report.LastUpdate})
	if err != nil {
		return report.Payload
	}
	return string(out)
}
