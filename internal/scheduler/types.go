// Package scheduler implements the two operator-run services at the heart
// of Postline: the Scheduler, which submits a profile's next-day cadence to
// the posting service and records every attempt in the ledger, and the
// Reconciler, which later asks the service what became of each pending
// attempt and appends the answers as new ledger rows.
package scheduler

import (
	"context"

	"postline/internal/types"
)

// AttemptLedger abstracts the append-only attempt log. Append failures are
// persistence errors and always propagate; losing a ledger write loses the
// source of truth.
type AttemptLedger interface {
	Append(row types.PostingAttempt) error
	ReadAll() ([]types.PostingAttempt, error)
}

// PostingClient abstracts the external posting service.
type PostingClient interface {
	// SchedulePost submits one publish-or-schedule request. Transport
	// failures return an error; answered requests return an outcome
	// variant.
	SchedulePost(ctx context.Context, req types.ScheduleRequest) (types.ScheduleOutcome, error)
	// GetStatus queries the current state of a previously submitted job.
	GetStatus(ctx context.Context, jobID, requestID string) (*types.StatusReport, error)
}

// AssetSource abstracts the consumable intake queue for file-based
// profiles.
type AssetSource interface {
	// Ready returns up to n publishable asset paths in ascending
	// production order.
	Ready(n int) ([]string, error)
	// Consume removes an asset from the intake set after a successful
	// submission.
	Consume(path string) error
}

// RunSummary reports what one scheduling invocation did.
type RunSummary struct {
	RunID     string
	Profile   string
	Day       string // local calendar date the slots were scheduled for
	Scheduled int
	Failed    int
}

// ReconcileSummary reports what one reconciliation pass did.
type ReconcileSummary struct {
	Candidates  int // pending keys found
	Queried     int // keys actually queried (bounded by maxBatch)
	Updated     int // rows appended with a real status
	CheckFailed int // rows appended as status_check_failed
}
