package types

import "fmt"

// ScheduleRequest is the input to one schedule-publish submission against
// the posting service. ScheduledAt is a naive local timestamp paired with
// Timezone, exactly as stored in the ledger.
type ScheduleRequest struct {
	AccountRef  string
	Title       string
	Caption     string
	Platforms   []string
	ScheduledAt string
	Timezone    string
	Kind        PostKind
	VideoPath   string   // set when Kind is reel
	PhotoPaths  []string // set when Kind is image or carousel, in post order
}

// ScheduleOutcome is the decoded result of a schedule submission. The
// posting service's response shapes are modeled as a closed set of variants
// so callers match exhaustively instead of probing fields.
type ScheduleOutcome interface {
	scheduleOutcome()
	// Raw returns the verbatim response payload for the ledger's forensics
	// column.
	Raw() string
}

// ScheduleAccepted is the success variant: the service accepted the request
// and returned identifiers to query its status later. Either identifier may
// be empty, but not both.
type ScheduleAccepted struct {
	JobID     string
	RequestID string
	Payload   string
}

func (ScheduleAccepted) scheduleOutcome() {}

// Raw implements ScheduleOutcome.
func (o ScheduleAccepted) Raw() string { return o.Payload }

// ScheduleRejected is the error variant: the service answered with an error
// payload (or a non-2xx status with a parseable body).
type ScheduleRejected struct {
	StatusCode int
	Message    string
	Payload    string
}

func (ScheduleRejected) scheduleOutcome() {}

// Raw implements ScheduleOutcome.
func (o ScheduleRejected) Raw() string { return o.Payload }

// Error renders the rejection for the ledger's error column.
func (o ScheduleRejected) Error() string {
	return fmt.Sprintf("posting service rejected request (HTTP %d): %s", o.StatusCode, o.Message)
}

// ScheduleMalformed is the variant for responses that could not be decoded
// at all. The payload is preserved verbatim.
type ScheduleMalformed struct {
	StatusCode int
	Payload    string
}

func (ScheduleMalformed) scheduleOutcome() {}

// Raw implements ScheduleOutcome.
func (o ScheduleMalformed) Raw() string { return o.Payload }

// PlatformResult is the per-platform outcome inside a status report.
type PlatformResult struct {
	Platform string `json:"platform"`
	Success  bool   `json:"success"`
	Message  string `json:"message"`
}

// StatusReport is the posting service's answer to a status query, before
// normalization into the local status vocabulary.
type StatusReport struct {
	Status     string           `json:"status"`
	Results    []PlatformResult `json:"results"`
	LastUpdate string           `json:"last_update"`
	Payload    string           `json:"-"` // verbatim response body
}

// Summary collapses the per-platform results into counts and a short
// human-readable message like "instagram:ok() | tiktok:fail(expired token)".
func (r *StatusReport) Summary() (okCount, failCount int, msg string) {
	parts := make([]string, 0, len(r.Results))
	for _, res := range r.Results {
		verdict := "ok"
		if res.Success {
			okCount++
		} else {
			failCount++
			verdict = "fail"
		}
		parts = append(parts, fmt.Sprintf("%s:%s(%s)", res.Platform, verdict, res.Message))
	}
	if len(parts) == 0 {
		return 0, 0, ""
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += " | " + p
	}
	return okCount, failCount, out
}
