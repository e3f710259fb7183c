package types

import (
	"fmt"
	"strings"
	"time"
)

// WallClockLayout is the layout of naive local timestamps stored in the
// ledger's scheduled_at column. The value carries no offset and is only
// meaningful together with the timezone column.
const WallClockLayout = "2006-01-02T15:04:05"

// PostingAttempt is one ledger row: a single publication attempt, or a later
// status observation for one. The ledger is append-only, so the full history
// of an attempt is the ordered sequence of rows sharing a correlation key.
type PostingAttempt struct {
	RecordedAt      time.Time // instant the row was written (not the publish time)
	Profile         string    // logical publishing identity
	RunID           string    // correlates rows from one scheduler invocation
	VideoFile       string    // video asset file name, if any
	ImageFile       string    // image asset file name(s), "|"-joined for carousels
	SourceVideoPath string    // intake path the video was consumed from
	SourceImagePath string    // intake path(s) of the image asset(s), "|"-joined
	AccountRef      string    // posting-service account the request was made as
	Platform        string    // one platform name, or PlatformMulti
	Status          AttemptStatus
	Caption         string
	ScheduledAt     string // naive local wall clock (WallClockLayout)
	Timezone        string // IANA zone ScheduledAt is expressed in
	JobID           string // posting-service job identifier
	RequestID       string // posting-service request identifier
	RawResponse     string // verbatim service payload that produced this row
	Error           string // populated only for failure rows
}

// CorrelationKey groups rows describing the same logical attempt over time.
// Precedence: request id, then job id, then profile+scheduled time (for rows
// written before the service assigned any identifier). Returns "" when no
// component is available; such rows cannot be correlated.
func (a *PostingAttempt) CorrelationKey() string {
	switch {
	case a.RequestID != "":
		return "r:" + a.RequestID
	case a.JobID != "":
		return "j:" + a.JobID
	case a.Profile != "" && a.ScheduledAt != "":
		return "p:" + a.Profile + "@" + a.ScheduledAt
	}
	return ""
}

// AssetRefs returns the file names this attempt published, in post order.
func (a *PostingAttempt) AssetRefs() []string {
	if a.VideoFile != "" {
		return []string{a.VideoFile}
	}
	if a.ImageFile == "" {
		return nil
	}
	return strings.Split(a.ImageFile, "|")
}

// Slot is one configured publish time in a profile's daily cadence.
type Slot struct {
	Hour       int
	Minute     int
	Title      string
	Kind       PostKind
	AssetCount int // files consumed from the queue; 1 unless Kind is carousel
}

// AssetSourceConfig describes a profile's consumable file queue.
type AssetSourceConfig struct {
	Dir     string // intake directory
	UsedDir string // consumed assets are moved here to prevent reuse
	Prefix  string // file name prefix filter (case-insensitive)
	Ext     string // file extension filter including the dot, e.g. ".mp4"
}

// Profile is a named publishing identity. Profiles are configuration, loaded
// once per run; the ledger references them only by Key.
type Profile struct {
	Key            string
	AccountRef     string   // posting-service managed account
	Timezone       string   // IANA zone the cadence is expressed in
	Platforms      []string // default target platforms
	Slots          []Slot   // daily cadence, ascending by time of day
	CaptionFamily  CaptionFamily
	Source         AssetSourceConfig
	Monitored      bool // include in the coverage check
	ExpectedPerDay int  // quota for the coverage check; defaults to len(Slots)
	QuotaIfQueued  bool // expected drops to 0 for days the intake queue is empty
}

// LedgerPlatform returns the platform value written to the ledger for this
// profile's requests: the single platform name, or the multi marker.
func (p *Profile) LedgerPlatform() string {
	if len(p.Platforms) == 1 {
		return p.Platforms[0]
	}
	return PlatformMulti
}

// CoverageCheck is the expected-vs-actual result for one monitored profile
// on one local calendar day.
type CoverageCheck struct {
	Key      string `json:"key"`
	Timezone string `json:"timezone"`
	Day      string `json:"day"` // local calendar date, YYYY-MM-DD
	Expected int    `json:"expected"`
	Actual   int    `json:"actual"`
}

// Deficit returns how many attempts are missing for the check's day.
func (c CoverageCheck) Deficit() int {
	if d := c.Expected - c.Actual; d > 0 {
		return d
	}
	return 0
}

// CoverageReport is the health checker's output. It is derived on demand and
// never persisted; the ledger remains authoritative.
type CoverageReport struct {
	OK      bool            `json:"ok"`
	Source  string          `json:"source"` // "mirror" or "ledger"
	Checks  []CoverageCheck `json:"checks"`
	Missing []CoverageCheck `json:"missing"`
}

// Err returns a coverage-deficit error when the report is not OK, suitable
// for turning into a non-zero process exit.
func (r *CoverageReport) Err() error {
	if r.OK {
		return nil
	}
	keys := make([]string, 0, len(r.Missing))
	for _, m := range r.Missing {
		keys = append(keys, fmt.Sprintf("%s (%d/%d)", m.Key, m.Actual, m.Expected))
	}
	return NewAppError(ErrCodeCoverageDeficit,
		"under-scheduled: "+strings.Join(keys, ", "), nil)
}
