package types

// AttemptStatus is the lifecycle state of a publication attempt as recorded
// in the ledger. A status change never mutates an existing row; it is
// represented by appending a new row for the same correlation key.
type AttemptStatus string

const (
	// StatusScheduled means the posting service accepted the schedule request.
	StatusScheduled AttemptStatus = "scheduled"
	// StatusInProgress means the posting service reports the publish underway.
	StatusInProgress AttemptStatus = "in_progress"
	// StatusConfirmed is the terminal success state.
	StatusConfirmed AttemptStatus = "confirmed"
	// StatusFailed is the terminal failure state. It covers both rejected
	// submissions and publishes the service reported as failed.
	StatusFailed AttemptStatus = "failed"
	// StatusCheckFailed means the reconciler could not reach or parse the
	// posting service for this key. It is informational: the effective state
	// of the key remains the last real status seen.
	StatusCheckFailed AttemptStatus = "status_check_failed"
)

// Terminal reports whether the status ends the attempt's lifecycle.
func (s AttemptStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Informational reports whether the status is a reconciler bookkeeping row
// that does not replace the last real status of its key.
func (s AttemptStatus) Informational() bool {
	return s == StatusCheckFailed
}

// ScheduledOrBetter reports whether the status counts toward coverage:
// the attempt was accepted and has not failed.
func (s AttemptStatus) ScheduledOrBetter() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusConfirmed:
		return true
	}
	return false
}

// PostKind selects the media shape of a slot's post.
type PostKind string

const (
	KindReel     PostKind = "reel"     // single video
	KindImage    PostKind = "image"    // single photo
	KindCarousel PostKind = "carousel" // ordered multi-photo post
)

// PlatformMulti is the platform marker written to the ledger when one
// external request targets more than one platform.
const PlatformMulti = "multi"

// CaptionFamily selects how captions are built for a profile.
type CaptionFamily string

const (
	// CaptionPromo builds a templated promotional caption with hashtags.
	CaptionPromo CaptionFamily = "promo"
	// CaptionFilename derives the caption from the asset's file name.
	CaptionFilename CaptionFamily = "filename"
)
