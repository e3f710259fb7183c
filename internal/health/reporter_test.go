package health

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postline/internal/db"
	"postline/internal/types"
)

type fakeLedger struct {
	rows []types.PostingAttempt
	err  error
}

func (f *fakeLedger) ReadAll() ([]types.PostingAttempt, error) { return f.rows, f.err }

type fakeMirror struct {
	rows []db.MirrorRow
	err  error
	got  int
}

func (f *fakeMirror) RecentRows(_ context.Context, limit int) ([]db.MirrorRow, error) {
	f.got = limit
	return f.rows, f.err
}

func newTestReporter(l *fakeLedger, m MirrorReader) *Reporter {
	cfg := ReporterConfig{
		Checker: newTestChecker([]types.Profile{monitoredProfile("teo", 1)}, nil),
		Ledger:  l,
		Logger:  slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
	}
	if m != nil {
		cfg.Mirror = m
	}
	return NewReporter(cfg)
}

func TestReportPrefersMirror(t *testing.T) {
	// 13:00 UTC on Sep 1 is 10:00 in São Paulo.
	scheduled := time.Date(2026, 9, 1, 13, 0, 0, 0, time.UTC)
	tz := "America/Sao_Paulo"
	job := "job-1"
	mirror := &fakeMirror{rows: []db.MirrorRow{{
		At: fixedNow, Profile: "teo", Status: "scheduled",
		ScheduledAt: &scheduled, Timezone: &tz, JobID: &job,
	}}}
	ledger := &fakeLedger{err: assert.AnError} // must not be consulted

	report, err := newTestReporter(ledger, mirror).Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mirror", report.Source)
	assert.True(t, report.OK)
	assert.Equal(t, defaultMirrorLimit, mirror.got)
}

func TestReportReducesMirrorRowsInLedgerOrder(t *testing.T) {
	// The mirror serves rows newest-first. The attempt went scheduled then
	// failed, so coverage must see the failure, not the booking.
	scheduled := time.Date(2026, 9, 1, 13, 0, 0, 0, time.UTC)
	tz := "America/Sao_Paulo"
	job := "job-1"
	mirror := &fakeMirror{rows: []db.MirrorRow{
		{
			At: fixedNow.Add(10 * time.Minute), Profile: "teo", Status: "failed",
			ScheduledAt: &scheduled, Timezone: &tz, JobID: &job,
		},
		{
			At: fixedNow, Profile: "teo", Status: "scheduled",
			ScheduledAt: &scheduled, Timezone: &tz, JobID: &job,
		},
	}}

	report, err := newTestReporter(&fakeLedger{}, mirror).Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mirror", report.Source)
	assert.False(t, report.OK)
	require.Len(t, report.Checks, 1)
	assert.Equal(t, 0, report.Checks[0].Actual)
}

func TestReportFallsBackToLedgerOnMirrorError(t *testing.T) {
	ledger := &fakeLedger{rows: []types.PostingAttempt{
		scheduledRow("teo", "r1", "2026-09-01T10:00:00", types.StatusScheduled),
	}}

	report, err := newTestReporter(ledger, &fakeMirror{err: assert.AnError}).Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ledger", report.Source)
	assert.True(t, report.OK)
}

func TestReportWithoutMirrorReadsLedger(t *testing.T) {
	ledger := &fakeLedger{}

	report, err := newTestReporter(ledger, nil).Report(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ledger", report.Source)
	assert.False(t, report.OK) // nothing scheduled for tomorrow
}

func TestReportFailsWhenBothSourcesFail(t *testing.T) {
	ledger := &fakeLedger{err: assert.AnError}

	_, err := newTestReporter(ledger, &fakeMirror{err: assert.AnError}).Report(context.Background())
	require.ErrorIs(t, err, assert.AnError)
}
