package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postline/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fixedNow is 2026-08-31 18:00 UTC = 15:00 in Sao Paulo, so tomorrow there
// is 2026-09-01.
var fixedNow = time.Date(2026, 8, 31, 18, 0, 0, 0, time.UTC)

// ============================================================
// Mock: AttemptLedger
// ============================================================

type mockLedger struct {
	rows      []types.PostingAttempt
	appendErr error
}

func (m *mockLedger) Append(row types.PostingAttempt) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.rows = append(m.rows, row)
	return nil
}

func (m *mockLedger) ReadAll() ([]types.PostingAttempt, error) {
	return m.rows, nil
}

// ============================================================
// Mock: PostingClient
// ============================================================

type mockClient struct {
	calls []types.ScheduleRequest
	// failOn maps the 1-based call number to a forced failure mode:
	// "reject", "malformed", or "transport".
	failOn map[int]string

	statusCalls   int
	statusByReqID map[string]*types.StatusReport
	statusErrByID map[string]error
	queried       []string
}

func (m *mockClient) SchedulePost(_ context.Context, req types.ScheduleRequest) (types.ScheduleOutcome, error) {
	m.calls = append(m.calls, req)
	n := len(m.calls)
	switch m.failOn[n] {
	case "reject":
		return types.ScheduleRejected{StatusCode: 400, Message: "no managed user", Payload: `{"message":"no managed user"}`}, nil
	case "malformed":
		return types.ScheduleMalformed{StatusCode: 200, Payload: "<html>"}, nil
	case "transport":
		return nil, types.NewAppError(types.ErrCodeExternalUnavailable, "connection refused", nil)
	}
	return types.ScheduleAccepted{
		JobID:     fmt.Sprintf("job-%d", n),
		RequestID: fmt.Sprintf("req-%d", n),
		Payload:   fmt.Sprintf(`{"job_id":"job-%d","request_id":"req-%d"}`, n, n),
	}, nil
}

func (m *mockClient) GetStatus(_ context.Context, jobID, requestID string) (*types.StatusReport, error) {
	m.statusCalls++
	m.queried = append(m.queried, requestID)
	if err, ok := m.statusErrByID[requestID]; ok {
		return nil, err
	}
	if rep, ok := m.statusByReqID[requestID]; ok {
		return rep, nil
	}
	return &types.StatusReport{Status: "in_progress"}, nil
}

// ============================================================
// Mock: AssetSource
// ============================================================

type mockSource struct {
	ready    []string
	readyErr error
	consumed []string
}

func (m *mockSource) Ready(n int) ([]string, error) {
	if m.readyErr != nil {
		return nil, m.readyErr
	}
	if n > 0 && len(m.ready) > n {
		return m.ready[:n], nil
	}
	return m.ready, nil
}

func (m *mockSource) Consume(path string) error {
	m.consumed = append(m.consumed, path)
	return nil
}

// ============================================================
// Fixtures
// ============================================================

func sixSlotProfile() types.Profile {
	hours := []int{10, 13, 16, 19, 21, 23}
	slots := make([]types.Slot, len(hours))
	for i, h := range hours {
		slots[i] = types.Slot{Hour: h, Title: fmt.Sprintf("Reels X - %02d:00", h), Kind: types.KindReel, AssetCount: 1}
	}
	return types.Profile{
		Key:           "x",
		AccountRef:    "x_account",
		Timezone:      "America/Sao_Paulo",
		Platforms:     []string{"instagram"},
		Slots:         slots,
		CaptionFamily: types.CaptionPromo,
	}
}

func sixAssets() []string {
	out := make([]string, 6)
	for i := range out {
		out[i] = fmt.Sprintf("/videos/X_REEL_%03d.mp4", i+1)
	}
	return out
}

func newTestScheduler(l *mockLedger, c *mockClient, s *mockSource, p types.Profile) *Scheduler {
	return NewScheduler(SchedulerConfig{
		Ledger:  l,
		Client:  c,
		Source:  s,
		Profile: p,
		Now:     func() time.Time { return fixedNow },
		Logger:  testLogger(),
	})
}

// ============================================================
// Tests
// ============================================================

func TestScheduleNextDaySixSlots(t *testing.T) {
	l := &mockLedger{}
	c := &mockClient{}
	s := &mockSource{ready: sixAssets()}

	summary, err := newTestScheduler(l, c, s, sixSlotProfile()).ScheduleNextDay(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Scheduled)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, "2026-09-01", summary.Day)
	require.Len(t, l.rows, 6)

	wantHours := []int{10, 13, 16, 19, 21, 23}
	for i, row := range l.rows {
		assert.Equal(t, types.StatusScheduled, row.Status)
		assert.Equal(t, fmt.Sprintf("2026-09-01T%02d:00:00", wantHours[i]), row.ScheduledAt)
		assert.Equal(t, "America/Sao_Paulo", row.Timezone)
		assert.Equal(t, summary.RunID, row.RunID)
		assert.NotEmpty(t, row.JobID)
		assert.NotEmpty(t, row.RawResponse)
		assert.Equal(t, "instagram", row.Platform)
	}

	// Assets consumed in queue order, all six.
	assert.Equal(t, sixAssets(), s.consumed)
}

func TestScheduleNextDayPartialFailureIsolation(t *testing.T) {
	l := &mockLedger{}
	c := &mockClient{failOn: map[int]string{3: "transport"}}
	s := &mockSource{ready: sixAssets()}

	summary, err := newTestScheduler(l, c, s, sixSlotProfile()).ScheduleNextDay(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Scheduled)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, l.rows, 6)

	failed := l.rows[2]
	assert.Equal(t, types.StatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "connection refused")
	assert.Empty(t, failed.JobID)

	// The failed slot's asset stays in the queue for the next run.
	assert.NotContains(t, s.consumed, sixAssets()[2])
	assert.Len(t, s.consumed, 5)
}

func TestScheduleNextDayRejectedAndMalformed(t *testing.T) {
	l := &mockLedger{}
	c := &mockClient{failOn: map[int]string{1: "reject", 2: "malformed"}}
	s := &mockSource{ready: sixAssets()}

	summary, err := newTestScheduler(l, c, s, sixSlotProfile()).ScheduleNextDay(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Scheduled)
	assert.Equal(t, 2, summary.Failed)

	assert.Equal(t, types.StatusFailed, l.rows[0].Status)
	assert.Contains(t, l.rows[0].Error, "no managed user")
	assert.Equal(t, `{"message":"no managed user"}`, l.rows[0].RawResponse)

	assert.Equal(t, types.StatusFailed, l.rows[1].Status)
	assert.Contains(t, l.rows[1].Error, "undecodable")
	assert.Equal(t, "<html>", l.rows[1].RawResponse)
}

func TestScheduleNextDayAssetShortageAborts(t *testing.T) {
	l := &mockLedger{}
	c := &mockClient{}
	s := &mockSource{ready: sixAssets()[:4]}

	_, err := newTestScheduler(l, c, s, sixSlotProfile()).ScheduleNextDay(context.Background())
	require.Error(t, err)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeAssetShortage, appErr.Code)

	// Nothing submitted, nothing recorded, nothing consumed.
	assert.Empty(t, c.calls)
	assert.Empty(t, l.rows)
	assert.Empty(t, s.consumed)
}

func TestScheduleNextDayLedgerWriteFailureAborts(t *testing.T) {
	l := &mockLedger{appendErr: types.NewAppError(types.ErrCodeLedgerWrite, "disk full", nil)}
	c := &mockClient{}
	s := &mockSource{ready: sixAssets()}

	_, err := newTestScheduler(l, c, s, sixSlotProfile()).ScheduleNextDay(context.Background())
	require.Error(t, err)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeLedgerWrite, appErr.Code)

	// The submission happened but its asset was not consumed, because the
	// scheduled row could not be recorded first.
	assert.Len(t, c.calls, 1)
	assert.Empty(t, s.consumed)
}

func TestScheduleNextDayCarouselSlot(t *testing.T) {
	profile := sixSlotProfile()
	profile.Slots = []types.Slot{
		{Hour: 9, Title: "Quick tips", Kind: types.KindCarousel, AssetCount: 3},
		{Hour: 19, Title: "Evening reel", Kind: types.KindReel, AssetCount: 1},
	}

	l := &mockLedger{}
	c := &mockClient{}
	ready := []string{"/out/c_1.png", "/out/c_2.png", "/out/c_3.png", "/out/r_1.mp4"}
	s := &mockSource{ready: ready}

	summary, err := newTestScheduler(l, c, s, profile).ScheduleNextDay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Scheduled)

	carousel := l.rows[0]
	assert.Equal(t, "c_1.png|c_2.png|c_3.png", carousel.ImageFile)
	assert.Equal(t, strings.Join(ready[:3], "|"), carousel.SourceImagePath)
	assert.Empty(t, carousel.VideoFile)
	require.Len(t, c.calls, 2)
	assert.Equal(t, ready[:3], c.calls[0].PhotoPaths)

	reel := l.rows[1]
	assert.Equal(t, "r_1.mp4", reel.VideoFile)
	assert.Equal(t, "/out/r_1.mp4", reel.SourceVideoPath)
	assert.Equal(t, "/out/r_1.mp4", c.calls[1].VideoPath)

	assert.Equal(t, ready, s.consumed)
}

func TestScheduleNextDayMultiPlatformMarker(t *testing.T) {
	profile := sixSlotProfile()
	profile.Platforms = []string{"tiktok", "instagram"}
	profile.Slots = profile.Slots[:1]

	l := &mockLedger{}
	c := &mockClient{}
	s := &mockSource{ready: sixAssets()[:1]}

	_, err := newTestScheduler(l, c, s, profile).ScheduleNextDay(context.Background())
	require.NoError(t, err)
	require.Len(t, l.rows, 1)
	assert.Equal(t, types.PlatformMulti, l.rows[0].Platform)
	assert.Equal(t, []string{"tiktok", "instagram"}, c.calls[0].Platforms)
}

func TestScheduleNextDayQueueReadFailureAborts(t *testing.T) {
	l := &mockLedger{}
	c := &mockClient{}
	s := &mockSource{readyErr: errors.New("permission denied")}

	_, err := newTestScheduler(l, c, s, sixSlotProfile()).ScheduleNextDay(context.Background())
	require.Error(t, err)
	assert.Empty(t, l.rows)
}
