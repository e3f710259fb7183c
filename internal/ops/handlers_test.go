package ops

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postline/internal/types"
)

// ==========================================
// Mocks
// ==========================================

type mockLedger struct {
	rows    []types.PostingAttempt
	err     error
	gotTail int
}

func (m *mockLedger) Tail(n int) ([]types.PostingAttempt, error) {
	m.gotTail = n
	return m.rows, m.err
}

type mockCoverage struct {
	report *types.CoverageReport
	err    error
}

func (m *mockCoverage) Report(context.Context) (*types.CoverageReport, error) {
	return m.report, m.err
}

func newTestServer(t *testing.T, ledger *mockLedger, coverage *mockCoverage) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	srv := httptest.NewServer(NewRouter(NewHandler(ledger, coverage), logger))
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

// ==========================================
// Tests
// ==========================================

func TestGetPostingLogReturnsLedgerTail(t *testing.T) {
	ledger := &mockLedger{rows: []types.PostingAttempt{{
		RecordedAt:  time.Date(2026, 8, 31, 18, 0, 0, 0, time.UTC),
		Profile:     "teo",
		Status:      types.StatusScheduled,
		ScheduledAt: "2026-09-01T10:00:00",
		Timezone:    "America/Sao_Paulo",
		JobID:       "job-1",
	}}}
	srv := newTestServer(t, ledger, &mockCoverage{})

	var body struct {
		Data struct {
			Count int              `json:"count"`
			Rows  []map[string]any `json:"rows"`
		} `json:"data"`
	}
	status := getJSON(t, srv.URL+"/api/posting-log?limit=5", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 5, ledger.gotTail)
	assert.Equal(t, 1, body.Data.Count)
	require.Len(t, body.Data.Rows, 1)
	assert.Equal(t, "teo", body.Data.Rows[0]["profile"])
	assert.Equal(t, "scheduled", body.Data.Rows[0]["status"])
	assert.Equal(t, "job-1", body.Data.Rows[0]["external_job_id"])
	assert.Equal(t, "2026-09-01T10:00:00", body.Data.Rows[0]["scheduled_at"])
	assert.NotContains(t, body.Data.Rows[0], "raw_response")
}

func TestGetPostingLogDefaultAndCappedLimits(t *testing.T) {
	ledger := &mockLedger{}
	srv := newTestServer(t, ledger, &mockCoverage{})

	var body map[string]any
	status := getJSON(t, srv.URL+"/api/posting-log", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, defaultLogLimit, ledger.gotTail)

	getJSON(t, srv.URL+"/api/posting-log?limit=999999", &body)
	assert.Equal(t, maxLogLimit, ledger.gotTail)
}

func TestGetPostingLogRejectsBadLimit(t *testing.T) {
	srv := newTestServer(t, &mockLedger{}, &mockCoverage{})

	for _, limit := range []string{"abc", "0", "-3"} {
		var body APIErrorResponse
		status := getJSON(t, srv.URL+"/api/posting-log?limit="+limit, &body)
		assert.Equal(t, http.StatusBadRequest, status, "limit=%s", limit)
		assert.Equal(t, "invalid_request", body.Error.Code)
	}
}

func TestGetPostingLogLedgerErrorMapsTo503(t *testing.T) {
	ledger := &mockLedger{err: types.NewAppError(types.ErrCodeLedgerRead, "cannot read ledger", nil)}
	srv := newTestServer(t, ledger, &mockCoverage{})

	var body APIErrorResponse
	status := getJSON(t, srv.URL+"/api/posting-log", &body)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, string(types.ErrCodeLedgerRead), body.Error.Code)
}

func TestGetPipelineHealthReturnsReport(t *testing.T) {
	coverage := &mockCoverage{report: &types.CoverageReport{
		OK:     false,
		Source: "ledger",
		Checks: []types.CoverageCheck{
			{Key: "teo", Timezone: "America/Sao_Paulo", Day: "2026-09-01", Expected: 6, Actual: 4},
		},
		Missing: []types.CoverageCheck{
			{Key: "teo", Timezone: "America/Sao_Paulo", Day: "2026-09-01", Expected: 6, Actual: 4},
		},
	}}
	srv := newTestServer(t, &mockLedger{}, coverage)

	var body struct {
		Data types.CoverageReport `json:"data"`
	}
	status := getJSON(t, srv.URL+"/api/pipeline-health", &body)

	// Deficits are data, not transport failures: still a 200.
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, body.Data.OK)
	assert.Equal(t, "ledger", body.Data.Source)
	require.Len(t, body.Data.Missing, 1)
	assert.Equal(t, 2, body.Data.Missing[0].Deficit())
}

func TestGetPipelineHealthReportErrorMapsTo503(t *testing.T) {
	coverage := &mockCoverage{err: types.NewAppError(types.ErrCodeMirrorDB, "mirror unreachable", nil)}
	srv := newTestServer(t, &mockLedger{}, coverage)

	var body APIErrorResponse
	status := getJSON(t, srv.URL+"/api/pipeline-health", &body)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, string(types.ErrCodeMirrorDB), body.Error.Code)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &mockLedger{}, &mockCoverage{})

	var body map[string]string
	status := getJSON(t, srv.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}
