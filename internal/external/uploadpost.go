package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"postline/internal/types"
)

// UploadPost API paths.
const (
	uploadPath = "/api/upload"
	photosPath = "/api/upload_photos"
	statusPath = "/api/uploadposts/status"
)

// UploadPostConfig holds the settings for creating an UploadPostClient.
type UploadPostConfig struct {
	APIKey  string
	BaseURL string
	Logger  *slog.Logger
}

// UploadPostClient talks to the Upload-Post scheduling API. Submissions and
// status queries run through separate BaseClients: submissions are never
// retried (a resubmitted publish whose first response was lost would
// double-post), while status queries are idempotent and retry freely.
type UploadPostClient struct {
	submit  *BaseClient
	status  *BaseClient
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewUploadPostClient creates a client. The httpClient's timeout bounds
// every call; a timed-out status query surfaces as an error the reconciler
// records as status_check_failed.
func NewUploadPostClient(httpClient *http.Client, cfg UploadPostConfig) *UploadPostClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadPostClient{
		submit:  NewBaseClient(httpClient, "uploadpost-submit", NoRetryPolicy()),
		status:  NewBaseClient(httpClient, "uploadpost-status", DefaultRetryPolicy()),
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// newUploadPostClientWithBases is the test constructor: it accepts
// pre-configured BaseClients (e.g. with sleepFn stubbed out).
func newUploadPostClientWithBases(submit, status *BaseClient, cfg UploadPostConfig) *UploadPostClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &UploadPostClient{
		submit:  submit,
		status:  status,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// scheduleResponse is the service's wire shape for submissions. Which
// fields are present depends on the outcome; decode keeps that ambiguity
// out of callers by mapping to the types.ScheduleOutcome variants.
type scheduleResponse struct {
	JobID     string `json:"job_id"`
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
	Error     string `json:"error"`
}

// SchedulePost submits one publish-or-schedule request. A transport-level
// failure (unreachable service, timeout, open breaker) returns an error;
// any answered request returns a ScheduleOutcome variant, including
// rejections and undecodable payloads.
func (c *UploadPostClient) SchedulePost(ctx context.Context, req types.ScheduleRequest) (types.ScheduleOutcome, error) {
	endpoint := c.baseURL + uploadPath
	if req.Kind != types.KindReel {
		endpoint = c.baseURL + photosPath
	}

	build := func(ctx context.Context) (*http.Request, error) {
		body, contentType, err := encodeScheduleForm(req)
		if err != nil {
			return nil, err
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", "ApiKey "+c.apiKey)
		httpReq.Header.Set("Content-Type", contentType)
		return httpReq, nil
	}

	statusCode, payload, err := c.submit.do(ctx, build)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeExternalUnavailable, "schedule submission failed", err)
	}

	return decodeScheduleResponse(statusCode, payload), nil
}

// decodeScheduleResponse maps an answered submission onto the outcome
// variants. Success means a 2xx status carrying at least one identifier.
func decodeScheduleResponse(statusCode int, payload []byte) types.ScheduleOutcome {
	raw := string(payload)

	var resp scheduleResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return types.ScheduleMalformed{StatusCode: statusCode, Payload: raw}
	}

	if statusCode >= 200 && statusCode < 300 {
		if resp.JobID == "" && resp.RequestID == "" {
			// Answered 2xx but without the identifiers needed to ever
			// reconcile the attempt.
			return types.ScheduleMalformed{StatusCode: statusCode, Payload: raw}
		}
		return types.ScheduleAccepted{JobID: resp.JobID, RequestID: resp.RequestID, Payload: raw}
	}

	msg := resp.Message
	if msg == "" {
		msg = resp.Error
	}
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	return types.ScheduleRejected{StatusCode: statusCode, Message: msg, Payload: raw}
}

// GetStatus queries the service for the current state of a job. At least
// one of jobID/requestID must be set. Errors (network, non-2xx, or
// unparseable payload) are all "could not determine status" to the caller.
func (c *UploadPostClient) GetStatus(ctx context.Context, jobID, requestID string) (*types.StatusReport, error) {
	if jobID == "" && requestID == "" {
		return nil, types.NewAppError(types.ErrCodeExternalMalformed, "status query requires a job or request id", nil)
	}

	q := url.Values{}
	if requestID != "" {
		q.Set("request_id", requestID)
	}
	if jobID != "" {
		q.Set("job_id", jobID)
	}
	endpoint := c.baseURL + statusPath + "?" + q.Encode()

	build := func(ctx context.Context) (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", "ApiKey "+c.apiKey)
		return httpReq, nil
	}

	statusCode, payload, err := c.status.do(ctx, build)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeExternalUnavailable, "status query failed", err)
	}
	if statusCode < 200 || statusCode >= 300 {
		return nil, types.NewAppError(types.ErrCodeExternalRejected,
			fmt.Sprintf("status query answered HTTP %d: %s", statusCode, truncate(string(payload), 200)), nil)
	}

	var report types.StatusReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, types.NewAppError(types.ErrCodeExternalMalformed, "undecodable status payload", err)
	}
	report.Payload = string(payload)
	return &report, nil
}

// encodeScheduleForm builds the multipart body for a submission: the media
// part(s) plus the scheduling fields. Returns a fresh reader each call so
// the request can be rebuilt.
func encodeScheduleForm(req types.ScheduleRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if req.Kind == types.KindReel {
		if err := attachFile(w, "video", req.VideoPath); err != nil {
			return nil, "", err
		}
	} else {
		for _, p := range req.PhotoPaths {
			if err := attachFile(w, "photos[]", p); err != nil {
				return nil, "", err
			}
		}
	}

	fields := map[string]string{
		"title":          req.Title,
		"user":           req.AccountRef,
		"scheduled_date": req.ScheduledAt,
		"timezone":       req.Timezone,
		"async_upload":   "true",
	}
	if req.Caption != "" {
		fields["caption"] = req.Caption
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", k, err)
		}
	}
	for _, p := range req.Platforms {
		if err := w.WriteField("platform[]", p); err != nil {
			return nil, "", fmt.Errorf("writing platform field: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finalizing form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func attachFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening asset %s: %w", path, err)
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copying asset %s: %w", path, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
