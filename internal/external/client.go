// Package external is the boundary between Postline and the third-party
// posting service. All outbound HTTP goes through BaseClient, which enforces
// consistent resilience behavior: a circuit breaker, bounded retries with
// exponential backoff for idempotent calls, and timeout-bounded requests.
// Responses are decoded explicitly into the closed set of variants defined
// in internal/types; nothing downstream probes raw JSON fields.
package external

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// RetryPolicy configures retry behavior for a BaseClient. MaxRetries of
// zero disables retries entirely; schedule submissions use that, since
// resubmitting a publish request whose response was lost could double-post.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy suits idempotent status queries.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    500 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// NoRetryPolicy disables retries; used for non-idempotent submissions.
func NoRetryPolicy() RetryPolicy {
	return RetryPolicy{}
}

// buildRequest constructs a fresh request for each attempt. Multipart
// bodies cannot be replayed, so retried calls rebuild from scratch.
type buildRequest func(ctx context.Context) (*http.Request, error)

// BaseClient wraps an *http.Client and a circuit breaker to enforce
// consistent resilience patterns on outbound calls to one upstream concern.
type BaseClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	retry   RetryPolicy
	sleepFn func(time.Duration) // injectable for tests
}

// BaseClientOption is a functional option for configuring a BaseClient.
type BaseClientOption func(*BaseClient)

// WithSleepFunc overrides the sleep between retries; for tests.
func WithSleepFunc(fn func(time.Duration)) BaseClientOption {
	return func(c *BaseClient) {
		c.sleepFn = fn
	}
}

// NewBaseClient creates a BaseClient. The breaker opens after five
// consecutive failures and half-opens after thirty seconds.
func NewBaseClient(httpClient *http.Client, breakerName string, retry RetryPolicy, opts ...BaseClientOption) *BaseClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	bc := &BaseClient{
		client:  httpClient,
		breaker: cb,
		retry:   retry,
		sleepFn: time.Sleep,
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc
}

// do executes the request with breaker protection and the configured retry
// policy. Retries trigger on transport errors and on HTTP 429/5xx. The
// final response body is returned read and closed; callers never touch the
// connection.
func (c *BaseClient) do(ctx context.Context, build buildRequest) (status int, body []byte, err error) {
	attempts := c.retry.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.sleepFn(c.backoff(attempt))
		}

		status, body, err = c.doOnce(ctx, build)
		if err == nil && !retryableStatus(status) {
			return status, body, nil
		}
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
	}
	if err != nil {
		return 0, nil, err
	}
	return status, body, nil
}

func (c *BaseClient) doOnce(ctx context.Context, build buildRequest) (int, []byte, error) {
	req, err := build(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.client.Do(req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, nil, fmt.Errorf("circuit breaker open: %w", err)
		}
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (c *BaseClient) backoff(attempt int) time.Duration {
	wait := time.Duration(float64(c.retry.MinWait) * math.Pow(2, float64(attempt-1)))
	if wait > c.retry.MaxWait {
		wait = c.retry.MaxWait
	}
	return wait
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
