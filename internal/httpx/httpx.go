// Package httpx runs single outbound HTTP attempts with an optional pacing
// hook and an attempt observer. Retrying is the caller's decision.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/quhie/Coding-Challenge-Skipli/internal/logger"
	"github.com/quhie/Coding-Challenge-Skipli/internal/metrics"
)

// PreAttempt lets callers run logic (e.g., rate limiting) before the request
// is sent; a returned error aborts the attempt.
type PreAttempt func(ctx context.Context) error

// AttemptInfo describes a single attempt outcome.
type AttemptInfo struct {
	Method   string
	URL      string
	Status   int
	Err      error
	Duration time.Duration
}

// ErrNotSent wraps PreAttempt failures: the request never left the process.
var ErrNotSent = errors.New("httpx: request not sent")

// Observer callback to report attempt telemetry.
type Observer func(info AttemptInfo)

// Doer sends requests through Client after running Pre.
type Doer struct {
	Client      *http.Client
	Pre         PreAttempt
	Observer    Observer
	LogAttempts bool
}

// New returns a Doer using an http.Client with the given timeout.
func New(timeout time.Duration, pre PreAttempt, obs Observer, logAttempts bool) *Doer {
	return &Doer{
		Client:      &http.Client{Timeout: timeout},
		Pre:         pre,
		Observer:    obs,
		LogAttempts: logAttempts,
	}
}

// Do performs exactly one attempt. Non-2xx responses are returned as-is.
func (d *Doer) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if d.Pre != nil {
		if err := d.Pre(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotSent, err)
		}
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	start := time.Now()
	resp, err := client.Do(req)
	info := AttemptInfo{
		Method:   req.Method,
		URL:      req.URL.Redacted(),
		Err:      err,
		Duration: time.Since(start),
	}
	if resp != nil {
		info.Status = resp.StatusCode
	}

	if d.LogAttempts {
		l := logger.WithComponent("httpx")
		if err != nil {
			l.WarnContext(ctx, "upstream attempt failed", "method", info.Method, "url", info.URL, "duration", info.Duration, "error", err)
		} else {
			l.InfoContext(ctx, "upstream attempt", "method", info.Method, "url", info.URL, "status", info.Status, "duration", info.Duration)
		}
	}
	if d.Observer != nil {
		d.Observer(info)
	}
	return resp, err
}

// LimiterPre paces attempts through l. A nil limiter disables pacing.
func LimiterPre(l *rate.Limiter) PreAttempt {
	if l == nil {
		return nil
	}
	return func(ctx context.Context) error {
		if l.Allow() {
			return nil
		}
		metrics.UpstreamPacingWaits.Inc()
		return l.Wait(ctx)
	}
}
