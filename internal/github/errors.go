package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind classifies upstream failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalid
	KindRateLimited
	KindUpstream
	KindNetwork
	KindDecode
	// KindPaced means the local pacer gave up before the request was sent.
	KindPaced
	// KindCanceled means the caller's context ended during the attempt.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid"
	case KindRateLimited:
		return "rate_limited"
	case KindUpstream:
		return "upstream"
	case KindNetwork:
		return "network"
	case KindDecode:
		return "decode"
	case KindPaced:
		return "paced"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ResetUnknown is the reset hint when GitHub did not say when the quota resets.
const ResetUnknown = "unknown"

// APIError is returned for every failed upstream call.
type APIError struct {
	Kind       Kind
	StatusCode int
	Message    string
	// ResetAt is when the rate-limit window resets; zero means unknown.
	ResetAt time.Time
	Err     error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString("github: ")
	b.WriteString(e.Kind.String())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (%d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() error { return e.Err }

// ResetHint returns ResetAt in RFC 3339, or "unknown".
func (e *APIError) ResetHint() string {
	if e.ResetAt.IsZero() {
		return ResetUnknown
	}
	return e.ResetAt.UTC().Format(time.RFC3339)
}

// KindOf returns the Kind of the first *APIError in err's chain.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// IsRateLimited reports whether err is a rate-limit rejection.
func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }

// IsNotFound reports whether err means the user does not exist.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// shouldFallback reports whether a primary profile failure warrants the
// secondary path.
func shouldFallback(err error) bool {
	k := KindOf(err)
	return k == KindNotFound || k == KindInvalid
}

// IsServiceFailure reports failures that say something about GitHub's
// health: 5xx and transport errors. Used to drive the circuit breaker.
// Pacing and the caller's own cancellation or deadline never count.
func IsServiceFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	k := KindOf(err)
	return k == KindUpstream || k == KindNetwork
}

type errorBody struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}

const maxErrorBody = 64 << 10

// Classify converts a non-2xx response into an *APIError. It consumes the body.
func Classify(resp *http.Response) *APIError {
	return classifyAt(resp, time.Now())
}

func classifyAt(resp *http.Response, now time.Time) *APIError {
	if resp == nil {
		return &APIError{Kind: KindUnknown, Message: "nil response"}
	}

	var body errorBody
	if resp.Body != nil {
		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err == nil {
			if jerr := json.Unmarshal(raw, &body); jerr != nil {
				body.Message = strings.TrimSpace(string(raw))
			}
		}
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Message: body.Message}
	switch {
	case isRateLimitResponse(resp, body.Message):
		apiErr.Kind = KindRateLimited
		apiErr.ResetAt = resetTime(resp.Header, now)
	case resp.StatusCode == http.StatusNotFound:
		apiErr.Kind = KindNotFound
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		apiErr.Kind = KindInvalid
	default:
		apiErr.Kind = KindUpstream
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func isRateLimitResponse(resp *http.Response, message string) bool {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		if strings.Contains(strings.ToLower(message), "rate limit exceeded") {
			return true
		}
		return resp.Header.Get("X-RateLimit-Remaining") == "0"
	}
	return false
}

// resetTime reads X-RateLimit-Reset (epoch seconds), then Retry-After
// (delta seconds). Zero means unknown.
func resetTime(h http.Header, now time.Time) time.Time {
	if v := strings.TrimSpace(h.Get("X-RateLimit-Reset")); v != "" {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil && secs > 0 {
			return time.Unix(secs, 0).UTC()
		}
	}
	if v := strings.TrimSpace(h.Get("Retry-After")); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return now.Add(time.Duration(secs) * time.Second).UTC()
		}
	}
	return time.Time{}
}
