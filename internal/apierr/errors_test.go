package apierr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quhie/Coding-Challenge-Skipli/internal/logger"
)

func TestNew(t *testing.T) {
	err := New(ErrGitHubNotFound, "missing", http.StatusNotFound)
	if err.Code != ErrGitHubNotFound {
		t.Errorf("expected code %s, got %s", ErrGitHubNotFound, err.Code)
	}
	if err.Status() != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, err.Status())
	}
	if err.Error() != "GITHUB_NOT_FOUND: missing" {
		t.Errorf("unexpected error string %q", err.Error())
	}
}

func TestWithDetailsMerges(t *testing.T) {
	err := New(ErrValidationInvalidValue, "bad", http.StatusBadRequest).
		WithDetails(map[string]interface{}{"field": "page"}).
		WithDetails(map[string]interface{}{"min": 1})

	if err.Details["field"] != "page" || err.Details["min"] != 1 {
		t.Errorf("expected merged details, got %v", err.Details)
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, SystemStore("").WithRequestID("req-123"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != ErrSystemStore || resp.Error.RequestID != "req-123" {
		t.Errorf("unexpected body: %+v", resp.Error)
	}
}

func TestGitHubRateLimitedKnownReset(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	reset := now.Add(90*time.Second + 300*time.Millisecond)

	w := httptest.NewRecorder()
	WriteError(w, gitHubRateLimitedAt(reset, now))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "91" {
		t.Errorf("expected Retry-After 91, got %q", got)
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Details["reset_at"] != reset.Format(time.RFC3339) {
		t.Errorf("unexpected reset_at %v", resp.Error.Details["reset_at"])
	}
}

func TestGitHubRateLimitedUnknownReset(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, GitHubRateLimited(time.Time{}))

	if w.Header().Get("Retry-After") != "" {
		t.Error("Retry-After must be omitted when the reset time is unknown")
	}
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Details["reset_at"] != ResetUnknown {
		t.Errorf("expected reset_at unknown, got %v", resp.Error.Details["reset_at"])
	}
}

func TestGitHubRateLimitedPastReset(t *testing.T) {
	now := time.Now()
	err := gitHubRateLimitedAt(now.Add(-time.Minute), now)
	if got := err.header.Get("Retry-After"); got != "0" {
		t.Errorf("expected Retry-After 0 for a past reset, got %q", got)
	}
}

func TestHelperFunctions(t *testing.T) {
	tests := []struct {
		name       string
		createErr  func() *Error
		wantCode   ErrorCode
		wantStatus int
	}{
		{"AuthMissing", func() *Error { return AuthMissing("") }, ErrAuthMissing, http.StatusUnauthorized},
		{"AuthInvalid", func() *Error { return AuthInvalid("") }, ErrAuthInvalid, http.StatusUnauthorized},
		{"GitHubNotFound", func() *Error { return GitHubNotFound("octocat") }, ErrGitHubNotFound, http.StatusNotFound},
		{"GitHubUpstreamFailed", func() *Error { return GitHubUpstreamFailed("") }, ErrGitHubUpstreamFailed, http.StatusBadGateway},
		{"PasscodeSMSFailed", PasscodeSMSFailed, ErrPasscodeSMSFailed, http.StatusInternalServerError},
		{"SystemInternal", func() *Error { return SystemInternal("") }, ErrSystemInternal, http.StatusInternalServerError},
		{"SystemUnavailable", func() *Error { return SystemUnavailable("") }, ErrSystemUnavailable, http.StatusServiceUnavailable},
		{"SystemTimeout", func() *Error { return SystemTimeout("") }, ErrSystemTimeout, http.StatusGatewayTimeout},
		{"ValidationInvalidJSON", ValidationInvalidJSON, ErrValidationInvalidJSON, http.StatusBadRequest},
		{"ValidationMissingField", func() *Error { return ValidationMissingField("phoneNumber") }, ErrValidationMissingField, http.StatusBadRequest},
		{"ValidationInvalidValue", func() *Error { return ValidationInvalidValue("page", "") }, ErrValidationInvalidValue, http.StatusBadRequest},
		{"RateLimitGlobal", RateLimitGlobal, ErrRateLimitGlobal, http.StatusTooManyRequests},
		{"RateLimitIP", RateLimitIP, ErrRateLimitIP, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.createErr()
			if err.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, err.Code)
			}
			if err.Status() != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, err.Status())
			}
			if err.Message == "" {
				t.Error("expected non-empty message")
			}
		})
	}
}

func TestWriteErrorWithContext(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(logger.ContextWithRequestID(context.Background(), "ctx-id"))
	w := httptest.NewRecorder()

	WriteErrorWithContext(w, r, ValidationMissingField("q"))

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.RequestID != "ctx-id" {
		t.Errorf("expected request id from context, got %q", resp.Error.RequestID)
	}
	if resp.Error.Details["field"] != "q" {
		t.Errorf("expected field detail, got %v", resp.Error.Details)
	}
}
