package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/quhie/Coding-Challenge-Skipli/internal/apierr"
	"github.com/quhie/Coding-Challenge-Skipli/internal/circuitbreaker"
	"github.com/quhie/Coding-Challenge-Skipli/internal/errorreporting"
	"github.com/quhie/Coding-Challenge-Skipli/internal/github"
	"github.com/quhie/Coding-Challenge-Skipli/internal/logger"
	"github.com/quhie/Coding-Challenge-Skipli/internal/middleware"
)

var sanitizer = &middleware.SanitizeInput{}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.ErrorContext(r.Context(), "Failed to encode response", "error", err)
	}
}

// decodeBody decodes a JSON request body, writing the error response itself
// when it fails.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := middleware.DecodeJSON(r, dst); err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidJSON().
			WithDetails(map[string]interface{}{"reason": err.Error()}))
		return false
	}
	return true
}

// gitHubError maps an upstream failure for id onto the API error taxonomy.
func gitHubError(ctx context.Context, err error, id string) *apierr.Error {
	var apiErr *github.APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apierr.SystemTimeout("GitHub did not answer in time")
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return apierr.SystemUnavailable("GitHub is temporarily unavailable").WithHeader("Retry-After", "30")
	case !errors.As(err, &apiErr):
		reportUpstream(ctx, err, id)
		return apierr.GitHubUpstreamFailed("")
	}

	switch apiErr.Kind {
	case github.KindPaced, github.KindCanceled:
		return apierr.SystemTimeout("GitHub did not answer in time")
	case github.KindRateLimited:
		return apierr.GitHubRateLimited(apiErr.ResetAt)
	case github.KindNotFound:
		return apierr.GitHubNotFound(id)
	case github.KindInvalid:
		return apierr.ValidationInvalidValue("id", apiErr.Message)
	default:
		reportUpstream(ctx, err, id)
		return apierr.GitHubUpstreamFailed(apiErr.Message)
	}
}

func reportUpstream(ctx context.Context, err error, id string) {
	logger.ErrorContext(ctx, "GitHub request failed", "id", id, "kind", github.KindOf(err).String(), "error", err)
	errorreporting.CaptureErrorWithContext(err,
		map[string]string{"component": "github", "kind": github.KindOf(err).String()},
		map[string]interface{}{"request_id": logger.RequestIDFrom(ctx)})
}

// positiveInt parses a positive integer query value, falling back to def.
func positiveInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func asAPIError(err error) *github.APIError {
	var apiErr *github.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}
