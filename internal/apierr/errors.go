package apierr

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/quhie/Coding-Challenge-Skipli/internal/logger"
)

// ErrorCode represents a structured error code
type ErrorCode string

// Error code constants organized by category
const (
	// AUTH_ - admin endpoint authentication
	ErrAuthMissing ErrorCode = "AUTH_MISSING"
	ErrAuthInvalid ErrorCode = "AUTH_INVALID"

	// GITHUB_ - upstream profile and search failures
	ErrGitHubRateLimited    ErrorCode = "GITHUB_RATE_LIMITED"
	ErrGitHubNotFound       ErrorCode = "GITHUB_NOT_FOUND"
	ErrGitHubUpstreamFailed ErrorCode = "GITHUB_UPSTREAM_FAILED"

	// PASSCODE_ - access code delivery
	ErrPasscodeSMSFailed ErrorCode = "PASSCODE_SMS_FAILED"

	// SYSTEM_ - System and server errors
	ErrSystemInternal    ErrorCode = "SYSTEM_INTERNAL"
	ErrSystemStore       ErrorCode = "SYSTEM_STORE"
	ErrSystemUnavailable ErrorCode = "SYSTEM_UNAVAILABLE"
	ErrSystemTimeout     ErrorCode = "SYSTEM_TIMEOUT"

	// VALIDATION_ - Request validation errors
	ErrValidationInvalidJSON  ErrorCode = "VALIDATION_INVALID_JSON"
	ErrValidationMissingField ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrValidationInvalidValue ErrorCode = "VALIDATION_INVALID_VALUE"

	// RATE_LIMIT_ - inbound rate limiting
	ErrRateLimitGlobal ErrorCode = "RATE_LIMIT_GLOBAL"
	ErrRateLimitIP     ErrorCode = "RATE_LIMIT_IP"
)

// ResetUnknown is reported in details.reset_at when GitHub gave no reset time.
const ResetUnknown = "unknown"

// Error represents a structured API error
type Error struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	status    int
	header    http.Header
}

// ErrorResponse is the top-level error response wrapper
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// New creates a new API error
func New(code ErrorCode, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		status:  status,
	}
}

// WithDetails merges details into the error.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithHeader sets a response header written alongside the error body.
func (e *Error) WithHeader(key, value string) *Error {
	if e.header == nil {
		e.header = make(http.Header)
	}
	e.header.Set(key, value)
	return e
}

// WithRequestID adds a request ID to the error
func (e *Error) WithRequestID(requestID string) *Error {
	e.RequestID = requestID
	return e
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Status returns the HTTP status code
func (e *Error) Status() int {
	return e.status
}

// WriteError writes a structured error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err *Error) {
	for k, vs := range err.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status())
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: err})
}

func AuthMissing(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return New(ErrAuthMissing, message, http.StatusUnauthorized)
}

func AuthInvalid(message string) *Error {
	if message == "" {
		message = "Invalid authentication credentials"
	}
	return New(ErrAuthInvalid, message, http.StatusUnauthorized)
}

// GitHubRateLimited reports an exhausted upstream quota. A zero resetAt is
// reported as "unknown" and no Retry-After header is set.
func GitHubRateLimited(resetAt time.Time) *Error {
	return gitHubRateLimitedAt(resetAt, time.Now())
}

func gitHubRateLimitedAt(resetAt, now time.Time) *Error {
	e := New(ErrGitHubRateLimited, "GitHub API rate limit exceeded, please try again later", http.StatusTooManyRequests)
	if resetAt.IsZero() {
		return e.WithDetails(map[string]interface{}{"reset_at": ResetUnknown})
	}
	wait := int64(math.Ceil(resetAt.Sub(now).Seconds()))
	if wait < 0 {
		wait = 0
	}
	return e.WithDetails(map[string]interface{}{"reset_at": resetAt.UTC().Format(time.RFC3339)}).
		WithHeader("Retry-After", strconv.FormatInt(wait, 10))
}

func GitHubNotFound(id string) *Error {
	return New(ErrGitHubNotFound, "GitHub user not found", http.StatusNotFound).
		WithDetails(map[string]interface{}{"id": id})
}

func GitHubUpstreamFailed(message string) *Error {
	if message == "" {
		message = "GitHub request failed"
	}
	return New(ErrGitHubUpstreamFailed, message, http.StatusBadGateway)
}

func PasscodeSMSFailed() *Error {
	return New(ErrPasscodeSMSFailed, "Failed to send access code", http.StatusInternalServerError)
}

// SystemInternal creates an internal server error
func SystemInternal(message string) *Error {
	if message == "" {
		message = "Internal server error"
	}
	return New(ErrSystemInternal, message, http.StatusInternalServerError)
}

// SystemStore creates a persistence error
func SystemStore(message string) *Error {
	if message == "" {
		message = "Storage error"
	}
	return New(ErrSystemStore, message, http.StatusInternalServerError)
}

func SystemUnavailable(message string) *Error {
	if message == "" {
		message = "Service unavailable"
	}
	return New(ErrSystemUnavailable, message, http.StatusServiceUnavailable)
}

func SystemTimeout(message string) *Error {
	if message == "" {
		message = "Request timeout"
	}
	return New(ErrSystemTimeout, message, http.StatusGatewayTimeout)
}

func ValidationInvalidJSON() *Error {
	return New(ErrValidationInvalidJSON, "Invalid JSON request body", http.StatusBadRequest)
}

// ValidationMissingField creates a missing field error
func ValidationMissingField(field string) *Error {
	return New(ErrValidationMissingField, "Missing required field: "+field, http.StatusBadRequest).
		WithDetails(map[string]interface{}{"field": field})
}

// ValidationInvalidValue creates an invalid value error
func ValidationInvalidValue(field string, message string) *Error {
	if message == "" {
		message = "Invalid value for field: " + field
	}
	return New(ErrValidationInvalidValue, message, http.StatusBadRequest).
		WithDetails(map[string]interface{}{"field": field})
}

func RateLimitGlobal() *Error {
	return New(ErrRateLimitGlobal, "Rate limit exceeded - too many requests globally", http.StatusTooManyRequests)
}

func RateLimitIP() *Error {
	return New(ErrRateLimitIP, "Rate limit exceeded - too many requests from your IP", http.StatusTooManyRequests)
}

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	return logger.RequestIDFrom(ctx)
}

// WriteErrorWithContext writes a structured error response with request ID from context
func WriteErrorWithContext(w http.ResponseWriter, r *http.Request, err *Error) {
	if reqID := GetRequestID(r.Context()); reqID != "" {
		err = err.WithRequestID(reqID)
	}
	WriteError(w, err)
}
