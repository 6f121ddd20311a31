package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"
)

// MaxRequestBodySize caps request bodies; the API only accepts small JSON
// objects.
const MaxRequestBodySize = 1 << 20

// maxGitHubLogin is GitHub's login length limit.
const maxGitHubLogin = 39

// ValidateRequestBody limits the body size of POST, PUT and PATCH requests.
func ValidateRequestBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// SanitizeInput provides input sanitization utilities.
type SanitizeInput struct{}

// SanitizeString trims whitespace, limits length and drops invalid UTF-8.
func (s *SanitizeInput) SanitizeString(input string, maxLength int) string {
	input = strings.TrimSpace(input)
	if len(input) > maxLength {
		input = input[:maxLength]
	}
	if !utf8.ValidString(input) {
		input = strings.ToValidUTF8(input, "")
	}
	return input
}

// ValidateGitHubID accepts a GitHub login or numeric user ID: 1 to 39
// alphanumerics or single hyphens, not starting or ending with a hyphen.
func (s *SanitizeInput) ValidateGitHubID(id string) error {
	if id == "" {
		return fmt.Errorf("github user id cannot be empty")
	}
	if len(id) > maxGitHubLogin {
		return fmt.Errorf("github user id too long (max %d characters)", maxGitHubLogin)
	}
	if id[0] == '-' || id[len(id)-1] == '-' || strings.Contains(id, "--") {
		return fmt.Errorf("github user id has misplaced hyphens")
	}
	for _, c := range id {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-') {
			return fmt.Errorf("github user id contains invalid characters")
		}
	}
	return nil
}

var (
	ErrUnsupportedContentType = errors.New("Content-Type must be application/json")
	ErrInvalidJSON            = errors.New("invalid JSON")
)

// DecodeJSON decodes the request body into dst. An empty body leaves dst
// untouched so missing fields are reported by the caller.
func DecodeJSON(r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return ErrUnsupportedContentType
		}
	}
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}
