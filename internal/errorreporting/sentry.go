package errorreporting

import (
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
)

const redacted = "[REDACTED]"

// Patterns applied in order; token shapes go first so a phone pattern
// cannot split them.
var piiPatterns = []*regexp.Regexp{
	// GitHub personal access, OAuth and fine-grained tokens
	regexp.MustCompile(`\b(?:gh[pousr]_[A-Za-z0-9]{20,}|github_pat_[A-Za-z0-9_]{20,})\b`),
	// Authorization header values: "bearer x" and GitHub's "token x"
	regexp.MustCompile(`(?i)\b(?:bearer|token)\s+[A-Za-z0-9._-]{16,}`),
	// key=value style secrets
	regexp.MustCompile(`(?i)(api[_-]?key|auth[_-]?token|secret)["\s:=]+[A-Za-z0-9_-]{16,}`),
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
	// Phone numbers, with or without a leading + and separators
	regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`),
}

// Options configures Sentry. An empty DSN disables reporting.
type Options struct {
	DSN         string
	Environment string
	Release     string
	// TracesSampleRate defaults to 1.0, or 0.1 when Production is set.
	TracesSampleRate float64
	Production       bool
}

var enabled atomic.Bool

// Init initializes Sentry error reporting. It is a no-op without a DSN.
func Init(opts Options) error {
	if opts.DSN == "" {
		enabled.Store(false)
		return nil
	}
	rate := opts.TracesSampleRate
	if rate <= 0 {
		rate = 1.0
		if opts.Production {
			rate = 0.1
		}
	}
	release := opts.Release
	if release == "" {
		release = "dev"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              opts.DSN,
		Environment:      opts.Environment,
		Release:          release,
		TracesSampleRate: rate,
		BeforeSend:       beforeSend,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	enabled.Store(true)
	return nil
}

func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	for i := range event.Exception {
		event.Exception[i].Value = scrubPII(event.Exception[i].Value)
	}
	if event.Message != "" {
		event.Message = scrubPII(event.Message)
	}
	for key, value := range event.Extra {
		if str, ok := value.(string); ok {
			event.Extra[key] = scrubPII(str)
		}
	}

	if event.Request != nil {
		for _, h := range []string{"Authorization", "Cookie", "X-Api-Key"} {
			delete(event.Request.Headers, h)
		}
		// query strings carry phone numbers and search terms
		event.Request.QueryString = ""
		// bodies carry phone numbers and access codes
		event.Request.Data = ""
		event.Request.URL = scrubPII(event.Request.URL)
	}
	return event
}

func scrubPII(text string) string {
	for _, pattern := range piiPatterns {
		text = pattern.ReplaceAllString(text, redacted)
	}
	return text
}

// ScrubPII exposes the PII scrubbing used on outgoing events.
func ScrubPII(text string) string { return scrubPII(text) }

// CaptureError captures an error and sends it to Sentry
func CaptureError(err error) {
	if err == nil || !enabled.Load() {
		return
	}
	sentry.CaptureException(err)
}

// CaptureErrorWithContext captures an error with tags and extras; extras are
// scrubbed by beforeSend.
func CaptureErrorWithContext(err error, tags map[string]string, extras map[string]interface{}) {
	if err == nil || !enabled.Load() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		for k, v := range extras {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events to be sent.
func Flush(timeout time.Duration) bool {
	if !enabled.Load() {
		return true
	}
	return sentry.Flush(timeout)
}

// IsSentryEnabled reports whether Init configured a client.
func IsSentryEnabled() bool {
	return enabled.Load()
}
