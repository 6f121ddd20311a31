package handlers

import (
	"context"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/quhie/Coding-Challenge-Skipli/internal/logger"
)

// LogPprofAccess logs profiling endpoint access attempts for security monitoring.
func LogPprofAccess(ctx context.Context, path, remoteAddr string) {
	logger.InfoContext(ctx, "Profiling endpoint accessed",
		"endpoint", path,
		"remote_addr", remoteAddr,
		"type", "security_audit")
}

// Pprof serves the runtime profiles mounted under prefix, auditing each
// access. It must sit behind admin authentication.
func Pprof(prefix string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		LogPprofAccess(r.Context(), r.URL.Path, r.RemoteAddr)

		switch name := strings.TrimPrefix(r.URL.Path, prefix); name {
		case "", "/":
			pprof.Index(w, r)
		case "/cmdline":
			pprof.Cmdline(w, r)
		case "/profile":
			pprof.Profile(w, r)
		case "/symbol":
			pprof.Symbol(w, r)
		case "/trace":
			pprof.Trace(w, r)
		default:
			pprof.Handler(strings.TrimPrefix(name, "/")).ServeHTTP(w, r)
		}
	})
}
