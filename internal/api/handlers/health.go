package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/quhie/Coding-Challenge-Skipli/internal/apierr"
	"github.com/quhie/Coding-Challenge-Skipli/internal/logger"
)

// Health returns a simple JSON payload to indicate the API is alive.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "GitHub Auth API is running",
	})
}

// Pinger reports backing-store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ready answers 200 when the store responds within two seconds.
func Ready(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
			apierr.WriteErrorWithContext(w, r, apierr.SystemUnavailable("Store unreachable"))
			return
		}
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
	}
}
