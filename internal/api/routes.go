package api

import (
	"bufio"
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quhie/Coding-Challenge-Skipli/internal/api/handlers"
	"github.com/quhie/Coding-Challenge-Skipli/internal/apierr"
	"github.com/quhie/Coding-Challenge-Skipli/internal/config"
	"github.com/quhie/Coding-Challenge-Skipli/internal/metrics"
	"github.com/quhie/Coding-Challenge-Skipli/internal/middleware"
)

// Store is what the HTTP layer needs from persistence.
type Store interface {
	handlers.FavoritesStore
	handlers.Pinger
}

// Deps are the services the router dispatches to.
type Deps struct {
	Config    *config.Config
	Passcodes handlers.Passcodes
	Store     Store
	Directory handlers.Directory
	Cache     handlers.CacheAdmin
	// RateLimiter is optional; nil disables inbound rate limiting.
	RateLimiter *middleware.RateLimiter
}

// NewRouter builds the full HTTP handler: every public route is served at
// the root and mirrored under /api.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	if cfg == nil {
		cfg = config.Load()
	}

	r := mux.NewRouter()
	r.Use(instrument)

	access := handlers.NewAccessCodeHandlers(d.Passcodes)
	gh := handlers.NewGitHubHandlers(d.Directory)
	favs := handlers.NewFavoritesHandlers(d.Store, d.Directory)
	stream := handlers.NewFavoritesStream(d.Store, d.Directory, cfg.CORSAllowedOrigins)
	timeout := withTimeout(cfg.RequestTimeout)

	mount := func(sr *mux.Router) {
		sr.Handle("/CreateNewAccessCode", timeout(http.HandlerFunc(access.Create))).Methods(http.MethodPost)
		sr.Handle("/ValidateAccessCode", timeout(http.HandlerFunc(access.Validate))).Methods(http.MethodPost)
		sr.Handle("/searchGithubUsers", timeout(middleware.ETag(http.HandlerFunc(gh.SearchUsers)))).Methods(http.MethodGet)
		sr.Handle("/findGithubUserProfile/{id}", timeout(middleware.ETag(http.HandlerFunc(gh.FindProfile)))).Methods(http.MethodGet)
		sr.Handle("/likeGithubUser", timeout(http.HandlerFunc(favs.Like))).Methods(http.MethodPost)
		sr.Handle("/getUserProfile/{phoneNumber}", timeout(http.HandlerFunc(favs.GetUserProfile))).Methods(http.MethodGet)
		// Streams outlive the request timeout.
		sr.HandleFunc("/ws/favorites/{phoneNumber}", stream.HandleWebSocket).Methods(http.MethodGet)
		sr.HandleFunc("/health", handlers.Health).Methods(http.MethodGet)
		sr.HandleFunc("/ready", handlers.Ready(d.Store)).Methods(http.MethodGet)
	}

	apiRouter := r.PathPrefix("/api").Subrouter()

	// Admin routes, gated by the bearer token.
	adminOnly := adminAuth(cfg.AdminAPIToken)
	cacheAdmin := handlers.NewCacheAdminHandler(d.Cache)
	apiRouter.Handle("/admin/cache/stats", adminOnly(http.HandlerFunc(cacheAdmin.GetCacheStats))).Methods(http.MethodGet)
	apiRouter.Handle("/admin/cache/invalidate", adminOnly(http.HandlerFunc(cacheAdmin.InvalidateCache))).Methods(http.MethodPost)
	apiRouter.PathPrefix("/admin/debug/pprof").Handler(adminOnly(handlers.Pprof("/api/admin/debug/pprof"))).Methods(http.MethodGet)

	mount(apiRouter)
	mount(r)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	var h http.Handler = middleware.Compress(r)
	h = middleware.ValidateRequestBody(h)
	if d.RateLimiter != nil {
		h = d.RateLimiter.Limit(h)
	}
	h = middleware.CORS(middleware.CORSConfigFor(cfg.CORSAllowedOrigins))(h)
	h = middleware.SecurityHeaders(h)
	h = middleware.RequestID(h)
	return middleware.RecoverWithSentry(h)
}

// adminAuth gates a handler behind "Authorization: Bearer <token>". With no
// token configured the admin surface is disabled.
func adminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				apierr.WriteErrorWithContext(w, r, apierr.SystemUnavailable("admin token not configured"))
				return
			}
			auth := r.Header.Get("Authorization")
			if auth == "" {
				apierr.WriteErrorWithContext(w, r, apierr.AuthMissing(""))
				return
			}
			given, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				apierr.WriteErrorWithContext(w, r, apierr.AuthInvalid(""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func withTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	s.status = http.StatusSwitchingProtocols
	return http.NewResponseController(s.ResponseWriter).Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// instrument records request count and latency per route template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := "unmatched"
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		status := strconv.Itoa(rec.status)
		metrics.APIRequestDuration.WithLabelValues(endpoint, r.Method, status).Observe(time.Since(start).Seconds())
		metrics.APIRequestsTotal.WithLabelValues(endpoint, r.Method, status).Inc()
	})
}
