// Package server assembles the gateway's services and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/quhie/Coding-Challenge-Skipli/internal/api"
	"github.com/quhie/Coding-Challenge-Skipli/internal/cache"
	"github.com/quhie/Coding-Challenge-Skipli/internal/circuitbreaker"
	"github.com/quhie/Coding-Challenge-Skipli/internal/config"
	"github.com/quhie/Coding-Challenge-Skipli/internal/directory"
	"github.com/quhie/Coding-Challenge-Skipli/internal/github"
	"github.com/quhie/Coding-Challenge-Skipli/internal/httpx"
	"github.com/quhie/Coding-Challenge-Skipli/internal/logger"
	"github.com/quhie/Coding-Challenge-Skipli/internal/metrics"
	"github.com/quhie/Coding-Challenge-Skipli/internal/middleware"
	"github.com/quhie/Coding-Challenge-Skipli/internal/passcode"
	"github.com/quhie/Coding-Challenge-Skipli/internal/retry"
	"github.com/quhie/Coding-Challenge-Skipli/internal/sms"
	"github.com/quhie/Coding-Challenge-Skipli/internal/store"
)

const metricsInterval = 30 * time.Second

type Server struct {
	cfg         *config.Config
	store       store.Store
	cache       *cache.Cache
	rateLimiter *middleware.RateLimiter
	collector   *metrics.Collector
	handler     http.Handler
}

// New opens the configured store and wires every service behind the router.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	c := cache.New(cache.WithMaxEntries(cfg.CacheMaxEntries))

	var pacer *rate.Limiter
	if cfg.UpstreamRPS > 0 {
		pacer = rate.NewLimiter(rate.Limit(cfg.UpstreamRPS), cfg.UpstreamBurst)
	}
	doer := httpx.New(cfg.HTTPTimeout, httpx.LimiterPre(pacer), nil, cfg.LogHTTPAttempts)

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:             "github",
		FailureThreshold: cfg.BreakerThreshold,
		Timeout:          cfg.BreakerTimeout,
		IsFailure:        github.IsServiceFailure,
	})
	client := github.NewClient(github.Options{
		BaseURL:      cfg.GitHubAPIBaseURL,
		UserAgent:    cfg.GitHubUserAgent,
		Token:        cfg.GitHubAccessToken,
		ProfilePath:  cfg.GitHubProfilePath,
		FallbackPath: cfg.GitHubProfileFallbackPath,
		SearchPath:   cfg.GitHubSearchPath,
		Doer:         doer,
		Breaker:      breaker,
	})

	retrier := retry.New(retry.Policy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}, github.IsRateLimited, retry.WithObserver(directory.ObserveRetry))

	dir := directory.New(directory.Options{
		Upstream:    client,
		Cache:       c,
		ProfileTTL:  cfg.ProfileCacheTTL,
		SearchTTL:   cfg.SearchCacheTTL,
		Retry:       retrier,
		Concurrency: cfg.FanoutConcurrency,
	})
	passcodes := passcode.New(st, sms.New(cfg))

	s := &Server{
		cfg:       cfg,
		store:     st,
		cache:     c,
		collector: metrics.NewCollector(c, st, metricsInterval),
	}
	if cfg.EnableRateLimit {
		s.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitGlobal, cfg.RateLimitGlobalBurst, cfg.RateLimitPerIP, cfg.RateLimitPerIPBurst)
	}
	s.handler = api.NewRouter(api.Deps{
		Config:      cfg,
		Passcodes:   passcodes,
		Store:       st,
		Directory:   dir,
		Cache:       c,
		RateLimiter: s.rateLimiter,
	})
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		s.Close()
		return fmt.Errorf("listen %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then drains
// in-flight requests for up to ShutdownTimeout and releases resources.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.Close()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go s.collector.Start(ctx)
	defer s.collector.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.WithComponent("server").Info("Server listening", "addr", ln.Addr().String(), "store", s.cfg.StoreBackend)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log := logger.WithComponent("server")
	log.Info("Shutting down server", "timeout", s.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("Server stopped")
	return nil
}

// Close releases the store, cache and limiter.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if err := s.store.Close(); err != nil {
		logger.WithComponent("server").Warn("Failed to close store", "error", err)
	}
	s.cache.Close()
}
