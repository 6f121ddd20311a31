// Package directory is the cache-aware face of the GitHub client: single
// profile and search lookups, and concurrent resolution of favorites lists.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/quhie/Coding-Challenge-Skipli/internal/cache"
	"github.com/quhie/Coding-Challenge-Skipli/internal/fanout"
	"github.com/quhie/Coding-Challenge-Skipli/internal/github"
	"github.com/quhie/Coding-Challenge-Skipli/internal/logger"
	"github.com/quhie/Coding-Challenge-Skipli/internal/metrics"
	"github.com/quhie/Coding-Challenge-Skipli/internal/retry"
	"github.com/quhie/Coding-Challenge-Skipli/internal/tracing"
)

// Namespace names registered on the shared cache.
const (
	ProfileNamespace = "profile"
	SearchNamespace  = "search"
)

// Upstream is the subset of *github.Client the service needs.
type Upstream interface {
	FetchProfile(ctx context.Context, id string) (github.Profile, error)
	SearchUsers(ctx context.Context, query string, page, perPage int) (github.SearchResponse, error)
}

// Pagination is attached to every search page.
type Pagination struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	TotalPages  int `json:"total_pages"`
}

// SearchPage is the upstream search payload plus pagination metadata.
type SearchPage struct {
	github.SearchResponse
	Pagination Pagination `json:"pagination"`
}

// ProfileResult is the settled outcome of resolving one favorite ID.
type ProfileResult = fanout.Result[string, github.Profile]

// Options configures a Service.
type Options struct {
	Upstream    Upstream
	Cache       *cache.Cache
	ProfileTTL  time.Duration
	SearchTTL   time.Duration
	Retry       *retry.Controller
	Concurrency int // 0 = one goroutine per ID
}

// Service resolves GitHub users through the shared cache.
type Service struct {
	upstream Upstream
	profiles *cache.Namespace[github.Profile]
	searches *cache.Namespace[SearchPage]
	retry    *retry.Controller
	limit    int
	flight   singleflight.Group
	log      *slog.Logger
}

// New registers the profile and search namespaces on opts.Cache.
func New(opts Options) *Service {
	if opts.ProfileTTL <= 0 {
		opts.ProfileTTL = 2 * time.Hour
	}
	if opts.SearchTTL <= 0 {
		opts.SearchTTL = 10 * time.Minute
	}
	if opts.Retry == nil {
		opts.Retry = retry.New(retry.DefaultPolicy(), github.IsRateLimited, retry.WithObserver(ObserveRetry))
	}
	return &Service{
		upstream: opts.Upstream,
		profiles: cache.Register[github.Profile](opts.Cache, ProfileNamespace, opts.ProfileTTL),
		searches: cache.Register[SearchPage](opts.Cache, SearchNamespace, opts.SearchTTL),
		retry:    opts.Retry,
		limit:    opts.Concurrency,
		log:      logger.WithComponent("directory"),
	}
}

// Profile returns the profile for id from cache, or from GitHub in a single
// attempt. Errors are returned verbatim.
func (s *Service) Profile(ctx context.Context, id string) (github.Profile, error) {
	if p, ok := s.profiles.Get(id); ok {
		s.log.DebugContext(ctx, "cache hit", "namespace", ProfileNamespace, "key", id)
		return p, nil
	}
	s.log.DebugContext(ctx, "cache miss", "namespace", ProfileNamespace, "key", id)

	v, err, _ := s.flight.Do("profile:"+id, func() (any, error) {
		return s.upstream.FetchProfile(ctx, id)
	})
	if err != nil {
		return github.Profile{}, err
	}
	p := v.(github.Profile)
	s.profiles.Set(id, p, 0)
	return p, nil
}

// SearchKey is the cache key for one search page.
func SearchKey(query string, page, perPage int) string {
	return fmt.Sprintf("%s_%d_%d", query, page, perPage)
}

// TotalPages is ceil(total/perPage); zero when perPage is not positive.
func TotalPages(total, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

// Search returns one page of results, from cache when the same
// query/page/perPage was fetched within the search TTL.
func (s *Service) Search(ctx context.Context, query string, page, perPage int) (SearchPage, error) {
	key := SearchKey(query, page, perPage)
	if sp, ok := s.searches.Get(key); ok {
		s.log.DebugContext(ctx, "cache hit", "namespace", SearchNamespace, "key", key)
		return sp, nil
	}
	s.log.DebugContext(ctx, "cache miss", "namespace", SearchNamespace, "key", key)

	v, err, _ := s.flight.Do("search:"+key, func() (any, error) {
		return s.upstream.SearchUsers(ctx, query, page, perPage)
	})
	if err != nil {
		return SearchPage{}, err
	}
	res := v.(github.SearchResponse)
	sp := SearchPage{
		SearchResponse: res,
		Pagination: Pagination{
			CurrentPage: page,
			PerPage:     perPage,
			TotalPages:  TotalPages(res.TotalCount, perPage),
		},
	}
	s.searches.Set(key, sp, 0)
	return sp, nil
}

// ResolveAll resolves every id concurrently and returns the profiles that
// resolved, in completion order. Failed IDs are logged and omitted.
func (s *Service) ResolveAll(ctx context.Context, ids []string) []github.Profile {
	return fanout.Successes(s.StreamAll(ctx, ids, nil))
}

// ResolveAllDetailed is ResolveAll but keeps failed lookups.
func (s *Service) ResolveAllDetailed(ctx context.Context, ids []string) []ProfileResult {
	return s.StreamAll(ctx, ids, nil)
}

// StreamAll resolves ids and calls emit for each result as it settles.
func (s *Service) StreamAll(ctx context.Context, ids []string, emit func(ProfileResult)) []ProfileResult {
	if len(ids) == 0 {
		return []ProfileResult{}
	}
	ctx, span := tracing.StartSpan(ctx, "directory.ResolveAll")
	defer span.End()
	span.SetAttributes(attribute.Int("favorites.count", len(ids)))

	start := time.Now()
	results := fanout.Run(ctx, ids, s.limit, s.resolve, emit)
	metrics.FanoutDuration.Observe(time.Since(start).Seconds())

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
			s.log.WarnContext(ctx, "favorite lookup failed", "id", r.Key,
				"kind", github.KindOf(r.Err).String(), "error", r.Err)
		}
	}
	span.SetAttributes(attribute.Int("favorites.failed", failed))
	return results
}

// resolve is the per-ID task: cache first, then a retried fetch whose result
// is written back under both the requested ID and the login.
func (s *Service) resolve(ctx context.Context, id string) (github.Profile, error) {
	if p, ok := s.profiles.Get(id); ok {
		metrics.FanoutLookups.WithLabelValues("cache_hit").Inc()
		return p, nil
	}

	v, err, _ := s.flight.Do("resolve:"+id, func() (any, error) {
		var p github.Profile
		err := s.retry.Do(ctx, func(ctx context.Context) error {
			var ferr error
			p, ferr = s.upstream.FetchProfile(ctx, id)
			return ferr
		})
		return p, err
	})
	if err != nil {
		metrics.FanoutLookups.WithLabelValues("failed").Inc()
		return github.Profile{}, err
	}

	p := v.(github.Profile)
	s.profiles.Set(id, p, 0)
	if p.Login != "" && p.Login != id {
		s.profiles.Set(p.Login, p, 0)
	}
	metrics.FanoutLookups.WithLabelValues("fetched").Inc()
	return p, nil
}

// ObserveRetry records retry controller attempts.
func ObserveRetry(info retry.AttemptInfo) {
	metrics.RetryAttempts.WithLabelValues(info.State.String()).Inc()
	if info.State == retry.StateRetrying {
		metrics.RetryWaitSeconds.Observe(info.Wait.Seconds())
		logger.WithComponent("retry").Info("rate limited, backing off",
			"attempt", info.Attempt, "wait", info.Wait)
	}
}
