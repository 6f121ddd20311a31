package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quhie/Coding-Challenge-Skipli/internal/cache"
	"github.com/quhie/Coding-Challenge-Skipli/internal/github"
	"github.com/quhie/Coding-Challenge-Skipli/internal/retry"
)

type fakeUpstream struct {
	mu       sync.Mutex
	profiles map[string][]error // scripted errors, consumed one per call
	calls    map[string]int
	searches int
	search   github.SearchResponse
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{profiles: map[string][]error{}, calls: map[string]int{}}
}

func (f *fakeUpstream) FetchProfile(_ context.Context, id string) (github.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	if script := f.profiles[id]; len(script) > 0 {
		err := script[0]
		f.profiles[id] = script[1:]
		if err != nil {
			return github.Profile{}, err
		}
	}
	return github.Profile{Login: "login-" + id, ID: int64(len(id)), PublicRepos: 1}, nil
}

func (f *fakeUpstream) SearchUsers(_ context.Context, _ string, _, _ int) (github.SearchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	return f.search, nil
}

func (f *fakeUpstream) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

var rateLimited = &github.APIError{Kind: github.KindRateLimited, StatusCode: 403, Message: "API rate limit exceeded"}

type harness struct {
	svc    *Service
	up     *fakeUpstream
	clock  *cache.ManualClock
	mu     sync.Mutex
	sleeps []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{up: newFakeUpstream(), clock: cache.NewManualClock(time.Unix(1_700_000_000, 0))}
	c := cache.New(cache.WithClock(h.clock.Now))
	t.Cleanup(c.Close)
	ctrl := retry.New(retry.DefaultPolicy(), github.IsRateLimited,
		retry.WithSleeper(func(_ context.Context, d time.Duration) error {
			h.mu.Lock()
			h.sleeps = append(h.sleeps, d)
			h.mu.Unlock()
			return nil
		}))
	h.svc = New(Options{
		Upstream:   h.up,
		Cache:      c,
		ProfileTTL: 2 * time.Hour,
		SearchTTL:  10 * time.Minute,
		Retry:      ctrl,
	})
	return h
}

func logins(ps []github.Profile) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Login
	}
	sort.Strings(out)
	return out
}

func TestProfileCachesUnderRequestedID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, err := h.svc.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "login-alice", p.Login)

	_, err = h.svc.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, h.up.callCount("alice"))

	h.clock.Advance(2 * time.Hour)
	_, err = h.svc.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, h.up.callCount("alice"), "expired entry must refetch")
}

func TestProfileDoesNotRetry(t *testing.T) {
	h := newHarness(t)
	h.up.profiles["bob"] = []error{rateLimited}

	_, err := h.svc.Profile(context.Background(), "bob")
	require.Error(t, err)
	assert.True(t, github.IsRateLimited(err))
	assert.Equal(t, 1, h.up.callCount("bob"))
	assert.Empty(t, h.sleeps)
}

func TestProfileFailureIsNotCached(t *testing.T) {
	h := newHarness(t)
	h.up.profiles["bob"] = []error{&github.APIError{Kind: github.KindNotFound, StatusCode: 404}}

	_, err := h.svc.Profile(context.Background(), "bob")
	require.Error(t, err)
	_, err = h.svc.Profile(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, h.up.callCount("bob"))
}

func TestSearchCachesPageWithPagination(t *testing.T) {
	h := newHarness(t)
	h.up.search = github.SearchResponse{TotalCount: 45, Items: []github.SearchItem{{Login: "a"}}}
	ctx := context.Background()

	sp, err := h.svc.Search(ctx, "go", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, Pagination{CurrentPage: 2, PerPage: 10, TotalPages: 5}, sp.Pagination)
	assert.Equal(t, 45, sp.TotalCount)

	_, err = h.svc.Search(ctx, "go", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, h.up.searches)

	_, err = h.svc.Search(ctx, "go", 3, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, h.up.searches, "different page is a different key")

	h.clock.Advance(10 * time.Minute)
	_, err = h.svc.Search(ctx, "go", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, h.up.searches)
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 10))
	assert.Equal(t, 1, TotalPages(1, 10))
	assert.Equal(t, 1, TotalPages(10, 10))
	assert.Equal(t, 2, TotalPages(11, 10))
	assert.Equal(t, 0, TotalPages(5, 0))
}

func TestSearchKey(t *testing.T) {
	assert.Equal(t, "octo_1_30", SearchKey("octo", 1, 30))
}

func TestResolveAllEmpty(t *testing.T) {
	h := newHarness(t)
	got := h.svc.ResolveAll(context.Background(), nil)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestResolveAllDropsFailures(t *testing.T) {
	h := newHarness(t)
	h.up.profiles["B"] = []error{&github.APIError{Kind: github.KindUpstream, StatusCode: 500}}

	got := h.svc.ResolveAll(context.Background(), []string{"A", "B", "C"})
	assert.Equal(t, []string{"login-A", "login-C"}, logins(got))
	assert.Equal(t, 1, h.up.callCount("B"), "non rate-limit errors are not retried")
}

func TestResolveAllRetriesRateLimited(t *testing.T) {
	h := newHarness(t)
	h.up.profiles["A"] = []error{rateLimited, nil}

	got := h.svc.ResolveAll(context.Background(), []string{"A"})
	require.Len(t, got, 1)
	assert.Equal(t, 2, h.up.callCount("A"))
	assert.Equal(t, []time.Duration{2 * time.Second}, h.sleeps)
}

func TestResolveAllExhaustsAfterThreeAttempts(t *testing.T) {
	h := newHarness(t)
	h.up.profiles["A"] = []error{rateLimited, rateLimited, rateLimited}

	res := h.svc.ResolveAllDetailed(context.Background(), []string{"A"})
	require.Len(t, res, 1)
	require.Error(t, res[0].Err)
	assert.True(t, github.IsRateLimited(res[0].Err))
	var ex *retry.ExhaustedError
	assert.True(t, errors.As(res[0].Err, &ex))
	assert.Equal(t, 3, h.up.callCount("A"))
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, h.sleeps)
}

func TestResolveAllWritesBackUnderLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.svc.ResolveAll(ctx, []string{"42"})
	require.Equal(t, 1, h.up.callCount("42"))

	// Both the requested ID and the login are served from cache now.
	h.svc.ResolveAll(ctx, []string{"42", "login-42"})
	assert.Equal(t, 1, h.up.callCount("42"))
	assert.Equal(t, 0, h.up.callCount("login-42"))
}

func TestResolveAllUsesProfileCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Profile(ctx, "A")
	require.NoError(t, err)
	got := h.svc.ResolveAll(ctx, []string{"A"})
	require.Len(t, got, 1)
	assert.Equal(t, 1, h.up.callCount("A"))
}

func TestStreamAllEmitsEachResult(t *testing.T) {
	h := newHarness(t)
	h.up.profiles["B"] = []error{&github.APIError{Kind: github.KindNotFound, StatusCode: 404}}

	var mu sync.Mutex
	seen := map[string]bool{}
	res := h.svc.StreamAll(context.Background(), []string{"A", "B"}, func(r ProfileResult) {
		mu.Lock()
		seen[r.Key] = r.OK()
		mu.Unlock()
	})
	assert.Len(t, res, 2)
	assert.Equal(t, map[string]bool{"A": true, "B": false}, seen)
}

func TestFallbackProfileIsCachedUnderRequestedID(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/users/583231", "/users/1024025":
			w.Header().Set("Content-Type", "application/json")
			login := map[string]string{"/users/583231": "octocat", "/users/1024025": "torvalds"}[r.URL.Path]
			_, _ = fmt.Fprintf(w, `{"login":%q,"id":1,"public_repos":8}`, login)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Not Found"}`))
		}
	}))
	t.Cleanup(srv.Close)

	c := cache.New()
	t.Cleanup(c.Close)
	svc := New(Options{
		Upstream: github.NewClient(github.Options{BaseURL: srv.URL, Doer: srv.Client()}),
		Cache:    c,
	})

	p, err := svc.Profile(context.Background(), "583231")
	require.NoError(t, err)
	assert.Equal(t, "octocat", p.Login)

	got := svc.ResolveAll(context.Background(), []string{"1024025"})
	require.Len(t, got, 1)
	assert.Equal(t, "torvalds", got[0].Login)

	mu.Lock()
	assert.Equal(t, []string{"/user/583231", "/users/583231", "/user/1024025", "/users/1024025"}, paths)
	mu.Unlock()

	for id, login := range map[string]string{"583231": "octocat", "1024025": "torvalds"} {
		cached, ok := svc.profiles.Get(id)
		require.True(t, ok, "fallback result for %s should be cached under the requested id", id)
		assert.Equal(t, login, cached.Login)
	}

	before := len(paths)
	_, err = svc.Profile(context.Background(), "583231")
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, before, len(paths), "second lookup is served from cache")
	mu.Unlock()
}
