// Package github is a thin client for the GitHub users API: profile lookup
// with a fallback path, and user search.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/quhie/Coding-Challenge-Skipli/internal/circuitbreaker"
	"github.com/quhie/Coding-Challenge-Skipli/internal/httpx"
	"github.com/quhie/Coding-Challenge-Skipli/internal/logger"
	"github.com/quhie/Coding-Challenge-Skipli/internal/metrics"
	"github.com/quhie/Coding-Challenge-Skipli/internal/tracing"
)

const (
	acceptHeader = "application/vnd.github.v3+json"

	endpointProfile  = "profile"
	endpointFallback = "profile_fallback"
	endpointSearch   = "search"

	maxBody = 4 << 20
)

// Doer sends a single HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	UserAgent string
	// Token enables "Authorization: token <Token>"; empty sends no credentials.
	Token        string
	ProfilePath  string // fmt pattern with one %s, e.g. /user/%s
	FallbackPath string // fmt pattern with one %s, e.g. /users/%s
	SearchPath   string
	Doer         Doer
	Breaker      *circuitbreaker.CircuitBreaker
}

// Client calls the GitHub API. It does not cache.
type Client struct {
	base         string
	userAgent    string
	token        string
	profilePath  string
	fallbackPath string
	searchPath   string
	doer         Doer
	breaker      *circuitbreaker.CircuitBreaker
}

// NewClient builds a Client, filling unset options with GitHub's defaults.
func NewClient(opts Options) *Client {
	c := &Client{
		base:         strings.TrimRight(opts.BaseURL, "/"),
		userAgent:    opts.UserAgent,
		token:        opts.Token,
		profilePath:  opts.ProfilePath,
		fallbackPath: opts.FallbackPath,
		searchPath:   opts.SearchPath,
		doer:         opts.Doer,
		breaker:      opts.Breaker,
	}
	if c.base == "" {
		c.base = "https://api.github.com"
	}
	if c.userAgent == "" {
		c.userAgent = "GitHub-Auth-App/1.0"
	}
	if c.profilePath == "" {
		c.profilePath = "/user/%s"
	}
	if c.fallbackPath == "" {
		c.fallbackPath = "/users/%s"
	}
	if c.searchPath == "" {
		c.searchPath = "/search/users"
	}
	if c.doer == nil {
		c.doer = &http.Client{Timeout: 15 * time.Second}
	}
	return c
}

// FetchProfile looks id up on the primary path. When that fails as not found
// or invalid, the fallback path is tried once and its outcome is final.
func (c *Client) FetchProfile(ctx context.Context, id string) (Profile, error) {
	ctx, span := tracing.StartSpan(ctx, "github.FetchProfile")
	defer span.End()
	span.SetAttributes(attribute.String("github.id", id))

	var p Profile
	err := c.get(ctx, endpointProfile, fmt.Sprintf(c.profilePath, url.PathEscape(id)), nil, &p)
	if err == nil {
		return p, nil
	}
	if !shouldFallback(err) {
		tracing.RecordError(span, err)
		return Profile{}, err
	}

	logger.WithComponent("github").DebugContext(ctx, "primary profile path failed, using fallback",
		"id", id, "kind", KindOf(err).String())
	metrics.UpstreamFallbacks.Inc()
	span.SetAttributes(attribute.Bool("github.fallback", true))

	p = Profile{}
	if err := c.get(ctx, endpointFallback, fmt.Sprintf(c.fallbackPath, url.PathEscape(id)), nil, &p); err != nil {
		tracing.RecordError(span, err)
		return Profile{}, err
	}
	return p, nil
}

// SearchUsers returns one page of users matching query.
func (c *Client) SearchUsers(ctx context.Context, query string, page, perPage int) (SearchResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "github.SearchUsers")
	defer span.End()
	span.SetAttributes(
		attribute.String("github.query", query),
		attribute.Int("github.page", page),
		attribute.Int("github.per_page", perPage),
	)

	q := url.Values{}
	q.Set("q", query)
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	var out SearchResponse
	if err := c.get(ctx, endpointSearch, c.searchPath, q, &out); err != nil {
		tracing.RecordError(span, err)
		return SearchResponse{}, err
	}
	if out.Items == nil {
		out.Items = []SearchItem{}
	}
	span.SetAttributes(attribute.Int("github.total_count", out.TotalCount))
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	call := func() error { return c.do(ctx, endpoint, path, query, out) }
	if c.breaker == nil {
		return call()
	}
	err := c.breaker.Call(call)
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		metrics.UpstreamRequests.WithLabelValues(endpoint, "circuit_open").Inc()
		return &APIError{Kind: KindUpstream, Message: "GitHub temporarily unavailable", Err: err}
	}
	return err
}

func (c *Client) do(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &APIError{Kind: KindInvalid, Message: "build request", Err: err}
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	start := time.Now()
	resp, err := c.doer.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		kind := KindNetwork
		switch {
		case errors.Is(err, httpx.ErrNotSent):
			kind = KindPaced
		case ctx.Err() != nil:
			kind = KindCanceled
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		metrics.UpstreamRequests.WithLabelValues(endpoint, kind.String()).Inc()
		return &APIError{Kind: kind, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := Classify(resp)
		metrics.UpstreamRequests.WithLabelValues(endpoint, apiErr.Kind.String()).Inc()
		if apiErr.Kind == KindRateLimited {
			metrics.UpstreamRateLimited.WithLabelValues(endpoint).Inc()
			logger.WithComponent("github").WarnContext(ctx, "GitHub rate limit hit",
				"endpoint", endpoint, "reset_at", apiErr.ResetHint())
		}
		return apiErr
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(out); err != nil {
		metrics.UpstreamRequests.WithLabelValues(endpoint, KindDecode.String()).Inc()
		return &APIError{Kind: KindDecode, StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}
	metrics.UpstreamRequests.WithLabelValues(endpoint, "success").Inc()
	return nil
}
