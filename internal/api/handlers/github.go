package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"

	"github.com/quhie/Coding-Challenge-Skipli/internal/apierr"
	"github.com/quhie/Coding-Challenge-Skipli/internal/directory"
	"github.com/quhie/Coding-Challenge-Skipli/internal/github"
	"github.com/quhie/Coding-Challenge-Skipli/internal/tracing"
)

const (
	defaultPerPage = 30
	maxPerPage     = 100 // GitHub's own cap
)

// Directory is the cache-aware GitHub lookup service.
type Directory interface {
	Profile(ctx context.Context, id string) (github.Profile, error)
	Search(ctx context.Context, query string, page, perPage int) (directory.SearchPage, error)
	ResolveAll(ctx context.Context, ids []string) []github.Profile
	StreamAll(ctx context.Context, ids []string, emit func(directory.ProfileResult)) []directory.ProfileResult
}

type GitHubHandlers struct{ dir Directory }

func NewGitHubHandlers(dir Directory) *GitHubHandlers { return &GitHubHandlers{dir: dir} }

// SearchUsers handles GET /searchGithubUsers?q=&page=&per_page=.
func (h *GitHubHandlers) SearchUsers(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "handlers.SearchUsers")
	defer span.End()

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("q"))
		return
	}
	page := positiveInt(r, "page", 1)
	perPage := positiveInt(r, "per_page", defaultPerPage)
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	span.SetAttributes(
		attribute.String("search_query", q),
		attribute.Int("page", page),
		attribute.Int("per_page", perPage),
	)

	res, err := h.dir.Search(ctx, q, page, perPage)
	if err != nil {
		tracing.RecordError(span, err)
		apierr.WriteErrorWithContext(w, r, gitHubError(ctx, err, q))
		return
	}
	span.SetAttributes(attribute.Int("results_count", len(res.Items)))
	writeJSON(w, r, http.StatusOK, res)
}

// FindProfile handles GET /findGithubUserProfile/{id}.
func (h *GitHubHandlers) FindProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "handlers.FindProfile")
	defer span.End()

	id := strings.TrimSpace(mux.Vars(r)["id"])
	if err := sanitizer.ValidateGitHubID(id); err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("id", err.Error()))
		return
	}
	span.SetAttributes(attribute.String("github.id", id))

	p, err := h.dir.Profile(ctx, id)
	if err != nil {
		tracing.RecordError(span, err)
		apierr.WriteErrorWithContext(w, r, gitHubError(ctx, err, id))
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}
