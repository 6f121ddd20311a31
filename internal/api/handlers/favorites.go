package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/quhie/Coding-Challenge-Skipli/internal/apierr"
	"github.com/quhie/Coding-Challenge-Skipli/internal/logger"
	"github.com/quhie/Coding-Challenge-Skipli/internal/secrets"
	"github.com/quhie/Coding-Challenge-Skipli/internal/utils"
)

// FavoritesStore persists liked GitHub users per phone number.
type FavoritesStore interface {
	LikeGithubUser(ctx context.Context, phone, githubUserID string) error
	FavoriteGithubUsers(ctx context.Context, phone string) ([]string, error)
}

type FavoritesHandlers struct {
	store FavoritesStore
	dir   Directory
}

func NewFavoritesHandlers(store FavoritesStore, dir Directory) *FavoritesHandlers {
	return &FavoritesHandlers{store: store, dir: dir}
}

type likeReq struct {
	PhoneNumber  string `json:"phone_number"`
	GithubUserID string `json:"github_user_id"`
}

// Like handles POST /likeGithubUser. Liking twice is a no-op.
func (h *FavoritesHandlers) Like(w http.ResponseWriter, r *http.Request) {
	var req likeReq
	if !decodeBody(w, r, &req) {
		return
	}
	phone := strings.TrimSpace(req.PhoneNumber)
	id := strings.TrimSpace(req.GithubUserID)
	if phone == "" {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("phone_number"))
		return
	}
	if id == "" {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("github_user_id"))
		return
	}
	if err := sanitizer.ValidateGitHubID(id); err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("github_user_id", err.Error()))
		return
	}

	if err := h.store.LikeGithubUser(r.Context(), phone, id); err != nil {
		logger.ErrorContext(r.Context(), "Failed to save favorite", "phone", secrets.MaskPhone(phone), "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.SystemStore(""))
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"message": "GitHub user liked successfully"})
}

type basicFavorite struct {
	ID    string `json:"id"`
	Login string `json:"login"`
}

// GetUserProfile handles GET /getUserProfile/{phoneNumber}?page&limit&basic.
// Lookups that fail are left out of the response.
func (h *FavoritesHandlers) GetUserProfile(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(mux.Vars(r)["phoneNumber"])
	if phone == "" {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("phoneNumber"))
		return
	}

	ids, err := h.store.FavoriteGithubUsers(r.Context(), phone)
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to load favorites", "phone", secrets.MaskPhone(phone), "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.SystemStore(""))
		return
	}

	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	ids = utils.Paginate(ids, page, limit)

	if basic, _ := strconv.ParseBool(q.Get("basic")); basic {
		out := make([]basicFavorite, len(ids))
		for i, id := range ids {
			out[i] = basicFavorite{ID: id, Login: id}
		}
		writeJSON(w, r, http.StatusOK, map[string]interface{}{"favorite_github_users": out})
		return
	}

	profiles := h.dir.ResolveAll(r.Context(), ids)
	writeJSON(w, r, http.StatusOK, map[string]interface{}{"favorite_github_users": profiles})
}
