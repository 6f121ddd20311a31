package handlers

import (
	"net/http"

	"github.com/quhie/Coding-Challenge-Skipli/internal/apierr"
	"github.com/quhie/Coding-Challenge-Skipli/internal/cache"
	"github.com/quhie/Coding-Challenge-Skipli/internal/logger"
)

// CacheAdmin is the administrative surface of the response cache.
type CacheAdmin interface {
	Stats() map[string]cache.Stats
	Clear()
	ClearNamespace(name string) bool
}

// CacheAdminHandler handles cache administration endpoints.
type CacheAdminHandler struct {
	cache CacheAdmin
}

// NewCacheAdminHandler creates a new cache admin handler.
func NewCacheAdminHandler(c CacheAdmin) *CacheAdminHandler {
	return &CacheAdminHandler{cache: c}
}

// InvalidateCache clears one namespace (?namespace=profile) or everything.
// POST /api/admin/cache/invalidate
func (h *CacheAdminHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	ns := r.URL.Query().Get("namespace")
	if ns == "" {
		h.cache.Clear()
	} else if !h.cache.ClearNamespace(ns) {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("namespace", "Unknown cache namespace: "+ns))
		return
	}
	logger.InfoContext(r.Context(), "Cache invalidated", "namespace", ns)

	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "Cache invalidated successfully",
	})
}

// GetCacheStats returns per-namespace counters.
// GET /api/admin/cache/stats
func (h *CacheAdminHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.cache.Stats())
}
