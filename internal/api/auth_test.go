package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
)

// TestAdminAuthMiddleware tests the admin authentication middleware
func TestAdminAuthMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		adminToken     string
		authHeader     string
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "valid token",
			adminToken:     "test-admin-token-123",
			authHeader:     "Bearer test-admin-token-123",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid token",
			adminToken:     "test-admin-token-123",
			authHeader:     "Bearer wrong-token",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "AUTH_INVALID",
		},
		{
			name:           "missing token",
			adminToken:     "test-admin-token-123",
			authHeader:     "",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "AUTH_MISSING",
		},
		{
			name:           "malformed bearer token",
			adminToken:     "test-admin-token-123",
			authHeader:     "Bearertest-admin-token-123",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "AUTH_INVALID",
		},
		{
			name:           "wrong auth scheme",
			adminToken:     "test-admin-token-123",
			authHeader:     "Basic dGVzdDp0ZXN0",
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "AUTH_INVALID",
		},
		{
			name:           "admin token not configured",
			adminToken:     "",
			authHeader:     "Bearer test-admin-token-123",
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   "SYSTEM_UNAVAILABLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("OK"))
			})
			r := mux.NewRouter()
			r.Handle("/api/admin/test", adminAuth(tt.adminToken)(testHandler))

			req := httptest.NewRequest("GET", "/api/admin/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if tt.expectedCode == "" {
				if rr.Body.String() != "OK" {
					t.Errorf("expected body %q, got %q", "OK", rr.Body.String())
				}
				return
			}
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Error.Code != tt.expectedCode {
				t.Errorf("expected code %s, got %s", tt.expectedCode, body.Error.Code)
			}
		})
	}
}

var adminEndpoints = []struct {
	method string
	path   string
}{
	{"GET", "/api/admin/cache/stats"},
	{"POST", "/api/admin/cache/invalidate"},
	{"GET", "/api/admin/debug/pprof/"},
}

// TestAdminEndpointsRequireAuth tests that all admin endpoints are protected
func TestAdminEndpointsRequireAuth(t *testing.T) {
	router := newTestRouter(t, testConfig())

	for _, endpoint := range adminEndpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			req := httptest.NewRequest(endpoint.method, endpoint.path, nil)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401 for %s %s without auth, got %d",
					endpoint.method, endpoint.path, rr.Code)
			}
		})
	}
}

// TestAdminEndpointsWithAuth tests that admin endpoints work with valid auth
func TestAdminEndpointsWithAuth(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(t, cfg)

	for _, endpoint := range adminEndpoints {
		t.Run(endpoint.method+" "+endpoint.path+" with auth", func(t *testing.T) {
			req := httptest.NewRequest(endpoint.method, endpoint.path, nil)
			req.Header.Set("Authorization", "Bearer "+cfg.AdminAPIToken)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Errorf("expected status 200 for %s %s with auth, got %d",
					endpoint.method, endpoint.path, rr.Code)
			}
		})
	}
}

// TestAdminEndpointsNotMirroredAtRoot keeps the admin surface under /api only.
func TestAdminEndpointsNotMirroredAtRoot(t *testing.T) {
	router := newTestRouter(t, testConfig())

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/cache/stats", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}
