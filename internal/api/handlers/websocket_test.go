package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quhie/Coding-Challenge-Skipli/internal/github"
	"github.com/quhie/Coding-Challenge-Skipli/internal/store"
)

type frame struct {
	Type     string          `json:"type"`
	ID       string          `json:"id"`
	Profile  *github.Profile `json:"profile"`
	Error    *StreamError    `json:"error"`
	Total    int             `json:"total"`
	Resolved int             `json:"resolved"`
	Failed   int             `json:"failed"`
}

func dialStream(t *testing.T, h *FavoritesStream, phone string) *websocket.Conn {
	t.Helper()
	r := mux.NewRouter()
	r.HandleFunc("/ws/favorites/{phoneNumber}", h.HandleWebSocket)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/favorites/" + phone
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func readFrames(t *testing.T, conn *websocket.Conn) []frame {
	t.Helper()
	var frames []frame
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected read error: %v", err)
			return frames
		}
		frames = append(frames, f)
		if f.Type == "done" || f.Type == "error" {
			return frames
		}
	}
}

func TestFavoritesStream(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	for _, id := range []string{"octocat", "limited", "torvalds"} {
		require.NoError(t, st.LikeGithubUser(ctx, "15551234567", id))
	}
	dir := newFakeDirectory()
	reset := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	dir.errs["limited"] = &github.APIError{Kind: github.KindRateLimited, StatusCode: 403, ResetAt: reset}

	frames := readFrames(t, dialStream(t, NewFavoritesStream(st, dir, nil), "15551234567"))
	require.Len(t, frames, 4)

	byID := map[string]frame{}
	for _, f := range frames[:3] {
		assert.Equal(t, "profile", f.Type)
		byID[f.ID] = f
	}
	require.NotNil(t, byID["octocat"].Profile)
	assert.Equal(t, "octocat", byID["octocat"].Profile.Login)
	require.NotNil(t, byID["limited"].Error)
	assert.Nil(t, byID["limited"].Profile)
	assert.Equal(t, "rate_limited", byID["limited"].Error.Kind)
	assert.Equal(t, reset.Format(time.RFC3339), byID["limited"].Error.ResetAt)

	done := frames[3]
	assert.Equal(t, "done", done.Type)
	assert.Equal(t, 3, done.Total)
	assert.Equal(t, 2, done.Resolved)
	assert.Equal(t, 1, done.Failed)
}

func TestFavoritesStreamNoFavorites(t *testing.T) {
	frames := readFrames(t, dialStream(t, NewFavoritesStream(store.NewMemory(), newFakeDirectory(), nil), "15550000000"))
	require.Len(t, frames, 1)
	assert.Equal(t, "done", frames[0].Type)
	assert.Zero(t, frames[0].Total)
}

func TestFavoritesStreamOriginCheck(t *testing.T) {
	h := NewFavoritesStream(store.NewMemory(), newFakeDirectory(), []string{"http://localhost:5173", "*.example.com"})
	r := mux.NewRouter()
	r.HandleFunc("/ws/favorites/{phoneNumber}", h.HandleWebSocket)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/favorites/15550000000"

	tests := []struct {
		name   string
		origin string
		ok     bool
	}{
		{"no origin", "", true},
		{"same host", srv.URL, true},
		{"allowed origin", "http://localhost:5173", true},
		{"wildcard subdomain", "https://app.example.com", true},
		{"foreign origin", "https://evil.test", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.origin != "" {
				header.Set("Origin", tt.origin)
			}
			conn, resp, err := websocket.DefaultDialer.Dial(url, header)
			if !tt.ok {
				require.ErrorIs(t, err, websocket.ErrBadHandshake)
				require.NotNil(t, resp)
				assert.Equal(t, http.StatusForbidden, resp.StatusCode)
				return
			}
			require.NoError(t, err)
			conn.Close()
		})
	}
}
