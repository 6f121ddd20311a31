package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/quhie/Coding-Challenge-Skipli/internal/directory"
	"github.com/quhie/Coding-Challenge-Skipli/internal/github"
	"github.com/quhie/Coding-Challenge-Skipli/internal/logger"
	"github.com/quhie/Coding-Challenge-Skipli/internal/metrics"
	"github.com/quhie/Coding-Challenge-Skipli/internal/middleware"
	"github.com/quhie/Coding-Challenge-Skipli/internal/secrets"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512
)

// checkOrigin admits clients that send no Origin (non-browser), same-host
// pages, and origins on the CORS allow-list. CORS headers do not gate
// upgrades, so the handshake checks it here.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		return middleware.OriginAllowed(origin, allowed)
	}
}

// StreamMessage is one frame of the favorites stream.
type StreamMessage struct {
	Type    string          `json:"type"` // "profile" or "error"
	ID      string          `json:"id,omitempty"`
	Profile *github.Profile `json:"profile,omitempty"`
	Error   *StreamError    `json:"error,omitempty"`
}

// StreamDone is the final frame of the favorites stream.
type StreamDone struct {
	Type     string `json:"type"` // "done"
	Total    int    `json:"total"`
	Resolved int    `json:"resolved"`
	Failed   int    `json:"failed"`
}

// StreamError describes a lookup that did not resolve.
type StreamError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	ResetAt string `json:"reset_at,omitempty"`
}

func streamError(err error) *StreamError {
	se := &StreamError{Kind: github.KindOf(err).String(), Message: err.Error()}
	if apiErr := asAPIError(err); apiErr != nil && apiErr.Kind == github.KindRateLimited {
		se.ResetAt = apiErr.ResetHint()
	}
	return se
}

// FavoritesStream pushes each favorite as soon as its lookup settles.
type FavoritesStream struct {
	store    FavoritesStore
	dir      Directory
	upgrader websocket.Upgrader
}

// NewFavoritesStream accepts browser upgrades only from allowedOrigins.
func NewFavoritesStream(store FavoritesStore, dir Directory, allowedOrigins []string) *FavoritesStream {
	return &FavoritesStream{
		store: store,
		dir:   dir,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

// HandleWebSocket handles GET /ws/favorites/{phoneNumber}. It sends one
// "profile" frame per settled lookup, success or failure, then a "done"
// frame with counts and closes.
func (h *FavoritesStream) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(mux.Vars(r)["phoneNumber"])
	log := logger.WithRequestID(r.Context()).With("phone", secrets.MaskPhone(phone))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		log.Warn("Failed to upgrade to WebSocket", "error", err)
		return
	}
	defer conn.Close()
	metrics.WebSocketConnections.Inc()
	defer metrics.WebSocketConnections.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go readUntilClose(conn, cancel)

	send := func(msg any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			return err
		}
		metrics.WebSocketMessagesSent.Inc()
		return nil
	}

	if phone == "" {
		_ = send(StreamMessage{Type: "error", Error: &StreamError{Kind: "invalid", Message: "phone number is required"}})
		return
	}

	ids, err := h.store.FavoriteGithubUsers(ctx, phone)
	if err != nil {
		log.Error("Failed to load favorites for stream", "error", err)
		_ = send(StreamMessage{Type: "error", Error: &StreamError{Kind: "store", Message: "failed to load favorites"}})
		return
	}

	results := h.dir.StreamAll(ctx, ids, func(res directory.ProfileResult) {
		msg := StreamMessage{Type: "profile", ID: res.Key}
		if res.OK() {
			p := res.Value
			msg.Profile = &p
		} else {
			msg.Error = streamError(res.Err)
		}
		if err := send(msg); err != nil {
			log.Debug("WebSocket write failed, cancelling stream", "error", err)
			cancel()
		}
	})

	done := StreamDone{Type: "done", Total: len(results)}
	for _, res := range results {
		if res.OK() {
			done.Resolved++
		} else {
			done.Failed++
		}
	}
	if err := send(done); err == nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
			time.Now().Add(writeWait))
	}
	log.Info("Favorites stream finished", "total", done.Total, "resolved", done.Resolved, "failed", done.Failed)
}

// readUntilClose drains client frames so close and ping control frames are
// processed, and cancels the stream when the client goes away.
func readUntilClose(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket unexpected close", "error", err)
			}
			return
		}
	}
}
