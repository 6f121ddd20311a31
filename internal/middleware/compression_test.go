package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
)

const sampleBody = `{"favorite_github_users":[{"login":"octocat","id":583231,"public_repos":8,"followers":9000}]}`

func jsonHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusNotModified && status != http.StatusNoContent {
			w.Write([]byte(sampleBody))
		}
	})
}

func TestNegotiateEncoding(t *testing.T) {
	tests := map[string]string{
		"":                     "",
		"gzip":                 "gzip",
		"gzip, deflate":        "gzip",
		"deflate":              "",
		"br":                   "br",
		"gzip, deflate, br":    "br",
		"br;q=0, gzip":         "gzip",
		"GZIP":                 "gzip",
		"identity, br; q=0.5":  "br",
		"gzip;q=0, br; q = 0 ": "",
	}
	for header, want := range tests {
		if got := negotiateEncoding(header); got != want {
			t.Errorf("negotiateEncoding(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestCompress(t *testing.T) {
	tests := []struct {
		name           string
		acceptEncoding string
		wantEncoding   string
	}{
		{"gzip", "gzip", "gzip"},
		{"brotli preferred", "gzip, br", "br"},
		{"identity", "", ""},
		{"deflate only", "deflate", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/getUserProfile/1", nil)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			rr := httptest.NewRecorder()
			Compress(jsonHandler(http.StatusOK)).ServeHTTP(rr, req)

			if rr.Header().Get("Vary") != "Accept-Encoding" {
				t.Errorf("expected Vary: Accept-Encoding, got %q", rr.Header().Get("Vary"))
			}
			if got := rr.Header().Get("Content-Encoding"); got != tt.wantEncoding {
				t.Fatalf("expected Content-Encoding %q, got %q", tt.wantEncoding, got)
			}

			var reader io.Reader = rr.Body
			switch tt.wantEncoding {
			case "gzip":
				gr, err := gzip.NewReader(rr.Body)
				if err != nil {
					t.Fatalf("gzip reader: %v", err)
				}
				reader = gr
			case "br":
				reader = brotli.NewReader(rr.Body)
			}
			body, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("read body: %v", err)
			}
			if string(body) != sampleBody {
				t.Errorf("body mismatch: %q", body)
			}
		})
	}
}

func TestCompress_SkipsBodilessStatus(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	Compress(jsonHandler(http.StatusNotModified)).ServeHTTP(rr, req)

	if rr.Header().Get("Content-Encoding") != "" {
		t.Error("304 must not be encoded")
	}
	if rr.Body.Len() != 0 {
		t.Errorf("expected empty body, got %d bytes", rr.Body.Len())
	}
}

func TestCompress_SkipsWebSocketUpgrade(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/favorites/1", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Upgrade", "websocket")
	var wrapped bool
	rr := httptest.NewRecorder()
	Compress(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, wrapped = w.(*compressWriter)
	})).ServeHTTP(rr, req)

	if wrapped {
		t.Error("websocket upgrade should receive the raw ResponseWriter")
	}
	if strings.Contains(rr.Header().Get("Vary"), "Accept-Encoding") {
		t.Error("websocket upgrade should not get Vary: Accept-Encoding")
	}
}
