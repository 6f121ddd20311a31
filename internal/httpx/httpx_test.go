package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestDoSingleAttemptOn5xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var seen []AttemptInfo
	d := New(time.Second, nil, func(info AttemptInfo) { seen = append(seen, info) }, true)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/user/octocat", nil)
	resp, err := d.Do(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502 passed through, got %d", resp.StatusCode)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected exactly one attempt, got %d", calls)
	}
	if len(seen) != 1 || seen[0].Status != http.StatusBadGateway || seen[0].Method != http.MethodGet {
		t.Errorf("unexpected observer data: %+v", seen)
	}
}

func TestDoPreAttemptErrorAborts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	preErr := errors.New("paced out")
	d := &Doer{Client: srv.Client(), Pre: func(context.Context) error { return preErr }}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := d.Do(req)
	if !errors.Is(err, preErr) {
		t.Fatalf("expected pre-attempt error, got %v", err)
	}
	if !errors.Is(err, ErrNotSent) {
		t.Errorf("pre-attempt error should wrap ErrNotSent, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("request must not be sent when PreAttempt fails")
	}
}

func TestDoTransportErrorObserved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	var seen AttemptInfo
	d := New(time.Second, nil, func(info AttemptInfo) { seen = info }, false)
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	if _, err := d.Do(req); err == nil {
		t.Fatal("expected transport error")
	}
	if seen.Err == nil || seen.Status != 0 {
		t.Errorf("observer should see the transport error, got %+v", seen)
	}
}

func TestDoHonorsContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)

	d := New(time.Second, nil, nil, false)
	if _, err := d.Do(req); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLimiterPre(t *testing.T) {
	if LimiterPre(nil) != nil {
		t.Fatal("nil limiter should disable pacing")
	}

	pre := LimiterPre(rate.NewLimiter(rate.Every(time.Hour), 1))
	if err := pre(context.Background()); err != nil {
		t.Fatalf("first call should use the burst token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := pre(ctx); err == nil {
		t.Fatal("second call should fail: the next token is an hour away")
	}
}

func TestDoPacingTimeoutIsNotSent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	d := New(time.Second, LimiterPre(rate.NewLimiter(rate.Every(time.Hour), 1)), nil, false)
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := d.Do(req)
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	req, _ = http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if _, err := d.Do(req); !errors.Is(err, ErrNotSent) {
		t.Fatalf("expected ErrNotSent while paced, got %v", err)
	}
}
