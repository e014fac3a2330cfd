package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// fakePinger returns err, optionally after delay.
type fakePinger struct {
	name  string
	err   error
	delay time.Duration
}

func (f *fakePinger) Name() string { return f.name }

func (f *fakePinger) Ping(ctx context.Context) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w := httptest.NewRecorder()
	s.handleHealth(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status: got %q", body["status"])
	}
}

func TestHandleReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		pingers   []Pinger
		wantCode  int
		wantReady bool
		wantOK    []bool
	}{
		{
			name:      "no pingers",
			wantCode:  http.StatusOK,
			wantReady: true,
			wantOK:    []bool{},
		},
		{
			name: "all healthy",
			pingers: []Pinger{
				&fakePinger{name: "object-storage"},
				&fakePinger{name: "vertex-rag"},
			},
			wantCode:  http.StatusOK,
			wantReady: true,
			wantOK:    []bool{true, true},
		},
		{
			name: "one failing",
			pingers: []Pinger{
				&fakePinger{name: "object-storage", err: errors.New("403 forbidden")},
				&fakePinger{name: "vertex-rag"},
			},
			wantCode: http.StatusServiceUnavailable,
			wantOK:   []bool{false, true},
		},
		{
			name: "all failing",
			pingers: []Pinger{
				&fakePinger{name: "object-storage", err: errors.New("connection refused")},
				&fakePinger{name: "qdrant", err: errors.New("unavailable")},
			},
			wantCode: http.StatusServiceUnavailable,
			wantOK:   []bool{false, false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer()
			s.pingers = tt.pingers
			w := httptest.NewRecorder()
			s.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

			if w.Code != tt.wantCode {
				t.Fatalf("status: got %d, want %d", w.Code, tt.wantCode)
			}
			var resp readyResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Ready != tt.wantReady {
				t.Errorf("ready: got %v, want %v", resp.Ready, tt.wantReady)
			}
			if len(resp.Checks) != len(tt.wantOK) {
				t.Fatalf("checks: got %d, want %d", len(resp.Checks), len(tt.wantOK))
			}
			for i, c := range resp.Checks {
				if c.Name != tt.pingers[i].Name() {
					t.Errorf("check %d: name %q, want %q", i, c.Name, tt.pingers[i].Name())
				}
				if c.OK != tt.wantOK[i] {
					t.Errorf("check %s: ok=%v, want %v", c.Name, c.OK, tt.wantOK[i])
				}
				if !c.OK && c.Error == "" {
					t.Errorf("check %s: failing probe has no error", c.Name)
				}
			}
		})
	}
}

func TestHandleReady_ProbesConcurrently(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.pingers = []Pinger{
		&fakePinger{name: "a", delay: 200 * time.Millisecond},
		&fakePinger{name: "b", delay: 200 * time.Millisecond},
		&fakePinger{name: "c", delay: 200 * time.Millisecond},
	}

	start := time.Now()
	w := httptest.NewRecorder()
	s.handleReady(w, httptest.NewRequest(http.MethodGet, "/api/ready", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if elapsed := time.Since(start); elapsed > 550*time.Millisecond {
		t.Errorf("probes ran sequentially: %v", elapsed)
	}
}
