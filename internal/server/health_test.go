package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// staticPinger stands in for the vector store check, which would need a
// live gRPC connection; the history check in these tests runs the real
// HistoryPinger over a fakeHistory.
type staticPinger struct {
	name string
	err  error
}

func (p *staticPinger) Name() string                 { return p.name }
func (p *staticPinger) Ping(_ context.Context) error { return p.err }

// readyProbe runs GET /api/ready against a server whose qdrant and history
// dependencies are in the given states and decodes the response.
func readyProbe(t *testing.T, qdrantErr, historyErr error) (int, readyResponse) {
	t.Helper()

	s := newTestServer()
	s.pingers = []Pinger{
		&staticPinger{name: "qdrant", err: qdrantErr},
		NewHistoryPinger(&fakeHistory{pingErr: historyErr}),
	}

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()
	s.handleReady(w, req)

	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return w.Code, resp
}

func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	s.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d — body: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status: expected %q, got %q", "ok", body["status"])
	}
}

func TestHandleReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		qdrantErr  error
		historyErr error
		wantCode   int
		wantReady  bool
		// wantFailing names the checks that must report ok:false.
		wantFailing []string
	}{
		{
			name:      "both services up",
			wantCode:  http.StatusOK,
			wantReady: true,
		},
		{
			name:        "qdrant down",
			qdrantErr:   errors.New("connection refused"),
			wantCode:    http.StatusServiceUnavailable,
			wantFailing: []string{"qdrant"},
		},
		{
			name:        "history database down",
			historyErr:  errors.New("database is locked"),
			wantCode:    http.StatusServiceUnavailable,
			wantFailing: []string{"history"},
		},
		{
			name:        "everything down",
			qdrantErr:   errors.New("connection refused"),
			historyErr:  errors.New("timeout"),
			wantCode:    http.StatusServiceUnavailable,
			wantFailing: []string{"qdrant", "history"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, resp := readyProbe(t, tt.qdrantErr, tt.historyErr)
			if code != tt.wantCode {
				t.Fatalf("status = %d, want %d", code, tt.wantCode)
			}
			if resp.Ready != tt.wantReady {
				t.Errorf("ready = %v, want %v", resp.Ready, tt.wantReady)
			}
			if len(resp.Checks) != 2 {
				t.Fatalf("expected 2 checks, got %d", len(resp.Checks))
			}

			failing := map[string]bool{}
			for _, name := range tt.wantFailing {
				failing[name] = true
			}
			for _, c := range resp.Checks {
				if failing[c.Name] {
					if c.OK {
						t.Errorf("check %q: expected ok:false", c.Name)
					}
					if c.Error == "" {
						t.Errorf("check %q: expected non-empty error", c.Name)
					}
					continue
				}
				if !c.OK {
					t.Errorf("check %q: expected ok:true, error %q", c.Name, c.Error)
				}
			}
		})
	}
}

func TestHandleReady_NoPingers(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()

	s.handleReady(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	var resp readyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Ready {
		t.Errorf("expected ready:true with no pingers")
	}
	if len(resp.Checks) != 0 {
		t.Errorf("expected 0 checks, got %d", len(resp.Checks))
	}
}

func TestHandleReady_ContentType(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.pingers = []Pinger{&staticPinger{name: "qdrant", err: errors.New("down")}}
	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	w := httptest.NewRecorder()

	s.handleReady(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}
}
