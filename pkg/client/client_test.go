package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})
	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(StatusResponse{
			Running: true,
			Open:    []OpenInterval{{Name: "nginx", PID: 42, StartedAt: time.Now(), ElapsedSeconds: 3}},
		})
	})
	mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]ProcessStats{
			{ProcessName: "nginx", TotalDurationSeconds: 120, RunCount: 2},
		})
	})
	mux.HandleFunc("GET /api/history", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "5" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "limit must be 5 in this test"})
			return
		}
		_ = json.NewEncoder(w).Encode(HistoryResponse{
			LastUpdated: time.Now(),
			Records:     []Record{{ProcessName: "nginx", PID: 42, DurationSeconds: 60, DurationReadable: "0:01:00"}},
		})
	})
	mux.HandleFunc("POST /api/refresh", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(StatusResponse{Running: true})
	})
	return httptest.NewServer(mux)
}

func newTestClient(ts *httptest.Server) *Client {
	return New(Config{BaseURL: ts.URL + "/api", Timeout: 2 * time.Second})
}

func TestClientStatus(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()
	c := newTestClient(ts)

	if !c.IsReachable(context.Background()) {
		t.Fatalf("daemon not reachable")
	}
	st, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.Running || len(st.Open) != 1 || st.Open[0].Name != "nginx" {
		t.Fatalf("status = %+v", st)
	}
}

func TestClientStats(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()
	stats, err := newTestClient(ts).Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 1 || stats[0].TotalDurationSeconds != 120 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestClientHistoryPassesLimit(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()
	h, err := newTestClient(ts).History(context.Background(), 5)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(h.Records) != 1 || h.Records[0].DurationReadable != "0:01:00" {
		t.Fatalf("history = %+v", h)
	}
}

func TestClientRefresh(t *testing.T) {
	ts := newTestServer(t)
	defer ts.Close()
	st, err := newTestClient(ts).Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !st.Running {
		t.Fatalf("refresh = %+v", st)
	}
}

func TestClientSurfacesAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "monitor not running"})
	}))
	defer ts.Close()
	_, err := New(Config{BaseURL: ts.URL}).Refresh(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := err.Error(); got != "daemon returned 409: monitor not running" {
		t.Fatalf("error = %q", got)
	}
}

func TestClientUnreachable(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	if c.IsReachable(context.Background()) {
		t.Fatalf("expected unreachable")
	}
}
