package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/procwatch/internal/history"
	"github.com/loykin/procwatch/internal/monitor"
	"github.com/loykin/procwatch/internal/snapshot"
)

type swapSource struct {
	mu   sync.Mutex
	snap []snapshot.Process
}

func (s *swapSource) set(snap []snapshot.Process) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func (s *swapSource) Snapshot(context.Context) ([]snapshot.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]snapshot.Process(nil), s.snap...), nil
}

func setupRouter(t *testing.T, base string) (http.Handler, *monitor.Monitor, *swapSource) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	src := &swapSource{}
	st := history.NewStore(filepath.Join(t.TempDir(), "process_log.json"))
	// Long intervals: ticks are driven explicitly through the refresh endpoint.
	mon := monitor.New(monitor.Config{SampleInterval: time.Hour, FlushInterval: time.Hour}, src, st)
	r := NewRouter(mon, st, base)
	return r.Handler(), mon, src
}

func doReq(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	h, _, _ := setupRouter(t, "/api")
	rec := doReq(t, h, http.MethodGet, "/api/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStatusStopped(t *testing.T) {
	h, _, _ := setupRouter(t, "")
	rec := doReq(t, h, http.MethodGet, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var st statusResp
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Running {
		t.Fatalf("reported running before start")
	}
}

func TestRefreshAndStatus(t *testing.T) {
	h, mon, src := setupRouter(t, "/api")
	if err := mon.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = mon.Stop() }()

	src.set([]snapshot.Process{{Name: "nginx", PID: 42}})
	rec := doReq(t, h, http.MethodPost, "/api/refresh")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: %d: %s", rec.Code, rec.Body.String())
	}
	var st statusResp
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.Running || len(st.Open) != 1 || st.Open[0].Name != "nginx" {
		t.Fatalf("status = %+v", st)
	}
}

func TestRefreshConflictWhenStopped(t *testing.T) {
	h, _, _ := setupRouter(t, "/api")
	rec := doReq(t, h, http.MethodPost, "/api/refresh")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestHistoryAndStats(t *testing.T) {
	h, mon, src := setupRouter(t, "")
	if err := mon.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = mon.Stop() }()

	src.set([]snapshot.Process{{Name: "job", PID: 1}})
	doReq(t, h, http.MethodPost, "/refresh")
	src.set(nil)
	doReq(t, h, http.MethodPost, "/refresh")

	rec := doReq(t, h, http.MethodGet, "/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("history: %d", rec.Code)
	}
	var hist historyResp
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(hist.Records) != 1 || hist.Records[0].ProcessName != "job" {
		t.Fatalf("history = %+v", hist)
	}

	rec = doReq(t, h, http.MethodGet, "/stats")
	var stats []history.ProcessStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(stats) != 1 || stats[0].ProcessName != "job" || stats[0].RunCount != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestHistoryRejectsBadLimit(t *testing.T) {
	h, _, _ := setupRouter(t, "")
	for _, q := range []string{"limit=abc", "limit=-1"} {
		rec := doReq(t, h, http.MethodGet, "/history?"+q)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestSanitizeBase(t *testing.T) {
	cases := map[string]string{
		"":      "",
		"/":     "",
		"api":   "/api",
		"/api":  "/api",
		"/api/": "/api",
		" /v1 ": "/v1",
	}
	for in, want := range cases {
		if got := sanitizeBase(in); got != want {
			t.Fatalf("sanitizeBase(%q) = %q, want %q", in, got, want)
		}
	}
}
