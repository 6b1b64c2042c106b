package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/procwatch/internal/history"
	"github.com/loykin/procwatch/internal/metrics"
	"github.com/loykin/procwatch/internal/monitor"
	"github.com/loykin/procwatch/internal/tracker"
)

// Router provides embeddable HTTP handlers for inspecting the monitor.
// Endpoints:
//   GET  {basePath}/status       running flag + currently open intervals
//   GET  {basePath}/stats        per-process aggregates, busiest first
//   GET  {basePath}/history      query: limit=N (optional) completed lifespans
//   POST {basePath}/refresh      force one sample tick outside the schedule
//   GET  {basePath}/healthz      liveness
//   GET  /metrics                Prometheus exposition (outside basePath)
// basePath may be empty or start with '/'; no trailing slash.

type Router struct {
	mon      *monitor.Monitor
	store    *history.Store
	basePath string
}

// NewRouter constructs a new Router with configurable basePath.
// Example basePath: "/api" results in /api/status, /api/stats, ...
func NewRouter(mon *monitor.Monitor, store *history.Store, basePath string) *Router {
	bp := sanitizeBase(basePath)
	return &Router{mon: mon, store: store, basePath: bp}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/stats", r.handleStats)
	group.GET("/history", r.handleHistory)
	group.POST("/refresh", r.handleRefresh)
	group.GET("/healthz", r.handleHealthz)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// Call Close or Shutdown on the returned server to stop it.
func NewServer(addr, basePath string, mon *monitor.Monitor, store *history.Store) (*http.Server, error) {
	r := NewRouter(mon, store, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type statusResp struct {
	Running bool                   `json:"running"`
	Open    []tracker.CurrentEntry `json:"open"`
}

func (r *Router) handleStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, statusResp{
		Running: r.mon.Running(),
		Open:    r.mon.QueryCurrent(),
	})
}

func (r *Router) handleStats(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.mon.QueryStats())
}

func (r *Router) handleHistory(c *gin.Context) {
	limit := 0
	if ls := c.Query("limit"); ls != "" {
		n, err := strconv.Atoi(ls)
		if err != nil || n < 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	writeJSON(c, http.StatusOK, historyResp{
		LastUpdated: r.store.LastUpdated(),
		Records:     r.mon.History(limit),
	})
}

type historyResp struct {
	LastUpdated time.Time        `json:"last_updated"`
	Records     []history.Record `json:"process_history"`
}

func (r *Router) handleRefresh(c *gin.Context) {
	if err := r.mon.SampleOnce(); err != nil {
		writeJSON(c, http.StatusConflict, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, statusResp{
		Running: true,
		Open:    r.mon.QueryCurrent(),
	})
}

func (r *Router) handleHealthz(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"ok": true})
}
