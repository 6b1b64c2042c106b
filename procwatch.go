package procwatch

import (
	"net/http"
	"time"

	cfg "github.com/loykin/procwatch/internal/config"
	"github.com/loykin/procwatch/internal/history"
	"github.com/loykin/procwatch/internal/history/factory"
	"github.com/loykin/procwatch/internal/metrics"
	"github.com/loykin/procwatch/internal/monitor"
	iapi "github.com/loykin/procwatch/internal/server"
	"github.com/loykin/procwatch/internal/snapshot"
	"github.com/loykin/procwatch/internal/tracker"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Record = history.Record

type ProcessStats = history.ProcessStats

type HistorySink = history.Sink

type Process = snapshot.Process

type Source = snapshot.Source

type Filter = snapshot.Filter

type Notifier = tracker.Notifier

type CurrentEntry = tracker.CurrentEntry

// Monitor is a thin facade over internal/monitor.Monitor.
// It provides a stable public API for embedding.

type Monitor struct {
	inner *monitor.Monitor
	store *history.Store
}

// New builds a monitor from config using the system process table as
// snapshot source.
func New(c Config) *Monitor {
	src := snapshot.NewGopsutilSource(c.Snapshot.Filter())
	return NewWithSource(c, src)
}

// NewWithSource builds a monitor over a custom snapshot source, e.g. for
// containers or tests.
func NewWithSource(c Config, src snapshot.Source) *Monitor {
	st := history.NewStore(c.DataFile)
	m := monitor.New(monitor.Config{
		SampleInterval: c.SampleInterval,
		FlushInterval:  c.FlushInterval,
	}, src, st)
	return &Monitor{inner: m, store: st}
}

func (m *Monitor) SetNotifier(n Notifier)         { m.inner.SetNotifier(n) }
func (m *Monitor) SetSinks(sinks ...HistorySink)  { m.inner.SetSinks(sinks...) }
func (m *Monitor) Start() error                   { return m.inner.Start() }
func (m *Monitor) Stop() error                    { return m.inner.Stop() }
func (m *Monitor) Running() bool                  { return m.inner.Running() }
func (m *Monitor) SampleOnce() error              { return m.inner.SampleOnce() }
func (m *Monitor) Current() []CurrentEntry        { return m.inner.QueryCurrent() }
func (m *Monitor) Stats() []ProcessStats          { return m.inner.QueryStats() }
func (m *Monitor) History(limit int) []Record     { return m.inner.History(limit) }
func (m *Monitor) LastUpdated() time.Time         { return m.store.LastUpdated() }

type Config = cfg.Config

func DefaultConfig() Config { return cfg.Default() }

func LoadConfig(path string) (Config, error) {
	return cfg.Load(path)
}

// NewSinkFromDSN builds a history sink from a DSN string, e.g.
// "sqlite:///var/lib/procwatch/history.db" or "postgres://...".
func NewSinkFromDSN(dsn string) (HistorySink, error) {
	return factory.NewSinkFromDSN(dsn)
}

// NewHTTPServer starts an HTTP server exposing the inspection API for the
// given monitor.
func NewHTTPServer(addr, basePath string, m *Monitor) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, m.inner, m.store)
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
