// Package monitor drives the sampling loop: it polls the snapshot source
// at a fixed interval, feeds the lifecycle tracker, buffers completed
// lifespans into the history store and flushes the store on its own,
// independent schedule.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/procwatch/internal/history"
	"github.com/loykin/procwatch/internal/metrics"
	"github.com/loykin/procwatch/internal/snapshot"
	"github.com/loykin/procwatch/internal/tracker"
)

const (
	DefaultSampleInterval = 2 * time.Second
	DefaultFlushInterval  = 20 * time.Second

	// Upper bound for one batch of sink deliveries; sinks never stall
	// the loop longer than this.
	sinkTimeout = 5 * time.Second
)

// Benign state-transition errors: calling Start while running or Stop
// while stopped is reported, not crashed on.
var (
	ErrAlreadyRunning = errors.New("monitor already running")
	ErrNotRunning     = errors.New("monitor not running")
)

// Config holds the two independent schedules of the loop.
type Config struct {
	SampleInterval time.Duration
	FlushInterval  time.Duration
}

func (c Config) withDefaults() Config {
	if c.SampleInterval <= 0 {
		c.SampleInterval = DefaultSampleInterval
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	return c
}

// note is a lifecycle transition queued during Observe and delivered to
// the notifier and sinks after the state lock is released, so slow
// consumers never block the open-interval table.
type note struct {
	start bool
	name  string
	pid   int32
	at    time.Time
	rec   history.Record
}

// Monitor owns the tracker and serializes every access to it: the sample
// path, the stop path and read queries all go through one mutex, and the
// flush path never overlaps a sample because both run on the same
// goroutine.
type Monitor struct {
	mu       sync.Mutex
	cfg      Config
	src      snapshot.Source
	store    *history.Store
	tracker  *tracker.Tracker
	notifier tracker.Notifier
	sinks    []history.Sink
	notes    []note
	running  bool
	quit     chan struct{}
	done     chan struct{}

	nowFn func() time.Time
}

func New(cfg Config, src snapshot.Source, st *history.Store) *Monitor {
	m := &Monitor{
		cfg:      cfg.withDefaults(),
		src:      src,
		store:    st,
		notifier: tracker.NopNotifier{},
		nowFn:    time.Now,
	}
	m.tracker = tracker.New(&collector{m})
	return m
}

// collector is the tracker-facing notifier; it only queues transitions
// for delivery outside the lock.
type collector struct{ m *Monitor }

func (c *collector) ProcessStarted(name string, pid int32, at time.Time) {
	c.m.notes = append(c.m.notes, note{start: true, name: name, pid: pid, at: at})
}

func (c *collector) ProcessEnded(rec history.Record) {
	c.m.notes = append(c.m.notes, note{rec: rec})
}

func (c *collector) FlushResult(error) {}

// SetNotifier installs the presentation-layer notifier. Call before Start.
func (m *Monitor) SetNotifier(n tracker.Notifier) {
	m.mu.Lock()
	if n == nil {
		n = tracker.NopNotifier{}
	}
	m.notifier = n
	m.mu.Unlock()
}

// SetSinks configures external history sinks. Passing no sinks clears the
// list. Call before Start.
func (m *Monitor) SetSinks(sinks ...history.Sink) {
	m.mu.Lock()
	m.sinks = append([]history.Sink(nil), sinks...)
	m.mu.Unlock()
}

// Start loads the persisted history and launches the sampling loop.
// Valid only from the stopped state; otherwise returns ErrAlreadyRunning.
func (m *Monitor) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	m.quit = make(chan struct{})
	m.done = make(chan struct{})
	quit, done := m.quit, m.done
	m.mu.Unlock()

	n := m.store.Load()
	metrics.SetHistoryRecords(m.store.Len())
	slog.Info("monitoring started",
		"loaded_records", n,
		"sample_interval", m.cfg.SampleInterval,
		"flush_interval", m.cfg.FlushInterval)
	go m.run(quit, done)
	return nil
}

// Stop cancels the loop promptly (it does not wait out a pending tick),
// attempts one final best-effort flush and discards open intervals: a
// lifespan that never ended is not persisted. Valid only from the running
// state; otherwise returns ErrNotRunning.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}
	m.running = false
	quit, done := m.quit, m.done
	m.mu.Unlock()

	close(quit)
	<-done

	// The loop has exited; nothing else touches the store now.
	err := m.store.Flush(m.nowFn())
	metrics.IncFlush(err == nil)
	if err != nil {
		slog.Warn("final history flush failed", "error", err)
	}
	m.notify(err)

	m.mu.Lock()
	discarded := m.tracker.OpenCount()
	m.tracker.Reset()
	m.notes = nil
	m.mu.Unlock()
	metrics.SetOpenIntervals(0)
	slog.Info("monitoring stopped", "discarded_open_intervals", discarded)
	return nil
}

// Running reports whether the loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) run(quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	sampleT := time.NewTicker(m.cfg.SampleInterval)
	defer sampleT.Stop()
	flushT := time.NewTicker(m.cfg.FlushInterval)
	defer flushT.Stop()
	for {
		select {
		case <-quit:
			return
		case <-sampleT.C:
			m.sample()
		case <-flushT.C:
			m.flush()
		}
	}
}

// sample performs one tick: snapshot, diff, buffer completed lifespans.
// A snapshot failure is transient: the tick is skipped, the loop lives on.
// Returns false when the monitor stopped while the snapshot was in
// flight; the late result is discarded so a stopped monitor never gains
// open intervals or unflushed records.
func (m *Monitor) sample() bool {
	now := m.nowFn()
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SampleInterval)
	snap, err := m.src.Snapshot(ctx)
	cancel()
	if err != nil {
		metrics.IncSnapshotError()
		slog.Warn("process snapshot failed, skipping tick", "error", err)
		return true
	}

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return false
	}
	ended := m.tracker.Observe(snap, now)
	open := m.tracker.OpenCount()
	notes := m.notes
	m.notes = nil
	m.mu.Unlock()

	if len(ended) > 0 {
		m.store.Append(ended...)
	}
	metrics.IncSample()
	metrics.SetOpenIntervals(open)
	metrics.SetHistoryRecords(m.store.Len())
	m.deliver(notes)
	return true
}

// SampleOnce runs a single tick outside the schedule, e.g. for an
// explicit refresh. Only valid while running; a Stop that completes
// while the snapshot is in flight wins, and the tick reports
// ErrNotRunning instead of mutating stopped state.
func (m *Monitor) SampleOnce() error {
	if !m.Running() {
		return ErrNotRunning
	}
	if !m.sample() {
		return ErrNotRunning
	}
	return nil
}

func (m *Monitor) flush() {
	began := time.Now()
	err := m.store.Flush(m.nowFn())
	metrics.ObserveFlushDuration(time.Since(began).Seconds())
	metrics.IncFlush(err == nil)
	if err != nil {
		slog.Warn("history flush failed, will retry on next tick", "error", err)
	} else {
		slog.Debug("history flushed", "records", m.store.Len())
	}
	m.notify(err)
}

func (m *Monitor) notify(flushErr error) {
	m.mu.Lock()
	n := m.notifier
	m.mu.Unlock()
	n.FlushResult(flushErr)
}

// deliver forwards queued transitions to the presentation notifier and
// the history sinks. Sink failures are logged and otherwise ignored; the
// authoritative record is the store.
func (m *Monitor) deliver(notes []note) {
	if len(notes) == 0 {
		return
	}
	m.mu.Lock()
	n := m.notifier
	sinks := append([]history.Sink(nil), m.sinks...)
	m.mu.Unlock()

	var starts, ends int
	var ctx context.Context
	var cancel context.CancelFunc
	if len(sinks) > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()
	}
	for _, nt := range notes {
		var evt history.Event
		if nt.start {
			starts++
			n.ProcessStarted(nt.name, nt.pid, nt.at)
			evt = history.StartEvent(nt.name, nt.pid, nt.at)
		} else {
			ends++
			n.ProcessEnded(nt.rec)
			evt = history.EndEvent(nt.rec)
		}
		for _, s := range sinks {
			if err := s.Send(ctx, evt); err != nil {
				slog.Warn("history sink send failed", "type", evt.Type, "error", err)
			}
		}
	}
	metrics.AddStarts(starts)
	metrics.AddEnds(ends)
}

// QueryCurrent returns every open interval with its elapsed time. Valid
// in both states; empty when stopped.
func (m *Monitor) QueryCurrent() []tracker.CurrentEntry {
	now := m.nowFn()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.Current(now)
}

// QueryStats returns the per-process aggregates over the full history.
func (m *Monitor) QueryStats() []history.ProcessStats {
	return m.store.Stats()
}

// History returns up to limit most recent completed lifespans in append
// order; limit <= 0 returns everything.
func (m *Monitor) History(limit int) []history.Record {
	recs := m.store.Snapshot()
	if limit > 0 && len(recs) > limit {
		recs = recs[len(recs)-limit:]
	}
	return recs
}
