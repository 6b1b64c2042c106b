// Package tracker converts repeated process-list snapshots into discrete
// lifecycle transitions: a pid going absent->present opens an interval, a
// pid going present->absent closes it into a history record.
//
// Identity across ticks is matched by pid alone, which conflates pid
// reuse with continued execution; a reused pid is only distinguished when
// the reported name differs. This is a known limitation, kept for the
// sub-second cost of the diff.
package tracker

import (
	"sort"
	"time"

	"github.com/loykin/procwatch/internal/history"
	"github.com/loykin/procwatch/internal/snapshot"
)

// OpenInterval is a process currently believed to be running. It exists
// in memory only; it either becomes a history.Record when the pid
// disappears, or is discarded when the monitor stops.
type OpenInterval struct {
	Name      string
	PID       int32
	StartedAt time.Time
}

// CurrentEntry is the read-only view of an open interval.
type CurrentEntry struct {
	Name           string    `json:"name"`
	PID            int32     `json:"pid"`
	StartedAt      time.Time `json:"started_at"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
}

// Notifier receives lifecycle transitions as they are detected. Callbacks
// are invoked synchronously from Observe and must not block.
type Notifier interface {
	ProcessStarted(name string, pid int32, at time.Time)
	ProcessEnded(rec history.Record)
	FlushResult(err error)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) ProcessStarted(string, int32, time.Time) {}
func (NopNotifier) ProcessEnded(history.Record)             {}
func (NopNotifier) FlushResult(error)                       {}

// Tracker owns the table of open intervals. It is not safe for concurrent
// use on its own; the monitor serializes access for the sample path, the
// flush path and read queries.
type Tracker struct {
	open     map[int32]OpenInterval
	notifier Notifier
}

func New(n Notifier) *Tracker {
	if n == nil {
		n = NopNotifier{}
	}
	return &Tracker{open: make(map[int32]OpenInterval), notifier: n}
}

// Observe diffs a snapshot against the open-interval table and returns
// the lifespans completed at this tick, ordered by pid. Starts are
// reported through the Notifier only.
//
// Malformed snapshots never fail: duplicate pids collapse to the
// last-seen entry. A pid reported under a new name is treated as
// end-of-old plus start-of-new.
func (t *Tracker) Observe(snap []snapshot.Process, now time.Time) []history.Record {
	seen := make(map[int32]snapshot.Process, len(snap))
	for _, p := range snap {
		seen[p.PID] = p // last-seen entry per pid wins
	}

	var ended []history.Record
	for pid, iv := range t.open {
		if p, ok := seen[pid]; ok && p.Name == iv.Name {
			continue
		}
		delete(t.open, pid)
		ended = append(ended, history.NewRecord(iv.Name, iv.StartedAt, now, pid))
	}
	sort.Slice(ended, func(i, j int) bool { return ended[i].PID < ended[j].PID })
	for _, rec := range ended {
		t.notifier.ProcessEnded(rec)
	}

	for pid, p := range seen {
		if _, ok := t.open[pid]; ok {
			continue
		}
		t.open[pid] = OpenInterval{Name: p.Name, PID: pid, StartedAt: now}
		t.notifier.ProcessStarted(p.Name, pid, now)
	}

	return ended
}

// Current returns the open intervals with elapsed time relative to now,
// ordered by pid.
func (t *Tracker) Current(now time.Time) []CurrentEntry {
	out := make([]CurrentEntry, 0, len(t.open))
	for _, iv := range t.open {
		elapsed := int64(now.Sub(iv.StartedAt) / time.Second)
		if elapsed < 0 {
			elapsed = 0
		}
		out = append(out, CurrentEntry{
			Name:           iv.Name,
			PID:            iv.PID,
			StartedAt:      iv.StartedAt,
			ElapsedSeconds: elapsed,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PID < out[j].PID })
	return out
}

// OpenCount returns the number of open intervals.
func (t *Tracker) OpenCount() int { return len(t.open) }

// Reset discards all open intervals. Used when monitoring stops: an
// interval that never ended is not persisted.
func (t *Tracker) Reset() {
	t.open = make(map[int32]OpenInterval)
}
