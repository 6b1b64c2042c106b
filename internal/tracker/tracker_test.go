package tracker

import (
	"testing"
	"time"

	"github.com/loykin/procwatch/internal/history"
	"github.com/loykin/procwatch/internal/snapshot"
)

var base = time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)

func at(secs int) time.Time { return base.Add(time.Duration(secs) * time.Second) }

func TestObserveLifecycle(t *testing.T) {
	tr := New(nil)

	// Empty host, then chrome appears for two ticks, then disappears.
	if ended := tr.Observe(nil, at(0)); len(ended) != 0 {
		t.Fatalf("tick 0: unexpected ends %+v", ended)
	}
	snap := []snapshot.Process{{Name: "chrome", PID: 1234}}
	if ended := tr.Observe(snap, at(2)); len(ended) != 0 {
		t.Fatalf("tick 2: unexpected ends %+v", ended)
	}
	if tr.OpenCount() != 1 {
		t.Fatalf("tick 2: open = %d, want 1", tr.OpenCount())
	}
	if ended := tr.Observe(snap, at(4)); len(ended) != 0 {
		t.Fatalf("tick 4: continued presence must not end, got %+v", ended)
	}
	ended := tr.Observe(nil, at(6))
	if len(ended) != 1 {
		t.Fatalf("tick 6: got %d ends, want 1", len(ended))
	}
	rec := ended[0]
	if rec.ProcessName != "chrome" || rec.PID != 1234 {
		t.Fatalf("wrong record: %+v", rec)
	}
	if !rec.StartTime.Equal(at(2)) || !rec.EndTime.Equal(at(6)) {
		t.Fatalf("interval = [%v, %v], want [%v, %v]", rec.StartTime, rec.EndTime, at(2), at(6))
	}
	if rec.DurationSeconds != 4 {
		t.Fatalf("duration = %d, want 4", rec.DurationSeconds)
	}
	if tr.OpenCount() != 0 {
		t.Fatalf("open = %d after end, want 0", tr.OpenCount())
	}
}

func TestObserveNameChangeSamePid(t *testing.T) {
	tr := New(nil)
	tr.Observe([]snapshot.Process{{Name: "old", PID: 50}}, at(0))
	ended := tr.Observe([]snapshot.Process{{Name: "new", PID: 50}}, at(2))
	if len(ended) != 1 || ended[0].ProcessName != "old" {
		t.Fatalf("expected old interval to end, got %+v", ended)
	}
	cur := tr.Current(at(2))
	if len(cur) != 1 || cur[0].Name != "new" || !cur[0].StartedAt.Equal(at(2)) {
		t.Fatalf("expected fresh interval for new name, got %+v", cur)
	}
}

func TestObserveDuplicatePidLastWins(t *testing.T) {
	tr := New(nil)
	snap := []snapshot.Process{{Name: "first", PID: 7}, {Name: "second", PID: 7}}
	if ended := tr.Observe(snap, at(0)); len(ended) != 0 {
		t.Fatalf("unexpected ends: %+v", ended)
	}
	cur := tr.Current(at(0))
	if len(cur) != 1 || cur[0].Name != "second" {
		t.Fatalf("want single interval for last-seen entry, got %+v", cur)
	}
}

func TestObserveEmptySnapshotEndsEverything(t *testing.T) {
	tr := New(nil)
	tr.Observe([]snapshot.Process{{Name: "a", PID: 1}, {Name: "b", PID: 2}, {Name: "c", PID: 3}}, at(0))
	ended := tr.Observe([]snapshot.Process{}, at(2))
	if len(ended) != 3 {
		t.Fatalf("got %d ends, want 3", len(ended))
	}
	// Ordered by pid.
	for i, want := range []int32{1, 2, 3} {
		if ended[i].PID != want {
			t.Fatalf("ended[%d].PID = %d, want %d", i, ended[i].PID, want)
		}
	}
}

func TestObserveNeverDuplicatesOpenInterval(t *testing.T) {
	tr := New(nil)
	snap := []snapshot.Process{{Name: "steady", PID: 11}}
	start := at(0)
	tr.Observe(snap, start)
	for i := 1; i <= 5; i++ {
		tr.Observe(snap, at(2*i))
	}
	cur := tr.Current(at(10))
	if len(cur) != 1 {
		t.Fatalf("open = %d, want 1", len(cur))
	}
	if !cur[0].StartedAt.Equal(start) {
		t.Fatalf("start drifted to %v, want %v", cur[0].StartedAt, start)
	}
	if cur[0].ElapsedSeconds != 10 {
		t.Fatalf("elapsed = %d, want 10", cur[0].ElapsedSeconds)
	}
}

func TestCurrentSortedAndClamped(t *testing.T) {
	tr := New(nil)
	tr.Observe([]snapshot.Process{{Name: "z", PID: 30}, {Name: "a", PID: 10}, {Name: "m", PID: 20}}, at(5))
	cur := tr.Current(at(5))
	for i, want := range []int32{10, 20, 30} {
		if cur[i].PID != want {
			t.Fatalf("cur[%d].PID = %d, want %d", i, cur[i].PID, want)
		}
	}
	// A clock that moved backwards must not yield negative elapsed time.
	cur = tr.Current(at(0))
	for _, e := range cur {
		if e.ElapsedSeconds != 0 {
			t.Fatalf("elapsed = %d for backwards clock, want 0", e.ElapsedSeconds)
		}
	}
}

func TestReset(t *testing.T) {
	tr := New(nil)
	tr.Observe([]snapshot.Process{{Name: "a", PID: 1}}, at(0))
	tr.Reset()
	if tr.OpenCount() != 0 {
		t.Fatalf("open = %d after reset, want 0", tr.OpenCount())
	}
	// A pid present before the reset is a fresh start afterwards.
	if ended := tr.Observe([]snapshot.Process{{Name: "a", PID: 1}}, at(2)); len(ended) != 0 {
		t.Fatalf("unexpected ends after reset: %+v", ended)
	}
	cur := tr.Current(at(2))
	if len(cur) != 1 || !cur[0].StartedAt.Equal(at(2)) {
		t.Fatalf("expected fresh interval, got %+v", cur)
	}
}

type recordingNotifier struct {
	starts []string
	ends   []history.Record
}

func (r *recordingNotifier) ProcessStarted(name string, pid int32, _ time.Time) {
	r.starts = append(r.starts, name)
}
func (r *recordingNotifier) ProcessEnded(rec history.Record) { r.ends = append(r.ends, rec) }
func (r *recordingNotifier) FlushResult(error)               {}

func TestObserveNotifiesTransitions(t *testing.T) {
	n := &recordingNotifier{}
	tr := New(n)
	tr.Observe([]snapshot.Process{{Name: "a", PID: 1}}, at(0))
	if len(n.starts) != 1 || n.starts[0] != "a" {
		t.Fatalf("starts = %+v", n.starts)
	}
	tr.Observe(nil, at(2))
	if len(n.ends) != 1 || n.ends[0].ProcessName != "a" {
		t.Fatalf("ends = %+v", n.ends)
	}
	// Continued presence is silent.
	tr.Observe([]snapshot.Process{{Name: "b", PID: 2}}, at(4))
	tr.Observe([]snapshot.Process{{Name: "b", PID: 2}}, at(6))
	if len(n.starts) != 2 {
		t.Fatalf("continued presence notified a start: %+v", n.starts)
	}
}
