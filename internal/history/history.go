package history

import (
	"context"
	"fmt"
	"time"
)

// Record is one completed process lifespan. It is immutable once built.
// DurationReadable is derived from DurationSeconds at construction time
// and is never authoritative.
type Record struct {
	ProcessName      string    `json:"process_name"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	DurationSeconds  int64     `json:"duration_seconds"`
	DurationReadable string    `json:"duration_readable"`
	PID              int32     `json:"pid"`
}

// NewRecord builds a Record for a process observed from start to end.
// end must not precede start: the tracker always observes the end strictly
// after the start, so a negative duration is a programming error and
// panics rather than being clamped.
func NewRecord(name string, start, end time.Time, pid int32) Record {
	d := end.Sub(start)
	if d < 0 {
		panic(fmt.Sprintf("history: record for %s (pid %d) ends %s before it starts", name, pid, -d))
	}
	secs := int64(d / time.Second)
	return Record{
		ProcessName:      name,
		StartTime:        start,
		EndTime:          end,
		DurationSeconds:  secs,
		DurationReadable: FormatDuration(secs),
		PID:              pid,
	}
}

// Uniq returns a session-unique key for the record, derived from the pid
// and the start instant.
func (r Record) Uniq() string { return UniqueKey(r.PID, r.StartTime) }

// UniqueKey derives a key from a pid and a start time. Pids are reused by
// the OS, so the start instant disambiguates lifespans of the same pid.
func UniqueKey(pid int32, startedAt time.Time) string {
	return fmt.Sprintf("%d-%d", pid, startedAt.UnixNano())
}

// FormatDuration renders seconds as H:MM:SS (hours unpadded).
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// Log is the persisted artifact: the full ordered history plus the time
// of the last successful flush. Records are append-only in detection order.
type Log struct {
	LastUpdated time.Time `json:"last_updated"`
	Records     []Record  `json:"process_history"`
}

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventStart EventType = "start"
	EventEnd   EventType = "end"
)

// Event represents a lifecycle transition to be exported to external
// systems. EndedAt and DurationSeconds are zero for start events.
type Event struct {
	Type            EventType `json:"type"`
	OccurredAt      time.Time `json:"occurred_at"`
	ProcessName     string    `json:"process_name"`
	PID             int32     `json:"pid"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at,omitzero"`
	DurationSeconds int64     `json:"duration_seconds,omitempty"`
	Uniq            string    `json:"uniq"`
}

// StartEvent builds the event emitted when a pid first appears.
func StartEvent(name string, pid int32, at time.Time) Event {
	return Event{
		Type:        EventStart,
		OccurredAt:  at.UTC(),
		ProcessName: name,
		PID:         pid,
		StartedAt:   at,
		Uniq:        UniqueKey(pid, at),
	}
}

// EndEvent builds the event emitted when a tracked pid disappears.
func EndEvent(rec Record) Event {
	return Event{
		Type:            EventEnd,
		OccurredAt:      rec.EndTime.UTC(),
		ProcessName:     rec.ProcessName,
		PID:             rec.PID,
		StartedAt:       rec.StartTime,
		EndedAt:         rec.EndTime,
		DurationSeconds: rec.DurationSeconds,
		Uniq:            rec.Uniq(),
	}
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
