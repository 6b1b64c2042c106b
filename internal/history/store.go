package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"
)

// Store buffers completed lifespans in memory and persists the full Log
// to a JSON file. Appends never touch the disk; Flush writes the whole
// document atomically (write to a temporary file, then rename), so a
// failed flush can never leave a valid-but-truncated artifact behind.
//
// A single mutex guards the buffer across the sample path, the flush
// path and read-only queries.
type Store struct {
	mu          sync.Mutex
	path        string
	records     []Record
	lastUpdated time.Time
	dirty       bool
}

// ProcessStats is the per-process aggregate over the full history.
type ProcessStats struct {
	ProcessName          string    `json:"process_name"`
	TotalDurationSeconds int64     `json:"total_duration_seconds"`
	RunCount             int       `json:"run_count"`
	FirstSeen            time.Time `json:"first_seen"`
	LastSeen             time.Time `json:"last_seen"`
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the location of the persisted artifact.
func (s *Store) Path() string { return s.path }

// Load reads the persisted artifact, replacing the in-memory log, and
// returns the number of records loaded. A missing or corrupt file yields
// an empty log: monitoring must be able to start regardless, and a
// corrupt file is left in place (it is only replaced by the next
// successful flush) so manual recovery stays possible.
func (s *Store) Load() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.lastUpdated = time.Time{}
	s.dirty = false
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("history: cannot read log, starting empty", "path", s.path, "error", err)
		}
		return 0
	}
	var lg Log
	if err := json.Unmarshal(b, &lg); err != nil {
		slog.Warn("history: corrupt log, starting empty (file preserved)", "path", s.path, "error", err)
		return 0
	}
	s.records = lg.Records
	s.lastUpdated = lg.LastUpdated
	return len(s.records)
}

// Append adds completed records to the in-memory log without writing to
// disk. Existing records are never mutated or removed.
func (s *Store) Append(recs ...Record) {
	if len(recs) == 0 {
		return
	}
	s.mu.Lock()
	s.records = append(s.records, recs...)
	s.dirty = true
	s.mu.Unlock()
}

// Flush atomically writes the full log with last_updated set to now.
// On failure the buffered records are retained for the next attempt;
// nothing is ever dropped.
func (s *Store) Flush(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lg := Log{LastUpdated: now.UTC(), Records: s.records}
	b, err := json.MarshalIndent(lg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history log: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write history log: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace history log: %w", err)
	}
	s.lastUpdated = lg.LastUpdated
	s.dirty = false
	return nil
}

// Stats aggregates the full history per process name, ordered by total
// duration descending (ties broken by name for stable output).
func (s *Store) Stats() []ProcessStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	byName := make(map[string]*ProcessStats)
	for _, r := range s.records {
		st := byName[r.ProcessName]
		if st == nil {
			st = &ProcessStats{ProcessName: r.ProcessName, FirstSeen: r.StartTime, LastSeen: r.EndTime}
			byName[r.ProcessName] = st
		}
		st.RunCount++
		st.TotalDurationSeconds += r.DurationSeconds
		if r.StartTime.Before(st.FirstSeen) {
			st.FirstSeen = r.StartTime
		}
		if r.EndTime.After(st.LastSeen) {
			st.LastSeen = r.EndTime
		}
	}
	out := make([]ProcessStats, 0, len(byName))
	for _, st := range byName {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalDurationSeconds != out[j].TotalDurationSeconds {
			return out[i].TotalDurationSeconds > out[j].TotalDurationSeconds
		}
		return out[i].ProcessName < out[j].ProcessName
	})
	return out
}

// Snapshot returns a copy of the current records in append order.
func (s *Store) Snapshot() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// Len returns the number of buffered records (persisted and pending).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// LastUpdated reports when the log was last successfully flushed or, right
// after Load, the value read from disk.
func (s *Store) LastUpdated() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdated
}

// Dirty reports whether records were appended since the last successful
// flush.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}
