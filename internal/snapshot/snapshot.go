package snapshot

import (
	"context"
	"strings"
)

// Process identifies one running process at a sampling instant. Pids are
// reused by the OS, so the pair is only meaningful within one snapshot.
type Process struct {
	Name string `json:"name"`
	PID  int32  `json:"pid"`
}

// Source enumerates the processes running on the host. Implementations
// must be cheap enough to call at sub-second intervals and must report at
// most one entry per pid.
type Source interface {
	Snapshot(ctx context.Context) ([]Process, error)
}

// Filter excludes processes from snapshots by name prefix or pid floor.
type Filter struct {
	ExcludePrefixes []string
	MinPID          int32
}

// DefaultFilter skips kernel-side noise that never has a meaningful
// lifespan for this tool.
func DefaultFilter() Filter {
	return Filter{ExcludePrefixes: []string{"System", "Registry"}}
}

// Keep reports whether the process passes the filter.
func (f Filter) Keep(p Process) bool {
	if p.PID <= 0 || p.PID < f.MinPID {
		return false
	}
	if p.Name == "" {
		return false
	}
	for _, prefix := range f.ExcludePrefixes {
		if strings.HasPrefix(p.Name, prefix) {
			return false
		}
	}
	return true
}

// Static is a fixed snapshot source, used in tests and examples.
type Static []Process

func (s Static) Snapshot(context.Context) ([]Process, error) {
	return append([]Process(nil), s...), nil
}
