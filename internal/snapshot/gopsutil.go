package snapshot

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
)

// GopsutilSource enumerates host processes via gopsutil. Processes that
// disappear mid-enumeration or whose name cannot be read are skipped, the
// rest of the snapshot is still returned.
type GopsutilSource struct {
	filter Filter
}

func NewGopsutilSource(f Filter) *GopsutilSource {
	return &GopsutilSource{filter: f}
}

func (s *GopsutilSource) Snapshot(ctx context.Context) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate processes: %w", err)
	}
	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		if p == nil {
			continue
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// gone already, or access denied
			continue
		}
		sp := Process{Name: name, PID: p.Pid}
		if !s.filter.Keep(sp) {
			continue
		}
		out = append(out, sp)
	}
	return out, nil
}
