package client

import "time"

// OpenInterval is a process that is currently running as seen by the daemon
type OpenInterval struct {
	Name           string    `json:"name"`
	PID            int32     `json:"pid"`
	StartedAt      time.Time `json:"started_at"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
}

// StatusResponse represents the daemon status
type StatusResponse struct {
	Running bool           `json:"running"`
	Open    []OpenInterval `json:"open"`
}

// Record is one completed process lifespan
type Record struct {
	ProcessName      string    `json:"process_name"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	DurationSeconds  int64     `json:"duration_seconds"`
	DurationReadable string    `json:"duration_readable"`
	PID              int32     `json:"pid"`
}

// HistoryResponse represents the persisted history log
type HistoryResponse struct {
	LastUpdated time.Time `json:"last_updated"`
	Records     []Record  `json:"process_history"`
}

// ProcessStats aggregates all lifespans sharing a process name
type ProcessStats struct {
	ProcessName          string    `json:"process_name"`
	TotalDurationSeconds int64     `json:"total_duration_seconds"`
	RunCount             int       `json:"run_count"`
	FirstSeen            time.Time `json:"first_seen"`
	LastSeen             time.Time `json:"last_seen"`
}

// ErrorResponse is the error payload returned by the daemon API
type ErrorResponse struct {
	Error string `json:"error"`
}
