package main

import "time"

// Flag structs to decouple cobra from logic for testing.

// GlobalFlags holds minimal global/persistent flags for CLI commands
type GlobalFlags struct {
	ConfigPath string
}

// RunFlags holds flags for the run command
type RunFlags struct {
	ConfigPath string
	DataFile   string
	Listen     string
	Interval   time.Duration
	SinkDSNs   []string
}

// QueryFlags holds flags shared by the daemon query commands
type QueryFlags struct {
	APIUrl     string
	APITimeout time.Duration
	Limit      int
}
