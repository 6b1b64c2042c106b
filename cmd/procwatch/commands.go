package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/loykin/procwatch"
	"github.com/loykin/procwatch/pkg/client"
)

type command struct{}

// loadConfig resolves the effective config: file when given, defaults
// otherwise, then command-line overrides on top.
func (c command) loadConfig(f RunFlags) (procwatch.Config, error) {
	cfg := procwatch.DefaultConfig()
	if f.ConfigPath != "" {
		loaded, err := procwatch.LoadConfig(f.ConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("load config %s: %w", f.ConfigPath, err)
		}
		cfg = loaded
	}
	if f.DataFile != "" {
		cfg.DataFile = f.DataFile
	}
	if f.Listen != "" {
		cfg.Server.Enabled = true
		cfg.Server.Listen = f.Listen
	}
	if f.Interval > 0 {
		cfg.SampleInterval = f.Interval
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Run starts the monitor in the foreground until SIGINT/SIGTERM.
func (c command) Run(f RunFlags) error {
	cfg, err := c.loadConfig(f)
	if err != nil {
		return err
	}
	cfg.Log.Setup()

	mon := procwatch.New(cfg)

	dsns := make([]string, 0, len(cfg.Sinks)+len(f.SinkDSNs))
	for _, s := range cfg.Sinks {
		dsns = append(dsns, s.DSN)
	}
	dsns = append(dsns, f.SinkDSNs...)
	sinks := make([]procwatch.HistorySink, 0, len(dsns))
	for _, dsn := range dsns {
		sink, err := procwatch.NewSinkFromDSN(dsn)
		if err != nil {
			return fmt.Errorf("configure sink %q: %w", dsn, err)
		}
		sinks = append(sinks, sink)
	}
	mon.SetSinks(sinks...)

	if err := procwatch.RegisterMetricsDefault(); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if err := mon.Start(); err != nil {
		return err
	}

	if cfg.Server.Enabled {
		srv, err := procwatch.NewHTTPServer(cfg.Server.Listen, cfg.Server.BasePath, mon)
		if err != nil {
			_ = mon.Stop()
			return fmt.Errorf("start http server: %w", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	return mon.Stop()
}

func (c command) newClient(f QueryFlags) *client.Client {
	cc := client.DefaultConfig()
	if f.APIUrl != "" {
		cc.BaseURL = f.APIUrl
	}
	if f.APITimeout > 0 {
		cc.Timeout = f.APITimeout
	}
	return client.New(cc)
}

// Status prints the daemon state and the processes currently running.
func (c command) Status(f QueryFlags) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.APITimeout)
	defer cancel()
	st, err := c.newClient(f).Status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("running: %v\n", st.Running)
	if len(st.Open) == 0 {
		fmt.Println("no open intervals")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tPID\tSTARTED\tELAPSED")
	for _, o := range st.Open {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%ds\n",
			o.Name, o.PID, o.StartedAt.Format(time.RFC3339), o.ElapsedSeconds)
	}
	return w.Flush()
}

// Stats prints per-process aggregates, busiest first.
func (c command) Stats(f QueryFlags) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.APITimeout)
	defer cancel()
	stats, err := c.newClient(f).Stats(ctx)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Println("no history recorded")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tRUNS\tTOTAL\tFIRST SEEN\tLAST SEEN")
	for _, s := range stats {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%ds\t%s\t%s\n",
			s.ProcessName, s.RunCount, s.TotalDurationSeconds,
			s.FirstSeen.Format(time.RFC3339), s.LastSeen.Format(time.RFC3339))
	}
	return w.Flush()
}

// History prints recent completed lifespans.
func (c command) History(f QueryFlags) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.APITimeout)
	defer cancel()
	h, err := c.newClient(f).History(ctx, f.Limit)
	if err != nil {
		return err
	}
	if len(h.Records) == 0 {
		fmt.Println("no history recorded")
		return nil
	}
	fmt.Printf("last updated: %s\n", h.LastUpdated.Format(time.RFC3339))
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tPID\tSTART\tEND\tDURATION")
	for _, r := range h.Records {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			r.ProcessName, r.PID,
			r.StartTime.Format(time.RFC3339), r.EndTime.Format(time.RFC3339),
			r.DurationReadable)
	}
	return w.Flush()
}

// Refresh forces a sample tick on the daemon.
func (c command) Refresh(f QueryFlags) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.APITimeout)
	defer cancel()
	st, err := c.newClient(f).Refresh(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("refreshed, %d open intervals\n", len(st.Open))
	return nil
}
