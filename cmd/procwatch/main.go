package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and wires subcommands
func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	runFlags := &RunFlags{}
	statusFlags := &QueryFlags{}
	statsFlags := &QueryFlags{}
	historyFlags := &QueryFlags{}
	refreshFlags := &QueryFlags{}

	cmd := command{}

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createRunCommand(cmd, globalFlags, runFlags),
		createStatusCommand(cmd, statusFlags),
		createStatsCommand(cmd, statsFlags),
		createHistoryCommand(cmd, historyFlags),
		createRefreshCommand(cmd, refreshFlags),
	)
	return root
}

func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "procwatch",
		Short: "Process lifecycle monitoring tool",
		Long: `Procwatch samples the running processes of a host, tracks when each
process appears and disappears, and records completed lifespans into a
durable history log.

Examples:
  procwatch run --config=procwatch.toml       # Run the monitor in the foreground
  procwatch run --listen=:8080                # Run with the HTTP API enabled
  procwatch stats --api-url=http://host:8080/api
  procwatch history --limit=20`,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

func createRunCommand(c command, gf *GlobalFlags, f *RunFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the monitor in the foreground",
		Long: `Run the process monitor until interrupted. The monitor polls the
process table on a fixed interval and flushes completed lifespans to the
history file on its own schedule.

Examples:
  procwatch run
  procwatch run --data-file=/var/lib/procwatch/process_log.json
  procwatch run --sink="sqlite:///var/lib/procwatch/history.db"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.ConfigPath = gf.ConfigPath
			return c.Run(*f)
		},
	}
	cmd.Flags().StringVar(&f.DataFile, "data-file", "", "history log path (overrides config)")
	cmd.Flags().StringVar(&f.Listen, "listen", "", "enable the HTTP API on this address, e.g. :8080")
	cmd.Flags().DurationVar(&f.Interval, "interval", 0, "sample interval (overrides config)")
	cmd.Flags().StringArrayVar(&f.SinkDSNs, "sink", nil, "history sink DSN, repeatable (sqlite://, postgres://, clickhouse://, opensearch://)")
	return cmd
}

func addQueryFlags(cmd *cobra.Command, f *QueryFlags) {
	cmd.Flags().StringVar(&f.APIUrl, "api-url", "", "daemon URL (default http://localhost:8080/api)")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 10*time.Second, "request timeout")
}

func createStatusCommand(c command, f *QueryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state and currently running processes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(*f)
		},
	}
	addQueryFlags(cmd, f)
	return cmd
}

func createStatsCommand(c command, f *QueryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-process time aggregates, busiest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Stats(*f)
		},
	}
	addQueryFlags(cmd, f)
	return cmd
}

func createHistoryCommand(c command, f *QueryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent completed process lifespans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.History(*f)
		},
	}
	addQueryFlags(cmd, f)
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum records to fetch (0 = all)")
	return cmd
}

func createRefreshCommand(c command, f *QueryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Force one sample tick on the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Refresh(*f)
		},
	}
	addQueryFlags(cmd, f)
	return cmd
}
