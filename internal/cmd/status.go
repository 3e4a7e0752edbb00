package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/boquer/internal/transcribe/pidfile"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/status"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the pipeline is running and today's activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			running, pid, err := pidfile.IsRunning()
			if err != nil {
				return err
			}
			switch {
			case running:
				fmt.Fprintf(out, "Pipeline: running (PID %d)\n", pid)
			case pid != 0:
				fmt.Fprintf(out, "Pipeline: not running (stale PID file for %d)\n", pid)
			default:
				fmt.Fprintln(out, "Pipeline: not running")
			}

			stats, err := status.ParseToday(cfg.LogDir)
			if err != nil {
				return fmt.Errorf("read log: %w", err)
			}

			fmt.Fprintf(out, "Processed today: %d\n", stats.SegmentsProcessed)
			fmt.Fprintf(out, "Errors today:    %d\n", stats.Errors)
			if last := stats.LastProcessed; last != nil {
				fmt.Fprintf(out, "Last segment:    %s at %s\n", status.BaseName(last.Segment), status.FormatTimestamp(last.Timestamp))
			}
			return nil
		},
	}
}
