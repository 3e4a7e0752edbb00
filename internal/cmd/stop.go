package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/boquer/internal/transcribe/pidfile"
)

// stopTimeout is how long stop waits for the pipeline to finish its batch.
const stopTimeout = 30 * time.Second

// NewStopCmd creates the stop command
func NewStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running pipeline",
		Long: `Send SIGTERM to the pipeline recorded in ~/.boquer/boquer.pid.

The pipeline finishes the segment batch in progress before exiting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd, stopTimeout)
		},
	}
}

func runStop(cmd *cobra.Command, timeout time.Duration) error {
	out := cmd.OutOrStdout()

	pid, err := pidfile.Terminate()
	if err != nil {
		if errors.Is(err, pidfile.ErrNotRunning) && pid != 0 {
			fmt.Fprintf(out, "Removed stale PID file for %d\n", pid)
		}
		return err
	}

	fmt.Fprintf(out, "Stopping pipeline (PID %d)...\n", pid)

	if !waitForExit(pid, timeout) {
		return fmt.Errorf("pipeline (PID %d) did not exit within %s", pid, timeout)
	}

	fmt.Fprintln(out, "Pipeline stopped")
	return nil
}

// waitForExit polls until the process exits or timeout is reached
func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if alive, err := pidfile.Alive(pid); err != nil || !alive {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}
