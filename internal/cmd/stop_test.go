package cmd

import (
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TechnicallyShaun/boquer/internal/transcribe/pidfile"
)

func TestStop_NotRunning(t *testing.T) {
	isolate(t)

	_, err := execute(t, "stop")
	assert.ErrorIs(t, err, pidfile.ErrNotRunning)
}

func TestStop_TerminatesProcess(t *testing.T) {
	isolate(t)

	child := exec.Command("sleep", "30")
	if err := child.Start(); err != nil {
		t.Skipf("cannot start child process: %v", err)
	}
	exited := make(chan struct{})
	go func() {
		child.Wait()
		close(exited)
	}()
	t.Cleanup(func() { child.Process.Kill() })

	require.NoError(t, pidfile.Write(child.Process.Pid))

	cmd := NewStopCmd()
	cmd.SetOut(os.Stderr)
	cmd.SetArgs(nil)
	require.NoError(t, runStop(cmd, 5*time.Second))

	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("child did not exit")
	}
}
