// Package pidfile records the running pipeline's process ID so that
// `boquer stop` and `boquer status` can find it.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Common errors
var (
	ErrNoPIDFile      = errors.New("no PID file found")
	ErrInvalidPID     = errors.New("invalid PID in file")
	ErrAlreadyRunning = errors.New("pipeline already running")
	ErrNotRunning     = errors.New("pipeline not running")
)

const (
	pidFileName = "boquer.pid"
	dirPerm     = 0755
	filePerm    = 0644
)

// Path returns the path to the PID file (~/.boquer/boquer.pid)
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".boquer", pidFileName), nil
}

// Write creates the PID file with the given process ID.
// Creates parent directories if needed.
func Write(pid int) error {
	path, err := Path()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	content := strconv.Itoa(pid) + "\n"
	if err := os.WriteFile(path, []byte(content), filePerm); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}

	return nil
}

// Read reads the PID from the PID file.
// Returns ErrNoPIDFile if the file doesn't exist.
// Returns ErrInvalidPID if the file contains invalid data.
func Read() (int, error) {
	path, err := Path()
	if err != nil {
		return 0, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNoPIDFile
		}
		return 0, fmt.Errorf("read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, ErrInvalidPID
	}

	return pid, nil
}

// Remove deletes the PID file.
// Returns nil if the file doesn't exist.
func Remove() error {
	path, err := Path()
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove PID file: %w", err)
	}

	return nil
}

// IsRunning checks if the process with the PID in the file is alive.
// No PID file: (false, 0, nil). Stale file: (false, pid, nil).
func IsRunning() (bool, int, error) {
	pid, err := Read()
	if err != nil {
		if errors.Is(err, ErrNoPIDFile) {
			return false, 0, nil
		}
		return false, 0, err
	}

	alive, err := Alive(pid)
	return alive, pid, err
}

// Alive probes pid with signal 0.
func Alive(pid int) (bool, error) {
	err := unix.Kill(pid, 0)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, unix.ESRCH):
		return false, nil
	case errors.Is(err, unix.EPERM):
		// exists, owned by someone else
		return true, nil
	default:
		return false, fmt.Errorf("check process: %w", err)
	}
}

// CleanStale removes the PID file if it's stale (process not running).
// Returns true if a stale PID file was removed.
func CleanStale() (bool, error) {
	running, pid, err := IsRunning()
	if err != nil {
		return false, err
	}
	if running || pid == 0 {
		return false, nil
	}
	if err := Remove(); err != nil {
		return false, err
	}
	return true, nil
}

// Acquire writes the current process ID, refusing when another live
// pipeline already holds the file. The returned release removes it.
func Acquire() (func(), error) {
	if _, err := CleanStale(); err != nil && !errors.Is(err, ErrInvalidPID) {
		return nil, err
	}

	running, pid, err := IsRunning()
	if err != nil && !errors.Is(err, ErrInvalidPID) {
		return nil, err
	}
	if running && pid != os.Getpid() {
		return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
	}

	if err := Write(os.Getpid()); err != nil {
		return nil, err
	}
	return func() { Remove() }, nil
}

// Terminate sends SIGTERM to the recorded process and returns its PID.
// A stale PID file is removed and reported as ErrNotRunning.
func Terminate() (int, error) {
	running, pid, err := IsRunning()
	if err != nil {
		return 0, err
	}
	if !running {
		if pid != 0 {
			Remove()
		}
		return pid, ErrNotRunning
	}

	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return pid, fmt.Errorf("signal process %d: %w", pid, err)
	}
	return pid, nil
}
