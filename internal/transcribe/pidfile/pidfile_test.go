package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stalePID is near the Linux PID ceiling and almost certainly unused.
const stalePID = 4194300

func useTempHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeRaw(t *testing.T, home, content string) string {
	t.Helper()
	dir := filepath.Join(home, ".boquer")
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, "boquer.pid")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestPath(t *testing.T) {
	home := useTempHome(t)

	path, err := Path()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".boquer", "boquer.pid"), path)
}

func TestWriteAndRead(t *testing.T) {
	useTempHome(t)

	require.NoError(t, Write(12345))

	pid, err := Read()
	require.NoError(t, err)
	assert.Equal(t, 12345, pid)

	path, err := Path()
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"garbage", "not-a-pid\n", ErrInvalidPID},
		{"negative", "-5\n", ErrInvalidPID},
		{"zero", "0", ErrInvalidPID},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			home := useTempHome(t)
			writeRaw(t, home, tc.content)

			_, err := Read()
			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("missing", func(t *testing.T) {
		useTempHome(t)
		_, err := Read()
		assert.ErrorIs(t, err, ErrNoPIDFile)
	})
}

func TestRemove(t *testing.T) {
	useTempHome(t)
	require.NoError(t, Write(1))

	require.NoError(t, Remove())
	_, err := Read()
	assert.ErrorIs(t, err, ErrNoPIDFile)
	assert.NoError(t, Remove(), "second Remove is a no-op")
}

func TestIsRunning(t *testing.T) {
	t.Run("current process", func(t *testing.T) {
		useTempHome(t)
		require.NoError(t, Write(os.Getpid()))

		running, pid, err := IsRunning()
		require.NoError(t, err)
		assert.True(t, running)
		assert.Equal(t, os.Getpid(), pid)
	})

	t.Run("no file", func(t *testing.T) {
		useTempHome(t)
		running, pid, err := IsRunning()
		assert.NoError(t, err)
		assert.False(t, running)
		assert.Zero(t, pid)
	})

	t.Run("stale", func(t *testing.T) {
		home := useTempHome(t)
		writeRaw(t, home, strconv.Itoa(stalePID)+"\n")

		running, pid, err := IsRunning()
		require.NoError(t, err)
		if running {
			t.Skip("stale PID is unexpectedly running")
		}
		assert.Equal(t, stalePID, pid)
	})
}

func TestCleanStale(t *testing.T) {
	t.Run("removes stale file", func(t *testing.T) {
		home := useTempHome(t)
		path := writeRaw(t, home, strconv.Itoa(stalePID)+"\n")

		removed, err := CleanStale()
		require.NoError(t, err)
		assert.True(t, removed)
		assert.NoFileExists(t, path)
	})

	t.Run("keeps running process", func(t *testing.T) {
		useTempHome(t)
		require.NoError(t, Write(os.Getpid()))

		removed, err := CleanStale()
		require.NoError(t, err)
		assert.False(t, removed)
	})
}

func TestAcquire(t *testing.T) {
	home := useTempHome(t)
	writeRaw(t, home, strconv.Itoa(stalePID)+"\n")

	release, err := Acquire()
	require.NoError(t, err)

	pid, err := Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	release()
	_, err = Read()
	assert.ErrorIs(t, err, ErrNoPIDFile)
}

func TestAcquireRefusesLiveProcess(t *testing.T) {
	home := useTempHome(t)
	// PID 1 is always alive; EPERM still counts as running.
	writeRaw(t, home, "1\n")

	_, err := Acquire()
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestTerminateNotRunning(t *testing.T) {
	t.Run("no file", func(t *testing.T) {
		useTempHome(t)
		_, err := Terminate()
		assert.ErrorIs(t, err, ErrNotRunning)
	})

	t.Run("stale file is removed", func(t *testing.T) {
		home := useTempHome(t)
		path := writeRaw(t, home, strconv.Itoa(stalePID)+"\n")

		running, _, _ := IsRunning()
		if running {
			t.Skip("stale PID is unexpectedly running")
		}

		pid, err := Terminate()
		assert.ErrorIs(t, err, ErrNotRunning)
		assert.Equal(t, stalePID, pid)
		assert.NoFileExists(t, path)
	})
}
