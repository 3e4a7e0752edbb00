package stabilizer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendTo(t *testing.T, path, data string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	f.WriteString(data)
	f.Close()
}

func TestPollStabilizer_WaitsForGrowingFile(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "growing.mp3")
	require.NoError(t, os.WriteFile(testFile, []byte("initial"), 0644))

	stabilizer := NewPollStabilizer(50*time.Millisecond, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 3; i++ {
			time.Sleep(30 * time.Millisecond)
			appendTo(t, testFile, " more data")
		}
	}()

	start := time.Now()
	err := stabilizer.WaitForStable(ctx, testFile)
	elapsed := time.Since(start)
	wg.Wait()

	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond)
}

func TestPollStabilizer_ImmediateStable(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "stable.wav")
	require.NoError(t, os.WriteFile(testFile, []byte("stable content"), 0644))

	stabilizer := NewPollStabilizer(10*time.Millisecond, 3)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	require.NoError(t, stabilizer.WaitForStable(ctx, testFile))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestPollStabilizer_EmptyFileNeverStable(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "empty.ogg")
	require.NoError(t, os.WriteFile(testFile, nil, 0644))

	stabilizer := NewPollStabilizer(10*time.Millisecond, 2)
	stabilizer.Timeout = 100 * time.Millisecond

	err := stabilizer.WaitForStable(context.Background(), testFile)
	assert.ErrorIs(t, err, ErrStabilizationTimeout)
}

func TestPollStabilizer_ContextCancellation(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "busy.aac")
	require.NoError(t, os.WriteFile(testFile, []byte("x"), 0644))

	stabilizer := NewPollStabilizer(100*time.Millisecond, 10)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err := stabilizer.WaitForStable(ctx, testFile)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPollStabilizer_FileNotFound(t *testing.T) {
	stabilizer := NewPollStabilizer(10*time.Millisecond, 3)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.Error(t, stabilizer.WaitForStable(ctx, "/nonexistent/file.mp3"))
}

func TestPollStabilizer_ResetOnSizeChange(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "changing.mp4")
	require.NoError(t, os.WriteFile(testFile, []byte("initial"), 0644))

	stabilizer := NewPollStabilizer(20*time.Millisecond, 5)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		time.Sleep(40 * time.Millisecond)
		appendTo(t, testFile, " appended")
	}()

	start := time.Now()
	require.NoError(t, stabilizer.WaitForStable(ctx, testFile))
	assert.GreaterOrEqual(t, time.Since(start), 130*time.Millisecond)
}

func TestImmediate(t *testing.T) {
	assert.NoError(t, Immediate.WaitForStable(context.Background(), "/does/not/matter"))
}
