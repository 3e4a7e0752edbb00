package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRootCmd(t *testing.T) {
	rootCmd := NewRootCmd()
	assert.Equal(t, "boquer", rootCmd.Use)

	var names []string
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
	}

	expected := []string{"init", "config", "stream", "watch", "latest", "follow", "serve", "status", "stop", "version"}
	for _, name := range expected {
		assert.Contains(t, names, name)
	}
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd := NewRootCmd()
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// isolate points HOME and the working directory at fresh temp dirs and
// clears credentials so tests never touch the real environment.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("BOQUER_OPENAI_API_KEY", "")
	t.Setenv("BOQUER_PROJECT_ROOT", "")
	dir := t.TempDir()
	chdir(t, dir)
	return dir
}
