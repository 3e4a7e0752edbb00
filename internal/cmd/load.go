package cmd

import (
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/boquer/internal/project"
	"github.com/TechnicallyShaun/boquer/internal/transcribe"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/logging"
)

// projectRoot resolves --project, then the enclosing project. Outside a
// project it returns "" and paths resolve against the working directory.
func projectRoot(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("project"); p != "" {
		return filepath.Abs(p)
	}

	root, err := project.FindRoot()
	if errors.Is(err, project.ErrNotInProject) {
		return "", nil
	}
	return root, err
}

// loadConfig loads the configuration and applies global flag overrides.
func loadConfig(cmd *cobra.Command) (*transcribe.Config, error) {
	root, err := projectRoot(cmd)
	if err != nil {
		return nil, err
	}

	var opts []transcribe.LoadOption
	if file, _ := cmd.Flags().GetString("config"); file != "" {
		opts = append(opts, transcribe.WithConfigFile(file))
	}

	cfg, err := transcribe.Load(root, opts...)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

// newLogger builds the file and console logger for a command. Console
// output goes to the command's stderr.
func newLogger(cmd *cobra.Command, cfg *transcribe.Config, component string) (*logging.Logger, error) {
	lc := cfg.LogConfig(component)
	lc.ConsoleOut = cmd.ErrOrStderr()
	return logging.New(lc)
}
