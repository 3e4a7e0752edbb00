package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/boquer/internal/project"
	"github.com/TechnicallyShaun/boquer/internal/transcribe"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <name>",
		Short: "Initialize a new project",
		Long: `Initialize a new project in the current directory.

Creates .boquer/project.json, a default .boquer/config.yml and the audio,
text and live_text working directories.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if err := project.Init(".", name); err != nil {
				return err
			}

			if err := projectDefaults().Save(transcribe.ConfigPath(".")); err != nil {
				return fmt.Errorf("write config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Initialized project '%s'\n", name)
			return nil
		},
	}
}

// projectDefaults is the config written into a new project. Working
// directories stay relative so the project can be moved.
func projectDefaults() *transcribe.Config {
	cfg := transcribe.DefaultConfig("")
	cfg.TempDir = filepath.Join(project.MarkerDir, "tmp")
	return cfg
}
