package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the boquer CLI
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "boquer",
		Short:         "Live stream transcription and translation",
		Long:          "Boquer transcribes a live HLS stream or a folder of audio files and publishes the translated text as it arrives",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().String("project", "", "project root (default: nearest directory containing .boquer)")
	rootCmd.PersistentFlags().String("config", "", "config file (default: <project>/.boquer/config.yml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(NewInitCmd())
	rootCmd.AddCommand(NewConfigCmd(nil))
	rootCmd.AddCommand(NewStreamCmd())
	rootCmd.AddCommand(NewWatchCmd())
	rootCmd.AddCommand(NewLatestCmd())
	rootCmd.AddCommand(NewFollowCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewStatusCmd())
	rootCmd.AddCommand(NewStopCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}
