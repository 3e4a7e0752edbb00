package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/boquer/internal/transcribe/livetext"
)

// NewLatestCmd creates the latest command
func NewLatestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Print the most recent live text",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			_, text, err := livetext.Latest(cfg.LiveTextDir, cfg.TargetTag)
			if errors.Is(err, livetext.ErrNoLiveText) {
				fmt.Fprintln(cmd.OutOrStdout(), "No live text yet")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}

// NewFollowCmd creates the follow command
func NewFollowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "follow",
		Short: "Print live text as it is published",
		Long:  "Watch the live_text directory and print each new translation until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.LiveTextDir, 0755); err != nil {
				return err
			}

			logger, err := newLogger(cmd, cfg, "follow")
			if err != nil {
				return err
			}
			defer logger.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			follower := livetext.NewFollower(cfg.LiveTextDir, cfg.TargetTag, logger)
			return follower.Follow(ctx, func(u livetext.Update) {
				fmt.Fprintf(out, "%s: %s\n", filepath.Base(u.Path), u.Text)
			})
		},
	}
}
