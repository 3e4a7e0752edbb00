package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/boquer/internal/server"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the latest live text over HTTP",
		Long: `Serve the live_text directory written by a running pipeline.

  GET /          greeting
  GET /latest    newest live text as JSON (?format=text for plain text)
  GET /healthz   liveness check`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.ServeAddr
			}

			logger, err := newLogger(cmd, cfg, "server")
			if err != nil {
				return err
			}
			defer logger.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(server.Config{Addr: addr, LiveTextDir: cfg.LiveTextDir, Tag: cfg.TargetTag}, logger)
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config serve_addr)")
	return cmd
}
