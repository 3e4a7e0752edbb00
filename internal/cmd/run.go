package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TechnicallyShaun/boquer/internal/server"
	"github.com/TechnicallyShaun/boquer/internal/transcribe"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/pidfile"
)

type runOptions struct {
	once  bool
	serve bool
	addr  string
}

func (o *runOptions) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.once, "once", false, "process a single poll cycle and exit")
	cmd.Flags().BoolVar(&o.serve, "serve", false, "also serve the latest text over HTTP")
	cmd.Flags().StringVar(&o.addr, "addr", "", "HTTP listen address for --serve (default from config)")
}

// NewStreamCmd creates the stream command
func NewStreamCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "stream <playlist-url>",
		Short: "Transcribe a live HLS stream",
		Long: `Poll an HLS media playlist and transcribe each new segment.

Text is written to <text_dir>/<segment>_<SRC>.txt and <segment>_<TGT>.txt and
the newest translation is published to the live_text directory. The pipeline
runs until interrupted with Ctrl+C, SIGTERM or 'boquer stop'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.StreamURL = args[0]
			return runPipeline(cmd, cfg, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

// NewWatchCmd creates the watch command
func NewWatchCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Transcribe audio files dropped into a directory",
		Long: `Watch a directory for new audio files (mp3, ogg, wav, mp4, aac) and
transcribe each one. Files already present are processed first unless their
text files exist. The directory defaults to the project's audio folder.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.StreamURL = ""
			if len(args) == 1 {
				dir, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				cfg.WatchDir = dir
			}
			return runPipeline(cmd, cfg, opts)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runPipeline(cmd *cobra.Command, cfg *transcribe.Config, opts runOptions) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cmd, cfg, "service")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()

	if !opts.once {
		release, err := pidfile.Acquire()
		if err != nil {
			return err
		}
		defer release()
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	svc, err := transcribe.NewService(cfg, logger)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	defer svc.Close()

	out := cmd.OutOrStdout()
	svc.Orchestrator().OnTranscription(func(r transcribe.Result) {
		printResult(out, r)
	})

	if opts.serve {
		addr := opts.addr
		if addr == "" {
			addr = cfg.ServeAddr
		}
		srv := server.New(server.Config{Addr: addr, LiveTextDir: cfg.LiveTextDir, Tag: cfg.TargetTag}, logger)
		srv.SetResults(svc.Results)
		if err := srv.Start(); err != nil {
			return err
		}
		defer srv.Stop(context.Background())
		fmt.Fprintf(out, "Serving latest text on http://%s/latest\n", srv.Addr())
	}

	done := make(chan struct{})
	defer close(done)
	go handleSignals(done, svc, cancel, opts.once)

	if opts.once {
		if err := svc.RunOnce(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "Processed %d segment(s)\n", len(svc.Results()))
		return nil
	}

	fmt.Fprintln(out, "Press Ctrl+C to stop")
	return svc.Run(ctx)
}

// handleSignals stops the pipeline after the current batch on the first
// SIGINT or SIGTERM and cancels in-flight work on the second.
func handleSignals(done <-chan struct{}, svc *transcribe.Service, cancel context.CancelFunc, immediate bool) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-done:
		return
	case <-sigCh:
	}

	if immediate {
		cancel()
		return
	}
	svc.Stop()

	select {
	case <-done:
	case <-sigCh:
		cancel()
	}
}

func printResult(w io.Writer, r transcribe.Result) {
	fmt.Fprintf(w, "[%s] %s\n", r.Timestamp, r.Text)
	if r.Translation != "" {
		fmt.Fprintf(w, "           %s\n", r.Translation)
	}
}
