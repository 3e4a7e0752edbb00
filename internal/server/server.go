// Package server exposes the latest live text and recent results over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TechnicallyShaun/boquer/internal/transcribe"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/livetext"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/logging"
)

// Greeting is the body served at the root path.
const Greeting = "Hello, World! Boquercom speaking..."

const shutdownTimeout = 5 * time.Second

// ResultsFunc returns the pipeline results to serve at /results.
type ResultsFunc func() []transcribe.Result

// Config configures the HTTP server.
type Config struct {
	Addr        string
	LiveTextDir string
	Tag         string
}

// Server serves the live text directory.
type Server struct {
	config     Config
	engine     *gin.Engine
	httpServer *http.Server
	logger     *logging.Logger

	mu       sync.Mutex
	results  ResultsFunc
	listener net.Listener
}

// New creates a Server with routes registered. It does not listen until Start.
func New(cfg Config, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		config: cfg,
		engine: gin.New(),
		logger: logger.WithComponent("server"),
	}
	s.engine.Use(recovery(s.logger), requestLogger(s.logger))
	s.routes()

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// SetResults sets the source of /results. Without one the list is empty.
func (s *Server) SetResults(fn ResultsFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = fn
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

// Start binds the address and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.config.Addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", err)
		}
	}()

	s.logger.Info("HTTP server started", logging.String("addr", listener.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting up to five seconds for requests to finish.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop(context.Background())
}

func (s *Server) routes() {
	s.engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, Greeting)
	})
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/latest", s.latest)
	s.engine.GET("/results", s.listResults)
}

// latest serves the newest live text file, as JSON or with ?format=text as plain text.
func (s *Server) latest(c *gin.Context) {
	path, text, err := livetext.Latest(s.config.LiveTextDir, s.config.Tag)
	if err != nil {
		if errors.Is(err, livetext.ErrNoLiveText) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("failed to read live text", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read live text"})
		return
	}

	if c.Query("format") == "text" {
		c.String(http.StatusOK, text)
		return
	}
	c.JSON(http.StatusOK, gin.H{"file": filepath.Base(path), "text": text})
}

func (s *Server) listResults(c *gin.Context) {
	s.mu.Lock()
	fn := s.results
	s.mu.Unlock()

	results := []transcribe.Result{}
	if fn != nil {
		if r := fn(); r != nil {
			results = r
		}
	}
	c.JSON(http.StatusOK, results)
}
