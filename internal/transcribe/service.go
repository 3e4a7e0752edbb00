package transcribe

import (
	"context"
	"fmt"
	"os"

	"github.com/TechnicallyShaun/boquer/internal/transcribe/client"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/convert"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/livetext"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/logging"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/output"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/source"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/stabilizer"
)

// Service wires a validated Config into a ready-to-run Orchestrator.
type Service struct {
	config       *Config
	logger       *logging.Logger
	source       source.Source
	store        *output.Writer
	orchestrator *Orchestrator
}

// NewService validates cfg and builds every pipeline component. The source is
// the HLS playlist when StreamURL is set and the watched directory otherwise.
func NewService(cfg *Config, logger *logging.Logger) (*Service, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.TextDir, cfg.TempDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	speech := newSpeech(cfg, logger.WithComponent("client"))

	conv := convert.New(
		convert.WithFFmpegPath(cfg.FFmpegPath),
		convert.WithLogger(logger.WithComponent("convert")),
	)
	if err := conv.Available(); err != nil {
		logger.Warn("audio conversion unavailable", logging.String("error", err.Error()))
	}

	store := output.NewWriter(cfg.TextDir)

	publisher, err := livetext.NewPublisher(cfg.LiveTextDir, cfg.TargetTag, logger.WithComponent("livetext"))
	if err != nil {
		return nil, err
	}

	translate := cfg.Translate && speech.CanTranslate()
	tags := []string{cfg.SourceTag}
	if translate {
		tags = append(tags, cfg.TargetTag)
	}

	src, err := newSource(cfg, logger.WithComponent("source"), func(path string) bool {
		return store.Complete(output.BaseName(path), tags...)
	})
	if err != nil {
		return nil, err
	}

	orch := NewOrchestrator(src, speech, store,
		WithConverter(conv),
		WithPublisher(publisher),
		WithLogger(logger.WithComponent("pipeline")),
		WithPollInterval(cfg.PollInterval),
		WithMinChunkBytes(cfg.MinChunkBytes),
		WithTempDir(cfg.TempDir),
		WithLanguageTags(cfg.SourceTag, cfg.TargetTag),
		WithTranslation(translate),
		WithDedupCapacity(cfg.DedupCapacity),
	)

	return &Service{
		config:       cfg,
		logger:       logger,
		source:       src,
		store:        store,
		orchestrator: orch,
	}, nil
}

func newSpeech(cfg *Config, logger *logging.Logger) *client.RetryClient {
	opts := client.OpenAIOptions{
		APIKey:             cfg.OpenAIAPIKey,
		BaseURL:            cfg.OpenAIBaseURL,
		TranscriptionModel: cfg.TranscriptionModel,
		TranslationModel:   cfg.TranslationModel,
		SourceLanguage:     cfg.SourceLanguage,
		SourceName:         cfg.SourceName,
		TargetName:         cfg.TargetName,
		Timeout:            cfg.APITimeout,
	}

	var transcriber client.Transcriber
	switch cfg.Backend {
	case BackendWhisperASR:
		transcriber = client.NewWhisperASRClient(cfg.WhisperASRURL,
			client.WithLanguage(cfg.SourceLanguage),
			client.WithTimeout(cfg.APITimeout),
		)
	default:
		transcriber = client.NewOpenAITranscriber(opts)
	}

	var translator client.Translator
	if cfg.Translate {
		translator = client.NewOpenAITranslator(opts)
	}

	return client.NewRetryClient(transcriber, translator,
		client.WithMaxAttempts(cfg.MaxAttempts),
		client.WithBaseDelay(cfg.BaseDelay),
		client.WithMaxUploadBytes(cfg.MaxUploadBytes),
		client.WithLogger(logger),
	)
}

func newSource(cfg *Config, logger *logging.Logger, done func(string) bool) (source.Source, error) {
	if cfg.StreamURL != "" {
		return source.NewHLS(cfg.StreamURL,
			source.WithRequestTimeout(cfg.RequestTimeout),
			source.WithUserAgent(cfg.UserAgent),
			source.WithHLSLogger(logger),
		)
	}

	if err := os.MkdirAll(cfg.WatchDir, 0755); err != nil {
		return nil, fmt.Errorf("create watch directory: %w", err)
	}
	stab := stabilizer.NewPollStabilizer(cfg.StabilizationInterval, cfg.StabilizationChecks)
	stab.Timeout = stabilizer.DefaultTimeout

	return source.NewLocal(cfg.WatchDir,
		source.WithStabilizer(stab),
		source.WithDoneCheck(done),
		source.WithLocalLogger(logger),
	)
}

// Orchestrator returns the pipeline driven by the service.
func (s *Service) Orchestrator() *Orchestrator {
	return s.orchestrator
}

// Results returns the results recorded so far.
func (s *Service) Results() []Result {
	return s.orchestrator.Results()
}

// Run polls until ctx is cancelled or Stop is called.
func (s *Service) Run(ctx context.Context) error {
	input := s.config.StreamURL
	if input == "" {
		input = s.config.WatchDir
	}
	s.logger.Info("starting pipeline",
		logging.String("input", input),
		logging.String("backend", s.config.Backend),
		logging.String("text_dir", s.config.TextDir),
		logging.String("live_text_dir", s.config.LiveTextDir),
	)
	return s.orchestrator.Run(ctx)
}

// RunOnce processes a single poll cycle.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.orchestrator.RunOnce(ctx)
}

// Stop asks the pipeline to finish its current batch and return.
func (s *Service) Stop() {
	s.orchestrator.Stop()
}

// Close releases the source.
func (s *Service) Close() error {
	return s.source.Close()
}
