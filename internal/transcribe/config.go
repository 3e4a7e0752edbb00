// Package transcribe runs the segment pipeline: poll a source, transcribe and
// translate each new segment, and publish the results.
package transcribe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/TechnicallyShaun/boquer/internal/project"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/client"
	"github.com/TechnicallyShaun/boquer/internal/transcribe/logging"
)

// ConfigFileName is the name of the config file within .boquer.
const ConfigFileName = "config.yml"

// EnvPrefix prefixes environment overrides, e.g. BOQUER_POLL_INTERVAL=5s.
const EnvPrefix = "BOQUER"

// Transcription backends.
const (
	BackendOpenAI     = "openai"
	BackendWhisperASR = "whisper-asr"
)

// Default values for optional configuration fields.
const (
	DefaultPollInterval   = 2 * time.Second
	DefaultMinChunkBytes  = 1024
	DefaultDedupCapacity  = 100
	DefaultRequestTimeout = 30 * time.Second
	DefaultServeAddr      = "127.0.0.1:4567"
	DefaultLogLevel       = "info"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds every setting of a pipeline run.
type Config struct {
	// Input: exactly one of StreamURL or WatchDir drives a run.
	StreamURL string `mapstructure:"stream_url" validate:"omitempty,url"`
	WatchDir  string `mapstructure:"watch_dir"`

	TextDir     string `mapstructure:"text_dir" validate:"required"`
	LiveTextDir string `mapstructure:"live_text_dir" validate:"required"`
	TempDir     string `mapstructure:"temp_dir" validate:"required"`

	Backend            string        `mapstructure:"backend" validate:"oneof=openai whisper-asr"`
	OpenAIAPIKey       string        `mapstructure:"openai_api_key"`
	OpenAIBaseURL      string        `mapstructure:"openai_base_url" validate:"omitempty,url"`
	WhisperASRURL      string        `mapstructure:"whisper_asr_url" validate:"required_if=Backend whisper-asr"`
	TranscriptionModel string        `mapstructure:"transcription_model"`
	TranslationModel   string        `mapstructure:"translation_model"`
	APITimeout         time.Duration `mapstructure:"api_timeout" validate:"gt=0"`

	Translate      bool   `mapstructure:"translate"`
	SourceLanguage string `mapstructure:"source_language" validate:"required,len=2"`
	SourceName     string `mapstructure:"source_name" validate:"required"`
	SourceTag      string `mapstructure:"source_tag" validate:"required,alphanum"`
	TargetName     string `mapstructure:"target_name" validate:"required"`
	TargetTag      string `mapstructure:"target_tag" validate:"required,alphanum,nefield=SourceTag"`

	PollInterval   time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	UserAgent      string        `mapstructure:"user_agent"`
	MaxAttempts    int           `mapstructure:"max_attempts" validate:"min=1,max=10"`
	BaseDelay      time.Duration `mapstructure:"base_delay" validate:"gt=0"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes" validate:"gt=0"`
	MinChunkBytes  int64         `mapstructure:"min_chunk_bytes" validate:"gte=0"`
	DedupCapacity  int           `mapstructure:"dedup_capacity" validate:"min=1"`

	StabilizationInterval time.Duration `mapstructure:"stabilization_interval" validate:"gt=0"`
	StabilizationChecks   int           `mapstructure:"stabilization_checks" validate:"min=1"`

	FFmpegPath string `mapstructure:"ffmpeg_path" validate:"required"`
	ServeAddr  string `mapstructure:"serve_addr" validate:"required,hostname_port"`

	LogDir           string `mapstructure:"log_dir"`
	LogLevel         string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogRetentionDays int    `mapstructure:"log_retention_days" validate:"gte=0"`
}

// DefaultConfig returns the defaults for a project rooted at root. An empty
// root places the working directories under the current directory.
func DefaultConfig(root string) *Config {
	return &Config{
		WatchDir:              filepath.Join(root, project.AudioDir),
		TextDir:               filepath.Join(root, project.TextDir),
		LiveTextDir:           filepath.Join(root, project.LiveTextDir),
		TempDir:               filepath.Join(os.TempDir(), "boquer"),
		Backend:               BackendOpenAI,
		TranscriptionModel:    client.DefaultTranscriptionModel,
		TranslationModel:      client.DefaultTranslationModel,
		APITimeout:            client.DefaultTimeout,
		Translate:             true,
		SourceLanguage:        "es",
		SourceName:            "Spanish",
		SourceTag:             "ES",
		TargetName:            "English",
		TargetTag:             "EN",
		PollInterval:          DefaultPollInterval,
		RequestTimeout:        DefaultRequestTimeout,
		MaxAttempts:           client.DefaultMaxAttempts,
		BaseDelay:             client.DefaultBaseDelay,
		MaxUploadBytes:        client.DefaultMaxUploadBytes,
		MinChunkBytes:         DefaultMinChunkBytes,
		DedupCapacity:         DefaultDedupCapacity,
		StabilizationInterval: 500 * time.Millisecond,
		StabilizationChecks:   3,
		FFmpegPath:            "ffmpeg",
		ServeAddr:             DefaultServeAddr,
		LogDir:                logging.DefaultLogDir(),
		LogLevel:              DefaultLogLevel,
		LogRetentionDays:      logging.DefaultRetentionDays,
	}
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	configFile string
	envFile    string
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoadOption {
	return func(o *loadOptions) { o.configFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoadOption {
	return func(o *loadOptions) { o.envFile = path }
}

// ConfigPath returns the config file location for a project root.
func ConfigPath(root string) string {
	return filepath.Join(root, project.MarkerDir, ConfigFileName)
}

// Load builds the configuration for the project at root from defaults, the
// project's config.yml, a .env file and the environment, in increasing order
// of precedence. OPENAI_API_KEY is honoured alongside BOQUER_OPENAI_API_KEY.
func Load(root string, opts ...LoadOption) (*Config, error) {
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.configFile == "" && root != "" {
		o.configFile = ConfigPath(root)
	}
	if o.envFile == "" && root != "" {
		o.envFile = filepath.Join(root, ".env")
	}

	// godotenv never overrides variables that are already set.
	if o.envFile != "" && fileExists(o.envFile) {
		if err := godotenv.Load(o.envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", o.envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v, DefaultConfig(root))

	if o.configFile != "" && fileExists(o.configFile) {
		v.SetConfigFile(o.configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", o.configFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("openai_api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.expandPaths(root)
	return &cfg, nil
}

// setDefaults registers every key so that AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	rv := reflect.ValueOf(d).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		key := rt.Field(i).Tag.Get("mapstructure")
		if key == "" {
			continue
		}
		v.SetDefault(key, rv.Field(i).Interface())
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			return fld.Tag.Get("mapstructure")
		})
	})
	return validate
}

// Validate checks field constraints and the settings a run cannot start without.
func (c *Config) Validate() error {
	var problems []string

	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	if c.StreamURL == "" && c.WatchDir == "" {
		problems = append(problems, "one of stream_url or watch_dir is required")
	}
	if c.NeedsOpenAIKey() && c.OpenAIAPIKey == "" {
		problems = append(problems, "openai_api_key is required: set OPENAI_API_KEY in the environment")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// NeedsOpenAIKey reports whether any configured backend calls OpenAI.
func (c *Config) NeedsOpenAIKey() bool {
	return c.Backend == BackendOpenAI || c.Translate
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "url":
		return fe.Field() + " must be a valid URL"
	case "nefield":
		return fe.Field() + " must differ from source_tag"
	default:
		return fmt.Sprintf("%s failed %s=%s (value %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
	}
}

// LogConfig converts the logging settings for logging.New.
func (c *Config) LogConfig(component string) logging.Config {
	return logging.Config{
		LogDir:        c.LogDir,
		RetentionDays: c.LogRetentionDays,
		Component:     component,
		MinLevel:      logging.ParseLevel(c.LogLevel),
		Console:       true,
	}
}

// fileConfig is the on-disk shape of Config. Durations are written as
// strings and the API key is never persisted.
type fileConfig struct {
	StreamURL             string `yaml:"stream_url,omitempty"`
	WatchDir              string `yaml:"watch_dir"`
	TextDir               string `yaml:"text_dir"`
	LiveTextDir           string `yaml:"live_text_dir"`
	TempDir               string `yaml:"temp_dir"`
	Backend               string `yaml:"backend"`
	OpenAIBaseURL         string `yaml:"openai_base_url,omitempty"`
	WhisperASRURL         string `yaml:"whisper_asr_url,omitempty"`
	TranscriptionModel    string `yaml:"transcription_model"`
	TranslationModel      string `yaml:"translation_model"`
	APITimeout            string `yaml:"api_timeout"`
	Translate             bool   `yaml:"translate"`
	SourceLanguage        string `yaml:"source_language"`
	SourceName            string `yaml:"source_name"`
	SourceTag             string `yaml:"source_tag"`
	TargetName            string `yaml:"target_name"`
	TargetTag             string `yaml:"target_tag"`
	PollInterval          string `yaml:"poll_interval"`
	RequestTimeout        string `yaml:"request_timeout"`
	UserAgent             string `yaml:"user_agent,omitempty"`
	MaxAttempts           int    `yaml:"max_attempts"`
	BaseDelay             string `yaml:"base_delay"`
	MaxUploadBytes        int64  `yaml:"max_upload_bytes"`
	MinChunkBytes         int64  `yaml:"min_chunk_bytes"`
	DedupCapacity         int    `yaml:"dedup_capacity"`
	StabilizationInterval string `yaml:"stabilization_interval"`
	StabilizationChecks   int    `yaml:"stabilization_checks"`
	FFmpegPath            string `yaml:"ffmpeg_path"`
	ServeAddr             string `yaml:"serve_addr"`
	LogDir                string `yaml:"log_dir"`
	LogLevel              string `yaml:"log_level"`
	LogRetentionDays      int    `yaml:"log_retention_days"`
}

func (c *Config) toFile() fileConfig {
	return fileConfig{
		StreamURL:             c.StreamURL,
		WatchDir:              c.WatchDir,
		TextDir:               c.TextDir,
		LiveTextDir:           c.LiveTextDir,
		TempDir:               c.TempDir,
		Backend:               c.Backend,
		OpenAIBaseURL:         c.OpenAIBaseURL,
		WhisperASRURL:         c.WhisperASRURL,
		TranscriptionModel:    c.TranscriptionModel,
		TranslationModel:      c.TranslationModel,
		APITimeout:            c.APITimeout.String(),
		Translate:             c.Translate,
		SourceLanguage:        c.SourceLanguage,
		SourceName:            c.SourceName,
		SourceTag:             c.SourceTag,
		TargetName:            c.TargetName,
		TargetTag:             c.TargetTag,
		PollInterval:          c.PollInterval.String(),
		RequestTimeout:        c.RequestTimeout.String(),
		UserAgent:             c.UserAgent,
		MaxAttempts:           c.MaxAttempts,
		BaseDelay:             c.BaseDelay.String(),
		MaxUploadBytes:        c.MaxUploadBytes,
		MinChunkBytes:         c.MinChunkBytes,
		DedupCapacity:         c.DedupCapacity,
		StabilizationInterval: c.StabilizationInterval.String(),
		StabilizationChecks:   c.StabilizationChecks,
		FFmpegPath:            c.FFmpegPath,
		ServeAddr:             c.ServeAddr,
		LogDir:                c.LogDir,
		LogLevel:              c.LogLevel,
		LogRetentionDays:      c.LogRetentionDays,
	}
}

// YAML renders the config as it is written to config.yml.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.toFile())
}

// Save writes the config as YAML to path, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := c.YAML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// expandPaths expands ~ and anchors relative directories at root.
func (c *Config) expandPaths(root string) {
	for _, p := range []*string{&c.WatchDir, &c.TextDir, &c.LiveTextDir, &c.TempDir, &c.LogDir} {
		*p = expandTilde(*p)
		if *p != "" && root != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(root, *p)
		}
	}
}

// expandTilde expands ~ at the beginning of a path to the user's home directory.
func expandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
