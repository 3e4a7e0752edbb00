package transcribe

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TechnicallyShaun/boquer/internal/project"
)

func setupTestProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, project.Init(root, "test"))
	return root
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OPENAI_API_KEY", "BOQUER_OPENAI_API_KEY", "BOQUER_POLL_INTERVAL", "BOQUER_TRANSLATE", "BOQUER_STREAM_URL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	root := setupTestProject(t)

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "audio"), cfg.WatchDir)
	assert.Equal(t, filepath.Join(root, "text"), cfg.TextDir)
	assert.Equal(t, filepath.Join(root, "live_text"), cfg.LiveTextDir)
	assert.Equal(t, BackendOpenAI, cfg.Backend)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.BaseDelay)
	assert.Equal(t, int64(25_000_000), cfg.MaxUploadBytes)
	assert.Equal(t, int64(1024), cfg.MinChunkBytes)
	assert.Equal(t, 100, cfg.DedupCapacity)
	assert.Equal(t, "ES", cfg.SourceTag)
	assert.Equal(t, "EN", cfg.TargetTag)
	assert.True(t, cfg.Translate)
	assert.Empty(t, cfg.OpenAIAPIKey)
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)
	root := setupTestProject(t)

	yml := `stream_url: https://example.com/live/index.m3u8
text_dir: transcripts
poll_interval: 5s
max_attempts: 4
translate: false
source_tag: FR
`
	require.NoError(t, os.WriteFile(ConfigPath(root), []byte(yml), 0644))

	cfg, err := Load(root)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/live/index.m3u8", cfg.StreamURL)
	assert.Equal(t, filepath.Join(root, "transcripts"), cfg.TextDir)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 4, cfg.MaxAttempts)
	assert.False(t, cfg.Translate)
	assert.Equal(t, "FR", cfg.SourceTag)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	root := setupTestProject(t)
	require.NoError(t, os.WriteFile(ConfigPath(root), []byte("poll_interval: 5s\n"), 0644))

	t.Setenv("BOQUER_POLL_INTERVAL", "750ms")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "sk-env", cfg.OpenAIAPIKey)
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	root := setupTestProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("OPENAI_API_KEY=sk-dotenv\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("OPENAI_API_KEY") })

	cfg, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "sk-dotenv", cfg.OpenAIAPIKey)
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	root := setupTestProject(t)
	require.NoError(t, os.WriteFile(ConfigPath(root), []byte("poll_interval: [unclosed\n"), 0644))

	_, err := Load(root)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig(t.TempDir())
		cfg.OpenAIAPIKey = "sk-test"
		return cfg
	}

	t.Run("defaults with key are valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing api key", func(c *Config) { c.OpenAIAPIKey = "" }, "OPENAI_API_KEY"},
		{"bad backend", func(c *Config) { c.Backend = "local" }, "backend must be one of"},
		{"whisper url required", func(c *Config) { c.Backend = BackendWhisperASR }, "whisper_asr_url is required"},
		{"no input", func(c *Config) { c.WatchDir = ""; c.StreamURL = "" }, "stream_url or watch_dir"},
		{"bad stream url", func(c *Config) { c.StreamURL = "not a url" }, "stream_url must be a valid URL"},
		{"same tags", func(c *Config) { c.TargetTag = c.SourceTag }, "must differ"},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }, "max_attempts"},
		{"zero poll", func(c *Config) { c.PollInterval = 0 }, "poll_interval"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("whisper without translation needs no key", func(t *testing.T) {
		cfg := valid()
		cfg.OpenAIAPIKey = ""
		cfg.Backend = BackendWhisperASR
		cfg.WhisperASRURL = "http://localhost:9000"
		cfg.Translate = false
		assert.NoError(t, cfg.Validate())
	})
}

func TestSave_RoundTrip(t *testing.T) {
	clearEnv(t)
	root := setupTestProject(t)

	cfg := DefaultConfig(root)
	cfg.PollInterval = 3 * time.Second
	cfg.OpenAIAPIKey = "sk-secret"
	cfg.StreamURL = "https://example.com/a.m3u8"
	require.NoError(t, cfg.Save(ConfigPath(root)))

	data, err := os.ReadFile(ConfigPath(root))
	require.NoError(t, err)
	assert.Contains(t, string(data), "poll_interval: 3s")
	assert.NotContains(t, string(data), "sk-secret")

	loaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, loaded.PollInterval)
	assert.Equal(t, cfg.StreamURL, loaded.StreamURL)
	assert.Equal(t, cfg.TextDir, loaded.TextDir)
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, expandTilde("~"))
	assert.Equal(t, filepath.Join(home, "logs"), expandTilde("~/logs"))
	assert.Equal(t, "/abs/path", expandTilde("/abs/path"))
	assert.Equal(t, "", expandTilde(""))
}
