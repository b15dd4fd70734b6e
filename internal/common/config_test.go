package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ProviderOpenAI, cfg.Provider.Name)
	assert.Equal(t, "gpt-4o", cfg.Provider.Model)
	assert.Equal(t, 45, cfg.Provider.TimeoutSecs)
	assert.True(t, cfg.Pipeline.SkipHidden)
	assert.Equal(t, "invoice-digest.db", cfg.Store.Path)
	assert.Equal(t, 3, cfg.Resilience.MaxAttempts)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.Provider.Name)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
provider:
  name: anthropic
  model: claude-3-5-sonnet-20241022
  temperature: 0.2
pipeline:
  input_dir: /tmp/invoices
  output_dir: /tmp/out
store:
  path: runs.db
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ProviderAnthropic, cfg.Provider.Name)
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.Provider.Model)
	assert.InDelta(t, 0.2, cfg.Provider.Temperature, 1e-6)
	assert.Equal(t, "/tmp/invoices", cfg.Pipeline.InputDir)
	assert.Equal(t, "runs.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider:\n  model: gpt-4o\n"), 0o644))

	t.Setenv("DIGEST_MODEL", "gpt-4o-mini")
	t.Setenv("DIGEST_TIMEOUT_SECS", "90")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.Provider.Model)
	assert.Equal(t, 90, cfg.Provider.TimeoutSecs)
}

func TestLoadConfigResolvesAPIKeyFromEnv(t *testing.T) {
	t.Setenv("DIGEST_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, cfg.Provider.Name)
	assert.Equal(t, "test-key", cfg.Provider.APIKey)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: [broken"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	assert.Equal(t, "sk-test", APIKeyFromEnv(ProviderOpenAI))
	assert.Empty(t, APIKeyFromEnv("no-such-provider"))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Provider.APIKey = "sk-test"
		cfg.Pipeline.InputDir = "/tmp/in"
		return cfg
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Provider.Name = "cohere" }},
		{"missing api key", func(c *Config) { c.Provider.APIKey = "" }},
		{"missing model", func(c *Config) { c.Provider.Model = "" }},
		{"missing input dir", func(c *Config) { c.Pipeline.InputDir = "" }},
		{"missing store path", func(c *Config) { c.Store.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}
