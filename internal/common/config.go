package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider names accepted in configuration.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// apiKeyEnv maps a provider name to the environment variable holding its credential.
var apiKeyEnv = map[string]string{
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderGemini:    "GEMINI_API_KEY",
}

// Config holds all application configuration. Immutable after load.
type Config struct {
	Provider   ProviderConfig   `yaml:"provider"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Store      StoreConfig      `yaml:"store"`
	Schema     SchemaConfig     `yaml:"schema"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Log        LogConfig        `yaml:"log"`
}

// ProviderConfig selects and configures the extraction provider.
type ProviderConfig struct {
	Name        string  `yaml:"name"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url,omitempty"`
	Temperature float32 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`

	// APIKey is sourced from the environment only, never from the settings file.
	APIKey string `yaml:"-"`
}

// Timeout returns the provider call timeout as a duration.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

// PipelineConfig holds per-run processing options.
type PipelineConfig struct {
	InputDir   string `yaml:"input_dir"`
	OutputDir  string `yaml:"output_dir"`
	SkipHidden bool   `yaml:"skip_hidden"`
	Force      bool   `yaml:"-"` // flag only
}

// StoreConfig holds run-store options.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// SchemaConfig points at an external extraction schema; empty means the
// built-in invoice schema.
type SchemaConfig struct {
	Path string `yaml:"path,omitempty"`
}

// ResilienceConfig tunes retries, the circuit breaker and the rate limiter
// around provider calls.
type ResilienceConfig struct {
	MaxAttempts        int     `yaml:"max_attempts"`
	InitialBackoffMS   int     `yaml:"initial_backoff_ms"`
	MaxBackoffMS       int     `yaml:"max_backoff_ms"`
	BackoffMultiplier  float64 `yaml:"backoff_multiplier"`
	RequestsPerSecond  float64 `yaml:"requests_per_second"`
	BreakerEnabled     bool    `yaml:"breaker_enabled"`
	BreakerMinRequests uint32  `yaml:"breaker_min_requests"`
}

// LogConfig holds logging options.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in defaults, before file and env overlays.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name:        ProviderOpenAI,
			Model:       "gpt-4o",
			Temperature: 0.0,
			TimeoutSecs: 45,
		},
		Pipeline: PipelineConfig{
			SkipHidden: true,
		},
		Store: StoreConfig{
			Path: "invoice-digest.db",
		},
		Resilience: ResilienceConfig{
			MaxAttempts:        3,
			InitialBackoffMS:   250,
			MaxBackoffMS:       4000,
			BackoffMultiplier:  2.0,
			RequestsPerSecond:  2,
			BreakerEnabled:     true,
			BreakerMinRequests: 5,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig reads the settings file at path (missing file means defaults),
// then applies environment overrides. Credentials come from the environment only.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, NewConfigError(fmt.Sprintf("parse settings file %s", path), err)
			}
		case errors.Is(err, os.ErrNotExist):
			// fall through to defaults
		default:
			return nil, NewConfigError(fmt.Sprintf("read settings file %s", path), err)
		}
	}

	cfg.Provider.Name = getEnv("DIGEST_PROVIDER", cfg.Provider.Name)
	cfg.Provider.Model = getEnv("DIGEST_MODEL", cfg.Provider.Model)
	cfg.Provider.BaseURL = getEnv("DIGEST_BASE_URL", cfg.Provider.BaseURL)
	cfg.Provider.Temperature = getEnvAsFloat32("DIGEST_TEMPERATURE", cfg.Provider.Temperature)
	cfg.Provider.TimeoutSecs = getEnvAsInt("DIGEST_TIMEOUT_SECS", cfg.Provider.TimeoutSecs)
	cfg.Store.Path = getEnv("DIGEST_DB", cfg.Store.Path)
	cfg.Schema.Path = getEnv("DIGEST_SCHEMA", cfg.Schema.Path)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)

	if env, ok := apiKeyEnv[cfg.Provider.Name]; ok {
		cfg.Provider.APIKey = os.Getenv(env)
	}

	return cfg, nil
}

// APIKeyFromEnv resolves the credential for a provider from its environment
// variable. Unknown providers yield the empty string.
func APIKeyFromEnv(provider string) string {
	if env, ok := apiKeyEnv[provider]; ok {
		return os.Getenv(env)
	}
	return ""
}

// Validate validates the loaded configuration.
func (c *Config) Validate() error {
	env, ok := apiKeyEnv[c.Provider.Name]
	if !ok {
		return NewConfigError(fmt.Sprintf("unknown provider %q", c.Provider.Name), nil)
	}
	if c.Provider.APIKey == "" {
		return NewConfigError(env+" is required", nil)
	}
	if c.Provider.Model == "" {
		return NewConfigError("provider model is required", nil)
	}
	if c.Pipeline.InputDir == "" {
		return NewConfigError("input directory is required", nil)
	}
	if c.Store.Path == "" {
		return NewConfigError("store path is required", nil)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}
