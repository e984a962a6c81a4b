// Package config provides the configuration schema and loader for the Solyn
// server.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/solyn-ai/solyn/internal/products"
)

// Duration is a time.Duration that unmarshals from YAML strings in
// time.ParseDuration syntax, e.g. "30s" or "2m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig       `yaml:"server"`
	Providers ProvidersConfig    `yaml:"providers"`
	Storage   StorageConfig      `yaml:"storage"`
	Session   SessionConfig      `yaml:"session"`
	Products  []products.Product `yaml:"products"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// AllowedOrigins lists origin patterns accepted for the WebSocket
	// upgrade. Empty means same-origin only.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// ProvidersConfig declares the upstream AI providers for each pipeline stage.
type ProvidersConfig struct {
	LLM      ProviderEntry `yaml:"llm"`
	STT      ProviderEntry `yaml:"stt"`
	TTS      TTSEntry      `yaml:"tts"`
	ImageGen ProviderEntry `yaml:"imagegen"`
}

// ProviderEntry is the common configuration block shared by providers.
type ProviderEntry struct {
	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model (e.g., "gpt-4o", "gpt-4o-transcribe").
	Model string `yaml:"model"`
}

// TTSEntry extends ProviderEntry with the default voice.
type TTSEntry struct {
	ProviderEntry `yaml:",inline"`

	// DefaultVoiceID is the voice used when a persona has none.
	DefaultVoiceID string `yaml:"default_voice_id"`
}

// StorageConfig holds the persistence settings.
type StorageConfig struct {
	// PostgresDSN is the connection string for the persona and transcript
	// store.
	PostgresDSN string `yaml:"postgres_dsn"`

	// S3 configures the object store for generated style images.
	S3 S3Config `yaml:"s3"`
}

// S3Config holds the generated-image bucket settings.
type S3Config struct {
	// Bucket is the destination bucket. Empty disables image copying and
	// clients receive provider URLs directly.
	Bucket string `yaml:"bucket"`

	// Region is the bucket's AWS region.
	Region string `yaml:"region"`

	// Endpoint overrides the S3 endpoint for S3-compatible stores. Implies
	// path-style addressing.
	Endpoint string `yaml:"endpoint"`

	// PublicBaseURL is the URL prefix clients use to fetch stored objects.
	PublicBaseURL string `yaml:"public_base_url"`
}

// SessionConfig tunes per-session behaviour.
type SessionConfig struct {
	// Greeting makes each session open with a proactive assistant greeting.
	Greeting bool `yaml:"greeting"`

	// PersonaCacheTTL bounds how long persona lookups are cached. Zero uses
	// the built-in default.
	PersonaCacheTTL Duration `yaml:"persona_cache_ttl"`
}
