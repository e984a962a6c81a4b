package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// ${VAR} references are substituted from the environment before decoding, so
// secrets like provider API keys can stay out of the file. Useful in tests
// where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(expandEnv(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envRef matches ${VAR} environment references.
var envRef = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*\}`)

// expandEnv substitutes ${VAR} references with environment values. Only the
// braced form is expanded; bare dollar signs (prices in prompts, greetings)
// pass through untouched. Unset variables expand to the empty string, which
// Validate then reports for required fields.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		return []byte(os.Getenv(string(m[2 : len(m)-1])))
	})
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Providers.LLM.APIKey == "" {
		errs = append(errs, errors.New("providers.llm.api_key is required"))
	}
	if cfg.Providers.STT.APIKey == "" {
		errs = append(errs, errors.New("providers.stt.api_key is required"))
	}
	if cfg.Providers.TTS.APIKey != "" && cfg.Providers.TTS.DefaultVoiceID == "" {
		errs = append(errs, errors.New("providers.tts.default_voice_id is required when providers.tts is configured"))
	}

	if cfg.Storage.S3.Bucket != "" && cfg.Storage.S3.Region == "" && cfg.Storage.S3.Endpoint == "" {
		errs = append(errs, errors.New("storage.s3 requires either region or endpoint"))
	}

	if cfg.Session.PersonaCacheTTL < 0 {
		errs = append(errs, fmt.Errorf("session.persona_cache_ttl %s is negative", cfg.Session.PersonaCacheTTL))
	}

	seen := make(map[string]int, len(cfg.Products))
	for i, p := range cfg.Products {
		prefix := fmt.Sprintf("products[%d]", i)
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
		} else {
			if prev, ok := seen[p.ID]; ok {
				errs = append(errs, fmt.Errorf("%s.id %q is a duplicate of products[%d]", prefix, p.ID, prev))
			}
			seen[p.ID] = i
		}
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if p.Price < 0 {
			errs = append(errs, fmt.Errorf("%s.price %.2f is negative", prefix, p.Price))
		}
	}

	return errors.Join(errs...)
}
