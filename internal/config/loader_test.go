package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/solyn-ai/solyn/internal/config"
)

const validYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  allowed_origins:
    - "app.example.com"
providers:
  llm:
    api_key: sk-llm
    model: gpt-4o
  stt:
    api_key: sk-stt
  tts:
    api_key: sk-tts
    default_voice_id: voice-1
  imagegen:
    api_key: fal-key
storage:
  postgres_dsn: postgres://localhost/solyn
  s3:
    bucket: solyn-images
    region: eu-central-1
    public_base_url: https://cdn.example.com
session:
  greeting: true
  persona_cache_ttl: 2m
products:
  - id: "1"
    name: Sneakers
    price: 120
    currency: USD
    image_url: https://cdn.example.com/sneakers.png
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.ListenAddr != ":9090" || cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "app.example.com" {
		t.Errorf("allowed origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Providers.LLM.Model != "gpt-4o" || cfg.Providers.TTS.DefaultVoiceID != "voice-1" {
		t.Errorf("providers = %+v", cfg.Providers)
	}
	if cfg.Storage.S3.Bucket != "solyn-images" || cfg.Storage.S3.PublicBaseURL != "https://cdn.example.com" {
		t.Errorf("s3 = %+v", cfg.Storage.S3)
	}
	if !cfg.Session.Greeting || cfg.Session.PersonaCacheTTL != config.Duration(2*time.Minute) {
		t.Errorf("session = %+v", cfg.Session)
	}
	if len(cfg.Products) != 1 || cfg.Products[0].ImageURL != "https://cdn.example.com/sneakers.png" {
		t.Errorf("products = %+v", cfg.Products)
	}
}

func TestLoadFromReader_ExpandsEnvRefs(t *testing.T) {
	t.Setenv("SOLYN_TEST_LLM_KEY", "sk-from-env")
	in := `
providers:
  llm:
    api_key: ${SOLYN_TEST_LLM_KEY}
  stt:
    api_key: sk-stt
session:
  greeting: true
products:
  - id: "1"
    name: Sneakers $5 off
    price: 120
`
	cfg, err := config.LoadFromReader(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Providers.LLM.APIKey != "sk-from-env" {
		t.Errorf("llm api_key = %q, want value from environment", cfg.Providers.LLM.APIKey)
	}
	// Bare dollar signs are not references and must survive.
	if cfg.Products[0].Name != "Sneakers $5 off" {
		t.Errorf("product name = %q", cfg.Products[0].Name)
	}
}

func TestLoadFromReader_UnsetEnvRefFailsValidation(t *testing.T) {
	t.Setenv("SOLYN_TEST_UNSET_KEY", "")
	in := `
providers:
  llm:
    api_key: ${SOLYN_TEST_UNSET_KEY}
  stt:
    api_key: sk-stt
`
	_, err := config.LoadFromReader(strings.NewReader(in))
	if err == nil || !strings.Contains(err.Error(), "providers.llm.api_key is required") {
		t.Fatalf("err = %v, want missing api_key validation error", err)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	in := `
providers:
  llm:
    api_key: sk-llm
    temperature: 0.9
  stt:
    api_key: sk-stt
`
	if _, err := config.LoadFromReader(strings.NewReader(in)); err == nil {
		t.Fatal("unknown field should fail decoding")
	}
}

func TestLoadFromReader_BadDuration(t *testing.T) {
	t.Parallel()
	in := `
providers:
  llm:
    api_key: sk-llm
  stt:
    api_key: sk-stt
session:
  persona_cache_ttl: soon
`
	_, err := config.LoadFromReader(strings.NewReader(in))
	if err == nil || !strings.Contains(err.Error(), `duration "soon"`) {
		t.Fatalf("err = %v, want a duration parse error", err)
	}
}

func TestValidate_MissingAPIKeys(t *testing.T) {
	t.Parallel()
	err := config.Validate(&config.Config{})
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "providers.llm.api_key is required") {
		t.Errorf("missing llm key not reported: %v", err)
	}
	if !strings.Contains(msg, "providers.stt.api_key is required") {
		t.Errorf("missing stt key not reported: %v", err)
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Server.LogLevel = "loud"
	cfg.Providers.TTS.APIKey = "sk-tts"
	cfg.Storage.S3.Bucket = "imgs"
	cfg.Session.PersonaCacheTTL = config.Duration(-time.Second)

	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{
		`server.log_level "loud" is invalid`,
		"providers.tts.default_voice_id is required",
		"storage.s3 requires either region or endpoint",
		"persona_cache_ttl",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %v does not mention %q", err, want)
		}
	}
}

func TestValidate_ProductRules(t *testing.T) {
	t.Parallel()
	in := `
providers:
  llm:
    api_key: sk-llm
  stt:
    api_key: sk-stt
products:
  - id: "1"
    name: Sneakers
    price: 10
  - id: "1"
    name: ""
    price: -5
`
	_, err := config.LoadFromReader(strings.NewReader(in))
	if err == nil {
		t.Fatal("expected validation errors")
	}
	msg := err.Error()
	for _, want := range []string{
		`products[1].id "1" is a duplicate of products[0]`,
		"products[1].name is required",
		"products[1].price -5.00 is negative",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %v does not mention %q", err, want)
		}
	}
}
