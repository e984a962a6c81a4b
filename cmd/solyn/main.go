// Command solyn is the main entry point for the Solyn conversational avatar
// server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/solyn-ai/solyn/internal/app"
	"github.com/solyn-ai/solyn/internal/config"
	"github.com/solyn-ai/solyn/pkg/provider/imagegen/fal"
	oaillm "github.com/solyn-ai/solyn/pkg/provider/llm/openai"
	"github.com/solyn-ai/solyn/pkg/provider/stt/openairt"
	"github.com/solyn-ai/solyn/pkg/provider/tts/elevenlabs"
)

// defaultLLMModel is used when providers.llm.model is not set.
const defaultLLMModel = "gpt-4o"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "solyn: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "solyn: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("solyn starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildProviders constructs the upstream AI providers declared in cfg. LLM
// and STT are required; TTS and image generation are optional.
func buildProviders(cfg *config.Config) (*app.Providers, error) {
	p := &app.Providers{}

	model := cfg.Providers.LLM.Model
	if model == "" {
		model = defaultLLMModel
	}
	var llmOpts []oaillm.Option
	if cfg.Providers.LLM.BaseURL != "" {
		llmOpts = append(llmOpts, oaillm.WithBaseURL(cfg.Providers.LLM.BaseURL))
	}
	llmProvider, err := oaillm.New(cfg.Providers.LLM.APIKey, model, llmOpts...)
	if err != nil {
		return nil, fmt.Errorf("build llm provider: %w", err)
	}
	p.LLM = llmProvider

	var sttOpts []openairt.Option
	if cfg.Providers.STT.Model != "" {
		sttOpts = append(sttOpts, openairt.WithModel(cfg.Providers.STT.Model))
	}
	if cfg.Providers.STT.BaseURL != "" {
		sttOpts = append(sttOpts, openairt.WithBaseURL(cfg.Providers.STT.BaseURL))
	}
	sttProvider, err := openairt.New(cfg.Providers.STT.APIKey, sttOpts...)
	if err != nil {
		return nil, fmt.Errorf("build stt provider: %w", err)
	}
	p.STT = sttProvider

	if cfg.Providers.TTS.APIKey != "" {
		var ttsOpts []elevenlabs.Option
		if cfg.Providers.TTS.Model != "" {
			ttsOpts = append(ttsOpts, elevenlabs.WithModel(cfg.Providers.TTS.Model))
		}
		if cfg.Providers.TTS.BaseURL != "" {
			ttsOpts = append(ttsOpts, elevenlabs.WithBaseURL(cfg.Providers.TTS.BaseURL))
		}
		ttsProvider, err := elevenlabs.New(cfg.Providers.TTS.APIKey, ttsOpts...)
		if err != nil {
			return nil, fmt.Errorf("build tts provider: %w", err)
		}
		p.TTS = ttsProvider
	}

	if cfg.Providers.ImageGen.APIKey != "" {
		var genOpts []fal.Option
		if cfg.Providers.ImageGen.BaseURL != "" {
			genOpts = append(genOpts, fal.WithBaseURL(cfg.Providers.ImageGen.BaseURL))
		}
		genProvider, err := fal.New(cfg.Providers.ImageGen.APIKey, genOpts...)
		if err != nil {
			return nil, fmt.Errorf("build image generation provider: %w", err)
		}
		p.ImageGen = genProvider
	}

	return p, nil
}

// newLogger builds the process logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var l slog.Level
	switch level {
	case config.LogDebug:
		l = slog.LevelDebug
	case config.LogWarn:
		l = slog.LevelWarn
	case config.LogError:
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
