// Package app wires all Solyn subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves until the context ends, and Shutdown tears
// everything down in reverse order.
//
// For testing, inject fakes via functional options (WithPersonaStore,
// WithTranscriptStore, etc.). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solyn-ai/solyn/internal/config"
	"github.com/solyn-ai/solyn/internal/observe"
	"github.com/solyn-ai/solyn/internal/orchestrator"
	"github.com/solyn-ai/solyn/internal/persona"
	personapg "github.com/solyn-ai/solyn/internal/persona/postgres"
	"github.com/solyn-ai/solyn/internal/products"
	"github.com/solyn-ai/solyn/internal/purchase"
	"github.com/solyn-ai/solyn/internal/session"
	"github.com/solyn-ai/solyn/internal/stylegen"
	"github.com/solyn-ai/solyn/internal/tools"
	"github.com/solyn-ai/solyn/internal/transcript"
	transcriptpg "github.com/solyn-ai/solyn/internal/transcript/postgres"
	"github.com/solyn-ai/solyn/pkg/objectstore"
	"github.com/solyn-ai/solyn/pkg/objectstore/mem"
	"github.com/solyn-ai/solyn/pkg/objectstore/s3"
	"github.com/solyn-ai/solyn/pkg/provider/imagegen"
	"github.com/solyn-ai/solyn/pkg/provider/llm"
	"github.com/solyn-ai/solyn/pkg/provider/stt"
	"github.com/solyn-ai/solyn/pkg/provider/tts"
	"github.com/solyn-ai/solyn/pkg/types"
)

// defaultPersonaCacheTTL bounds persona staleness when the config does not
// set one.
const defaultPersonaCacheTTL = 5 * time.Minute

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go from the config.
type Providers struct {
	LLM      llm.Provider
	STT      stt.Provider
	TTS      tts.Provider
	ImageGen imagegen.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems, initialised in New and torn down in Shutdown.
	pool        *pgxpool.Pool
	personas    persona.Store
	transcripts transcript.Store
	objects     objectstore.Store
	source      products.Source
	purchases   *purchase.Tracker
	metrics     *observe.Metrics
	registry    *tools.Registry
	orch        *orchestrator.Orchestrator
	manager     *session.Manager
	server      *http.Server

	// closers run in reverse order during Shutdown.
	closers []func(context.Context) error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithPersonaStore injects a persona store instead of creating one from config.
func WithPersonaStore(s persona.Store) Option {
	return func(a *App) { a.personas = s }
}

// WithTranscriptStore injects a transcript store instead of creating one from config.
func WithTranscriptStore(s transcript.Store) Option {
	return func(a *App) { a.transcripts = s }
}

// WithObjectStore injects an object store instead of creating one from config.
func WithObjectStore(s objectstore.Store) Option {
	return func(a *App) { a.objects = s }
}

// WithProductSource injects a product source instead of the config-backed static list.
func WithProductSource(s products.Source) Option {
	return func(a *App) { a.source = s }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go. Use Option functions to inject test doubles.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Metrics ───────────────────────────────────────────────────────
	if err := a.initMetrics(); err != nil {
		return nil, fmt.Errorf("app: init metrics: %w", err)
	}

	// ── 2. Storage ───────────────────────────────────────────────────────
	if err := a.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("app: init storage: %w", err)
	}

	// ── 3. Object store ──────────────────────────────────────────────────
	if err := a.initObjects(ctx); err != nil {
		return nil, fmt.Errorf("app: init object store: %w", err)
	}

	// ── 4. Purchase tracker + tools ──────────────────────────────────────
	a.purchases = purchase.NewTracker()
	a.initTools()

	// ── 5. Orchestrator ──────────────────────────────────────────────────
	a.initOrchestrator()
	if providers.TTS != nil {
		checkDefaultVoice(ctx, providers.TTS, cfg.Providers.TTS.DefaultVoiceID, slog.Default())
	}

	// ── 6. Session manager + HTTP server ─────────────────────────────────
	a.initServer()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initMetrics installs the Prometheus meter provider and builds instruments.
func (a *App) initMetrics() error {
	shutdown, err := observe.InitProvider()
	if err != nil {
		return err
	}
	a.closers = append(a.closers, shutdown)

	a.metrics, err = observe.NewMetrics()
	return err
}

// initStorage connects the persona and transcript stores, running their
// migrations, unless both were injected.
func (a *App) initStorage(ctx context.Context) error {
	if a.personas != nil && a.transcripts != nil {
		return nil // both injected
	}

	dsn := a.cfg.Storage.PostgresDSN
	if dsn == "" {
		return errors.New("storage.postgres_dsn is required when stores are not injected")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, func(context.Context) error {
		pool.Close()
		return nil
	})

	if a.personas == nil {
		store, err := personapg.NewStore(ctx, pool)
		if err != nil {
			return err
		}
		ttl := time.Duration(a.cfg.Session.PersonaCacheTTL)
		if ttl <= 0 {
			ttl = defaultPersonaCacheTTL
		}
		a.personas = persona.NewCache(store, ttl)
	}
	if a.transcripts == nil {
		store, err := transcriptpg.NewStore(ctx, pool)
		if err != nil {
			return err
		}
		a.transcripts = store
	}
	return nil
}

// initObjects builds the generated-image store: S3 when a bucket is
// configured, an in-memory store otherwise.
func (a *App) initObjects(ctx context.Context) error {
	if a.objects != nil {
		return nil
	}
	s3cfg := a.cfg.Storage.S3
	if s3cfg.Bucket == "" {
		a.objects = mem.New()
		slog.Warn("no S3 bucket configured; generated images are held in memory")
		return nil
	}

	var opts []s3.Option
	if s3cfg.Endpoint != "" {
		opts = append(opts, s3.WithEndpoint(s3cfg.Endpoint))
	}
	if s3cfg.PublicBaseURL != "" {
		opts = append(opts, s3.WithPublicBaseURL(s3cfg.PublicBaseURL))
	}
	store, err := s3.New(ctx, s3cfg.Bucket, opts...)
	if err != nil {
		return err
	}
	a.objects = store
	return nil
}

// initTools builds the tool registry and its style-generation client.
func (a *App) initTools() {
	if a.source == nil {
		a.source = &products.StaticSource{Products: a.cfg.Products}
	}

	var styler *stylegen.Client
	if a.providers.ImageGen != nil {
		styler = stylegen.NewClient(a.providers.ImageGen, a.objects,
			stylegen.WithLogger(slog.Default()))
	} else {
		slog.Warn("no image generation provider configured; style suggestions are disabled")
	}

	a.registry = tools.NewRegistry(styler, a.providers.ImageGen, a.transcripts,
		a.source, a.purchases, a.providers.LLM, slog.Default())
}

// initOrchestrator assembles the turn orchestrator.
func (a *App) initOrchestrator() {
	var opts []orchestrator.Option
	if a.providers.TTS != nil {
		opts = append(opts, orchestrator.WithTTS(a.providers.TTS, types.VoiceProfile{
			ID:       a.cfg.Providers.TTS.DefaultVoiceID,
			Provider: "elevenlabs",
		}))
	} else {
		slog.Warn("no TTS provider configured; responses are text-only")
	}
	a.orch = orchestrator.New(a.personas, a.transcripts, a.providers.LLM,
		a.registry, a.purchases, a.metrics, slog.Default(), opts...)
}

// checkDefaultVoice verifies the configured default voice exists on the TTS
// account. A mismatch or lookup failure is logged rather than fatal: per-turn
// synthesis reports its own errors, and the account may be temporarily
// unreachable at boot.
func checkDefaultVoice(ctx context.Context, provider tts.Provider, voiceID string, log *slog.Logger) {
	lister, ok := provider.(tts.VoiceLister)
	if !ok || voiceID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	voices, err := lister.ListVoices(ctx)
	if err != nil {
		log.Warn("could not verify default TTS voice", "voice_id", voiceID, "error", err)
		return
	}
	for _, v := range voices {
		if v.ID == voiceID {
			return
		}
	}
	log.Warn("default TTS voice not found on account", "voice_id", voiceID, "available", len(voices))
}

// initServer builds the session manager and the HTTP surface.
func (a *App) initServer() {
	a.manager = session.NewManager(a.providers.STT, a.orch, a.personas,
		a.transcripts, a.purchases, a.metrics, slog.Default(),
		session.WithGreeting(a.cfg.Session.Greeting),
		session.WithAllowedOrigins(a.cfg.Server.AllowedOrigins),
	)

	mux := http.NewServeMux()
	mux.Handle("/ws", a.manager)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", a.handleHealthz)

	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	a.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// handleHealthz reports liveness and database reachability.
func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if a.pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.pool.Ping(ctx); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// ─── Run / Shutdown ──────────────────────────────────────────────────────────

// Run serves HTTP until the context is cancelled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops the HTTP server and closes subsystems in reverse order.
// Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("app: http shutdown: %w", err))
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](ctx); err != nil {
				errs = append(errs, fmt.Errorf("app: close: %w", err))
			}
		}
	})
	return errors.Join(errs...)
}
