package orchestrator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/solyn-ai/solyn/internal/event"
	"github.com/solyn-ai/solyn/internal/interrupt"
	"github.com/solyn-ai/solyn/internal/observe"
	"github.com/solyn-ai/solyn/internal/orchestrator"
	"github.com/solyn-ai/solyn/internal/persona"
	personamem "github.com/solyn-ai/solyn/internal/persona/memstore"
	"github.com/solyn-ai/solyn/internal/products"
	productsmock "github.com/solyn-ai/solyn/internal/products/mock"
	"github.com/solyn-ai/solyn/internal/purchase"
	"github.com/solyn-ai/solyn/internal/tools"
	transcriptmock "github.com/solyn-ai/solyn/internal/transcript/mock"
	"github.com/solyn-ai/solyn/pkg/provider/llm"
	llmmock "github.com/solyn-ai/solyn/pkg/provider/llm/mock"
	"github.com/solyn-ai/solyn/pkg/types"
)

// captureSink records every event it receives.
type captureSink struct {
	mu     sync.Mutex
	events []event.Envelope
}

func (s *captureSink) Send(ev event.Envelope) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *captureSink) all() []event.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Envelope, len(s.events))
	copy(out, s.events)
	return out
}

func (s *captureSink) types() []string {
	var out []string
	for _, ev := range s.all() {
		out = append(out, ev.EventType())
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture bundles the orchestrator with its injectable collaborators.
type fixture struct {
	orch      *orchestrator.Orchestrator
	llm       *llmmock.Provider
	store     *transcriptmock.Store
	purchases *purchase.Tracker
	source    *productsmock.Source
	coord     *interrupt.Coordinator
	sink      *captureSink
}

func newFixture(t *testing.T, p *persona.Persona, chunks []llm.Chunk, opts ...orchestrator.Option) *fixture {
	t.Helper()
	metrics, err := observe.NewMetrics()
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		llm:       &llmmock.Provider{StreamChunks: chunks},
		store:     &transcriptmock.Store{},
		purchases: purchase.NewTracker(),
		source:    &productsmock.Source{},
		coord:     interrupt.NewCoordinator(),
		sink:      &captureSink{},
	}
	registry := tools.NewRegistry(nil, nil, f.store, f.source, f.purchases, f.llm, testLogger())
	f.orch = orchestrator.New(personamem.New(p), f.store, f.llm, registry, f.purchases, metrics, testLogger(), opts...)
	return f
}

func (f *fixture) turn(handle *interrupt.TurnHandle) *orchestrator.Turn {
	return &orchestrator.Turn{
		SessionID:   "s1",
		UserID:      "u1",
		PersonaID:   "p1",
		UserMessage: types.Text("user", "hello"),
		Sink:        f.sink,
		Coordinator: f.coord,
		Handle:      handle,
		Background:  func(fn func(ctx context.Context)) { fn(context.Background()) },
	}
}

func basicPersona() *persona.Persona {
	return &persona.Persona{
		ID:           "p1",
		Name:         "Nova",
		Category:     persona.CategoryGeneric,
		SystemPrompt: "You are Nova.",
	}
}

func TestRespond_EventOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t, basicPersona(), []llm.Chunk{
		{Text: "Hello "},
		{Text: "world."},
		{FinishReason: "stop"},
	})

	handle := f.coord.BeginTurn(context.Background())
	defer f.coord.EndTurn(handle)

	text, err := f.orch.Respond(handle.Context(), f.turn(handle))
	if err != nil {
		t.Fatal(err)
	}
	if text != "Hello world." {
		t.Errorf("final text = %q", text)
	}

	want := []string{
		event.TypeLLMResponseStart,
		event.TypeLLMResponseChunk,
		event.TypeLLMResponseChunk,
		event.TypeLLMResponseComplete,
	}
	got := f.sink.types()
	if len(got) != len(want) {
		t.Fatalf("event sequence %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event sequence %v, want %v", got, want)
		}
	}

	complete := f.sink.all()[3].(event.LLMResponseComplete)
	if complete.FullResponse != "Hello world." || !complete.Complete {
		t.Errorf("complete event = %+v", complete)
	}
}

func TestRespond_PersistsUserAndAssistant(t *testing.T) {
	t.Parallel()
	f := newFixture(t, basicPersona(), []llm.Chunk{
		{Text: "Hi."},
		{FinishReason: "stop"},
	})
	handle := f.coord.BeginTurn(context.Background())
	defer f.coord.EndTurn(handle)

	if _, err := f.orch.Respond(handle.Context(), f.turn(handle)); err != nil {
		t.Fatal(err)
	}

	if len(f.store.AppendCalls) != 1 {
		t.Fatalf("got %d append calls", len(f.store.AppendCalls))
	}
	msgs := f.store.AppendCalls[0].Messages
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Errorf("persisted messages = %+v", msgs)
	}
	if msgs[1].Content != "Hi." {
		t.Errorf("assistant content = %q", msgs[1].Content)
	}
}

func TestRespond_ProactivePersistsAssistantOnly(t *testing.T) {
	t.Parallel()
	f := newFixture(t, basicPersona(), []llm.Chunk{
		{Text: "Welcome!"},
		{FinishReason: "stop"},
	})
	handle := f.coord.BeginTurn(context.Background())
	defer f.coord.EndTurn(handle)

	turn := f.turn(handle)
	turn.Proactive = true
	if _, err := f.orch.Respond(handle.Context(), turn); err != nil {
		t.Fatal(err)
	}

	msgs := f.store.AppendCalls[0].Messages
	if len(msgs) != 1 || msgs[0].Role != "assistant" {
		t.Errorf("proactive turn should persist only the assistant message: %+v", msgs)
	}
}

func TestRespond_PersonaMissing(t *testing.T) {
	t.Parallel()
	f := newFixture(t, basicPersona(), nil)
	handle := f.coord.BeginTurn(context.Background())
	defer f.coord.EndTurn(handle)

	turn := f.turn(handle)
	turn.PersonaID = "nope"
	_, err := f.orch.Respond(handle.Context(), turn)
	if !errors.Is(err, orchestrator.ErrPersonaMissing) {
		t.Fatalf("err = %v, want ErrPersonaMissing", err)
	}

	got := f.sink.types()
	if len(got) != 1 || got[0] != event.TypeLLMResponseError {
		t.Errorf("events = %v, want a single llm_response_error", got)
	}
}

func TestRespond_UpstreamErrorFallsBackToApology(t *testing.T) {
	t.Parallel()
	f := newFixture(t, basicPersona(), []llm.Chunk{
		{Text: "partial "},
		{FinishReason: "error", Text: "rate limited"},
	})
	handle := f.coord.BeginTurn(context.Background())
	defer f.coord.EndTurn(handle)

	text, err := f.orch.Respond(handle.Context(), f.turn(handle))
	if !errors.Is(err, orchestrator.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	if text != orchestrator.FallbackApology {
		t.Errorf("fallback text = %q", text)
	}

	got := f.sink.types()
	if got[len(got)-1] != event.TypeLLMResponseError {
		t.Errorf("turn should terminate with llm_response_error, got %v", got)
	}
	errEv := f.sink.all()[len(got)-1].(event.LLMResponseError)
	if errEv.Error != orchestrator.FallbackApology {
		t.Errorf("error event text = %q", errEv.Error)
	}
	if f.store.AppendCallCount() != 0 {
		t.Error("failed turn must not persist")
	}
}

func TestRespond_StalledStreamTimesOutWithApology(t *testing.T) {
	t.Parallel()
	hold := make(chan struct{})
	defer close(hold)
	f := newFixture(t, basicPersona(), []llm.Chunk{{Text: "never delivered"}},
		orchestrator.WithCompletionTimeout(40*time.Millisecond))
	f.llm.StreamHold = hold

	handle := f.coord.BeginTurn(context.Background())
	defer f.coord.EndTurn(handle)

	text, err := f.orch.Respond(handle.Context(), f.turn(handle))
	if !errors.Is(err, orchestrator.ErrUpstreamTimeout) {
		t.Fatalf("err = %v, want ErrUpstreamTimeout", err)
	}
	if text != orchestrator.FallbackApology {
		t.Errorf("fallback text = %q", text)
	}

	got := f.sink.types()
	if len(got) == 0 || got[len(got)-1] != event.TypeLLMResponseError {
		t.Fatalf("timed-out turn should terminate with llm_response_error, got %v", got)
	}
	for _, typ := range got {
		if typ == event.TypeLLMResponseComplete {
			t.Errorf("timed-out turn emitted llm_response_complete: %v", got)
		}
	}
	errEv := f.sink.all()[len(got)-1].(event.LLMResponseError)
	if errEv.Error != orchestrator.FallbackApology {
		t.Errorf("error event text = %q", errEv.Error)
	}
	if f.store.AppendCallCount() != 0 {
		t.Error("timed-out turn must not persist")
	}
}

func TestRespond_CancelledTurnEmitsNoTerminalEvent(t *testing.T) {
	t.Parallel()
	hold := make(chan struct{})
	f := newFixture(t, basicPersona(), []llm.Chunk{{Text: "never seen"}})
	f.llm.StreamHold = hold

	handle := f.coord.BeginTurn(context.Background())
	defer f.coord.EndTurn(handle)

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.Respond(handle.Context(), f.turn(handle))
		done <- err
	}()

	// Wait for the stream to be requested, then cancel the turn.
	for f.llm.LastStreamRequest().SystemPrompt == "" {
		time.Sleep(time.Millisecond)
	}
	handle.Cancel()
	close(hold)

	err := <-done
	if !errors.Is(err, orchestrator.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}

	for _, typ := range f.sink.types() {
		if typ == event.TypeLLMResponseComplete || typ == event.TypeLLMResponseError {
			t.Errorf("cancelled turn emitted terminal event %s", typ)
		}
	}
	if f.store.AppendCallCount() != 0 {
		t.Error("cancelled turn must not persist")
	}
}

func TestRespond_ToolCallProducts(t *testing.T) {
	t.Parallel()
	p := basicPersona()
	p.ProductsEnabled = true
	f := newFixture(t, p, []llm.Chunk{
		{Text: "Sure, "},
		{ToolCallDeltas: []llm.ToolCallDelta{{Index: 0, ID: "c1", Name: "get_trending_products", Arguments: "{}"}}},
		{FinishReason: "tool_calls"},
	})
	f.source.Products = []products.Product{
		{ID: "1", Name: "Sneakers", Price: 120, Currency: "USD"},
	}

	handle := f.coord.BeginTurn(context.Background())
	defer f.coord.EndTurn(handle)

	text, err := f.orch.Respond(handle.Context(), f.turn(handle))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "trending picks") || !strings.Contains(text, "Sneakers at 120.00 USD") {
		t.Errorf("tool turn text = %q", text)
	}

	var sawDisplay, sawComplete bool
	for _, ev := range f.sink.all() {
		switch ev := ev.(type) {
		case event.ProductsDisplay:
			sawDisplay = true
		case event.LLMResponseComplete:
			sawComplete = true
			if ev.FullResponse != text {
				t.Errorf("complete event text %q != returned %q", ev.FullResponse, text)
			}
		}
	}
	if !sawDisplay || !sawComplete {
		t.Errorf("missing events: display=%v complete=%v", sawDisplay, sawComplete)
	}

	if got := f.purchases.Get("s1").Status; got != purchase.StatusProductsDisplayed {
		t.Errorf("purchase status = %q", got)
	}
}

func TestRespond_SystemPromptCarriesPurchaseGuidance(t *testing.T) {
	t.Parallel()
	f := newFixture(t, basicPersona(), []llm.Chunk{
		{Text: "Okay."},
		{FinishReason: "stop"},
	})
	f.purchases.Set("s1", purchase.StatusWalletConnecting, nil)

	handle := f.coord.BeginTurn(context.Background())
	defer f.coord.EndTurn(handle)

	if _, err := f.orch.Respond(handle.Context(), f.turn(handle)); err != nil {
		t.Fatal(err)
	}

	prompt := f.llm.LastStreamRequest().SystemPrompt
	if !strings.Contains(prompt, "You are Nova.") {
		t.Errorf("persona prompt missing: %q", prompt)
	}
	if !strings.Contains(prompt, "connecting their crypto wallet") {
		t.Errorf("purchase guidance missing: %q", prompt)
	}
}
