// Package orchestrator runs one response turn end to end: assemble the
// prompt and cross-session history, stream the LLM completion, fan out text
// to the client and the TTS sink, dispatch tool calls, and persist the
// transcript.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/solyn-ai/solyn/internal/event"
	"github.com/solyn-ai/solyn/internal/interrupt"
	"github.com/solyn-ai/solyn/internal/observe"
	"github.com/solyn-ai/solyn/internal/persona"
	"github.com/solyn-ai/solyn/internal/purchase"
	"github.com/solyn-ai/solyn/internal/tools"
	"github.com/solyn-ai/solyn/internal/transcript"
	"github.com/solyn-ai/solyn/internal/ttsstream"
	"github.com/solyn-ai/solyn/pkg/provider/llm"
	"github.com/solyn-ai/solyn/pkg/provider/tts"
	"github.com/solyn-ai/solyn/pkg/types"
)

// Turn error kinds. Callers distinguish them with errors.Is.
var (
	// ErrPersonaMissing means the turn's persona does not exist.
	ErrPersonaMissing = errors.New("orchestrator: persona missing")

	// ErrUpstreamTimeout means the completion exceeded the wall-clock limit.
	ErrUpstreamTimeout = errors.New("orchestrator: upstream timeout")

	// ErrUpstream means the completion failed mid-stream.
	ErrUpstream = errors.New("orchestrator: upstream error")

	// ErrCancelled means the turn was cancelled (barge-in or session end).
	ErrCancelled = errors.New("orchestrator: turn cancelled")
)

// FallbackApology is returned to callers when the LLM fails.
const FallbackApology = "I apologize, but I'm having trouble processing your request right now. Could you please try again?"

// Completion parameters.
const (
	defaultCompletionTimeout = 30 * time.Second
	temperature              = 0.7
	maxTokens                = 500
	presencePenalty          = 0.1
	frequencyPenalty         = 0.1
)

// ttsSink is the per-turn synthesis sink. A no-op implementation stands in
// when no TTS provider is configured.
type ttsSink interface {
	OnChunk(text string)
	OnComplete()
	Discard()
}

type nopTTSSink struct{}

func (nopTTSSink) OnChunk(string) {}
func (nopTTSSink) OnComplete()    {}
func (nopTTSSink) Discard()       {}

// Turn is one response request, assembled by the session manager.
type Turn struct {
	// SessionID, UserID, PersonaID identify the conversation.
	SessionID string
	UserID    string
	PersonaID string

	// UserMessage is the user's utterance: plain text, or parts carrying at
	// most one image.
	UserMessage types.Message

	// Proactive marks a turn the assistant initiates (greeting); the user
	// message is a synthetic instruction and is not persisted.
	Proactive bool

	// Sink receives the turn's outbound events.
	Sink event.Sink

	// Coordinator owns the speaking flag; Handle is this turn's
	// cancellation scope.
	Coordinator *interrupt.Coordinator
	Handle      *interrupt.TurnHandle

	// VisionImage is the session's last captured frame for tool use.
	VisionImage      []byte
	VisionCapturedAt time.Time

	// Background schedules session-scoped work that outlives the turn.
	Background func(fn func(ctx context.Context))
}

// Orchestrator coordinates the LLM, TTS, tool, and transcript components.
// One Orchestrator serves all sessions; per-turn state lives in [Turn].
type Orchestrator struct {
	personas     persona.Store
	store        transcript.Store
	llm          llm.Provider
	tts          tts.Provider
	registry     *tools.Registry
	purchases    *purchase.Tracker
	metrics      *observe.Metrics
	log          *slog.Logger
	defaultVoice types.VoiceProfile
	timeout      time.Duration
}

// Option is a functional option for the Orchestrator.
type Option func(*Orchestrator)

// WithTTS attaches the TTS provider and the default voice used when a
// persona has none.
func WithTTS(provider tts.Provider, defaultVoice types.VoiceProfile) Option {
	return func(o *Orchestrator) {
		o.tts = provider
		o.defaultVoice = defaultVoice
	}
}

// WithCompletionTimeout overrides the wall-clock limit on one completion
// stream.
func WithCompletionTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// New creates an Orchestrator.
func New(personas persona.Store, store transcript.Store, provider llm.Provider, registry *tools.Registry, purchases *purchase.Tracker, metrics *observe.Metrics, log *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		personas:  personas,
		store:     store,
		llm:       provider,
		registry:  registry,
		purchases: purchases,
		metrics:   metrics,
		log:       log,
		timeout:   defaultCompletionTimeout,
	}
	for _, op := range opts {
		op(o)
	}
	return o
}

// Respond runs one turn and returns the final assistant text.
//
// The supplied ctx must be the turn's cancellation scope (Handle.Context()).
// Event ordering per turn: llm_response_start, then chunks, then audio, then
// exactly one llm_response_complete or llm_response_error; a barge-in
// cancellation emits neither.
func (o *Orchestrator) Respond(ctx context.Context, turn *Turn) (string, error) {
	start := time.Now()
	o.metrics.TurnStarted(ctx)

	p, err := o.personas.Lookup(ctx, turn.PersonaID)
	if err != nil {
		turn.Sink.Send(event.LLMResponseError{
			Error:    "Persona not found",
			AvatarID: turn.PersonaID,
		})
		o.metrics.TurnError(ctx, "persona_missing")
		if errors.Is(err, persona.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrPersonaMissing, turn.PersonaID)
		}
		return "", fmt.Errorf("orchestrator: persona lookup: %w", err)
	}

	messages := o.assembleHistory(ctx, turn)
	req := llm.CompletionRequest{
		SystemPrompt:     o.systemPrompt(p, turn.SessionID),
		Messages:         messages,
		Tools:            o.registry.Definitions(p),
		Temperature:      temperature,
		MaxTokens:        maxTokens,
		PresencePenalty:  presencePenalty,
		FrequencyPenalty: frequencyPenalty,
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = "auto"
	}

	sink := o.newTTSSink(ctx, p, turn)

	turn.Sink.Send(event.LLMResponseStart{AvatarID: p.ID})

	llmCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	stream, err := o.llm.StreamCompletion(llmCtx, req)
	if err != nil {
		sink.Discard()
		return o.failTurn(ctx, turn, p.ID, "upstream",
			fmt.Errorf("orchestrator: start completion: %v: %w", err, ErrUpstream))
	}

	var (
		acc        strings.Builder
		calls      toolCallAccumulator
		finish     string
		failDetail string
	)

consume:
	for {
		select {
		case chunk, ok := <-stream:
			if !ok {
				break consume
			}
			if chunk.FinishReason == "error" {
				finish = "error"
				failDetail = chunk.Text
				break consume
			}
			if chunk.Text != "" {
				acc.WriteString(chunk.Text)
				turn.Sink.Send(event.LLMResponseChunk{Content: chunk.Text, AvatarID: p.ID})
				sink.OnChunk(chunk.Text)
			}
			for _, d := range chunk.ToolCallDeltas {
				calls.add(d)
			}
			if chunk.FinishReason != "" {
				finish = chunk.FinishReason
				break consume
			}
		case <-llmCtx.Done():
			break consume
		}
	}

	switch {
	case ctx.Err() != nil:
		// Barge-in or session end. Orderly: no terminal event, no persist.
		sink.Discard()
		turn.Coordinator.SpeakingStopped()
		o.metrics.TurnError(ctx, "cancelled")
		return "", fmt.Errorf("%w: %v", ErrCancelled, context.Cause(ctx))

	case finish == "" && llmCtx.Err() != nil:
		sink.Discard()
		return o.failTurn(ctx, turn, p.ID, "timeout",
			fmt.Errorf("orchestrator: no completion within %s: %w", o.timeout, ErrUpstreamTimeout))

	case finish == "error":
		sink.Discard()
		return o.failTurn(ctx, turn, p.ID, "upstream",
			fmt.Errorf("orchestrator: stream failed: %s: %w", failDetail, ErrUpstream))
	}

	finalText := acc.String()
	var style *event.StyleGeneration

	if finish == "tool_calls" {
		if call, ok := calls.finalize(); ok {
			o.metrics.ToolDispatched(ctx, call.Name)
			outcome := o.registry.Dispatch(ctx, call, &tools.TurnContext{
				SessionID:        turn.SessionID,
				UserID:           turn.UserID,
				Persona:          p,
				LeadInText:       finalText,
				VisionImage:      turn.VisionImage,
				VisionCapturedAt: turn.VisionCapturedAt,
				Sink:             turn.Sink,
				Background:       turn.Background,
			})
			if outcome.Text != "" && outcome.Text != finalText {
				sink.OnChunk(strings.TrimPrefix(outcome.Text, finalText))
				finalText = outcome.Text
			}
			style = outcome.Style
		}
	}

	sink.OnComplete()
	turn.Coordinator.SpeakingStopped()
	turn.Sink.Send(event.LLMResponseComplete{
		FullResponse:    finalText,
		AvatarID:        p.ID,
		Complete:        true,
		StyleGeneration: style,
	})

	o.persist(ctx, turn, finalText)
	o.metrics.TurnCompleted(ctx, time.Since(start))
	return finalText, nil
}

// failTurn emits the error event, counts the failure, and returns the
// apology text alongside err.
func (o *Orchestrator) failTurn(ctx context.Context, turn *Turn, avatarID, kind string, err error) (string, error) {
	turn.Coordinator.SpeakingStopped()
	turn.Sink.Send(event.LLMResponseError{
		Error:    FallbackApology,
		AvatarID: avatarID,
	})
	o.metrics.TurnError(ctx, kind)
	o.log.Error("turn failed", "session_id", turn.SessionID, "kind", kind, "error", err)
	return FallbackApology, err
}

// newTTSSink builds the turn's synthesis sink, or a no-op when no TTS
// provider is configured.
func (o *Orchestrator) newTTSSink(ctx context.Context, p *persona.Persona, turn *Turn) ttsSink {
	if o.tts == nil {
		return nopTTSSink{}
	}
	voice := o.defaultVoice
	if p.VoiceID != "" {
		voice = types.VoiceProfile{ID: p.VoiceID, Provider: voice.Provider}
	}
	return ttsstream.New(ctx, o.tts, voice, p.ID, turn.Sink, turn.Coordinator, o.log,
		ttsstream.WithFlushHook(func() { o.metrics.TTSFlush(context.Background()) }))
}

// assembleHistory loads the cross-session history, normalizes it, appends
// the new user message, and applies the image-retention rules. History read
// failures degrade to a single-message conversation rather than failing the
// turn.
func (o *Orchestrator) assembleHistory(ctx context.Context, turn *Turn) []types.Message {
	rows, err := o.store.HistoryFor(ctx, turn.UserID, turn.PersonaID)
	if err != nil {
		o.log.Warn("history read failed, continuing without it",
			"session_id", turn.SessionID, "error", err)
	}
	history := transcript.Normalize(rows)
	history = append(history, turn.UserMessage)
	return transcript.Assemble(history)
}

// systemPrompt assembles the persona prompt, the purchase-funnel paragraph,
// and the stylist directive block.
func (o *Orchestrator) systemPrompt(p *persona.Persona, sessionID string) string {
	var b strings.Builder
	b.WriteString(p.SystemPrompt)

	if para := o.purchases.Get(sessionID).PromptParagraph(); para != "" {
		b.WriteString("\n\n")
		b.WriteString(para)
	}
	if p.IsStylist() {
		b.WriteString("\n\n")
		b.WriteString(stylistDirective(p))
	}
	return b.String()
}

// stylistDirective instructs the model when to invoke the style tool and how
// to choose between reference outfits and free generation.
func stylistDirective(p *persona.Persona) string {
	var b strings.Builder
	b.WriteString("Whenever the user expresses any intent to see a visual change to their look, call the " +
		tools.NameGenerateStyleSuggestion + " tool. This includes short confirmations like \"now?\", \"go ahead\", or \"sure\" after you have offered a suggestion.")
	if len(p.ReferenceOutfits) == 0 {
		return b.String()
	}

	b.WriteString("\n\nYou have these reference outfits available for virtual try-on:")
	for i, outfit := range p.ReferenceOutfits {
		fmt.Fprintf(&b, "\n%d. %s", i, outfit.Name)
		if outfit.Brand != "" {
			fmt.Fprintf(&b, " by %s", outfit.Brand)
		}
		if len(outfit.Tags) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(outfit.Tags, ", "))
		}
		if outfit.Description != "" {
			b.WriteString(" - ")
			b.WriteString(outfit.Description)
		}
	}
	b.WriteString("\n\nWhen the user asks for one of these outfits or something close to them, set use_reference_outfit to true and pass the matching reference_outfit_index. For any other styling request, leave use_reference_outfit false and describe the change in suggestion_prompt.")
	return b.String()
}

// persist appends the turn's messages to the transcript. Proactive turns
// record only the assistant message. Write failures are logged, never
// surfaced.
func (o *Orchestrator) persist(ctx context.Context, turn *Turn, assistantText string) {
	var messages []types.Message
	if !turn.Proactive {
		messages = append(messages, turn.UserMessage)
	}
	messages = append(messages, types.Text("assistant", assistantText))

	if err := o.store.Append(ctx, turn.SessionID, messages); err != nil {
		o.log.Warn("transcript append failed", "session_id", turn.SessionID, "error", err)
	}
}
