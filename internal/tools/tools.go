// Package tools is the declarative catalog of functions the LLM may call and
// the dispatch logic behind them.
//
// The orchestrator asks the registry for the definitions a persona is allowed
// to use, streams the completion, and hands any finished tool call back to
// Dispatch. Handlers return an [Outcome] that overrides the turn's final
// text and optionally annotates the terminal event.
package tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/solyn-ai/solyn/internal/event"
	"github.com/solyn-ai/solyn/internal/persona"
	"github.com/solyn-ai/solyn/internal/products"
	"github.com/solyn-ai/solyn/internal/purchase"
	"github.com/solyn-ai/solyn/internal/stylegen"
	"github.com/solyn-ai/solyn/internal/transcript"
	"github.com/solyn-ai/solyn/pkg/provider/imagegen"
	"github.com/solyn-ai/solyn/pkg/provider/llm"
	"github.com/solyn-ai/solyn/pkg/types"
)

// Tool names.
const (
	NameGenerateStyleSuggestion = "generate_style_suggestion"
	NameGetTrendingProducts     = "get_trending_products"
)

// TurnContext carries the per-turn state a handler may need.
type TurnContext struct {
	// SessionID identifies the session the call belongs to.
	SessionID string

	// UserID is the session's user, possibly empty.
	UserID string

	// Persona is the active persona.
	Persona *persona.Persona

	// LeadInText is the model's short textual lead-in accumulated before the
	// tool call finished.
	LeadInText string

	// VisionImage is the session's last captured frame, nil when absent.
	VisionImage []byte

	// VisionCapturedAt is when VisionImage was captured.
	VisionCapturedAt time.Time

	// Sink delivers out-of-band events (style progress, product lists).
	Sink event.Sink

	// Background schedules session-scoped work that outlives the turn, such
	// as the actual image generation. The callback receives a context tied
	// to the session, not the turn.
	Background func(fn func(ctx context.Context))
}

// Outcome is a handler's effect on the turn.
type Outcome struct {
	// Text replaces the turn's final assistant text.
	Text string

	// Style, when set, annotates the terminal llm_response_complete event.
	Style *event.StyleGeneration
}

// Registry holds the tool catalog and its handler dependencies.
// Safe for concurrent use across sessions.
type Registry struct {
	styler    *stylegen.Client
	generator imagegen.Provider
	store     transcript.Store
	products  products.Source
	purchases *purchase.Tracker
	llm       llm.Provider
	log       *slog.Logger
	now       func() time.Time
}

// RegistryOption is a functional option for the Registry.
type RegistryOption func(*Registry)

// withClock overrides the timestamp source. Used in tests.
func withClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates the tool registry.
func NewRegistry(styler *stylegen.Client, generator imagegen.Provider, store transcript.Store, src products.Source, purchases *purchase.Tracker, provider llm.Provider, log *slog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		styler:    styler,
		generator: generator,
		store:     store,
		products:  src,
		purchases: purchases,
		llm:       provider,
		log:       log,
		now:       time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Definitions returns the tool definitions the persona may use. Stylists get
// the style-suggestion tool; product-enabled personas get trending products.
func (r *Registry) Definitions(p *persona.Persona) []types.ToolDefinition {
	var defs []types.ToolDefinition
	if p.IsStylist() {
		defs = append(defs, types.ToolDefinition{
			Name:        NameGenerateStyleSuggestion,
			Description: "Generate a styled image of the user based on their current outfit. Call this whenever the user expresses any intent to see a visual change, including short confirmations like \"now?\" or \"go ahead\".",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"suggestion_prompt": map[string]any{
						"type":        "string",
						"description": "Description of the styling change to apply.",
					},
					"use_reference_outfit": map[string]any{
						"type":        "boolean",
						"description": "Whether to try on one of the persona's reference outfits instead of free generation.",
					},
					"reference_outfit_index": map[string]any{
						"type":        "integer",
						"description": "Index into the persona's reference outfit list, when a specific outfit was requested.",
					},
				},
				"required": []string{"suggestion_prompt"},
			},
		})
	}
	if p.ProductsEnabled && r.products != nil {
		defs = append(defs, types.ToolDefinition{
			Name:        NameGetTrendingProducts,
			Description: "Fetch the current trending products to show the user.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		})
	}
	return defs
}

// Dispatch routes a finished tool call to its handler. Unknown tool names
// fall through: the turn completes as if no tool call occurred.
func (r *Registry) Dispatch(ctx context.Context, call types.ToolCall, tc *TurnContext) Outcome {
	switch call.Name {
	case NameGenerateStyleSuggestion:
		return r.dispatchStyle(ctx, call, tc)
	case NameGetTrendingProducts:
		return r.dispatchProducts(ctx, tc)
	default:
		r.log.Warn("ignoring unknown tool call", "tool", call.Name, "session_id", tc.SessionID)
		return Outcome{Text: tc.LeadInText}
	}
}
