package orchestrator

import (
	"context"
	"math/rand"
	"time"

	"github.com/solyn-ai/solyn/pkg/provider/llm"
	"github.com/solyn-ai/solyn/pkg/types"
)

// interruptionFallbacks are used when the short-reply completion fails.
var interruptionFallbacks = []string{
	"Oh, sorry!",
	"Oops!",
	"My bad!",
	"Sorry!",
	"Oh!",
}

const (
	interruptionMaxTokens = 50
	interruptionTimeout   = 5 * time.Second
)

// InterruptionReply produces a few words the avatar says when the user cuts
// it off. interruptionType is one of "during_speech", "during_thinking",
// "false_start", or "clarification". Failures fall back to a fixed line so
// the client always has something to play.
func (o *Orchestrator) InterruptionReply(ctx context.Context, personaID, interruptionType string) string {
	fallback := interruptionFallbacks[rand.Intn(len(interruptionFallbacks))]

	p, err := o.personas.Lookup(ctx, personaID)
	if err != nil {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, interruptionTimeout)
	defer cancel()

	resp, err := o.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: p.SystemPrompt,
		Messages: []types.Message{
			types.Text("user", "The user just interrupted you ("+interruptionType+"). React in your own voice with at most a few words. No explanations."),
		},
		MaxTokens:   interruptionMaxTokens,
		Temperature: 0.9,
	})
	if err != nil || resp == nil || resp.Content == "" {
		return fallback
	}
	return resp.Content
}
