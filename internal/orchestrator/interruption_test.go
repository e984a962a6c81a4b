package orchestrator_test

import (
	"context"
	"errors"
	"testing"

	"github.com/solyn-ai/solyn/pkg/provider/llm"
)

// fallbackSet mirrors the canned interruption lines.
var fallbackSet = map[string]bool{
	"Oh, sorry!": true,
	"Oops!":      true,
	"My bad!":    true,
	"Sorry!":     true,
	"Oh!":        true,
}

func TestInterruptionReply_UsesCompletion(t *testing.T) {
	t.Parallel()
	f := newFixture(t, basicPersona(), nil)
	f.llm.CompleteResponse = &llm.CompletionResponse{Content: "Whoops, go ahead!"}

	got := f.orch.InterruptionReply(context.Background(), "p1", "during_speech")
	if got != "Whoops, go ahead!" {
		t.Errorf("reply = %q", got)
	}

	if len(f.llm.CompleteCalls) != 1 {
		t.Fatalf("got %d complete calls", len(f.llm.CompleteCalls))
	}
	req := f.llm.CompleteCalls[0].Req
	if req.SystemPrompt != "You are Nova." {
		t.Errorf("system prompt = %q", req.SystemPrompt)
	}
	if req.MaxTokens != 50 {
		t.Errorf("max tokens = %d", req.MaxTokens)
	}
}

func TestInterruptionReply_FallsBackOnError(t *testing.T) {
	t.Parallel()
	f := newFixture(t, basicPersona(), nil)
	f.llm.CompleteErr = errors.New("boom")

	got := f.orch.InterruptionReply(context.Background(), "p1", "during_speech")
	if !fallbackSet[got] {
		t.Errorf("reply %q is not one of the canned fallbacks", got)
	}
}

func TestInterruptionReply_FallsBackOnUnknownPersona(t *testing.T) {
	t.Parallel()
	f := newFixture(t, basicPersona(), nil)

	got := f.orch.InterruptionReply(context.Background(), "missing", "during_speech")
	if !fallbackSet[got] {
		t.Errorf("reply %q is not one of the canned fallbacks", got)
	}
	if len(f.llm.CompleteCalls) != 0 {
		t.Error("unknown persona should not reach the model")
	}
}
