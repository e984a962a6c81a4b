// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote model API and exposes a uniform interface for
// the Solyn orchestrator to perform streaming completions without coupling to
// any specific SDK.
//
// Implementors must be safe for concurrent use. Channels returned by
// StreamCompletion must be closed by the implementation when the stream ends or
// when the supplied context is cancelled.
package llm

import (
	"context"

	"github.com/solyn-ai/solyn/pkg/types"
)

// CompletionRequest carries everything the LLM needs to produce a response.
// Callers should treat a zero-value request as invalid; at minimum Messages
// must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is a high-priority instruction injected before the
	// conversation history.
	SystemPrompt string

	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response. Messages may
	// carry image parts; providers without vision support should return an
	// error when they encounter one.
	Messages []types.Message

	// Tools is the set of function/tool definitions offered to the model.
	Tools []types.ToolDefinition

	// ToolChoice controls tool selection ("auto", "none", or empty for the
	// provider default). Ignored when Tools is empty.
	ToolChoice string

	// Temperature controls output randomness in the range [0.0, 2.0].
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default.
	MaxTokens int

	// PresencePenalty penalises tokens already present in the text so far.
	PresencePenalty float64

	// FrequencyPenalty penalises tokens proportionally to their frequency.
	FrequencyPenalty float64
}

// ToolCallDelta is a raw tool-call fragment from a streaming completion.
// The caller accumulates fragments by Index: the first non-empty Name wins,
// Arguments fragments are concatenated in arrival order.
type ToolCallDelta struct {
	// Index identifies which tool call this fragment belongs to.
	Index int

	// ID is the provider-assigned call identifier. Usually only present on
	// the first fragment.
	ID string

	// Name is the function name fragment. Usually only present on the first
	// fragment.
	Name string

	// Arguments is an incremental JSON argument fragment.
	Arguments string
}

// Chunk is a single fragment emitted by a streaming completion. A chunk may
// carry text, tool-call fragments, a finish signal, or any combination.
type Chunk struct {
	// Text is the incremental text content of this chunk.
	Text string

	// ToolCallDeltas contains raw tool-call fragments carried by this chunk.
	ToolCallDeltas []ToolCallDelta

	// FinishReason is set on the final chunk and indicates why generation
	// stopped. Common values are "stop", "length", "tool_calls", and "error"
	// (mid-stream failure; Text then carries the error message).
	FinishReason string
}

// CompletionResponse is returned by the non-streaming Complete method.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// ToolCalls lists all tool invocations requested by the model.
	ToolCalls []types.ToolCall
}

// Provider is the abstraction over any LLM backend.
//
// Implementations must be safe for concurrent use from multiple goroutines and
// must propagate context cancellation promptly: when ctx is cancelled the
// method must return (or close its channel) as quickly as possible.
type Provider interface {
	// StreamCompletion sends req to the model and returns a read-only channel
	// that emits [Chunk] values as they arrive. The channel is closed by the
	// implementation when generation finishes or when ctx is cancelled.
	//
	// Callers must drain the channel to avoid goroutine leaks. Errors that
	// occur after the channel is opened are surfaced as a Chunk with
	// FinishReason "error"; the initial error return is non-nil only for
	// failures that prevent the stream from starting.
	StreamCompletion(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)

	// Complete sends req to the model and waits for the full response. It is
	// used for short bounded completions (interruption replies, celebration
	// lines) where streaming is unnecessary.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
