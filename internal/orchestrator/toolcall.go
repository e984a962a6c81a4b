package orchestrator

import (
	"encoding/json"
	"strings"

	"github.com/solyn-ai/solyn/pkg/provider/llm"
	"github.com/solyn-ai/solyn/pkg/types"
)

// toolCallAccumulator assembles a tool call from streamed fragments. The
// first fragment's index is tracked; fragments for other indexes are ignored
// because the pipeline dispatches a single call per turn.
type toolCallAccumulator struct {
	active bool
	index  int
	id     string
	name   string
	args   strings.Builder
}

// add folds one fragment into the accumulator. The first non-empty ID and
// name win; argument fragments concatenate in arrival order.
func (a *toolCallAccumulator) add(d llm.ToolCallDelta) {
	if !a.active {
		a.active = true
		a.index = d.Index
	}
	if d.Index != a.index {
		return
	}
	if a.id == "" {
		a.id = d.ID
	}
	if a.name == "" {
		a.name = d.Name
	}
	a.args.WriteString(d.Arguments)
}

// finalize returns the assembled call, salvaging malformed argument JSON.
// ok is false when no usable call was accumulated.
func (a *toolCallAccumulator) finalize() (types.ToolCall, bool) {
	if !a.active || a.name == "" {
		return types.ToolCall{}, false
	}
	args, ok := salvageArguments(a.args.String())
	if !ok {
		return types.ToolCall{}, false
	}
	return types.ToolCall{ID: a.id, Name: a.name, Arguments: args}, true
}

// salvageArguments repairs the one malformation models actually produce:
// two JSON objects concatenated back to back. The first balanced object is
// kept and the rest discarded. Anything else malformed means no tool call.
func salvageArguments(args string) (string, bool) {
	if args == "" {
		return "{}", true
	}
	if json.Valid([]byte(args)) {
		return args, true
	}
	if idx := strings.Index(args, "}{"); idx >= 0 {
		candidate := args[:idx+1]
		if json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}
