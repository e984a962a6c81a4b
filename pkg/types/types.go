// Package types defines the shared types used across all Solyn packages.
//
// These types form the lingua franca between providers, the orchestrator, the
// session layer, and the stores. Each package defines its own domain types,
// but cross-cutting data structures live here to avoid circular imports.
package types

import "time"

// PartKind discriminates the variants of a message content [Part].
type PartKind string

const (
	// PartText is a plain text fragment.
	PartText PartKind = "text"

	// PartImage is an image reference (URL or data URL).
	PartImage PartKind = "image"
)

// Part is one element of a multi-part message content.
type Part struct {
	// Kind selects the variant: [PartText] or [PartImage].
	Kind PartKind `json:"kind"`

	// Text is the text content. Only set when Kind is [PartText].
	Text string `json:"text,omitempty"`

	// URL is the image location. Only set when Kind is [PartImage].
	// May be an https:// URL or a base64 data: URL.
	URL string `json:"url,omitempty"`
}

// Message represents a single message in a conversation history.
//
// Content is a tagged variant: when Parts is nil the message is plain text
// held in Content; when Parts is non-nil the message is an ordered list of
// text and image parts and Content is ignored.
type Message struct {
	// Role is one of "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the plain text content. Ignored when Parts is set.
	Content string `json:"content,omitempty"`

	// Parts is the ordered multi-part content. Nil means plain text.
	Parts []Part `json:"parts,omitempty"`
}

// IsText reports whether the message carries plain text content.
func (m Message) IsText() bool { return m.Parts == nil }

// HasImage reports whether any part of the message is an image.
func (m Message) HasImage() bool {
	for _, p := range m.Parts {
		if p.Kind == PartImage {
			return true
		}
	}
	return false
}

// TextContent returns the textual content of the message: Content for plain
// text messages, or the concatenation of all text parts otherwise.
func (m Message) TextContent() string {
	if m.Parts == nil {
		return m.Content
	}
	var out string
	for _, p := range m.Parts {
		if p.Kind == PartText {
			if out != "" {
				out += " "
			}
			out += p.Text
		}
	}
	return out
}

// Text returns a plain text message with the given role.
func Text(role, content string) Message {
	return Message{Role: role, Content: content}
}

// ToolCall represents a tool/function invocation requested by the LLM.
type ToolCall struct {
	// ID is the unique identifier for this tool call (provider-assigned).
	ID string

	// Name is the tool/function name.
	Name string

	// Arguments is the JSON-encoded arguments string.
	Arguments string
}

// ToolDefinition describes a tool that can be offered to an LLM.
type ToolDefinition struct {
	// Name is the tool's unique identifier.
	Name string

	// Description explains what the tool does (included in LLM prompts).
	Description string

	// Parameters is the JSON Schema describing the tool's input parameters.
	Parameters map[string]any
}

// Transcript represents a speech-to-text result from an STT provider.
// Both partial (delta) and final transcripts use this type.
type Transcript struct {
	// Text is the transcribed speech content. For partial results this is the
	// incremental delta, not the accumulated utterance.
	Text string

	// IsFinal indicates whether this is a final (authoritative) transcript.
	IsFinal bool

	// Timestamp marks when the event was received, relative to session start.
	Timestamp time.Duration
}

// VoiceProfile describes a TTS voice configuration for a persona.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Metadata holds provider-specific voice attributes (gender, accent, etc.).
	Metadata map[string]string
}

// AlignmentFrame is per-character timing data emitted by the TTS provider and
// forwarded to the client for lip-sync.
type AlignmentFrame struct {
	// Characters are the synthesised characters, one entry per character.
	Characters []string `json:"characters"`

	// StartSeconds are the playback start offsets, parallel to Characters.
	StartSeconds []float64 `json:"start_seconds"`

	// EndSeconds are the playback end offsets, parallel to Characters.
	EndSeconds []float64 `json:"end_seconds"`
}
