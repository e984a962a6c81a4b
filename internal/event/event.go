// Package event defines the outbound client event protocol.
//
// Every message pushed to a client is an [Envelope]. On the wire an envelope
// is a flat JSON object with an "event" discriminator followed by the
// payload fields, e.g.
//
//	{"event":"llm_response_chunk","content":"Hi","avatarId":"a1","complete":false}
//
// The Sink interface decouples event producers (orchestrator, transcriber,
// TTS streamer) from the session channel that owns the socket.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event type discriminators.
const (
	TypeTranscriptionPartial = "transcription_partial"
	TypeTranscriptionFinal   = "transcription_final"
	TypeUserSpoke            = "user_spoke"
	TypeLLMResponseStart     = "llm_response_start"
	TypeLLMResponseChunk     = "llm_response_chunk"
	TypeLLMResponseComplete  = "llm_response_complete"
	TypeLLMResponseError     = "llm_response_error"
	TypeTTSStream            = "tts_stream"
	TypeTTSStreamAlignment   = "tts_stream_alignment"
	TypeInterruptionReply    = "interruption_reply"
	TypeProductsDisplay      = "products-display"
	TypeStyleSuggestionError = "style_suggestion_error"
	TypeLLMContextUpdate     = "llm-context-update"
)

// Envelope is a single outbound client event.
//
// Droppable marks events the session channel may discard when the client is
// slow; audio and all turn-terminal events must never be dropped, alignment
// frames may.
type Envelope interface {
	// EventType returns the wire discriminator for this event.
	EventType() string

	// Droppable reports whether the event may be discarded under backpressure.
	Droppable() bool
}

// Sink accepts outbound events for delivery to the client. Implementations
// must be safe for concurrent use and must not block producers indefinitely.
type Sink interface {
	Send(ev Envelope)
}

// Marshal encodes an envelope as a flat JSON object with a leading "event"
// discriminator.
func Marshal(ev Envelope) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("event: marshal %s: %w", ev.EventType(), err)
	}
	head := []byte(`{"event":"` + ev.EventType() + `"`)
	if len(body) > 2 {
		head = append(head, ',')
		head = append(head, body[1:]...)
	} else {
		head = append(head, '}')
	}
	return head, nil
}

// ── Transcription events ───────────────────────────────────────────────────────

// TranscriptionPartial is an interim transcript delta.
type TranscriptionPartial struct {
	Text string `json:"text"`
}

func (TranscriptionPartial) EventType() string { return TypeTranscriptionPartial }
func (TranscriptionPartial) Droppable() bool   { return false }

// TranscriptionFinal is a completed utterance transcript.
type TranscriptionFinal struct {
	Text string `json:"text"`
}

func (TranscriptionFinal) EventType() string { return TypeTranscriptionFinal }
func (TranscriptionFinal) Droppable() bool   { return false }

// UserSpoke signals a barge-in: the user spoke while the avatar was speaking.
type UserSpoke struct {
	PartialTranscript string `json:"partialTranscript"`
	InterruptionType  string `json:"interruptionType"`
}

func (UserSpoke) EventType() string { return TypeUserSpoke }
func (UserSpoke) Droppable() bool   { return false }

// ── LLM response events ────────────────────────────────────────────────────────

// LLMResponseStart opens a response turn.
type LLMResponseStart struct {
	AvatarID string `json:"avatarId"`
}

func (LLMResponseStart) EventType() string { return TypeLLMResponseStart }
func (LLMResponseStart) Droppable() bool   { return false }

// LLMResponseChunk is an incremental piece of the assistant's reply.
type LLMResponseChunk struct {
	Content  string `json:"content"`
	AvatarID string `json:"avatarId"`
	Complete bool   `json:"complete"`
}

func (LLMResponseChunk) EventType() string { return TypeLLMResponseChunk }
func (LLMResponseChunk) Droppable() bool   { return false }

// StyleGeneration annotates a response-complete event with style-suggestion
// progress. Type is "feedback" while generation runs in the background and
// "completion" when the generated image is ready.
type StyleGeneration struct {
	Type                string `json:"type"`
	GeneratingMessageID string `json:"generatingMessageId"`
	Prompt              string `json:"prompt,omitempty"`
	ImageURL            string `json:"imageUrl,omitempty"`
	Description         string `json:"description,omitempty"`
}

// LLMResponseComplete terminates a response turn.
type LLMResponseComplete struct {
	FullResponse    string           `json:"fullResponse"`
	AvatarID        string           `json:"avatarId"`
	Complete        bool             `json:"complete"`
	StyleGeneration *StyleGeneration `json:"styleGeneration,omitempty"`
}

func (LLMResponseComplete) EventType() string { return TypeLLMResponseComplete }
func (LLMResponseComplete) Droppable() bool   { return false }

// LLMResponseError terminates a response turn with an error.
type LLMResponseError struct {
	Error    string `json:"error"`
	AvatarID string `json:"avatarId"`
}

func (LLMResponseError) EventType() string { return TypeLLMResponseError }
func (LLMResponseError) Droppable() bool   { return false }

// ── TTS events ─────────────────────────────────────────────────────────────────

// TTSStream carries one chunk of synthesised audio.
type TTSStream struct {
	Audio    string `json:"audio"` // base64-encoded
	AvatarID string `json:"avatarId"`
}

func (TTSStream) EventType() string { return TypeTTSStream }
func (TTSStream) Droppable() bool   { return false }

// TTSStreamAlignment carries per-character lip-sync timing for the audio that
// follows it. Alignment frames are cosmetic and may be dropped under
// backpressure.
type TTSStreamAlignment struct {
	Characters   []string  `json:"characters"`
	StartSeconds []float64 `json:"start_seconds"`
	EndSeconds   []float64 `json:"end_seconds"`
	AvatarID     string    `json:"avatarId"`
}

func (TTSStreamAlignment) EventType() string { return TypeTTSStreamAlignment }
func (TTSStreamAlignment) Droppable() bool   { return true }

// InterruptionReply carries the short line the avatar says after being cut
// off. The client renders it with local TTS.
type InterruptionReply struct {
	Text     string `json:"text"`
	AvatarID string `json:"avatarId"`
}

func (InterruptionReply) EventType() string { return TypeInterruptionReply }
func (InterruptionReply) Droppable() bool   { return false }

// ── Commerce and context events ────────────────────────────────────────────────

// ProductsDisplay pushes a trending-product list to the client.
type ProductsDisplay struct {
	Products  any       `json:"products"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`
}

func (ProductsDisplay) EventType() string { return TypeProductsDisplay }
func (ProductsDisplay) Droppable() bool   { return false }

// StyleSuggestionError reports a failed style generation.
type StyleSuggestionError struct {
	AvatarID string `json:"avatarId"`
	Error    string `json:"error"`
}

func (StyleSuggestionError) EventType() string { return TypeStyleSuggestionError }
func (StyleSuggestionError) Droppable() bool   { return false }

// LLMContextUpdate acknowledges a purchase-flow status change back to the
// client. Status is the purchase-flow state that was applied.
type LLMContextUpdate struct {
	Status    string `json:"type"`
	Guidance  string `json:"guidance"`
	SessionID string `json:"sessionId"`
	Data      any    `json:"data,omitempty"`
}

func (LLMContextUpdate) EventType() string { return TypeLLMContextUpdate }
func (LLMContextUpdate) Droppable() bool   { return false }
