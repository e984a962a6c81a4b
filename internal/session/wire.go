package session

import (
	"encoding/json"
	"fmt"
)

// Inbound message types. Audio has two spellings on the wire: older clients
// send "audio", current ones "audio-frame". Both are accepted.
const (
	inboundAudio          = "audio"
	inboundAudioFrame     = "audio-frame"
	inboundVision         = "vision-image"
	inboundText           = "text-message"
	inboundPurchaseStatus = "purchase-status"
	inboundEnd            = "end"
)

// inboundMessage is a decoded client message. Binary socket frames bypass
// this shape entirely and are treated as raw audio.
type inboundMessage struct {
	// Type discriminates the message.
	Type string `json:"type"`

	// Data carries base64 payload bytes for audio and vision-image messages.
	Data string `json:"data,omitempty"`

	// Text is the message body for text-message.
	Text string `json:"text,omitempty"`

	// Status is the new funnel state for purchase-status.
	Status string `json:"status,omitempty"`

	// Payload is the purchase-status data bag.
	Payload map[string]string `json:"payload,omitempty"`
}

// isAudio reports whether the message carries base64 audio under either
// accepted type spelling.
func (m inboundMessage) isAudio() bool {
	return m.Type == inboundAudio || m.Type == inboundAudioFrame
}

// decodeInbound parses one text frame from the client.
func decodeInbound(data []byte) (inboundMessage, error) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return inboundMessage{}, fmt.Errorf("session: decode client message: %w", err)
	}
	if msg.Type == "" {
		return inboundMessage{}, fmt.Errorf("session: client message missing type")
	}
	return msg, nil
}
