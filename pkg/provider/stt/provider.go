// Package stt defines the Provider interface for streaming speech-to-text
// backends.
//
// A provider opens duplex transcription sessions: the caller pushes PCM16
// audio chunks in and receives partial and final transcripts out. Turn
// segmentation is performed server-side by the provider's voice-activity
// detection, configured per session via [StreamConfig].
//
// Implementors must be safe for concurrent use. Channels exposed by a
// [SessionHandle] are closed by the implementation when the session ends.
package stt

import (
	"context"

	"github.com/solyn-ai/solyn/pkg/types"
)

// VADConfig tunes the provider's server-side voice-activity turn detection.
type VADConfig struct {
	// Threshold is the speech probability required to open a turn (0.0–1.0).
	Threshold float64

	// PrefixPaddingMs is how much audio before the detected speech start is
	// included in the turn.
	PrefixPaddingMs int

	// SilenceDurationMs is how long the speaker must stay silent before the
	// provider finalises the turn.
	SilenceDurationMs int
}

// StreamConfig describes a transcription session.
type StreamConfig struct {
	// SampleRate of the PCM16 input audio in Hz.
	SampleRate int

	// Language is the BCP-47 language code for recognition (e.g., "en").
	Language string

	// VAD configures server-side turn detection.
	VAD VADConfig
}

// SessionHandle is a live duplex transcription session.
//
// Partials and Finals are closed by the implementation when the session ends.
// Close is idempotent.
type SessionHandle interface {
	// SendAudio queues a PCM16 audio chunk for delivery to the provider.
	// Returns an error when the session is closed.
	SendAudio(chunk []byte) error

	// Partials returns the channel of interim transcript deltas.
	Partials() <-chan types.Transcript

	// Finals returns the channel of completed utterance transcripts.
	Finals() <-chan types.Transcript

	// Close terminates the session cleanly. If the underlying connection is
	// still being established, the close is deferred until it opens so the
	// provider-defined close token can be delivered. Safe to call multiple
	// times.
	Close() error
}

// Provider is the abstraction over any streaming STT backend.
type Provider interface {
	// StartStream opens a streaming transcription session configured by cfg.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
