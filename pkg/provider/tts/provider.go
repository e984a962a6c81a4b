// Package tts defines the Provider interface for streaming text-to-speech
// backends.
//
// A synthesis call converts one text segment into a stream of audio frames.
// Frames carry base64-decodable audio plus optional per-character alignment
// timing so clients can drive lip-sync animation.
package tts

import (
	"context"

	"github.com/solyn-ai/solyn/pkg/types"
)

// Frame is one unit of synthesised output. Audio is always set; Alignment is
// set only when the provider returned timing data for the frame.
type Frame struct {
	// Audio is the encoded audio payload (format is provider-configured).
	Audio []byte

	// Alignment carries per-character timing for this frame, or nil.
	Alignment *types.AlignmentFrame
}

// Provider is the abstraction over any streaming TTS backend.
//
// Implementations must be safe for concurrent use: multiple Synthesize calls
// may be in flight at once (different sessions), each with its own stream.
type Provider interface {
	// Synthesize converts text into speech with the given voice and returns a
	// read-only channel of audio frames. The channel is closed by the
	// implementation when synthesis completes, fails, or ctx is cancelled.
	//
	// Callers must drain the channel. Mid-stream failures end the stream
	// early; the initial error return covers only failures to start.
	Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (<-chan Frame, error)
}

// VoiceLister is implemented by providers that can enumerate the voices
// available to the configured account. Used at startup to verify that the
// configured default voice actually exists.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]types.VoiceProfile, error)
}
