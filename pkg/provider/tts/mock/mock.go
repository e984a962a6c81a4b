// Package mock provides a test double for the tts.Provider interface.
//
// Configure Frames with the output the consumer should receive, then inspect
// Calls to verify which text segments were synthesised and with which voice.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/solyn-ai/solyn/pkg/provider/tts"
	"github.com/solyn-ai/solyn/pkg/types"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Text is the segment passed to Synthesize.
	Text string
	// Voice is the voice profile passed to Synthesize.
	Voice types.VoiceProfile
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Frames is the sequence emitted on the channel returned by every
	// Synthesize call. All frames are sent before the channel is closed.
	Frames []tts.Frame

	// FrameDelay, when non-zero, is slept between emitted frames. Useful for
	// exercising barge-in while audio is still streaming.
	FrameDelay time.Duration

	// SynthesizeErr, if non-nil, is returned from Synthesize instead of a
	// channel.
	SynthesizeErr error

	// Calls records every invocation of Synthesize in order.
	Calls []SynthesizeCall

	// Voices is returned by ListVoices.
	Voices []types.VoiceProfile

	// ListVoicesErr, if non-nil, is returned from ListVoices.
	ListVoicesErr error

	// ListVoicesCalls counts invocations of ListVoices.
	ListVoicesCalls int
}

// Compile-time interface checks.
var (
	_ tts.Provider    = (*Provider)(nil)
	_ tts.VoiceLister = (*Provider)(nil)
)

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (<-chan tts.Frame, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, SynthesizeCall{Text: text, Voice: voice})
	frames := make([]tts.Frame, len(p.Frames))
	copy(frames, p.Frames)
	delay := p.FrameDelay
	err := p.SynthesizeErr
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}

	ch := make(chan tts.Frame, len(frames))
	go func() {
		defer close(ch)
		for _, f := range frames {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
			}
			select {
			case ch <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// ListVoices implements tts.VoiceLister.
func (p *Provider) ListVoices(ctx context.Context) ([]types.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ListVoicesCalls++
	if p.ListVoicesErr != nil {
		return nil, p.ListVoicesErr
	}
	out := make([]types.VoiceProfile, len(p.Voices))
	copy(out, p.Voices)
	return out, nil
}

// CallCount returns the number of Synthesize calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Texts returns the text of every Synthesize call in order. Thread-safe.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.Calls))
	for i, c := range p.Calls {
		out[i] = c.Text
	}
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}
