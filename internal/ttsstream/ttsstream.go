// Package ttsstream buffers assistant text and drives the streaming TTS
// provider, relaying audio and lip-sync alignment frames to the client.
//
// One Streamer serves one response turn. The orchestrator feeds it text with
// OnChunk as LLM deltas arrive; the streamer cuts the text at sentence or
// length boundaries and synthesises each segment in order. Flush errors are
// logged and swallowed, never failing the turn.
package ttsstream

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"sync"

	"github.com/solyn-ai/solyn/internal/event"
	"github.com/solyn-ai/solyn/internal/interrupt"
	"github.com/solyn-ai/solyn/pkg/provider/tts"
	"github.com/solyn-ai/solyn/pkg/types"
)

// maxBufferedChars is the flush length cap: any buffer at or past this length
// flushes even mid-sentence.
const maxBufferedChars = 120

// Streamer is a single-turn TTS sink.
//
// OnChunk and OnComplete must be called from one goroutine (the stream
// consumer); Discard may be called from any goroutine.
type Streamer struct {
	provider tts.Provider
	voice    types.VoiceProfile
	avatarID string
	sink     event.Sink
	coord    *interrupt.Coordinator
	log      *slog.Logger
	ctx      context.Context

	buf       strings.Builder
	flushCh   chan string
	wg        sync.WaitGroup
	closeOnce sync.Once

	firstChunk sync.Once

	mu        sync.Mutex
	discarded bool

	onFlush func()
}

// Option is a functional option for the Streamer.
type Option func(*Streamer)

// WithFlushHook registers a callback invoked once per synthesised segment.
func WithFlushHook(fn func()) Option {
	return func(s *Streamer) { s.onFlush = fn }
}

// New creates a Streamer for one turn. ctx is the turn context; cancelling it
// stops in-flight synthesis. The worker goroutine starts immediately and
// exits after OnComplete or Discard.
func New(ctx context.Context, provider tts.Provider, voice types.VoiceProfile, avatarID string, sink event.Sink, coord *interrupt.Coordinator, log *slog.Logger, opts ...Option) *Streamer {
	s := &Streamer{
		provider: provider,
		voice:    voice,
		avatarID: avatarID,
		sink:     sink,
		coord:    coord,
		log:      log,
		ctx:      ctx,
		flushCh:  make(chan string, 8),
	}
	for _, o := range opts {
		o(s)
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

// OnChunk appends text to the buffer and flushes when the buffer ends at a
// sentence terminator or reaches the length cap. The first chunk marks the
// avatar as speaking.
func (s *Streamer) OnChunk(text string) {
	if text == "" {
		return
	}
	s.firstChunk.Do(func() {
		if s.coord != nil {
			s.coord.SpeakingStarted()
		}
	})

	s.buf.WriteString(text)
	if atFlushBoundary(s.buf.String()) {
		s.flush()
	}
}

// OnComplete flushes any remainder and waits for all queued synthesis to
// finish.
func (s *Streamer) OnComplete() {
	s.flush()
	s.closeOnce.Do(func() { close(s.flushCh) })
	s.wg.Wait()
}

// Discard drops the buffer and stops accepting new synthesis. Frames already
// accepted by the provider are suppressed best-effort via the turn context.
func (s *Streamer) Discard() {
	s.mu.Lock()
	s.discarded = true
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.flushCh) })
}

// flush hands the current buffer to the worker and resets it.
func (s *Streamer) flush() {
	segment := s.buf.String()
	s.buf.Reset()
	if strings.TrimSpace(segment) == "" {
		return
	}

	s.mu.Lock()
	discarded := s.discarded
	s.mu.Unlock()
	if discarded {
		return
	}

	select {
	case s.flushCh <- segment:
	case <-s.ctx.Done():
	}
}

// worker synthesises queued segments in order, preserving playback order
// across flushes.
func (s *Streamer) worker() {
	defer s.wg.Done()
	for segment := range s.flushCh {
		s.mu.Lock()
		discarded := s.discarded
		s.mu.Unlock()
		if discarded || s.ctx.Err() != nil {
			continue
		}
		s.synthesize(segment)
	}
}

// synthesize runs one segment through the provider and forwards its frames.
// Errors are logged and swallowed.
func (s *Streamer) synthesize(segment string) {
	text := preprocess(segment)
	if text == "" {
		return
	}
	if s.onFlush != nil {
		s.onFlush()
	}

	frames, err := s.provider.Synthesize(s.ctx, text, s.voice)
	if err != nil {
		s.log.Warn("tts flush failed", "avatar_id", s.avatarID, "error", err)
		return
	}

	for frame := range frames {
		s.mu.Lock()
		discarded := s.discarded
		s.mu.Unlock()
		if discarded {
			continue // drain without forwarding
		}

		if frame.Alignment != nil {
			s.sink.Send(event.TTSStreamAlignment{
				Characters:   frame.Alignment.Characters,
				StartSeconds: frame.Alignment.StartSeconds,
				EndSeconds:   frame.Alignment.EndSeconds,
				AvatarID:     s.avatarID,
			})
		}
		if len(frame.Audio) > 0 {
			s.sink.Send(event.TTSStream{
				Audio:    base64.StdEncoding.EncodeToString(frame.Audio),
				AvatarID: s.avatarID,
			})
		}
	}
}
