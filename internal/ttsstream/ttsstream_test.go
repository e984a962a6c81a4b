package ttsstream_test

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/solyn-ai/solyn/internal/event"
	"github.com/solyn-ai/solyn/internal/interrupt"
	"github.com/solyn-ai/solyn/internal/ttsstream"
	"github.com/solyn-ai/solyn/pkg/provider/tts"
	"github.com/solyn-ai/solyn/pkg/provider/tts/mock"
	"github.com/solyn-ai/solyn/pkg/types"
)

// captureSink records every event it receives.
type captureSink struct {
	mu     sync.Mutex
	events []event.Envelope
}

func (s *captureSink) Send(ev event.Envelope) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *captureSink) all() []event.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Envelope, len(s.events))
	copy(out, s.events)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStreamer(provider tts.Provider, sink event.Sink, coord *interrupt.Coordinator) *ttsstream.Streamer {
	return ttsstream.New(context.Background(), provider, types.VoiceProfile{ID: "v1"}, "avatar-1", sink, coord, testLogger())
}

func TestStreamer_FlushesAtSentenceBoundary(t *testing.T) {
	t.Parallel()
	provider := &mock.Provider{}
	sink := &captureSink{}
	s := newStreamer(provider, sink, nil)

	s.OnChunk("Hello ")
	s.OnChunk("there")
	s.OnChunk(".")
	s.OnComplete()

	texts := provider.Texts()
	if len(texts) != 1 {
		t.Fatalf("expected 1 synthesis call, got %d: %v", len(texts), texts)
	}
	if texts[0] != "Hello there." {
		t.Errorf("synthesised %q, want %q", texts[0], "Hello there.")
	}
}

func TestStreamer_FlushesAtLengthCap(t *testing.T) {
	t.Parallel()
	provider := &mock.Provider{}
	sink := &captureSink{}
	s := newStreamer(provider, sink, nil)

	// No sentence terminator anywhere; only the cap can trigger the flush.
	piece := strings.Repeat("word ", 5) // 25 chars
	for i := 0; i < 5; i++ {            // 125 chars total
		s.OnChunk(piece)
	}
	s.OnComplete()

	if got := provider.CallCount(); got != 1 {
		t.Fatalf("expected 1 synthesis call for capped buffer, got %d", got)
	}
}

func TestStreamer_OnCompleteFlushesRemainder(t *testing.T) {
	t.Parallel()
	provider := &mock.Provider{}
	sink := &captureSink{}
	s := newStreamer(provider, sink, nil)

	s.OnChunk("First sentence.")
	s.OnChunk(" And a trailing fragment")
	s.OnComplete()

	texts := provider.Texts()
	if len(texts) != 2 {
		t.Fatalf("expected 2 synthesis calls, got %d: %v", len(texts), texts)
	}
	if texts[1] != "And a trailing fragment." {
		t.Errorf("remainder synthesised as %q", texts[1])
	}
}

func TestStreamer_EmitsAlignmentBeforeAudio(t *testing.T) {
	t.Parallel()
	provider := &mock.Provider{
		Frames: []tts.Frame{{
			Audio: []byte{1, 2, 3},
			Alignment: &types.AlignmentFrame{
				Characters:   []string{"H", "i"},
				StartSeconds: []float64{0, 0.1},
				EndSeconds:   []float64{0.1, 0.2},
			},
		}},
	}
	sink := &captureSink{}
	s := newStreamer(provider, sink, nil)

	s.OnChunk("Hi.")
	s.OnComplete()

	events := sink.all()
	if len(events) != 2 {
		t.Fatalf("expected alignment + audio, got %d events", len(events))
	}
	align, ok := events[0].(event.TTSStreamAlignment)
	if !ok {
		t.Fatalf("first event is %T, want TTSStreamAlignment", events[0])
	}
	if align.AvatarID != "avatar-1" || len(align.Characters) != 2 {
		t.Errorf("unexpected alignment event: %+v", align)
	}
	audio, ok := events[1].(event.TTSStream)
	if !ok {
		t.Fatalf("second event is %T, want TTSStream", events[1])
	}
	want := base64.StdEncoding.EncodeToString([]byte{1, 2, 3})
	if audio.Audio != want {
		t.Errorf("audio payload %q, want %q", audio.Audio, want)
	}
}

func TestStreamer_FirstChunkMarksSpeaking(t *testing.T) {
	t.Parallel()
	provider := &mock.Provider{}
	sink := &captureSink{}
	coord := interrupt.NewCoordinator()
	s := newStreamer(provider, sink, coord)

	if coord.IsSpeaking() {
		t.Fatal("should not be speaking before the first chunk")
	}
	s.OnChunk("Hello.")
	if !coord.IsSpeaking() {
		t.Error("first chunk should mark the avatar as speaking")
	}
	s.OnComplete()
}

func TestStreamer_DiscardSuppressesSynthesis(t *testing.T) {
	t.Parallel()
	provider := &mock.Provider{}
	sink := &captureSink{}
	s := newStreamer(provider, sink, nil)

	s.OnChunk("Buffered but never flushed")
	s.Discard()

	if got := provider.CallCount(); got != 0 {
		t.Errorf("expected no synthesis after discard, got %d calls", got)
	}
	if got := len(sink.all()); got != 0 {
		t.Errorf("expected no events after discard, got %d", got)
	}
}

func TestStreamer_SynthesisErrorIsSwallowed(t *testing.T) {
	t.Parallel()
	provider := &mock.Provider{SynthesizeErr: context.DeadlineExceeded}
	sink := &captureSink{}
	s := newStreamer(provider, sink, nil)

	s.OnChunk("This flush fails.")
	s.OnComplete() // must not panic or hang

	if got := len(sink.all()); got != 0 {
		t.Errorf("failed flush should emit nothing, got %d events", got)
	}
}
