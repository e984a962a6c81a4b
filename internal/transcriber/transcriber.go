// Package transcriber bridges client audio to the STT provider and turns the
// provider's transcript events into client events and turn triggers.
//
// One Transcriber serves one session. Partials accumulate into an in-progress
// utterance and drive barge-in detection; finals are handed to the session's
// turn handler.
package transcriber

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/solyn-ai/solyn/internal/event"
	"github.com/solyn-ai/solyn/internal/interrupt"
	"github.com/solyn-ai/solyn/pkg/provider/stt"
	"github.com/solyn-ai/solyn/pkg/types"
)

// Session configuration: 16 kHz PCM16 input, English, server-side VAD tuned
// for conversational turn taking.
var streamConfig = stt.StreamConfig{
	SampleRate: 16000,
	Language:   "en",
	VAD: stt.VADConfig{
		Threshold:         0.3,
		PrefixPaddingMs:   300,
		SilenceDurationMs: 500,
	},
}

// bargeInMinChars is the minimum trimmed partial length that counts as the
// user actually speaking rather than a VAD blip.
const bargeInMinChars = 2

// FinalHandler receives each accepted final transcript.
type FinalHandler func(text string)

// Transcriber is a live transcription pipeline for one session.
type Transcriber struct {
	handle    stt.SessionHandle
	sink      event.Sink
	coord     *interrupt.Coordinator
	onFinal   FinalHandler
	onBargeIn func(partial string)
	log       *slog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option is a functional option for the Transcriber.
type Option func(*Transcriber)

// WithBargeInHook registers a callback fired when this transcriber wins a
// barge-in, after the user_spoke event has been emitted.
func WithBargeInHook(fn func(partial string)) Option {
	return func(t *Transcriber) { t.onBargeIn = fn }
}

// Start opens an STT session and begins consuming its transcript channels.
// onFinal is invoked from the consumer goroutine, so it must not block for
// long; typically it enqueues a turn.
func Start(ctx context.Context, provider stt.Provider, sink event.Sink, coord *interrupt.Coordinator, onFinal FinalHandler, log *slog.Logger, opts ...Option) (*Transcriber, error) {
	handle, err := provider.StartStream(ctx, streamConfig)
	if err != nil {
		return nil, fmt.Errorf("transcriber: start stream: %w", err)
	}

	t := &Transcriber{
		handle:  handle,
		sink:    sink,
		coord:   coord,
		onFinal: onFinal,
		log:     log,
	}
	for _, o := range opts {
		o(t)
	}
	t.wg.Add(1)
	go t.consume()
	return t, nil
}

// SendAudio forwards a PCM16 audio chunk to the STT provider.
func (t *Transcriber) SendAudio(chunk []byte) error {
	if err := t.handle.SendAudio(chunk); err != nil {
		return fmt.Errorf("transcriber: send audio: %w", err)
	}
	return nil
}

// Close shuts the STT session. Idempotent.
func (t *Transcriber) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.handle.Close()
		t.wg.Wait()
	})
	return err
}

// consume drains the partials and finals channels until both close.
func (t *Transcriber) consume() {
	defer t.wg.Done()

	var inProgress strings.Builder
	partials := t.handle.Partials()
	finals := t.handle.Finals()

	for partials != nil || finals != nil {
		select {
		case p, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			t.handlePartial(&inProgress, p)
		case f, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			t.handleFinal(&inProgress, f)
		}
	}
}

// handlePartial accumulates the delta, re-emits it, and fires barge-in when
// the avatar is speaking and the partial is non-trivial.
func (t *Transcriber) handlePartial(inProgress *strings.Builder, p types.Transcript) {
	inProgress.WriteString(p.Text)
	accumulated := inProgress.String()

	t.sink.Send(event.TranscriptionPartial{Text: accumulated})

	trimmed := strings.TrimSpace(accumulated)
	if len(trimmed) > bargeInMinChars && t.coord.IsSpeaking() {
		if t.coord.BargeIn() {
			t.log.Debug("barge-in detected", "partial", trimmed)
			t.sink.Send(event.UserSpoke{
				PartialTranscript: trimmed,
				InterruptionType:  "during_speech",
			})
			if t.onBargeIn != nil {
				t.onBargeIn(trimmed)
			}
		}
	}
}

// handleFinal picks the provider final over the accumulated partials, emits
// it, and hands it to the turn handler. Empty finals are discarded.
func (t *Transcriber) handleFinal(inProgress *strings.Builder, f types.Transcript) {
	text := strings.TrimSpace(f.Text)
	if text == "" {
		text = strings.TrimSpace(inProgress.String())
	}
	inProgress.Reset()
	if text == "" {
		return
	}

	t.sink.Send(event.TranscriptionFinal{Text: text})
	if t.onFinal != nil {
		t.onFinal(text)
	}
}
