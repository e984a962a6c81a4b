// Package openairt provides an STT provider backed by the OpenAI Realtime
// transcription API. It implements the stt.Provider interface.
//
// The provider opens a WebSocket per session, configures server-side VAD turn
// detection via a transcription_session.update event, streams base64 PCM16
// audio up, and relays transcription delta/completed events down.
package openairt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/solyn-ai/solyn/pkg/provider/stt"
	"github.com/solyn-ai/solyn/pkg/types"
)

const (
	defaultBaseURL = "wss://api.openai.com/v1/realtime"
	defaultModel   = "gpt-4o-transcribe"
)

// Compile-time assertions.
var (
	_ stt.Provider      = (*Provider)(nil)
	_ stt.SessionHandle = (*session)(nil)
)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the transcription model (e.g., "gpt-4o-transcribe").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL overrides the base WebSocket URL. Primarily used in tests to
// point at a local mock server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// Provider implements stt.Provider backed by the OpenAI Realtime API.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
}

// New creates a new Realtime transcription Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openairt: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a streaming transcription session with the Realtime API.
//
// The dial happens in a background goroutine so the caller can start queueing
// audio immediately; a Close issued before the socket opens is deferred until
// the open completes, then performed.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	sess := &session{
		partials: make(chan types.Transcript, 64),
		finals:   make(chan types.Transcript, 64),
		audio:    make(chan []byte, 256),
		opened:   make(chan struct{}),
		done:     make(chan struct{}),
		started:  time.Now(),
	}

	go sess.connect(ctx, p, cfg)

	return sess, nil
}

// ── Protocol message types ─────────────────────────────────────────────────────

type sessionUpdateMessage struct {
	Type    string        `json:"type"`
	Session sessionParams `json:"session"`
}

type sessionParams struct {
	InputAudioFormat        string              `json:"input_audio_format"`
	InputAudioTranscription transcriptionParams `json:"input_audio_transcription"`
	TurnDetection           turnDetectionParams `json:"turn_detection"`
}

type transcriptionParams struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

type turnDetectionParams struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

type appendAudioMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio"` // base64-encoded PCM16
}

type serverEvent struct {
	Type       string `json:"type"`
	Delta      string `json:"delta,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// closeStreamMessage is the provider-defined close token sent before shutdown
// to flush any audio still buffered server-side.
const closeStreamMessage = `{"type":"input_audio_buffer.commit"}`

// ── session ────────────────────────────────────────────────────────────────────

// session is a live Realtime transcription session. It implements
// stt.SessionHandle.
type session struct {
	mu   sync.Mutex
	conn *websocket.Conn // nil until the dial completes

	partials chan types.Transcript
	finals   chan types.Transcript
	audio    chan []byte

	// opened is closed once the WebSocket handshake and session.update have
	// completed (or failed). closeDeferred records a Close issued before then.
	opened        chan struct{}
	closeDeferred bool

	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	started time.Time
}

// connect dials the Realtime endpoint, sends the transcription session
// configuration, and starts the read/write loops. On failure the transcript
// channels are closed so consumers observe a terminated session.
func (s *session) connect(ctx context.Context, p *Provider, cfg stt.StreamConfig) {
	wsURL := fmt.Sprintf("%s?intent=transcription", p.baseURL)
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + p.apiKey},
			"OpenAI-Beta":   []string{"realtime=v1"},
		},
	})
	if err != nil {
		s.failOpen()
		return
	}

	update := sessionUpdateMessage{
		Type: "transcription_session.update",
		Session: sessionParams{
			InputAudioFormat: "pcm16",
			InputAudioTranscription: transcriptionParams{
				Model:    p.model,
				Language: cfg.Language,
			},
			TurnDetection: turnDetectionParams{
				Type:              "server_vad",
				Threshold:         cfg.VAD.Threshold,
				PrefixPaddingMs:   cfg.VAD.PrefixPaddingMs,
				SilenceDurationMs: cfg.VAD.SilenceDurationMs,
			},
		},
	}
	data, _ := json.Marshal(update)
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		conn.Close(websocket.StatusInternalError, "session update failed")
		s.failOpen()
		return
	}

	s.mu.Lock()
	s.conn = conn
	deferred := s.closeDeferred
	s.mu.Unlock()
	close(s.opened)

	if deferred {
		// Close arrived while the socket was still connecting.
		s.shutdown(conn)
		return
	}

	s.wg.Add(2)
	go s.readLoop(ctx, conn)
	go s.writeLoop(ctx, conn)
}

// failOpen marks the session as terminated when the dial never succeeds.
func (s *session) failOpen() {
	s.mu.Lock()
	s.closeDeferred = false
	s.mu.Unlock()
	close(s.opened)
	s.once.Do(func() {
		close(s.done)
		close(s.partials)
		close(s.finals)
	})
}

// SendAudio implements stt.SessionHandle. The chunk is base64-encoded and
// queued for delivery; queueing succeeds even while the dial is in flight.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("openairt: session is closed")
	default:
	}
	select {
	case s.audio <- chunk:
		return nil
	case <-s.done:
		return errors.New("openairt: session is closed")
	}
}

// Partials implements stt.SessionHandle.
func (s *session) Partials() <-chan types.Transcript { return s.partials }

// Finals implements stt.SessionHandle.
func (s *session) Finals() <-chan types.Transcript { return s.finals }

// Close implements stt.SessionHandle. If the connection has not finished
// opening, the close is deferred to the open handler. Idempotent.
func (s *session) Close() error {
	s.mu.Lock()
	if s.conn == nil {
		select {
		case <-s.opened:
			// Open already resolved (failed dial); nothing more to do.
		default:
			s.closeDeferred = true
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()
		return nil
	}
	conn := s.conn
	s.mu.Unlock()

	s.shutdown(conn)
	return nil
}

// shutdown sends the close token and closes the socket, then waits for the
// loops. The socket must close before the wait: the Realtime server keeps the
// connection open after a commit, so readLoop only exits once the close
// propagates through conn.Read.
func (s *session) shutdown(conn *websocket.Conn) {
	s.once.Do(func() {
		close(s.done)
		_ = conn.Write(context.Background(), websocket.MessageText, []byte(closeStreamMessage))
		conn.Close(websocket.StatusNormalClosure, "session closed")
		s.wg.Wait()
	})
}

// writeLoop drains the audio channel and sends input_audio_buffer.append
// events to the provider.
func (s *session) writeLoop(ctx context.Context, conn *websocket.Conn) {
	defer s.wg.Done()
	for {
		select {
		case chunk := <-s.audio:
			msg := appendAudioMessage{
				Type:  "input_audio_buffer.append",
				Audio: base64.StdEncoding.EncodeToString(chunk),
			}
			data, _ := json.Marshal(msg)
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// readLoop receives Realtime events and dispatches transcripts to the
// partials and finals channels. It owns both channels and closes them on exit.
func (s *session) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		t, final, ok := parseServerEvent(data, time.Since(s.started))
		if !ok {
			continue
		}

		var dst chan types.Transcript
		if final {
			dst = s.finals
		} else {
			dst = s.partials
		}
		select {
		case dst <- t:
		case <-s.done:
			return
		}
	}
}

// parseServerEvent converts a raw Realtime event into a Transcript.
// Returns ok=false for event types the session does not consume.
func parseServerEvent(data []byte, at time.Duration) (t types.Transcript, final bool, ok bool) {
	var ev serverEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return types.Transcript{}, false, false
	}

	switch ev.Type {
	case "conversation.item.input_audio_transcription.delta":
		return types.Transcript{Text: ev.Delta, Timestamp: at}, false, true
	case "conversation.item.input_audio_transcription.completed":
		return types.Transcript{Text: ev.Transcript, IsFinal: true, Timestamp: at}, true, true
	default:
		return types.Transcript{}, false, false
	}
}
