package openairt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/solyn-ai/solyn/pkg/provider/stt"
)

func TestParseServerEvent_Delta(t *testing.T) {
	t.Parallel()
	tr, final, ok := parseServerEvent(
		[]byte(`{"type":"conversation.item.input_audio_transcription.delta","delta":"hel"}`),
		2*time.Second,
	)
	if !ok || final {
		t.Fatalf("ok=%v final=%v", ok, final)
	}
	if tr.Text != "hel" || tr.IsFinal {
		t.Errorf("transcript = %+v", tr)
	}
	if tr.Timestamp != 2*time.Second {
		t.Errorf("timestamp = %v", tr.Timestamp)
	}
}

func TestParseServerEvent_Completed(t *testing.T) {
	t.Parallel()
	tr, final, ok := parseServerEvent(
		[]byte(`{"type":"conversation.item.input_audio_transcription.completed","transcript":"hello there"}`),
		0,
	)
	if !ok || !final {
		t.Fatalf("ok=%v final=%v", ok, final)
	}
	if tr.Text != "hello there" || !tr.IsFinal {
		t.Errorf("transcript = %+v", tr)
	}
}

func TestParseServerEvent_IgnoredTypes(t *testing.T) {
	t.Parallel()
	for _, msg := range []string{
		`{"type":"transcription_session.updated"}`,
		`{"type":"input_audio_buffer.speech_started"}`,
		`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`,
		`not json`,
	} {
		if _, _, ok := parseServerEvent([]byte(msg), 0); ok {
			t.Errorf("event %s should not produce a transcript", msg)
		}
	}
}

func TestClose_ReturnsWhileServerHoldsSocket(t *testing.T) {
	t.Parallel()
	// A server that accepts, consumes frames, and never closes its side. The
	// Realtime API behaves this way after input_audio_buffer.commit.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	p, err := New("sk-test", WithBaseURL(strings.Replace(srv.URL, "http", "ws", 1)))
	if err != nil {
		t.Fatal(err)
	}
	handle, err := p.StartStream(context.Background(), stt.StreamConfig{
		SampleRate: 16000,
		Language:   "en",
	})
	if err != nil {
		t.Fatal(err)
	}
	sess := handle.(*session)
	<-sess.opened
	if err := handle.SendAudio([]byte{1, 2}); err != nil {
		t.Fatal(err)
	}

	closed := make(chan struct{})
	go func() {
		handle.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(3 * time.Second):
		t.Fatal("Close did not return while the server held the socket open")
	}

	// Close waited for the loops, so the transcript channels are closed.
	if _, ok := <-handle.Finals(); ok {
		t.Error("finals channel should be closed after Close")
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Fatal("empty api key should be rejected")
	}
	p, err := New("sk-test", WithModel("whisper-1"), WithBaseURL("ws://localhost:1"))
	if err != nil {
		t.Fatal(err)
	}
	if p.model != "whisper-1" || p.baseURL != "ws://localhost:1" {
		t.Errorf("provider = %+v", p)
	}
}
