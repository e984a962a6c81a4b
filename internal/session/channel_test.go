package session

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/solyn-ai/solyn/internal/event"
)

// wsPair upgrades a loopback connection and returns both ends.
func wsPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()
	accepted := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		accepted <- conn
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, _, err := websocket.Dial(ctx, strings.Replace(srv.URL, "http", "ws", 1), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close(websocket.StatusNormalClosure, "") })
	return <-accepted, client
}

func channelLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChannel_WritesEventsInOrder(t *testing.T) {
	t.Parallel()
	server, client := wsPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := newChannel(ctx, server, channelLogger())
	ch.Send(event.LLMResponseStart{})
	ch.Send(event.LLMResponseChunk{Content: "Hi"})

	readCtx, readCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer readCancel()

	for i, wantType := range []string{event.TypeLLMResponseStart, event.TypeLLMResponseChunk} {
		_, data, err := client.Read(readCtx)
		if err != nil {
			t.Fatal(err)
		}
		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatal(err)
		}
		if frame["event"] != wantType {
			t.Errorf("frame %d type = %v, want %s", i, frame["event"], wantType)
		}
	}

	cancel()
	ch.close(websocket.StatusNormalClosure, "done")
}

func TestChannel_DropsAlignmentWhenQueueFull(t *testing.T) {
	t.Parallel()
	server, client := wsPair(t)
	_ = client // never read, so the writer stalls on the first frame

	ctx, cancel := context.WithCancel(context.Background())
	ch := newChannel(ctx, server, channelLogger())

	// Overfill the queue with large droppable frames. The writer consumes at
	// most a handful before the unread socket buffer blocks it.
	al := event.TTSStreamAlignment{Characters: make([]string, 8192)}
	for i := range al.Characters {
		al.Characters[i] = "abcd"
	}
	for i := 0; i < outgoingQueueSize*3; i++ {
		ch.Send(al)
	}

	if ch.Dropped() == 0 {
		t.Error("overflowing droppable events should be discarded, not block")
	}

	cancel()
	ch.close(websocket.StatusGoingAway, "test over")
}
