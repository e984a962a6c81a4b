package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/solyn-ai/solyn/internal/event"
)

// outgoingQueueSize bounds the per-session outbound queue. A slow client
// backs up here before it can stall the pipeline.
const outgoingQueueSize = 256

// Compile-time interface check.
var _ event.Sink = (*Channel)(nil)

// Channel is the outbound half of the client socket: a bounded queue drained
// by a single writer goroutine.
//
// Backpressure policy: droppable events (alignment frames) are discarded when
// the queue is full; everything else blocks the producer until there is room
// or the session ends. Audio frames are therefore preserved in order while
// lip-sync data degrades first.
type Channel struct {
	conn *websocket.Conn
	out  chan event.Envelope
	ctx  context.Context
	log  *slog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
	dropped   atomic.Int64
}

// newChannel wraps conn and starts the writer. ctx is the session context;
// its cancellation stops the writer.
func newChannel(ctx context.Context, conn *websocket.Conn, log *slog.Logger) *Channel {
	c := &Channel{
		conn: conn,
		out:  make(chan event.Envelope, outgoingQueueSize),
		ctx:  ctx,
		log:  log,
	}
	c.wg.Add(1)
	go c.writeLoop()
	return c
}

// Send implements event.Sink.
func (c *Channel) Send(ev event.Envelope) {
	if ev.Droppable() {
		select {
		case c.out <- ev:
		default:
			c.dropped.Add(1)
		}
		return
	}
	select {
	case c.out <- ev:
	case <-c.ctx.Done():
	}
}

// Dropped returns how many droppable events were discarded.
func (c *Channel) Dropped() int64 { return c.dropped.Load() }

// writeLoop drains the queue onto the socket.
func (c *Channel) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case ev := <-c.out:
			data, err := event.Marshal(ev)
			if err != nil {
				c.log.Error("event marshal failed", "event", ev.EventType(), "error", err)
				continue
			}
			if err := c.conn.Write(c.ctx, websocket.MessageText, data); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// close shuts the socket and waits for the writer to exit. Idempotent; the
// session context must already be cancelled so the writer can stop.
func (c *Channel) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.wg.Wait()
		c.conn.Close(code, reason)
	})
}
