package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/solyn-ai/solyn/internal/event"
	"github.com/solyn-ai/solyn/internal/interrupt"
	"github.com/solyn-ai/solyn/internal/observe"
	"github.com/solyn-ai/solyn/internal/orchestrator"
	"github.com/solyn-ai/solyn/internal/purchase"
	"github.com/solyn-ai/solyn/internal/transcriber"
	"github.com/solyn-ai/solyn/internal/transcript"
	"github.com/solyn-ai/solyn/pkg/types"
)

// visionInlineTTL is how fresh a captured frame must be to ride inline on a
// voice or text turn. Tool-invoked style requests use a longer window.
const visionInlineTTL = 30 * time.Second

// turnQueueSize bounds queued finals waiting for the turn worker. Finals
// arrive at speaking pace, so a small buffer suffices.
const turnQueueSize = 4

// greetingInstruction is the synthetic user message driving a proactive
// opening turn. It is never persisted.
const greetingInstruction = "The user just joined the conversation. Greet them briefly in your own voice and invite them to talk."

// greetingMessage is the synthetic user message for a proactive opening turn.
func greetingMessage() types.Message {
	return types.Text("user", greetingInstruction)
}

// queuedTurn is one pending response turn.
type queuedTurn struct {
	message   types.Message
	proactive bool
}

// Session owns everything for one connected client: the socket channel, the
// transcriber, the turn queue, the vision slot, and the purchase entry.
type Session struct {
	id        string
	userID    string
	personaID string

	channel     *Channel
	transcriber *transcriber.Transcriber
	coord       *interrupt.Coordinator
	orch        *orchestrator.Orchestrator
	store       transcript.Store
	purchases   *purchase.Tracker
	metrics     *observe.Metrics
	log         *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	visionMu sync.Mutex
	vision   []byte
	visionAt time.Time

	turnCh   chan queuedTurn
	workerWG sync.WaitGroup
	bgWG     sync.WaitGroup
	endOnce  sync.Once
}

// run drives the session until the client disconnects or sends end.
func (s *Session) run(conn *websocket.Conn) {
	s.workerWG.Add(1)
	go s.turnWorker()

	s.readLoop(conn)
	s.shutdown()
}

// readLoop consumes client frames. Binary frames are raw audio; text frames
// are JSON messages.
func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		typ, data, err := conn.Read(s.ctx)
		if err != nil {
			return
		}

		if typ == websocket.MessageBinary {
			s.forwardAudio(data)
			continue
		}

		msg, err := decodeInbound(data)
		if err != nil {
			s.log.Warn("bad client message", "session_id", s.id, "error", err)
			continue
		}

		if msg.isAudio() {
			chunk, err := base64.StdEncoding.DecodeString(msg.Data)
			if err != nil {
				s.log.Warn("bad audio payload", "session_id", s.id, "error", err)
				continue
			}
			s.forwardAudio(chunk)
			continue
		}

		switch msg.Type {
		case inboundVision:
			frame, err := base64.StdEncoding.DecodeString(msg.Data)
			if err != nil {
				s.log.Warn("bad vision payload", "session_id", s.id, "error", err)
				continue
			}
			s.setVision(frame)

		case inboundText:
			if msg.Text != "" {
				s.enqueue(s.userMessage(msg.Text), false)
			}

		case inboundPurchaseStatus:
			s.handlePurchaseStatus(msg)

		case inboundEnd:
			return

		default:
			s.log.Warn("unknown client message type", "session_id", s.id, "type", msg.Type)
		}
	}
}

// forwardAudio pushes one PCM16 chunk into the transcriber.
func (s *Session) forwardAudio(chunk []byte) {
	if err := s.transcriber.SendAudio(chunk); err != nil {
		s.log.Warn("audio forward failed", "session_id", s.id, "error", err)
	}
}

// setVision replaces the last-vision-image slot.
func (s *Session) setVision(frame []byte) {
	s.visionMu.Lock()
	s.vision = frame
	s.visionAt = time.Now()
	s.visionMu.Unlock()
}

// visionSnapshot returns the current vision slot.
func (s *Session) visionSnapshot() ([]byte, time.Time) {
	s.visionMu.Lock()
	defer s.visionMu.Unlock()
	return s.vision, s.visionAt
}

// userMessage builds the turn's user message, attaching the vision frame
// inline when it is fresh enough.
func (s *Session) userMessage(text string) types.Message {
	frame, at := s.visionSnapshot()
	if len(frame) == 0 || time.Since(at) >= visionInlineTTL {
		return types.Text("user", text)
	}
	return types.Message{
		Role: "user",
		Parts: []types.Part{
			{Kind: types.PartText, Text: text},
			{Kind: types.PartImage, URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame)},
		},
	}
}

// handleFinal receives final transcripts from the transcriber.
func (s *Session) handleFinal(text string) {
	s.enqueue(s.userMessage(text), false)
}

// enqueue queues a turn for the worker. If a turn is active and no barge-in
// occurred, the new turn waits its turn; barge-in has already cancelled the
// active one.
func (s *Session) enqueue(msg types.Message, proactive bool) {
	select {
	case s.turnCh <- queuedTurn{message: msg, proactive: proactive}:
	case <-s.ctx.Done():
	}
}

// turnWorker serializes turns: one active turn per session, completed in
// queue order unless cancelled by barge-in.
func (s *Session) turnWorker() {
	defer s.workerWG.Done()
	for {
		select {
		case qt := <-s.turnCh:
			s.runTurn(qt)
		case <-s.ctx.Done():
			return
		}
	}
}

// runTurn executes one queued turn under a fresh handle.
func (s *Session) runTurn(qt queuedTurn) {
	handle := s.coord.BeginTurn(s.ctx)
	defer s.coord.EndTurn(handle)

	frame, at := s.visionSnapshot()
	_, err := s.orch.Respond(handle.Context(), &orchestrator.Turn{
		SessionID:        s.id,
		UserID:           s.userID,
		PersonaID:        s.personaID,
		UserMessage:      qt.message,
		Proactive:        qt.proactive,
		Sink:             s.channel,
		Coordinator:      s.coord,
		Handle:           handle,
		VisionImage:      frame,
		VisionCapturedAt: at,
		Background:       s.background,
	})
	if err != nil && !handle.BargedIn() {
		s.log.Warn("turn ended with error", "session_id", s.id, "error", err)
	}
}

// background schedules session-scoped work (style generation, interruption
// replies) that outlives the current turn but not the session.
func (s *Session) background(fn func(ctx context.Context)) {
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		fn(s.ctx)
	}()
}

// onBargeIn reacts to a won barge-in: count it and push a short spoken
// acknowledgement for the client to play.
func (s *Session) onBargeIn(string) {
	s.metrics.BargeIn(s.ctx)
	s.background(func(ctx context.Context) {
		text := s.orch.InterruptionReply(ctx, s.personaID, "during_speech")
		s.channel.Send(event.InterruptionReply{Text: text, AvatarID: s.personaID})
	})
}

// handlePurchaseStatus pushes a funnel transition into the tracker and
// acknowledges it with an llm-context-update.
func (s *Session) handlePurchaseStatus(msg inboundMessage) {
	status := purchase.Status(msg.Status)
	if err := s.purchases.Set(s.id, status, msg.Payload); err != nil {
		s.log.Warn("purchase status rejected", "session_id", s.id, "status", msg.Status, "error", err)
		return
	}
	state := s.purchases.Get(s.id)
	s.channel.Send(event.LLMContextUpdate{
		Status:    msg.Status,
		Guidance:  state.PromptParagraph(),
		SessionID: s.id,
		Data:      msg.Payload,
	})
}

// shutdown releases everything the session owns, once.
func (s *Session) shutdown() {
	s.endOnce.Do(func() {
		if err := s.transcriber.Close(); err != nil {
			s.log.Warn("transcriber close failed", "session_id", s.id, "error", err)
		}
		s.coord.CancelCurrent()
		s.cancel()

		s.workerWG.Wait()
		s.bgWG.Wait()

		s.purchases.Clear(s.id)
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.CloseSession(closeCtx, s.id); err != nil {
			s.log.Warn("session close bookkeeping failed", "session_id", s.id, "error", err)
		}

		s.channel.close(websocket.StatusNormalClosure, "session ended")
		s.metrics.SessionClosed(context.Background())
		if dropped := s.channel.Dropped(); dropped > 0 {
			s.log.Debug("dropped alignment frames", "session_id", s.id, "count", dropped)
		}
		s.log.Info("session closed", "session_id", s.id)
	})
}

// String identifies the session in logs.
func (s *Session) String() string {
	return fmt.Sprintf("session %s (persona %s)", s.id, s.personaID)
}
