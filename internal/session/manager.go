// Package session owns the client-facing WebSocket surface: one Session per
// connection, each with its own transcriber, turn queue, and outbound
// channel.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/solyn-ai/solyn/internal/event"
	"github.com/solyn-ai/solyn/internal/interrupt"
	"github.com/solyn-ai/solyn/internal/observe"
	"github.com/solyn-ai/solyn/internal/orchestrator"
	"github.com/solyn-ai/solyn/internal/persona"
	"github.com/solyn-ai/solyn/internal/purchase"
	"github.com/solyn-ai/solyn/internal/transcriber"
	"github.com/solyn-ai/solyn/internal/transcript"
	"github.com/solyn-ai/solyn/pkg/provider/stt"
)

// Manager accepts client sockets and runs one Session per connection.
type Manager struct {
	stt       stt.Provider
	orch      *orchestrator.Orchestrator
	personas  persona.Store
	store     transcript.Store
	purchases *purchase.Tracker
	metrics   *observe.Metrics
	log       *slog.Logger

	greeting       bool
	allowedOrigins []string
}

// ManagerOption is a functional option for the Manager.
type ManagerOption func(*Manager)

// WithGreeting makes each session open with a proactive greeting turn.
func WithGreeting(enabled bool) ManagerOption {
	return func(m *Manager) { m.greeting = enabled }
}

// WithAllowedOrigins restricts the origins accepted for the socket upgrade.
// Empty means same-origin only, per the websocket package default.
func WithAllowedOrigins(origins []string) ManagerOption {
	return func(m *Manager) { m.allowedOrigins = origins }
}

// NewManager creates a Manager.
func NewManager(sttProvider stt.Provider, orch *orchestrator.Orchestrator, personas persona.Store, store transcript.Store, purchases *purchase.Tracker, metrics *observe.Metrics, log *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		stt:       sttProvider,
		orch:      orch,
		personas:  personas,
		store:     store,
		purchases: purchases,
		metrics:   metrics,
		log:       log,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// ServeHTTP upgrades the request and runs the session until it ends. Query
// parameters: personaId (required), userId (required), sessionId (optional,
// generated when absent).
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	personaID := r.URL.Query().Get("personaId")
	userID := r.URL.Query().Get("userId")
	if personaID == "" || userID == "" {
		http.Error(w, "personaId and userId are required", http.StatusBadRequest)
		return
	}
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	// Reject unknown personas before paying for the upgrade and STT stream.
	if _, err := m.personas.Lookup(r.Context(), personaID); err != nil {
		m.log.Warn("connect rejected", "persona_id", personaID, "error", err)
		http.Error(w, "unknown persona", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: m.allowedOrigins,
	})
	if err != nil {
		m.log.Warn("websocket accept failed", "session_id", sessionID, "error", err)
		return
	}
	conn.SetReadLimit(1 << 22) // vision frames arrive base64-encoded

	if err := m.runSession(r.Context(), conn, sessionID, userID, personaID); err != nil {
		m.log.Error("session setup failed", "session_id", sessionID, "error", err)
		conn.Close(websocket.StatusInternalError, "session setup failed")
	}
}

// runSession wires up one session and blocks until it finishes.
func (m *Manager) runSession(parent context.Context, conn *websocket.Conn, sessionID, userID, personaID string) error {
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		id:        sessionID,
		userID:    userID,
		personaID: personaID,
		coord:     interrupt.NewCoordinator(),
		orch:      m.orch,
		store:     m.store,
		purchases: m.purchases,
		metrics:   m.metrics,
		log:       m.log,
		ctx:       ctx,
		cancel:    cancel,
		turnCh:    make(chan queuedTurn, turnQueueSize),
	}
	s.channel = newChannel(ctx, conn, m.log)

	tr, err := transcriber.Start(ctx, m.stt, s.channel, s.coord, s.handleFinal, m.log,
		transcriber.WithBargeInHook(s.onBargeIn))
	if err != nil {
		cancel()
		return fmt.Errorf("session: start transcriber: %w", err)
	}
	s.transcriber = tr

	if err := m.store.OpenSession(ctx, sessionID, userID, personaID); err != nil {
		m.log.Warn("session open bookkeeping failed", "session_id", sessionID, "error", err)
	}
	m.metrics.SessionOpened(ctx)
	m.log.Info("session opened", "session_id", sessionID, "persona_id", personaID, "user_id", userID)

	m.pushVisionHint(ctx, s)
	if m.greeting {
		s.enqueue(greetingMessage(), true)
	}

	s.run(conn)
	return nil
}

// pushVisionHint tells the client how often to capture camera frames when the
// persona wants vision context.
func (m *Manager) pushVisionHint(ctx context.Context, s *Session) {
	p, err := m.personas.Lookup(ctx, s.personaID)
	if err != nil || p.VisionCaptureInterval <= 0 {
		return
	}
	s.channel.Send(event.LLMContextUpdate{
		Status:    "vision-capture",
		Guidance:  fmt.Sprintf("Capture a camera frame every %d seconds.", int(p.VisionCaptureInterval/time.Second)),
		SessionID: s.id,
	})
}
