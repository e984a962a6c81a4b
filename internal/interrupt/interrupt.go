// Package interrupt coordinates barge-in between the transcriber and the
// in-flight response turn.
//
// The coordinator owns the per-session avatar-speaking flag and the current
// turn handle. Barge-in is a single atomic read-and-clear of the flag plus
// cancellation of the current turn, so two racing partials cannot both
// trigger it.
package interrupt

import (
	"context"
	"sync"
	"sync/atomic"
)

// TurnHandle is the cancellation scope for one response turn.
type TurnHandle struct {
	ctx    context.Context
	cancel context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once

	bargedIn atomic.Bool
}

// newTurnHandle derives a turn-scoped context from parent.
func newTurnHandle(parent context.Context) *TurnHandle {
	ctx, cancel := context.WithCancel(parent)
	return &TurnHandle{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Context returns the turn-scoped context. It is cancelled on barge-in,
// session end, or Finish.
func (h *TurnHandle) Context() context.Context { return h.ctx }

// Cancel aborts the turn. Idempotent.
func (h *TurnHandle) Cancel() { h.cancel() }

// Finish marks the turn complete and releases its context. Idempotent.
func (h *TurnHandle) Finish() {
	h.doneOnce.Do(func() { close(h.done) })
	h.cancel()
}

// Done is closed when the turn has finished.
func (h *TurnHandle) Done() <-chan struct{} { return h.done }

// BargedIn reports whether the turn was cancelled by a barge-in.
func (h *TurnHandle) BargedIn() bool { return h.bargedIn.Load() }

// Coordinator owns the avatar-speaking flag and the current turn for one
// session. All methods are safe for concurrent use.
type Coordinator struct {
	speaking atomic.Bool

	mu      sync.Mutex
	current *TurnHandle
}

// NewCoordinator creates a Coordinator with no active turn.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// BeginTurn creates the turn handle for a new response turn and makes it
// current. Any previous turn must already be finished or cancelled.
func (c *Coordinator) BeginTurn(parent context.Context) *TurnHandle {
	h := newTurnHandle(parent)
	c.mu.Lock()
	c.current = h
	c.mu.Unlock()
	return h
}

// EndTurn clears the current turn if h is still current and drops the
// speaking flag.
func (c *Coordinator) EndTurn(h *TurnHandle) {
	h.Finish()
	c.speaking.Store(false)
	c.mu.Lock()
	if c.current == h {
		c.current = nil
	}
	c.mu.Unlock()
}

// SpeakingStarted sets the avatar-speaking flag. Called by the TTS sink on
// its first chunk.
func (c *Coordinator) SpeakingStarted() {
	c.speaking.Store(true)
}

// SpeakingStopped clears the avatar-speaking flag without cancelling
// anything. Called on turn completion and on errors.
func (c *Coordinator) SpeakingStopped() {
	c.speaking.Store(false)
}

// IsSpeaking reports the avatar-speaking flag.
func (c *Coordinator) IsSpeaking() bool {
	return c.speaking.Load()
}

// BargeIn atomically clears the speaking flag and, if it was set, cancels the
// current turn. Returns true only for the caller that won the flag, so a
// second interruption within the same turn does not re-fire.
func (c *Coordinator) BargeIn() bool {
	if !c.speaking.CompareAndSwap(true, false) {
		return false
	}
	c.mu.Lock()
	h := c.current
	c.mu.Unlock()
	if h != nil {
		h.bargedIn.Store(true)
		h.Cancel()
	}
	return true
}

// CancelCurrent cancels the current turn, if any, without touching the
// speaking flag semantics of BargeIn. Used on session end.
func (c *Coordinator) CancelCurrent() {
	c.mu.Lock()
	h := c.current
	c.mu.Unlock()
	if h != nil {
		h.Cancel()
	}
	c.speaking.Store(false)
}

// Current returns the active turn handle, or nil.
func (c *Coordinator) Current() *TurnHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}
