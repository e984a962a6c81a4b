// Package purchase tracks the per-session product purchase funnel.
//
// The funnel is driven entirely by client events; the core never advances it.
// Its only consumer is the orchestrator, which prepends a status-specific
// paragraph to the system prompt so the model can react to where the user is
// in the flow.
package purchase

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Status is one funnel state.
type Status string

// Funnel states, in rough funnel order.
const (
	StatusIdle                   Status = "idle"
	StatusProductsDisplayed      Status = "products-displayed"
	StatusProductSelected        Status = "product-selected"
	StatusWalletConnecting       Status = "wallet-connecting"
	StatusWalletConnected        Status = "wallet-connected"
	StatusWalletDisconnected     Status = "wallet-disconnected"
	StatusCryptoPaymentInitiated Status = "crypto-payment-initiated"
	StatusTransactionPending     Status = "transaction-pending"
	StatusTransactionConfirming  Status = "transaction-confirming"
	StatusPurchaseExecuting      Status = "purchase-executing"
	StatusPurchaseCompleted      Status = "purchase-completed"
	StatusPurchaseFailed         Status = "purchase-failed"
	StatusInsufficientFunds      Status = "insufficient-funds"
	StatusPriceExpired           Status = "price-expired"
	StatusTransactionFailed      Status = "transaction-failed"
)

// knownStatuses is the set of accepted funnel states.
var knownStatuses = map[Status]struct{}{
	StatusIdle:                   {},
	StatusProductsDisplayed:      {},
	StatusProductSelected:        {},
	StatusWalletConnecting:       {},
	StatusWalletConnected:        {},
	StatusWalletDisconnected:     {},
	StatusCryptoPaymentInitiated: {},
	StatusTransactionPending:     {},
	StatusTransactionConfirming:  {},
	StatusPurchaseExecuting:      {},
	StatusPurchaseCompleted:      {},
	StatusPurchaseFailed:         {},
	StatusInsufficientFunds:      {},
	StatusPriceExpired:           {},
	StatusTransactionFailed:      {},
}

// Valid reports whether s is a known funnel state.
func (s Status) Valid() bool {
	_, ok := knownStatuses[s]
	return ok
}

// State is the tracked funnel position for one session.
type State struct {
	// Status is the current funnel state.
	Status Status

	// Data is a small bag of flow details (product name, tx hash, amount,
	// error text).
	Data map[string]string

	// UpdatedAt is when the state last changed.
	UpdatedAt time.Time
}

// completedClearDelay is how long a completed purchase stays visible before
// the entry is cleared.
const completedClearDelay = 60 * time.Second

// Tracker is the in-memory per-session funnel map. Entries reaching
// purchase-completed are cleared automatically after a delay.
// All methods are safe for concurrent use.
type Tracker struct {
	mu         sync.Mutex
	states     map[string]*State
	timers     map[string]*time.Timer
	clearDelay time.Duration
}

// Option is a functional option for the Tracker.
type Option func(*Tracker)

// WithClearDelay overrides the purchase-completed clear delay. Used in tests.
func WithClearDelay(d time.Duration) Option {
	return func(t *Tracker) { t.clearDelay = d }
}

// NewTracker creates an empty Tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		states:     make(map[string]*State),
		timers:     make(map[string]*time.Timer),
		clearDelay: completedClearDelay,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Set records a status for the session, merging data into the existing bag.
// An unknown status is rejected. Reaching purchase-completed schedules an
// automatic clear.
func (t *Tracker) Set(sessionID string, status Status, data map[string]string) error {
	if !status.Valid() {
		return fmt.Errorf("purchase: unknown status %q", status)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.states[sessionID]
	if !ok {
		st = &State{Data: make(map[string]string)}
		t.states[sessionID] = st
	}
	st.Status = status
	st.UpdatedAt = time.Now()
	for k, v := range data {
		st.Data[k] = v
	}

	if timer, ok := t.timers[sessionID]; ok {
		timer.Stop()
		delete(t.timers, sessionID)
	}
	if status == StatusPurchaseCompleted {
		t.timers[sessionID] = time.AfterFunc(t.clearDelay, func() {
			t.Clear(sessionID)
		})
	}
	return nil
}

// Get returns the session's state, defaulting to idle for unknown sessions.
// The returned value is a copy.
func (t *Tracker) Get(sessionID string) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.states[sessionID]
	if !ok {
		return State{Status: StatusIdle}
	}
	cp := State{Status: st.Status, UpdatedAt: st.UpdatedAt, Data: make(map[string]string, len(st.Data))}
	for k, v := range st.Data {
		cp.Data[k] = v
	}
	return cp
}

// Clear removes the session's entry and any pending auto-clear timer.
func (t *Tracker) Clear(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, sessionID)
	if timer, ok := t.timers[sessionID]; ok {
		timer.Stop()
		delete(t.timers, sessionID)
	}
}

// Len returns the number of tracked sessions. Thread-safe.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.states)
}

// ── Prompt guidance ────────────────────────────────────────────────────────────

// guidance maps each status to the instruction paragraph the orchestrator
// prepends to the system prompt.
var guidance = map[Status]string{
	StatusIdle:                   "",
	StatusProductsDisplayed:      "The user is currently viewing a list of products you surfaced. Help them compare options and answer questions about the items. Do not pressure them to buy.",
	StatusProductSelected:        "The user has selected a product%s. Answer questions about it and, if they want to proceed, guide them to connect their wallet.",
	StatusWalletConnecting:       "The user is connecting their crypto wallet right now. Reassure them and wait; do not ask them to retry yet.",
	StatusWalletConnected:        "The user's wallet is connected. They can now complete the purchase whenever they are ready.",
	StatusWalletDisconnected:     "The user's wallet disconnected. If they still want to buy, gently suggest reconnecting it.",
	StatusCryptoPaymentInitiated: "The user has initiated a crypto payment. Let them know it is processing and avoid starting unrelated topics until it resolves.",
	StatusTransactionPending:     "The payment transaction is pending on-chain. Reassure the user that this can take a moment.",
	StatusTransactionConfirming:  "The transaction is confirming. Tell the user it is almost done if they ask.",
	StatusPurchaseExecuting:      "The purchase is being executed. Keep responses short until it completes.",
	StatusPurchaseCompleted:      "The user just completed a purchase%s. Congratulate them warmly and offer help with anything else.",
	StatusPurchaseFailed:         "The user's purchase failed%s. Apologise briefly, and suggest trying again or picking a different item.",
	StatusInsufficientFunds:      "The user's wallet has insufficient funds for the purchase. Be tactful; suggest a cheaper option or topping up.",
	StatusPriceExpired:           "The quoted price expired before the user completed the purchase. Let them know they can refresh and try again.",
	StatusTransactionFailed:      "The payment transaction failed on-chain%s. Apologise and suggest retrying.",
}

// PromptParagraph renders the system-prompt paragraph for the state. The
// returned string is empty for idle sessions.
func (s State) PromptParagraph() string {
	tmpl, ok := guidance[s.Status]
	if !ok || tmpl == "" {
		return ""
	}
	var detail string
	if product := s.Data["product"]; product != "" {
		detail = fmt.Sprintf(" (%s)", product)
	} else if errText := s.Data["error"]; errText != "" {
		detail = fmt.Sprintf(" (%s)", errText)
	}
	if strings.Contains(tmpl, "%s") {
		return fmt.Sprintf(tmpl, detail)
	}
	return tmpl
}
