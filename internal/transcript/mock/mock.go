// Package mock provides an in-memory test double for transcript.Store.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/solyn-ai/solyn/internal/transcript"
	"github.com/solyn-ai/solyn/pkg/types"
)

// Compile-time interface check.
var _ transcript.Store = (*Store)(nil)

// AppendCall records a single invocation of Append.
type AppendCall struct {
	// SessionID is the session appended to.
	SessionID string
	// Messages are the appended messages.
	Messages []types.Message
}

// Store is an in-memory transcript.Store. The zero value is ready to use.
// Set History to control what HistoryFor returns; appended messages are also
// reflected in subsequent HistoryFor calls for the same store.
type Store struct {
	mu sync.Mutex

	// History is returned by HistoryFor before any appended rows.
	History []transcript.Raw

	// AppendErr, if non-nil, is returned by Append.
	AppendErr error

	// HistoryErr, if non-nil, is returned by HistoryFor.
	HistoryErr error

	// RecordErr, if non-nil, is returned by RecordStyleGeneration.
	RecordErr error

	// AppendCalls records every Append invocation in order.
	AppendCalls []AppendCall

	// StyleRecords holds every record passed to RecordStyleGeneration.
	StyleRecords []transcript.StyleGenerationRecord

	// OpenedSessions and ClosedSessions record lifecycle calls.
	OpenedSessions []string
	ClosedSessions []string

	appended []transcript.Raw
}

// OpenSession implements transcript.Store.
func (s *Store) OpenSession(_ context.Context, sessionID, _, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OpenedSessions = append(s.OpenedSessions, sessionID)
	return nil
}

// CloseSession implements transcript.Store.
func (s *Store) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ClosedSessions = append(s.ClosedSessions, sessionID)
	return nil
}

// Append implements transcript.Store.
func (s *Store) Append(_ context.Context, sessionID string, messages []types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendErr != nil {
		return s.AppendErr
	}
	cp := make([]types.Message, len(messages))
	copy(cp, messages)
	s.AppendCalls = append(s.AppendCalls, AppendCall{SessionID: sessionID, Messages: cp})
	for _, m := range messages {
		raw, err := encode(m)
		if err != nil {
			return fmt.Errorf("mock: encode message: %w", err)
		}
		s.appended = append(s.appended, raw)
	}
	return nil
}

// HistoryFor implements transcript.Store. It returns History followed by all
// appended rows, regardless of the user/persona arguments.
func (s *Store) HistoryFor(_ context.Context, _, _ string) ([]transcript.Raw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.HistoryErr != nil {
		return nil, s.HistoryErr
	}
	out := make([]transcript.Raw, 0, len(s.History)+len(s.appended))
	out = append(out, s.History...)
	out = append(out, s.appended...)
	return out, nil
}

// RecordStyleGeneration implements transcript.Store.
func (s *Store) RecordStyleGeneration(_ context.Context, rec transcript.StyleGenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RecordErr != nil {
		return s.RecordErr
	}
	s.StyleRecords = append(s.StyleRecords, rec)
	return nil
}

// StyleGenerations implements transcript.Store.
func (s *Store) StyleGenerations(_ context.Context, sessionID string) ([]transcript.StyleGenerationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []transcript.StyleGenerationRecord
	for _, rec := range s.StyleRecords {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

// AppendCallCount returns the number of Append calls. Thread-safe.
func (s *Store) AppendCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.AppendCalls)
}

// encode converts a typed message to its stored row shape, matching the
// behavior of the real store.
func encode(m types.Message) (transcript.Raw, error) {
	var content any
	if m.IsText() {
		content = m.Content
	} else {
		content = m.Parts
	}
	blob, err := json.Marshal(content)
	if err != nil {
		return transcript.Raw{}, err
	}
	return transcript.Raw{Role: m.Role, Content: blob}, nil
}
