// Package memstore provides an in-memory persona.Store for tests and local
// development.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/solyn-ai/solyn/internal/persona"
)

// Compile-time interface check.
var _ persona.Store = (*Store)(nil)

// Store is an in-memory persona.Store.
type Store struct {
	mu       sync.RWMutex
	personas map[string]*persona.Persona

	// LookupCalls counts Lookup invocations, for cache tests.
	LookupCalls int
}

// New creates a Store pre-populated with the given personas.
func New(personas ...*persona.Persona) *Store {
	s := &Store{personas: make(map[string]*persona.Persona, len(personas))}
	for _, p := range personas {
		s.personas[p.ID] = p
	}
	return s
}

// Lookup implements persona.Store.
func (s *Store) Lookup(_ context.Context, personaID string) (*persona.Persona, error) {
	s.mu.Lock()
	s.LookupCalls++
	p, ok := s.personas[personaID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("memstore: lookup %s: %w", personaID, persona.ErrNotFound)
	}
	return p, nil
}

// Put adds or replaces a persona. Thread-safe.
func (s *Store) Put(p *persona.Persona) {
	s.mu.Lock()
	s.personas[p.ID] = p
	s.mu.Unlock()
}
