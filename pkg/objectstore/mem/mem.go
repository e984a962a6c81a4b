// Package mem provides an in-memory objectstore.Store for tests and local
// development.
package mem

import (
	"context"
	"fmt"
	"sync"

	"github.com/solyn-ai/solyn/pkg/objectstore"
)

// Compile-time assertion that Store satisfies objectstore.Store.
var _ objectstore.Store = (*Store)(nil)

// Store is an in-memory objectstore.Store. The zero value is ready to use.
type Store struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{objects: make(map[string][]byte)}
}

// Put implements objectstore.Store. Returns a mem:// URL for the key.
func (s *Store) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("mem: key must not be empty")
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[key] = cp
	s.mu.Unlock()

	return "mem://" + key, nil
}

// Get implements objectstore.Store.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("mem: object %s not found", key)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Len returns the number of stored objects. Thread-safe.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Keys returns all stored keys in unspecified order. Thread-safe.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}
