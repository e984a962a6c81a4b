// Package mock provides a test double for the products.Source interface.
package mock

import (
	"context"
	"sync"

	"github.com/solyn-ai/solyn/internal/products"
)

// Compile-time interface check.
var _ products.Source = (*Source)(nil)

// Source is a mock products.Source.
type Source struct {
	mu sync.Mutex

	// Products is returned by Trending.
	Products []products.Product

	// TrendingErr, if non-nil, is returned by Trending.
	TrendingErr error

	// TrendingCalls counts Trending invocations.
	TrendingCalls int
}

// Trending records the call and returns Products, TrendingErr.
func (s *Source) Trending(_ context.Context) ([]products.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TrendingCalls++
	if s.TrendingErr != nil {
		return nil, s.TrendingErr
	}
	out := make([]products.Product, len(s.Products))
	copy(out, s.Products)
	return out, nil
}
