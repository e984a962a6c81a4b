// Package products defines the trending-product surface used by the
// get_trending_products tool.
package products

import "context"

// Product is one purchasable item surfaced to the client.
type Product struct {
	// ID is the product's unique identifier.
	ID string `json:"id" yaml:"id"`

	// Name is the display name.
	Name string `json:"name" yaml:"name"`

	// Description is a short marketing blurb.
	Description string `json:"description,omitempty" yaml:"description"`

	// Price is the display price amount.
	Price float64 `json:"price" yaml:"price"`

	// Currency is the price currency code (e.g., "USD", "ETH").
	Currency string `json:"currency" yaml:"currency"`

	// ImageURL is the product photo.
	ImageURL string `json:"image_url,omitempty" yaml:"image_url"`
}

// Source supplies the current trending products.
// Implementations must be safe for concurrent use.
type Source interface {
	Trending(ctx context.Context) ([]Product, error)
}

// StaticSource is a Source backed by a fixed list, typically loaded from
// configuration.
type StaticSource struct {
	Products []Product
}

// Compile-time interface check.
var _ Source = (*StaticSource)(nil)

// Trending implements Source.
func (s *StaticSource) Trending(_ context.Context) ([]Product, error) {
	out := make([]Product, len(s.Products))
	copy(out, s.Products)
	return out, nil
}
