// Package objectstore defines the Store interface for durable blob storage.
//
// Generated style images are re-stored here because generation providers host
// results on short-lived URLs. Implementations return a stable URL for each
// stored object.
package objectstore

import "context"

// Store is the abstraction over any blob storage backend.
type Store interface {
	// Put stores data under key and returns a stable URL for retrieval.
	// Writing an existing key overwrites it.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// Get retrieves the object stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
}
