// Package mock provides a test double for the imagegen.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/solyn-ai/solyn/pkg/provider/imagegen"
)

// Provider is a mock implementation of imagegen.Provider.
// Zero values cause methods to return empty URLs and nil errors.
type Provider struct {
	mu sync.Mutex

	// TryOnURL is returned by TryOn.
	TryOnURL string
	// TryOnErr, if non-nil, is returned by TryOn.
	TryOnErr error

	// EditURL is returned by Edit.
	EditURL string
	// EditErr, if non-nil, is returned by Edit.
	EditErr error

	// UploadURL is returned by UploadBytes.
	UploadURL string
	// UploadErr, if non-nil, is returned by UploadBytes.
	UploadErr error

	// TryOnCalls records every TryOn request in order.
	TryOnCalls []imagegen.TryOnRequest

	// EditCalls records every Edit request in order.
	EditCalls []imagegen.EditRequest

	// UploadCalls records the byte length and content type of every upload.
	UploadCalls []UploadCall
}

// UploadCall records a single invocation of UploadBytes.
type UploadCall struct {
	// Size is the length of the uploaded data.
	Size int
	// ContentType is the declared content type.
	ContentType string
}

// Compile-time interface check.
var _ imagegen.Provider = (*Provider)(nil)

// TryOn records the call and returns TryOnURL, TryOnErr.
func (p *Provider) TryOn(_ context.Context, req imagegen.TryOnRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TryOnCalls = append(p.TryOnCalls, req)
	if p.TryOnErr != nil {
		return "", p.TryOnErr
	}
	return p.TryOnURL, nil
}

// Edit records the call and returns EditURL, EditErr.
func (p *Provider) Edit(_ context.Context, req imagegen.EditRequest) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EditCalls = append(p.EditCalls, req)
	if p.EditErr != nil {
		return "", p.EditErr
	}
	return p.EditURL, nil
}

// UploadBytes records the call and returns UploadURL, UploadErr.
func (p *Provider) UploadBytes(_ context.Context, data []byte, contentType string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.UploadCalls = append(p.UploadCalls, UploadCall{Size: len(data), ContentType: contentType})
	if p.UploadErr != nil {
		return "", p.UploadErr
	}
	return p.UploadURL, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TryOnCalls = nil
	p.EditCalls = nil
	p.UploadCalls = nil
}
