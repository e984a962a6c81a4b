// Package stylegen is the style-generation client: it wraps the image
// generation provider and persists results to durable object storage.
package stylegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/solyn-ai/solyn/pkg/objectstore"
	"github.com/solyn-ai/solyn/pkg/provider/imagegen"
)

// Error kinds. Callers distinguish these with errors.Is.
var (
	// ErrUpstream indicates the generation provider failed.
	ErrUpstream = errors.New("stylegen: upstream error")

	// ErrNoMediaReturned indicates the provider succeeded but returned no
	// usable image.
	ErrNoMediaReturned = errors.New("stylegen: no media returned")

	// ErrLocalFetchFailed indicates a local-only source image could not be
	// fetched for re-upload.
	ErrLocalFetchFailed = errors.New("stylegen: local image fetch failed")
)

// Request describes one style generation.
type Request struct {
	// ImageURL is the source photo of the user.
	ImageURL string

	// Prompt describes the desired styling change. Ignored for try-on.
	Prompt string

	// SessionID and PersonaID key the persistent copy.
	SessionID string
	PersonaID string

	// ReferenceImageURLs, when non-empty, switches to virtual try-on using
	// the first entry as the garment.
	ReferenceImageURLs []string
}

// Result is a completed style generation.
type Result struct {
	// GeneratedURL is the durable URL of the result (object storage when the
	// copy succeeded, else the provider URL).
	GeneratedURL string

	// ProviderURL is the provider-hosted result URL.
	ProviderURL string

	// ModelUsed names the generation mode: "try-on" or "edit".
	ModelUsed string
}

// Client runs style generations. Safe for concurrent use.
type Client struct {
	generator imagegen.Provider
	store     objectstore.Store
	http      *http.Client
	log       *slog.Logger
	now       func() time.Time
}

// Option is a functional option for the Client.
type Option func(*Client)

// WithHTTPClient overrides the client used to fetch local source images.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(cl *Client) { cl.log = log }
}

// withClock overrides the timestamp source. Used in tests.
func withClock(now func() time.Time) Option {
	return func(cl *Client) { cl.now = now }
}

// NewClient creates a style-generation Client.
func NewClient(generator imagegen.Provider, store objectstore.Store, opts ...Option) *Client {
	c := &Client{
		generator: generator,
		store:     store,
		http:      &http.Client{Timeout: 30 * time.Second},
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GenerateStyle runs one generation end to end: resolve a fetchable source
// URL, invoke the try-on or edit model, and copy the result into object
// storage under a deterministic key.
func (c *Client) GenerateStyle(ctx context.Context, req Request) (*Result, error) {
	if req.ImageURL == "" {
		return nil, fmt.Errorf("%w: empty source image URL", ErrNoMediaReturned)
	}

	srcURL := req.ImageURL
	if isLocalURL(srcURL) {
		uploaded, err := c.reuploadLocal(ctx, srcURL)
		if err != nil {
			return nil, err
		}
		srcURL = uploaded
	}

	var (
		providerURL string
		model       string
		err         error
	)
	if len(req.ReferenceImageURLs) > 0 {
		model = "try-on"
		providerURL, err = c.generator.TryOn(ctx, imagegen.TryOnRequest{
			ModelImageURL:   srcURL,
			GarmentImageURL: req.ReferenceImageURLs[0],
		})
	} else {
		model = "edit"
		providerURL, err = c.generator.Edit(ctx, imagegen.EditRequest{
			ImageURL: srcURL,
			Prompt:   req.Prompt,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, model, err)
	}
	if providerURL == "" {
		return nil, fmt.Errorf("%w: %s model returned empty URL", ErrNoMediaReturned, model)
	}

	result := &Result{
		GeneratedURL: providerURL,
		ProviderURL:  providerURL,
		ModelUsed:    model,
	}

	// Provider URLs are short-lived, so copy to durable storage. A failed
	// copy downgrades to the provider URL rather than failing the whole
	// generation.
	key := fmt.Sprintf("style-suggestions/%s/%s-%d.png", req.PersonaID, req.SessionID, c.now().UnixMilli())
	stored, err := c.copyToStore(ctx, providerURL, key)
	if err != nil {
		c.log.Warn("style result copy failed, falling back to provider URL",
			"key", key, "error", err)
		return result, nil
	}
	result.GeneratedURL = stored
	return result, nil
}

// reuploadLocal fetches a local-only image and uploads it to the generator's
// storage so the generation models can reach it.
func (c *Client) reuploadLocal(ctx context.Context, srcURL string) (string, error) {
	data, contentType, err := c.fetch(ctx, srcURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLocalFetchFailed, err)
	}
	uploaded, err := c.generator.UploadBytes(ctx, data, contentType)
	if err != nil {
		return "", fmt.Errorf("%w: upload: %v", ErrLocalFetchFailed, err)
	}
	return uploaded, nil
}

// copyToStore downloads the provider result and writes it to object storage.
func (c *Client) copyToStore(ctx context.Context, srcURL, key string) (string, error) {
	data, contentType, err := c.fetch(ctx, srcURL)
	if err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "image/png"
	}
	return c.store.Put(ctx, key, data, contentType)
}

// fetch downloads a URL and returns its bytes and content type.
func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", rawURL, err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// isLocalURL reports whether the URL points at a local-only host that the
// generation provider cannot fetch.
func isLocalURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}
