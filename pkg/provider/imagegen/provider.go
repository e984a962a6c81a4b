// Package imagegen defines the Provider interface for image generation
// backends used by style suggestions.
//
// Two generation modes are exposed: virtual try-on (composite a garment onto a
// person photo) and prompt-guided editing (restyle a photo from a text
// description). Providers also accept raw image uploads so callers can hand
// over frames that have no public URL.
package imagegen

import "context"

// TryOnRequest asks the provider to render the person from ModelImageURL
// wearing the garment from GarmentImageURL.
type TryOnRequest struct {
	// ModelImageURL is a publicly fetchable photo of the person.
	ModelImageURL string

	// GarmentImageURL is a publicly fetchable photo of the garment.
	GarmentImageURL string
}

// EditRequest asks the provider to restyle ImageURL according to Prompt.
type EditRequest struct {
	// ImageURL is a publicly fetchable photo to edit.
	ImageURL string

	// Prompt describes the desired styling change.
	Prompt string
}

// Provider is the abstraction over any image generation backend.
//
// All methods return the URL of the generated or uploaded image. URLs are
// provider-hosted and short-lived; callers that need durable copies must
// re-store the bytes themselves.
type Provider interface {
	// TryOn renders the person wearing the garment and returns the result URL.
	TryOn(ctx context.Context, req TryOnRequest) (string, error)

	// Edit restyles the image per the prompt and returns the result URL.
	Edit(ctx context.Context, req EditRequest) (string, error)

	// UploadBytes stores raw image bytes with the provider and returns a URL
	// the generation models can fetch.
	UploadBytes(ctx context.Context, data []byte, contentType string) (string, error)
}
