// Package persona defines the persona agent model and its read-only store.
//
// A persona is the named agent configuration a session runs as: its system
// prompt, voice, category, and optional styling assets. Personas are loaded
// on demand and treated as immutable for the lifetime of a session.
package persona

import (
	"context"
	"errors"
	"time"
)

// Category classifies a persona and gates which tools it may use.
type Category string

const (
	// CategoryStylist personas may run style suggestions and try-ons.
	CategoryStylist Category = "stylist"

	// CategoryProducer personas focus on music production conversations.
	CategoryProducer Category = "producer"

	// CategoryFitness personas focus on workout coaching conversations.
	CategoryFitness Category = "fitness"

	// CategoryGeneric is the default for personas with no specialism.
	CategoryGeneric Category = "generic"
)

// ReferenceOutfit is a named, imaged garment attached to a stylist persona.
// The style-suggestion tool can select one for virtual try-on.
type ReferenceOutfit struct {
	// ID is the outfit's unique identifier.
	ID string `json:"id"`

	// Name is the outfit's display name.
	Name string `json:"name"`

	// Brand is the garment's brand name.
	Brand string `json:"brand,omitempty"`

	// ImageURL is a publicly fetchable photo of the garment.
	ImageURL string `json:"image_url"`

	// Tags are free-form labels ("streetwear", "formal").
	Tags []string `json:"tags,omitempty"`

	// Description is a longer free-text description.
	Description string `json:"description,omitempty"`
}

// Persona is a named agent configuration.
type Persona struct {
	// ID is the persona's unique identifier (the client's avatarId).
	ID string

	// Name is the persona's display name.
	Name string

	// Category classifies the persona.
	Category Category

	// SystemPrompt is the base instruction block for the LLM.
	SystemPrompt string

	// VoiceID selects the TTS voice. Empty means the configured default.
	VoiceID string

	// ReferenceOutfits is the ordered outfit list for stylist personas.
	ReferenceOutfits []ReferenceOutfit

	// PreferredGenres lists music genres for producer personas.
	PreferredGenres []string

	// VisionCaptureInterval hints how often the client should push camera
	// frames. Zero means no periodic capture.
	VisionCaptureInterval time.Duration

	// ProductsEnabled gates the trending-products tool.
	ProductsEnabled bool
}

// IsStylist reports whether the persona may use the style-suggestion tool.
func (p *Persona) IsStylist() bool { return p.Category == CategoryStylist }

// ErrNotFound is returned by Store.Lookup when no persona has the given ID.
var ErrNotFound = errors.New("persona: not found")

// Store is the read-only persona lookup.
//
// Implementations must be safe for concurrent use. Lookup returns
// [ErrNotFound] (possibly wrapped) for unknown IDs.
type Store interface {
	Lookup(ctx context.Context, personaID string) (*Persona, error)
}
