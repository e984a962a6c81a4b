// Package postgres provides a PostgreSQL-backed persona.Store.
//
// Personas live in a single table with JSONB columns for the list-valued
// fields. [Migrate] is idempotent and safe to run on every application start.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solyn-ai/solyn/internal/persona"
)

// Compile-time interface check.
var _ persona.Store = (*Store)(nil)

const ddlPersonas = `
CREATE TABLE IF NOT EXISTS personas (
    id                      TEXT         PRIMARY KEY,
    name                    TEXT         NOT NULL,
    category                TEXT         NOT NULL DEFAULT 'generic',
    system_prompt           TEXT         NOT NULL,
    voice_id                TEXT         NOT NULL DEFAULT '',
    reference_outfits       JSONB        NOT NULL DEFAULT '[]',
    preferred_genres        JSONB        NOT NULL DEFAULT '[]',
    vision_capture_interval BIGINT       NOT NULL DEFAULT 0,
    products_enabled        BOOLEAN      NOT NULL DEFAULT FALSE,
    created_at              TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at              TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_personas_category ON personas (category);
`

// Migrate creates or ensures the personas table exists. Idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlPersonas); err != nil {
		return fmt.Errorf("persona migrate: %w", err)
	}
	return nil
}

// Store implements persona.Store on a PostgreSQL pool.
// All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store on an existing pool and runs [Migrate].
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if err := Migrate(ctx, pool); err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Lookup implements persona.Store.
func (s *Store) Lookup(ctx context.Context, personaID string) (*persona.Persona, error) {
	const q = `
		SELECT id, name, category, system_prompt, voice_id,
		       reference_outfits, preferred_genres,
		       vision_capture_interval, products_enabled
		FROM   personas
		WHERE  id = $1`

	var (
		p            persona.Persona
		category     string
		outfitsJSON  []byte
		genresJSON   []byte
		captureNanos int64
	)
	err := s.pool.QueryRow(ctx, q, personaID).Scan(
		&p.ID,
		&p.Name,
		&category,
		&p.SystemPrompt,
		&p.VoiceID,
		&outfitsJSON,
		&genresJSON,
		&captureNanos,
		&p.ProductsEnabled,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("persona store: lookup %s: %w", personaID, persona.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("persona store: lookup %s: %w", personaID, err)
	}

	p.Category = persona.Category(category)
	p.VisionCaptureInterval = time.Duration(captureNanos)
	if err := json.Unmarshal(outfitsJSON, &p.ReferenceOutfits); err != nil {
		return nil, fmt.Errorf("persona store: decode outfits for %s: %w", personaID, err)
	}
	if err := json.Unmarshal(genresJSON, &p.PreferredGenres); err != nil {
		return nil, fmt.Errorf("persona store: decode genres for %s: %w", personaID, err)
	}
	return &p, nil
}

// Upsert inserts or replaces a persona row. Used by seeding and admin tooling.
func (s *Store) Upsert(ctx context.Context, p *persona.Persona) error {
	outfitsJSON, err := json.Marshal(p.ReferenceOutfits)
	if err != nil {
		return fmt.Errorf("persona store: encode outfits: %w", err)
	}
	genresJSON, err := json.Marshal(p.PreferredGenres)
	if err != nil {
		return fmt.Errorf("persona store: encode genres: %w", err)
	}

	const q = `
		INSERT INTO personas
		    (id, name, category, system_prompt, voice_id,
		     reference_outfits, preferred_genres,
		     vision_capture_interval, products_enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (id) DO UPDATE SET
		    name                    = EXCLUDED.name,
		    category                = EXCLUDED.category,
		    system_prompt           = EXCLUDED.system_prompt,
		    voice_id                = EXCLUDED.voice_id,
		    reference_outfits       = EXCLUDED.reference_outfits,
		    preferred_genres        = EXCLUDED.preferred_genres,
		    vision_capture_interval = EXCLUDED.vision_capture_interval,
		    products_enabled        = EXCLUDED.products_enabled,
		    updated_at              = now()`

	_, err = s.pool.Exec(ctx, q,
		p.ID,
		p.Name,
		string(p.Category),
		p.SystemPrompt,
		p.VoiceID,
		outfitsJSON,
		genresJSON,
		int64(p.VisionCaptureInterval),
		p.ProductsEnabled,
	)
	if err != nil {
		return fmt.Errorf("persona store: upsert %s: %w", p.ID, err)
	}
	return nil
}
