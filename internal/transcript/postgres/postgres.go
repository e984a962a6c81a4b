// Package postgres provides a PostgreSQL-backed transcript.Store.
//
// Each session is one row; its transcript is a JSONB array appended to with
// the || operator, which keeps per-session appends totally ordered without a
// separate messages table. Style generations live in their own table.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solyn-ai/solyn/internal/transcript"
	"github.com/solyn-ai/solyn/pkg/types"
)

// Compile-time interface check.
var _ transcript.Store = (*Store)(nil)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT         PRIMARY KEY,
    user_id    TEXT         NOT NULL DEFAULT '',
    persona_id TEXT         NOT NULL,
    started_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
    ended_at   TIMESTAMPTZ,
    transcript JSONB        NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_sessions_user_persona
    ON sessions (user_id, persona_id, started_at);
`

const ddlStyleGenerations = `
CREATE TABLE IF NOT EXISTS style_generations (
    id            BIGSERIAL    PRIMARY KEY,
    session_id    TEXT         NOT NULL,
    persona_id    TEXT         NOT NULL,
    original_url  TEXT         NOT NULL,
    generated_url TEXT         NOT NULL,
    prompt        TEXT         NOT NULL,
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_style_generations_session
    ON style_generations (session_id, created_at);
`

// Migrate creates or ensures all transcript tables exist. Idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []string{ddlSessions, ddlStyleGenerations} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("transcript migrate: %w", err)
		}
	}
	return nil
}

// Store implements transcript.Store on a PostgreSQL pool.
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

// OpenSession implements transcript.Store.
func (s *Store) OpenSession(ctx context.Context, sessionID, userID, personaID string) error {
	const q = `
		INSERT INTO sessions (id, user_id, persona_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`

	if _, err := s.pool.Exec(ctx, q, sessionID, userID, personaID); err != nil {
		return fmt.Errorf("transcript store: open session %s: %w", sessionID, err)
	}
	return nil
}

// CloseSession implements transcript.Store.
func (s *Store) CloseSession(ctx context.Context, sessionID string) error {
	const q = `UPDATE sessions SET ended_at = now() WHERE id = $1 AND ended_at IS NULL`

	if _, err := s.pool.Exec(ctx, q, sessionID); err != nil {
		return fmt.Errorf("transcript store: close session %s: %w", sessionID, err)
	}
	return nil
}

// Append implements transcript.Store. Messages are encoded as transcript rows
// and appended in a single statement, so concurrent appenders cannot
// interleave within one batch.
func (s *Store) Append(ctx context.Context, sessionID string, messages []types.Message) error {
	if len(messages) == 0 {
		return nil
	}

	rows := make([]transcript.Raw, 0, len(messages))
	for _, m := range messages {
		raw, err := encodeMessage(m)
		if err != nil {
			return fmt.Errorf("transcript store: encode message: %w", err)
		}
		rows = append(rows, raw)
	}
	batch, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("transcript store: encode batch: %w", err)
	}

	const q = `UPDATE sessions SET transcript = transcript || $2::jsonb WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, sessionID, batch)
	if err != nil {
		return fmt.Errorf("transcript store: append to %s: %w", sessionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transcript store: append to %s: session not found", sessionID)
	}
	return nil
}

// HistoryFor implements transcript.Store. Rows are returned in session start
// order, then in-session order.
func (s *Store) HistoryFor(ctx context.Context, userID, personaID string) ([]transcript.Raw, error) {
	const q = `
		SELECT transcript
		FROM   sessions
		WHERE  user_id = $1 AND persona_id = $2
		ORDER  BY started_at`

	rows, err := s.pool.Query(ctx, q, userID, personaID)
	if err != nil {
		return nil, fmt.Errorf("transcript store: history for %s/%s: %w", userID, personaID, err)
	}
	defer rows.Close()

	var history []transcript.Raw
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("transcript store: scan history: %w", err)
		}
		var sessionRows []transcript.Raw
		if err := json.Unmarshal(blob, &sessionRows); err != nil {
			return nil, fmt.Errorf("transcript store: decode history: %w", err)
		}
		history = append(history, sessionRows...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transcript store: history rows: %w", err)
	}
	return history, nil
}

// RecordStyleGeneration implements transcript.Store.
func (s *Store) RecordStyleGeneration(ctx context.Context, rec transcript.StyleGenerationRecord) error {
	const q = `
		INSERT INTO style_generations
		    (session_id, persona_id, original_url, generated_url, prompt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, q,
		rec.SessionID,
		rec.PersonaID,
		rec.OriginalURL,
		rec.GeneratedURL,
		rec.Prompt,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("transcript store: record style generation: %w", err)
	}
	return nil
}

// StyleGenerations implements transcript.Store.
func (s *Store) StyleGenerations(ctx context.Context, sessionID string) ([]transcript.StyleGenerationRecord, error) {
	const q = `
		SELECT session_id, persona_id, original_url, generated_url, prompt, created_at
		FROM   style_generations
		WHERE  session_id = $1
		ORDER  BY created_at`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("transcript store: style generations for %s: %w", sessionID, err)
	}

	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (transcript.StyleGenerationRecord, error) {
		var rec transcript.StyleGenerationRecord
		err := row.Scan(
			&rec.SessionID,
			&rec.PersonaID,
			&rec.OriginalURL,
			&rec.GeneratedURL,
			&rec.Prompt,
			&rec.CreatedAt,
		)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("transcript store: collect style generations: %w", err)
	}
	return recs, nil
}

// encodeMessage converts a typed message into its stored row shape.
func encodeMessage(m types.Message) (transcript.Raw, error) {
	var content any
	if m.IsText() {
		content = m.Content
	} else {
		content = m.Parts
	}
	blob, err := json.Marshal(content)
	if err != nil {
		return transcript.Raw{}, err
	}
	return transcript.Raw{Role: m.Role, Content: blob}, nil
}
