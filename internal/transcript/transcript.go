// Package transcript defines the append-only conversation log and the pure
// functions that turn stored rows into LLM-ready history.
//
// Rows are stored as loosely-typed JSON because the log has accumulated
// several content shapes over time: plain strings, part lists, and legacy
// event objects. [Normalize] converts raw rows into well-formed messages;
// [Assemble] applies the image-retention rules. Both are pure and tested
// independently of any storage backend.
package transcript

import (
	"context"
	"encoding/json"
	"time"

	"github.com/solyn-ai/solyn/pkg/types"
)

// Raw is one stored transcript row before normalization. Content carries the
// original JSON value, which may be a string, a part list, or a legacy object.
type Raw struct {
	// Role is one of "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the unparsed content value.
	Content json.RawMessage `json:"content"`
}

// StyleGenerationRecord is one persisted style-generation result.
type StyleGenerationRecord struct {
	// SessionID is the session the generation ran in.
	SessionID string

	// PersonaID is the stylist persona that produced it.
	PersonaID string

	// OriginalURL is the input image the generation started from.
	OriginalURL string

	// GeneratedURL is the stored result image.
	GeneratedURL string

	// Prompt is the styling prompt used.
	Prompt string

	// CreatedAt is when the record was written.
	CreatedAt time.Time
}

// Store is the persistent conversation log.
//
// Implementations must be safe for concurrent use. Appends within one session
// are observed in the order they were issued.
type Store interface {
	// OpenSession records the start of a session. userID may be empty for
	// anonymous sessions.
	OpenSession(ctx context.Context, sessionID, userID, personaID string) error

	// CloseSession records the end of a session. Unknown IDs are a no-op.
	CloseSession(ctx context.Context, sessionID string) error

	// Append atomically appends messages to the session's transcript,
	// preserving order.
	Append(ctx context.Context, sessionID string, messages []types.Message) error

	// HistoryFor returns every transcript row for the (user, persona) pair
	// across all of their sessions, oldest first.
	HistoryFor(ctx context.Context, userID, personaID string) ([]Raw, error)

	// RecordStyleGeneration persists one style-generation result.
	RecordStyleGeneration(ctx context.Context, rec StyleGenerationRecord) error

	// StyleGenerations returns the session's style-generation records,
	// oldest first.
	StyleGenerations(ctx context.Context, sessionID string) ([]StyleGenerationRecord, error)
}
