package transcript

import (
	"encoding/json"
	"fmt"

	"github.com/solyn-ai/solyn/pkg/types"
)

// rawPart covers both the native part shape and the OpenAI-style shape found
// in older rows.
type rawPart struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
	URL  string `json:"url"`

	Type     string `json:"type"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

// legacyEvent is the object-shaped content written by older fitness sessions.
type legacyEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Normalize converts raw transcript rows into well-formed messages.
//
// String content passes through. Part lists are converted part by part.
// Legacy event objects are rewritten to their documented string forms:
// workout plans, performance analyses, and exercise events each get a labeled
// JSON dump; unknown object shapes become a bracketed system-event marker.
// Rows whose content cannot be interpreted at all are dropped.
func Normalize(rows []Raw) []types.Message {
	out := make([]types.Message, 0, len(rows))
	for _, row := range rows {
		msg, ok := normalizeRow(row)
		if !ok {
			continue
		}
		out = append(out, msg)
	}
	return out
}

func normalizeRow(row Raw) (types.Message, bool) {
	if len(row.Content) == 0 {
		return types.Message{}, false
	}

	var text string
	if err := json.Unmarshal(row.Content, &text); err == nil {
		return types.Text(row.Role, text), true
	}

	var rawParts []rawPart
	if err := json.Unmarshal(row.Content, &rawParts); err == nil {
		parts := convertParts(rawParts)
		if len(parts) == 0 {
			return types.Message{}, false
		}
		return types.Message{Role: row.Role, Parts: parts}, true
	}

	var ev legacyEvent
	if err := json.Unmarshal(row.Content, &ev); err == nil && ev.Type != "" {
		return types.Text(row.Role, legacyEventText(ev)), true
	}

	return types.Message{}, false
}

// convertParts maps raw part entries to typed parts, skipping entries with no
// usable payload.
func convertParts(raw []rawPart) []types.Part {
	parts := make([]types.Part, 0, len(raw))
	for _, p := range raw {
		switch {
		case p.Kind == string(types.PartText) || p.Type == "text":
			if p.Text == "" {
				continue
			}
			parts = append(parts, types.Part{Kind: types.PartText, Text: p.Text})
		case p.Kind == string(types.PartImage):
			if p.URL == "" {
				continue
			}
			parts = append(parts, types.Part{Kind: types.PartImage, URL: p.URL})
		case p.Type == "image_url" && p.ImageURL != nil:
			if p.ImageURL.URL == "" {
				continue
			}
			parts = append(parts, types.Part{Kind: types.PartImage, URL: p.ImageURL.URL})
		}
	}
	return parts
}

// legacyEventText rewrites an object-shaped row to its string form.
func legacyEventText(ev legacyEvent) string {
	data := string(ev.Data)
	if data == "" {
		data = "{}"
	}
	switch ev.Type {
	case "workout_plan":
		return "Workout plan generated: " + data
	case "performance_analysis":
		return "Performance analysis generated: " + data
	case "exercise_event":
		return "Exercise event: " + data
	default:
		return fmt.Sprintf("[System event: %s]", ev.Type)
	}
}
