package transcript

import "github.com/solyn-ai/solyn/pkg/types"

// removedImagePlaceholder replaces image-only messages whose image was
// stripped during assembly. Clients depend on this literal.
const removedImagePlaceholder = "[Image content removed from history]"

// Assemble applies the image-retention rules to normalized history.
//
// At most one message in the result carries an image part: the most recent
// image-bearing message, kept verbatim. Every earlier image-bearing message
// is reduced to its text content, or to a placeholder literal when it had no
// text. Text-only messages pass through unchanged.
func Assemble(history []types.Message) []types.Message {
	lastImage := -1
	for i, m := range history {
		if m.HasImage() {
			lastImage = i
		}
	}

	out := make([]types.Message, 0, len(history))
	for i, m := range history {
		if !m.HasImage() || i == lastImage {
			out = append(out, m)
			continue
		}
		text := m.TextContent()
		if text == "" {
			text = removedImagePlaceholder
		}
		out = append(out, types.Text(m.Role, text))
	}
	return out
}
