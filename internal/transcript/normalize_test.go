package transcript_test

import (
	"encoding/json"
	"testing"

	"github.com/solyn-ai/solyn/internal/transcript"
	"github.com/solyn-ai/solyn/pkg/types"
)

func raw(role, content string) transcript.Raw {
	return transcript.Raw{Role: role, Content: json.RawMessage(content)}
}

func TestNormalize_StringContent(t *testing.T) {
	t.Parallel()
	msgs := transcript.Normalize([]transcript.Raw{raw("user", `"hello"`)})
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "hello" {
		t.Errorf("message = %+v", msgs[0])
	}
}

func TestNormalize_NativeParts(t *testing.T) {
	t.Parallel()
	content := `[{"kind":"text","text":"look"},{"kind":"image","url":"https://img/1.png"}]`
	msgs := transcript.Normalize([]transcript.Raw{raw("user", content)})
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if len(msgs[0].Parts) != 2 {
		t.Fatalf("got %d parts", len(msgs[0].Parts))
	}
	if msgs[0].Parts[1].Kind != types.PartImage || msgs[0].Parts[1].URL != "https://img/1.png" {
		t.Errorf("image part = %+v", msgs[0].Parts[1])
	}
}

func TestNormalize_OpenAIStyleParts(t *testing.T) {
	t.Parallel()
	content := `[{"type":"text","text":"check this"},{"type":"image_url","image_url":{"url":"https://img/2.png"}}]`
	msgs := transcript.Normalize([]transcript.Raw{raw("user", content)})
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if !msgs[0].HasImage() {
		t.Fatalf("image_url part should convert to an image part: %+v", msgs[0])
	}
	if msgs[0].Parts[1].URL != "https://img/2.png" {
		t.Errorf("image URL = %q", msgs[0].Parts[1].URL)
	}
}

func TestNormalize_LegacyEvents(t *testing.T) {
	t.Parallel()
	cases := []struct {
		content string
		want    string
	}{
		{`{"type":"workout_plan","data":{"days":3}}`, `Workout plan generated: {"days":3}`},
		{`{"type":"performance_analysis","data":{"score":7}}`, `Performance analysis generated: {"score":7}`},
		{`{"type":"exercise_event","data":{"reps":10}}`, `Exercise event: {"reps":10}`},
		{`{"type":"mystery_event"}`, `[System event: mystery_event]`},
	}
	for _, c := range cases {
		msgs := transcript.Normalize([]transcript.Raw{raw("assistant", c.content)})
		if len(msgs) != 1 {
			t.Fatalf("content %s: got %d messages", c.content, len(msgs))
		}
		if msgs[0].Content != c.want {
			t.Errorf("content %s: got %q, want %q", c.content, msgs[0].Content, c.want)
		}
	}
}

func TestNormalize_DropsUninterpretableRows(t *testing.T) {
	t.Parallel()
	rows := []transcript.Raw{
		raw("user", `"keep me"`),
		{Role: "user"},       // empty content
		raw("user", `12345`), // neither string, parts, nor event
		raw("user", `[]`),    // part list with nothing usable
	}
	msgs := transcript.Normalize(rows)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1: %+v", len(msgs), msgs)
	}
	if msgs[0].Content != "keep me" {
		t.Errorf("survivor = %+v", msgs[0])
	}
}
