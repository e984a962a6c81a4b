package event_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/solyn-ai/solyn/internal/event"
)

func TestMarshal_FlatEnvelope(t *testing.T) {
	t.Parallel()
	data, err := event.Marshal(event.LLMResponseChunk{
		Content:  "Hi",
		AvatarID: "a1",
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"event":"llm_response_chunk","content":"Hi","avatarId":"a1","complete":false}`
	if string(data) != want {
		t.Errorf("wire form = %s, want %s", data, want)
	}
}

func TestMarshal_CompleteWithStyleGeneration(t *testing.T) {
	t.Parallel()
	data, err := event.Marshal(event.LLMResponseComplete{
		FullResponse: "Let me style you!",
		AvatarID:     "a1",
		Complete:     true,
		StyleGeneration: &event.StyleGeneration{
			Type:                "feedback",
			GeneratingMessageID: "gen-1",
			Prompt:              "red dress",
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("wire form is not valid JSON: %v", err)
	}
	if decoded["event"] != "llm_response_complete" {
		t.Errorf("discriminator = %v", decoded["event"])
	}
	sg, ok := decoded["styleGeneration"].(map[string]any)
	if !ok {
		t.Fatalf("styleGeneration missing: %s", data)
	}
	if sg["type"] != "feedback" || sg["generatingMessageId"] != "gen-1" {
		t.Errorf("styleGeneration = %v", sg)
	}
}

func TestMarshal_ContextUpdateKeepsInnerType(t *testing.T) {
	t.Parallel()
	// The payload's own "type" field carries the purchase status; the
	// envelope discriminator must not collide with it.
	data, err := event.Marshal(event.LLMContextUpdate{
		Status:    "wallet-connected",
		Guidance:  "The user's wallet is connected.",
		SessionID: "s1",
	})
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["event"] != "llm-context-update" {
		t.Errorf("discriminator = %v", decoded["event"])
	}
	if decoded["type"] != "wallet-connected" {
		t.Errorf("inner type = %v", decoded["type"])
	}
}

func TestMarshal_ProductsDisplayTimestamp(t *testing.T) {
	t.Parallel()
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	data, err := event.Marshal(event.ProductsDisplay{
		Products:  []string{},
		SessionID: "s1",
		Timestamp: ts,
	})
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["sessionId"] != "s1" {
		t.Errorf("sessionId = %v", decoded["sessionId"])
	}
	if decoded["timestamp"] != "2025-06-01T12:00:00Z" {
		t.Errorf("timestamp = %v", decoded["timestamp"])
	}
}

func TestDroppable_OnlyAlignment(t *testing.T) {
	t.Parallel()
	events := []event.Envelope{
		event.TranscriptionPartial{},
		event.TranscriptionFinal{},
		event.UserSpoke{},
		event.LLMResponseStart{},
		event.LLMResponseChunk{},
		event.LLMResponseComplete{},
		event.LLMResponseError{},
		event.TTSStream{},
		event.InterruptionReply{},
		event.ProductsDisplay{},
		event.StyleSuggestionError{},
		event.LLMContextUpdate{},
	}
	for _, ev := range events {
		if ev.Droppable() {
			t.Errorf("%s must not be droppable", ev.EventType())
		}
	}
	if !(event.TTSStreamAlignment{}).Droppable() {
		t.Error("alignment frames must be droppable")
	}
}
