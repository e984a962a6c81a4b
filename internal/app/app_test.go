package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	ttsmock "github.com/solyn-ai/solyn/pkg/provider/tts/mock"
	"github.com/solyn-ai/solyn/pkg/types"
)

func TestCheckDefaultVoice_KnownVoiceIsSilent(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	provider := &ttsmock.Provider{
		Voices: []types.VoiceProfile{
			{ID: "v-rachel", Name: "Rachel"},
			{ID: "v-adam", Name: "Adam"},
		},
	}

	checkDefaultVoice(context.Background(), provider, "v-adam",
		slog.New(slog.NewTextHandler(&buf, nil)))

	if provider.ListVoicesCalls != 1 {
		t.Fatalf("ListVoices calls = %d, want 1", provider.ListVoicesCalls)
	}
	if buf.Len() != 0 {
		t.Errorf("known voice should log nothing, got %q", buf.String())
	}
}

func TestCheckDefaultVoice_UnknownVoiceWarns(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	provider := &ttsmock.Provider{
		Voices: []types.VoiceProfile{{ID: "v-rachel", Name: "Rachel"}},
	}

	checkDefaultVoice(context.Background(), provider, "v-missing",
		slog.New(slog.NewTextHandler(&buf, nil)))

	if !strings.Contains(buf.String(), "not found on account") {
		t.Errorf("missing voice should warn, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "v-missing") {
		t.Errorf("warning should name the voice, got %q", buf.String())
	}
}

func TestCheckDefaultVoice_ListErrorWarnsButDoesNotFail(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	provider := &ttsmock.Provider{ListVoicesErr: errors.New("account suspended")}

	checkDefaultVoice(context.Background(), provider, "v-adam",
		slog.New(slog.NewTextHandler(&buf, nil)))

	if !strings.Contains(buf.String(), "could not verify") {
		t.Errorf("lookup failure should warn, got %q", buf.String())
	}
}

func TestCheckDefaultVoice_EmptyVoiceIDSkipsLookup(t *testing.T) {
	t.Parallel()
	provider := &ttsmock.Provider{}

	checkDefaultVoice(context.Background(), provider, "",
		slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	if provider.ListVoicesCalls != 0 {
		t.Errorf("ListVoices calls = %d, want 0", provider.ListVoicesCalls)
	}
}
