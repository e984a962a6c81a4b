// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// ElevenLabs streaming WebSocket API. It implements the tts.Provider interface.
//
// Each Synthesize call opens its own stream-input WebSocket, sends the full
// text, and relays audio chunks with per-character alignment until the
// provider signals the end of the stream.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coder/websocket"

	"github.com/solyn-ai/solyn/pkg/provider/tts"
	"github.com/solyn-ai/solyn/pkg/types"
)

const (
	wsEndpointFmt  = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=%s"
	voicesEndpoint = "https://api.elevenlabs.io/v1/voices"
	defaultModel   = "eleven_flash_v2_5"
	defaultOutput  = "mp3_44100_128"
)

// Compile-time assertions.
var (
	_ tts.Provider    = (*Provider)(nil)
	_ tts.VoiceLister = (*Provider)(nil)
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the audio output format (e.g., "mp3_44100_128").
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithBaseURL overrides the WebSocket base endpoint. Used in tests.
func WithBaseURL(base string) Option {
	return func(p *Provider) {
		p.endpointFmt = base + "/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=%s"
	}
}

// WithVoicesURL overrides the REST voices endpoint. Used in tests.
func WithVoicesURL(u string) Option {
	return func(p *Provider) {
		p.voicesURL = u
	}
}

// Provider implements tts.Provider backed by the ElevenLabs streaming API.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	endpointFmt  string
	voicesURL    string
	httpClient   *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutput,
		endpointFmt:  wsEndpointFmt,
		voicesURL:    voicesEndpoint,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ── WebSocket message types ────────────────────────────────────────────────────

// boiMessage is the initial "begin of input" handshake payload.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
}

// textMessage carries a text fragment. An empty Text signals end of input.
type textMessage struct {
	Text  string `json:"text"`
	Flush bool   `json:"flush,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// audioResponse is a single message received over the stream-input socket.
type audioResponse struct {
	Audio     string        `json:"audio"` // base64-encoded
	IsFinal   bool          `json:"isFinal"`
	Alignment *rawAlignment `json:"alignment,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// rawAlignment is the provider's per-character timing payload: character start
// offsets and durations in milliseconds.
type rawAlignment struct {
	Chars            []string `json:"chars"`
	CharStartTimesMs []int    `json:"charStartTimesMs"`
	CharDurationsMs  []int    `json:"charDurationsMs"`
}

// ── Synthesize ─────────────────────────────────────────────────────────────────

// Synthesize implements tts.Provider. It opens a stream-input WebSocket for
// the voice, sends the full text followed by the end-of-input token, and
// relays decoded audio frames until the provider marks the stream final.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (<-chan tts.Frame, error) {
	if voice.ID == "" {
		return nil, errors.New("elevenlabs: voice.ID must not be empty")
	}
	if text == "" {
		return nil, errors.New("elevenlabs: text must not be empty")
	}

	wsURL := buildURLForVoice(p.endpointFmt, voice.ID, p.model, p.outputFormat)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}

	boi := boiMessage{
		Text: " ", // the first text value must be non-empty
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
		XiAPIKey: p.apiKey,
	}
	boiBytes, _ := json.Marshal(boi)
	if err := conn.Write(ctx, websocket.MessageText, boiBytes); err != nil {
		conn.Close(websocket.StatusInternalError, "failed to send BOI")
		return nil, fmt.Errorf("elevenlabs: send BOI: %w", err)
	}

	// Trailing space lets the model treat the segment as complete speech.
	payload, _ := json.Marshal(textMessage{Text: text + " ", Flush: true})
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		conn.Close(websocket.StatusInternalError, "failed to send text")
		return nil, fmt.Errorf("elevenlabs: send text: %w", err)
	}
	eos, _ := json.Marshal(textMessage{Text: ""})
	if err := conn.Write(ctx, websocket.MessageText, eos); err != nil {
		conn.Close(websocket.StatusInternalError, "failed to send EOS")
		return nil, fmt.Errorf("elevenlabs: send EOS: %w", err)
	}

	frames := make(chan tts.Frame, 64)
	go func() {
		defer close(frames)
		defer conn.Close(websocket.StatusNormalClosure, "done")

		for {
			_, msg, err := conn.Read(ctx)
			if err != nil {
				return
			}
			frame, final, ok := parseAudioResponse(msg)
			if ok {
				select {
				case frames <- frame:
				case <-ctx.Done():
					return
				}
			}
			if final {
				return
			}
		}
	}()

	return frames, nil
}

// parseAudioResponse decodes a stream-input message into a Frame. ok is false
// when the message carries no audio (keep-alives, errors, final markers).
func parseAudioResponse(msg []byte) (frame tts.Frame, final, ok bool) {
	var resp audioResponse
	if err := json.Unmarshal(msg, &resp); err != nil {
		return tts.Frame{}, false, false
	}
	if resp.IsFinal {
		return tts.Frame{}, true, false
	}
	if resp.Audio == "" {
		return tts.Frame{}, false, false
	}
	audio, err := base64.StdEncoding.DecodeString(resp.Audio)
	if err != nil {
		return tts.Frame{}, false, false
	}
	return tts.Frame{
		Audio:     audio,
		Alignment: convertAlignment(resp.Alignment),
	}, false, true
}

// convertAlignment maps the provider's millisecond start/duration pairs to
// start/end offsets in seconds.
func convertAlignment(raw *rawAlignment) *types.AlignmentFrame {
	if raw == nil || len(raw.Chars) == 0 {
		return nil
	}
	out := &types.AlignmentFrame{
		Characters:   raw.Chars,
		StartSeconds: make([]float64, len(raw.Chars)),
		EndSeconds:   make([]float64, len(raw.Chars)),
	}
	for i := range raw.Chars {
		var startMs, durMs int
		if i < len(raw.CharStartTimesMs) {
			startMs = raw.CharStartTimesMs[i]
		}
		if i < len(raw.CharDurationsMs) {
			durMs = raw.CharDurationsMs[i]
		}
		out.StartSeconds[i] = float64(startMs) / 1000
		out.EndSeconds[i] = float64(startMs+durMs) / 1000
	}
	return out
}

// buildURLForVoice constructs the WebSocket URL for a voice, model, and output
// format.
func buildURLForVoice(endpointFmt, voiceID, model, output string) string {
	return fmt.Sprintf(endpointFmt, url.PathEscape(voiceID), model, output)
}

// ── ListVoices ─────────────────────────────────────────────────────────────────

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

// elevenLabsVoice is a single voice entry from the ElevenLabs API.
type elevenLabsVoice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels"`
}

// ListVoices returns all voices available for the configured API key. It
// implements tts.VoiceLister.
func (p *Provider) ListVoices(ctx context.Context) ([]types.VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.voicesURL, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: unexpected status %d", resp.StatusCode)
	}

	var vr voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w", err)
	}
	return convertVoices(vr.Voices), nil
}

// convertVoices maps ElevenLabs voice entries to VoiceProfile values.
func convertVoices(voices []elevenLabsVoice) []types.VoiceProfile {
	profiles := make([]types.VoiceProfile, 0, len(voices))
	for _, v := range voices {
		meta := make(map[string]string, len(v.Labels)+1)
		for k, val := range v.Labels {
			meta[k] = val
		}
		if v.Category != "" {
			meta["category"] = v.Category
		}
		profiles = append(profiles, types.VoiceProfile{
			ID:       v.VoiceID,
			Name:     v.Name,
			Provider: "elevenlabs",
			Metadata: meta,
		})
	}
	return profiles
}
