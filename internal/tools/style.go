package tools

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/solyn-ai/solyn/internal/event"
	"github.com/solyn-ai/solyn/internal/stylegen"
	"github.com/solyn-ai/solyn/internal/transcript"
	"github.com/solyn-ai/solyn/pkg/provider/llm"
	"github.com/solyn-ai/solyn/pkg/types"
)

// visionMaxAgeForTool is how old a captured frame may be for a tool-invoked
// style request. Voice turns use a tighter inline window; explicit style
// requests tolerate an older frame.
const visionMaxAgeForTool = 5 * time.Minute

const (
	missingImageReply    = "I'd love to style you, but I need to see your current outfit first! Could you step in front of the camera for a moment?"
	styleApologyReply    = "I'm sorry, I couldn't finish that style suggestion. Want me to try again?"
	defaultLeadInReply   = "Let me put that look together for you!"
	celebrationFallback  = "Here's your new look! I hope you love it!"
	celebrationMaxTokens = 50
)

// styleArgs is the decoded argument payload of generate_style_suggestion.
type styleArgs struct {
	SuggestionPrompt     string `json:"suggestion_prompt"`
	UseReferenceOutfit   bool   `json:"use_reference_outfit"`
	ReferenceOutfitIndex *int   `json:"reference_outfit_index"`
}

// dispatchStyle handles generate_style_suggestion. It resolves the input
// image, emits an interim feedback annotation, and schedules the actual
// generation in the background; the completion or error is pushed to the
// client when the generation resolves.
func (r *Registry) dispatchStyle(ctx context.Context, call types.ToolCall, tc *TurnContext) Outcome {
	if !tc.Persona.IsStylist() || tc.SessionID == "" {
		return Outcome{Text: tc.LeadInText}
	}

	var args styleArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		r.log.Warn("style tool arguments undecodable", "session_id", tc.SessionID, "error", err)
		return Outcome{Text: tc.LeadInText}
	}

	imageURL, ok := r.resolveInputImage(ctx, tc)
	if !ok {
		return Outcome{Text: missingImageReply}
	}

	var referenceURLs []string
	if args.UseReferenceOutfit && len(tc.Persona.ReferenceOutfits) > 0 {
		index := -1
		if args.ReferenceOutfitIndex != nil {
			index = *args.ReferenceOutfitIndex
		}
		outfit := selectOutfit(tc.Persona.ReferenceOutfits, index, args.SuggestionPrompt)
		referenceURLs = []string{outfit.ImageURL}
	}

	generatingID := uuid.NewString()
	leadIn := tc.LeadInText
	if leadIn == "" {
		leadIn = defaultLeadInReply
	}

	req := stylegen.Request{
		ImageURL:           imageURL,
		Prompt:             args.SuggestionPrompt,
		SessionID:          tc.SessionID,
		PersonaID:          tc.Persona.ID,
		ReferenceImageURLs: referenceURLs,
	}
	tc.Background(func(bgCtx context.Context) {
		r.runStyleGeneration(bgCtx, req, tc, generatingID, args.SuggestionPrompt)
	})

	return Outcome{
		Text: leadIn,
		Style: &event.StyleGeneration{
			Type:                "feedback",
			GeneratingMessageID: generatingID,
			Prompt:              args.SuggestionPrompt,
		},
	}
}

// resolveInputImage picks the photo the generation starts from: the session's
// recent vision frame if fresh enough, else the most recent image in the
// cross-session history, else the session's latest generated look so the user
// can iterate on it.
func (r *Registry) resolveInputImage(ctx context.Context, tc *TurnContext) (string, bool) {
	if len(tc.VisionImage) > 0 && r.now().Sub(tc.VisionCapturedAt) < visionMaxAgeForTool {
		url, err := r.generator.UploadBytes(ctx, tc.VisionImage, "image/jpeg")
		if err != nil {
			r.log.Warn("vision frame upload failed, falling back to history",
				"session_id", tc.SessionID, "error", err)
		} else {
			return url, true
		}
	}

	rows, err := r.store.HistoryFor(ctx, tc.UserID, tc.Persona.ID)
	if err != nil {
		r.log.Warn("history lookup for style image failed", "session_id", tc.SessionID, "error", err)
		return "", false
	}
	history := transcript.Normalize(rows)
	for i := len(history) - 1; i >= 0; i-- {
		for _, part := range history[i].Parts {
			if part.Kind == types.PartImage && part.URL != "" {
				return part.URL, true
			}
		}
	}

	generations, err := r.store.StyleGenerations(ctx, tc.SessionID)
	if err != nil {
		r.log.Warn("style generation lookup failed", "session_id", tc.SessionID, "error", err)
		return "", false
	}
	if len(generations) > 0 {
		return generations[len(generations)-1].GeneratedURL, true
	}
	return "", false
}

// runStyleGeneration executes the generation in the background and pushes the
// terminal completion or error event.
func (r *Registry) runStyleGeneration(ctx context.Context, req stylegen.Request, tc *TurnContext, generatingID, prompt string) {
	result, err := r.styler.GenerateStyle(ctx, req)
	if err != nil {
		r.log.Error("style generation failed",
			"session_id", tc.SessionID, "persona_id", tc.Persona.ID, "error", err)
		tc.Sink.Send(event.StyleSuggestionError{
			AvatarID: tc.Persona.ID,
			Error:    styleApologyReply,
		})
		return
	}

	rec := transcript.StyleGenerationRecord{
		SessionID:    tc.SessionID,
		PersonaID:    tc.Persona.ID,
		OriginalURL:  req.ImageURL,
		GeneratedURL: result.GeneratedURL,
		Prompt:       prompt,
		CreatedAt:    r.now(),
	}
	if err := r.store.RecordStyleGeneration(ctx, rec); err != nil {
		// Bookkeeping only; the user still gets their image.
		r.log.Warn("style generation record write failed", "session_id", tc.SessionID, "error", err)
	}

	tc.Sink.Send(event.LLMResponseComplete{
		FullResponse: r.celebrationLine(ctx, tc, prompt),
		AvatarID:     tc.Persona.ID,
		Complete:     true,
		StyleGeneration: &event.StyleGeneration{
			Type:                "completion",
			GeneratingMessageID: generatingID,
			ImageURL:            result.GeneratedURL,
			Description:         prompt,
		},
	})
}

// celebrationLine asks the model for one short celebratory sentence about the
// finished look, falling back to a fixed line on any failure.
func (r *Registry) celebrationLine(ctx context.Context, tc *TurnContext, prompt string) string {
	resp, err := r.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: tc.Persona.SystemPrompt,
		Messages: []types.Message{
			types.Text("user", "The styled image you made for me just finished: "+prompt+". React with one short, excited sentence."),
		},
		MaxTokens:   celebrationMaxTokens,
		Temperature: 0.9,
	})
	if err != nil || resp == nil || resp.Content == "" {
		return celebrationFallback
	}
	return resp.Content
}
