package tools

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/solyn-ai/solyn/internal/persona"
)

// Field weights for outfit matching. Brand hits outrank name hits, which
// outrank tag and description hits.
const (
	weightBrand       = 1.0
	weightName        = 0.8
	weightTag         = 0.6
	weightDescription = 0.4

	// matchThreshold is the minimum weighted score for a fuzzy pick; below
	// it the selection falls back to the first outfit.
	matchThreshold = 0.55
)

// selectOutfit picks a reference outfit for a try-on request.
//
// An in-range explicit index wins. Otherwise the prompt is fuzzy-matched
// against each outfit's brand, name, tags, and description words; the best
// scorer above the threshold wins, else the first outfit.
func selectOutfit(outfits []persona.ReferenceOutfit, index int, prompt string) persona.ReferenceOutfit {
	if index >= 0 && index < len(outfits) {
		return outfits[index]
	}

	best := 0
	bestScore := 0.0
	for i, outfit := range outfits {
		if score := outfitScore(outfit, prompt); score > bestScore {
			best = i
			bestScore = score
		}
	}
	if bestScore < matchThreshold {
		return outfits[0]
	}
	return outfits[best]
}

// outfitScore is the best weighted field similarity between the prompt and
// one outfit.
func outfitScore(outfit persona.ReferenceOutfit, prompt string) float64 {
	words := strings.Fields(strings.ToLower(prompt))
	if len(words) == 0 {
		return 0
	}

	score := fieldScore(outfit.Brand, words) * weightBrand
	if s := fieldScore(outfit.Name, words) * weightName; s > score {
		score = s
	}
	for _, tag := range outfit.Tags {
		if s := fieldScore(tag, words) * weightTag; s > score {
			score = s
		}
	}
	if s := fieldScore(outfit.Description, words) * weightDescription; s > score {
		score = s
	}
	return score
}

// fieldScore is the best Jaro-Winkler similarity between any prompt word and
// any word of the field value.
func fieldScore(value string, promptWords []string) float64 {
	if value == "" {
		return 0
	}
	best := 0.0
	for _, fieldWord := range strings.Fields(strings.ToLower(value)) {
		for _, promptWord := range promptWords {
			if sim := matchr.JaroWinkler(promptWord, fieldWord, true); sim > best {
				best = sim
			}
		}
	}
	return best
}
