package llm

import (
	"context"
	"fmt"
	"strings"

	"clipdex/internal/services"
)

// RelevanceJudgePrompt captures the instructions sent to the configured LLM
// when judging how well a clip transcript illustrates a vocabulary word.
// Update this text centrally so scoring and verification stay in sync.
const RelevanceJudgePrompt = `You are an assistant that judges whether a short video clip helps a language learner understand a vocabulary word.

You receive a target word, its language, and the transcript of a clip. Judge how well the clip illustrates the word's meaning in natural spoken context.

Scoring guidance:

- Score near 1.0 when the word is spoken in a context that makes its meaning clear, with enough surrounding speech to anchor it.
- Score in the middle when the word is spoken but the context is thin, ambiguous, or offers little to learn from.
- Score near 0.0 when the word is absent, appears only as a fragment of another word, or the transcript is unrelated.

List every target-language vocabulary word the clip genuinely illustrates in "illustrated_words", always including the target word when it qualifies. Use the word's dictionary form.

You must respond ONLY with a JSON object like: {"relevance_score": 0.85, "illustrated_words": ["emergency"], "confidence_notes": "short explanation"}

Now judge this clip:`

// Judgment is the schema-constrained verdict returned by the scoring LLM.
type Judgment struct {
	RelevanceScore   float64  `json:"relevance_score"`
	IllustratedWords []string `json:"illustrated_words"`
	ConfidenceNotes  string   `json:"confidence_notes"`
	Raw              string   `json:"-"`
}

// WordPresent reports whether word appears in the illustrated list,
// ignoring case and surrounding space.
func (j Judgment) WordPresent(word string) bool {
	target := strings.ToLower(strings.TrimSpace(word))
	if target == "" {
		return false
	}
	for _, candidate := range j.IllustratedWords {
		if strings.ToLower(strings.TrimSpace(candidate)) == target {
			return true
		}
	}
	return false
}

// JudgeRelevance asks the model how well transcript illustrates word.
// Transport and rate-limit failures pass through unchanged; a completion
// that cannot be parsed against the judgment schema is a quality failure.
func (c *Client) JudgeRelevance(ctx context.Context, word, language, transcript string) (Judgment, error) {
	var empty Judgment
	if strings.TrimSpace(word) == "" {
		return empty, services.Wrap(services.ErrConfiguration, "", "llm judge", "word is empty", nil)
	}
	if strings.TrimSpace(transcript) == "" {
		return empty, services.Wrap(services.ErrQuality, "", "llm judge", fmt.Sprintf("no transcript to judge for %q", word), nil)
	}

	userPrompt := fmt.Sprintf("Target word: %q\nLanguage: %s\n\nTranscript:\n%s", strings.TrimSpace(word), strings.TrimSpace(language), transcript)
	content, err := c.CompleteJSON(ctx, RelevanceJudgePrompt, userPrompt)
	if err != nil {
		return empty, err
	}

	var parsed Judgment
	if err := DecodeJudgmentJSON(content, &parsed); err != nil {
		return empty, services.Wrap(services.ErrQuality, "", "llm judge", "unparseable judgment", err)
	}
	parsed.Raw = content
	if parsed.RelevanceScore < 0 {
		parsed.RelevanceScore = 0
	}
	if parsed.RelevanceScore > 1 {
		parsed.RelevanceScore = 1
	}
	parsed.ConfidenceNotes = strings.TrimSpace(parsed.ConfidenceNotes)
	return parsed, nil
}
