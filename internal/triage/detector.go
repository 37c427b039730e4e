package triage

import (
	"github.com/sells-group/integration-desk/internal/model"
	"github.com/sells-group/integration-desk/internal/vocab"
)

// Tone is the rule-detected emotional register of an inquiry, in strict
// priority order.
type Tone string

const (
	ToneUrgentFrustrated Tone = "urgent_frustrated"
	ToneUrgent           Tone = "urgent"
	ToneFrustrated       Tone = "frustrated"
	ToneConsultative     Tone = "consultative"
	ToneNeutral          Tone = "neutral"
)

// DetectCategory runs the weighted keyword detector: the category with
// the highest cumulative hit count wins, ties broken by table declaration
// order, GENERAL when nothing matches.
func DetectCategory(text string, tables *vocab.Tables) model.Category {
	best := model.CategoryGeneral
	bestHits := 0
	for _, name := range tables.CategoryOrder() {
		hits := vocab.CountHits(text, tables.Categories[name])
		if hits > bestHits {
			bestHits = hits
			best = model.Category(name)
		}
	}
	return best
}

// DetectTone combines the urgency, frustration, and question indicator
// sets into a single tone label.
func DetectTone(text string, tables *vocab.Tables) Tone {
	urgent := vocab.CountHits(text, tables.Tones.Urgency) > 0
	frustrated := vocab.CountHits(text, tables.Tones.Frustration) > 0
	question := vocab.CountHits(text, tables.Tones.Question) > 0

	switch {
	case urgent && frustrated:
		return ToneUrgentFrustrated
	case urgent:
		return ToneUrgent
	case frustrated:
		return ToneFrustrated
	case question:
		return ToneConsultative
	default:
		return ToneNeutral
	}
}

// HasUrgencyKeywords reports whether any high-urgency indicator occurs in
// the text. Used for post-classification urgency escalation and for the
// malformed-output fallback.
func HasUrgencyKeywords(text string, tables *vocab.Tables) bool {
	return vocab.CountHits(text, tables.Tones.Urgency) > 0
}
