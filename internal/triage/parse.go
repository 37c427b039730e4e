package triage

import (
	"encoding/json"
	"strings"

	"github.com/sells-group/integration-desk/internal/model"
)

// ParseOutcome is the tagged result of parsing classifier output: either
// a validated TriageResult or the raw malformed text. Malformed output is
// an expected branch, not an error.
type ParseOutcome struct {
	Result    model.TriageResult
	Malformed bool
	Raw       string
}

// classifierPayload mirrors the JSON object the prompt demands.
type classifierPayload struct {
	Decision   string  `json:"decision"`
	Urgency    string  `json:"urgency"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// parseClassifierOutput strictly parses model output into a TriageResult.
// Code-fence markers are stripped before parsing. Anything that is not a
// JSON object with valid decision and urgency values is Malformed.
func parseClassifierOutput(raw string) ParseOutcome {
	cleaned := stripCodeFences(raw)

	var payload classifierPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return ParseOutcome{Malformed: true, Raw: raw}
	}

	decision := model.Decision(strings.ToUpper(strings.TrimSpace(payload.Decision)))
	if decision != model.DecisionAutoResolve && decision != model.DecisionRequestInfo {
		return ParseOutcome{Malformed: true, Raw: raw}
	}

	urgency := model.Urgency(strings.ToUpper(strings.TrimSpace(payload.Urgency)))
	switch urgency {
	case model.UrgencyLow, model.UrgencyMedium, model.UrgencyHigh:
	default:
		return ParseOutcome{Malformed: true, Raw: raw}
	}

	// An unknown category is tolerated and bucketed as GENERAL; it does
	// not influence control flow.
	category := model.Category(strings.ToUpper(strings.TrimSpace(payload.Category)))
	switch category {
	case model.CategoryOperational, model.CategoryInfra, model.CategoryDataEngineering, model.CategoryGeneral:
	default:
		category = model.CategoryGeneral
	}

	confidence := payload.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return ParseOutcome{
		Result: model.TriageResult{
			Decision:   decision,
			Urgency:    urgency,
			Category:   category,
			Confidence: confidence,
		},
	}
}

// stripCodeFences removes a surrounding markdown code fence, including an
// optional "json" language tag.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.Trim(trimmed, "`")
	trimmed = strings.TrimSpace(trimmed)
	if len(trimmed) >= 4 && strings.EqualFold(trimmed[:4], "json") {
		trimmed = strings.TrimSpace(trimmed[4:])
	}
	return trimmed
}
