// Package triage classifies inquiries into a decision, urgency, and
// category, combining rule-based keyword signals with a model call whose
// output is treated as an untrusted payload.
package triage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/integration-desk/internal/cache"
	"github.com/sells-group/integration-desk/internal/llm"
	"github.com/sells-group/integration-desk/internal/model"
	"github.com/sells-group/integration-desk/internal/vocab"
)

const systemPrompt = `You are the triage stage of an internal data-integration support desk.
Given the user's inquiry, return ONLY a JSON object:
{
  "decision": "AUTO_RESOLVE" | "REQUEST_INFO",
  "urgency": "LOW" | "MEDIUM" | "HIGH",
  "category": "OPERATIONAL" | "INFRA" | "DATA_ENGINEERING" | "GENERAL",
  "confidence": 0.0-1.0
}
Rules:
- AUTO_RESOLVE: clear questions about documented procedures, tables, or rules.
- REQUEST_INFO: vague inquiries missing the subject or context needed to answer.
Return the JSON object with no surrounding prose.`

// Classifier produces a TriageResult per inquiry, memoized by inquiry hash.
type Classifier struct {
	completer llm.Completer
	store     cache.Cache
	tables    *vocab.Tables
}

// NewClassifier creates a Classifier.
func NewClassifier(completer llm.Completer, store cache.Cache, tables *vocab.Tables) *Classifier {
	return &Classifier{completer: completer, store: store, tables: tables}
}

// Classify returns the triage result for the inquiry. Results are cached
// by inquiry hash: a repeated inquiry is a pure cache hit with no model
// invocation. Model invocation failure propagates to the caller; the
// workflow treats it as a request-info fallback.
func (c *Classifier) Classify(ctx context.Context, inquiry string) (model.TriageResult, error) {
	key := cache.Key(inquiry)

	computed := false
	raw, err := c.store.GetOrCompute(cache.KindTriage, key, func() ([]byte, error) {
		computed = true
		result, err := c.classifyUncached(ctx, inquiry)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
	if err != nil {
		return model.TriageResult{}, err
	}

	var result model.TriageResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return model.TriageResult{}, eris.Wrap(err, "triage: decode cached result")
	}
	result.FromCache = !computed
	return result, nil
}

func (c *Classifier) classifyUncached(ctx context.Context, inquiry string) (model.TriageResult, error) {
	category := DetectCategory(inquiry, c.tables)
	tone := DetectTone(inquiry, c.tables)

	user := fmt.Sprintf(
		"Detected subject area: %s\nDetected tone: %s\n\nUser inquiry: %s",
		category, tone, inquiry,
	)

	response, err := c.completer.Complete(ctx, systemPrompt, user)
	if err != nil {
		return model.TriageResult{}, eris.Wrap(err, "triage: classify")
	}

	outcome := parseClassifierOutput(response)
	var result model.TriageResult
	if outcome.Malformed {
		result = c.fallback(inquiry)
		zap.L().Warn("triage: malformed classifier output, using fallback",
			zap.String("raw", outcome.Raw),
			zap.String("urgency", string(result.Urgency)),
		)
	} else {
		result = outcome.Result
	}

	// The rule signal outranks the model on urgency: a lower model
	// urgency never suppresses explicit urgency keywords.
	if HasUrgencyKeywords(inquiry, c.tables) && result.Urgency != model.UrgencyHigh {
		result.Urgency = model.UrgencyHigh
	}

	return result, nil
}

// fallback is the deterministic result substituted for malformed model
// output. It never requests information on a parse failure alone.
func (c *Classifier) fallback(inquiry string) model.TriageResult {
	urgency := model.UrgencyMedium
	if HasUrgencyKeywords(inquiry, c.tables) {
		urgency = model.UrgencyHigh
	}
	return model.TriageResult{
		Decision:   model.DecisionAutoResolve,
		Urgency:    urgency,
		Category:   model.CategoryGeneral,
		Confidence: 0.3,
	}
}
