// Package rewrite resolves ambiguous inquiries against recent
// conversation turns before retrieval. Contextualize is a pure function
// of its inputs: same inquiry and history, same rewrite.
package rewrite

import (
	"fmt"
	"strings"

	"github.com/sells-group/integration-desk/internal/model"
	"github.com/sells-group/integration-desk/internal/textutil"
	"github.com/sells-group/integration-desk/internal/vocab"
)

const (
	// shortQueryWords marks any inquiry at or under this many words as
	// ambiguous.
	shortQueryWords = 8
	// historyWindow is how many turns back the scan reaches.
	historyWindow = 5
	// maxKeywords caps the technical terms pulled from a prior turn.
	maxKeywords = 5
	// questionTruncateLen bounds the prior question echoed in the
	// generic suffix.
	questionTruncateLen = 60
)

// Contextualizer rewrites ambiguous inquiries using conversation history.
type Contextualizer struct {
	tables *vocab.Tables
}

// New creates a Contextualizer over the given keyword tables.
func New(tables *vocab.Tables) *Contextualizer {
	return &Contextualizer{tables: tables}
}

// Contextualize returns the inquiry unchanged when it is unambiguous or no
// usable prior turn exists; otherwise it appends either a curated context
// phrase or a generic keyword suffix. The rewritten inquiry always
// contains the original text as a prefix.
func (c *Contextualizer) Contextualize(inquiry string, history []model.ConversationTurn) string {
	if !c.IsAmbiguous(inquiry) || len(history) == 0 {
		return inquiry
	}

	turn := latestResolvedTurn(history)
	if turn == nil {
		return inquiry
	}

	turnText := turn.Question + " " + turn.Answer

	// A curated phrase wins when the prior turn touched a high-priority
	// term such as a specific procedure name. Terms are checked in
	// vocabulary order so rewrites stay deterministic.
	for _, term := range c.tables.TechnicalTerms {
		phrase, ok := c.tables.CuratedContexts[term]
		if !ok {
			continue
		}
		if textutil.ContainsAny(turnText, term) {
			return inquiry + " " + phrase
		}
	}

	keywords := c.extractKeywords(turnText)
	truncated := textutil.Truncate(strings.TrimSpace(turn.Question), questionTruncateLen)
	if len(keywords) == 0 {
		return fmt.Sprintf("%s (context: %s...)", inquiry, truncated)
	}
	return fmt.Sprintf("%s (context: %s... - keywords: %s)",
		inquiry, truncated, strings.Join(keywords, ", "))
}

// IsAmbiguous reports whether the inquiry needs conversation context: it
// contains a reference phrase, is short, or names a technical field
// without its owning entity.
func (c *Contextualizer) IsAmbiguous(inquiry string) bool {
	if textutil.ContainsAny(inquiry, c.tables.ReferencePhrases...) {
		return true
	}
	if textutil.WordCount(inquiry) <= shortQueryWords {
		return true
	}
	if textutil.ContainsAny(inquiry, c.tables.BareFieldNames...) &&
		!textutil.ContainsAny(inquiry, c.tables.TechnicalTerms...) {
		return true
	}
	return false
}

// latestResolvedTurn returns the most recent turn that auto-resolved with
// a non-empty answer, scanning at most historyWindow turns back.
func latestResolvedTurn(history []model.ConversationTurn) *model.ConversationTurn {
	scanned := 0
	for i := len(history) - 1; i >= 0 && scanned < historyWindow; i-- {
		scanned++
		turn := history[i]
		if turn.ResolvedAction == model.ActionAutoResolve && strings.TrimSpace(turn.Answer) != "" {
			return &turn
		}
	}
	return nil
}

// extractKeywords returns up to maxKeywords technical terms present in
// the text, in vocabulary order.
func (c *Contextualizer) extractKeywords(text string) []string {
	var keywords []string
	for _, term := range c.tables.TechnicalTerms {
		if len(keywords) >= maxKeywords {
			break
		}
		if textutil.ContainsAny(text, term) {
			keywords = append(keywords, term)
		}
	}
	return keywords
}
