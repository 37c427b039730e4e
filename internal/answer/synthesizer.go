// Package answer turns retrieved context into a validated, cited answer.
// Synthesis is one model call; the validation passes that follow repair
// or flag the text without ever crashing the request.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/integration-desk/internal/cache"
	"github.com/sells-group/integration-desk/internal/llm"
	"github.com/sells-group/integration-desk/internal/model"
	"github.com/sells-group/integration-desk/internal/textutil"
)

const (
	// maxCitations caps citations attached to an answer.
	maxCitations = 3

	// excerptLen caps citation excerpt length in characters.
	excerptLen = 250
)

const synthesisSystemPrompt = `You are a senior data-integration support specialist answering questions about internal integration procedures.
Answer STRICTLY from the reference passages supplied in the user message. Do not use outside knowledge.
If the passages do not contain the answer, reply exactly: I don't know based on the available documentation.
Write 2 to 3 short paragraphs at most. No greetings, no self-introduction, no closing pleasantries.`

const documentFreeSystemPrompt = `You are a senior data-integration support specialist.
Answer from general knowledge of data-integration practice. Be direct and brief: one or two short paragraphs.
No greetings, no self-introduction, no closing pleasantries.
If you cannot give a useful answer, reply exactly: I don't know based on the available documentation.`

const summarizeSystemPrompt = `You condense technical answers. Rewrite the given answer in at most 50 words, keeping every concrete fact and dropping everything else. Output only the rewritten answer.`

const (
	documentFreeDisclaimer = "Note: this answer was generated without access to the procedure documentation and is not document-grounded."
	lexicalDisclaimer      = "Note: supporting passages were located by keyword search; semantic search was unavailable."
)

// Synthesizer generates and validates answers. Model responses are
// memoized in the cache under the LLM_RESPONSE kind so an identical
// prompt never pays for a second invocation.
type Synthesizer struct {
	completer llm.Completer
	store     cache.Cache
}

// New creates a Synthesizer. store may be nil to disable memoization.
func New(completer llm.Completer, store cache.Cache) *Synthesizer {
	return &Synthesizer{completer: completer, store: store}
}

// Synthesize produces the answer for a rewritten inquiry. When the
// retrieval result carries no chunks it takes the document-free path and
// appends the not-grounded disclaimer. Model failures propagate so the
// workflow can map them onto its error terminal.
func (s *Synthesizer) Synthesize(ctx context.Context, rewritten string, retrieval *model.RetrievalResult) (*model.Answer, error) {
	if !retrieval.Found() {
		return s.documentFree(ctx, rewritten)
	}

	user := buildContextPrompt(rewritten, retrieval.Chunks)
	text, cached, err := s.complete(ctx, synthesisSystemPrompt, user)
	if err != nil {
		return nil, eris.Wrap(err, "answer: synthesize")
	}

	ans := &model.Answer{Text: text, FromCache: cached}
	s.validate(ctx, ans)

	if retrieval.Provenance == "lexical" {
		appendDisclaimer(ans, lexicalDisclaimer)
	}

	ans.GroundedInContext = !GateTripped(ans.Text)
	if ans.GroundedInContext {
		ans.Citations = buildCitations(retrieval.Chunks)
	}
	return ans, nil
}

// documentFree answers from general knowledge when no context exists.
func (s *Synthesizer) documentFree(ctx context.Context, rewritten string) (*model.Answer, error) {
	text, cached, err := s.complete(ctx, documentFreeSystemPrompt, rewritten)
	if err != nil {
		return nil, eris.Wrap(err, "answer: document-free synthesize")
	}

	ans := &model.Answer{Text: text, FromCache: cached}
	s.validate(ctx, ans)
	appendDisclaimer(ans, documentFreeDisclaimer)
	return ans, nil
}

// complete invokes the model through the LLM_RESPONSE cache tier.
func (s *Synthesizer) complete(ctx context.Context, system, user string) (string, bool, error) {
	if s.store == nil {
		text, err := s.completer.Complete(ctx, system, user)
		return text, false, err
	}
	computed := false
	raw, err := s.store.GetOrCompute(cache.KindLLMResponse, cache.Key(system+"\n"+user), func() ([]byte, error) {
		computed = true
		text, err := s.completer.Complete(ctx, system, user)
		if err != nil {
			return nil, err
		}
		return []byte(text), nil
	})
	if err != nil {
		return "", false, err
	}
	return string(raw), !computed, nil
}

func buildContextPrompt(rewritten string, chunks []model.DocumentChunk) string {
	var b strings.Builder
	b.WriteString("Reference passages:\n\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "[%d] %s", i+1, c.SourceID)
		if c.PageNumber > 0 {
			fmt.Fprintf(&b, ", page %d", c.PageNumber)
		}
		b.WriteString("\n")
		b.WriteString(c.Text)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(rewritten)
	return b.String()
}

// buildCitations labels the chunks behind the answer in rank order.
func buildCitations(chunks []model.DocumentChunk) []model.Citation {
	labels := []string{"primary", "supporting", "related"}
	n := len(chunks)
	if n > maxCitations {
		n = maxCitations
	}
	citations := make([]model.Citation, 0, n)
	for i := 0; i < n; i++ {
		citations = append(citations, model.Citation{
			DocumentName:   chunks[i].SourceID,
			PageNumber:     chunks[i].PageNumber,
			Excerpt:        textutil.Truncate(chunks[i].Text, excerptLen),
			RelevanceLabel: labels[i],
		})
	}
	return citations
}

func appendDisclaimer(ans *model.Answer, disclaimer string) {
	ans.Text = strings.TrimSpace(ans.Text) + "\n\n" + disclaimer
	ans.DisclaimerAppended = true
}
