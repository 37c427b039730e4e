package answer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/integration-desk/internal/model"
	"github.com/sells-group/integration-desk/internal/textutil"
)

const (
	// Word-count bands for length control.
	maxWords        = 150
	longWords       = 100
	minWords        = 10
	summarizeAccept = 80

	// boilerplateWindow is how far into the text a greeting counts.
	boilerplateWindow = 100

	// minAfterStrip keeps the boilerplate pass from gutting short answers.
	minAfterStrip = 20

	// maxHedges is the hedging-word count above which an answer is
	// flagged generic.
	maxHedges = 1
)

// greetings mark boilerplate openings. Matched folded, so accents and
// case do not matter.
var greetings = []string{
	"hello", "hi there", "greetings", "good morning", "good afternoon",
	"ola", "bom dia", "boa tarde",
	"i am an", "i'm an", "as an ai", "as a language model",
	"sure,", "certainly", "of course", "great question", "happy to help",
	"sou um assistente", "claro,", "com certeza",
}

// hedges are the words counted by the genericness pass.
var hedges = []string{
	"maybe", "perhaps", "possibly", "generally", "sometimes", "usually",
	"typically", "often", "talvez", "geralmente", "possivelmente",
	"normalmente", "as vezes",
}

// dontKnowPhrases are the groundedness-gate markers. Checked folded.
var dontKnowPhrases = []string{
	"i don't know", "i dont know", "i do not know",
	"nao sei", "nao tenho essa informacao",
	"the passages do not contain", "not covered by the provided",
	"cannot answer based on the available",
	"no information available in the documentation",
}

// validate applies the repair and flagging passes in order: length
// control, boilerplate stripping, genericness. Each pass is idempotent.
func (s *Synthesizer) validate(ctx context.Context, ans *model.Answer) {
	s.controlLength(ctx, ans)
	stripBoilerplate(ans)
	flagGeneric(ans)
}

// controlLength handles the word-count bands. Only the >150 band spends
// a model call, and the rewrite is kept only when it actually came back
// short; a failed or bloated rewrite leaves the original untouched.
func (s *Synthesizer) controlLength(ctx context.Context, ans *model.Answer) {
	words := textutil.WordCount(ans.Text)
	switch {
	case words > maxWords:
		rewrite, _, err := s.complete(ctx, summarizeSystemPrompt, ans.Text)
		ans.RetriesUsed++
		if err != nil {
			zap.L().Warn("summarize rewrite failed, keeping original",
				zap.Int("words", words),
				zap.Error(err))
			ans.FlaggedLong = true
			return
		}
		if textutil.WordCount(rewrite) < summarizeAccept {
			ans.Text = rewrite
		} else {
			ans.FlaggedLong = true
		}
	case words >= longWords:
		ans.FlaggedLong = true
	case words < minWords:
		ans.FlaggedShort = true
	}
}

// stripBoilerplate drops a greeting first line when enough text remains.
func stripBoilerplate(ans *model.Answer) {
	window := ans.Text
	if len(window) > boilerplateWindow {
		window = window[:boilerplateWindow]
	}
	if !textutil.ContainsAny(window, greetings...) {
		return
	}
	_, rest, found := strings.Cut(ans.Text, "\n")
	if !found {
		return
	}
	rest = strings.TrimSpace(rest)
	if len(rest) >= minAfterStrip {
		ans.Text = rest
	}
}

// flagGeneric counts hedging words; more than one marks the answer as
// generic. Informational only.
func flagGeneric(ans *model.Answer) {
	folded := textutil.Fold(ans.Text)
	count := 0
	for _, h := range hedges {
		count += strings.Count(folded, h)
	}
	ans.FlaggedGeneric = count > maxHedges
}

// GateTripped reports whether the text contains an explicit
// don't-know-equivalent phrase. A tripped gate marks the answer
// ungrounded no matter how many chunks retrieval found.
func GateTripped(text string) bool {
	return textutil.ContainsAny(text, dontKnowPhrases...)
}
