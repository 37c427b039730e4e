// Package llm adapts the Anthropic client to the single-prompt completion
// interface the engine consumes, and maps SDK failures onto the engine's
// error taxonomy.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/integration-desk/internal/resilience"
	"github.com/sells-group/integration-desk/pkg/anthropic"
)

// ErrModelUnavailable indicates the language model could not be reached or
// refused the request after retries.
var ErrModelUnavailable = eris.New("llm: model unavailable")

// ErrModelTimeout indicates the model call exceeded its deadline.
var ErrModelTimeout = eris.New("llm: model timeout")

// Completer is the language-model capability: one prompt in, one response
// text out.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Options configures the Anthropic-backed completer.
type Options struct {
	Model       string
	MaxTokens   int64
	Temperature float64
	// CacheSystemPrompt sends the system block with a prompt-cache
	// breakpoint; worthwhile when the same persona prompt repeats across
	// a batch session.
	CacheSystemPrompt bool
	// Phase labels cost-attribution log lines ("triage", "synthesis", ...).
	Phase string
}

// Anthropic is a Completer backed by the Anthropic messages API with
// retry on transient failures.
type Anthropic struct {
	client anthropic.Client
	opts   Options
	retry  resilience.RetryConfig
}

// NewAnthropic creates an Anthropic-backed completer.
func NewAnthropic(client anthropic.Client, opts Options) *Anthropic {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("anthropic", opts.Phase)
	return &Anthropic{client: client, opts: opts, retry: retry}
}

func (a *Anthropic) Complete(ctx context.Context, system, user string) (string, error) {
	req := anthropic.MessageRequest{
		Model:       a.opts.Model,
		MaxTokens:   a.opts.MaxTokens,
		Temperature: &a.opts.Temperature,
		Messages: []anthropic.Message{
			{Role: "user", Content: user},
		},
	}
	if system != "" {
		if a.opts.CacheSystemPrompt {
			req.System = anthropic.BuildCachedSystemBlocks(system)
		} else {
			req.System = []anthropic.SystemBlock{{Text: system}}
		}
	}

	resp, err := resilience.DoVal(ctx, a.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return "", classify(ctx, err)
	}

	resp.Usage.LogCost(a.opts.Model, a.opts.Phase)
	return strings.TrimSpace(resp.Text()), nil
}

// classify maps a failed model call onto the engine error taxonomy.
func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return eris.Wrap(ErrModelTimeout, err.Error())
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline") {
		return eris.Wrap(ErrModelTimeout, err.Error())
	}
	return eris.Wrap(ErrModelUnavailable, err.Error())
}
