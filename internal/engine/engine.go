// Package engine orchestrates one inquiry through the decision state
// machine: contextualize, triage, then either retrieve-and-answer or ask
// the caller for more detail. It is the only component external callers
// touch, and it never raises: every failure becomes a structured Result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/integration-desk/internal/answer"
	"github.com/sells-group/integration-desk/internal/llm"
	"github.com/sells-group/integration-desk/internal/model"
	"github.com/sells-group/integration-desk/internal/monitoring"
)

// State names a node in the decision workflow.
type State string

const (
	StateStart       State = "START"
	StateTriage      State = "TRIAGE"
	StateAutoResolve State = "AUTO_RESOLVE"
	StateRequestInfo State = "REQUEST_INFO"
	StateTerminal    State = "TERMINAL"
)

// maxVisitedStates bounds a run before TERMINAL; oscillation between
// resolve and request-info is cut off here.
const maxVisitedStates = 3

const (
	requestInfoMessage = "I need a bit more detail to help with this. Could you describe which integration procedure you are asking about, what you observed, and what you expected to happen?"
	genericApology     = "Something went wrong while processing your inquiry. Please try again in a few moments."
)

// Classifier produces a triage decision for an inquiry.
type Classifier interface {
	Classify(ctx context.Context, inquiry string) (model.TriageResult, error)
}

// Rewriter contextualizes ambiguous inquiries against history.
type Rewriter interface {
	Contextualize(inquiry string, history []model.ConversationTurn) string
}

// Retriever fetches supporting chunks for a rewritten inquiry.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (*model.RetrievalResult, error)
}

// Synthesizer generates the validated answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, rewritten string, retrieval *model.RetrievalResult) (*model.Answer, error)
}

// Engine wires the workflow dependencies. Stateless between runs; safe
// for concurrent use when its dependencies are.
type Engine struct {
	rewriter    Rewriter
	classifier  Classifier
	retriever   Retriever
	synthesizer Synthesizer
	collector   *monitoring.Collector
}

// New creates an Engine. collector may be nil.
func New(rewriter Rewriter, classifier Classifier, retriever Retriever, synthesizer Synthesizer, collector *monitoring.Collector) *Engine {
	if collector == nil {
		collector = monitoring.NewCollector()
	}
	return &Engine{
		rewriter:    rewriter,
		classifier:  classifier,
		retriever:   retriever,
		synthesizer: synthesizer,
		collector:   collector,
	}
}

// workflowState is the transient record threaded through one run.
type workflowState struct {
	inquiry   model.Inquiry
	rewritten string
	triage    model.TriageResult
	retrieval *model.RetrievalResult
	answer    *model.Answer
	visited   []State
}

func (ws *workflowState) visit(s State) {
	ws.visited = append(ws.visited, s)
}

// ProcessInquiry runs the full workflow for one inquiry. It always
// returns a Result; panics anywhere in the run are caught at this
// boundary and converted to an ERROR action with the recovered type
// name attached for diagnostics.
func (e *Engine) ProcessInquiry(ctx context.Context, text string, history []model.ConversationTurn) (result *model.Result) {
	started := time.Now()
	runID := uuid.NewString()

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("workflow panic recovered",
				zap.String("run_id", runID),
				zap.Any("panic", r))
			e.collector.ObserveError("panic")
			result = e.terminal(runID, model.ActionError, genericApology, nil, false)
			result.ErrorKind = fmt.Sprintf("%T", r)
		}
		e.collector.ObserveRun(result.Action, time.Since(started))
	}()

	ws := &workflowState{inquiry: model.NewInquiry(text)}
	ws.visit(StateStart)

	ws.rewritten = e.rewriter.Contextualize(text, history)
	if ws.rewritten != text {
		zap.L().Debug("inquiry contextualized",
			zap.String("run_id", runID),
			zap.String("rewritten", ws.rewritten))
	}

	ws.visit(StateTriage)
	triage, err := e.classifier.Classify(ctx, text)
	if err != nil {
		// A dead classifier must not kill the request; asking the caller
		// for more detail is the safe landing.
		zap.L().Warn("triage classification failed",
			zap.String("run_id", runID),
			zap.Error(err))
		e.collector.ObserveError("ClassifierFailure")
		ws.visit(StateRequestInfo)
		return e.terminal(runID, model.ActionRequestInfo, requestInfoMessage, nil, false)
	}
	ws.triage = triage
	if !triage.FromCache {
		e.collector.ObserveModelCall()
	}

	if triage.Decision != model.DecisionAutoResolve {
		ws.visit(StateRequestInfo)
		return e.terminal(runID, model.ActionRequestInfo, requestInfoMessage, nil, false)
	}

	ws.visit(StateAutoResolve)
	return e.autoResolve(ctx, runID, ws)
}

func (e *Engine) autoResolve(ctx context.Context, runID string, ws *workflowState) *model.Result {
	retrieval, err := e.retriever.Retrieve(ctx, ws.rewritten)
	if err != nil {
		zap.L().Warn("retrieval failed, taking document-free path",
			zap.String("run_id", runID),
			zap.Error(err))
		e.collector.ObserveError("RetrievalFailure")
		retrieval = &model.RetrievalResult{}
	}
	ws.retrieval = retrieval

	ans, err := e.synthesizer.Synthesize(ctx, ws.rewritten, retrieval)
	if err != nil {
		return e.modelFailure(runID, err)
	}
	ws.answer = ans
	if !ans.FromCache {
		e.collector.ObserveModelCall()
	}

	grounded := ans.GroundedInContext
	if !retrieval.Found() {
		// Document-free answers terminate successfully unless the model
		// itself declined to answer.
		grounded = !answer.GateTripped(ans.Text)
	}

	if grounded {
		return e.terminal(runID, model.ActionAutoResolve, ans.Text, ans.Citations, retrieval.Found())
	}

	if len(ws.visited) > maxVisitedStates {
		zap.L().Warn("state budget exhausted, forcing request-info terminal",
			zap.String("run_id", runID),
			zap.Int("visited", len(ws.visited)))
	}
	ws.visit(StateRequestInfo)
	return e.terminal(runID, model.ActionRequestInfo, requestInfoMessage, nil, retrieval.Found())
}

func (e *Engine) modelFailure(runID string, err error) *model.Result {
	kind := "ModelUnavailable"
	if errors.Is(err, llm.ErrModelTimeout) {
		kind = "ModelTimeout"
	}
	zap.L().Error("answer synthesis failed",
		zap.String("run_id", runID),
		zap.String("kind", kind),
		zap.Error(err))
	e.collector.ObserveError(kind)
	result := e.terminal(runID, model.ActionError, genericApology, nil, false)
	result.ErrorKind = kind
	return result
}

func (e *Engine) terminal(runID string, action model.Action, text string, citations []model.Citation, contextFound bool) *model.Result {
	if citations == nil {
		citations = []model.Citation{}
	}
	return &model.Result{
		RunID:        runID,
		AnswerText:   text,
		Citations:    citations,
		Action:       action,
		Timestamp:    time.Now().UTC(),
		ContextFound: contextFound,
	}
}

// Collector exposes the run counters for the stats surface.
func (e *Engine) Collector() *monitoring.Collector {
	return e.collector
}
