package triage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/integration-desk/internal/cache"
	"github.com/sells-group/integration-desk/internal/llm"
	"github.com/sells-group/integration-desk/internal/model"
	"github.com/sells-group/integration-desk/internal/vocab"
)

func newClassifier(fake *llm.Fake) *Classifier {
	return NewClassifier(fake, cache.NewMemory(), vocab.Default())
}

func TestClassifyParsesModelOutput(t *testing.T) {
	fake := llm.NewFake(`{"decision":"REQUEST_INFO","urgency":"LOW","category":"INFRA","confidence":0.8}`)
	c := newClassifier(fake)

	result, err := c.Classify(context.Background(), "something vague about a system")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionRequestInfo, result.Decision)
	assert.Equal(t, model.CategoryInfra, result.Category)
	assert.InDelta(t, 0.8, result.Confidence, 0.001)
}

func TestClassifyMalformedFallsBackToAutoResolve(t *testing.T) {
	fake := llm.NewFake("I think the user wants to know about ETL.")
	c := newClassifier(fake)

	result, err := c.Classify(context.Background(), "how does the consolidation work?")
	require.NoError(t, err, "malformed output must never raise")
	assert.Equal(t, model.DecisionAutoResolve, result.Decision)
	assert.Equal(t, model.UrgencyMedium, result.Urgency)
	assert.Equal(t, model.CategoryGeneral, result.Category)
}

func TestClassifyMalformedFallbackUrgencyEscalation(t *testing.T) {
	fake := llm.NewFake("not json at all")
	c := newClassifier(fake)

	result, err := c.Classify(context.Background(), "URGENT: consolidation is blocking the close")
	require.NoError(t, err)
	assert.Equal(t, model.DecisionAutoResolve, result.Decision)
	assert.Equal(t, model.UrgencyHigh, result.Urgency)
}

func TestClassifyUrgencyKeywordsOverrideModel(t *testing.T) {
	fake := llm.NewFake(`{"decision":"AUTO_RESOLVE","urgency":"LOW","category":"GENERAL","confidence":0.9}`)
	c := newClassifier(fake)

	result, err := c.Classify(context.Background(), "urgent question about the policy")
	require.NoError(t, err)
	assert.Equal(t, model.UrgencyHigh, result.Urgency)
}

func TestClassifyRepeatedInquiryIsPureCacheHit(t *testing.T) {
	fake := llm.NewFake(`{"decision":"AUTO_RESOLVE","urgency":"LOW","category":"GENERAL","confidence":0.9}`)
	c := newClassifier(fake)
	ctx := context.Background()

	first, err := c.Classify(ctx, "What is the data origin?")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.CallCount())
	assert.False(t, first.FromCache)

	// Identical text modulo case and accents hits the same entry.
	second, err := c.Classify(ctx, "what is the DATA origin?  ")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.CallCount(), "second classification must make zero model calls")
	assert.True(t, second.FromCache)
	second.FromCache = false
	assert.Equal(t, first, second)
}

func TestClassifyModelFailurePropagates(t *testing.T) {
	fake := llm.NewFake()
	fake.Err = errors.New("api down")
	c := newClassifier(fake)

	_, err := c.Classify(context.Background(), "anything")
	require.Error(t, err)

	// Failures are not cached; a recovered model gets asked again.
	fake.Err = nil
	fake.Responses = []string{`{"decision":"AUTO_RESOLVE","urgency":"LOW","category":"GENERAL","confidence":0.5}`}
	_, err = c.Classify(context.Background(), "anything")
	require.NoError(t, err)
}

func TestClassifyPromptCarriesDetectedSignals(t *testing.T) {
	fake := llm.NewFake(`{"decision":"AUTO_RESOLVE","urgency":"LOW","category":"DATA_ENGINEERING","confidence":0.9}`)
	c := newClassifier(fake)

	_, err := c.Classify(context.Background(), "the ETL pipeline ingestion failed, still broken")
	require.NoError(t, err)
	require.Len(t, fake.Calls, 1)
	assert.Contains(t, fake.Calls[0].User, "DATA_ENGINEERING")
	assert.Contains(t, fake.Calls[0].User, "frustrated")
}
