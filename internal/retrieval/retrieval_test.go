package retrieval

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/integration-desk/internal/cache"
	"github.com/sells-group/integration-desk/internal/model"
	"github.com/sells-group/integration-desk/internal/vocab"
)

// fakeSearcher scripts index behavior per query substring.
type fakeSearcher struct {
	byQuery    map[string][]model.DocumentChunk
	diverse    []model.DocumentChunk
	empty      bool
	provenance string
	searches   []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, k int) []model.DocumentChunk {
	f.searches = append(f.searches, query)
	for needle, chunks := range f.byQuery {
		if strings.Contains(query, needle) {
			if len(chunks) > k {
				return chunks[:k]
			}
			return chunks
		}
	}
	return nil
}

func (f *fakeSearcher) DiversitySearch(_ context.Context, query string, k int) []model.DocumentChunk {
	if len(f.diverse) > k {
		return f.diverse[:k]
	}
	return f.diverse
}

func (f *fakeSearcher) Empty() bool { return f.empty }

func (f *fakeSearcher) Provenance() string {
	if f.provenance == "" {
		return "semantic"
	}
	return f.provenance
}

func chunk(id, text string) model.DocumentChunk {
	return model.DocumentChunk{SourceID: id, PageNumber: 1, Text: text}
}

func TestRetrieveEmptyIndexShortCircuits(t *testing.T) {
	r := New(&fakeSearcher{empty: true}, nil, vocab.Default())

	result, err := r.Retrieve(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, result.IndexEmpty)
	assert.False(t, result.Found())
}

func TestRetrievePrimaryHit(t *testing.T) {
	fs := &fakeSearcher{byQuery: map[string][]model.DocumentChunk{
		"schedule": {
			chunk("a.txt", "the schedule runs nightly and restarts on failure automatically"),
			chunk("b.txt", "schedule entries are owned by the operations team each quarter"),
			chunk("c.txt", "a third passage about schedules and their retry policy limits"),
		},
	}}
	r := New(fs, nil, vocab.Default())

	result, err := r.Retrieve(context.Background(), "how does the schedule work")
	require.NoError(t, err)
	assert.True(t, result.Found())
	assert.Equal(t, StrategySemantic, result.Strategy)
	assert.Len(t, result.Chunks, 3)
}

func TestRetrieveExpansionAddsChunks(t *testing.T) {
	fs := &fakeSearcher{byQuery: map[string][]model.DocumentChunk{
		// Primary query mentions "origin"; the document only matches the
		// synonym-augmented query.
		"provenance": {chunk("d.txt", "provenance records trace every upstream load into the table")},
	}}
	r := New(fs, nil, vocab.Default())

	result, err := r.Retrieve(context.Background(), "origin")
	require.NoError(t, err)
	assert.True(t, result.Found())
	assert.Equal(t, StrategyExpanded, result.Strategy)
}

func TestRetrieveDiversityWhenPoolThin(t *testing.T) {
	fs := &fakeSearcher{
		diverse: []model.DocumentChunk{
			chunk("x.txt", "a diverse passage selected when nothing else matched the query"),
		},
	}
	r := New(fs, nil, vocab.Default())

	result, err := r.Retrieve(context.Background(), "origin of the dataset")
	require.NoError(t, err)
	assert.True(t, result.Found())
	assert.Equal(t, StrategyDiversity, result.Strategy)
}

func TestRetrieveNoMatchIsEmptyNotIndexEmpty(t *testing.T) {
	r := New(&fakeSearcher{}, nil, vocab.Default())

	result, err := r.Retrieve(context.Background(), "nothing matches anywhere")
	require.NoError(t, err)
	assert.False(t, result.Found())
	assert.False(t, result.IndexEmpty)
}

func TestRetrieveDedupeByPrefix(t *testing.T) {
	long := strings.Repeat("identical first hundred characters padding out the prefix region ", 3)
	fs := &fakeSearcher{byQuery: map[string][]model.DocumentChunk{
		"schedule": {
			chunk("a.txt", long+"tail one"),
			chunk("b.txt", long+"tail two"),
			chunk("c.txt", "a genuinely different passage about the schedule retry policy"),
		},
	}}
	r := New(fs, nil, vocab.Default())

	result, err := r.Retrieve(context.Background(), "schedule")
	require.NoError(t, err)
	require.Len(t, result.Chunks, 2, "same-prefix chunks collapse to first seen")
	assert.Equal(t, "a.txt", result.Chunks[0].SourceID)
}

func TestRetrieveCapsAtFour(t *testing.T) {
	var many []model.DocumentChunk
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		many = append(many, chunk(id+".txt", "passage "+id+" about the schedule and its generous retry policy"))
	}
	fs := &fakeSearcher{byQuery: map[string][]model.DocumentChunk{"schedule": many}}
	r := New(fs, nil, vocab.Default())

	result, err := r.Retrieve(context.Background(), "schedule")
	require.NoError(t, err)
	assert.Len(t, result.Chunks, maxChunks)
}

func TestRetrieveCachedResultMatchesFresh(t *testing.T) {
	fs := &fakeSearcher{byQuery: map[string][]model.DocumentChunk{
		"schedule": {chunk("a.txt", "the schedule passage used for cache equivalence checking here")},
	}}
	store := cache.NewMemory()
	r := New(fs, store, vocab.Default())
	ctx := context.Background()

	first, err := r.Retrieve(ctx, "schedule")
	require.NoError(t, err)
	searchesAfterFirst := len(fs.searches)

	second, err := r.Retrieve(ctx, "schedule")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, searchesAfterFirst, len(fs.searches), "cache hit must not touch the index")
}
