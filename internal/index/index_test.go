package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/integration-desk/internal/vocab"
)

// topicEmbedder is a deterministic fake: one dimension per topic word,
// valued by occurrence count.
type topicEmbedder struct {
	topics []string
	err    error
	calls  int
}

func (e *topicEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, len(e.topics))
		lower := strings.ToLower(text)
		for d, topic := range e.topics {
			vec[d] = float32(strings.Count(lower, topic))
		}
		out[i] = vec
	}
	return out, nil
}

func newTopicEmbedder() *topicEmbedder {
	return &topicEmbedder{topics: []string{"staging", "lineage", "schedule", "permission"}}
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"staging.txt":  "The staging table receives raw rows. Staging cleanup runs after loading completes.",
		"lineage.md":   "Data lineage is tracked per column. Lineage reports list every upstream source.",
		"schedule.txt": "The nightly schedule triggers at 2am. A failed schedule entry is retried once.",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	// Unsupported extensions are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.docx"), []byte("ignored"), 0644))
	return dir
}

func TestBuildAndSemanticSearch(t *testing.T) {
	emb := newTopicEmbedder()
	ix := New(emb, vocab.Default(), Options{})
	require.NoError(t, ix.Build(context.Background(), writeCorpus(t)))

	assert.False(t, ix.Empty())
	assert.Equal(t, "semantic", ix.Provenance())

	chunks := ix.Search(context.Background(), "where is the staging data kept", 4)
	require.NotEmpty(t, chunks)
	assert.Contains(t, strings.ToLower(chunks[0].Text), "staging")
	assert.Equal(t, "staging.txt", chunks[0].SourceID)
}

func TestSearchDeterministic(t *testing.T) {
	ix := New(newTopicEmbedder(), vocab.Default(), Options{})
	require.NoError(t, ix.Build(context.Background(), writeCorpus(t)))

	first := ix.Search(context.Background(), "lineage of the schedule", 4)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ix.Search(context.Background(), "lineage of the schedule", 4))
	}
}

func TestBuildMissingDir(t *testing.T) {
	ix := New(newTopicEmbedder(), vocab.Default(), Options{})
	assert.Error(t, ix.Build(context.Background(), "/nonexistent/docs"))
}

func TestBuildEmptyDir(t *testing.T) {
	ix := New(newTopicEmbedder(), vocab.Default(), Options{})
	require.NoError(t, ix.Build(context.Background(), t.TempDir()))
	assert.True(t, ix.Empty())
	assert.Nil(t, ix.Search(context.Background(), "anything", 4))
}

func TestBuildEmbeddingFailureDegradesToLexical(t *testing.T) {
	emb := newTopicEmbedder()
	emb.err = errors.New("quota exceeded")
	ix := New(emb, vocab.Default(), Options{})

	require.NoError(t, ix.Build(context.Background(), writeCorpus(t)),
		"embedding failure must degrade, not fail the build")
	assert.Equal(t, "lexical", ix.Provenance())
	assert.False(t, ix.Empty())

	chunks := ix.Search(context.Background(), "staging cleanup", 4)
	require.NotEmpty(t, chunks)
	assert.Contains(t, strings.ToLower(chunks[0].Text), "staging")
}

func TestNilEmbedderIsLexical(t *testing.T) {
	ix := New(nil, vocab.Default(), Options{})
	require.NoError(t, ix.Build(context.Background(), writeCorpus(t)))
	assert.Equal(t, "lexical", ix.Provenance())
}

func TestLexicalSearchSynonymExpansion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.txt"),
		[]byte("The upstream source system feeds the provenance log nightly."), 0644))

	ix := New(nil, vocab.Default(), Options{})
	require.NoError(t, ix.Build(context.Background(), dir))

	// "origin" is absent from the document; its synonyms carry the match.
	chunks := ix.Search(context.Background(), "origin", 4)
	require.NotEmpty(t, chunks)
}

func TestLexicalSearchPhraseBonus(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "generic.txt"),
		[]byte("Procedure rules procedure checks procedure notes procedure summary."), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "exact.txt"),
		[]byte("The stored procedure applies the merge."), 0644))

	ix := New(nil, vocab.Default(), Options{})
	require.NoError(t, ix.Build(context.Background(), dir))

	chunks := ix.Search(context.Background(), "stored procedure behavior", 4)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "exact.txt", chunks[0].SourceID,
		"exact domain phrase match outranks raw term frequency")
}

func TestLexicalSearchCaps(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 10; i++ {
		name := filepath.Join(dir, "d"+strings.Repeat("x", i)+".txt")
		require.NoError(t, os.WriteFile(name, []byte("schedule details for run "+name), 0644))
	}

	ix := New(nil, vocab.Default(), Options{})
	require.NoError(t, ix.Build(context.Background(), dir))

	chunks := ix.Search(context.Background(), "schedule", 20)
	assert.LessOrEqual(t, len(chunks), lexicalTopK)
}

func TestDiversitySearchReturnsDistinctChunks(t *testing.T) {
	ix := New(newTopicEmbedder(), vocab.Default(), Options{})
	require.NoError(t, ix.Build(context.Background(), writeCorpus(t)))

	chunks := ix.DiversitySearch(context.Background(), "staging lineage schedule", 3)
	require.NotEmpty(t, chunks)
	seen := make(map[string]bool)
	for _, c := range chunks {
		assert.False(t, seen[c.Text], "diversity set must not repeat a chunk")
		seen[c.Text] = true
	}
}

func TestQueryEmbeddingFailureFallsBackPerQuery(t *testing.T) {
	emb := newTopicEmbedder()
	ix := New(emb, vocab.Default(), Options{})
	require.NoError(t, ix.Build(context.Background(), writeCorpus(t)))

	emb.err = errors.New("service unavailable")
	chunks := ix.Search(context.Background(), "staging cleanup", 4)
	require.NotEmpty(t, chunks, "lexical fallback must serve the query")
}

func TestOpenBreakerReportsLexicalProvenance(t *testing.T) {
	emb := newTopicEmbedder()
	ix := New(emb, vocab.Default(), Options{})
	require.NoError(t, ix.Build(context.Background(), writeCorpus(t)))
	require.Equal(t, "semantic", ix.Provenance())

	// Enough consecutive query failures to open the breaker.
	emb.err = errors.New("service unavailable")
	for i := 0; i < 5; i++ {
		chunks := ix.Search(context.Background(), "staging cleanup", 4)
		require.NotEmpty(t, chunks)
	}

	assert.Equal(t, "lexical", ix.Provenance(),
		"provenance must name the scoring mode actually serving queries")
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 0}, []float32{2, 0}), 0.001)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 3}), 0.001)
	assert.Equal(t, 0.0, cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestSupportedExt(t *testing.T) {
	assert.True(t, supportedExt("a.PDF"))
	assert.True(t, supportedExt("a.md"))
	assert.True(t, supportedExt("a.markdown"))
	assert.True(t, supportedExt("a.txt"))
	assert.False(t, supportedExt("a.docx"))
	assert.False(t, supportedExt("a"))
}
