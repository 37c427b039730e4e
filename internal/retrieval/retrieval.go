// Package retrieval runs the hybrid search pipeline: a primary semantic
// pass, synonym-expanded follow-up searches when the pool is thin, and a
// diversity rerank as a last resort, with the merged result deduplicated
// and capped. Results are cached by rewritten query text.
package retrieval

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/integration-desk/internal/cache"
	"github.com/sells-group/integration-desk/internal/model"
	"github.com/sells-group/integration-desk/internal/vocab"
)

const (
	// maxChunks caps how many chunks feed answer synthesis.
	maxChunks = 4

	// primaryK is the candidate count for the primary search pass.
	primaryK = 6

	// expansionChunksPerTerm caps extra chunks merged per expansion term.
	expansionChunksPerTerm = 3

	// thinPool triggers the expansion and diversity passes.
	thinPool = 3

	// dedupePrefixLen is how many characters of chunk text identify a
	// duplicate across passes.
	dedupePrefixLen = 100
)

// Strategy labels recorded on results.
const (
	StrategySemantic  = "semantic"
	StrategyExpanded  = "semantic+expanded"
	StrategyDiversity = "semantic+diversity"
)

// Searcher is the slice of the document index retrieval needs.
type Searcher interface {
	Search(ctx context.Context, query string, k int) []model.DocumentChunk
	DiversitySearch(ctx context.Context, query string, k int) []model.DocumentChunk
	Empty() bool
	Provenance() string
}

// Retriever executes the hybrid pipeline against an index.
type Retriever struct {
	searcher Searcher
	store    cache.Cache
	tables   *vocab.Tables
}

// New creates a Retriever. store may be nil to disable caching.
func New(searcher Searcher, store cache.Cache, tables *vocab.Tables) *Retriever {
	return &Retriever{searcher: searcher, store: store, tables: tables}
}

// Retrieve returns the chunks backing an answer for the rewritten query.
// An empty index short-circuits with IndexEmpty set so the caller can
// take the document-free path. The pipeline is deterministic for a fixed
// corpus, so cached and fresh results agree.
func (r *Retriever) Retrieve(ctx context.Context, query string) (*model.RetrievalResult, error) {
	if r.searcher.Empty() {
		return &model.RetrievalResult{
			IndexEmpty: true,
			Provenance: r.searcher.Provenance(),
		}, nil
	}

	if r.store == nil {
		result := r.retrieveUncached(ctx, query)
		return result, nil
	}

	raw, err := r.store.GetOrCompute(cache.KindRetrieval, cache.Key(query), func() ([]byte, error) {
		result := r.retrieveUncached(ctx, query)
		return json.Marshal(result)
	})
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: cache load")
	}

	var result model.RetrievalResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, eris.Wrap(err, "retrieval: decode cached result")
	}
	return &result, nil
}

func (r *Retriever) retrieveUncached(ctx context.Context, query string) *model.RetrievalResult {
	strategy := StrategySemantic
	pool := r.searcher.Search(ctx, query, primaryK)

	// Expansion always runs; a synonym hit can surface chunks the raw
	// query wording misses even when the primary pass looks healthy.
	if expanded := r.expandedSearch(ctx, query); len(expanded) > 0 {
		pool = append(pool, expanded...)
		strategy = StrategyExpanded
	}

	if len(pool) < thinPool {
		if diverse := r.searcher.DiversitySearch(ctx, query, maxChunks); len(diverse) > 0 {
			pool = append(pool, diverse...)
			strategy = StrategyDiversity
		}
	}

	chunks := dedupe(pool)
	if len(chunks) > maxChunks {
		chunks = chunks[:maxChunks]
	}

	zap.L().Debug("retrieval complete",
		zap.String("strategy", strategy),
		zap.Int("chunks", len(chunks)))

	return &model.RetrievalResult{
		Chunks:     chunks,
		Strategy:   strategy,
		Provenance: r.searcher.Provenance(),
	}
}

// expandedSearch reruns the search with each synonym expansion appended
// to the query, merging at most three extra chunks per term.
func (r *Retriever) expandedSearch(ctx context.Context, query string) []model.DocumentChunk {
	var pool []model.DocumentChunk
	for _, term := range r.tables.ExpandSynonyms(query) {
		pool = append(pool, r.searcher.Search(ctx, query+" "+term, expansionChunksPerTerm)...)
	}
	return pool
}

// dedupe drops chunks whose first hundred characters repeat an earlier
// chunk, keeping first-seen order.
func dedupe(chunks []model.DocumentChunk) []model.DocumentChunk {
	seen := make(map[string]bool, len(chunks))
	var out []model.DocumentChunk
	for _, c := range chunks {
		key := c.Text
		if len(key) > dedupePrefixLen {
			key = key[:dedupePrefixLen]
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
