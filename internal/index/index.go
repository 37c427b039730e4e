// Package index builds and queries the in-memory document index backing
// retrieval. Chunks are embedded at build time; when the embedding
// service is unreachable the index degrades to lexical term scoring so
// answers stay grounded in the corpus instead of failing outright.
package index

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/integration-desk/internal/model"
	"github.com/sells-group/integration-desk/internal/resilience"
	"github.com/sells-group/integration-desk/internal/textutil"
	"github.com/sells-group/integration-desk/internal/vocab"
)

const (
	// ScoreThreshold is the minimum cosine similarity for a semantic match.
	ScoreThreshold = 0.15

	// lexicalTopK caps lexical fallback results.
	lexicalTopK = 6

	// mmrLambda balances relevance against diversity in DiversitySearch.
	mmrLambda = 0.5

	// mmrPoolSize is how many top candidates MMR reranks.
	mmrPoolSize = 20

	// embedBatchSize limits texts per embedding request at build time.
	embedBatchSize = 32

	// phraseBonus rewards an exact domain phrase shared by query and chunk.
	phraseBonus = 5
)

// Embedder turns texts into vectors. The jina client satisfies it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Options tunes index construction.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
	Extractor    Extractor
}

// Index holds the chunked corpus and, when embedding succeeded, one
// vector per chunk. Safe for concurrent reads after Build returns.
type Index struct {
	mu       sync.RWMutex
	chunks   []model.DocumentChunk
	vectors  [][]float32
	lexical  bool
	embedder Embedder
	breaker  *resilience.Breaker
	tables   *vocab.Tables
	opts     Options
}

// New creates an empty index. A nil embedder means lexical-only mode.
func New(embedder Embedder, tables *vocab.Tables, opts Options) *Index {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	if opts.ChunkOverlap <= 0 {
		opts.ChunkOverlap = defaultChunkOverlap
	}
	if opts.Extractor == nil {
		opts.Extractor = NewPdfToText("")
	}
	return &Index{
		embedder: embedder,
		breaker:  resilience.NewBreaker("jina-embed", 3, resilience.DefaultCooldown),
		tables:   tables,
		opts:     opts,
		lexical:  embedder == nil,
	}
}

// Build walks dir, loads every supported file, chunks the pages, and
// embeds the chunks. Files that fail to load are logged and skipped so
// one bad PDF cannot take down the whole corpus. An embedding failure
// flips the index into lexical mode rather than returning an error.
func (ix *Index) Build(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return eris.Wrapf(err, "index: read dir %s", dir)
	}

	var chunks []model.DocumentChunk
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !supportedExt(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		doc, err := loadDocument(ctx, path, ix.opts.Extractor)
		if err != nil {
			zap.L().Warn("skipping unreadable document",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		chunks = append(chunks, ix.chunkDocument(doc)...)
		loaded++
	}

	ix.mu.Lock()
	ix.chunks = chunks
	ix.vectors = nil
	ix.mu.Unlock()

	zap.L().Info("document corpus loaded",
		zap.Int("documents", loaded),
		zap.Int("chunks", len(chunks)))

	if len(chunks) == 0 {
		return nil
	}
	return ix.embedChunks(ctx)
}

func (ix *Index) chunkDocument(doc *Document) []model.DocumentChunk {
	var chunks []model.DocumentChunk
	for _, page := range doc.Pages {
		for _, text := range splitText(page.Text, ix.opts.ChunkSize, ix.opts.ChunkOverlap) {
			chunks = append(chunks, model.DocumentChunk{
				SourceID:    doc.Name,
				PageNumber:  page.Number,
				Text:        text,
				ByteSize:    int64(len(text)),
				ContentType: doc.ContentType,
			})
		}
	}
	return chunks
}

func (ix *Index) embedChunks(ctx context.Context) error {
	if ix.embedder == nil {
		ix.mu.Lock()
		ix.lexical = true
		ix.mu.Unlock()
		return nil
	}

	ix.mu.RLock()
	texts := make([]string, len(ix.chunks))
	for i, c := range ix.chunks {
		texts[i] = c.Text
	}
	ix.mu.RUnlock()

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := ix.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			ix.degradeToLexical(err)
			return nil
		}
		vectors = append(vectors, batch...)
	}

	ix.mu.Lock()
	ix.vectors = vectors
	ix.lexical = false
	ix.mu.Unlock()

	zap.L().Info("corpus embedded", zap.Int("vectors", len(vectors)))
	return nil
}

func (ix *Index) degradeToLexical(err error) {
	ix.mu.Lock()
	ix.lexical = true
	ix.vectors = nil
	ix.mu.Unlock()
	zap.L().Warn("embedding unavailable, index degraded to lexical scoring",
		zap.Error(err))
}

// Empty reports whether the index holds no chunks at all.
func (ix *Index) Empty() bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks) == 0
}

// Provenance names the active scoring mode, "semantic" or "lexical".
// While the embedding breaker is open every query is served by term
// scoring, so the mode reads lexical until the breaker recovers.
func (ix *Index) Provenance() string {
	ix.mu.RLock()
	lexical := ix.lexical
	ix.mu.RUnlock()
	if lexical || ix.breaker.Open() {
		return "lexical"
	}
	return "semantic"
}

// Search returns up to k chunks scoring at or above the similarity
// threshold for the query, best first. In lexical mode (or when the
// query embedding fails) it falls back to term scoring. Results are
// deterministic for a fixed corpus and query.
func (ix *Index) Search(ctx context.Context, query string, k int) []model.DocumentChunk {
	scored := ix.scoreQuery(ctx, query)
	if len(scored) > k {
		scored = scored[:k]
	}
	out := make([]model.DocumentChunk, len(scored))
	for i, s := range scored {
		out[i] = ix.chunkAt(s.idx)
	}
	return out
}

// DiversitySearch reranks the top candidates with maximal marginal
// relevance so the k results cover different regions of the corpus
// instead of clustering on one passage.
func (ix *Index) DiversitySearch(ctx context.Context, query string, k int) []model.DocumentChunk {
	ix.mu.RLock()
	lexical := ix.lexical
	ix.mu.RUnlock()
	if lexical {
		return ix.Search(ctx, query, k)
	}

	qvec, ok := ix.embedQuery(ctx, query)
	if !ok {
		return ix.Search(ctx, query, k)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	candidates := ix.rankSemanticLocked(qvec, 0) // no threshold: keep the pool full
	if len(candidates) > mmrPoolSize {
		candidates = candidates[:mmrPoolSize]
	}
	if len(candidates) == 0 {
		return nil
	}

	var selected []scoredChunk
	remaining := append([]scoredChunk(nil), candidates...)
	for len(selected) < k && len(remaining) > 0 {
		bestPos := 0
		bestScore := math.Inf(-1)
		for pos, cand := range remaining {
			maxSim := 0.0
			for _, sel := range selected {
				sim := cosine(ix.vectors[cand.idx], ix.vectors[sel.idx])
				if sim > maxSim {
					maxSim = sim
				}
			}
			score := mmrLambda*cand.score - (1-mmrLambda)*maxSim
			if score > bestScore {
				bestScore = score
				bestPos = pos
			}
		}
		selected = append(selected, remaining[bestPos])
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	out := make([]model.DocumentChunk, len(selected))
	for i, s := range selected {
		out[i] = ix.chunks[s.idx]
	}
	return out
}

type scoredChunk struct {
	idx   int
	score float64
}

func (ix *Index) chunkAt(i int) model.DocumentChunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.chunks[i]
}

func (ix *Index) scoreQuery(ctx context.Context, query string) []scoredChunk {
	ix.mu.RLock()
	lexical := ix.lexical
	ix.mu.RUnlock()

	if !lexical {
		if qvec, ok := ix.embedQuery(ctx, query); ok {
			ix.mu.RLock()
			defer ix.mu.RUnlock()
			return ix.rankSemanticLocked(qvec, ScoreThreshold)
		}
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.rankLexicalLocked(query)
}

func (ix *Index) embedQuery(ctx context.Context, query string) ([]float32, bool) {
	if ix.embedder == nil || !ix.breaker.Allow() {
		return nil, false
	}
	vecs, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil || len(vecs) != 1 {
		ix.breaker.RecordFailure()
		zap.L().Warn("query embedding failed, using lexical scoring",
			zap.Error(err))
		return nil, false
	}
	ix.breaker.RecordSuccess()
	return vecs[0], true
}

func (ix *Index) rankSemanticLocked(qvec []float32, threshold float64) []scoredChunk {
	var scored []scoredChunk
	for i := range ix.chunks {
		if i >= len(ix.vectors) {
			break
		}
		sim := cosine(qvec, ix.vectors[i])
		if sim >= threshold && sim > 0 {
			scored = append(scored, scoredChunk{idx: i, score: sim})
		}
	}
	sortScored(scored)
	return scored
}

// rankLexicalLocked counts query term occurrences, expands terms through
// the synonym table, and rewards exact domain phrase matches. Top six.
func (ix *Index) rankLexicalLocked(query string) []scoredChunk {
	folded := textutil.Fold(query)
	terms := lexicalTerms(folded)
	for _, syn := range ix.tables.ExpandSynonyms(query) {
		terms = append(terms, textutil.Fold(syn))
	}

	var queryPhrases []string
	for _, phrase := range ix.tables.DomainPhrases {
		if strings.Contains(folded, textutil.Fold(phrase)) {
			queryPhrases = append(queryPhrases, textutil.Fold(phrase))
		}
	}

	var scored []scoredChunk
	for i, chunk := range ix.chunks {
		chunkFolded := textutil.Fold(chunk.Text)
		score := 0.0
		for _, term := range terms {
			score += float64(strings.Count(chunkFolded, term))
		}
		for _, phrase := range queryPhrases {
			if strings.Contains(chunkFolded, phrase) {
				score += phraseBonus
			}
		}
		if score > 0 {
			scored = append(scored, scoredChunk{idx: i, score: score})
		}
	}
	sortScored(scored)
	if len(scored) > lexicalTopK {
		scored = scored[:lexicalTopK]
	}
	return scored
}

// lexicalTerms keeps unique folded words longer than two characters.
func lexicalTerms(folded string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, w := range strings.Fields(folded) {
		w = strings.Trim(w, ".,;:!?\"'()")
		if len(w) <= 2 || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

// sortScored orders by score descending with chunk position breaking
// ties so results are stable run to run.
func sortScored(scored []scoredChunk) {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].idx < scored[j].idx
	})
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
