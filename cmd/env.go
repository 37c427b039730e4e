package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/integration-desk/internal/answer"
	"github.com/sells-group/integration-desk/internal/cache"
	"github.com/sells-group/integration-desk/internal/engine"
	"github.com/sells-group/integration-desk/internal/index"
	"github.com/sells-group/integration-desk/internal/llm"
	"github.com/sells-group/integration-desk/internal/monitoring"
	"github.com/sells-group/integration-desk/internal/retrieval"
	"github.com/sells-group/integration-desk/internal/rewrite"
	"github.com/sells-group/integration-desk/internal/triage"
	"github.com/sells-group/integration-desk/internal/vocab"
	anthropicpkg "github.com/sells-group/integration-desk/pkg/anthropic"
	"github.com/sells-group/integration-desk/pkg/jina"
)

// deskEnv bundles the process-wide handles built once at startup.
type deskEnv struct {
	store cache.Cache
	idx   *index.Index
	eng   *engine.Engine
}

func (e *deskEnv) Close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			zap.L().Warn("cache close failed", zap.Error(err))
		}
	}
}

// initEngine builds the cache, vocabulary, document index, and engine
// from the loaded config. The document directory being absent is a
// degraded state, not a startup failure.
func initEngine(ctx context.Context) (*deskEnv, error) {
	tables := vocab.Default()
	if cfg.Vocab.TablesPath != "" {
		t, err := vocab.LoadFile(cfg.Vocab.TablesPath)
		if err != nil {
			return nil, eris.Wrap(err, "load vocab tables")
		}
		tables = t
	}

	var store cache.Cache
	switch cfg.Cache.Backend {
	case "sqlite":
		s, err := cache.NewSQLite(cfg.Cache.Path)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite cache")
		}
		store = s
	default:
		store = cache.NewMemory()
	}

	var embedder index.Embedder
	if cfg.Jina.Key != "" {
		embedder = jina.NewClient(cfg.Jina.Key,
			jina.WithBaseURL(cfg.Jina.BaseURL),
			jina.WithModel(cfg.Jina.Model))
	} else {
		zap.L().Warn("no jina key configured, index will use lexical scoring")
	}

	idx := index.New(embedder, tables, index.Options{
		ChunkSize:    cfg.Documents.ChunkSize,
		ChunkOverlap: cfg.Documents.ChunkOverlap,
		Extractor:    index.NewPdfToText(cfg.Documents.PdfToTextPath),
	})
	if _, err := os.Stat(cfg.Documents.Dir); err != nil {
		zap.L().Warn("document directory unavailable, answers will be document-free",
			zap.String("dir", cfg.Documents.Dir))
	} else if err := idx.Build(ctx, cfg.Documents.Dir); err != nil {
		return nil, eris.Wrap(err, "build document index")
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	triageCompleter := llm.NewAnthropic(anthropicClient, llm.Options{
		Model:       cfg.Anthropic.TriageModel,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		Temperature: cfg.Anthropic.Temperature,
		Phase:       "triage",
	})
	synthesisCompleter := llm.NewAnthropic(anthropicClient, llm.Options{
		Model:             cfg.Anthropic.SynthesisModel,
		MaxTokens:         cfg.Anthropic.MaxTokens,
		Temperature:       cfg.Anthropic.Temperature,
		CacheSystemPrompt: true,
		Phase:             "synthesis",
	})

	eng := engine.New(
		rewrite.New(tables),
		triage.NewClassifier(triageCompleter, store, tables),
		retrieval.New(idx, store, tables),
		answer.New(synthesisCompleter, store),
		monitoring.NewCollector(),
	)

	return &deskEnv{store: store, idx: idx, eng: eng}, nil
}
