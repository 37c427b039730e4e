package main

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/integration-desk/internal/model"
)

var (
	batchInput  string
	batchOutput string
	batchLimit  int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process a JSONL file of inquiries through the engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		items, err := readBatchItems(batchInput)
		if err != nil {
			return err
		}

		out := os.Stdout
		if batchOutput != "" {
			f, err := os.Create(batchOutput)
			if err != nil {
				return eris.Wrap(err, "create output file")
			}
			defer f.Close()
			out = f
		}

		return processBatch(ctx, env, items, batchLimit, cfg.Batch.MaxConcurrent, cfg.Batch.RatePerSecond, out)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "JSONL file of inquiries (required)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "JSONL results file (default stdout)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of inquiries to process (0 = all)")
	batchCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(batchCmd)
}

// batchItem is one line of the input file.
type batchItem struct {
	ID      string                   `json:"id,omitempty"`
	Text    string                   `json:"text"`
	History []model.ConversationTurn `json:"history,omitempty"`
}

// batchResult is one line of the output file.
type batchResult struct {
	ID     string        `json:"id,omitempty"`
	Result *model.Result `json:"result"`
}

func readBatchItems(path string) ([]batchItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open input file")
	}
	defer f.Close()

	var items []batchItem
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var item batchItem
		if err := json.Unmarshal(raw, &item); err != nil {
			zap.L().Warn("skipping malformed input line",
				zap.Int("line", line),
				zap.Error(err))
			continue
		}
		if item.Text == "" {
			zap.L().Warn("skipping input line with empty text", zap.Int("line", line))
			continue
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "read input file")
	}
	return items, nil
}

// processBatch fans the items out across workers against the shared
// index and cache, pacing engine runs with a rate limiter. Individual
// failures never abort the batch.
func processBatch(ctx context.Context, env *deskEnv, items []batchItem, limit, concurrency int, perSecond float64, out *os.File) error {
	if len(items) == 0 {
		zap.L().Info("no inquiries to process")
		return nil
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("inquiries", len(items)),
		zap.Int("concurrency", concurrency),
	)

	limiter := rate.NewLimiter(rate.Limit(perSecond), 1)
	enc := json.NewEncoder(out)
	var encMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var resolved, requested, errored atomic.Int64

	for _, item := range items {
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err // context cancelled; stop the batch
			}

			result := env.eng.ProcessInquiry(gctx, item.Text, item.History)
			switch result.Action {
			case model.ActionAutoResolve:
				resolved.Add(1)
			case model.ActionRequestInfo:
				requested.Add(1)
			default:
				errored.Add(1)
			}

			encMu.Lock()
			defer encMu.Unlock()
			if err := enc.Encode(batchResult{ID: item.ID, Result: result}); err != nil {
				return eris.Wrap(err, "write result")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("auto_resolved", resolved.Load()),
		zap.Int64("request_info", requested.Load()),
		zap.Int64("errors", errored.Load()),
	)
	return nil
}
