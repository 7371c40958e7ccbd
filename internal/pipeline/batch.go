package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/trustscan/internal/model"
)

// AnalyzeFunc analyzes one target URL.
type AnalyzeFunc func(ctx context.Context, target string) (*model.AnalysisResult, error)

// BatchResult is the outcome for one target of a batch.
type BatchResult struct {
	Target string
	Result *model.AnalysisResult
	Err    error
}

// BatchProcessor analyzes many targets with bounded concurrency.
type BatchProcessor struct {
	analyze     AnalyzeFunc
	concurrency int
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent analyses.
// Default is 4 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(analyze AnalyzeFunc, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		analyze:     analyze,
		concurrency: 4,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.New(slog.DiscardHandler)
	}

	return bp
}

// ProcessBatch analyzes all targets and returns their results in input
// order. A failed target is recorded in its BatchResult and does not stop
// the others. The error is non-nil only when ctx ends early.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]BatchResult, error) {
	results := make([]BatchResult, len(targets))
	err := bp.ProcessBatchWithCallback(ctx, targets, func(r BatchResult, index int) {
		results[index] = r
	})
	return results, err
}

// ProcessBatchWithCallback analyzes all targets and calls callback as each
// one completes. callback runs on worker goroutines; each index is reported
// exactly once for every target that was started.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(r BatchResult, index int),
) error {
	bp.logger.Info("starting batch analysis",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				callback(BatchResult{Target: target, Err: err}, i)
				return err
			}

			res, err := bp.analyze(ctx, target)
			if err != nil {
				bp.logger.Warn("analysis failed", "target", target, "error", err)
			} else {
				bp.logger.Info("analysis completed", "target", target, "score", res.Score)
			}
			callback(BatchResult{Target: target, Result: res, Err: err}, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch analysis complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)
	return err
}
