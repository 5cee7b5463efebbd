package service

import (
	"context"
	"time"

	"github.com/trusted-programming/tree-grepper/internal/application/common/slogger"
	"github.com/trusted-programming/tree-grepper/internal/domain/errors/domain"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency bounds parallel engine calls when no limit is configured.
const DefaultBatchConcurrency = 4

// BatchOptions configures RunBatch.
type BatchOptions struct {
	Concurrency int
	// FailFast stops scheduling new inputs after the first failure and returns it.
	FailFast bool
}

// BatchResult is the outcome of one input.
type BatchResult[T any] struct {
	Input string
	Value T
	Err   error
}

// BatchSummary counts the outcomes of a batch.
type BatchSummary struct {
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// RunBatch runs fn once per input with bounded concurrency. Each call owns its own
// parser state, so calls share nothing. Results are returned in input order. Without
// FailFast every input runs and failures are reported per result; with FailFast the
// first failure cancels the remaining work and is returned with nil results.
func RunBatch[T any](
	ctx context.Context,
	inputs []string,
	opts BatchOptions,
	fn func(ctx context.Context, input string) (T, error),
) ([]BatchResult[T], error) {
	limit := opts.Concurrency
	if limit < 1 {
		limit = DefaultBatchConcurrency
	}

	results := make([]BatchResult[T], len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, input := range inputs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			value, err := fn(gctx, input)
			if err != nil {
				err = domain.WithPathIfMissing(err, input)
			}
			results[i] = BatchResult[T]{Input: input, Value: value, Err: err}
			if err != nil && opts.FailFast {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Summarize counts results and logs each failure.
func Summarize[T any](ctx context.Context, results []BatchResult[T], started time.Time) BatchSummary {
	summary := BatchSummary{Duration: time.Since(started)}
	for _, r := range results {
		if r.Err != nil {
			summary.Failed++
			slogger.ErrorWithError(ctx, r.Err, "input failed", slogger.Fields{"input": r.Input})
			continue
		}
		summary.Succeeded++
	}
	return summary
}
