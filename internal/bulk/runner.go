package bulk

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// RunSequential applies op to every item, one at a time and in input order.
//
// Items are grouped into chunks of cfg.BatchSize (default 1). After each item
// settles its Result is stored and cfg.OnProgress is called. Between chunks the
// runner pauses for cfg.InterBatchDelay; cancelling ctx cuts the pause short
// but does not skip the remaining items, since ctx is also handed to op.
//
// The returned slice has one Result per item, at the item's input position.
// An error is returned only for invalid arguments, before any item runs.
func RunSequential[T, R any](ctx context.Context, items []T, op Operation[T, R], cfg Config[T]) ([]Result[R], error) {
	if op == nil {
		return nil, ErrNilOperation
	}
	batchSize, err := cfg.batchSize(DefaultSequentialBatchSize)
	if err != nil {
		return nil, err
	}

	results := make([]Result[R], len(items))
	bounds := ChunkBounds(len(items), batchSize)
	counts := newTally(len(items), len(bounds))

	for batch, bound := range bounds {
		for i := bound[0]; i < bound[1]; i++ {
			results[i] = invoke(ctx, op, items[i], i)
			cfg.emit(counts.record(results[i].Success, batch, cfg.label(items[i])))
		}

		if cfg.InterBatchDelay > 0 && batch < len(bounds)-1 {
			pause(ctx, cfg.InterBatchDelay)
		}
	}

	return results, nil
}

// RunParallel applies op to every item, running each chunk of cfg.BatchSize
// items (default 5) concurrently.
//
// The runner waits for the whole chunk to settle before it records progress
// and starts the next chunk, so at most cfg.BatchSize operations are in flight
// at any time and one slow item holds back its chunk. Progress is reported
// once per item, in input order within the chunk. cfg.InterBatchDelay is not
// used in this mode.
//
// The returned slice has one Result per item, at the item's input position.
// An error is returned only for invalid arguments, before any item runs.
func RunParallel[T, R any](ctx context.Context, items []T, op Operation[T, R], cfg Config[T]) ([]Result[R], error) {
	if op == nil {
		return nil, ErrNilOperation
	}
	batchSize, err := cfg.batchSize(DefaultParallelBatchSize)
	if err != nil {
		return nil, err
	}

	results := make([]Result[R], len(items))
	bounds := ChunkBounds(len(items), batchSize)
	counts := newTally(len(items), len(bounds))

	for batch, bound := range bounds {
		// Each goroutine writes only its own slot of results.
		var g errgroup.Group
		for i := bound[0]; i < bound[1]; i++ {
			g.Go(func() error {
				results[i] = invoke(ctx, op, items[i], i)
				return nil
			})
		}
		_ = g.Wait()

		for i := bound[0]; i < bound[1]; i++ {
			cfg.emit(counts.record(results[i].Success, batch, cfg.label(items[i])))
		}
	}

	return results, nil
}

// pause blocks for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
