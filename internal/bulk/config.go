package bulk

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Default chunk sizes per scheduling mode.
const (
	// DefaultSequentialBatchSize is the chunk size used by RunSequential when none is set.
	DefaultSequentialBatchSize = 1

	// DefaultParallelBatchSize is the concurrency cap used by RunParallel when none is set.
	DefaultParallelBatchSize = 5
)

// Argument errors returned by the runners before any item is processed.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNilOperation    = errors.New("operation cannot be nil")
)

// Operation is applied to each item of a run. It may block, and it may fail by
// returning an error or by panicking; both are recorded as item failures.
type Operation[T, R any] func(ctx context.Context, item T) (R, error)

// ProgressFunc receives a snapshot after every settled item.
type ProgressFunc func(progress Progress)

// Config tunes a single run. The zero value is valid and selects the mode defaults.
type Config[T any] struct {
	// OnProgress, if set, is called synchronously from the calling goroutine.
	OnProgress ProgressFunc

	// BatchSize is the chunk size. Zero selects the mode default.
	// In parallel mode it is also the maximum number of in-flight operations.
	BatchSize int

	// InterBatchDelay is the pause between chunks in sequential mode.
	// RunParallel ignores it.
	InterBatchDelay time.Duration

	// LabelOf, if set, names the item reported in Progress.CurrentItemLabel.
	LabelOf func(item T) string
}

// batchSize validates the config and returns the effective chunk size.
func (c Config[T]) batchSize(defaultSize int) (int, error) {
	if c.BatchSize < 0 {
		return 0, fmt.Errorf("%w: batch size must be >= 0, got %d", ErrInvalidArgument, c.BatchSize)
	}
	if c.InterBatchDelay < 0 {
		return 0, fmt.Errorf("%w: inter-batch delay must be >= 0, got %s", ErrInvalidArgument, c.InterBatchDelay)
	}
	if c.BatchSize == 0 {
		return defaultSize, nil
	}
	return c.BatchSize, nil
}

func (c Config[T]) label(item T) string {
	if c.LabelOf == nil {
		return ""
	}
	return c.LabelOf(item)
}

func (c Config[T]) emit(p Progress) {
	if c.OnProgress != nil {
		c.OnProgress(p)
	}
}

// ChunkBounds returns the [start, end) index pairs of the contiguous chunks
// that split total items into groups of size.
func ChunkBounds(total, size int) [][2]int {
	if total <= 0 || size <= 0 {
		return nil
	}

	count := total / size
	if total%size > 0 {
		count++
	}

	bounds := make([][2]int, count)
	for i := range count {
		start := i * size
		end := min(start+size, total)
		bounds[i] = [2]int{start, end}
	}
	return bounds
}
