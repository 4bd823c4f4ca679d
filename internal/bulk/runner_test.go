package bulk

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runFunc func(ctx context.Context, items []int, op Operation[int, string], cfg Config[int]) ([]Result[string], error)

// runners lets the shared contract tests cover both scheduling modes.
func runners() map[string]runFunc {
	return map[string]runFunc{
		"Sequential": RunSequential[int, string],
		"Parallel":   RunParallel[int, string],
	}
}

func sequence(n int) []int {
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}
	return items
}

func format(_ context.Context, item int) (string, error) {
	return strconv.Itoa(item), nil
}

func TestRunners_Contract(t *testing.T) {
	for name, run := range runners() {
		t.Run(name, func(t *testing.T) {
			t.Run("ResultsArePositionAligned", func(t *testing.T) {
				items := sequence(23)
				op := func(_ context.Context, item int) (string, error) {
					// Later items finish first.
					time.Sleep(time.Duration(len(items)-item) * 100 * time.Microsecond)
					if item%4 == 0 {
						return "", fmt.Errorf("item %d rejected", item)
					}
					return strconv.Itoa(item), nil
				}

				results, err := run(context.Background(), items, op, Config[int]{BatchSize: 6})
				require.NoError(t, err)
				require.Len(t, results, len(items))

				for i, r := range results {
					assert.Equal(t, i, r.Index)
					if i%4 == 0 {
						assert.False(t, r.Success)
						require.NotNil(t, r.Err)
						assert.Equal(t, fmt.Sprintf("item %d rejected", i), r.Err.Message)
					} else {
						assert.True(t, r.Success)
						assert.Nil(t, r.Err)
						assert.Equal(t, strconv.Itoa(i), r.Value)
					}
				}
			})

			t.Run("MixedOutcomes", func(t *testing.T) {
				op := func(_ context.Context, item int) (string, error) {
					if item == 1 {
						return "", errors.New("b failed")
					}
					return "ok", nil
				}

				results, err := run(context.Background(), []int{0, 1, 2}, op, Config[int]{})
				require.NoError(t, err)
				require.Len(t, results, 3)
				assert.True(t, results[0].Success)
				assert.False(t, results[1].Success)
				assert.True(t, results[2].Success)

				assert.Equal(t, Summary{Total: 3, Succeeded: 2, Failed: 1, SuccessRate: 66.67}, Summarize(results))
			})

			t.Run("AllSucceed", func(t *testing.T) {
				results, err := run(context.Background(), sequence(10), format, Config[int]{})
				require.NoError(t, err)

				s := Summarize(results)
				assert.Equal(t, 0, s.Failed)
				assert.Equal(t, 100.0, s.SuccessRate)
			})

			t.Run("AllFail", func(t *testing.T) {
				op := func(context.Context, int) (string, error) { return "", errors.New("down") }
				results, err := run(context.Background(), sequence(7), op, Config[int]{BatchSize: 3})
				require.NoError(t, err)

				s := Summarize(results)
				assert.Equal(t, 0, s.Succeeded)
				assert.Equal(t, 7, s.Failed)
				assert.Equal(t, 0.0, s.SuccessRate)
			})

			t.Run("EmptyItems", func(t *testing.T) {
				called := false
				cfg := Config[int]{OnProgress: func(Progress) { called = true }}

				results, err := run(context.Background(), nil, format, cfg)
				require.NoError(t, err)
				assert.NotNil(t, results)
				assert.Empty(t, results)
				assert.False(t, called)
				assert.Equal(t, Summary{}, Summarize(results))
			})

			t.Run("PanicIsRecorded", func(t *testing.T) {
				op := func(_ context.Context, item int) (string, error) {
					if item == 1 {
						panic("record locked")
					}
					return "ok", nil
				}

				results, err := run(context.Background(), sequence(3), op, Config[int]{})
				require.NoError(t, err)
				require.Len(t, results, 3)
				assert.True(t, results[0].Success)
				assert.True(t, results[2].Success)

				require.NotNil(t, results[1].Err)
				assert.False(t, results[1].Success)
				assert.True(t, results[1].Err.Panicked)
				assert.Equal(t, "record locked", results[1].Err.Message)
			})

			t.Run("ProgressInvariants", func(t *testing.T) {
				op := func(_ context.Context, item int) (string, error) {
					if item%3 == 0 {
						return "", errors.New("nope")
					}
					return "ok", nil
				}

				var snaps []Progress
				cfg := Config[int]{
					BatchSize:  4,
					OnProgress: func(p Progress) { snaps = append(snaps, p) },
					LabelOf:    func(item int) string { return "item-" + strconv.Itoa(item) },
				}

				_, err := run(context.Background(), sequence(10), op, cfg)
				require.NoError(t, err)
				require.Len(t, snaps, 10)

				completions := 0
				for i, p := range snaps {
					assert.Equal(t, 10, p.Total)
					assert.Equal(t, 3, p.TotalBatches)
					assert.Equal(t, i+1, p.Done())
					assert.LessOrEqual(t, p.Done(), p.Total)
					assert.Equal(t, "item-"+strconv.Itoa(i), p.CurrentItemLabel)
					assert.Equal(t, i/4, p.Batch)
					if p.IsComplete() {
						completions++
					}
				}
				assert.Equal(t, 1, completions)

				last := snaps[len(snaps)-1]
				assert.Equal(t, 6, last.Completed)
				assert.Equal(t, 4, last.Failed)
				assert.Equal(t, 100.0, last.PercentComplete())
			})

			t.Run("BatchSizeLargerThanInput", func(t *testing.T) {
				var snaps []Progress
				cfg := Config[int]{BatchSize: 50, OnProgress: func(p Progress) { snaps = append(snaps, p) }}

				results, err := run(context.Background(), sequence(5), format, cfg)
				require.NoError(t, err)
				assert.Len(t, results, 5)
				require.Len(t, snaps, 5)
				assert.Equal(t, 1, snaps[4].TotalBatches)
			})

			t.Run("InvalidArguments", func(t *testing.T) {
				_, err := run(context.Background(), sequence(3), format, Config[int]{BatchSize: -1})
				require.ErrorIs(t, err, ErrInvalidArgument)

				_, err = run(context.Background(), sequence(3), format, Config[int]{InterBatchDelay: -time.Second})
				require.ErrorIs(t, err, ErrInvalidArgument)

				_, err = run(context.Background(), sequence(3), nil, Config[int]{})
				require.ErrorIs(t, err, ErrNilOperation)
			})

			t.Run("ContextReachesOperation", func(t *testing.T) {
				type key struct{}
				ctx := context.WithValue(context.Background(), key{}, "run-1")
				op := func(ctx context.Context, _ int) (string, error) {
					v, _ := ctx.Value(key{}).(string)
					return v, nil
				}

				results, err := run(ctx, sequence(2), op, Config[int]{})
				require.NoError(t, err)
				assert.Equal(t, "run-1", results[0].Value)
				assert.Equal(t, "run-1", results[1].Value)
			})
		})
	}
}

func TestRunSequential_NeverOverlaps(t *testing.T) {
	var inFlight, peak int32
	op := func(_ context.Context, item int) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		return strconv.Itoa(item), nil
	}

	_, err := RunSequential(context.Background(), sequence(12), op, Config[int]{BatchSize: 4})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&peak))
}

func TestRunSequential_InterBatchDelay(t *testing.T) {
	var mu sync.Mutex
	starts := make([]time.Time, 0, 2)
	op := func(_ context.Context, item int) (string, error) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		return strconv.Itoa(item), nil
	}

	cfg := Config[int]{BatchSize: 1, InterBatchDelay: 50 * time.Millisecond}
	_, err := RunSequential(context.Background(), sequence(2), op, cfg)
	require.NoError(t, err)

	require.Len(t, starts, 2)
	assert.GreaterOrEqual(t, starts[1].Sub(starts[0]), 50*time.Millisecond)
}

func TestRunSequential_NoDelayAfterLastBatch(t *testing.T) {
	cfg := Config[int]{BatchSize: 5, InterBatchDelay: time.Second}

	start := time.Now()
	_, err := RunSequential(context.Background(), sequence(5), format, cfg)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRunSequential_CancelShortensDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := Config[int]{BatchSize: 1, InterBatchDelay: time.Minute}
	op := func(ctx context.Context, _ int) (string, error) {
		return "", ctx.Err()
	}

	start := time.Now()
	results, err := RunSequential(ctx, sequence(3), op, cfg)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	// Every item still gets a result.
	require.Len(t, results, 3)
	for _, r := range results {
		assert.False(t, r.Success)
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestRunSequential_ProgressInterleavesWithExecution(t *testing.T) {
	var events []string
	op := func(_ context.Context, item int) (string, error) {
		events = append(events, "run-"+strconv.Itoa(item))
		return "", nil
	}
	cfg := Config[int]{
		BatchSize:  2,
		OnProgress: func(p Progress) { events = append(events, "progress-"+strconv.Itoa(p.Done())) },
	}

	_, err := RunSequential(context.Background(), sequence(3), op, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-0", "progress-1", "run-1", "progress-2", "run-2", "progress-3"}, events)
}

func TestRunParallel_ConcurrencyCap(t *testing.T) {
	var inFlight, peak int32
	op := func(_ context.Context, item int) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return strconv.Itoa(item), nil
	}

	t.Run("Default", func(t *testing.T) {
		atomic.StoreInt32(&peak, 0)
		_, err := RunParallel(context.Background(), sequence(17), op, Config[int]{})
		require.NoError(t, err)
		assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(DefaultParallelBatchSize))
		assert.Greater(t, atomic.LoadInt32(&peak), int32(1))
	})

	t.Run("Custom", func(t *testing.T) {
		atomic.StoreInt32(&peak, 0)
		_, err := RunParallel(context.Background(), sequence(20), op, Config[int]{BatchSize: 3})
		require.NoError(t, err)
		assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	})
}

func TestRunParallel_ProgressAfterChunkSettles(t *testing.T) {
	var mu sync.Mutex
	finished := 0
	op := func(_ context.Context, item int) (string, error) {
		time.Sleep(time.Duration(item%3) * time.Millisecond)
		mu.Lock()
		finished++
		mu.Unlock()
		return "", nil
	}

	var seenFinished []int
	cfg := Config[int]{
		BatchSize: 3,
		OnProgress: func(Progress) {
			mu.Lock()
			seenFinished = append(seenFinished, finished)
			mu.Unlock()
		},
	}

	_, err := RunParallel(context.Background(), sequence(6), op, cfg)
	require.NoError(t, err)

	// Every snapshot of a chunk is emitted only once all of its items finished.
	assert.Equal(t, []int{3, 3, 3, 6, 6, 6}, seenFinished)
}

func TestRunParallel_IgnoresInterBatchDelay(t *testing.T) {
	cfg := Config[int]{BatchSize: 1, InterBatchDelay: time.Second}

	start := time.Now()
	_, err := RunParallel(context.Background(), sequence(3), format, cfg)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestChunkBounds(t *testing.T) {
	tests := []struct {
		name  string
		total int
		size  int
		want  [][2]int
	}{
		{name: "even", total: 20, size: 10, want: [][2]int{{0, 10}, {10, 20}}},
		{name: "remainder", total: 25, size: 10, want: [][2]int{{0, 10}, {10, 20}, {20, 25}}},
		{name: "single chunk", total: 3, size: 10, want: [][2]int{{0, 3}}},
		{name: "empty", total: 0, size: 10, want: nil},
		{name: "invalid size", total: 5, size: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChunkBounds(tt.total, tt.size))
		})
	}
}
