package bulk

import (
	"sync"
	"time"
)

// RateTracker derives throughput and time estimates from the Progress
// snapshots of a run. It is safe for concurrent use.
type RateTracker struct {
	mu         sync.RWMutex
	latest     Progress
	startTime  time.Time
	lastUpdate time.Time
}

// NewRateTracker creates a tracker whose clock starts now.
func NewRateTracker(total int) *RateTracker {
	now := time.Now()
	return &RateTracker{
		latest:     Progress{Total: total},
		startTime:  now,
		lastUpdate: now,
	}
}

// Observe records a snapshot. It can be passed directly as a ProgressFunc.
func (t *RateTracker) Observe(p Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.latest = p
	t.lastUpdate = time.Now()
}

// Latest returns the most recent snapshot.
func (t *RateTracker) Latest() Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.latest
}

// EstimatedTimeRemaining extrapolates the average time per settled item over
// the items still pending. Returns 0 before the first item settles.
func (t *RateTracker) EstimatedTimeRemaining() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.remainingLocked()
}

// Snapshot returns a consistent copy of the tracker state.
func (t *RateTracker) Snapshot() RateSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return RateSnapshot{
		Progress:       t.latest,
		LastUpdateTime: t.lastUpdate,
		ElapsedTime:    time.Since(t.startTime),
		ItemsPerSecond: t.itemsPerSecondLocked(),
		Remaining:      t.remainingLocked(),
	}
}

// RateSnapshot is an immutable view of a RateTracker.
type RateSnapshot struct {
	Progress       Progress
	LastUpdateTime time.Time
	ElapsedTime    time.Duration
	// ItemsPerSecond counts settled items, failed ones included.
	ItemsPerSecond float64
	// Remaining is the estimated time until every item has settled.
	Remaining time.Duration
}

func (t *RateTracker) itemsPerSecondLocked() float64 {
	elapsed := time.Since(t.startTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(t.latest.Done()) / elapsed
}

func (t *RateTracker) remainingLocked() time.Duration {
	done := t.latest.Done()
	if done == 0 {
		return 0
	}

	avgPerItem := time.Since(t.startTime) / time.Duration(done)
	pending := t.latest.Total - done
	if pending < 0 {
		pending = 0
	}
	return avgPerItem * time.Duration(pending)
}
