package bulk

// percentMultiplier is used to convert a ratio to percentage (0-100).
const percentMultiplier = 100

// Progress is an immutable snapshot of a run, reported after each settled item.
type Progress struct {
	// Total is the number of items in the run. Fixed when the run starts.
	Total int

	// Completed is the number of items that succeeded so far.
	Completed int

	// Failed is the number of items that failed so far.
	Failed int

	// CurrentItemLabel names the item that produced this snapshot.
	// Empty unless Config.LabelOf is set.
	CurrentItemLabel string

	// Batch is the 0-based index of the chunk the item belongs to.
	Batch int

	// TotalBatches is the number of chunks in the run.
	TotalBatches int
}

// Done returns the number of settled items.
func (p Progress) Done() int {
	return p.Completed + p.Failed
}

// IsComplete returns true once every item has settled.
func (p Progress) IsComplete() bool {
	return p.Done() >= p.Total
}

// PercentComplete returns the settled share of the run (0-100).
func (p Progress) PercentComplete() float64 {
	if p.Total == 0 {
		return 0
	}
	return (float64(p.Done()) / float64(p.Total)) * percentMultiplier
}

// tally holds the running counters of a run. Only the coordinating goroutine
// touches it.
type tally struct {
	total        int
	totalBatches int
	completed    int
	failed       int
}

func newTally(total, totalBatches int) *tally {
	return &tally{total: total, totalBatches: totalBatches}
}

// record counts one settled item and returns the resulting snapshot.
func (t *tally) record(success bool, batch int, label string) Progress {
	if success {
		t.completed++
	} else {
		t.failed++
	}

	return Progress{
		Total:            t.total,
		Completed:        t.completed,
		Failed:           t.failed,
		CurrentItemLabel: label,
		Batch:            batch,
		TotalBatches:     t.totalBatches,
	}
}
