package bulk

import "math"

// Summary aggregates a finished result list. It is derived, never stored.
// SuccessRate is a percentage rounded to two decimals, 0 for an empty run.
type Summary struct {
	Total       int     `json:"total"`
	Succeeded   int     `json:"succeeded"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// Failure identifies one failed item of a run.
type Failure struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// Summarize counts successes and failures in results.
func Summarize[R any](results []Result[R]) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}

	if s.Total > 0 {
		rate := float64(s.Succeeded) / float64(s.Total) * percentMultiplier
		s.SuccessRate = math.Round(rate*percentMultiplier) / percentMultiplier
	}
	return s
}

// Failures lists the failed items of results in input order.
func Failures[R any](results []Result[R]) []Failure {
	var failures []Failure
	for i, r := range results {
		if r.Success {
			continue
		}
		msg := "operation failed"
		if r.Err != nil {
			msg = r.Err.Message
		}
		failures = append(failures, Failure{Index: i, Message: msg})
	}
	return failures
}
