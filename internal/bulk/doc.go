// Package bulk runs a caller-supplied operation over a list of items and
// collects one result per item.
//
// Two scheduling modes are provided:
//   - RunSequential invokes the operation one item at a time, in input order,
//     with an optional pause between fixed-size chunks.
//   - RunParallel invokes the operation concurrently on every item of a chunk
//     and waits for the whole chunk to settle before starting the next one,
//     so the chunk size is the concurrency cap.
//
// A failing item never aborts the run: errors and panics are captured into the
// item's Result and counted in the progress snapshots. Results are always
// position-aligned with the input, whatever order the operations finished in.
// Summarize derives aggregate counts and a success rate from a result list.
package bulk
