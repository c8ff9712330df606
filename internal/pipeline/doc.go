// Package pipeline contains the batch orchestration core: the immutable
// stage chain and the runner that drives every event of a batch through
// it concurrently.
//
// # Protocol
//
// A batch of N raw events is processed in two strictly ordered phases:
//
//  1. Traversal: one goroutine per event builds a fresh context and runs
//     it through the chain. The chain short-circuits at the first stage
//     that fails; the failure is reported and the event dropped, without
//     touching any sibling traversal.
//  2. Flush: once every traversal has joined, each accumulating stage is
//     flushed exactly once, sequentially, in declared order (log records
//     before quota accounting, so quota state never references an event
//     absent from the log). A flush failure is reported with batch
//     metadata and does not stop the remaining flushes.
//
// ProcessBatch never returns an error: all failure information leaves
// through the failure reporter.
package pipeline
