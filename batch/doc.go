// Package batch runs independent tasks under a bounded concurrency limit.
//
// Tasks are started highest priority first (ties keep input order) and each
// finished task immediately frees its slot for the next queued one, so the
// number of in-flight tasks stays at the limit until the queue drains.
// Results are always returned in input order.
//
// # Fail-fast
//
// With StopOnError set, the first failed task stops the batch: tasks already
// running finish normally while every task still queued resolves with
// [ErrStopped] without running.
//
// # Timeouts
//
// TaskTimeout races each task against a timer the same way the monitor races
// tool attempts. A timed-out task is abandoned, not killed; its context is
// cancelled so cooperative tasks return early.
package batch
