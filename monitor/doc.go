// Package monitor runs single tool attempts with a deadline, cancellation
// and optional resource sampling, and keeps a bounded history of every
// attempt.
//
// # Attempts
//
// [Monitor.Run] executes one attempt. It registers a cancellation handle in
// the active table, races the tool against the handle, and appends exactly
// one [ExecutionRecord] when the attempt ends, whichever way it ends:
//
//	out, err := m.Run(ctx, t, params, monitor.RunOptions{Timeout: 30 * time.Second})
//
// Timeouts and cancellations are folded into a failed [tool.Outcome]
// ("timed out after 30000ms", "execution was cancelled") and are not
// errors unless [RunOptions.InterruptAsError] is set. Errors and panics
// raised by the tool itself are returned.
//
// Cancellation is cooperative: the tool's context is cancelled and the
// monitor stops waiting, but a tool that ignores its context keeps running
// in the background until it returns.
//
// # Introspection
//
// [Monitor.Active] lists in-flight execution IDs, [Monitor.Cancel] and
// [Monitor.CancelAll] signal them, [Monitor.History] returns finished
// records and [Monitor.Stats] aggregates them per tool.
package monitor
