package monitor

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/toolengine/internal/await"
	"github.com/jonwraymond/toolengine/telemetry"
	"github.com/jonwraymond/toolengine/tool"
	"github.com/jonwraymond/toolengine/toolerr"
)

// Sink receives every finished record after it is appended to the history.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: a failing sink is logged and never fails the attempt.
type Sink interface {
	Append(ctx context.Context, rec ExecutionRecord) error
}

// Options configures a Monitor.
type Options struct {
	// HistoryCapacity bounds the in-memory history.
	// Default: DefaultHistoryCapacity
	HistoryCapacity int

	// Sink optionally receives every finished record.
	Sink Sink

	// Logger is an optional logger for observability.
	Logger telemetry.Logger

	// Instruments records spans and metrics. Nil records nothing.
	Instruments *telemetry.Instruments

	// Sampler takes resource snapshots when tracking is requested.
	// Default: NewRuntimeSampler()
	Sampler Sampler
}

// RunOptions configures a single attempt.
type RunOptions struct {
	// Timeout abandons the attempt once it elapses. Zero means no timeout.
	Timeout time.Duration

	// TrackResources samples memory and CPU around the attempt.
	TrackResources bool

	// InterruptAsError makes Run return an error wrapping
	// toolerr.ErrTimeout or toolerr.ErrCancelled alongside the failed
	// outcome, so a retry layer can see interrupted attempts.
	InterruptAsError bool
}

// Monitor executes attempts and owns their history and cancellation handles.
//
// Contract:
// - Concurrency: safe for concurrent use; attempts may run in parallel.
// - Context: Run's ctx is the external cancellation signal.
// - Errors: timeouts and cancellations are outcomes, tool errors are returned.
type Monitor struct {
	history     *History
	active      *activeTable
	sink        Sink
	logger      telemetry.Logger
	instruments *telemetry.Instruments
	sampler     Sampler
}

// New creates a Monitor.
func New(opts Options) *Monitor {
	if opts.Sampler == nil {
		opts.Sampler = NewRuntimeSampler()
	}
	return &Monitor{
		history:     NewHistory(opts.HistoryCapacity),
		active:      newActiveTable(),
		sink:        opts.Sink,
		logger:      opts.Logger,
		instruments: opts.Instruments,
		sampler:     opts.Sampler,
	}
}

// Run executes one attempt of t and appends exactly one record.
func (m *Monitor) Run(ctx context.Context, t tool.Tool, params map[string]any, opts RunOptions) (tool.Outcome, error) {
	name := t.Name()
	id := uuid.NewString()

	attemptCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	h := m.active.add(id, cancel)

	rec := ExecutionRecord{
		ToolName:    name,
		ExecutionID: id,
		StartTime:   time.Now(),
		Parameters:  maps.Clone(params),
	}

	var timer *time.Timer
	if opts.Timeout > 0 {
		cause := fmt.Errorf("%w after %dms", toolerr.ErrTimeout, opts.Timeout.Milliseconds())
		timer = time.AfterFunc(opts.Timeout, func() { h.signal(cause) })
	}

	var before Sample
	if opts.TrackResources {
		before = m.sampler.Sample()
	}

	spanCtx, span := m.instruments.StartAttempt(attemptCtx, name, id)
	res, finished := await.Race(spanCtx, func(ctx context.Context) (tool.Outcome, error) {
		return t.Execute(ctx, params)
	})
	if timer != nil {
		timer.Stop()
	}
	rec.EndTime = time.Now()

	var (
		out       tool.Outcome
		err       error
		interrupt error
		status    string
	)
	interrupted := !finished || (attemptCtx.Err() != nil && isContextErr(res.Err))
	switch {
	case interrupted:
		interrupt = m.interruptCause(attemptCtx, rec.Duration())
		if errors.Is(interrupt, toolerr.ErrTimeout) {
			rec.WasTimedOut = true
			status = telemetry.StatusTimeout
		} else {
			rec.WasCancelled = true
			status = telemetry.StatusCancelled
		}
		out = tool.Failure(interrupt.Error())
		if opts.InterruptAsError {
			err = interrupt
		}
	case res.Err != nil:
		out = tool.Failure(res.Err.Error())
		err = res.Err
		status = telemetry.StatusError
	default:
		out = res.Value
		status = telemetry.StatusSuccess
		if !out.Success {
			status = telemetry.StatusFailure
		}
	}
	if !interrupted && opts.TrackResources {
		after := m.sampler.Sample()
		rec.Resources = &ResourceDelta{
			MemoryBeforeBytes: before.MemoryBytes,
			MemoryAfterBytes:  after.MemoryBytes,
			CPUPercent:        cpuPercent(before, after),
		}
	}

	out.DurationMs = rec.Duration().Milliseconds()
	rec.DurationMs = out.DurationMs
	rec.Outcome = out
	rec.Succeeded = status == telemetry.StatusSuccess
	rec.ErrorMessage = out.ErrorMessage

	m.active.remove(id)
	m.history.Append(rec)
	m.instruments.EndAttempt(ctx, span, name, status, rec.Duration(), firstErr(interrupt, res.Err))
	m.logAttempt(rec, status)

	if m.sink != nil {
		if serr := m.sink.Append(context.WithoutCancel(ctx), rec); serr != nil {
			telemetry.Logf(m.logger, "execution %s: sink append failed: %v", id, serr)
		}
	}
	return out, err
}

func (m *Monitor) interruptCause(attemptCtx context.Context, elapsed time.Duration) error {
	cause := context.Cause(attemptCtx)
	switch {
	case errors.Is(cause, toolerr.ErrTimeout):
		return cause
	case errors.Is(cause, context.DeadlineExceeded):
		return fmt.Errorf("%w after %dms", toolerr.ErrTimeout, elapsed.Milliseconds())
	default:
		return toolerr.ErrCancelled
	}
}

// isContextErr reports whether a tool gave up because its context ended.
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (m *Monitor) logAttempt(rec ExecutionRecord, status string) {
	if m.logger == nil {
		return
	}
	if rec.Succeeded {
		m.logger.Logf("tool %s execution %s succeeded in %dms", rec.ToolName, rec.ExecutionID, rec.DurationMs)
		return
	}
	m.logger.Logf("tool %s execution %s %s after %dms: %s", rec.ToolName, rec.ExecutionID, status, rec.DurationMs, rec.ErrorMessage)
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Cancel signals the in-flight attempt with the given ID. It reports whether
// an active, not yet signalled attempt was found.
func (m *Monitor) Cancel(id string) bool {
	h, ok := m.active.get(id)
	if !ok {
		return false
	}
	return h.signal(toolerr.ErrCancelled)
}

// CancelAll signals every in-flight attempt and returns how many were
// signalled.
func (m *Monitor) CancelAll() int {
	n := 0
	for _, h := range m.active.handles() {
		if h.signal(toolerr.ErrCancelled) {
			n++
		}
	}
	return n
}

// Active returns the IDs of in-flight attempts, sorted.
func (m *Monitor) Active() []string {
	return m.active.ids()
}

// IsActive reports whether the attempt with the given ID is in flight.
func (m *Monitor) IsActive(id string) bool {
	_, ok := m.active.get(id)
	return ok
}

// History returns finished records oldest first.
func (m *Monitor) History(f Filter) []ExecutionRecord {
	return m.history.Records(f)
}

// ClearHistory drops all in-memory records.
func (m *Monitor) ClearHistory() {
	m.history.Clear()
}

// Stats aggregates the in-memory history per tool.
func (m *Monitor) Stats() []ToolStats {
	return ComputeStats(m.history.Records(Filter{}))
}

// StatsFor aggregates the in-memory history of one tool.
func (m *Monitor) StatsFor(name string) (ToolStats, bool) {
	recs := m.history.Records(Filter{Tool: name})
	if len(recs) == 0 {
		return ToolStats{ToolName: name}, false
	}
	return toolStats(name, recs), true
}
