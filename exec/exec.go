package exec

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonwraymond/tooldiscovery/tooldoc"

	"github.com/jonwraymond/toolengine/batch"
	"github.com/jonwraymond/toolengine/monitor"
	"github.com/jonwraymond/toolengine/retry"
	"github.com/jonwraymond/toolengine/telemetry"
	"github.com/jonwraymond/toolengine/tool"
	"github.com/jonwraymond/toolengine/toolerr"
)

// Exec is the tool execution facade.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: Execute never returns an error; failures are failed outcomes.
type Exec struct {
	registry *tool.Registry
	monitor  *monitor.Monitor
	tracker  *toolerr.Tracker
	opts     Options
}

// New creates a new Exec instance with the given options.
func New(opts Options) (*Exec, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()

	return &Exec{
		registry: opts.Registry,
		monitor:  opts.Monitor,
		tracker:  toolerr.NewTracker(),
		opts:     opts,
	}, nil
}

// RegisterTool adds t to the registry, replacing any tool of the same name.
func (e *Exec) RegisterTool(t tool.Tool) error {
	if err := e.registry.Register(t); err != nil {
		return err
	}
	telemetry.Logf(e.opts.Logger, "registered tool %s", t.Name())
	return nil
}

// UnregisterTool removes the named tool.
func (e *Exec) UnregisterTool(name string) {
	e.registry.Unregister(name)
}

// AvailableTools returns the registered tool names, sorted.
func (e *Exec) AvailableTools() []string {
	return e.registry.Names()
}

// Execute runs one invocation and returns the outcome of its last attempt.
func (e *Exec) Execute(ctx context.Context, inv tool.Invocation) (out tool.Outcome) {
	t, ok := e.registry.Get(inv.Name)
	if !ok {
		return tool.Failure("Unknown tool: " + inv.Name)
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			out = e.fail(inv.Name, toolerr.Wrap(toolerr.System, fmt.Errorf("panic: %v", p)))
			out.DurationMs = time.Since(start).Milliseconds()
		}
	}()

	runOpts := e.opts.runOptions()
	last, err := retry.Do(ctx, *e.opts.RetryPolicy, func(ctx context.Context) (tool.Outcome, error) {
		return e.monitor.Run(ctx, t, inv.Parameters, runOpts)
	},
		retry.WithOperation("tool "+inv.Name),
		retry.WithLogger(e.opts.Logger),
		retry.WithInstruments(e.opts.Instruments),
	)
	if err != nil {
		failed := e.fail(inv.Name, toolerr.Classify(err))
		failed.Output = last.Output
		failed.DurationMs = last.DurationMs
		return failed
	}
	return last
}

func (e *Exec) fail(name string, ce *toolerr.Error) tool.Outcome {
	e.tracker.Record(ce)
	msg := toolerr.Format(ce)
	telemetry.Logf(e.opts.Logger, "tool %s failed: %s", name, msg)
	return tool.Failure(msg)
}

// ExecuteBatch runs invocations through Execute under the batch scheduler.
// Results are in input order; each Value holds the invocation's outcome and
// failed outcomes carry an error wrapping ErrToolFailed.
func (e *Exec) ExecuteBatch(ctx context.Context, invs []BatchInvocation, opts batch.Options) []batch.Result[tool.Outcome] {
	if opts.Logger == nil {
		opts.Logger = e.opts.Logger
	}
	if opts.Instruments == nil {
		opts.Instruments = e.opts.Instruments
	}

	tasks := make([]batch.Task[tool.Outcome], len(invs))
	for i, bi := range invs {
		id := bi.ID
		if id == "" {
			id = uuid.NewString()
		}
		inv := bi.Invocation
		tasks[i] = batch.Task[tool.Outcome]{
			ID:       id,
			Priority: bi.Priority,
			Run: func(ctx context.Context) (tool.Outcome, error) {
				out := e.Execute(ctx, inv)
				if !out.Success {
					return out, fmt.Errorf("%w: %s", ErrToolFailed, out.ErrorMessage)
				}
				return out, nil
			},
		}
	}
	return batch.Run(ctx, tasks, opts)
}

// SearchTools finds registered tools matching a query.
func (e *Exec) SearchTools(ctx context.Context, query string, limit int) ([]ToolSummary, error) {
	_ = ctx // reserved for future context-aware search
	return e.registry.Search(query, limit)
}

// DescribeTool retrieves tool documentation at the specified detail level.
func (e *Exec) DescribeTool(ctx context.Context, name string, level tooldoc.DetailLevel) (tooldoc.ToolDoc, error) {
	_ = ctx // reserved for future context-aware doc retrieval
	return e.registry.Describe(name, level)
}

// Registry returns the underlying tool registry.
func (e *Exec) Registry() *tool.Registry {
	return e.registry
}

// Monitor returns the execution monitor, for history, statistics and
// cancellation.
func (e *Exec) Monitor() *monitor.Monitor {
	return e.monitor
}

// ErrorStats returns how many final failures were seen per category.
func (e *Exec) ErrorStats() map[toolerr.Category]int {
	return e.tracker.Snapshot()
}
