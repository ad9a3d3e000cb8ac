package exec

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/toolengine/monitor"
	"github.com/jonwraymond/toolengine/retry"
	"github.com/jonwraymond/toolengine/telemetry"
	"github.com/jonwraymond/toolengine/tool"
)

// DefaultTimeout is the per-attempt timeout used when none is configured.
const DefaultTimeout = 30 * time.Second

// ErrInvalidOptions is returned by New for invalid options.
var ErrInvalidOptions = errors.New("exec: invalid options")

// Options configures an Exec instance.
type Options struct {
	// Registry holds the executable tools.
	// Default: an empty tool.NewRegistry()
	Registry *tool.Registry

	// Monitor runs and records attempts. When set, HistoryCapacity, Sink
	// and Sampler are ignored.
	// Default: monitor.New built from the fields below
	Monitor *monitor.Monitor

	// RetryPolicy is applied to every Execute call.
	// Default: retry.DefaultPolicy()
	RetryPolicy *retry.Policy

	// Timeout bounds each attempt. A negative value disables the timeout.
	// Default: 30s
	Timeout time.Duration

	// TrackResources records memory and CPU deltas per attempt.
	TrackResources bool

	// RetryInterrupted makes timed-out attempts retryable. Cancelled
	// attempts are never retried.
	// Default: false
	RetryInterrupted bool

	// HistoryCapacity bounds the monitor's in-memory history.
	// Default: monitor.DefaultHistoryCapacity
	HistoryCapacity int

	// Sink receives every execution record, e.g. a sqlitestore.Store.
	Sink monitor.Sink

	// Sampler overrides the monitor's resource sampler.
	Sampler monitor.Sampler

	// Logger is an optional logger for observability.
	Logger telemetry.Logger

	// Instruments records spans and metrics. Nil records nothing.
	Instruments *telemetry.Instruments
}

// validate checks value ranges.
func (o *Options) validate() error {
	if o.RetryPolicy != nil {
		if err := o.RetryPolicy.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
		}
	}
	if o.HistoryCapacity < 0 {
		return fmt.Errorf("%w: history capacity %d is negative", ErrInvalidOptions, o.HistoryCapacity)
	}
	return nil
}

// applyDefaults sets default values for unset optional fields.
func (o *Options) applyDefaults() {
	if o.Registry == nil {
		o.Registry = tool.NewRegistry()
	}
	if o.RetryPolicy == nil {
		p := retry.DefaultPolicy()
		o.RetryPolicy = &p
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Monitor == nil {
		o.Monitor = monitor.New(monitor.Options{
			HistoryCapacity: o.HistoryCapacity,
			Sink:            o.Sink,
			Logger:          o.Logger,
			Instruments:     o.Instruments,
			Sampler:         o.Sampler,
		})
	}
}

// runOptions derives the per-attempt monitor options.
func (o *Options) runOptions() monitor.RunOptions {
	ro := monitor.RunOptions{
		TrackResources:   o.TrackResources,
		InterruptAsError: o.RetryInterrupted,
	}
	if o.Timeout > 0 {
		ro.Timeout = o.Timeout
	}
	return ro
}
