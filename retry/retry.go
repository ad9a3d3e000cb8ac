// Package retry runs fallible operations with bounded, classified retries.
//
// Attempts run strictly one after another on the calling goroutine, with an
// exponentially growing delay between them. Only errors that classify as
// retryable are retried:
//
//	out, err := retry.Do(ctx, retry.DefaultPolicy(), func(ctx context.Context) (string, error) {
//	    return fetch(ctx)
//	}, retry.WithOperation("fetch"))
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/toolengine/telemetry"
	"github.com/jonwraymond/toolengine/toolerr"
)

// Default policy values.
const (
	DefaultMaxRetries   = 2
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultMaxDelay     = 10 * time.Second
)

// Policy configures retry behavior. It is stateless and may be shared.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `yaml:"max_retries" json:"maxRetries"`

	InitialDelay time.Duration `yaml:"initial_delay" json:"initialDelay"`

	// MaxDelay caps the delay between attempts. Zero means uncapped.
	MaxDelay time.Duration `yaml:"max_delay" json:"maxDelay"`

	ExponentialBackoff bool `yaml:"exponential_backoff" json:"exponentialBackoff"`
}

// ErrInvalidPolicy is returned by Policy.Validate.
var ErrInvalidPolicy = errors.New("retry: invalid policy")

// Validate rejects negative counts and delays.
func (p Policy) Validate() error {
	switch {
	case p.MaxRetries < 0:
		return fmt.Errorf("%w: max retries %d is negative", ErrInvalidPolicy, p.MaxRetries)
	case p.InitialDelay < 0:
		return fmt.Errorf("%w: initial delay %v is negative", ErrInvalidPolicy, p.InitialDelay)
	case p.MaxDelay < 0:
		return fmt.Errorf("%w: max delay %v is negative", ErrInvalidPolicy, p.MaxDelay)
	}
	return nil
}

// DefaultPolicy returns the policy used for tool execution.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:         DefaultMaxRetries,
		InitialDelay:       DefaultInitialDelay,
		MaxDelay:           DefaultMaxDelay,
		ExponentialBackoff: true,
	}
}

// NextDelay returns the delay to wait after current.
func (p Policy) NextDelay(current time.Duration) time.Duration {
	if !p.ExponentialBackoff {
		return current
	}
	next := current * 2
	if p.MaxDelay > 0 && next > p.MaxDelay {
		next = p.MaxDelay
	}
	return next
}

// Classifier maps an error onto the toolerr taxonomy.
type Classifier func(error) *toolerr.Error

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type config struct {
	operation   string
	classify    Classifier
	logger      telemetry.Logger
	instruments *telemetry.Instruments
	sleep       SleepFunc
	onRetry     func(attempt int, err *toolerr.Error, delay time.Duration)
}

// Option configures a single Do call.
type Option func(*config)

// WithOperation names the operation in logs and metrics.
func WithOperation(name string) Option {
	return func(c *config) {
		c.operation = name
	}
}

// WithClassifier replaces toolerr.Classify.
func WithClassifier(fn Classifier) Option {
	return func(c *config) {
		if fn != nil {
			c.classify = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l telemetry.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithInstruments sets the telemetry instruments.
func WithInstruments(ins *telemetry.Instruments) Option {
	return func(c *config) {
		c.instruments = ins
	}
}

// WithSleep replaces the context-aware timer used between attempts.
func WithSleep(fn SleepFunc) Option {
	return func(c *config) {
		if fn != nil {
			c.sleep = fn
		}
	}
}

// OnRetry registers a callback invoked before each backoff wait.
func OnRetry(fn func(attempt int, err *toolerr.Error, delay time.Duration)) Option {
	return func(c *config) {
		c.onRetry = fn
	}
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// policy's retries are exhausted. On failure it returns the last value op
// produced together with the last classified error.
func Do[T any](ctx context.Context, policy Policy, op func(context.Context) (T, error), opts ...Option) (T, error) {
	cfg := config{
		operation: "operation",
		classify:  toolerr.Classify,
		sleep:     Sleep,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var last T
	delay := policy.InitialDelay
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return last, toolerr.Classify(err)
		}

		v, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				telemetry.Logf(cfg.logger, "%s succeeded after %d retries", cfg.operation, attempt)
			}
			return v, nil
		}
		last = v

		ce := cfg.classify(err)
		if ce == nil {
			ce = toolerr.Wrap(toolerr.System, err)
		}
		if !ce.Retryable {
			telemetry.Logf(cfg.logger, "%s failed with non-retryable %s error: %s", cfg.operation, ce.Category, ce.Message)
			return last, ce
		}
		if attempt >= policy.MaxRetries {
			telemetry.Logf(cfg.logger, "%s failed after %d attempts: %s", cfg.operation, attempt+1, ce.Message)
			return last, ce
		}

		telemetry.Logf(cfg.logger, "%s attempt %d failed (%s), retrying in %v", cfg.operation, attempt+1, ce.Category, delay)
		cfg.instruments.RecordRetry(ctx, cfg.operation, attempt+1, delay)
		if cfg.onRetry != nil {
			cfg.onRetry(attempt+1, ce, delay)
		}
		if err := cfg.sleep(ctx, delay); err != nil {
			return last, toolerr.Classify(err)
		}
		delay = policy.NextDelay(delay)
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
