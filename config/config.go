// Package config loads engine configuration from YAML.
//
// Durations are written as Go duration strings:
//
//	execution:
//	  timeout: 30s
//	  track_resources: true
//	retry:
//	  max_retries: 2
//	  initial_delay: 500ms
//	  max_delay: 10s
//	  exponential_backoff: true
//	batch:
//	  max_concurrency: 5
//	  stop_on_error: true
//	history:
//	  capacity: 1000
//	  sqlite_path: engine.db
//	tools:
//	  root: ./workspace
//	  allowed_commands: [ls, cat]
//
// Fields left out of the file keep their defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/toolengine/batch"
	"github.com/jonwraymond/toolengine/builtin"
	"github.com/jonwraymond/toolengine/exec"
	"github.com/jonwraymond/toolengine/monitor"
	"github.com/jonwraymond/toolengine/retry"
	"github.com/jonwraymond/toolengine/tool"
)

// ErrConfiguration is returned for invalid configuration.
var ErrConfiguration = errors.New("config: invalid configuration")

// Default values not owned by other packages.
const (
	DefaultHTTPAddr  = ":8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Config is the root of the configuration file.
type Config struct {
	// Namespace is the discovery namespace tools are indexed under.
	Namespace string `yaml:"namespace"`

	Execution Execution       `yaml:"execution"`
	Retry     retry.Policy    `yaml:"retry"`
	Batch     Batch           `yaml:"batch"`
	History   History         `yaml:"history"`
	Tools     builtin.Options `yaml:"tools"`
	HTTP      HTTP            `yaml:"http"`
	Log       Log             `yaml:"log"`
}

// Execution configures single tool executions.
type Execution struct {
	// Timeout bounds each attempt; negative disables it.
	Timeout          time.Duration `yaml:"timeout"`
	TrackResources   bool          `yaml:"track_resources"`
	RetryInterrupted bool          `yaml:"retry_interrupted"`
}

// Batch configures batch runs.
type Batch struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	TaskTimeout    time.Duration `yaml:"task_timeout"`
	StopOnError    bool          `yaml:"stop_on_error"`

	// RateLimit caps task starts per second; zero is unlimited.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// History configures execution record retention.
type History struct {
	Capacity int `yaml:"capacity"`

	// SQLitePath enables durable history when set.
	SQLitePath string `yaml:"sqlite_path"`
}

// HTTP configures the ops API listener.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Log configures the process logger.
type Log struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Namespace: tool.DefaultNamespace,
		Execution: Execution{Timeout: exec.DefaultTimeout},
		Retry:     retry.DefaultPolicy(),
		Batch:     Batch{MaxConcurrency: batch.DefaultMaxConcurrency},
		History:   History{Capacity: monitor.DefaultHistoryCapacity},
		HTTP:      HTTP{Addr: DefaultHTTPAddr},
		Log:       Log{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
// Unknown fields are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
// Returns ErrConfiguration listing every problem found.
func (c *Config) Validate() error {
	var problems []string

	if err := c.Retry.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Batch.MaxConcurrency < 0 {
		problems = append(problems, "batch.max_concurrency must not be negative")
	}
	if c.Batch.TaskTimeout < 0 {
		problems = append(problems, "batch.task_timeout must not be negative")
	}
	if c.Batch.RateLimit < 0 {
		problems = append(problems, "batch.rate_limit must not be negative")
	}
	if c.Batch.Burst < 0 {
		problems = append(problems, "batch.burst must not be negative")
	}
	if c.History.Capacity < 0 {
		problems = append(problems, "history.capacity must not be negative")
	}
	if _, err := c.Log.level(); err != nil {
		problems = append(problems, err.Error())
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

// ExecOptions converts the configuration into exec options. Registry,
// Sink, Logger and Instruments are left for the caller.
func (c *Config) ExecOptions() exec.Options {
	policy := c.Retry
	return exec.Options{
		RetryPolicy:      &policy,
		Timeout:          c.Execution.Timeout,
		TrackResources:   c.Execution.TrackResources,
		RetryInterrupted: c.Execution.RetryInterrupted,
		HistoryCapacity:  c.History.Capacity,
	}
}

// BatchOptions converts the configuration into batch options.
func (c *Config) BatchOptions() batch.Options {
	return batch.Options{
		MaxConcurrency: c.Batch.MaxConcurrency,
		TaskTimeout:    c.Batch.TaskTimeout,
		StopOnError:    c.Batch.StopOnError,
		RateLimit:      rate.Limit(c.Batch.RateLimit),
		Burst:          c.Batch.Burst,
	}
}

// RegistryOptions returns the registry options implied by the configuration.
func (c *Config) RegistryOptions() []tool.RegistryOption {
	return []tool.RegistryOption{tool.WithNamespace(c.Namespace)}
}

// NewLogger builds a slog logger writing to w.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := c.Log.level()
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (l Log) level() (slog.Level, error) {
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q: %w", l.Level, err)
	}
	return level, nil
}
