package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonwraymond/toolengine/exec"
	"github.com/jonwraymond/toolengine/retry"
)

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) error = %v", err)
	}
	want := Default()
	if cfg.Execution != want.Execution || cfg.Retry != want.Retry || cfg.Batch != want.Batch {
		t.Errorf("Parse(nil) = %+v, want defaults %+v", cfg, want)
	}
	if cfg.Execution.Timeout != exec.DefaultTimeout {
		t.Errorf("Execution.Timeout = %v, want %v", cfg.Execution.Timeout, exec.DefaultTimeout)
	}
}

func TestParse_Full(t *testing.T) {
	data := []byte(`
namespace: demo
execution:
  timeout: 5s
  track_resources: true
  retry_interrupted: true
retry:
  max_retries: 4
  initial_delay: 100ms
batch:
  max_concurrency: 8
  task_timeout: 2s
  stop_on_error: true
  rate_limit: 10
  burst: 2
history:
  capacity: 50
  sqlite_path: /tmp/engine.db
tools:
  root: /srv/work
  allowed_commands: [ls, cat]
  enabled: [echo, read_file]
http:
  addr: 127.0.0.1:9000
log:
  level: debug
  format: json
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Namespace != "demo" {
		t.Errorf("Namespace = %q", cfg.Namespace)
	}
	if cfg.Execution.Timeout != 5*time.Second || !cfg.Execution.TrackResources || !cfg.Execution.RetryInterrupted {
		t.Errorf("Execution = %+v", cfg.Execution)
	}
	wantRetry := retry.Policy{
		MaxRetries:         4,
		InitialDelay:       100 * time.Millisecond,
		MaxDelay:           retry.DefaultMaxDelay,
		ExponentialBackoff: true,
	}
	if cfg.Retry != wantRetry {
		t.Errorf("Retry = %+v, want %+v (unset fields keep defaults)", cfg.Retry, wantRetry)
	}
	if cfg.History.SQLitePath != "/tmp/engine.db" || cfg.History.Capacity != 50 {
		t.Errorf("History = %+v", cfg.History)
	}
	if cfg.Tools.Root != "/srv/work" || len(cfg.Tools.AllowedCommands) != 2 || len(cfg.Tools.Enabled) != 2 {
		t.Errorf("Tools = %+v", cfg.Tools)
	}
	if cfg.HTTP.Addr != "127.0.0.1:9000" {
		t.Errorf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}

	opts := cfg.ExecOptions()
	if opts.RetryPolicy == nil || *opts.RetryPolicy != wantRetry {
		t.Errorf("ExecOptions().RetryPolicy = %+v", opts.RetryPolicy)
	}
	if opts.Timeout != 5*time.Second || opts.HistoryCapacity != 50 || !opts.RetryInterrupted {
		t.Errorf("ExecOptions() = %+v", opts)
	}

	bo := cfg.BatchOptions()
	if bo.MaxConcurrency != 8 || bo.TaskTimeout != 2*time.Second || !bo.StopOnError || bo.RateLimit != rate.Limit(10) || bo.Burst != 2 {
		t.Errorf("BatchOptions() = %+v", bo)
	}

	if len(cfg.RegistryOptions()) != 1 {
		t.Error("RegistryOptions() should carry the namespace")
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"unknown field", "executon:\n  timeout: 1s\n", "executon"},
		{"bad duration", "execution:\n  timeout: soon\n", "soon"},
		{"negative retries", "retry:\n  max_retries: -1\n", "max retries"},
		{"negative concurrency", "batch:\n  max_concurrency: -2\n", "batch.max_concurrency"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, ErrConfiguration) {
				t.Fatalf("Parse() error = %v, want %v", err, ErrConfiguration)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %q, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	if err := os.WriteFile(path, []byte("execution:\n  timeout: -1s\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Execution.Timeout >= 0 {
		t.Errorf("Execution.Timeout = %v, want negative (disabled)", cfg.Execution.Timeout)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Load(missing) error = %v, want %v", err, ErrConfiguration)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.Log = Log{Level: "warn", Format: "json"}
	logger := cfg.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("NewLogger() output = %q", out)
	}
}
