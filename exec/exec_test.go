package exec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/tooldiscovery/tooldoc"

	"github.com/jonwraymond/toolengine/batch"
	"github.com/jonwraymond/toolengine/monitor"
	"github.com/jonwraymond/toolengine/retry"
	"github.com/jonwraymond/toolengine/tool"
	"github.com/jonwraymond/toolengine/toolerr"
)

func fastPolicy(maxRetries int) *retry.Policy {
	return &retry.Policy{
		MaxRetries:         maxRetries,
		InitialDelay:       time.Millisecond,
		MaxDelay:           5 * time.Millisecond,
		ExponentialBackoff: true,
	}
}

func newTestExec(t *testing.T, opts Options) *Exec {
	t.Helper()
	if opts.RetryPolicy == nil {
		opts.RetryPolicy = fastPolicy(2)
	}
	e, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func echoTool() tool.Tool {
	return tool.NewFunc("echo", "Echo the text parameter back", tool.Schema{
		"text": {Type: "string", Description: "Text to echo", Required: true},
	}, func(_ context.Context, params map[string]any) (tool.Outcome, error) {
		s, _ := params["text"].(string)
		return tool.Success(s), nil
	})
}

// flakyTool fails with err for the first failures calls, then succeeds.
func flakyTool(name string, failures int32, err error) (tool.Tool, *atomic.Int32) {
	var calls atomic.Int32
	return tool.NewFunc(name, "Fails a few times", nil, func(context.Context, map[string]any) (tool.Outcome, error) {
		if calls.Add(1) <= failures {
			return tool.Outcome{}, err
		}
		return tool.Success("ok"), nil
	}), &calls
}

func hangingTool(release <-chan struct{}) tool.Tool {
	return tool.NewFunc("hang", "Never returns on its own", nil, func(context.Context, map[string]any) (tool.Outcome, error) {
		<-release
		return tool.Success("late"), nil
	})
}

func TestNew_Defaults(t *testing.T) {
	e, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if e.Registry() == nil || e.Monitor() == nil {
		t.Fatal("New() left registry or monitor nil")
	}
	if e.opts.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", e.opts.Timeout, DefaultTimeout)
	}
	if *e.opts.RetryPolicy != retry.DefaultPolicy() {
		t.Errorf("RetryPolicy = %+v, want default", *e.opts.RetryPolicy)
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"negative retries", Options{RetryPolicy: &retry.Policy{MaxRetries: -1}}},
		{"negative capacity", Options{HistoryCapacity: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("New() error = %v, want %v", err, ErrInvalidOptions)
			}
		})
	}
}

func TestExecute_Echo(t *testing.T) {
	e := newTestExec(t, Options{})
	if err := e.RegisterTool(echoTool()); err != nil {
		t.Fatalf("RegisterTool() error = %v", err)
	}

	out := e.Execute(context.Background(), tool.Invocation{
		Name:       "echo",
		Parameters: map[string]any{"text": "hi"},
		Confidence: 0.9,
	})
	if !out.Success || out.Output != "hi" {
		t.Fatalf("Execute() = %+v, want success with output hi", out)
	}

	recs := e.Monitor().History(monitor.Filter{})
	if len(recs) != 1 || !recs[0].Succeeded || recs[0].ToolName != "echo" {
		t.Errorf("History() = %+v, want one successful echo record", recs)
	}
}

func TestExecute_UnknownTool(t *testing.T) {
	e := newTestExec(t, Options{})

	out := e.Execute(context.Background(), tool.Invocation{Name: "missing"})
	if out.Success {
		t.Fatal("Execute() succeeded for unknown tool")
	}
	if out.ErrorMessage != "Unknown tool: missing" {
		t.Errorf("ErrorMessage = %q", out.ErrorMessage)
	}
	if n := len(e.Monitor().History(monitor.Filter{})); n != 0 {
		t.Errorf("History() has %d records, want 0", n)
	}
	if len(e.ErrorStats()) != 0 {
		t.Errorf("ErrorStats() = %v, want empty", e.ErrorStats())
	}
}

func TestExecute_RetriesThenSucceeds(t *testing.T) {
	for n := int32(0); n <= 2; n++ {
		e := newTestExec(t, Options{})
		flaky, calls := flakyTool("flaky", n, errors.New("ECONNREFUSED"))
		_ = e.RegisterTool(flaky)

		out := e.Execute(context.Background(), tool.Invocation{Name: "flaky"})
		if !out.Success {
			t.Fatalf("n=%d: Execute() = %+v, want success", n, out)
		}
		if got := calls.Load(); got != n+1 {
			t.Errorf("n=%d: calls = %d, want %d", n, got, n+1)
		}
		if got := len(e.Monitor().History(monitor.Filter{})); got != int(n+1) {
			t.Errorf("n=%d: records = %d, want %d", n, got, n+1)
		}
	}
}

func TestExecute_RetriesExhausted(t *testing.T) {
	e := newTestExec(t, Options{})
	flaky, calls := flakyTool("net", 100, errors.New("ECONNREFUSED"))
	_ = e.RegisterTool(flaky)

	out := e.Execute(context.Background(), tool.Invocation{Name: "net"})
	if out.Success {
		t.Fatal("Execute() succeeded, want failure")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	want := "[Network/High] ECONNREFUSED. Suggested action: Check network connectivity and retry."
	if out.ErrorMessage != want {
		t.Errorf("ErrorMessage = %q, want %q", out.ErrorMessage, want)
	}
	if got := e.ErrorStats()[toolerr.Network]; got != 1 {
		t.Errorf("ErrorStats()[Network] = %d, want 1", got)
	}
}

func TestExecute_FilesystemErrorClassified(t *testing.T) {
	e := newTestExec(t, Options{})
	_, readErr := os.ReadFile(filepath.Join(t.TempDir(), "missing.txt"))
	missing, calls := flakyTool("read", 100, readErr)
	_ = e.RegisterTool(missing)

	out := e.Execute(context.Background(), tool.Invocation{Name: "read"})
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if !strings.HasPrefix(out.ErrorMessage, "[File Operation/Medium] open ") {
		t.Errorf("ErrorMessage = %q, want File Operation/Medium prefix", out.ErrorMessage)
	}
	if !strings.HasSuffix(out.ErrorMessage, "Suggested action: Check that the path exists and is accessible.") {
		t.Errorf("ErrorMessage = %q, want file suggestion", out.ErrorMessage)
	}
	if got := e.ErrorStats()[toolerr.FileOperation]; got != 1 {
		t.Errorf("ErrorStats()[FileOperation] = %d, want 1", got)
	}
}

func TestExecute_NonRetryable(t *testing.T) {
	e := newTestExec(t, Options{})
	broken, calls := flakyTool("broken", 100, errors.New("unexpected nil pointer"))
	_ = e.RegisterTool(broken)

	out := e.Execute(context.Background(), tool.Invocation{Name: "broken"})
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if !strings.HasPrefix(out.ErrorMessage, "[System/Critical] unexpected nil pointer.") {
		t.Errorf("ErrorMessage = %q", out.ErrorMessage)
	}
}

func TestExecute_ToolPanic(t *testing.T) {
	e := newTestExec(t, Options{})
	_ = e.RegisterTool(tool.NewFunc("panicky", "Panics", nil, func(context.Context, map[string]any) (tool.Outcome, error) {
		panic("kaboom")
	}))

	out := e.Execute(context.Background(), tool.Invocation{Name: "panicky"})
	if out.Success || !strings.Contains(out.ErrorMessage, "kaboom") {
		t.Errorf("Execute() = %+v, want failure mentioning the panic", out)
	}
}

func TestExecute_TimeoutNotRetried(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	e := newTestExec(t, Options{Timeout: 20 * time.Millisecond})
	_ = e.RegisterTool(hangingTool(release))

	out := e.Execute(context.Background(), tool.Invocation{Name: "hang"})
	if out.ErrorMessage != "timed out after 20ms" {
		t.Errorf("ErrorMessage = %q", out.ErrorMessage)
	}
	recs := e.Monitor().History(monitor.Filter{})
	if len(recs) != 1 || !recs[0].WasTimedOut {
		t.Errorf("History() = %+v, want one timed-out record", recs)
	}
	if len(e.Monitor().Active()) != 0 {
		t.Error("Active() not empty after timeout")
	}
}

func TestExecute_RetryInterrupted(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	e := newTestExec(t, Options{Timeout: 10 * time.Millisecond, RetryInterrupted: true})
	_ = e.RegisterTool(hangingTool(release))

	out := e.Execute(context.Background(), tool.Invocation{Name: "hang"})
	if !strings.HasPrefix(out.ErrorMessage, "[Tool Execution/Medium] timed out after 10ms") {
		t.Errorf("ErrorMessage = %q", out.ErrorMessage)
	}
	if n := len(e.Monitor().History(monitor.Filter{})); n != 3 {
		t.Errorf("records = %d, want 3", n)
	}
}

func TestExecute_CancelledNotRetried(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	e := newTestExec(t, Options{RetryInterrupted: true})
	_ = e.RegisterTool(hangingTool(release))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for len(e.Monitor().Active()) == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	out := e.Execute(ctx, tool.Invocation{Name: "hang"})
	if out.Success || !strings.Contains(out.ErrorMessage, "execution was cancelled") {
		t.Errorf("Execute() = %+v, want cancelled failure", out)
	}
	if n := len(e.Monitor().History(monitor.Filter{})); n != 1 {
		t.Errorf("records = %d, want 1", n)
	}
}

func TestExecuteBatch(t *testing.T) {
	e := newTestExec(t, Options{})
	_ = e.RegisterTool(echoTool())

	invs := []BatchInvocation{
		{ID: "a", Invocation: tool.Invocation{Name: "echo", Parameters: map[string]any{"text": "one"}}},
		{ID: "b", Invocation: tool.Invocation{Name: "missing"}},
		{Priority: 5, Invocation: tool.Invocation{Name: "echo", Parameters: map[string]any{"text": "three"}}},
	}
	results := e.ExecuteBatch(context.Background(), invs, batch.Options{MaxConcurrency: 2})
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if results[0].ID != "a" || !results[0].Succeeded || results[0].Value.Output != "one" {
		t.Errorf("results[0] = %+v", results[0])
	}
	if results[1].Succeeded || !errors.Is(results[1].Err, ErrToolFailed) {
		t.Errorf("results[1] = %+v, want ErrToolFailed", results[1])
	}
	if results[1].Value.ErrorMessage != "Unknown tool: missing" {
		t.Errorf("results[1].Value = %+v", results[1].Value)
	}
	if results[2].ID == "" || results[2].Value.Output != "three" {
		t.Errorf("results[2] = %+v", results[2])
	}
	if s := batch.Summarize(results); s.Succeeded != 2 || s.Failed != 1 {
		t.Errorf("Summarize() = %+v", s)
	}
}

func TestSearchAndDescribe(t *testing.T) {
	e := newTestExec(t, Options{})
	_ = e.RegisterTool(echoTool())

	if got := e.AvailableTools(); len(got) != 1 || got[0] != "echo" {
		t.Errorf("AvailableTools() = %v", got)
	}

	results, err := e.SearchTools(context.Background(), "echo text", 5)
	if err != nil {
		t.Fatalf("SearchTools() error = %v", err)
	}
	if len(results) == 0 || results[0].Name != "echo" {
		t.Errorf("SearchTools() = %v", results)
	}

	if _, err := e.DescribeTool(context.Background(), "echo", tooldoc.DetailFull); err != nil {
		t.Errorf("DescribeTool() error = %v", err)
	}

	e.UnregisterTool("echo")
	if len(e.AvailableTools()) != 0 {
		t.Error("UnregisterTool() left the tool registered")
	}
}
