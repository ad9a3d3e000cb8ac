package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/toolengine/internal/await"
	"github.com/jonwraymond/toolengine/telemetry"
	"github.com/jonwraymond/toolengine/tool"
	"github.com/jonwraymond/toolengine/toolerr"
)

func echoTool() tool.Tool {
	return tool.NewFunc("echo", "Echo text", tool.Schema{
		"text": {Type: "string", Required: true},
	}, func(_ context.Context, params map[string]any) (tool.Outcome, error) {
		s, _ := params["text"].(string)
		return tool.Success(s), nil
	})
}

// blockingTool ignores its context and waits for release.
func blockingTool(started chan<- struct{}, release <-chan struct{}) tool.Tool {
	return tool.NewFunc("block", "Block until released", nil, func(context.Context, map[string]any) (tool.Outcome, error) {
		if started != nil {
			started <- struct{}{}
		}
		<-release
		return tool.Success("released"), nil
	})
}

type memorySink struct {
	mu   sync.Mutex
	recs []ExecutionRecord
	err  error
}

func (s *memorySink) Append(_ context.Context, rec ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return s.err
}

func TestRun_Success(t *testing.T) {
	sink := &memorySink{}
	m := New(Options{Sink: sink})

	out, err := m.Run(context.Background(), echoTool(), map[string]any{"text": "hi"}, RunOptions{Timeout: time.Second})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "hi", out.Output)
	assert.GreaterOrEqual(t, out.DurationMs, int64(0))

	recs := m.History(Filter{})
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "echo", rec.ToolName)
	assert.NotEmpty(t, rec.ExecutionID)
	assert.True(t, rec.Succeeded)
	assert.False(t, rec.WasTimedOut)
	assert.False(t, rec.WasCancelled)
	assert.Equal(t, map[string]any{"text": "hi"}, rec.Parameters)
	assert.Equal(t, out, rec.Outcome)
	assert.Nil(t, rec.Resources)
	assert.False(t, rec.EndTime.Before(rec.StartTime))

	assert.Empty(t, m.Active())
	require.Len(t, sink.recs, 1)
	assert.Equal(t, rec.ExecutionID, sink.recs[0].ExecutionID)
}

func TestRun_FailedOutcomeIsNotAnError(t *testing.T) {
	m := New(Options{})
	failing := tool.NewFunc("fail", "Always fails", nil, func(context.Context, map[string]any) (tool.Outcome, error) {
		return tool.Failure("bad input"), nil
	})

	out, err := m.Run(context.Background(), failing, nil, RunOptions{})
	require.NoError(t, err)
	assert.False(t, out.Success)

	rec := m.History(Filter{})[0]
	assert.False(t, rec.Succeeded)
	assert.Equal(t, "bad input", rec.ErrorMessage)
}

func TestRun_ToolError(t *testing.T) {
	m := New(Options{})
	boom := errors.New("ECONNREFUSED")
	failing := tool.NewFunc("net", "Fails", nil, func(context.Context, map[string]any) (tool.Outcome, error) {
		return tool.Outcome{}, boom
	})

	out, err := m.Run(context.Background(), failing, nil, RunOptions{})
	require.ErrorIs(t, err, boom)
	assert.False(t, out.Success)
	assert.Equal(t, "ECONNREFUSED", out.ErrorMessage)

	rec := m.History(Filter{})[0]
	assert.False(t, rec.Succeeded)
	assert.False(t, rec.WasTimedOut)
	assert.Equal(t, "ECONNREFUSED", rec.ErrorMessage)
}

func TestRun_Panic(t *testing.T) {
	m := New(Options{})
	panicky := tool.NewFunc("panicky", "Panics", nil, func(context.Context, map[string]any) (tool.Outcome, error) {
		panic("kaboom")
	})

	_, err := m.Run(context.Background(), panicky, nil, RunOptions{})
	var pe *await.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.Len(t, m.History(Filter{}), 1)
}

func TestRun_Timeout(t *testing.T) {
	m := New(Options{})
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	out, err := m.Run(context.Background(), blockingTool(nil, release), nil, RunOptions{Timeout: 20 * time.Millisecond})
	require.NoError(t, err, "interrupted attempts are outcomes by default")
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, out.Success)
	assert.Equal(t, "timed out after 20ms", out.ErrorMessage)

	rec := m.History(Filter{})[0]
	assert.True(t, rec.WasTimedOut)
	assert.False(t, rec.WasCancelled)
	assert.False(t, rec.Succeeded)
	assert.Empty(t, m.Active())
}

func TestRun_TimeoutAsError(t *testing.T) {
	m := New(Options{})
	release := make(chan struct{})
	defer close(release)

	out, err := m.Run(context.Background(), blockingTool(nil, release), nil, RunOptions{
		Timeout:          10 * time.Millisecond,
		InterruptAsError: true,
	})
	require.ErrorIs(t, err, toolerr.ErrTimeout)
	assert.Equal(t, err.Error(), out.ErrorMessage)
}

func TestRun_ParentDeadlineIsTimeout(t *testing.T) {
	m := New(Options{})
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	out, err := m.Run(ctx, blockingTool(nil, release), nil, RunOptions{})
	require.NoError(t, err)
	assert.Contains(t, out.ErrorMessage, "timed out after")
	assert.True(t, m.History(Filter{})[0].WasTimedOut)
}

func TestRun_ParentCancel(t *testing.T) {
	m := New(Options{})
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	out, err := m.Run(ctx, blockingTool(started, release), nil, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "execution was cancelled", out.ErrorMessage)
	rec := m.History(Filter{})[0]
	assert.True(t, rec.WasCancelled)
	assert.False(t, rec.WasTimedOut)
}

func TestCancel(t *testing.T) {
	m := New(Options{})
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	defer close(release)

	type result struct {
		out tool.Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := m.Run(context.Background(), blockingTool(started, release), nil, RunOptions{InterruptAsError: true})
		done <- result{out, err}
	}()
	<-started

	ids := m.Active()
	require.Len(t, ids, 1)
	assert.True(t, m.IsActive(ids[0]))
	assert.True(t, m.Cancel(ids[0]))
	assert.False(t, m.Cancel(ids[0]), "second cancel of the same attempt")

	r := <-done
	require.ErrorIs(t, r.err, toolerr.ErrCancelled)
	assert.Equal(t, "execution was cancelled", r.out.ErrorMessage)
	assert.False(t, m.IsActive(ids[0]))
	assert.False(t, m.Cancel(ids[0]), "cancel after completion")
	assert.False(t, m.Cancel("unknown"))
}

func TestCancelAll(t *testing.T) {
	m := New(Options{})
	const n = 3
	started := make(chan struct{}, n)
	release := make(chan struct{})
	defer close(release)

	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Run(context.Background(), blockingTool(started, release), nil, RunOptions{})
		}()
	}
	for range n {
		<-started
	}

	assert.Equal(t, n, m.CancelAll())
	wg.Wait()
	assert.Equal(t, 0, m.CancelAll())
	for _, rec := range m.History(Filter{}) {
		assert.True(t, rec.WasCancelled)
	}
}

func TestRun_TrackResources(t *testing.T) {
	var calls atomic.Int64
	sampler := SamplerFunc(func() Sample {
		n := uint64(calls.Add(1))
		return Sample{MemoryBytes: n * 1000, CPUIdle: n * 50, CPUTotal: n * 100, CPUValid: true}
	})
	m := New(Options{Sampler: sampler})

	_, err := m.Run(context.Background(), echoTool(), map[string]any{"text": "x"}, RunOptions{TrackResources: true})
	require.NoError(t, err)

	rec := m.History(Filter{})[0]
	require.NotNil(t, rec.Resources)
	assert.Equal(t, uint64(1000), rec.Resources.MemoryBeforeBytes)
	assert.Equal(t, uint64(2000), rec.Resources.MemoryAfterBytes)
	assert.Equal(t, int64(1000), rec.Resources.MemoryDelta())
	assert.InDelta(t, 50.0, rec.Resources.CPUPercent, 0.001)
}

func TestRun_SinkErrorIsLogged(t *testing.T) {
	var logged []string
	logger := telemetry.LoggerFunc(func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	})
	m := New(Options{Sink: &memorySink{err: errors.New("disk full")}, Logger: logger})

	out, err := m.Run(context.Background(), echoTool(), map[string]any{"text": "x"}, RunOptions{})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Contains(t, logged[len(logged)-1], "disk full")
}

func TestStatsFor(t *testing.T) {
	m := New(Options{})
	for range 3 {
		_, _ = m.Run(context.Background(), echoTool(), map[string]any{"text": "x"}, RunOptions{})
	}

	s, ok := m.StatsFor("echo")
	require.True(t, ok)
	assert.Equal(t, 3, s.Executions)
	assert.Equal(t, 1.0, s.SuccessRate)

	_, ok = m.StatsFor("missing")
	assert.False(t, ok)

	assert.Len(t, m.Stats(), 1)
	m.ClearHistory()
	assert.Empty(t, m.Stats())
}

func TestRun_ConcurrentAttempts(t *testing.T) {
	m := New(Options{HistoryCapacity: 5})
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Run(context.Background(), echoTool(), map[string]any{"text": "x"}, RunOptions{})
		}()
	}
	wg.Wait()

	recs := m.History(Filter{})
	require.Len(t, recs, 5)
	seen := make(map[string]bool)
	for _, rec := range recs {
		assert.False(t, seen[rec.ExecutionID], "duplicate execution ID")
		seen[rec.ExecutionID] = true
	}
	assert.Empty(t, m.Active())
}

func TestRun_ContextAwareToolTimeout(t *testing.T) {
	m := New(Options{})
	aware := tool.NewFunc("aware", "Returns when its context ends", nil, func(ctx context.Context, _ map[string]any) (tool.Outcome, error) {
		<-ctx.Done()
		return tool.Outcome{}, ctx.Err()
	})

	out, err := m.Run(context.Background(), aware, nil, RunOptions{Timeout: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "timed out after 10ms", out.ErrorMessage)
	assert.True(t, m.History(Filter{})[0].WasTimedOut)
}
