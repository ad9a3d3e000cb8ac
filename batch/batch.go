package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonwraymond/toolengine/internal/await"
	"github.com/jonwraymond/toolengine/telemetry"
	"github.com/jonwraymond/toolengine/toolerr"
)

// DefaultMaxConcurrency is used when Options.MaxConcurrency is not positive.
const DefaultMaxConcurrency = 5

// ErrStopped resolves tasks that were still queued when the batch stopped.
var ErrStopped = errors.New("Execution stopped")

// ErrNoRun is returned for a task without a Run function.
var ErrNoRun = errors.New("task has no run function")

// Task is one unit of work.
type Task[T any] struct {
	ID       string
	Priority int
	Run      func(ctx context.Context) (T, error)
}

// Result is the resolution of one task.
type Result[T any] struct {
	ID        string
	Succeeded bool
	Value     T
	Err       error
	Duration  time.Duration
}

// Progress is reported after every task resolution.
type Progress struct {
	Completed int
	Total     int
	ID        string
	Succeeded bool
}

// Options configures Run.
type Options struct {
	// MaxConcurrency bounds the number of in-flight tasks.
	// Default: DefaultMaxConcurrency
	MaxConcurrency int

	// TaskTimeout abandons a task once it elapses. Zero means no timeout.
	TaskTimeout time.Duration

	// StopOnError resolves queued tasks with ErrStopped after the first failure.
	StopOnError bool

	// RateLimit caps task starts per second. Zero means unlimited.
	RateLimit rate.Limit

	// Burst is the limiter burst size.
	// Default: 1
	Burst int

	// OnProgress is called after every task resolution, serialized.
	OnProgress func(Progress)

	// Logger is an optional logger for observability.
	Logger telemetry.Logger

	// Instruments records a counter per resolved task. Nil records nothing.
	Instruments *telemetry.Instruments
}

func (o *Options) applyDefaults() {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
}

// scheduler holds the shared state of one Run call.
type scheduler[T any] struct {
	opts    Options
	results []Result[T]
	sem     chan struct{}
	stop    chan struct{}
	once    sync.Once

	mu        sync.Mutex
	completed int
}

// Run executes tasks and returns one result per task, in input order.
// It returns once every started task has resolved.
func Run[T any](ctx context.Context, tasks []Task[T], opts Options) []Result[T] {
	opts.applyDefaults()
	s := &scheduler[T]{
		opts:    opts,
		results: make([]Result[T], len(tasks)),
		sem:     make(chan struct{}, opts.MaxConcurrency),
		stop:    make(chan struct{}),
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(opts.RateLimit, opts.Burst)
	}

	var wg sync.WaitGroup
	for _, i := range priorityOrder(tasks) {
		task := tasks[i]
		if err := s.acquire(ctx); err != nil {
			s.resolve(ctx, i, Result[T]{ID: task.ID, Err: err})
			continue
		}
		if limiter != nil {
			if err := s.pace(ctx, limiter); err != nil {
				<-s.sem
				s.resolve(ctx, i, Result[T]{ID: task.ID, Err: err})
				continue
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-s.sem }()
			r := runTask(ctx, task, opts.TaskTimeout)
			if !r.Succeeded && opts.StopOnError {
				s.halt()
			}
			s.resolve(ctx, i, r)
		}()
	}
	wg.Wait()
	return s.results
}

// acquire takes a concurrency slot, or reports why the task must not start.
func (s *scheduler[T]) acquire(ctx context.Context) error {
	select {
	case <-s.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	case s.sem <- struct{}{}:
	}

	// select picks randomly among ready cases; re-check after acquiring.
	if s.stopped() {
		<-s.sem
		return ErrStopped
	}
	if err := ctx.Err(); err != nil {
		<-s.sem
		return err
	}
	return nil
}

// pace waits for the rate limiter. A stop during the wait ends it early, and
// a stop that lands just as the wait returns still keeps the task queued.
func (s *scheduler[T]) pace(ctx context.Context, l *rate.Limiter) error {
	waitCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go func() {
		select {
		case <-s.stop:
			cancel(ErrStopped)
		case <-waitCtx.Done():
		}
	}()

	err := l.Wait(waitCtx)
	if s.stopped() {
		return ErrStopped
	}
	return err
}

func (s *scheduler[T]) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

func (s *scheduler[T]) halt() {
	s.once.Do(func() {
		close(s.stop)
		telemetry.Logf(s.opts.Logger, "batch: stopping after first failure")
	})
}

func (s *scheduler[T]) resolve(ctx context.Context, i int, r Result[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[i] = r
	s.completed++
	s.opts.Instruments.RecordBatchTask(ctx, taskStatus(r))
	if s.opts.OnProgress != nil {
		s.opts.OnProgress(Progress{
			Completed: s.completed,
			Total:     len(s.results),
			ID:        r.ID,
			Succeeded: r.Succeeded,
		})
	}
}

func runTask[T any](ctx context.Context, task Task[T], timeout time.Duration) Result[T] {
	start := time.Now()
	if task.Run == nil {
		return Result[T]{ID: task.ID, Err: ErrNoRun}
	}

	taskCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		cause := fmt.Errorf("%w after %dms", toolerr.ErrTimeout, timeout.Milliseconds())
		taskCtx, cancel = context.WithTimeoutCause(ctx, timeout, cause)
		defer cancel()
	}

	res, finished := await.Race(taskCtx, task.Run)
	r := Result[T]{ID: task.ID, Duration: time.Since(start)}
	switch {
	case !finished || (taskCtx.Err() != nil && isContextErr(res.Err)):
		r.Err = context.Cause(taskCtx)
	case res.Err != nil:
		r.Value = res.Value
		r.Err = res.Err
	default:
		r.Value = res.Value
		r.Succeeded = true
	}
	return r
}

// isContextErr reports whether a task gave up because its context ended.
func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func taskStatus[T any](r Result[T]) string {
	switch {
	case r.Succeeded:
		return telemetry.StatusSuccess
	case errors.Is(r.Err, ErrStopped):
		return telemetry.StatusStopped
	case errors.Is(r.Err, toolerr.ErrTimeout), errors.Is(r.Err, context.DeadlineExceeded):
		return telemetry.StatusTimeout
	case errors.Is(r.Err, context.Canceled):
		return telemetry.StatusCancelled
	default:
		return telemetry.StatusError
	}
}

// priorityOrder returns task indices sorted by priority descending; equal
// priorities keep input order.
func priorityOrder[T any](tasks []Task[T]) []int {
	order := make([]int, len(tasks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return tasks[order[a]].Priority > tasks[order[b]].Priority
	})
	return order
}

// Summary aggregates a result list.
type Summary struct {
	Total           int           `json:"total"`
	Succeeded       int           `json:"succeeded"`
	Failed          int           `json:"failed"`
	AverageDuration time.Duration `json:"averageDuration"`
	TotalDuration   time.Duration `json:"totalDuration"`
}

// Summarize derives aggregate statistics from results.
func Summarize[T any](results []Result[T]) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Succeeded {
			s.Succeeded++
		} else {
			s.Failed++
		}
		s.TotalDuration += r.Duration
	}
	if s.Total > 0 {
		s.AverageDuration = s.TotalDuration / time.Duration(s.Total)
	}
	return s
}
