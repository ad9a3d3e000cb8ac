// Package await races a function against a context.
package await

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Result holds what the raced function returned.
type Result[T any] struct {
	Value T
	Err   error
}

// PanicError is returned when the raced function panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Race runs fn on its own goroutine and waits for it or for ctx, whichever
// finishes first. finished is false when ctx won; fn is then abandoned and
// keeps running with a done context, its result discarded. A result that is
// already available when ctx ends is still returned.
func Race[T any](ctx context.Context, fn func(context.Context) (T, error)) (res Result[T], finished bool) {
	done := make(chan Result[T], 1)
	go func() {
		var r Result[T]
		defer func() {
			if p := recover(); p != nil {
				r = Result[T]{Err: &PanicError{Value: p, Stack: debug.Stack()}}
			}
			done <- r
		}()
		r.Value, r.Err = fn(ctx)
	}()

	select {
	case r := <-done:
		return r, true
	case <-ctx.Done():
		select {
		case r := <-done:
			return r, true
		default:
			return Result[T]{}, false
		}
	}
}
