// Package task runs work under a deadline and keeps whatever progress the
// work published before the deadline fired.
package task

import (
	"context"
	"errors"
	"time"
)

// Step is one unit of progress published by running work.
type Step struct {
	Name   string `json:"name"`
	Output any    `json:"output,omitempty"`
}

// Result is the outcome of Run. On timeout Value is the zero value, Steps
// holds the progress published so far and Err is context.DeadlineExceeded.
type Result[T any] struct {
	Value    T
	Steps    []Step
	TimedOut bool
	Err      error
}

// Func is work executed by Run. It must honour ctx cancellation and may
// call emit any number of times.
type Func[T any] func(ctx context.Context, emit func(Step)) (T, error)

// stepBuffer bounds the progress channel; emit drops steps once it is full
// and the collector has stopped reading.
const stepBuffer = 64

// Run executes fn in its own goroutine and collects its steps until fn
// returns or timeout elapses. A non-positive timeout waits for completion.
// On timeout the work's context is cancelled and Run returns without
// waiting for fn to exit.
func Run[T any](ctx context.Context, timeout time.Duration, fn Func[T]) Result[T] {
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	type outcome struct {
		value T
		err   error
	}

	steps := make(chan Step, stepBuffer)
	done := make(chan outcome, 1)
	stopped := make(chan struct{})

	emit := func(s Step) {
		select {
		case steps <- s:
		case <-stopped:
		}
	}

	go func() {
		v, err := fn(ctx, emit)
		done <- outcome{value: v, err: err}
	}()

	var res Result[T]
	// drain collects steps still buffered when the loop exits.
	drain := func() {
		for {
			select {
			case s := <-steps:
				res.Steps = append(res.Steps, s)
			default:
				return
			}
		}
	}

	for {
		select {
		case s := <-steps:
			res.Steps = append(res.Steps, s)

		case out := <-done:
			drain()
			close(stopped)
			res.Value, res.Err = out.value, out.err
			res.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
			cancel()
			return res

		case <-ctx.Done():
			drain()
			close(stopped)
			cancel()
			res.Err = ctx.Err()
			res.TimedOut = errors.Is(res.Err, context.DeadlineExceeded)
			return res
		}
	}
}
