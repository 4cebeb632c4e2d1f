package store

import (
	"context"
	"fmt"
	"runtime/debug"
)

// Task is the pending result of an asynchronous producer
type Task struct {
	done chan struct{}
	err  error
}

// Go runs fn on its own goroutine and returns a Task that completes when fn returns.
// A panic inside fn is recovered and reported as the task error.
func Go(fn func() error) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("producer panic: %v\n%s", r, debug.Stack())
			}
		}()
		t.err = fn()
	}()
	return t
}

// Completed returns a Task that has already finished with err
func Completed(err error) *Task {
	t := &Task{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

// Done is closed once the task has finished
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the task error. It is only meaningful after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx is done
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
