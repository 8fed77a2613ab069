// Package task runs work on a goroutine with completion and failure
// callbacks. Latest keeps at most one task current: starting another cancels
// the previous one and its callbacks are never delivered.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var ErrSuperseded = errors.New("task: superseded by a newer task")

type Callbacks[T any] struct {
	OnSuccess func(T)
	OnFailure func(error)
}

type Task[T any] struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex
	superseded bool

	val T
	err error
}

// Start runs fn with a context derived from ctx. Exactly one callback fires
// when fn returns, unless the task was superseded first.
func Start[T any](ctx context.Context, fn func(context.Context) (T, error), cb Callbacks[T]) *Task[T] {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task[T]{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer cancel()
		val, err := run(ctx, fn)

		t.val, t.err = val, err
		close(t.done)

		if t.isSuperseded() {
			return
		}
		if err != nil {
			if cb.OnFailure != nil {
				cb.OnFailure(err)
			}
			return
		}
		if cb.OnSuccess != nil {
			cb.OnSuccess(val)
		}
	}()
	return t
}

func run[T any](ctx context.Context, fn func(context.Context) (T, error)) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Cancel cancels the task's context. fn decides how quickly it stops.
func (t *Task[T]) Cancel() { t.cancel() }

func (t *Task[T]) Done() <-chan struct{} { return t.done }

// Wait blocks until fn returns. A superseded task reports ErrSuperseded.
func (t *Task[T]) Wait() (T, error) {
	<-t.done
	if t.isSuperseded() {
		var zero T
		return zero, ErrSuperseded
	}
	return t.val, t.err
}

func (t *Task[T]) supersede() {
	t.mu.Lock()
	t.superseded = true
	t.mu.Unlock()
	t.cancel()
}

func (t *Task[T]) isSuperseded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.superseded
}

// Latest tracks the most recently started task.
type Latest[T any] struct {
	mu      sync.Mutex
	current *Task[T]
}

func (l *Latest[T]) Start(ctx context.Context, fn func(context.Context) (T, error), cb Callbacks[T]) *Task[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current != nil {
		l.current.supersede()
	}
	l.current = Start(ctx, fn, cb)
	return l.current
}

// Cancel supersedes the current task, if any.
func (l *Latest[T]) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current != nil {
		l.current.supersede()
		l.current = nil
	}
}

// Running reports whether the current task has not finished yet.
func (l *Latest[T]) Running() bool {
	l.mu.Lock()
	cur := l.current
	l.mu.Unlock()
	if cur == nil {
		return false
	}
	select {
	case <-cur.Done():
		return false
	default:
		return true
	}
}

// IsCurrent reports whether t is still the latest task.
func (l *Latest[T]) IsCurrent(t *Task[T]) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current == t
}
