// Package loop provides the single logical thread all playback state transitions run on.
//
// Engine callbacks, sink notifications, settle timers and host calls are
// posted as closures and executed one at a time in posting order.
package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned when work is submitted to a loop that has stopped.
var ErrClosed = errors.New("loop closed")

// Loop executes posted callbacks sequentially on a dedicated goroutine.
type Loop struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// New starts a loop with the given queue capacity. The loop stops when ctx is
// cancelled or Close is called.
func New(ctx context.Context, capacity int) *Loop {
	l := &Loop{
		queue: make(chan func(), capacity),
		done:  make(chan struct{}),
	}

	l.wg.Add(1)
	go l.run(ctx)
	return l
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()
	for {
		select {
		case <-ctx.Done():
			l.Close()
			return
		case <-l.done:
			return
		case fn := <-l.queue:
			fn()
		}
	}
}

// Post enqueues fn without waiting for it to run. It returns false once the loop has stopped.
// Post blocks while the queue is full; callers on the loop goroutine must not post in a tight cycle.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to return.
// It must not be called from a callback already running on the loop.
func (l *Loop) Do(fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

// AfterFunc posts fn to the loop once d has elapsed. The returned task can
// cancel the continuation up to the moment it starts executing, including
// while it waits in the queue.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Task {
	t := &Task{}
	t.timer = time.AfterFunc(d, func() {
		l.Post(func() {
			if t.cancelled.Load() {
				return
			}
			t.fired.Store(true)
			fn()
		})
	})
	return t
}

// Close stops the loop. Pending callbacks are dropped.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
}

// Wait blocks until the loop goroutine has exited.
func (l *Loop) Wait() {
	l.wg.Wait()
}

// Task is a cancellable continuation scheduled with AfterFunc.
type Task struct {
	timer     *time.Timer
	cancelled atomic.Bool
	fired     atomic.Bool
}

// Cancel prevents the continuation from running. It reports whether the
// continuation had not yet started. Cancel on a nil task is a no-op.
func (t *Task) Cancel() bool {
	if t == nil {
		return false
	}
	t.cancelled.Store(true)
	t.timer.Stop()
	return !t.fired.Load()
}
