package scope

import (
	"context"
	"sync"
)

// Scheduler defers callbacks to the next idle turn of the host loop.
type Scheduler interface {
	Schedule(fn func()) Handle
}

// Handle cancels a scheduled callback that has not fired yet.
type Handle interface {
	Cancel()
}

// Loop is a cooperative FIFO of zero-delay callbacks. Callbacks run on the
// goroutine calling Flush or Run, never concurrently with each other.
type Loop struct {
	mu    sync.Mutex
	queue []*task
	wake  chan struct{}
}

type task struct {
	loop *Loop
	fn   func()
}

// NewLoop creates an empty loop.
func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Schedule queues fn and returns its cancellation handle.
func (l *Loop) Schedule(fn func()) Handle {
	t := &task{loop: l, fn: fn}
	l.mu.Lock()
	l.queue = append(l.queue, t)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return t
}

// Cancel removes the task from its loop. Cancelling a task that already ran
// is a no-op.
func (t *task) Cancel() {
	l := t.loop
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, queued := range l.queue {
		if queued == t {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			return
		}
	}
}

// Pending returns the number of queued callbacks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Flush runs queued callbacks, including those scheduled while flushing,
// until the queue is empty. It returns the number of callbacks run.
func (l *Loop) Flush() int {
	ran := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return ran
		}
		next := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		if next.fn != nil {
			next.fn()
		}
		ran++
	}
}

// Run flushes the loop whenever callbacks are scheduled until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.Flush()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}
