package clock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned when submitting work to a stopped Loop.
var ErrClosed = errors.New("loop closed")

// Loop is a wall-clock Clock whose callbacks, along with any work
// submitted through Do or Post, all run on one goroutine. State touched
// only from the loop needs no locking.
type Loop struct {
	tasks chan func()
	done  chan struct{}
	once  sync.Once
}

// NewLoop returns a loop that is not running yet; call Start.
func NewLoop() *Loop {
	return &Loop{
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
	}
}

// Start runs the loop on a new goroutine until ctx is cancelled or Close
// is called.
func (l *Loop) Start(ctx context.Context) {
	go l.run(ctx)
}

func (l *Loop) run(ctx context.Context) {
	defer l.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case f := <-l.tasks:
			f()
		}
	}
}

// Close stops the loop. Queued work that has not started is dropped.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
}

// Post queues f without waiting for it.
func (l *Loop) Post(f func()) error {
	select {
	case <-l.done:
		return ErrClosed
	default:
	}
	select {
	case l.tasks <- f:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

// Do runs f on the loop and waits for it to finish. It must not be called
// from the loop goroutine itself.
func (l *Loop) Do(ctx context.Context, f func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		f()
	}); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrClosed
	}
}

// Now returns the wall-clock time.
func (l *Loop) Now() time.Time { return time.Now() }

// AfterFunc posts f to the loop once d has elapsed. A timer that has
// already fired may still have f queued; callers guard against late
// callbacks themselves.
func (l *Loop) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, func() {
		_ = l.Post(f)
	})
}
