package loader

import (
	"context"
	"errors"
)

// ErrLoopStopped is returned when work is handed to a Loop whose Run has
// returned.
var ErrLoopStopped = errors.New("control loop stopped")

const defaultQueueSize = 64

// Loop is the control context: a single goroutine that runs posted funcs one
// at a time in FIFO order. State owned by the loop (the presenter adapter,
// delivery callbacks) needs no locking as long as it is only touched from
// posted funcs.
type Loop struct {
	queue chan func()
	done  chan struct{}
}

// NewLoop creates a loop. It does nothing until Run is called.
func NewLoop() *Loop {
	return &Loop{
		queue: make(chan func(), defaultQueueSize),
		done:  make(chan struct{}),
	}
}

// Run drains the queue until ctx is cancelled. It must be called once.
// Funcs still queued when ctx is cancelled never run.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case fn := <-l.queue:
			fn()
		}
	}
}

// Post enqueues fn without waiting for it to run.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}
	select {
	case <-l.done:
		return ErrLoopStopped
	case l.queue <- fn:
		return nil
	}
}

// Do enqueues fn and waits until it has run. Calling Do from inside a posted
// func deadlocks.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		return ErrLoopStopped
	case l.queue <- wrapped:
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopStopped
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
