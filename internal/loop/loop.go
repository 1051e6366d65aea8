// Package loop runs callbacks one at a time on a single goroutine.
//
// Dispatch never blocks the caller, so code already running on the loop
// can queue further work (a subscriber that starts a navigation, a loader
// result landing while a commit is in progress) without deadlocking.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.uber.org/atomic"
)

// ErrClosed is returned by Do once the loop has been closed.
var ErrClosed = errors.New("loop: closed")

// Loop is a serial executor. The zero value is not usable; call New.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}

	done   chan struct{}
	exited chan struct{}
	closed atomic.Bool

	logger *slog.Logger
}

// New starts a loop. Close must be called to stop its goroutine.
func New(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		logger: logger.With("component", "loop"),
	}
	go l.run()
	return l
}

// Dispatch queues fn. Callbacks run in dispatch order. Callbacks queued
// after Close are dropped.
func (l *Loop) Dispatch(fn func()) {
	if fn == nil || l.closed.Load() {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do runs fn on the loop and waits for it to return.
// It must not be called from the loop itself.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	if l.closed.Load() {
		return ErrClosed
	}
	ran := make(chan struct{})
	l.Dispatch(func() {
		defer close(ran)
		fn()
	})
	select {
	case <-ran:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop after the callback in progress returns. Queued
// callbacks that have not started are discarded. Close is idempotent.
func (l *Loop) Close() {
	if l.closed.Swap(true) {
		return
	}
	close(l.done)
	<-l.exited
}

// Done is closed once Close has been called.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run() {
	defer close(l.exited)
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			batch := l.queue
			l.queue = nil
			l.mu.Unlock()

			for _, fn := range batch {
				if l.closed.Load() {
					return
				}
				l.exec(fn)
			}
		}
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("callback panicked", "panic", r)
		}
	}()
	fn()
}
