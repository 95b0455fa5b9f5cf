// Package control provides the single goroutine that owns lifecycle state.
//
// Host callbacks arrive on arbitrary goroutines and caller commands arrive
// on transport goroutines. Both are funneled through a Loop so that grant
// and refresh state is only ever touched from one place, and so that push
// notifications leave in the order they were produced.
//
//	loop := control.NewLoop(logger)
//	defer loop.Stop()
//
//	loop.Post(func() { tracker.handleExpiration(id) })      // fire-and-forget
//	err := loop.Do(ctx, func() { res = tracker.Begin(r) })  // wait for result
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrStopped is returned when work is submitted after Stop.
var ErrStopped = errors.New("control loop stopped")

// Loop runs submitted functions one at a time, in submission order.
type Loop struct {
	logger *zap.Logger

	mu      sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// NewLoop creates and starts a loop.
func NewLoop(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Post enqueues fn without waiting. The queue is unbounded so Post never
// blocks, including when called from inside the loop.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to return. If ctx ends while fn
// is still queued, fn is dropped and never runs; once fn has started, Do
// waits for it regardless of ctx. It must not be called from inside the
// loop.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	const (
		queued int32 = iota
		running
		abandoned
	)
	var state atomic.Int32
	finished := make(chan struct{})
	if !l.Post(func() {
		if !state.CompareAndSwap(queued, running) {
			return
		}
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		// Stop drains the queue before done closes, so fn has already run.
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		if state.CompareAndSwap(queued, abandoned) {
			return fmt.Errorf("waiting for control loop: %w", ctx.Err())
		}
		<-finished
		return nil
	}
}

// Stop refuses new work, runs everything already queued, then returns.
func (l *Loop) Stop() {
	l.once.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.mu.Unlock()

		select {
		case l.wake <- struct{}{}:
		default:
		}
	})
	<-l.done
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		stopped := l.stopped
		l.mu.Unlock()

		for _, fn := range batch {
			l.exec(fn)
		}

		if len(batch) > 0 {
			continue
		}
		if stopped {
			return
		}
		<-l.wake
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Recovered panic on control loop", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}
