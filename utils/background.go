package utils

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Dispatcher runs blocking work on goroutines and hands each result back to a
// single loop goroutine, the one that called Run. Callbacks never run concurrently
// with each other. Submitted tasks cannot be cancelled.
type Dispatcher struct {
	callbacks chan func()
	inflight  sync.WaitGroup
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher whose callback queue holds buffer entries.
func NewDispatcher(buffer int, logger *zap.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{callbacks: make(chan func(), buffer), logger: logger}
}

// Run executes queued callbacks until ctx is done, then drains what is left.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case fn := <-d.callbacks:
			fn()
		case <-ctx.Done():
			for {
				select {
				case fn := <-d.callbacks:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Submit runs task in the background. done, when non-nil, receives the task's
// result on the Run loop. A panicking task counts as a failure.
func (d *Dispatcher) Submit(name string, task func() bool, done func(ok bool)) {
	d.inflight.Add(1)
	go func() {
		ok := d.safeRun(name, task)
		if done == nil {
			d.inflight.Done()
			return
		}
		d.callbacks <- func() {
			defer d.inflight.Done()
			done(ok)
		}
	}()
}

// Wait blocks until every submitted task and its callback have finished.
// Run must be active for callbacks to complete.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

func (d *Dispatcher) safeRun(name string, task func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("background task panicked", zap.String("task", name), zap.Any("panic", r))
			ok = false
		}
	}()
	ok = task()
	if !ok {
		d.logger.Warn("background task failed", zap.String("task", name))
	}
	return ok
}
