// Package schedule runs recurring work where the next run is scheduled only
// after the previous one has fully returned.
package schedule

import (
	"context"
	"sync"
	"time"
)

// TickFunc is one iteration of a recurring task. Returning false ends the task.
type TickFunc func(ctx context.Context) bool

// Task is a self-rescheduling loop bound to a context.
//
// The first tick runs immediately. Each following tick starts interval after
// the previous tick returned, so ticks never overlap.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start launches fn on its own goroutine. The task ends when ctx is done,
// when Stop is called, or when fn returns false.
func Start(ctx context.Context, interval time.Duration, fn TickFunc) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go t.run(ctx, interval, fn)
	return t
}

func (t *Task) run(ctx context.Context, interval time.Duration, fn TickFunc) {
	defer close(t.done)
	defer t.cancel()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if !fn(ctx) || ctx.Err() != nil {
			return
		}
		timer.Reset(interval)
	}
}

// Stop cancels the task. A tick already in progress sees its context
// cancelled; no further tick starts. Stop does not wait, so it is safe to
// call from inside a tick. Safe to call on a nil Task and more than once.
func (t *Task) Stop() {
	if t == nil {
		return
	}
	t.once.Do(t.cancel)
}

// Done is closed once the task goroutine has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}
