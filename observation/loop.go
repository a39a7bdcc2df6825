package observation

import (
	"context"
	"fmt"
	"time"
)

// Loop owns a System for a goroutine. The runtime is single-threaded: other
// goroutines hand work to the loop with Post or Do, and the loop flushes
// after every task and on each dirty-check interval.
type Loop struct {
	sys      *System
	tasks    chan func()
	interval time.Duration
}

type LoopOption func(*Loop)

// WithBacklog sets how many posted tasks may wait before Post blocks.
func WithBacklog(n int) LoopOption {
	return func(l *Loop) {
		l.tasks = make(chan func(), n)
	}
}

func NewLoop(sys *System, opts ...LoopOption) *Loop {
	l := &Loop{
		sys:      sys,
		tasks:    make(chan func(), 64),
		interval: sys.dirtyCheck.Interval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run processes tasks until ctx is done, then flushes once more and returns
// ctx.Err().
func (l *Loop) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if l.interval > 0 && !l.sys.dirtyCheck.Disabled {
		t := time.NewTicker(l.interval)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			l.sys.Flush()
			return ctx.Err()
		case fn := <-l.tasks:
			l.sys.guard(l, func() error {
				fn()
				return nil
			})
			l.sys.Flush()
		case <-tick:
			l.sys.Flush()
		}
	}
}

// Post hands fn to the loop without waiting for it to run.
func (l *Loop) Post(ctx context.Context, fn func()) error {
	select {
	case l.tasks <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs fn on the loop and waits until it and the flush after it are
// done. A panic in fn comes back as an error.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	err := l.Post(ctx, func() {
		var err error
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("observation: loop task panicked: %v", r)
			}
			done <- err
		}()
		err = fn()
		l.sys.Flush()
	})
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
