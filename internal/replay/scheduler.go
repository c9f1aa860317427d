package replay

import (
	"context"
	"sync"
	"time"
)

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after d on the engine's timeline. Implementations
// must never run two callbacks concurrently with each other or with other
// calls into the engine.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// Loop is a single-goroutine Scheduler for headless use. Callbacks and any
// function handed to Do run one at a time inside Run.
type Loop struct {
	queue chan func()
	once  sync.Once
	done  chan struct{}
}

func NewLoop() *Loop {
	return &Loop{queue: make(chan func(), 16), done: make(chan struct{})}
}

type loopTimer struct {
	t *time.Timer
}

func (lt loopTimer) Stop() bool { return lt.t.Stop() }

func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return loopTimer{t: time.AfterFunc(d, func() { l.Do(fn) })}
}

// Do queues fn onto the loop. It is dropped once the loop has stopped.
func (l *Loop) Do(fn func()) {
	select {
	case l.queue <- fn:
	case <-l.done:
	}
}

// Stop makes Run return after the callback in progress.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
}

// Run executes queued callbacks until Stop is called or ctx ends.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-l.done:
			return nil
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		default:
		}
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.queue:
			fn()
		}
	}
}
