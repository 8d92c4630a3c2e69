// Package loop implements the single cooperative control thread of the feed core.
//
// Every mutation of pool and slot state runs as a function posted onto a [Loop].
// Decoder workers never touch that state directly: they post their completions
// back onto the loop, so the bookkeeping needs no locks.
package loop

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/reel/internal/shared"
)

// Poster accepts work for the control loop. It reports false once the loop is closed.
type Poster interface {
	Post(fn func()) bool
}

// Loop runs posted functions one at a time, in posting order, on the goroutine that calls [Loop.Run].
//
// The queue is unbounded so posting never blocks, including from inside a running function.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	pending int
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	logger  *log.Logger
}

// New creates a loop. It does nothing until [Loop.Run] is called.
func New(logger *log.Logger) *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: shared.WithLogger(logger, "component", "loop"),
	}
}

// Post queues fn. Safe from any goroutine.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.pending++
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do posts fn and waits until it has run. It must not be called from the loop goroutine.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		fn()
	}) {
		return shared.ErrLoopClosed
	}

	select {
	case <-ran:
		return nil
	case <-l.done:
		select {
		case <-ran:
			return nil
		default:
			return shared.ErrLoopClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until the loop is quiescent: no queued work remains, including work
// posted by the functions it ran while flushing. It must not be called from the loop goroutine.
func (l *Loop) Flush(ctx context.Context) error {
	for {
		var pending int
		if err := l.Do(ctx, func() {
			l.mu.Lock()
			pending = l.pending
			l.mu.Unlock()
		}); err != nil {
			return err
		}
		// the probe itself is still counted while it runs
		if pending <= 1 {
			return nil
		}
	}
}

// Run processes the queue until ctx is cancelled or [Loop.Close] is called.
// Work queued before Close is still run; work queued after is rejected.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)

	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		closed := l.closed
		l.mu.Unlock()

		for _, fn := range batch {
			l.run(fn)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return nil
		}

		select {
		case <-l.wake:
		case <-ctx.Done():
			l.Close()
			l.drain()
			return ctx.Err()
		}
	}
}

// Close stops accepting work. Run returns after draining what was already queued.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Done is closed when Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			l.run(fn)
		}
	}
}

// run executes one function, recovering panics so a faulty callback cannot stop the feed.
func (l *Loop) run(fn func()) {
	defer func() {
		l.mu.Lock()
		l.pending--
		l.mu.Unlock()
		if r := recover(); r != nil {
			l.logger.Error("posted function panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}
