package playback

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DisplayInterval is the cadence of the interactive paint loop.
const DisplayInterval = time.Second / 60

// CancelFunc withdraws a scheduled callback that has not run yet.
type CancelFunc func()

// Scheduler runs callbacks once at the next frame opportunity.
type Scheduler interface {
	Schedule(fn func()) CancelFunc
}

type task struct {
	fn        func()
	cancelled atomic.Bool
}

func (t *task) run() {
	if !t.cancelled.Load() {
		t.fn()
	}
}

type queue struct {
	mu      sync.Mutex
	pending []*task
}

func (q *queue) push(fn func()) *task {
	t := &task{fn: fn}
	q.mu.Lock()
	q.pending = append(q.pending, t)
	q.mu.Unlock()
	return t
}

func (q *queue) take() []*task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// TickerScheduler runs callbacks on a fixed cadence from its own goroutine.
type TickerScheduler struct {
	q      queue
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTickerScheduler starts a scheduler ticking every interval until ctx is
// done or Stop is called.
func NewTickerScheduler(ctx context.Context, interval time.Duration) *TickerScheduler {
	if interval <= 0 {
		interval = DisplayInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &TickerScheduler{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				for _, tk := range s.q.take() {
					tk.run()
				}
			}
		}
	}()
	return s
}

// Schedule queues fn for the next tick.
func (s *TickerScheduler) Schedule(fn func()) CancelFunc {
	t := s.q.push(fn)
	return func() { t.cancelled.Store(true) }
}

// Stop halts the ticker and waits for an in-flight tick to finish.
func (s *TickerScheduler) Stop() {
	s.cancel()
	<-s.done
}

// LoopScheduler runs each callback as soon as the previous one returns. It
// drives the offline export loop, where frames are produced as fast as they
// can be encoded.
type LoopScheduler struct {
	q      queue
	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLoopScheduler starts a loop scheduler bound to ctx.
func NewLoopScheduler(ctx context.Context) *LoopScheduler {
	ctx, cancel := context.WithCancel(ctx)
	s := &LoopScheduler{wake: make(chan struct{}, 1), cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
			}
			for _, tk := range s.q.take() {
				if ctx.Err() != nil {
					return
				}
				tk.run()
			}
		}
	}()
	return s
}

// Schedule queues fn to run next.
func (s *LoopScheduler) Schedule(fn func()) CancelFunc {
	t := s.q.push(fn)
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return func() { t.cancelled.Store(true) }
}

// Stop ends the loop. Callbacks still queued are dropped. It must not be
// called from inside a callback.
func (s *LoopScheduler) Stop() {
	s.cancel()
	<-s.done
}

// Done is closed once the loop goroutine has exited.
func (s *LoopScheduler) Done() <-chan struct{} { return s.done }

// ManualScheduler only runs callbacks when Step is called. Tests use it to
// drive loops frame by frame.
type ManualScheduler struct {
	q queue
}

// Schedule queues fn until the next Step.
func (s *ManualScheduler) Schedule(fn func()) CancelFunc {
	t := s.q.push(fn)
	return func() { t.cancelled.Store(true) }
}

// Step runs every callback queued before the call. It reports whether any
// were pending.
func (s *ManualScheduler) Step() bool {
	tasks := s.q.take()
	for _, t := range tasks {
		t.run()
	}
	return len(tasks) > 0
}

// RunUntilIdle steps until nothing is queued or limit steps have run.
func (s *ManualScheduler) RunUntilIdle(limit int) int {
	n := 0
	for n < limit && s.Step() {
		n++
	}
	return n
}

// Pending returns the number of queued callbacks.
func (s *ManualScheduler) Pending() int { return s.q.len() }
