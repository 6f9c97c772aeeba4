// Package future implements the future submitter of spec.md §4.5:
// off-thread work with cooperative cancellation, whose continuation is
// the only thing allowed to cross back into the owning actor's
// mailbox. It is grounded on the teacher's
// internal/checkpoint.Checkpointer "go func() { ... }" background-work
// dispatch (OnMessage's periodic checkpoint goroutine) generalized from
// a fire-and-forget goroutine into a tracked, cancelable,
// continuation-bearing one, with the lock-free cancel flag modeled on
// internal/homeassistant.WSClient's atomic counters.
package future

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/orrery-labs/inkframe/internal/actor"
	"github.com/orrery-labs/inkframe/internal/coreerr"
)

// ErrClosed is returned by SubmitFuture after Shutdown.
var ErrClosed = fmt.Errorf("%w: future submitter is shut down", coreerr.Unavailable)

// Future resolves exactly once, to the eventual value or to nil if
// whatever was producing it was cancelled first. Shared by
// internal/timer (a timer's eventual fired-message-or-nil) and
// internal/datasource (a data source's open/render result), so both
// callers can block on the same shape via Result/Done.
type Future struct {
	done   chan struct{}
	once   sync.Once
	result any
}

// NewFuture returns an unresolved Future and the resolver that settles
// it. The resolver is idempotent; only the first call has effect.
func NewFuture() (*Future, func(any)) {
	f := &Future{done: make(chan struct{})}
	resolve := func(v any) {
		f.once.Do(func() {
			f.result = v
			close(f.done)
		})
	}
	return f, resolve
}

// Result blocks until the future resolves and returns its value.
func (f *Future) Result() any {
	<-f.done
	return f.result
}

// Done returns a channel closed when the future resolves, for
// select-based waiting with a timeout.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// CancelCheck is polled cooperatively by Work to notice a cancel
// request; it never interrupts Work on its own.
type CancelCheck func() bool

// Work is submitted off-thread. It must poll its CancelCheck
// periodically if it wants to honor cancellation.
type Work func(cancelled CancelCheck) (result any, err error)

// Continuation observes the outcome of Work and returns a message to
// post to the owner mailbox, or nil to post nothing.
type Continuation func(cancelled bool, result any, err error) any

// Submitter runs Work off the caller's goroutine and posts the
// Continuation's return value to owner (spec.md §4.5).
type Submitter struct {
	owner  actor.Sink
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a Submitter that posts continuation results to owner. A
// nil logger falls back to slog.Default().
func New(owner actor.Sink, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{owner: owner, logger: logger}
}

// SubmitFuture runs work on a new goroutine. When work returns (by
// completion, error, or observing cancellation), continuation runs on
// the same goroutine with the outcome; if continuation returns a
// non-nil message, it is posted to the owner mailbox — work's
// result/error never cross that boundary directly. The returned
// cancelRequest is idempotent.
func (s *Submitter) SubmitFuture(work Work, continuation Continuation) (cancelRequest func(), err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.wg.Add(1)
	s.mu.Unlock()

	var cancelled atomic.Bool
	cancelRequest = func() { cancelled.Store(true) }

	go func() {
		defer s.wg.Done()
		result, workErr := s.runWork(work, cancelled.Load)
		msg := s.runContinuation(continuation, cancelled.Load(), result, workErr)
		if msg == nil {
			return
		}
		if err := s.owner.Accept(msg); err != nil {
			s.logger.Error("future continuation message rejected by owner mailbox", "error", err)
		}
	}()

	return cancelRequest, nil
}

// runWork recovers a panic inside work and turns it into a
// coreerr.Internal error, so a single bad producer can't take down the
// goroutine before the continuation gets a chance to observe it.
func (s *Submitter) runWork(work Work, cancelCheck CancelCheck) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic in future work: %v", coreerr.Internal, r)
		}
	}()
	return work(cancelCheck)
}

// runContinuation recovers a panic inside continuation, logs it, and
// suppresses it (spec.md §4.5 "an exception raised inside the
// continuation is logged and suppressed").
func (s *Submitter) runContinuation(continuation Continuation, cancelled bool, result any, workErr error) (msg any) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("future continuation panicked", "panic", r)
			msg = nil
		}
	}()
	return continuation(cancelled, result, workErr)
}

// Shutdown prevents further submissions and blocks until every
// in-flight work/continuation pair has finished. It does not itself
// request cancellation of in-flight work — callers that want prompt
// drain should cancel their own futures first.
func (s *Submitter) Shutdown() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}
