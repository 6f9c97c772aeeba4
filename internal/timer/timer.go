// Package timer implements the timer service of spec.md §4.4: delayed,
// cancelable delivery of a message to a sink, backed by an injected
// clock so tests can run timers at a scaled or fixed rate instead of
// the OS clock. It generalizes the teacher's
// internal/scheduler.Scheduler timer bookkeeping (a
// map[string]*time.Timer guarded by a mutex, cancelTimer/scheduleTask)
// from "reschedule a persisted Task" into the narrower "fire once,
// return a Future, support idempotent cancel" contract the spec
// requires.
package timer

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orrery-labs/inkframe/internal/actor"
	"github.com/orrery-labs/inkframe/internal/clock"
	"github.com/orrery-labs/inkframe/internal/future"
)

type timerEntry struct {
	handle    clock.Timer
	cancelled *atomic.Bool
	resolve   func(any)
}

// Service creates and tracks outstanding timers (spec.md §4.4).
type Service struct {
	clock  clock.Clock
	logger *slog.Logger

	mu     sync.Mutex
	timers map[uint64]*timerEntry
	nextID uint64
	closed bool
	wg     sync.WaitGroup
}

// New creates a Service backed by c. A nil logger falls back to
// slog.Default().
func New(c clock.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{clock: c, logger: logger, timers: make(map[uint64]*timerEntry)}
}

// CreateTimer arms a timer that, after delta (measured on the
// service's injected clock), delivers message to sink exactly once
// unless cancelled first. It returns a Future resolving to message (or
// nil if cancelled) and an idempotent cancel function. Calling
// CreateTimer after Shutdown returns an already-cancelled future and a
// no-op cancel.
func (s *Service) CreateTimer(delta time.Duration, sink actor.Sink, message any) (*future.Future, func()) {
	fut, resolve := future.NewFuture()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		resolve(nil)
		return fut, func() {}
	}

	id := s.nextID
	s.nextID++
	s.wg.Add(1)

	cancelled := &atomic.Bool{}
	entry := &timerEntry{cancelled: cancelled, resolve: resolve}

	entry.handle = s.clock.AfterFunc(delta, func() {
		defer s.wg.Done()
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()

		if cancelled.Load() {
			resolve(nil)
			return
		}
		if err := sink.Accept(message); err != nil {
			s.logger.Error("timer sink rejected message", "error", err)
		}
		resolve(message)
	})
	s.timers[id] = entry
	s.mu.Unlock()

	cancel := func() {
		if cancelled.Swap(true) {
			return
		}
		s.mu.Lock()
		e, ok := s.timers[id]
		if ok {
			delete(s.timers, id)
		}
		s.mu.Unlock()
		if ok && e.handle.Stop() {
			e.resolve(nil)
			s.wg.Done()
		}
	}
	return fut, cancel
}

// Shutdown cancels every outstanding timer and blocks until their
// carrier goroutines have observed the cancellation (spec.md §4.4).
// Timers MUST use the injected clock; Shutdown is the only place this
// package blocks on real wall-clock progress, and only to drain
// already-scheduled goroutines, never to wait for a delay.
func (s *Service) Shutdown() {
	s.mu.Lock()
	s.closed = true
	pending := make([]*timerEntry, 0, len(s.timers))
	for id, e := range s.timers {
		pending = append(pending, e)
		delete(s.timers, id)
	}
	s.mu.Unlock()

	for _, e := range pending {
		if e.cancelled.Swap(true) {
			continue
		}
		if e.handle.Stop() {
			e.resolve(nil)
			s.wg.Done()
		}
	}
	s.wg.Wait()
}
