// Package actor implements the message framework described in
// spec.md §4.1: a serial-worker mailbox, a type-hierarchy dispatcher,
// and a topic router. It generalizes the teacher's
// internal/events.Bus — which is a broadcast, drop-if-full pub/sub
// channel — into ordered, per-topic sink delivery with strictly serial
// in-mailbox handler execution, because the core needs FIFO delivery
// guarantees the broadcast bus never provided.
package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrClosed is returned by Accept once a mailbox has processed a Quit
// message.
var ErrClosed = errors.New("actor: mailbox closed")

// Quit is a sentinel message that bypasses handler lookup. When a
// worker dequeues a Quit it runs the mailbox's shutdown routine (if
// any), discards everything still queued behind it, and terminates.
type Quit struct{}

// Mailbox owns an unbounded FIFO queue and a single worker goroutine
// that dispatches messages serially, in insertion order. Accept is
// safe to call from any goroutine.
type Mailbox struct {
	name       string
	dispatcher *Dispatcher
	logger     *slog.Logger
	onShutdown func()

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []any
	closed bool
	done   chan struct{}
}

// New creates a mailbox named name, dispatching accepted messages
// through dispatcher. onShutdown, if non-nil, runs once when a Quit
// message is dequeued, before the worker terminates.
func New(name string, dispatcher *Dispatcher, logger *slog.Logger, onShutdown func()) *Mailbox {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Mailbox{
		name:       name,
		dispatcher: dispatcher,
		logger:     logger,
		onShutdown: onShutdown,
		done:       make(chan struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	go m.run()
	return m
}

// Accept enqueues msg for serial delivery. It never blocks on handler
// execution and returns ErrClosed once the mailbox has begun
// shutdown.
func (m *Mailbox) Accept(msg any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.queue = append(m.queue, msg)
	m.cond.Signal()
	return nil
}

// Done is closed once the mailbox's worker has fully terminated.
func (m *Mailbox) Done() <-chan struct{} {
	return m.done
}

// Name returns the mailbox's label, used in logs and telemetry.
func (m *Mailbox) Name() string { return m.name }

func (m *Mailbox) run() {
	for {
		m.mu.Lock()
		for len(m.queue) == 0 && !m.closed {
			m.cond.Wait()
		}
		if m.closed {
			m.mu.Unlock()
			return
		}
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		if _, isQuit := msg.(Quit); isQuit {
			m.shutdown()
			return
		}
		m.dispatchSafely(msg)
	}
}

func (m *Mailbox) shutdown() {
	m.mu.Lock()
	m.closed = true
	m.queue = nil // discard anything still queued behind Quit
	m.mu.Unlock()

	if m.onShutdown != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("panic in shutdown routine", "mailbox", m.name, "panic", r)
				}
			}()
			m.onShutdown()
		}()
	}
	close(m.done)
}

// dispatchSafely runs the dispatcher for msg, recovering from and
// logging any panic so a single bad handler can never kill the actor
// or its peers (spec.md §5 "Failure isolation").
func (m *Mailbox) dispatchSafely(msg any) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("handler panic",
				"mailbox", m.name,
				"msg_type", fmt.Sprintf("%T", msg),
				"panic", r,
			)
		}
	}()
	if err := m.dispatcher.Dispatch(context.Background(), msg); err != nil {
		m.logger.Error("handler error",
			"mailbox", m.name,
			"msg_type", fmt.Sprintf("%T", msg),
			"error", err,
		)
	}
}
