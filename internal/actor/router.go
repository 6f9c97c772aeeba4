package actor

import (
	"log/slog"
	"sync"
)

// Sink is anything a Router can deliver a message to — in practice a
// *Mailbox, but kept as an interface so tests can use a lightweight
// fake.
type Sink interface {
	Accept(msg any) error
}

// Router maintains topic -> ordered subscriber list and fans a
// message out to every subscriber of a topic (spec.md §4.1). Send
// itself never blocks on handler execution — delivery is just an
// Accept call into each sink's mailbox — but it does run on the
// caller's goroutine, so it is not a worker of its own (spec.md §5).
type Router struct {
	mu     sync.RWMutex
	topics map[string][]Sink
	logger *slog.Logger
}

// NewRouter returns an empty router.
func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{topics: make(map[string][]Sink), logger: logger}
}

// AddRoute subscribes sink to topic. A sink may be added to more than
// one topic; a topic may have more than one sink.
func (r *Router) AddRoute(topic string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics[topic] = append(r.topics[topic], sink)
}

// Send delivers msg to every subscriber of topic. A delivery error to
// one sink (e.g. ErrClosed) is logged and does not prevent delivery to
// the remaining subscribers.
func (r *Router) Send(topic string, msg any) {
	r.mu.RLock()
	sinks := r.topics[topic]
	r.mu.RUnlock()

	for _, s := range sinks {
		if err := s.Accept(msg); err != nil {
			r.logger.Warn("router: delivery failed", "topic", topic, "error", err)
		}
	}
}

// SubscriberCount returns the number of sinks subscribed to topic.
func (r *Router) SubscriberCount(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}
