package actor

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/orrery-labs/inkframe/internal/coreerr"
)

// HandlerFunc processes one message. A non-nil error is logged by the
// owning mailbox; it never crosses back to the sender.
type HandlerFunc func(ctx context.Context, msg any) error

type fallback struct {
	matches func(t reflect.Type) bool
	handler HandlerFunc
}

// Dispatcher resolves a message to a handler by walking from the
// exact concrete type to registered base/interface fallbacks in
// registration order, first match wins — an explicit table in place
// of the reflection-scanned method registration the source used
// (spec.md §9 "Reflection-based handler registration -> explicit
// table"), generalizing the teacher's tools.Registry pattern of
// building a lookup map at construction time.
type Dispatcher struct {
	mu        sync.RWMutex
	exact     map[reflect.Type]HandlerFunc
	fallbacks []fallback
}

// NewDispatcher returns an empty dispatcher ready for registration.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{exact: make(map[reflect.Type]HandlerFunc)}
}

// Handle registers h for the exact concrete type of sample (sample is
// only used to capture the type; its value is ignored). Exact matches
// always take priority over fallbacks.
func (d *Dispatcher) Handle(sample any, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exact[reflect.TypeOf(sample)] = h
}

// HandleInterface registers h as a fallback for any message whose
// concrete type implements the interface pointed to by ifacePtr, e.g.
// HandleInterface((*Trackable)(nil), h). Fallbacks are tried in
// registration order, so register the most specific interfaces
// first.
func (d *Dispatcher) HandleInterface(ifacePtr any, h HandlerFunc) {
	ifaceType := reflect.TypeOf(ifacePtr).Elem()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallbacks = append(d.fallbacks, fallback{
		matches: func(t reflect.Type) bool { return t.Implements(ifaceType) },
		handler: h,
	})
}

// Dispatch resolves and invokes the handler for msg. It returns an
// error wrapping coreerr.Unavailable when no handler matches.
func (d *Dispatcher) Dispatch(ctx context.Context, msg any) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	t := reflect.TypeOf(msg)
	if h, ok := d.exact[t]; ok {
		return h(ctx, msg)
	}
	for _, f := range d.fallbacks {
		if f.matches(t) {
			return f.handler(ctx, msg)
		}
	}
	return fmt.Errorf("%w: no handler registered for %T", coreerr.Unavailable, msg)
}
