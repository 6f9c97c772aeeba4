// Package datasource implements the data-source manager of spec.md
// §4.6: a bounded worker pool fronting a registry of named data
// sources, each exposing zero or more of open/render/accept. It
// replaces the source's "is this object of capability X" runtime
// protocol check with the tagged-capability struct redesign from
// spec.md §9 — a Source with nil-checkable Opener/Renderer/Receiver
// fields, grounded on the teacher's internal/tools.Registry optional
// wiring (SetFactTools, SetFileTools, ... each sets a nilable field
// call sites check before using).
package datasource

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/orrery-labs/inkframe/internal/clock"
	"github.com/orrery-labs/inkframe/internal/coreerr"
	"github.com/orrery-labs/inkframe/internal/exec"
	"github.com/orrery-labs/inkframe/internal/future"
)

// defaultTimeoutSeconds is the per-call render/open deadline used when
// params carries no "timeoutSeconds" override (spec.md §4.9 "render/
// open futures accept a per-call timeout from params.timeoutSeconds
// (default 10 s)").
const defaultTimeoutSeconds = 10.0

// timeoutFromParams reads the caller-supplied deadline, falling back
// to defaultTimeoutSeconds for a missing, zero, or negative value.
// Accepts both JSON-decoded float64 and plain int so callers can pass
// either a literal Go int or a value round-tripped through a track's
// content map.
func timeoutFromParams(params map[string]any) time.Duration {
	secs := defaultTimeoutSeconds
	switch v := params["timeoutSeconds"].(type) {
	case float64:
		secs = v
	case int:
		secs = float64(v)
	case int64:
		secs = float64(v)
	}
	if secs <= 0 {
		secs = defaultTimeoutSeconds
	}
	return time.Duration(secs * float64(time.Second))
}

// Opener opens a session against a data source, returning opaque
// state a later Render call will receive back (spec.md §4.6
// "open(ctx, params) -> future<state>").
type Opener func(ctx *exec.Context, params map[string]any) (any, error)

// Renderer rasterizes one item to an image sized to ctx.Dimensions. A
// nil image with a nil error means "nothing to show" (spec.md §4.6).
type Renderer func(ctx *exec.Context, params map[string]any, state any) (image.Image, error)

// Receiver is an optional sink for messages addressed to this source
// by ID (spec.md §4.6 "accept(msg)").
type Receiver func(ctx *exec.Context, msg any) error

// Source is a tagged-capability data source: any subset of Opener,
// Renderer, Receiver may be nil, and callers must check before using
// the corresponding capability.
type Source struct {
	ID       string
	Opener   Opener
	Renderer Renderer
	Receiver Receiver
}

// Result is what an Open/Render future resolves to: Open resolves a
// Result carrying the opened state in Value; Render resolves one
// carrying an image.Image (or nil Value for "nothing to show").
type Result struct {
	Value any
	Err   error
}

// Manager owns the registry of data sources and the bounded worker
// pool spec.md §4.6 requires (golang.org/x/sync/semaphore, matching
// SPEC_FULL.md's dependency table).
type Manager struct {
	logger *slog.Logger
	clk    clock.Clock

	mu      sync.RWMutex
	sources map[string]*Source

	pool *semaphore.Weighted
	wg   sync.WaitGroup
}

var _ exec.DataSourceManager = (*Manager)(nil)

// NewManager creates a Manager whose worker pool admits at most
// poolSize concurrent open/render calls. A nil clk falls back to
// clock.Real{}; a nil logger falls back to slog.Default().
func NewManager(poolSize int64, clk clock.Clock, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if poolSize < 1 {
		poolSize = 1
	}
	return &Manager{
		logger:  logger,
		clk:     clk,
		sources: make(map[string]*Source),
		pool:    semaphore.NewWeighted(poolSize),
	}
}

// Register adds src to the manager. It is an error to register the
// same ID twice.
func (m *Manager) Register(src *Source) error {
	if src.ID == "" {
		return fmt.Errorf("%w: data source ID must not be empty", coreerr.InvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sources[src.ID]; exists {
		return fmt.Errorf("%w: data source %q already registered", coreerr.InvalidInput, src.ID)
	}
	m.sources[src.ID] = src
	return nil
}

// IDs returns the registered data source IDs.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sources))
	for id := range m.sources {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) lookup(sourceID string) (*Source, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.sources[sourceID]
	if !ok {
		return nil, fmt.Errorf("%w: data source %q", coreerr.NotFound, sourceID)
	}
	return src, nil
}

// Open runs src.Opener on the worker pool and returns a Future
// resolving to a Result carrying the opened state (spec.md §4.6).
// params["timeoutSeconds"] (default 10) bounds how long the caller
// will wait before the Future resolves to coreerr.Timeout instead
// (spec.md §4.9).
func (m *Manager) Open(ctx *exec.Context, sourceID string, params map[string]any) (*future.Future, error) {
	src, err := m.lookup(sourceID)
	if err != nil {
		return nil, err
	}
	if src.Opener == nil {
		return nil, fmt.Errorf("%w: data source %q has no opener", coreerr.Unavailable, sourceID)
	}
	return m.submit(timeoutFromParams(params), func() (any, error) { return src.Opener(ctx, params) }), nil
}

// Render runs src.Renderer on the worker pool and returns a Future
// resolving to a Result carrying the rendered image, or a nil Value
// meaning "nothing to show" (spec.md §4.6). params["timeoutSeconds"]
// bounds the wait the same way Open's does.
func (m *Manager) Render(ctx *exec.Context, sourceID string, params map[string]any, state any) (*future.Future, error) {
	src, err := m.lookup(sourceID)
	if err != nil {
		return nil, err
	}
	if src.Renderer == nil {
		return nil, fmt.Errorf("%w: data source %q has no renderer", coreerr.Unavailable, sourceID)
	}
	return m.submit(timeoutFromParams(params), func() (any, error) { return src.Renderer(ctx, params, state) }), nil
}

// Accept routes msg to sourceID's Receiver, if it has one. Sources
// without a Receiver silently discard source-addressed messages
// (spec.md §4.6 "accept" is optional).
func (m *Manager) Accept(ctx *exec.Context, sourceID string, msg any) error {
	src, err := m.lookup(sourceID)
	if err != nil {
		return err
	}
	if src.Receiver == nil {
		return nil
	}
	return src.Receiver(ctx, msg)
}

// submit acquires a worker-pool slot, runs work on a goroutine with
// panic recovery, and resolves the returned Future to a Result. It
// races that resolution against timeout: whichever settles the Future
// first wins, since future.NewFuture's resolver only ever takes effect
// once (spec.md §4.9's per-call render/open deadline).
func (m *Manager) submit(timeout time.Duration, work func() (any, error)) *future.Future {
	fut, resolve := future.NewFuture()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.pool.Acquire(context.Background(), 1); err != nil {
			resolve(Result{Err: fmt.Errorf("%w: acquire worker slot: %v", coreerr.Internal, err)})
			return
		}
		defer m.pool.Release(1)

		value, err := m.runSafely(work)
		resolve(Result{Value: value, Err: err})
	}()

	timer := m.clk.AfterFunc(timeout, func() {
		resolve(Result{Err: fmt.Errorf("%w: data source call exceeded %s", coreerr.Timeout, timeout)})
	})
	go func() {
		<-fut.Done()
		timer.Stop()
	}()

	return fut
}

// runSafely recovers a panic inside work, matching the future
// submitter's own panic-isolation discipline so one bad data source
// can't take the pool down with it.
func (m *Manager) runSafely(work func() (any, error)) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic in data source work: %v", coreerr.Internal, r)
		}
	}()
	return work()
}

// Shutdown blocks until every in-flight Open/Render call has
// finished. It does not cancel in-flight work; callers that need
// prompt drain should stop submitting first.
func (m *Manager) Shutdown() {
	m.wg.Wait()
}
