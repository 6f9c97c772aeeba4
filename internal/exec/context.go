// Package exec defines the execution context and service-provider
// container threaded through plugin and data-source calls (spec.md
// §4.7 "The execution context provides..."). It is kept as its own
// package, separate from internal/plugin and internal/datasource, so
// both of those packages — and internal/playlist/internal/timerlayer,
// which construct contexts — can depend on it without an import cycle.
package exec

import (
	"time"

	"github.com/orrery-labs/inkframe/internal/actor"
	"github.com/orrery-labs/inkframe/internal/clock"
	"github.com/orrery-labs/inkframe/internal/confstore"
	"github.com/orrery-labs/inkframe/internal/future"
	"github.com/orrery-labs/inkframe/internal/timer"
)

// Dimensions is the target render surface size.
type Dimensions struct {
	Width  int
	Height int
}

// Services is the execution context's service provider: the typed
// slots spec.md §4.7 requires, split into required (always non-nil for
// a context built by the application supervisor) and optional
// (data-source specific) members.
type Services struct {
	ConfigManager *confstore.Manager
	Router        *actor.Router
	Timers        *timer.Service
	Futures       *future.Submitter
	Clock         clock.Clock
	Owner         actor.Sink // the owning layer's mailbox

	DataSources DataSourceManager // optional: nil for a context that never renders via data sources
}

// DataSourceManager is the subset of internal/datasource.Manager that
// exec needs to know about, kept as an interface here to avoid
// internal/datasource importing this package and this package
// importing it back.
type DataSourceManager interface {
	Open(ctx *Context, sourceID string, params map[string]any) (*future.Future, error)
	Render(ctx *Context, sourceID string, params map[string]any, state any) (*future.Future, error)
}

// Context is the per-selection execution context passed to
// plugin.Start/Stop/Receive and data-source Open/Render (spec.md
// §4.7).
type Context struct {
	Services   Services
	Dimensions Dimensions
	Timestamp  time.Time // the logical "now" the track/render is for

	// SourceID is set by ForDataSource to identify which data source a
	// forked context belongs to; empty for a top-level layer context.
	SourceID string
}

// New builds a top-level execution context for a track selection.
func New(services Services, dims Dimensions, timestamp time.Time) *Context {
	return &Context{Services: services, Dimensions: dims, Timestamp: timestamp}
}

// ForDataSource forks a child execution context for a specific data
// source, preserving dimensions and timestamp (spec.md §4.7
// "create_datasource_context(source)").
func (c *Context) ForDataSource(sourceID string) *Context {
	return &Context{
		Services:   c.Services,
		Dimensions: c.Dimensions,
		Timestamp:  c.Timestamp,
		SourceID:   sourceID,
	}
}
