// Package plugin implements the plugin runtime of spec.md §4.7: a
// start/stop/receive lifecycle, dispatched through a package-level
// Registry built at init time. This directly replaces the source's
// dynamic class lookup (spec.md §9 "Reflection-based handler
// registration -> explicit table") with the same compile-time
// map[string]Constructor the teacher's internal/tools.Registry builds
// via registerBuiltins, generalized from "one shared registry
// instance" to "one Register call per plugin package's init()" since
// plugin ids are static and known at compile time, unlike the
// teacher's per-conversation tool filtering.
package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/orrery-labs/inkframe/internal/coreerr"
	"github.com/orrery-labs/inkframe/internal/exec"
)

// Plugin is a stateful display-track handler (spec.md §4.7). track is
// one of schedule.PlaylistSchedule, schedule.PluginSchedule, or
// schedule.TimerTaskItem; a Plugin instance is owned by the enclosing
// layer for the lifetime of one track and must never share mutable
// state across tracks.
type Plugin interface {
	Start(ctx *exec.Context, track any) error
	Stop(ctx *exec.Context, track any) error
	Receive(ctx *exec.Context, track any, msg any) error
}

// Constructor returns a fresh, unstarted Plugin instance.
type Constructor func() Plugin

var (
	mu       sync.RWMutex
	registry = make(map[string]Constructor)
)

// Register adds a plugin constructor under id. Call from an init()
// function in the plugin's package, mirroring
// internal/tools.Registry.registerBuiltins's construction-time
// table-building. Panics on a duplicate id — that is a programming
// error caught at process startup, not a runtime condition.
func Register(id string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[id]; exists {
		panic(fmt.Sprintf("plugin: duplicate registration for id %q", id))
	}
	registry[id] = ctor
}

// New constructs a fresh Plugin instance for id.
func New(id string) (Plugin, error) {
	mu.RLock()
	ctor, ok := registry[id]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: plugin %q", coreerr.Unavailable, id)
	}
	return ctor(), nil
}

// IDs returns every registered plugin id, sorted.
func IDs() []string {
	mu.RLock()
	defer mu.RUnlock()
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
