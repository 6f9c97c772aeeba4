// Package playlist implements the playlist layer state machine of
// spec.md §4.8: uninitialized -> loaded -> playing -> stopped|error,
// driving a current playlist/track forward off the master schedule.
// It is built as an internal/actor.Mailbox actor with a typed
// dispatcher, the same construction the teacher reserves for every
// long-lived serial worker, generalized here from the teacher's single
// flat conversation loop into a layered configure/start/advance state
// machine.
package playlist

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/orrery-labs/inkframe/internal/actor"
	"github.com/orrery-labs/inkframe/internal/clock"
	"github.com/orrery-labs/inkframe/internal/confstore"
	"github.com/orrery-labs/inkframe/internal/coreerr"
	"github.com/orrery-labs/inkframe/internal/datasource"
	"github.com/orrery-labs/inkframe/internal/display"
	"github.com/orrery-labs/inkframe/internal/exec"
	"github.com/orrery-labs/inkframe/internal/future"
	"github.com/orrery-labs/inkframe/internal/plugin"
	"github.com/orrery-labs/inkframe/internal/schedule"
	"github.com/orrery-labs/inkframe/internal/telemetry"
	"github.com/orrery-labs/inkframe/internal/timer"
)

// State is one of the playlist layer's state-machine states (spec.md
// §4.8).
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoaded        State = "loaded"
	StatePlaying        State = "playing"
	StateStopped        State = "stopped"
	StateError          State = "error"
)

// Configure loads schedules and transitions uninitialized -> loaded
// (or -> error).
type Configure struct{ Timestamp time.Time }

// ConfigureNotify is sent to the owning application on completion of
// Configure.
type ConfigureNotify struct{ Err error }

// StartPlayback evaluates the master schedule at Timestamp and starts
// the first track of the resolved playlist.
type StartPlayback struct{ Timestamp time.Time }

// NextTrack advances to the following track, or the next playlist if
// the current one is exhausted.
type NextTrack struct{ Timestamp time.Time }

// FutureCompleted forwards a future submitter's resolved value to the
// current plugin, provided it was issued for TrackID.
type FutureCompleted struct {
	TrackID string
	Msg     any
}

// PluginReceive forwards an arbitrary message to the current plugin,
// provided it currently runs PluginName.
type PluginReceive struct {
	PluginName string
	Msg        any
}

// DisplaySettings updates the target render dimensions without
// restarting any track in flight. It is an alias of display.Settings
// (rather than its own struct) so the application supervisor can fan
// one message out to both the playlist and timer layers on the
// "display-settings" route without either layer's dispatcher failing
// the type match.
type DisplaySettings = display.Settings

// Layer is the playlist layer actor.
type Layer struct {
	mailbox   *actor.Mailbox
	confmgr   *confstore.Manager
	router    *actor.Router
	dsManager *datasource.Manager
	appSink   actor.Sink
	clk       clock.Clock
	logger    *slog.Logger

	state State
	dims  exec.Dimensions

	master    schedule.MasterSchedule
	playlists map[string]schedule.Playlist

	currentPlaylist string
	currentIndex    int
	currentPlugin   plugin.Plugin
	currentTrack    schedule.PlaylistSchedule

	timers  *timer.Service
	futures *future.Submitter
}

// New builds a playlist layer named name. appSink receives
// ConfigureNotify; dsManager is the data-source manager this layer's
// plugins may call into (may be nil if no data sources are
// configured).
func New(name string, confmgr *confstore.Manager, router *actor.Router, dsManager *datasource.Manager, appSink actor.Sink, clk clock.Clock, logger *slog.Logger) *Layer {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	l := &Layer{
		confmgr:   confmgr,
		router:    router,
		dsManager: dsManager,
		appSink:   appSink,
		clk:       clk,
		logger:    logger,
		state:     StateUninitialized,
	}

	d := actor.NewDispatcher()
	d.Handle(Configure{}, l.handleConfigure)
	d.Handle(StartPlayback{}, l.handleStartPlayback)
	d.Handle(NextTrack{}, l.handleNextTrack)
	d.Handle(FutureCompleted{}, l.handleFutureCompleted)
	d.Handle(PluginReceive{}, l.handlePluginReceive)
	d.Handle(DisplaySettings{}, l.handleDisplaySettings)
	l.mailbox = actor.New(name, d, logger, l.onQuit)
	return l
}

// Accept enqueues msg for serial processing (spec.md §4.1).
func (l *Layer) Accept(msg any) error { return l.mailbox.Accept(msg) }

// Done is closed once Quit has fully drained.
func (l *Layer) Done() <-chan struct{} { return l.mailbox.Done() }

// State returns the layer's current state. Only safe to call from
// outside the actor for tests and diagnostics; it reads without
// synchronization because actor fields are otherwise only touched on
// the mailbox's single worker goroutine.
func (l *Layer) State() State { return l.state }

func (l *Layer) handleConfigure(ctx context.Context, msg any) error {
	cfg := msg.(Configure)
	err := l.load()
	if err != nil {
		l.state = StateError
	} else {
		l.state = StateLoaded
	}
	l.emitTelemetry(cfg.Timestamp, errMessage(err))
	if l.appSink != nil {
		_ = l.appSink.Accept(ConfigureNotify{Err: err})
	}
	if err == nil {
		return l.mailbox.Accept(StartPlayback{Timestamp: cfg.Timestamp})
	}
	return nil
}

// load reads the master schedule and every playlist it (transitively)
// names via the configuration manager, and validates both (spec.md §3
// invariants).
func (l *Layer) load() error {
	masterContent, _, err := l.confmgr.MasterSchedule().Get()
	if err != nil {
		return fmt.Errorf("playlist layer: load master schedule: %w", err)
	}
	var master schedule.MasterSchedule
	if err := confstore.Decode(masterContent, &master); err != nil {
		return fmt.Errorf("playlist layer: decode master schedule: %w", err)
	}

	names := map[string]bool{master.DefaultSchedule: true}
	for _, e := range master.Schedules {
		names[e.Schedule] = true
	}

	playlists := make(map[string]schedule.Playlist, len(names))
	known := make(map[string]bool, len(names))
	for name := range names {
		content, _, err := l.confmgr.Schedule(name).Get()
		if err != nil {
			continue // unresolvable playlist caught by master.Validate below
		}
		var pl schedule.Playlist
		if err := confstore.Decode(content, &pl); err != nil {
			return fmt.Errorf("playlist layer: decode playlist %q: %w", name, err)
		}
		if err := pl.Validate(); err != nil {
			return fmt.Errorf("playlist layer: playlist %q: %w", name, err)
		}
		playlists[name] = pl
		known[name] = true
	}

	if err := master.Validate(known); err != nil {
		return fmt.Errorf("%w: %v", coreerr.InvalidInput, err)
	}

	l.master = master
	l.playlists = playlists
	if l.timers == nil {
		l.timers = timer.New(l.clk, l.logger)
	}
	if l.futures == nil {
		l.futures = future.New(l, l.logger)
	}
	return nil
}

func (l *Layer) handleStartPlayback(ctx context.Context, msg any) error {
	sp := msg.(StartPlayback)
	name := l.master.Evaluate(sp.Timestamp)
	pl, ok := l.playlists[name]
	if !ok || len(pl.Items) == 0 {
		l.emitTelemetry(sp.Timestamp, fmt.Sprintf("playlist %q has no items", name))
		return nil
	}
	l.currentPlaylist = name
	l.currentIndex = 0
	return l.startCurrentTrack(sp.Timestamp)
}

// startCurrentTrack resolves and starts the plugin for
// playlists[currentPlaylist][currentIndex].
func (l *Layer) startCurrentTrack(ts time.Time) error {
	pl := l.playlists[l.currentPlaylist]
	track, ok := pl.At(l.currentIndex)
	if !ok {
		l.emitTelemetry(ts, "current track index out of range")
		return nil
	}

	p, err := plugin.New(track.PluginName)
	if err != nil {
		// A missing plugin for a track is non-fatal: log and stay put.
		l.emitTelemetry(ts, fmt.Sprintf("no such plugin %q for track %q: %v", track.PluginName, track.ID, err))
		return nil
	}

	execCtx := l.execContext(ts)
	if err := callSafely(func() error { return p.Start(execCtx, track) }); err != nil {
		l.state = StateError
		l.emitTelemetry(ts, fmt.Sprintf("plugin %q start failed: %v", track.PluginName, err))
		return nil
	}

	l.currentPlugin = p
	l.currentTrack = track
	l.state = StatePlaying
	l.emitTelemetry(ts, "")
	return nil
}

func (l *Layer) handleNextTrack(ctx context.Context, msg any) error {
	nt := msg.(NextTrack)
	l.stopCurrent(nt.Timestamp)

	l.currentIndex++
	if pl, ok := l.playlists[l.currentPlaylist]; ok {
		if _, ok := pl.At(l.currentIndex); ok {
			return l.startCurrentTrack(nt.Timestamp)
		}
	}

	// Past the last item: re-evaluate the master schedule.
	name := l.master.Evaluate(nt.Timestamp)
	pl, ok := l.playlists[name]
	if !ok || len(pl.Items) == 0 {
		l.emitTelemetry(nt.Timestamp, fmt.Sprintf("playlist %q has no items", name))
		return nil
	}
	l.currentPlaylist = name
	l.currentIndex = 0
	return l.startCurrentTrack(nt.Timestamp)
}

func (l *Layer) stopCurrent(ts time.Time) {
	if l.currentPlugin == nil {
		return
	}
	execCtx := l.execContext(ts)
	if err := callSafely(func() error { return l.currentPlugin.Stop(execCtx, l.currentTrack) }); err != nil {
		l.state = StateError
		l.emitTelemetry(ts, fmt.Sprintf("plugin stop failed: %v", err))
	}
	l.currentPlugin = nil
}

func (l *Layer) handleFutureCompleted(ctx context.Context, msg any) error {
	fc := msg.(FutureCompleted)
	if l.state != StatePlaying || l.currentPlugin == nil || l.currentTrack.ID != fc.TrackID {
		return nil
	}
	return l.deliverToPlugin(fc.Msg)
}

func (l *Layer) handlePluginReceive(ctx context.Context, msg any) error {
	pr := msg.(PluginReceive)
	if l.state != StatePlaying || l.currentPlugin == nil || l.currentTrack.PluginName != pr.PluginName {
		return nil
	}
	return l.deliverToPlugin(pr.Msg)
}

func (l *Layer) deliverToPlugin(payload any) error {
	now := l.clk.Now()
	execCtx := l.execContext(now)
	if err := callSafely(func() error { return l.currentPlugin.Receive(execCtx, l.currentTrack, payload) }); err != nil {
		l.state = StateError
		l.emitTelemetry(now, fmt.Sprintf("plugin receive failed: %v", err))
	}
	return nil
}

func (l *Layer) handleDisplaySettings(ctx context.Context, msg any) error {
	ds := msg.(DisplaySettings)
	l.dims = exec.Dimensions{Width: ds.Width, Height: ds.Height}
	return nil
}

// onQuit runs on the mailbox's worker when a Quit message is dequeued
// (spec.md §4.8 "Quit": best-effort stop, shut down sub-services,
// enter stopped).
func (l *Layer) onQuit() {
	now := l.clk.Now()
	l.stopCurrent(now)
	if l.timers != nil {
		l.timers.Shutdown()
	}
	if l.futures != nil {
		l.futures.Shutdown()
	}
	if l.dsManager != nil {
		l.dsManager.Shutdown()
	}
	l.state = StateStopped
	l.emitTelemetry(now, "")
}

func (l *Layer) execContext(ts time.Time) *exec.Context {
	var dsm exec.DataSourceManager
	if l.dsManager != nil {
		dsm = l.dsManager
	}
	return exec.New(exec.Services{
		ConfigManager: l.confmgr,
		Router:        l.router,
		Timers:        l.timers,
		Futures:       l.futures,
		Clock:         l.clk,
		Owner:         l,
		DataSources:   dsm,
	}, l.dims, ts)
}

func (l *Layer) emitTelemetry(ts time.Time, message string) {
	if l.router == nil {
		return
	}
	l.router.Send("telemetry", telemetry.Frame{
		Timestamp: ts,
		Layer:     "playlist",
		State:     string(l.state),
		TrackID:   l.currentTrack.ID,
		Message:   message,
	})
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// callSafely runs fn, converting any panic into a coreerr.Internal
// error so a misbehaving plugin can never take down the layer's
// worker goroutine (on top of internal/actor.Mailbox's own
// handler-level recover, which would otherwise swallow this as a bare
// log line instead of an error-state transition with telemetry).
func callSafely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", coreerr.Internal, r)
		}
	}()
	return fn()
}
