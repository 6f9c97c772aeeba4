// Package timerlayer implements the timer layer state machine of
// spec.md §4.9: uninitialized -> loaded -> {waiting, playing} ->
// stopped|error, driving trigger-fired TimerTaskItems rather than the
// playlist layer's master-schedule-selected tracks. It shares the
// internal/playlist layer's actor.Mailbox/dispatcher construction and
// failure-handling shape (both are grounded on the same
// internal/actor.Mailbox pattern), generalized here from "advance
// through an ordered Playlist" to "wait for the next trigger, then
// play the set of tasks that fire together".
package timerlayer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
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

// State is one of the timer layer's state-machine states (spec.md
// §4.9).
type State string

const (
	StateUninitialized State = "uninitialized"
	StateLoaded        State = "loaded"
	StateWaiting        State = "waiting"
	StatePlaying        State = "playing"
	StateStopped        State = "stopped"
	StateError          State = "error"
)

// Configure loads the timer task document and transitions
// uninitialized -> loaded (or -> error).
type Configure struct{ Timestamp time.Time }

// ConfigureNotify is sent to the owning application on completion of
// Configure.
type ConfigureNotify struct{ Err error }

// StartPlayback builds the startup set (if any) or arms a timer for
// the next scheduled set.
type StartPlayback struct{ Timestamp time.Time }

// TimerExpired fires when an armed timer reaches its target.
type TimerExpired struct{ Target time.Time }

// NextTrack advances within the current set, or recomputes the next
// scheduled set once the current one is exhausted.
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
// restarting any track in flight. It is an alias of display.Settings,
// matching internal/playlist.DisplaySettings, so the application
// supervisor can fan one message out to both layers on the
// "display-settings" route.
type DisplaySettings = display.Settings

// Layer is the timer layer actor.
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

	tasks []schedule.TimerTaskItem // enabled tasks, declaration order

	currentSet    []schedule.TimerTaskItem
	currentIndex  int
	currentPlugin plugin.Plugin
	currentTrack  schedule.TimerTaskItem

	armedTarget time.Time
	cancelArmed func()

	timers  *timer.Service
	futures *future.Submitter
}

// New builds a timer layer named name. appSink receives ConfigureNotify;
// dsManager is the data-source manager this layer's plugins may call
// into (may be nil if no data sources are configured).
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
	d.Handle(TimerExpired{}, l.handleTimerExpired)
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
// outside the actor for tests and diagnostics, matching
// internal/playlist.Layer.State's caveat.
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

// load reads the timer task document, validates it, and captures its
// enabled items in declaration order (spec.md §4.9 "capture enabled
// tasks").
func (l *Layer) load() error {
	content, _, err := l.confmgr.Schedule("timer_tasks").Get()
	if err != nil {
		return fmt.Errorf("timer layer: load timer tasks: %w", err)
	}
	var tasks schedule.TimerTasks
	if err := confstore.Decode(content, &tasks); err != nil {
		return fmt.Errorf("timer layer: decode timer tasks: %w", err)
	}
	if err := tasks.Validate(); err != nil {
		return fmt.Errorf("%w: %v", coreerr.InvalidInput, err)
	}

	l.tasks = tasks.EnabledItems()
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
	var startup []schedule.TimerTaskItem
	for _, t := range l.tasks {
		if t.Trigger.OnStartup {
			startup = append(startup, t)
		}
	}
	if len(startup) > 0 {
		l.currentSet = startup
		l.currentIndex = 0
		return l.startCurrentTrack(sp.Timestamp)
	}
	return l.armNextScheduledSet(sp.Timestamp)
}

// armNextScheduledSet computes the set of enabled tasks whose earliest
// upcoming fire time is the global minimum (spec.md §4.9
// "Fairness & tie-breaks": ties broken by declaration order, a trigger
// with no next fire time silently excluded), then either starts
// immediately (target == now) or arms a timer for (target - now).
func (l *Layer) armNextScheduledSet(now time.Time) error {
	type candidate struct {
		task time.Time
		item schedule.TimerTaskItem
	}
	var candidates []candidate
	for _, t := range l.tasks {
		next, ok := schedule.NextFire(now, t.Trigger)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{task: next, item: t})
	}
	if len(candidates) == 0 {
		l.currentSet = nil
		l.state = StateWaiting
		l.emitTelemetry(now, "no satisfiable triggers")
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].task.Before(candidates[j].task) })
	target := candidates[0].task

	var set []schedule.TimerTaskItem
	for _, c := range candidates {
		if c.task.Equal(target) {
			set = append(set, c.item)
		}
	}

	l.currentSet = set
	l.currentIndex = 0

	if !target.After(now) {
		return l.startCurrentTrack(now)
	}

	l.armedTarget = target
	fut, cancel := l.timers.CreateTimer(target.Sub(now), l, TimerExpired{Target: target})
	l.cancelArmed = cancel
	_ = fut
	l.state = StateWaiting
	l.emitTelemetry(now, "")
	return nil
}

func (l *Layer) handleTimerExpired(ctx context.Context, msg any) error {
	te := msg.(TimerExpired)
	if l.state != StateWaiting || !te.Target.Equal(l.armedTarget) {
		return nil
	}
	l.cancelArmed = nil
	return l.startCurrentTrack(te.Target)
}

// startCurrentTrack resolves and starts the plugin for
// currentSet[currentIndex].
func (l *Layer) startCurrentTrack(ts time.Time) error {
	if l.currentIndex < 0 || l.currentIndex >= len(l.currentSet) {
		l.emitTelemetry(ts, "current track index out of range")
		return nil
	}
	track := l.currentSet[l.currentIndex]

	p, err := plugin.New(track.Task.PluginName)
	if err != nil {
		// A missing plugin for a track is non-fatal: log and stay put.
		l.emitTelemetry(ts, fmt.Sprintf("no such plugin %q for task %q: %v", track.Task.PluginName, track.ID, err))
		return nil
	}

	execCtx := l.execContext(ts)
	if err := callSafely(func() error { return p.Start(execCtx, track) }); err != nil {
		l.state = StateError
		l.emitTelemetry(ts, fmt.Sprintf("plugin %q start failed: %v", track.Task.PluginName, err))
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
	if l.currentIndex < len(l.currentSet) {
		return l.startCurrentTrack(nt.Timestamp)
	}

	// Past the last item: recompute the next scheduled set.
	return l.armNextScheduledSet(nt.Timestamp)
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
	if l.state != StatePlaying || l.currentPlugin == nil || l.currentTrack.Task.PluginName != pr.PluginName {
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
// (spec.md §4.9 "Quit": stop plugin, cancel timer, shut down
// sub-services).
func (l *Layer) onQuit() {
	now := l.clk.Now()
	l.stopCurrent(now)
	if l.cancelArmed != nil {
		l.cancelArmed()
		l.cancelArmed = nil
	}
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
		Layer:     "timer",
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
// error, mirroring internal/playlist.callSafely.
func callSafely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", coreerr.Internal, r)
		}
	}()
	return fn()
}
