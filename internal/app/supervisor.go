// Package app implements the application supervisor of spec.md §4.10:
// the sequencer that builds the configuration manager, router, display,
// and both layers, wires them together, and drives an orderly
// Start/Stop/Quit lifecycle. It is grounded on the teacher's
// cmd/thane/main.go runServe — config load, logger, service
// construction, then a signal-aware shutdown — generalized from one
// flat main-function sequence into a reusable Supervisor type cmd/inkyd
// can start and stop.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/orrery-labs/inkframe/internal/actor"
	"github.com/orrery-labs/inkframe/internal/clock"
	"github.com/orrery-labs/inkframe/internal/config"
	"github.com/orrery-labs/inkframe/internal/confstore"
	"github.com/orrery-labs/inkframe/internal/datasource"
	"github.com/orrery-labs/inkframe/internal/display"
	"github.com/orrery-labs/inkframe/internal/playlist"
	"github.com/orrery-labs/inkframe/internal/telemetry"
	"github.com/orrery-labs/inkframe/internal/timerlayer"
)

// Supervisor owns the lifetime of one running instance: configuration
// manager, router, display, data-source manager, and the playlist and
// timer layers (spec.md §4.10).
type Supervisor struct {
	logger *slog.Logger
	cfg    *config.Config
	clk    clock.Clock

	ConfigManager  *confstore.Manager
	Router         *actor.Router
	Display        display.Display
	DataSources    *datasource.Manager
	TelemetryStore *telemetry.Store // nil unless cfg.Telemetry.StoreEnabled

	Playlist *playlist.Layer
	Timer    *timerlayer.Layer

	mu        sync.Mutex
	notifyErr []error
}

// New builds a Supervisor from cfg, wiring every component spec.md
// §4.10 step 1-3 describes, but does not yet Configure anything — call
// Start for that.
func New(cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*Supervisor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.Real{}
	}

	if err := os.MkdirAll(cfg.StoragePath, 0o755); err != nil {
		return nil, fmt.Errorf("ensure storage path: %w", err)
	}
	confmgr := confstore.NewManager(cfg.StoragePath, "", logger)
	if cfg.HardReset {
		if err := confmgr.HardReset(nil, nil); err != nil {
			return nil, fmt.Errorf("hard reset: %w", err)
		}
	}

	router := actor.NewRouter(logger)

	disp := display.NewSimulatorDisplay(cfg.Display.OutputDir, "inkyd", cfg.Display.Width, cfg.Display.Height)
	router.AddRoute("display", &display.Sink{Display: disp})

	dsManager := datasource.NewManager(4, clk, logger)

	s := &Supervisor{
		logger:        logger,
		cfg:           cfg,
		clk:           clk,
		ConfigManager: confmgr,
		Router:        router,
		Display:       disp,
		DataSources:   dsManager,
	}

	s.Playlist = playlist.New("playlist-layer", confmgr, router, dsManager, s, clk, logger)
	s.Timer = timerlayer.New("timer-layer", confmgr, router, dsManager, s, clk, logger)
	router.AddRoute("playlist-layer", s.Playlist)
	router.AddRoute("timer-layer", s.Timer)
	router.AddRoute("display-settings", s.Playlist)
	router.AddRoute("display-settings", s.Timer)

	if cfg.Telemetry.StoreEnabled {
		store, err := telemetry.OpenStore(cfg.Telemetry.StorePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open telemetry store: %w", err)
		}
		router.AddRoute("telemetry", store)
		s.TelemetryStore = store
	}

	return s, nil
}

// Accept implements actor.Sink: the supervisor is the appSink both
// layers report ConfigureNotify to (spec.md §4.10 step 6 "log/forward
// errors to the telemetry sink").
func (s *Supervisor) Accept(msg any) error {
	var err error
	switch m := msg.(type) {
	case playlist.ConfigureNotify:
		err = m.Err
	case timerlayer.ConfigureNotify:
		err = m.Err
	default:
		return nil
	}
	if err != nil {
		s.logger.Error("layer configure failed", "error", err)
		s.mu.Lock()
		s.notifyErr = append(s.notifyErr, err)
		s.mu.Unlock()
		s.Router.Send("telemetry", telemetry.Frame{
			Timestamp: s.clk.Now(),
			Layer:     "app",
			State:     "error",
			Message:   err.Error(),
		})
	}
	return nil
}

// Start configures the display and both layers (spec.md §4.10 steps
// 4-5). Returns once Configure has been dispatched to both layers;
// layer transitions continue asynchronously and are observable via the
// "telemetry" route.
func (s *Supervisor) Start(ctx context.Context) error {
	settings, err := s.Display.Configure(ctx)
	if err != nil {
		return fmt.Errorf("configure display: %w", err)
	}
	s.logger.Info("display configured", "name", settings.Name, "width", settings.Width, "height", settings.Height)

	s.Router.Send("display-settings", settings)

	ts := s.clk.Now()
	if err := s.Playlist.Accept(playlist.Configure{Timestamp: ts}); err != nil {
		return fmt.Errorf("configure playlist layer: %w", err)
	}
	if err := s.Timer.Accept(timerlayer.Configure{Timestamp: ts}); err != nil {
		return fmt.Errorf("configure timer layer: %w", err)
	}
	return nil
}

// Stop drives an orderly shutdown of the two layers: timer layer, then
// playlist layer. It blocks until both layers report Done or timeout
// elapses. The display is not shut down by Stop.
func (s *Supervisor) Stop(timeout time.Duration) {
	deadline := time.Now().Add(timeout)

	_ = s.Timer.Accept(actor.Quit{})
	waitDone(s.Timer.Done(), deadline)

	_ = s.Playlist.Accept(actor.Quit{})
	waitDone(s.Playlist.Done(), deadline)
}

func waitDone(done <-chan struct{}, deadline time.Time) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return
	}
	select {
	case <-done:
	case <-time.After(remaining):
	}
}

// StorageRoot returns the configured storage path, ensuring callers
// needing a sibling path (e.g. the HTTP API's static schema files)
// don't reach into cfg directly.
func (s *Supervisor) StorageRoot() string { return s.cfg.StoragePath }

// BasePath mirrors StorageRoot for the source-root half of
// StartOptions (spec.md §6 "basePath defaults to the source root").
func (s *Supervisor) BasePath() string { return s.cfg.BasePath }

// SchemaPath returns the path to a static JSON schema file under the
// base path (spec.md §6 "/schemas/{...}" GET).
func (s *Supervisor) SchemaPath(name string) string {
	return filepath.Join(s.cfg.BasePath, "schemas", name+".json")
}

// Clock returns the time source this supervisor was built with, so
// boundary code (the HTTP API's /schedule/render default window) goes
// through the same injected clock as the rest of the core instead of
// calling time.Now directly.
func (s *Supervisor) Clock() clock.Clock { return s.clk }
