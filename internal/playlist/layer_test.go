package playlist

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/orrery-labs/inkframe/internal/actor"
	"github.com/orrery-labs/inkframe/internal/clock"
	"github.com/orrery-labs/inkframe/internal/confstore"
	"github.com/orrery-labs/inkframe/internal/datasource"
	"github.com/orrery-labs/inkframe/internal/datasource/githubsource"
	"github.com/orrery-labs/inkframe/internal/display"
	"github.com/orrery-labs/inkframe/internal/exec"
	"github.com/orrery-labs/inkframe/internal/plugin"
	"github.com/orrery-labs/inkframe/internal/plugin/githubactivity"
	"github.com/orrery-labs/inkframe/internal/schedule"
)

const stubPluginID = "playlist_test.stub"

type event struct {
	kind    string // start|stop|receive
	trackID string
}

var (
	eventsMu sync.Mutex
	events   []event
	failNext bool
)

func recordEvent(kind, trackID string) {
	eventsMu.Lock()
	defer eventsMu.Unlock()
	events = append(events, event{kind: kind, trackID: trackID})
}

func resetEvents() {
	eventsMu.Lock()
	defer eventsMu.Unlock()
	events = nil
	failNext = false
}

func snapshotEvents() []event {
	eventsMu.Lock()
	defer eventsMu.Unlock()
	return append([]event(nil), events...)
}

type stubPlugin struct{}

func (stubPlugin) Start(ctx *exec.Context, track any) error {
	t := track.(schedule.PlaylistSchedule)
	eventsMu.Lock()
	fail := failNext
	eventsMu.Unlock()
	if fail {
		return fmt.Errorf("forced start failure")
	}
	recordEvent("start", t.ID)
	return nil
}

func (stubPlugin) Stop(ctx *exec.Context, track any) error {
	t := track.(schedule.PlaylistSchedule)
	recordEvent("stop", t.ID)
	return nil
}

func (stubPlugin) Receive(ctx *exec.Context, track any, msg any) error {
	t := track.(schedule.PlaylistSchedule)
	recordEvent("receive", t.ID)
	return nil
}

func init() {
	plugin.Register(stubPluginID, func() plugin.Plugin { return stubPlugin{} })
}

type capturingSink struct {
	mu   sync.Mutex
	msgs []any
}

func (c *capturingSink) Accept(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *capturingSink) last() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.msgs) == 0 {
		return nil
	}
	return c.msgs[len(c.msgs)-1]
}

func writeScheduleFile(t *testing.T, root, name string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", name, err)
	}
	path := filepath.Join(root, "schedules", name+".json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func newTestLayer(t *testing.T, master schedule.MasterSchedule, playlistsByName map[string]schedule.Playlist) (*Layer, *capturingSink, *actor.Router) {
	t.Helper()
	resetEvents()
	root := t.TempDir()
	writeScheduleFile(t, root, "master_schedule", master)
	for name, pl := range playlistsByName {
		writeScheduleFile(t, root, name, pl)
	}

	confmgr := confstore.NewManager(root, "", slog.Default())
	router := actor.NewRouter(slog.Default())
	appSink := &capturingSink{}
	layer := New("playlist-layer", confmgr, router, nil, appSink, clock.Real{}, slog.Default())
	return layer, appSink, router
}

func waitForState(t *testing.T, l *Layer, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if l.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for state %q, got %q", want, l.State())
}

func waitForEventCount(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(snapshotEvents()) >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d events, got %d: %v", n, len(snapshotEvents()), snapshotEvents())
}

func TestLayer_S3_PlaylistHappyPath(t *testing.T) {
	master := schedule.MasterSchedule{DefaultSchedule: "p1"}
	p1 := schedule.Playlist{Name: "p1", Items: []schedule.PlaylistSchedule{
		{PluginName: stubPluginID, ID: "a"},
		{PluginName: stubPluginID, ID: "b"},
		{PluginName: stubPluginID, ID: "c"},
	}}
	layer, appSink, _ := newTestLayer(t, master, map[string]schedule.Playlist{"p1": p1})

	ts := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	if err := layer.Accept(Configure{Timestamp: ts}); err != nil {
		t.Fatalf("Accept Configure: %v", err)
	}
	waitForState(t, layer, StatePlaying)
	if notify, ok := appSink.last().(ConfigureNotify); !ok || notify.Err != nil {
		t.Fatalf("expected successful ConfigureNotify, got %v", appSink.last())
	}
	waitForEventCount(t, 1)
	if layer.currentIndex != 0 || layer.currentTrack.ID != "a" {
		t.Fatalf("expected track a at index 0, got %+v idx=%d", layer.currentTrack, layer.currentIndex)
	}

	if err := layer.Accept(NextTrack{Timestamp: ts}); err != nil {
		t.Fatalf("Accept NextTrack: %v", err)
	}
	waitForEventCount(t, 3) // stop a, start b
	if layer.currentIndex != 1 || layer.currentTrack.ID != "b" {
		t.Fatalf("expected track b at index 1, got %+v idx=%d", layer.currentTrack, layer.currentIndex)
	}

	if err := layer.Accept(NextTrack{Timestamp: ts}); err != nil {
		t.Fatalf("Accept NextTrack: %v", err)
	}
	waitForEventCount(t, 5) // stop b, start c
	if layer.currentIndex != 2 || layer.currentTrack.ID != "c" {
		t.Fatalf("expected track c at index 2, got %+v idx=%d", layer.currentTrack, layer.currentIndex)
	}

	// Past the last item: re-evaluates the master schedule (still p1)
	// and restarts from index 0.
	if err := layer.Accept(NextTrack{Timestamp: ts}); err != nil {
		t.Fatalf("Accept NextTrack: %v", err)
	}
	waitForEventCount(t, 7) // stop c, start a
	if layer.currentIndex != 0 || layer.currentTrack.ID != "a" {
		t.Fatalf("expected wraparound to track a at index 0, got %+v idx=%d", layer.currentTrack, layer.currentIndex)
	}
}

func TestLayer_Configure_InvalidMasterScheduleEntersError(t *testing.T) {
	master := schedule.MasterSchedule{DefaultSchedule: "does-not-exist"}
	layer, appSink, _ := newTestLayer(t, master, nil)

	if err := layer.Accept(Configure{Timestamp: time.Now()}); err != nil {
		t.Fatalf("Accept Configure: %v", err)
	}
	waitForState(t, layer, StateError)
	notify, ok := appSink.last().(ConfigureNotify)
	if !ok || notify.Err == nil {
		t.Fatalf("expected failing ConfigureNotify, got %v", appSink.last())
	}
}

func TestLayer_StartTrack_MissingPluginIsNonFatal(t *testing.T) {
	master := schedule.MasterSchedule{DefaultSchedule: "p1"}
	p1 := schedule.Playlist{Name: "p1", Items: []schedule.PlaylistSchedule{
		{PluginName: "no-such-plugin", ID: "a"},
	}}
	layer, _, _ := newTestLayer(t, master, map[string]schedule.Playlist{"p1": p1})

	if err := layer.Accept(Configure{Timestamp: time.Now()}); err != nil {
		t.Fatalf("Accept Configure: %v", err)
	}
	waitForState(t, layer, StateLoaded)
	time.Sleep(20 * time.Millisecond)
	if layer.State() == StateError {
		t.Fatal("missing plugin for a track should not be fatal")
	}
}

func TestLayer_DisplaySettings_UpdatesDimensionsWithoutRestart(t *testing.T) {
	master := schedule.MasterSchedule{DefaultSchedule: "p1"}
	p1 := schedule.Playlist{Name: "p1", Items: []schedule.PlaylistSchedule{{PluginName: stubPluginID, ID: "a"}}}
	layer, _, _ := newTestLayer(t, master, map[string]schedule.Playlist{"p1": p1})

	if err := layer.Accept(Configure{Timestamp: time.Now()}); err != nil {
		t.Fatalf("Accept Configure: %v", err)
	}
	waitForState(t, layer, StatePlaying)
	waitForEventCount(t, 1)

	if err := layer.Accept(DisplaySettings{Width: 640, Height: 480}); err != nil {
		t.Fatalf("Accept DisplaySettings: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if len(snapshotEvents()) != 1 {
		t.Fatalf("expected no restart from DisplaySettings, got events %v", snapshotEvents())
	}
}

func TestLayer_Quit_StopsPluginAndEntersStopped(t *testing.T) {
	master := schedule.MasterSchedule{DefaultSchedule: "p1"}
	p1 := schedule.Playlist{Name: "p1", Items: []schedule.PlaylistSchedule{{PluginName: stubPluginID, ID: "a"}}}
	layer, _, _ := newTestLayer(t, master, map[string]schedule.Playlist{"p1": p1})

	if err := layer.Accept(Configure{Timestamp: time.Now()}); err != nil {
		t.Fatalf("Accept Configure: %v", err)
	}
	waitForState(t, layer, StatePlaying)
	waitForEventCount(t, 1)

	if err := layer.Accept(actor.Quit{}); err != nil {
		t.Fatalf("Accept Quit: %v", err)
	}
	select {
	case <-layer.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for layer shutdown")
	}
	waitForEventCount(t, 2) // start a, stop a
	if layer.State() != StateStopped {
		t.Fatalf("expected stopped, got %q", layer.State())
	}
}

func TestLayer_FutureCompleted_OnlyDeliveredWhenTrackMatches(t *testing.T) {
	master := schedule.MasterSchedule{DefaultSchedule: "p1"}
	p1 := schedule.Playlist{Name: "p1", Items: []schedule.PlaylistSchedule{{PluginName: stubPluginID, ID: "a"}}}
	layer, _, _ := newTestLayer(t, master, map[string]schedule.Playlist{"p1": p1})

	if err := layer.Accept(Configure{Timestamp: time.Now()}); err != nil {
		t.Fatalf("Accept Configure: %v", err)
	}
	waitForState(t, layer, StatePlaying)
	waitForEventCount(t, 1)

	if err := layer.Accept(FutureCompleted{TrackID: "wrong-track", Msg: "x"}); err != nil {
		t.Fatalf("Accept FutureCompleted: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if len(snapshotEvents()) != 1 {
		t.Fatalf("expected mismatched track id to be dropped, got %v", snapshotEvents())
	}

	if err := layer.Accept(FutureCompleted{TrackID: "a", Msg: "x"}); err != nil {
		t.Fatalf("Accept FutureCompleted: %v", err)
	}
	waitForEventCount(t, 2)
}

// TestLayer_GithubActivityPlugin_RendersViaDataSource drives the
// githubactivity plugin through a real playlist layer wired to a real
// datasource.Manager, exercising ctx.Services.DataSources.Open end to
// end (not just manager_test.go's in-isolation fakes). The registered
// source stubs out the network call githubsource.source.open would
// otherwise make, but runs through the same Manager worker pool,
// timeout race, and Result plumbing a real adapter does.
func TestLayer_GithubActivityPlugin_RendersViaDataSource(t *testing.T) {
	resetEvents()
	root := t.TempDir()
	master := schedule.MasterSchedule{DefaultSchedule: "p1"}
	p1 := schedule.Playlist{Name: "p1", Items: []schedule.PlaylistSchedule{
		{PluginName: githubactivity.ID, ID: "a"},
	}}
	writeScheduleFile(t, root, "master_schedule", master)
	writeScheduleFile(t, root, "p1", p1)

	confmgr := confstore.NewManager(root, "", slog.Default())
	router := actor.NewRouter(slog.Default())
	displaySink := &capturingSink{}
	router.AddRoute("display", displaySink)
	appSink := &capturingSink{}

	dsManager := datasource.NewManager(2, clock.Real{}, slog.Default())
	wantActivity := githubsource.Activity{
		Repo: "orrery-labs/inkframe",
		Commits: []githubsource.Commit{
			{SHA: "abc123456789", Message: "fix bounded pool race\nlonger body", Author: "ada"},
		},
	}
	if err := dsManager.Register(&datasource.Source{
		ID:     "github",
		Opener: func(ctx *exec.Context, params map[string]any) (any, error) { return wantActivity, nil },
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	layer := New("playlist-layer", confmgr, router, dsManager, appSink, clock.Real{}, slog.Default())

	if err := layer.Accept(DisplaySettings{Name: "sim", Width: 200, Height: 100}); err != nil {
		t.Fatalf("Accept DisplaySettings: %v", err)
	}
	if err := layer.Accept(Configure{Timestamp: time.Now()}); err != nil {
		t.Fatalf("Accept Configure: %v", err)
	}
	waitForState(t, layer, StatePlaying)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if displaySink.last() != nil {
			break
		}
		time.Sleep(time.Millisecond)
	}

	frame, ok := displaySink.last().(display.Frame)
	if !ok {
		t.Fatalf("expected a display.Frame, got %v", displaySink.last())
	}
	if frame.Source != githubactivity.ID {
		t.Fatalf("expected frame from %q, got %q", githubactivity.ID, frame.Source)
	}
	if frame.Image.Bounds().Dx() == 0 || frame.Image.Bounds().Dy() == 0 {
		t.Fatalf("expected non-empty rendered image, got bounds %v", frame.Image.Bounds())
	}
}
