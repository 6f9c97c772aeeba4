package clock

import (
	"log/slog"
	"testing"
	"time"

	"github.com/orrery-labs/inkframe/internal/actor"
	"github.com/orrery-labs/inkframe/internal/display"
	"github.com/orrery-labs/inkframe/internal/exec"
	"github.com/orrery-labs/inkframe/internal/schedule"
)

type capturingSink struct {
	frames []display.Frame
}

func (c *capturingSink) Accept(msg any) error {
	if f, ok := msg.(display.Frame); ok {
		c.frames = append(c.frames, f)
	}
	return nil
}

func testContext(ts time.Time) (*exec.Context, *capturingSink) {
	router := actor.NewRouter(slog.Default())
	sink := &capturingSink{}
	router.AddRoute("display", sink)
	ctx := exec.New(exec.Services{Router: router}, exec.Dimensions{Width: 100, Height: 40}, ts)
	return ctx, sink
}

func TestPlugin_Start_UsesDefaultFormat(t *testing.T) {
	ts := time.Date(2026, 7, 30, 9, 5, 3, 0, time.UTC)
	ctx, sink := testContext(ts)
	p := &Plugin{}
	track := schedule.PluginSchedule{PluginName: ID, ID: "t1"}

	if err := p.Start(ctx, track); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(sink.frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(sink.frames))
	}
	if p.format != defaultFormat {
		t.Fatalf("expected default format, got %q", p.format)
	}
}

func TestPlugin_Start_HonorsContentFormat(t *testing.T) {
	ctx, _ := testContext(time.Now())
	p := &Plugin{}
	track := schedule.PluginSchedule{PluginName: ID, ID: "t1", Content: map[string]any{"format": "15:04"}}
	if err := p.Start(ctx, track); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.format != "15:04" {
		t.Fatalf("expected overridden format, got %q", p.format)
	}
}

func TestPlugin_Receive_RedrawsOnEveryMessage(t *testing.T) {
	ctx, sink := testContext(time.Now())
	p := &Plugin{}
	track := schedule.PluginSchedule{PluginName: ID, ID: "t1"}
	if err := p.Start(ctx, track); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := p.Receive(ctx, track, struct{}{}); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if len(sink.frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(sink.frames))
	}
}
