package display

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync/atomic"
)

// SimulatorDisplay drives the core end to end without real e-ink
// hardware: Show writes each frame as a numbered PNG file under dir,
// mirroring the teacher's plain os.MkdirAll/os.WriteFile persistence
// style (internal/confstore/fsdoc.go) instead of a database or
// in-memory store.
type SimulatorDisplay struct {
	dir     string
	name    string
	width   int
	height  int
	counter atomic.Uint64
}

// NewSimulatorDisplay returns a SimulatorDisplay that writes frames
// under dir, advertising a surface of width x height under name.
func NewSimulatorDisplay(dir, name string, width, height int) *SimulatorDisplay {
	return &SimulatorDisplay{dir: dir, name: name, width: width, height: height}
}

// Configure ensures dir exists and reports the configured surface.
func (d *SimulatorDisplay) Configure(ctx context.Context) (Settings, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return Settings{}, fmt.Errorf("display: create simulator dir: %w", err)
	}
	return Settings{Name: d.name, Width: d.width, Height: d.height}, nil
}

// Show writes img as the next sequentially numbered frame PNG and
// additionally overwrites latest.png, so a viewer can always tail one
// fixed path.
func (d *SimulatorDisplay) Show(ctx context.Context, img image.Image) error {
	n := d.counter.Add(1)
	framePath := filepath.Join(d.dir, fmt.Sprintf("frame-%06d.png", n))
	if err := writePNG(framePath, img); err != nil {
		return err
	}
	return writePNG(filepath.Join(d.dir, "latest.png"), img)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("display: create frame file: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("display: encode frame: %w", err)
	}
	return nil
}

// Sink adapts a Display into an actor.Sink, so it can be registered
// directly against the router's "display" route (spec.md §4.10 step
// 2): Accept unwraps a Frame and calls Show.
type Sink struct {
	Display Display
}

func (s *Sink) Accept(msg any) error {
	frame, ok := msg.(Frame)
	if !ok {
		return fmt.Errorf("display sink: unexpected message type %T", msg)
	}
	return s.Display.Show(context.Background(), frame.Image)
}
