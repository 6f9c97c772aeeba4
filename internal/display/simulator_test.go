package display

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestSimulatorDisplay_Configure_CreatesDirAndReportsSettings(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	d := NewSimulatorDisplay(dir, "sim", 800, 480)

	settings, err := d.Configure(context.Background())
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if settings != (Settings{Name: "sim", Width: 800, Height: 480}) {
		t.Fatalf("got %+v", settings)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected dir to exist: %v", err)
	}
}

func TestSimulatorDisplay_Show_WritesNumberedFramesAndLatest(t *testing.T) {
	dir := t.TempDir()
	d := NewSimulatorDisplay(dir, "sim", 4, 4)
	if _, err := d.Configure(context.Background()); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	img1 := solidImage(4, 4, color.White)
	img2 := solidImage(4, 4, color.Black)

	if err := d.Show(context.Background(), img1); err != nil {
		t.Fatalf("Show 1: %v", err)
	}
	if err := d.Show(context.Background(), img2); err != nil {
		t.Fatalf("Show 2: %v", err)
	}

	for _, name := range []string{"frame-000001.png", "frame-000002.png", "latest.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to exist: %v", name, err)
		}
	}

	f, err := os.Open(filepath.Join(dir, "latest.png"))
	if err != nil {
		t.Fatalf("open latest.png: %v", err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode latest.png: %v", err)
	}
	r, g, b, _ := decoded.At(0, 0).RGBA()
	if r != 0 || g != 0 || b != 0 {
		t.Fatalf("expected latest.png to reflect the most recent (black) frame, got rgb=%d,%d,%d", r, g, b)
	}
}

func TestSink_Accept_RejectsWrongMessageType(t *testing.T) {
	sink := &Sink{Display: NewSimulatorDisplay(t.TempDir(), "sim", 4, 4)}
	if err := sink.Accept("not a frame"); err == nil {
		t.Fatal("expected error for non-Frame message")
	}
}

func TestSink_Accept_ShowsFrame(t *testing.T) {
	dir := t.TempDir()
	sim := NewSimulatorDisplay(dir, "sim", 4, 4)
	if _, err := sim.Configure(context.Background()); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	sink := &Sink{Display: sim}

	if err := sink.Accept(Frame{Source: "qrcode", Image: solidImage(4, 4, color.White)}); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "latest.png")); err != nil {
		t.Fatalf("expected latest.png: %v", err)
	}
}
