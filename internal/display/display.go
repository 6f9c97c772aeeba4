// Package display defines the display backend boundary of spec.md §6
// and a frame message plugins publish through the router's "display"
// route, plus one concrete SimulatorDisplay adapter that writes PNGs
// to a directory — enough to drive the core end to end without real
// e-ink hardware, per SPEC_FULL.md §6.
package display

import (
	"context"
	"image"
)

// Settings describes the attached display's identity and target
// render surface, returned by Configure and mirrored into
// DisplaySettings messages sent to the playlist/timer layers (spec.md
// §4.10 step 4).
type Settings struct {
	Name   string
	Width  int
	Height int
}

// Display is the display backend boundary (spec.md §6): Configure
// negotiates the active surface once at startup, Show renders one
// frame.
type Display interface {
	Configure(ctx context.Context) (Settings, error)
	Show(ctx context.Context, img image.Image) error
}

// Frame is the message a plugin sends to the "display" route (spec.md
// §4.10 step 2) to have img shown. Source identifies the emitting
// plugin/track for telemetry and log correlation.
type Frame struct {
	Source string
	Image  image.Image
}
