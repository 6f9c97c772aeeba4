package plugin

import (
	"image"

	"github.com/orrery-labs/inkframe/internal/display"
	"github.com/orrery-labs/inkframe/internal/exec"
)

// displayRoute is the router topic the application supervisor binds
// the display sink to (spec.md §4.10 step 2).
const displayRoute = "display"

// PublishFrame sends img to the display route as the given source's
// rendered frame. Plugins call this from Start/Receive instead of
// holding a reference to the display backend directly, keeping them
// ignorant of which concrete Display is attached.
func PublishFrame(ctx *exec.Context, source string, img image.Image) error {
	if ctx.Services.Router == nil {
		return nil
	}
	ctx.Services.Router.Send(displayRoute, display.Frame{Source: source, Image: img})
	return nil
}
