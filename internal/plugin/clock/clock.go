// Package clock is the trivial stdlib-only plugin: it draws the
// execution context's timestamp as a single line of text. It serves
// as the "happy path" plugin for scenario tests exercising the
// playlist/timer layers without pulling in a real data source or
// third-party renderer.
package clock

import (
	"image/color"

	"github.com/orrery-labs/inkframe/internal/exec"
	"github.com/orrery-labs/inkframe/internal/plugin"
	"github.com/orrery-labs/inkframe/internal/plugin/render"
)

// ID is the registered plugin identifier.
const ID = "clock"

func init() {
	plugin.Register(ID, func() plugin.Plugin { return &Plugin{} })
}

// defaultFormat is time.TimeOnly's 24-hour layout; a track's content may override
// it with a "format" key using Go reference-time layout syntax.
const defaultFormat = "15:04:05"

// Plugin draws ctx.Timestamp using the track's "format" layout, or
// defaultFormat if absent. It has no state to speak of: every Start
// and Receive just redraws at the context's current timestamp.
type Plugin struct {
	format string
}

func (p *Plugin) Start(ctx *exec.Context, track any) error {
	p.format = defaultFormat
	if _, content, ok := plugin.TrackInfo(track); ok {
		if f, ok := content["format"].(string); ok && f != "" {
			p.format = f
		}
	}
	return p.render(ctx)
}

func (p *Plugin) Stop(ctx *exec.Context, track any) error {
	return nil
}

// Receive redraws on every message — a timer layer's FutureCompleted
// or PluginReceive ticks are the clock's cue to refresh.
func (p *Plugin) Receive(ctx *exec.Context, track any, msg any) error {
	return p.render(ctx)
}

func (p *Plugin) render(ctx *exec.Context) error {
	line := ctx.Timestamp.Format(p.format)
	img := render.Text(ctx.Dimensions.Width, ctx.Dimensions.Height, color.White, color.Black, []string{line})
	return plugin.PublishFrame(ctx, ID, img)
}
