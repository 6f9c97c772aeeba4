// Package qrcode is a sample plugin that renders a QR code for a URL
// carried in its track's content. It is grounded on the teacher's
// go.mod dependency github.com/skip2/go-qrcode, which the teacher pack
// carries but — being an AI agent repo, not a display one — never
// wires to anything; this plugin is that dependency's first real
// caller.
package qrcode

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	qr "github.com/skip2/go-qrcode"

	"github.com/orrery-labs/inkframe/internal/coreerr"
	"github.com/orrery-labs/inkframe/internal/exec"
	"github.com/orrery-labs/inkframe/internal/plugin"
)

// ID is the registered plugin identifier.
const ID = "qrcode"

func init() {
	plugin.Register(ID, func() plugin.Plugin { return &Plugin{} })
}

// Plugin renders a QR code whenever started, and re-renders whenever
// it receives an Update message while running.
type Plugin struct {
	running bool
	url     string
}

// Update changes the encoded URL on a running qrcode track (spec.md
// §4.7 "receive(ctx, track, msg)").
type Update struct {
	URL string
}

func (p *Plugin) Start(ctx *exec.Context, track any) error {
	_, content, ok := plugin.TrackInfo(track)
	if !ok {
		return fmt.Errorf("%w: qrcode: unrecognized track type %T", coreerr.InvalidInput, track)
	}
	url, _ := content["url"].(string)
	if url == "" {
		return fmt.Errorf("%w: qrcode: track content missing \"url\"", coreerr.InvalidInput)
	}
	p.url = url
	p.running = true
	return p.render(ctx)
}

func (p *Plugin) Stop(ctx *exec.Context, track any) error {
	p.running = false
	return nil
}

func (p *Plugin) Receive(ctx *exec.Context, track any, msg any) error {
	if !p.running {
		return nil
	}
	update, ok := msg.(Update)
	if !ok || update.URL == "" {
		return nil
	}
	p.url = update.URL
	return p.render(ctx)
}

func (p *Plugin) render(ctx *exec.Context) error {
	size := ctx.Dimensions.Width
	if ctx.Dimensions.Height < size {
		size = ctx.Dimensions.Height
	}
	if size <= 0 {
		size = 256
	}

	code, err := qr.New(p.url, qr.Medium)
	if err != nil {
		return fmt.Errorf("qrcode: encode %q: %w", p.url, err)
	}
	codeImg := code.Image(size)

	canvas := image.NewRGBA(image.Rect(0, 0, ctx.Dimensions.Width, ctx.Dimensions.Height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	offsetX := (ctx.Dimensions.Width - size) / 2
	offsetY := (ctx.Dimensions.Height - size) / 2
	draw.Draw(canvas, codeImg.Bounds().Add(image.Pt(offsetX, offsetY)), codeImg, image.Point{}, draw.Src)

	return plugin.PublishFrame(ctx, ID, canvas)
}
