// Package render draws simple text frames onto an RGBA canvas for
// plugins that have no image of their own (markdown, clock). There is
// no font-rasterization concern anywhere in the teacher's stack, so
// this is grounded directly on the golang.org/x/image family the
// teacher already depends on for golang.org/x/net and
// golang.org/x/crypto — golang.org/x/image/font/basicfont is the
// ecosystem's standard fixed-width bitmap face, avoiding a hand-rolled
// glyph rasterizer.
package render

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const lineHeight = 16
const margin = 8

// Text draws lines of text, top to bottom, on a width x height canvas
// filled with bg, in fg. Lines beyond the canvas height are dropped
// rather than wrapped — callers needing wrapping pre-split lines to
// fit.
func Text(width, height int, bg, fg color.Color, lines []string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: fg},
		Face: basicfont.Face7x13,
	}

	y := margin + lineHeight
	for _, line := range lines {
		if y > height {
			break
		}
		d.Dot = fixed.P(margin, y)
		d.DrawString(line)
		y += lineHeight
	}
	return img
}
