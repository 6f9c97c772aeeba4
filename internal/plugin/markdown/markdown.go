// Package markdown is a sample plugin that renders markdown text
// carried in its track's content onto the display surface. It is
// grounded on the teacher's internal/email/compose.go, which already
// depends on github.com/yuin/goldmark to turn a markdown body into
// HTML for an email; this plugin reuses the same goldmark.Convert call
// and then walks the (goldmark-controlled, so much smaller than a
// general web page) HTML with golang.org/x/net/html to recover plain
// text lines for render.Text, since an e-ink frame needs a fixed-width
// bitmap rendering, not an HTML document.
package markdown

import (
	"bytes"
	"fmt"
	"image/color"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/orrery-labs/inkframe/internal/coreerr"
	"github.com/orrery-labs/inkframe/internal/exec"
	"github.com/orrery-labs/inkframe/internal/plugin"
	"github.com/orrery-labs/inkframe/internal/plugin/render"
)

// ID is the registered plugin identifier.
const ID = "markdown"

func init() {
	plugin.Register(ID, func() plugin.Plugin { return &Plugin{} })
}

// Plugin renders the "text" (or "markdown") content key as word-wrapped
// plain text.
type Plugin struct {
	running bool
	text    string
}

// Update replaces the rendered markdown text on a running track
// (spec.md §4.7 "receive(ctx, track, msg)").
type Update struct {
	Text string
}

func (p *Plugin) Start(ctx *exec.Context, track any) error {
	_, content, ok := plugin.TrackInfo(track)
	if !ok {
		return fmt.Errorf("%w: markdown: unrecognized track type %T", coreerr.InvalidInput, track)
	}
	text := contentText(content)
	if text == "" {
		return fmt.Errorf("%w: markdown: track content missing \"text\"/\"markdown\"", coreerr.InvalidInput)
	}
	p.text = text
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
	if !ok || update.Text == "" {
		return nil
	}
	p.text = update.Text
	return p.render(ctx)
}

func contentText(content map[string]any) string {
	if v, ok := content["text"].(string); ok && v != "" {
		return v
	}
	if v, ok := content["markdown"].(string); ok && v != "" {
		return v
	}
	return ""
}

func (p *Plugin) render(ctx *exec.Context) error {
	var htmlBuf bytes.Buffer
	if err := goldmark.Convert([]byte(p.text), &htmlBuf); err != nil {
		return fmt.Errorf("markdown: convert: %w", err)
	}

	lines := wrap(plainText(htmlBuf.String()), charsPerLine(ctx.Dimensions.Width))
	img := render.Text(ctx.Dimensions.Width, ctx.Dimensions.Height, color.White, color.Black, lines)
	return plugin.PublishFrame(ctx, ID, img)
}

// charsPerLine estimates how many 7px-wide glyphs fit across width.
func charsPerLine(width int) int {
	const glyphWidth = 7
	n := width / glyphWidth
	if n < 10 {
		n = 10
	}
	return n
}

// skipElements mirrors goldmark's own output surface — it never emits
// script/style/nav, but excluding them costs nothing and keeps this
// resilient to embedded raw HTML passed through by goldmark's default
// renderer.
var skipElements = map[atom.Atom]bool{
	atom.Script: true,
	atom.Style:  true,
}

func plainText(rendered string) string {
	doc, err := html.Parse(strings.NewReader(rendered))
	if err != nil {
		return rendered
	}
	var b strings.Builder
	walk(doc, &b)
	return strings.TrimSpace(b.String())
}

func walk(n *html.Node, w *strings.Builder) {
	if n.Type == html.ElementNode && skipElements[n.DataAtom] {
		return
	}
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			w.WriteString(text)
			w.WriteString(" ")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, w)
	}
	if n.Type == html.ElementNode && isBreakAfter(n.DataAtom) {
		w.WriteString("\n")
	}
}

func isBreakAfter(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Li, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Br, atom.Pre:
		return true
	}
	return false
}

// wrap splits text on existing newlines and greedily word-wraps each
// line to at most width characters.
func wrap(text string, width int) []string {
	var out []string
	for _, raw := range strings.Split(text, "\n") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		words := strings.Fields(raw)
		var cur strings.Builder
		for _, word := range words {
			if cur.Len() > 0 && cur.Len()+1+len(word) > width {
				out = append(out, cur.String())
				cur.Reset()
			}
			if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
			cur.WriteString(word)
		}
		if cur.Len() > 0 {
			out = append(out, cur.String())
		}
	}
	return out
}
