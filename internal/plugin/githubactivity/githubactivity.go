// Package githubactivity is a sample plugin that renders a repository's
// recent commit activity by calling through to a registered
// internal/datasource/githubsource data source, rather than reading
// its track's content directly the way clock/markdown/qrcode do. It
// exists to exercise internal/datasource.Manager end to end: Start
// calls ctx.Services.DataSources.Open and blocks on the returned
// future, the same bounded-wait suspension point spec.md §4.9
// describes for render/open futures ("waiting on a short future
// result with an explicit timeout from params.timeoutSeconds").
package githubactivity

import (
	"fmt"
	"image/color"

	"github.com/orrery-labs/inkframe/internal/coreerr"
	"github.com/orrery-labs/inkframe/internal/datasource"
	"github.com/orrery-labs/inkframe/internal/datasource/githubsource"
	"github.com/orrery-labs/inkframe/internal/exec"
	"github.com/orrery-labs/inkframe/internal/plugin"
	"github.com/orrery-labs/inkframe/internal/plugin/render"
)

// ID is the registered plugin identifier.
const ID = "githubactivity"

func init() {
	plugin.Register(ID, func() plugin.Plugin { return &Plugin{} })
}

// defaultSourceID is the data source name a track falls back to when
// its content carries no "source" override, matching the id
// cmd/inkyd's registerDataSources registers the sample githubsource
// adapter under.
const defaultSourceID = "github"

// Plugin draws the most recent commits reported by a githubsource data
// source. It has no image of its own state: every Start and Receive
// re-opens the data source and redraws from whatever it returns.
type Plugin struct {
	running  bool
	sourceID string
	params   map[string]any
}

func (p *Plugin) Start(ctx *exec.Context, track any) error {
	_, content, ok := plugin.TrackInfo(track)
	if !ok {
		return fmt.Errorf("%w: githubactivity: unrecognized track type %T", coreerr.InvalidInput, track)
	}
	p.sourceID = defaultSourceID
	if s, ok := content["source"].(string); ok && s != "" {
		p.sourceID = s
	}
	p.params = map[string]any{}
	if v, ok := content["timeoutSeconds"]; ok {
		p.params["timeoutSeconds"] = v
	}
	p.running = true
	return p.render(ctx)
}

func (p *Plugin) Stop(ctx *exec.Context, track any) error {
	p.running = false
	return nil
}

// Receive re-fetches and redraws on any message, mirroring the
// clock plugin's "redraw on every tick" behavior but pulling fresh
// state from the data source instead of the system clock.
func (p *Plugin) Receive(ctx *exec.Context, track any, msg any) error {
	if !p.running {
		return nil
	}
	return p.render(ctx)
}

func (p *Plugin) render(ctx *exec.Context) error {
	if ctx.Services.DataSources == nil {
		return fmt.Errorf("%w: githubactivity: no data source manager configured", coreerr.Unavailable)
	}

	fut, err := ctx.Services.DataSources.Open(ctx, p.sourceID, p.params)
	if err != nil {
		return fmt.Errorf("githubactivity: open %q: %w", p.sourceID, err)
	}

	res, ok := fut.Result().(datasource.Result)
	if !ok {
		return fmt.Errorf("%w: githubactivity: unexpected future result type", coreerr.Internal)
	}
	if res.Err != nil {
		return fmt.Errorf("githubactivity: %q: %w", p.sourceID, res.Err)
	}

	activity, ok := res.Value.(githubsource.Activity)
	if !ok {
		return fmt.Errorf("%w: githubactivity: expected githubsource.Activity, got %T", coreerr.Internal, res.Value)
	}

	img := render.Text(ctx.Dimensions.Width, ctx.Dimensions.Height, color.White, color.Black, commitLines(activity))
	return plugin.PublishFrame(ctx, ID, img)
}

// commitLines formats activity as one line per commit: a short SHA,
// the commit's first message line, and its author.
func commitLines(activity githubsource.Activity) []string {
	lines := make([]string, 0, len(activity.Commits)+1)
	lines = append(lines, activity.Repo)
	for _, c := range activity.Commits {
		sha := c.SHA
		if len(sha) > 7 {
			sha = sha[:7]
		}
		msg := c.Message
		if i := indexNewline(msg); i >= 0 {
			msg = msg[:i]
		}
		lines = append(lines, fmt.Sprintf("%s %s (%s)", sha, msg, c.Author))
	}
	return lines
}

func indexNewline(s string) int {
	for i, r := range s {
		if r == '\n' {
			return i
		}
	}
	return -1
}
