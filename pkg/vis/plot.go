package vis

import (
	"github.com/fogleman/gg"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/render"
	"github.com/synnaxlabs/synnax-sub025/pkg/schema"
)

var plotSchema = schema.Object(
	schema.F("x", schema.Number().Default(0)),
	schema.F("y", schema.Number().Default(0)),
	schema.F("w", schema.Number().Min(0)),
	schema.F("h", schema.Number().Min(0)),
	schema.F("background", schema.String().Default("#ffffff")),
	schema.F("border", schema.String().Default("#444444")),
)

type plotState struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
	Background string  `json:"background"`
	Border     string  `json:"border"`
}

type plot struct {
	node   *aether.Node
	rc     *render.Context
	region render.Box
}

func newPlot(n *aether.Node) (aether.Component, error) { return &plot{node: n}, nil }

func (p *plot) AfterUpdate(c *aether.Context) error {
	rc, err := render.Use(c)
	if err != nil {
		return err
	}
	var st plotState
	if err := p.node.Decode(&st); err != nil {
		return err
	}
	region := render.Box{X: st.X, Y: st.Y, W: st.W, H: st.H}
	if err := rc.Claim(p.node.Path().String(), region); err != nil {
		return err
	}
	if p.rc != nil && region != p.region {
		rc.Erase(p.region)
	}
	p.rc, p.region = rc, region
	c.Set(RegionKey, region)

	rc.Loop().Request(c, render.Task{
		Priority: render.High,
		Canvases: []render.CanvasVariant{render.Lower2D},
		Render: func(int) error {
			rc.Erase(region, render.Lower2D)
			drawOn(rc, render.Lower2D, func(dc *gg.Context) {
				dc.DrawRectangle(region.X, region.Y, region.W, region.H)
				dc.SetHexColor(st.Background)
				dc.FillPreserve()
				dc.SetHexColor(st.Border)
				dc.SetLineWidth(1)
				dc.Stroke()
			})
			return nil
		},
	})
	return nil
}

// Schedules a redraw of the line overlay: the plot's region on Upper2D is
// erased and every live line in the plot draws again in the same frame.
func (p *plot) redrawLines() {
	if p.rc == nil {
		return
	}
	rc, region := p.rc, p.region
	owner := p.node.Path().String()
	rc.Loop().Set(render.Task{
		Key:      owner + "#lines",
		Owner:    owner,
		Priority: render.High,
		Canvases: []render.CanvasVariant{render.Upper2D},
		Render: func(int) error {
			rc.Erase(region, render.Upper2D)
			return nil
		},
	})
	for _, n := range p.node.ChildrenOfType(TypeLine) {
		if l, ok := n.Component().(*line); ok && !n.Deleted() && l.task.Render != nil {
			rc.Loop().Set(l.task)
		}
	}
}

// The plot of a line's node, or nil.
func plotOf(n *aether.Node) *plot {
	parent := n.Parent()
	if parent == nil {
		return nil
	}
	p, _ := parent.Component().(*plot)
	return p
}

func (p *plot) AfterDelete(*aether.Context) error {
	if p.rc != nil {
		p.rc.Erase(p.region)
	}
	return nil
}

func (p *plot) Methods() aether.Methods {
	return aether.Methods{
		"bounds": {
			Result: schema.Object(
				schema.F("x", schema.Number()), schema.F("y", schema.Number()),
				schema.F("w", schema.Number()), schema.F("h", schema.Number())),
			Call: func(*aether.Context, any) (any, error) {
				return map[string]any{
					"x": p.region.X, "y": p.region.Y, "w": p.region.W, "h": p.region.H,
				}, nil
			},
		},
	}
}

// Draws on a canvas if it is a raster. Other canvases are only cleared.
func drawOn(rc *render.Context, v render.CanvasVariant, f func(dc *gg.Context)) {
	cv, ok := rc.Canvas(v)
	if !ok {
		return
	}
	if r, ok := cv.(*render.Raster); ok {
		r.Draw(f)
	}
}
