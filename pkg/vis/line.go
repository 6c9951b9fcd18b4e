package vis

import (
	"fmt"
	"math"

	"github.com/fogleman/gg"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/render"
	"github.com/synnaxlabs/synnax-sub025/pkg/schema"
)

var lineSchema = schema.Object(
	schema.F("xs", schema.Array(schema.Number()).Default([]any{})),
	schema.F("ys", schema.Array(schema.Number()).Default([]any{})),
	schema.F("color", schema.String().Default("#1f77b4")),
	schema.F("width", schema.Number().Min(0).Default(1)),
	schema.F("selected", schema.Bool().Default(false)),
)

type lineState struct {
	Xs       []float64 `json:"xs"`
	Ys       []float64 `json:"ys"`
	Color    string    `json:"color"`
	Width    float64   `json:"width"`
	Selected bool      `json:"selected"`
}

type line struct {
	node *aether.Node
	st   lineState
	task render.Task
}

func newLine(n *aether.Node) (aether.Component, error) { return &line{node: n}, nil }

func (l *line) AfterUpdate(c *aether.Context) error {
	var st lineState
	if err := l.node.Decode(&st); err != nil {
		return err
	}
	if len(st.Xs) != len(st.Ys) {
		return fmt.Errorf("%s: %d xs but %d ys", l.node.Path(), len(st.Xs), len(st.Ys))
	}
	l.st = st
	region, err := aether.Use[render.Box](c, RegionKey)
	if err != nil {
		return err
	}
	rc, err := render.Use(c)
	if err != nil {
		return err
	}
	key := l.node.Path().String()
	l.task = render.Task{
		Key:      key,
		Owner:    key,
		Canvases: []render.CanvasVariant{render.Upper2D},
		Render: func(level int) error {
			pts := project(st.Xs, st.Ys, region, level)
			drawOn(rc, render.Upper2D, func(dc *gg.Context) {
				if len(pts) < 2 {
					return
				}
				dc.MoveTo(pts[0].X, pts[0].Y)
				for _, p := range pts[1:] {
					dc.LineTo(p.X, p.Y)
				}
				w := st.Width
				if st.Selected {
					w *= 2
				}
				dc.SetLineWidth(w)
				dc.SetHexColor(st.Color)
				dc.Stroke()
			})
			return nil
		},
	}
	// Lines share the plot's overlay, so one changing line redraws them all.
	if p := plotOf(l.node); p != nil {
		p.redrawLines()
	} else {
		rc.Loop().Set(l.task)
	}
	return nil
}

func (l *line) AfterDelete(*aether.Context) error {
	if p := plotOf(l.node); p != nil {
		p.redrawLines()
	}
	return nil
}

func (l *line) Methods() aether.Methods {
	return aether.Methods{
		"extent": {
			Result: schema.Object(schema.F("min", schema.Number()), schema.F("max", schema.Number())),
			Call: func(*aether.Context, any) (any, error) {
				lo, hi := extent(l.st.Ys)
				return map[string]any{"min": lo, "max": hi}, nil
			},
		},
		"select": {
			Args: schema.Bool(),
			Call: func(c *aether.Context, args any) (any, error) {
				if err := l.node.SetState(c.Context(), map[string]any{"selected": args}); err != nil {
					return nil, err
				}
				return nil, l.AfterUpdate(c)
			},
		},
	}
}

func extent(vs []float64) (lo, hi float64) {
	if len(vs) == 0 {
		return 0, 0
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	return lo, hi
}

// Maps data points into region, keeping every 2^level-th point and always the
// last one.
func project(xs, ys []float64, region render.Box, level int) []gg.Point {
	if len(xs) == 0 {
		return nil
	}
	xlo, xhi := extent(xs)
	ylo, yhi := extent(ys)
	scale := func(v, lo, hi, size float64) float64 {
		if hi == lo {
			return size / 2
		}
		return (v - lo) / (hi - lo) * size
	}
	step := 1 << min(level, 16)
	var pts []gg.Point
	for i := 0; i < len(xs); i += step {
		pts = append(pts, gg.Point{
			X: region.X + scale(xs[i], xlo, xhi, region.W),
			Y: region.Y + region.H - scale(ys[i], ylo, yhi, region.H),
		})
	}
	if (len(xs)-1)%step != 0 {
		last := len(xs) - 1
		pts = append(pts, gg.Point{
			X: region.X + scale(xs[last], xlo, xhi, region.W),
			Y: region.Y + region.H - scale(ys[last], ylo, yhi, region.H),
		})
	}
	return pts
}
