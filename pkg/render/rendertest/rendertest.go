// Package rendertest provides test doubles for pkg/render.
package rendertest

import (
	"sync"

	"github.com/synnaxlabs/synnax-sub025/pkg/render"
)

// Canvas records the regions it is asked to clear.
type Canvas struct {
	V    render.CanvasVariant
	Size render.Box

	mutex   sync.Mutex
	cleared []render.Box
}

// NewCanvas creates a Canvas of the given variant and size.
func NewCanvas(v render.CanvasVariant, w, h float64) *Canvas {
	return &Canvas{V: v, Size: render.Box{W: w, H: h}}
}

func (c *Canvas) Variant() render.CanvasVariant { return c.V }
func (c *Canvas) Bounds() render.Box            { return c.Size }

func (c *Canvas) Clear(b render.Box) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cleared = append(c.cleared, b)
}

// Cleared returns the regions cleared so far.
func (c *Canvas) Cleared() []render.Box {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]render.Box(nil), c.cleared...)
}

// Canvases returns one Canvas per variant.
func Canvases(w, h float64) []render.Canvas {
	var cs []render.Canvas
	for _, v := range render.Variants {
		cs = append(cs, NewCanvas(v, w, h))
	}
	return cs
}
