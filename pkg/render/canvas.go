package render

import (
	"fmt"
	"image"
	"image/draw"
	"io"
	"math"
	"sync"

	"github.com/fogleman/gg"
)

// CanvasVariant names one of the stacked drawing surfaces, bottom first.
type CanvasVariant string

const (
	GL      CanvasVariant = "gl"
	Lower2D CanvasVariant = "lower2d"
	Upper2D CanvasVariant = "upper2d"
)

// Variants lists all canvas variants from the bottom layer up.
var Variants = []CanvasVariant{GL, Lower2D, Upper2D}

// Layer returns the stacking position of v, or -1 if v is not known.
func (v CanvasVariant) Layer() int {
	for i, w := range Variants {
		if v == w {
			return i
		}
	}
	return -1
}

// ParseVariant parses a variant name.
func ParseVariant(s string) (CanvasVariant, error) {
	v := CanvasVariant(s)
	if v.Layer() < 0 {
		return "", fmt.Errorf("unknown canvas variant %q", s)
	}
	return v, nil
}

// Box is a rectangular region in canvas pixels.
type Box struct {
	X, Y, W, H float64
}

// Rect returns the smallest integer rectangle covering b.
func (b Box) Rect() image.Rectangle {
	return image.Rect(
		int(math.Floor(b.X)), int(math.Floor(b.Y)),
		int(math.Ceil(b.X+b.W)), int(math.Ceil(b.Y+b.H)))
}

// Empty reports whether b has no area.
func (b Box) Empty() bool { return b.W <= 0 || b.H <= 0 }

// Overlaps reports whether b and o share any area.
func (b Box) Overlaps(o Box) bool {
	if b.Empty() || o.Empty() {
		return false
	}
	return b.X < o.X+o.W && o.X < b.X+b.W && b.Y < o.Y+o.H && o.Y < b.Y+b.H
}

func (b Box) String() string {
	return fmt.Sprintf("(%g,%g %gx%g)", b.X, b.Y, b.W, b.H)
}

// Canvas is a drawing surface. Components only touch canvases from inside a
// render task.
type Canvas interface {
	Variant() CanvasVariant
	Bounds() Box
	// Clear makes the region transparent.
	Clear(region Box)
}

// Raster is an in-memory Canvas drawn with gg.
type Raster struct {
	variant CanvasVariant
	mutex   sync.Mutex
	img     *image.RGBA
	dc      *gg.Context
}

// NewRaster creates a transparent raster canvas of the given size.
func NewRaster(v CanvasVariant, width, height int) *Raster {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	return &Raster{variant: v, img: img, dc: gg.NewContextForRGBA(img)}
}

func (r *Raster) Variant() CanvasVariant { return r.variant }

func (r *Raster) Bounds() Box {
	b := r.img.Bounds()
	return Box{0, 0, float64(b.Dx()), float64(b.Dy())}
}

func (r *Raster) Clear(region Box) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	draw.Draw(r.img, region.Rect().Intersect(r.img.Bounds()), image.Transparent, image.Point{}, draw.Src)
}

// Draw calls f with the drawing context of the canvas.
func (r *Raster) Draw(f func(dc *gg.Context)) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	f(r.dc)
}

// WritePNG encodes the current contents as PNG.
func (r *Raster) WritePNG(w io.Writer) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.dc.EncodePNG(w)
}

// At returns the color of a pixel.
func (r *Raster) At(x, y int) (red, green, blue, alpha uint8) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	c := r.img.RGBAAt(x, y)
	return c.R, c.G, c.B, c.A
}
