// Package render provides the drawing surfaces shared by the components of a
// worker and the loop that schedules their draws.
//
// There is one Context per worker. It is provided once at the root of the
// component tree, and components obtain it in their hooks with Use.
package render

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/instrument"
	"github.com/synnaxlabs/synnax-sub025/pkg/perf"
)

// ContextKey is the aether context key the render Context is provided under.
const ContextKey = "render"

// ErrAlreadyProvided is returned by Provide when a render Context is already
// visible or set at the node.
var ErrAlreadyProvided = errors.New("render context already provided")

// ContextConfig configures a Context.
type ContextConfig struct {
	Canvases []Canvas
	// Tracker measures render tasks. A tracker with default settings is
	// created if nil.
	Tracker         *perf.Tracker
	Instrumentation *instrument.Instrumentation
	Registerer      prometheus.Registerer
	Labels          prometheus.Labels
}

// Context holds the canvases and the render loop.
type Context struct {
	canvases map[CanvasVariant]Canvas
	loop     *Loop
	tracker  *perf.Tracker
	instr    instrument.Instrumentation

	mutex  sync.Mutex
	claims map[string]Box
}

// NewContext creates a Context.
func NewContext(cfg ContextConfig) *Context {
	instr := instrument.Noop
	if cfg.Instrumentation != nil {
		instr = *cfg.Instrumentation
	}
	if cfg.Tracker == nil {
		cfg.Tracker = perf.New(perf.Config{Registerer: cfg.Registerer, Labels: cfg.Labels})
	}
	failures := promauto.With(cfg.Registerer).NewCounterVec(prometheus.CounterOpts{
		Name:        "aether_render_failures_total",
		Help:        "Number of render tasks that failed",
		ConstLabels: cfg.Labels,
	}, []string{"key"})
	c := &Context{
		canvases: make(map[CanvasVariant]Canvas, len(cfg.Canvases)),
		loop:     newLoop(cfg.Tracker, instr, failures),
		tracker:  cfg.Tracker,
		instr:    instr,
		claims:   make(map[string]Box),
	}
	for _, cv := range cfg.Canvases {
		c.canvases[cv.Variant()] = cv
	}
	return c
}

// Provide makes rc visible to every descendant of the node ctx belongs to,
// normally the root.
func Provide(ctx *aether.Context, rc *Context) error {
	if ctx.Has(ContextKey) || ctx.SetPreviously(ContextKey) {
		return ErrAlreadyProvided
	}
	ctx.Set(ContextKey, rc)
	return nil
}

// Use returns the render Context provided by an ancestor.
func Use(ctx *aether.Context) (*Context, error) {
	return aether.Use[*Context](ctx, ContextKey)
}

// Loop returns the render loop.
func (c *Context) Loop() *Loop { return c.loop }

// Tracker returns the performance tracker used by the loop.
func (c *Context) Tracker() *perf.Tracker { return c.tracker }

// Canvas returns the canvas of a variant.
func (c *Context) Canvas(v CanvasVariant) (Canvas, bool) {
	cv, ok := c.canvases[v]
	return cv, ok
}

// Erase clears region on the given canvases, or on all canvases if none are
// given. Unknown variants are ignored.
func (c *Context) Erase(region Box, variants ...CanvasVariant) {
	if len(variants) == 0 {
		variants = Variants
	}
	for _, v := range variants {
		if cv, ok := c.canvases[v]; ok {
			cv.Clear(region)
		}
	}
}

// OverlapError is returned by Claim when the region overlaps one owned by
// another node.
type OverlapError struct {
	Owner, Other string
	Region       Box
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("region %v of %s overlaps the region of %s", e.Region, e.Owner, e.Other)
}

// Claim records that owner draws in region, replacing its previous claim.
func (c *Context) Claim(owner string, region Box) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	others := make([]string, 0, len(c.claims))
	for o := range c.claims {
		others = append(others, o)
	}
	sort.Strings(others)
	for _, o := range others {
		if o != owner && c.claims[o].Overlaps(region) {
			return &OverlapError{Owner: owner, Other: o, Region: region}
		}
	}
	c.claims[owner] = region
	return nil
}

// Release drops the claim of owner.
func (c *Context) Release(owner string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.claims, owner)
}

// Claims returns a copy of the current claims.
func (c *Context) Claims() map[string]Box {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	claims := make(map[string]Box, len(c.claims))
	for k, v := range c.claims {
		claims[k] = v
	}
	return claims
}

// Forget cancels the pending tasks of a deleted node and releases its claim.
// It is meant to be used as aether.TreeConfig.OnDelete.
func (c *Context) Forget(p aether.Path) {
	owner := p.String()
	c.loop.Cancel(owner)
	c.Release(owner)
}
