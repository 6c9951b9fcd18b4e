// Package vis provides demo visualization components: plots, which own a
// region of the canvases, and lines drawn inside them.
//
// Importing the package registers the components with aether.Default.
package vis

import "github.com/synnaxlabs/synnax-sub025/pkg/aether"

// Component types.
const (
	TypePlot = "plot"
	TypeLine = "line"
)

// RegionKey is the context key under which a plot publishes its region to
// its children, as a render.Box.
const RegionKey = "vis.region"

func init() {
	aether.Register(Registrations()...)
}

// Registrations returns the registrations of all components of the package.
func Registrations() []aether.Registration {
	return []aether.Registration{
		{Type: TypePlot, Schema: plotSchema, Composite: true, New: newPlot},
		{Type: TypeLine, Schema: lineSchema, New: newLine},
	}
}
