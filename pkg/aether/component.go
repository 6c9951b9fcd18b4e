package aether

import "github.com/synnaxlabs/synnax-sub025/pkg/schema"

// Component is implemented by feature code mirrored into the tree.
type Component interface {
	// AfterUpdate runs after the node's state has been merged and validated,
	// and again whenever an ancestor changes the context with Set.
	AfterUpdate(ctx *Context) error
}

// Deleter is implemented by components that release resources when their
// node is deleted.
type Deleter interface {
	AfterDelete(ctx *Context) error
}

// MethodProvider is implemented by components that can be called remotely.
type MethodProvider interface {
	Methods() Methods
}

// Factory constructs the component for a newly created node. The node's state
// is already set when it is called.
type Factory func(n *Node) (Component, error)

// Registration describes a component type.
type Registration struct {
	Type string
	// Schema validates the node's state. It must produce an object; a nil
	// Schema accepts any object.
	Schema schema.Schema
	// Composite nodes may have children.
	Composite bool
	New       Factory
}
