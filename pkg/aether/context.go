package aether

import (
	"context"
	"fmt"
)

// Context is the view of the context store handed to a hook. It is only valid
// for the duration of the hook.
//
// Values are scoped to subtrees: a value set by a node is visible to all of
// its descendants, with the nearest ancestor winning, and never to the node
// itself or its siblings. A node can therefore override a key for its
// subtree while still reading the value its own ancestors provide.
type Context struct {
	ctx       context.Context
	tree      *Tree
	node      *Node
	triggered bool
}

func (t *Tree) newContext(ctx context.Context, n *Node) *Context {
	return &Context{ctx: ctx, tree: t, node: n}
}

// Context returns the context.Context of the dispatch that invoked the hook.
func (c *Context) Context() context.Context { return c.ctx }

// Path returns the path of the node the view belongs to.
func (c *Context) Path() Path { return c.node.path }

// Get returns the value of key set by the nearest ancestor.
func (c *Context) Get(key string) (any, bool) {
	p := c.node.path
	for len(p) > 0 {
		p = p.Parent()
		if a := c.tree.index[p.indexKey()]; a != nil {
			if v, ok := a.values[key]; ok {
				return v, true
			}
		}
	}
	return nil, false
}

// Has reports whether an ancestor has set key.
func (c *Context) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Set makes v visible to the descendants of the node under key. Once the hook
// returns, every descendant has its AfterUpdate hook invoked again.
func (c *Context) Set(key string, v any) {
	c.SetQuiet(key, v)
	c.triggered = true
}

// SetQuiet is like Set but does not re-run descendants.
func (c *Context) SetQuiet(key string, v any) {
	if c.node.values == nil {
		c.node.values = make(map[string]any)
	}
	c.node.values[key] = v
}

// SetPreviously reports whether the node itself has set key.
func (c *Context) SetPreviously(key string) bool {
	_, ok := c.node.values[key]
	return ok
}

// Use looks up key and asserts its type.
func Use[T any](c *Context, key string) (T, error) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, &ContextNotFoundError{Path: c.Path(), Key: key}
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%s: context value %q has type %T, want %T", c.Path(), key, v, zero)
	}
	return t, nil
}
