package aether

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/synnaxlabs/synnax-sub025/pkg/instrument"
	"github.com/synnaxlabs/synnax-sub025/pkg/schema"
)

// Node is the runtime handle of a component in the tree. Nodes are created
// and destroyed only by the Tree.
type Node struct {
	tree  *Tree
	path  Path
	reg   Registration
	comp  Component
	instr instrument.Instrumentation

	state, prev map[string]any
	children    []*Node
	// Context values set by this node, visible to its descendants.
	values  map[string]any
	deleted bool
}

// Path returns the path of the node.
func (n *Node) Path() Path { return n.path }

// Type returns the component type of the node, or "" for the root.
func (n *Node) Type() string { return n.reg.Type }

// Composite reports whether the node may have children.
func (n *Node) Composite() bool { return n.reg.Composite }

// Component returns the component constructed for the node.
func (n *Node) Component() Component { return n.comp }

// State returns the validated state. It must not be modified.
func (n *Node) State() map[string]any { return n.state }

// PrevState returns the state before the last update. After the first update
// it is the same as State.
func (n *Node) PrevState() map[string]any { return n.prev }

// Deleted reports whether the node has been removed from the tree.
func (n *Node) Deleted() bool { return n.deleted }

// Instrumentation returns the node's logging and tracing handle.
func (n *Node) Instrumentation() instrument.Instrumentation { return n.instr }

// Decode copies the state into v, which must be a pointer to a struct or
// map. Struct fields are matched by their json tags.
func (n *Node) Decode(v any) error {
	return decode(n.state, v)
}

func decode(in any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// SetState merges patch into the state from the worker side, validates the
// result and sends it to the presentation side. On error the state is left
// unchanged.
func (n *Node) SetState(ctx context.Context, patch any) error {
	if n.deleted {
		return &NotFoundError{Path: n.path}
	}
	p, err := toObject(patch)
	if err != nil {
		return err
	}
	if err := n.apply(p); err != nil {
		return err
	}
	if n.tree.sender == nil {
		return nil
	}
	b, err := schema.Encode(n.state)
	if err != nil {
		return err
	}
	u := Update{Path: n.path, Variant: VariantState, Type: n.reg.Type, State: b}
	u.Inject(ctx)
	return n.tree.sender.Send(ctx, u)
}

// Merges patch onto the current state and validates it.
func (n *Node) apply(patch map[string]any) error {
	merged := schema.Merge(n.state, patch)
	valid, err := n.validate(merged)
	if err != nil {
		return err
	}
	if n.state == nil {
		n.prev = valid
	} else {
		n.prev = n.state
	}
	n.state = valid
	return nil
}

func (n *Node) validate(v map[string]any) (map[string]any, error) {
	if n.reg.Schema == nil {
		return v, nil
	}
	valid, err := n.reg.Schema.Validate(v)
	if err != nil {
		return nil, err
	}
	return toObject(valid)
}

func toObject(v any) (map[string]any, error) {
	norm, err := schema.Any().Validate(v)
	if err != nil {
		return nil, err
	}
	switch norm := norm.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return norm, nil
	default:
		return nil, &schema.Violation{Msg: fmt.Sprintf("state must be an object, got %T", norm)}
	}
}

// Parent returns the parent node, or nil for the root.
func (n *Node) Parent() *Node {
	if n.path.IsRoot() {
		return nil
	}
	return n.tree.Get(n.path.Parent())
}

// Children returns the children in insertion order.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

// Child returns the child with the given key, or nil.
func (n *Node) Child(key string) *Node {
	for _, c := range n.children {
		if c.path.Key() == key {
			return c
		}
	}
	return nil
}

// ChildrenOfType returns the children whose type is one of types, in
// insertion order.
func (n *Node) ChildrenOfType(types ...string) []*Node {
	var out []*Node
	for _, c := range n.children {
		for _, t := range types {
			if c.reg.Type == t {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func (n *Node) removeChild(c *Node) {
	for i, x := range n.children {
		if x == c {
			n.children = append(n.children[:i:i], n.children[i+1:]...)
			return
		}
	}
}
