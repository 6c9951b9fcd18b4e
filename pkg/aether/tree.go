// Package aether mirrors a tree of components declared on a presentation side
// into a worker, where their state is validated, their hooks run and their
// methods are served.
//
// The presentation side sends Updates addressed by Path. A Tree applies them
// one at a time: it is not safe for concurrent use, and is meant to be owned
// by a single goroutine such as the loop in pkg/worker.
package aether

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/synnaxlabs/synnax-sub025/pkg/errutil"
	"github.com/synnaxlabs/synnax-sub025/pkg/instrument"
	"github.com/synnaxlabs/synnax-sub025/pkg/schema"
)

// TreeConfig configures a Tree.
type TreeConfig struct {
	// Registry resolves component types. Defaults to Default.
	Registry *Registry
	// Sender receives method returns and state echoes. May be nil.
	Sender Sender
	// Instrumentation defaults to instrument.Noop.
	Instrumentation *instrument.Instrumentation
	// OnDelete is called for every deleted path, after its AfterDelete hook
	// and before the delete returns.
	OnDelete func(Path)
	// RootContext seeds the context values visible to every node.
	RootContext map[string]any
}

// Tree holds the live nodes and routes updates to them.
type Tree struct {
	registry *Registry
	sender   Sender
	instr    instrument.Instrumentation
	onDelete func(Path)

	root  *Node
	index map[string]*Node
}

// NewTree creates a tree that contains only the root.
func NewTree(cfg TreeConfig) *Tree {
	t := &Tree{
		registry: cfg.Registry,
		sender:   cfg.Sender,
		instr:    instrument.Noop,
		onDelete: cfg.OnDelete,
		index:    make(map[string]*Node),
	}
	if t.registry == nil {
		t.registry = Default
	}
	if cfg.Instrumentation != nil {
		t.instr = *cfg.Instrumentation
	}
	t.root = &Node{
		tree:   t,
		reg:    Registration{Composite: true},
		instr:  t.instr,
		state:  map[string]any{},
		prev:   map[string]any{},
		values: make(map[string]any, len(cfg.RootContext)),
	}
	for k, v := range cfg.RootContext {
		t.root.values[k] = v
	}
	t.index[Path(nil).indexKey()] = t.root
	return t
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// RootContext returns a context view of the root, through which values can be
// provided to the whole tree.
func (t *Tree) RootContext(ctx context.Context) *Context {
	return t.newContext(ctx, t.root)
}

// Get returns the node at p, or nil.
func (t *Tree) Get(p Path) *Node { return t.index[p.indexKey()] }

// Len returns the number of nodes, not counting the root.
func (t *Tree) Len() int { return len(t.index) - 1 }

// Walk calls f on every node except the root in pre-order, children in
// insertion order. It stops when f returns false.
func (t *Tree) Walk(f func(*Node) bool) {
	var walk func(n *Node) bool
	walk = func(n *Node) bool {
		for _, c := range n.children {
			if !f(c) || !walk(c) {
				return false
			}
		}
		return true
	}
	walk(t.root)
}

// NodeInfo describes a node in a Snapshot.
type NodeInfo struct {
	Path      Path           `json:"path" yaml:"path"`
	Type      string         `json:"type" yaml:"type"`
	Composite bool           `json:"composite,omitempty" yaml:"composite,omitempty"`
	State     map[string]any `json:"state" yaml:"state"`
}

// MarshalJSON encodes State with schema.Encode so that non-finite numbers
// survive.
func (info NodeInfo) MarshalJSON() ([]byte, error) {
	state, err := schema.Encode(info.State)
	if err != nil {
		return nil, err
	}
	type plain NodeInfo
	return json.Marshal(struct {
		plain
		State json.RawMessage `json:"state"`
	}{plain(info), state})
}

// Snapshot lists every node in pre-order.
func (t *Tree) Snapshot() []NodeInfo {
	var infos []NodeInfo
	t.Walk(func(n *Node) bool {
		infos = append(infos, NodeInfo{
			Path: n.path, Type: n.reg.Type, Composite: n.reg.Composite,
			State: schema.Merge(nil, n.state),
		})
		return true
	})
	return infos
}

// Dispatch applies an update. Errors are local to the update: a rejected
// update leaves the tree as it was, and a failing hook leaves the tree in
// the state the update produced.
func (t *Tree) Dispatch(ctx context.Context, u Update) (err error) {
	ctx, end := t.instr.Start(u.Extract(ctx), "dispatch",
		attribute.String("path", u.Path.String()),
		attribute.String("variant", string(u.Variant)))
	defer func() {
		if err != nil {
			t.instr.Logger.Printf("%s: %v", u, err)
		}
		end(err)
	}()
	switch u.Variant {
	case VariantState:
		return t.setState(ctx, u)
	case VariantContext:
		return t.setContext(ctx, u)
	case VariantMethodCall:
		return t.call(ctx, u)
	case VariantDelete:
		return t.Delete(ctx, u.Path)
	case VariantMethodReturn:
		return errors.New("method returns are not handled by the tree")
	default:
		return fmt.Errorf("unknown variant %q", u.Variant)
	}
}

func (t *Tree) setState(ctx context.Context, u Update) error {
	if u.Path.IsRoot() {
		return errors.New("the root has no state")
	}
	patch, err := decodeObject(u.State)
	if err != nil {
		return err
	}
	n := t.Get(u.Path)
	if n != nil {
		if u.Type != "" && u.Type != n.reg.Type {
			return &TypeMismatchError{Path: u.Path, Have: n.reg.Type, Want: u.Type}
		}
		if err := n.apply(patch); err != nil {
			return err
		}
		return t.afterUpdate(ctx, n)
	}

	parent, err := t.parentFor(u.Path)
	if err != nil {
		return err
	}
	reg, ok := t.registry.Lookup(u.Type)
	if !ok {
		return &UnknownTypeError{Path: u.Path, Type: u.Type}
	}
	n = &Node{
		tree:  t,
		path:  u.Path.Append(),
		reg:   reg,
		instr: t.instr.Child(fmt.Sprintf("%s(%s)", reg.Type, u.Path)),
	}
	if err := n.apply(patch); err != nil {
		return err
	}
	if n.comp, err = reg.New(n); err != nil {
		return fmt.Errorf("%s: construct %s: %w", u.Path, reg.Type, err)
	}
	parent.children = append(parent.children, n)
	t.index[n.path.indexKey()] = n
	return t.afterUpdate(ctx, n)
}

// Finds the parent of a node to be created at p, checking that every
// ancestor exists and that the parent can hold children.
func (t *Tree) parentFor(p Path) (*Node, error) {
	for i := 1; i < len(p); i++ {
		if t.Get(p[:i]) == nil {
			return nil, &OrphanPathError{Path: p, Missing: p[:i:i]}
		}
	}
	parent := t.Get(p.Parent())
	if !parent.reg.Composite {
		return nil, &LeafParentError{Path: p, ParentType: parent.reg.Type}
	}
	return parent, nil
}

func decodeObject(raw []byte) (map[string]any, error) {
	v, err := schema.Decode(raw)
	if err != nil {
		return nil, err
	}
	return toObject(v)
}

func (t *Tree) afterUpdate(ctx context.Context, n *Node) error {
	c := t.newContext(ctx, n)
	err := n.comp.AfterUpdate(c)
	if c.triggered {
		err = errutil.Multi(err, t.rerunDescendants(ctx, n))
	}
	return err
}

// Invokes AfterUpdate on every descendant of n in pre-order.
func (t *Tree) rerunDescendants(ctx context.Context, n *Node) error {
	var errs []error
	for _, c := range n.children {
		errs = append(errs, c.comp.AfterUpdate(t.newContext(ctx, c)))
		errs = append(errs, t.rerunDescendants(ctx, c))
	}
	return errutil.Multi(errs...)
}

func (t *Tree) setContext(ctx context.Context, u Update) error {
	values, err := decodeObject(u.State)
	if err != nil {
		return err
	}
	return t.SetContext(ctx, u.Path, values)
}

// SetContext sets context values on the node at p, making them visible to its
// descendants, and re-runs the descendants' AfterUpdate hooks.
func (t *Tree) SetContext(ctx context.Context, p Path, values map[string]any) error {
	n := t.Get(p)
	if n == nil {
		return &NotFoundError{Path: p}
	}
	c := t.newContext(ctx, n)
	for k, v := range values {
		c.SetQuiet(k, v)
	}
	return t.rerunDescendants(ctx, n)
}

func (t *Tree) call(ctx context.Context, u Update) error {
	ret := Update{Path: u.Path, Variant: VariantMethodReturn, CallID: u.CallID, Method: u.Method}
	result, err := t.invoke(ctx, u)
	if err == nil {
		ret.State, err = schema.Encode(result)
	}
	if err != nil {
		ret.Error = NewRemoteError(err)
	}
	if t.sender == nil {
		return err
	}
	ret.Inject(ctx)
	return errutil.Multi(err, t.sender.Send(ctx, ret))
}

func (t *Tree) invoke(ctx context.Context, u Update) (any, error) {
	n := t.Get(u.Path)
	if n == nil || n.comp == nil {
		return nil, &NotFoundError{Path: u.Path}
	}
	provider, ok := n.comp.(MethodProvider)
	if !ok {
		return nil, &MethodNotFoundError{Path: u.Path, Method: u.Method}
	}
	m, ok := provider.Methods()[u.Method]
	if !ok || m.Call == nil {
		return nil, &MethodNotFoundError{Path: u.Path, Method: u.Method}
	}
	return m.invoke(t.newContext(ctx, n), u.State)
}

// Delete removes the node at p and all its descendants. Descendants are
// deleted first; each node's AfterDelete hook runs and OnDelete is called
// before the node is detached. Deleting an absent path does nothing. Deleting
// the root deletes all of its children.
//
// Hook errors are collected and returned, but never stop the deletion.
func (t *Tree) Delete(ctx context.Context, p Path) error {
	n := t.Get(p)
	if n == nil {
		return nil
	}
	if n == t.root {
		var errs []error
		for _, c := range n.Children() {
			errs = append(errs, t.Delete(ctx, c.path))
		}
		return errutil.Multi(errs...)
	}
	err := t.deleteSubtree(ctx, n)
	if parent := n.Parent(); parent != nil {
		parent.removeChild(n)
	}
	delete(t.index, n.path.indexKey())
	return err
}

func (t *Tree) deleteSubtree(ctx context.Context, n *Node) error {
	var errs []error
	for _, c := range n.children {
		errs = append(errs, t.deleteSubtree(ctx, c))
		delete(t.index, c.path.indexKey())
	}
	n.deleted = true
	if d, ok := n.comp.(Deleter); ok {
		errs = append(errs, d.AfterDelete(t.newContext(ctx, n)))
	}
	if t.onDelete != nil {
		t.onDelete(n.path)
	}
	n.children = nil
	n.values = nil
	return errutil.Multi(errs...)
}
