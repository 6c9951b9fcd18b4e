// Package presentation implements the producing side of the runtime. A Client
// sends state, context, method calls and deletions to a worker over a
// comms.Conn, and receives state echoes and method returns from it.
package presentation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/comms"
	"github.com/synnaxlabs/synnax-sub025/pkg/instrument"
	"github.com/synnaxlabs/synnax-sub025/pkg/schema"
	"github.com/synnaxlabs/synnax-sub025/pkg/store/storedefs"
)

// Config configures a Client.
type Config struct {
	Conn comms.Conn
	// Store, if not nil, keeps the merged state sent for every path under
	// Scope, so that a new worker can be brought up to date with Restore.
	Store storedefs.Store
	Scope string

	Instrumentation *instrument.Instrumentation
}

// Client is safe for concurrent use.
type Client struct {
	conn  comms.Conn
	store storedefs.Store
	scope string
	instr instrument.Instrumentation

	mutex   sync.Mutex
	known   map[string]string
	states  map[string]map[string]any
	pending map[string]chan aether.Update
	subs    map[string]map[int]func(map[string]any)
	nextSub int
	done    chan struct{}
}

// New creates a client and starts receiving from the connection.
func New(cfg Config) *Client {
	instr := instrument.New("presentation")
	if cfg.Instrumentation != nil {
		instr = *cfg.Instrumentation
	}
	c := &Client{
		conn: cfg.Conn, store: cfg.Store, scope: cfg.Scope, instr: instr,
		known:   map[string]string{},
		states:  map[string]map[string]any{},
		pending: map[string]chan aether.Update{},
		subs:    map[string]map[int]func(map[string]any){},
		done:    make(chan struct{}),
	}
	go c.receive()
	return c
}

func key(p aether.Path) string { return strings.Join(p, "\x1f") }

func (c *Client) send(ctx context.Context, u aether.Update) error {
	u.Inject(ctx)
	return c.conn.Send(ctx, u)
}

// SetState sends the state of the node at path. The first update for a path
// creates the node and must name its type; it is rejected locally with an
// *aether.OrphanPathError if the parent was never created by this client.
// Later updates may leave typ empty.
func (c *Client) SetState(ctx context.Context, path aether.Path, typ string, state any) error {
	if path.IsRoot() {
		return fmt.Errorf("the root has no state")
	}
	raw, err := schema.Encode(state)
	if err != nil {
		return err
	}
	typ, err = c.checkParent(path, typ)
	if err != nil {
		return err
	}
	if err := c.send(ctx, aether.Update{
		Path: path, Variant: aether.VariantState, Type: typ, State: raw,
	}); err != nil {
		return err
	}
	c.mutex.Lock()
	c.known[key(path)] = typ
	c.mutex.Unlock()
	if c.store == nil {
		return nil
	}
	merged, err := c.merge(path, raw)
	if err != nil {
		return err
	}
	return c.store.PutState(c.scope, storedefs.StateEntry{Path: path, Type: typ, State: merged})
}

// Overlays the patch in raw onto the last state stored for path, the same way
// the worker merges it, and returns the encoded result.
func (c *Client) merge(path aether.Path, raw []byte) ([]byte, error) {
	v, err := schema.Decode(raw)
	if err != nil {
		return nil, err
	}
	patch, _ := v.(map[string]any)
	c.mutex.Lock()
	merged := schema.Merge(c.states[key(path)], patch)
	c.states[key(path)] = merged
	c.mutex.Unlock()
	return schema.Encode(merged)
}

// Checks that every ancestor of path was created, and fills in the type of
// path if it was created before.
func (c *Client) checkParent(path aether.Path, typ string) (string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for i := 1; i < len(path); i++ {
		if _, ok := c.known[key(path[:i])]; !ok {
			return "", &aether.OrphanPathError{Path: path, Missing: path[:i].Append()}
		}
	}
	if typ == "" {
		typ = c.known[key(path)]
	}
	return typ, nil
}

// SetContext sets context values on the node at path, or on the root if path
// is empty. They are visible to the node's descendants.
func (c *Client) SetContext(ctx context.Context, path aether.Path, values map[string]any) error {
	raw, err := schema.Encode(values)
	if err != nil {
		return err
	}
	return c.send(ctx, aether.Update{Path: path, Variant: aether.VariantContext, State: raw})
}

// Delete deletes the node at path and its subtree, or every node if path is
// empty.
func (c *Client) Delete(ctx context.Context, path aether.Path) error {
	if err := c.send(ctx, aether.Update{Path: path, Variant: aether.VariantDelete}); err != nil {
		return err
	}
	c.mutex.Lock()
	prefix := key(path)
	for k := range c.known {
		if path.IsRoot() || k == prefix || strings.HasPrefix(k, prefix+"\x1f") {
			delete(c.known, k)
			delete(c.states, k)
		}
	}
	c.mutex.Unlock()
	if c.store != nil {
		return c.store.DelState(c.scope, path)
	}
	return nil
}

// Call invokes a method of the node at path and waits for its result. Errors
// reported by the worker are returned as the matching typed errors of
// package aether or package schema.
func (c *Client) Call(ctx context.Context, path aether.Path, method string, args any) (any, error) {
	raw, err := schema.Encode(args)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	ch := make(chan aether.Update, 1)
	c.mutex.Lock()
	c.pending[id] = ch
	c.mutex.Unlock()
	defer func() {
		c.mutex.Lock()
		delete(c.pending, id)
		c.mutex.Unlock()
	}()

	err = c.send(ctx, aether.Update{
		Path: path, Variant: aether.VariantMethodCall, Method: method, CallID: id, State: raw,
	})
	if err != nil {
		return nil, err
	}
	select {
	case u := <-ch:
		if u.Error != nil {
			return nil, u.Error.AsError()
		}
		return schema.Decode(u.State)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.conn.Done():
		return nil, comms.ErrClosed
	}
}

// OnState registers f to be called with the state a worker-side component
// sends for the node at path. It returns a function that unregisters f.
// Callbacks run on the receiving goroutine and must not block.
func (c *Client) OnState(path aether.Path, f func(state map[string]any)) func() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	k := key(path)
	if c.subs[k] == nil {
		c.subs[k] = map[int]func(map[string]any){}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[k][id] = f
	return func() {
		c.mutex.Lock()
		defer c.mutex.Unlock()
		delete(c.subs[k], id)
		if len(c.subs[k]) == 0 {
			delete(c.subs, k)
		}
	}
}

// Restore resends the stored state of every path in the order the paths
// were created. It is used to bring a fresh worker up to date.
func (c *Client) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	entries, err := c.store.States(c.scope)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := c.send(ctx, aether.Update{
			Path: e.Path, Variant: aether.VariantState, Type: e.Type, State: e.State,
		}); err != nil {
			return err
		}
		v, err := schema.Decode(e.State)
		if err != nil {
			return err
		}
		state, _ := v.(map[string]any)
		c.mutex.Lock()
		c.known[key(e.Path)] = e.Type
		c.states[key(e.Path)] = state
		c.mutex.Unlock()
	}
	c.instr.Logger.Printf("restored %d paths of %q", len(entries), c.scope)
	return nil
}

// Done is closed when the client stops receiving.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close closes the connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) receive() {
	defer close(c.done)
	for {
		select {
		case u := <-c.conn.Receive():
			c.handle(u)
		case <-c.conn.Done():
			return
		}
	}
}

func (c *Client) handle(u aether.Update) {
	switch u.Variant {
	case aether.VariantMethodReturn:
		c.mutex.Lock()
		ch, ok := c.pending[u.CallID]
		c.mutex.Unlock()
		if !ok {
			c.instr.Logger.Printf("return for unknown call %s", u.CallID)
			return
		}
		select {
		case ch <- u:
		default:
			c.instr.Logger.Printf("duplicate return for call %s", u.CallID)
		}
	case aether.VariantState:
		v, err := schema.Decode(u.State)
		if err != nil {
			c.instr.Logger.Printf("%s: %v", u.Path, err)
			return
		}
		state, _ := v.(map[string]any)
		c.mutex.Lock()
		fs := make([]func(map[string]any), 0, len(c.subs[key(u.Path)]))
		for _, f := range c.subs[key(u.Path)] {
			fs = append(fs, f)
		}
		c.mutex.Unlock()
		for _, f := range fs {
			f(schema.Merge(nil, state))
		}
	default:
		c.instr.Logger.Printf("unexpected update %v", u)
	}
}

// Persisted returns the stored entries of the client's scope.
func (c *Client) Persisted() ([]storedefs.StateEntry, error) {
	if c.store == nil {
		return nil, nil
	}
	return c.store.States(c.scope)
}
