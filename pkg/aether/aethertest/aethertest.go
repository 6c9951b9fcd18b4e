// Package aethertest provides helpers for testing code built on pkg/aether.
package aethertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/must"
	"github.com/synnaxlabs/synnax-sub025/pkg/schema"
)

// Recorder is an aether.Sender that keeps every update sent to it.
type Recorder struct {
	mutex   sync.Mutex
	updates []aether.Update
}

func (r *Recorder) Send(_ context.Context, u aether.Update) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.updates = append(r.updates, u)
	return nil
}

// Updates returns the updates sent so far.
func (r *Recorder) Updates() []aether.Update {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append([]aether.Update(nil), r.updates...)
}

// Log collects hook invocations in order.
type Log struct {
	mutex  sync.Mutex
	events []string
}

// Add appends a formatted event.
func (l *Log) Add(format string, args ...any) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

// Events returns the events recorded so far.
func (l *Log) Events() []string {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return append([]string(nil), l.events...)
}

// Reset forgets all events.
func (l *Log) Reset() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.events = nil
}

// Probe describes a component type whose hooks record themselves in Log as
// "update <path>" and "delete <path>".
type Probe struct {
	Type      string
	Composite bool
	Schema    schema.Schema
	Log       *Log
	// Called from AfterUpdate after the event is logged.
	OnUpdate    func(n *aether.Node, ctx *aether.Context) error
	MethodTable aether.Methods
}

// Registration returns the registration of the probe type.
func (p Probe) Registration() aether.Registration {
	return aether.Registration{
		Type: p.Type, Schema: p.Schema, Composite: p.Composite,
		New: func(n *aether.Node) (aether.Component, error) {
			return &probe{p, n}, nil
		},
	}
}

type probe struct {
	Probe
	node *aether.Node
}

func (p *probe) AfterUpdate(ctx *aether.Context) error {
	if p.Log != nil {
		p.Log.Add("update %s", p.node.Path())
	}
	if p.OnUpdate != nil {
		return p.OnUpdate(p.node, ctx)
	}
	return nil
}

func (p *probe) AfterDelete(*aether.Context) error {
	if p.Log != nil {
		p.Log.Add("delete %s", p.node.Path())
	}
	return nil
}

func (p *probe) Methods() aether.Methods { return p.MethodTable }

// State builds a state update. The path is given in dotted form.
func State(path, typ string, state any) aether.Update {
	return aether.Update{
		Path: aether.ParsePath(path), Variant: aether.VariantState,
		Type: typ, State: must.JSON(state),
	}
}

// Call builds a method-call update.
func Call(path, method, callID string, args any) aether.Update {
	return aether.Update{
		Path: aether.ParsePath(path), Variant: aether.VariantMethodCall,
		Method: method, CallID: callID, State: must.JSON(args),
	}
}

// Paths lists the paths of a tree's nodes in pre-order, in dotted form.
func Paths(t *aether.Tree) []string {
	var paths []string
	t.Walk(func(n *aether.Node) bool {
		paths = append(paths, n.Path().String())
		return true
	})
	return paths
}
