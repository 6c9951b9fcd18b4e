package presentation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/aether/aethertest"
	"github.com/synnaxlabs/synnax-sub025/pkg/comms"
	. "github.com/synnaxlabs/synnax-sub025/pkg/presentation"
	"github.com/synnaxlabs/synnax-sub025/pkg/schema"
	"github.com/synnaxlabs/synnax-sub025/pkg/store"
	"github.com/synnaxlabs/synnax-sub025/pkg/store/storedefs"
	"github.com/synnaxlabs/synnax-sub025/pkg/testutil"
	"github.com/synnaxlabs/synnax-sub025/pkg/worker"
)

func registry(log *aethertest.Log) *aether.Registry {
	reg := aether.NewRegistry()
	reg.MustRegister(
		aethertest.Probe{Type: "group", Composite: true}.Registration(),
		aethertest.Probe{
			Type:   "counter",
			Schema: schema.Object(schema.F("n", schema.Number().Default(0))),
			MethodTable: aether.Methods{
				"twice": {
					Args:   schema.Number(),
					Result: schema.Number(),
					Call: func(_ *aether.Context, args any) (any, error) {
						return 2 * args.(float64), nil
					},
				},
			},
		}.Registration(),
		aethertest.Probe{
			Type: "style",
			Schema: schema.Object(
				schema.F("color", schema.String().Default("")),
				schema.F("width", schema.Number().Default(1))),
		}.Registration(),
		aethertest.Probe{
			Type: "reader",
			OnUpdate: func(_ *aether.Node, c *aether.Context) error {
				v, _ := c.Get("theme")
				log.Add("theme %v", v)
				return nil
			},
		}.Registration(),
		aethertest.Probe{
			Type: "echo",
			Schema: schema.Object(
				schema.F("v", schema.Number().Default(0)),
				schema.F("ack", schema.Bool().Default(false))),
			OnUpdate: func(n *aether.Node, c *aether.Context) error {
				if n.State()["ack"] == true {
					return nil
				}
				return n.SetState(c.Context(), map[string]any{"ack": true})
			},
		}.Registration(),
	)
	return reg
}

type fixture struct {
	client *Client
	worker *worker.Worker
	log    *aethertest.Log
}

// Starts a worker and connects a client to it.
func setup(t *testing.T, st storedefs.Store) fixture {
	t.Helper()
	log := &aethertest.Log{}
	pres, work := comms.Pipe()
	w, err := worker.New(worker.Config{Conn: work, Registry: registry(log), FrameRate: 1})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	c := New(Config{Conn: pres, Store: st, Scope: "test"})
	t.Cleanup(func() {
		cancel()
		<-done
		c.Close()
	})
	return fixture{c, w, log}
}

func (f fixture) paths(t *testing.T) []string {
	t.Helper()
	infos, err := f.worker.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var ps []string
	for _, info := range infos {
		ps = append(ps, info.Path.String())
	}
	return ps
}

func (f fixture) waitPaths(t *testing.T, want ...string) {
	t.Helper()
	testutil.Eventually(t, time.Second, func() bool {
		return cmp.Equal(want, f.paths(t))
	})
}

var ctx = context.Background()

func TestCall(t *testing.T) {
	f := setup(t, nil)
	if err := f.client.SetState(ctx, aether.Path{"c"}, "counter", nil); err != nil {
		t.Fatal(err)
	}
	result, err := f.client.Call(ctx, aether.Path{"c"}, "twice", 4)
	if err != nil || result != 8.0 {
		t.Errorf("Call -> %v, %v, want 8, nil", result, err)
	}
}

func TestCall_Errors(t *testing.T) {
	f := setup(t, nil)
	f.client.SetState(ctx, aether.Path{"c"}, "counter", nil)

	_, err := f.client.Call(ctx, aether.Path{"c"}, "nope", nil)
	var mnf *aether.MethodNotFoundError
	if !errors.As(err, &mnf) || mnf.Method != "nope" {
		t.Errorf("Call(nope) -> %v, want MethodNotFoundError", err)
	}

	_, err = f.client.Call(ctx, aether.Path{"c"}, "twice", "four")
	var v *schema.Violation
	if !errors.As(err, &v) {
		t.Errorf("Call with bad args -> %v, want Violation", err)
	}

	_, err = f.client.Call(ctx, aether.Path{"missing"}, "twice", 1)
	var nf *aether.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("Call on missing node -> %v, want NotFoundError", err)
	}
}

func TestCall_ContextCanceled(t *testing.T) {
	pres, _ := comms.Pipe()
	c := New(Config{Conn: pres})
	defer c.Close()
	cctx, cancel := context.WithTimeout(ctx, testutil.Scaled(10*time.Millisecond))
	defer cancel()
	if _, err := c.Call(cctx, aether.Path{"x"}, "m", nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Call without a worker -> %v, want DeadlineExceeded", err)
	}
}

func TestCall_ConnectionClosed(t *testing.T) {
	pres, work := comms.Pipe()
	c := New(Config{Conn: pres})
	go func() {
		<-work.Receive()
		work.Close()
	}()
	if _, err := c.Call(ctx, aether.Path{"x"}, "m", nil); !errors.Is(err, comms.ErrClosed) {
		t.Errorf("Call on closed connection -> %v, want ErrClosed", err)
	}
	select {
	case <-c.Done():
	case <-time.After(testutil.Scaled(time.Second)):
		t.Error("client did not stop receiving")
	}
}

func TestSetState_ParentFirst(t *testing.T) {
	f := setup(t, nil)
	err := f.client.SetState(ctx, aether.Path{"g", "c"}, "counter", nil)
	var orphan *aether.OrphanPathError
	if !errors.As(err, &orphan) || !orphan.Missing.Equal(aether.Path{"g"}) {
		t.Errorf("SetState(g.c) before g -> %v, want OrphanPathError for g", err)
	}
	if err := f.client.SetState(ctx, nil, "group", nil); err == nil {
		t.Error("SetState on the root succeeded")
	}

	f.client.SetState(ctx, aether.Path{"g"}, "group", nil)
	if err := f.client.SetState(ctx, aether.Path{"g", "c"}, "counter", nil); err != nil {
		t.Fatal(err)
	}
	f.waitPaths(t, "g", "g.c")

	if err := f.client.Delete(ctx, aether.Path{"g"}); err != nil {
		t.Fatal(err)
	}
	f.waitPaths(t)
	if err := f.client.SetState(ctx, aether.Path{"g", "c"}, "counter", nil); !errors.As(err, &orphan) {
		t.Errorf("SetState(g.c) after deleting g -> %v, want OrphanPathError", err)
	}
}

func TestOnState(t *testing.T) {
	f := setup(t, nil)
	got := make(chan map[string]any, 4)
	cancel := f.client.OnState(aether.Path{"e"}, func(s map[string]any) { got <- s })
	defer cancel()

	f.client.SetState(ctx, aether.Path{"e"}, "echo", map[string]any{"v": 3})
	select {
	case s := <-got:
		if diff := cmp.Diff(map[string]any{"v": 3.0, "ack": true}, s); diff != "" {
			t.Errorf("echoed state (-want +got):\n%s", diff)
		}
	case <-time.After(testutil.Scaled(time.Second)):
		t.Fatal("no state echo")
	}
}

func TestSetContext(t *testing.T) {
	f := setup(t, nil)
	f.client.SetState(ctx, aether.Path{"g"}, "group", nil)
	f.client.SetState(ctx, aether.Path{"g", "r"}, "reader", nil)
	if err := f.client.SetContext(ctx, aether.Path{"g"}, map[string]any{"theme": "dark"}); err != nil {
		t.Fatal(err)
	}
	testutil.Eventually(t, time.Second, func() bool {
		return cmp.Equal([]string{"theme <nil>", "theme dark"}, f.log.Events())
	})
}

func TestRestore(t *testing.T) {
	st, cleanup := store.MustGetTempStore()
	t.Cleanup(cleanup)

	f := setup(t, st)
	f.client.SetState(ctx, aether.Path{"g"}, "group", nil)
	f.client.SetState(ctx, aether.Path{"g", "c"}, "counter", map[string]any{"n": 1})
	f.client.SetState(ctx, aether.Path{"g", "d"}, "counter", nil)
	f.client.SetState(ctx, aether.Path{"g", "c"}, "", map[string]any{"n": 5})
	f.client.Delete(ctx, aether.Path{"g", "d"})

	g := setup(t, st)
	if err := g.client.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	g.waitPaths(t, "g", "g.c")
	infos, _ := g.worker.Snapshot(ctx)
	if n := infos[1].State["n"]; n != 5.0 {
		t.Errorf("restored g.c n = %v, want 5", n)
	}
	// Restored paths count as created.
	if err := g.client.SetState(ctx, aether.Path{"g", "e"}, "counter", nil); err != nil {
		t.Errorf("SetState under restored parent -> %v", err)
	}
}

func TestRestore_MergesPatches(t *testing.T) {
	st, cleanup := store.MustGetTempStore()
	t.Cleanup(cleanup)

	f := setup(t, st)
	p := aether.Path{"s"}
	f.client.SetState(ctx, p, "style", map[string]any{"color": "red"})
	f.client.SetState(ctx, p, "", map[string]any{"width": 3})

	g := setup(t, st)
	if err := g.client.Restore(ctx); err != nil {
		t.Fatal(err)
	}
	g.waitPaths(t, "s")
	infos, _ := g.worker.Snapshot(ctx)
	want := map[string]any{"color": "red", "width": 3.0}
	if diff := cmp.Diff(want, infos[0].State); diff != "" {
		t.Errorf("restored state (-want +got):\n%s", diff)
	}

	// Patches sent after Restore merge onto the restored state.
	g.client.SetState(ctx, p, "", map[string]any{"color": "blue"})
	entries, err := g.client.Persisted()
	if err != nil {
		t.Fatal(err)
	}
	if got := string(entries[0].State); got != `{"color":"blue","width":3}` {
		t.Errorf("persisted state = %s", got)
	}
}
