package render_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/aether/aethertest"
	. "github.com/synnaxlabs/synnax-sub025/pkg/render"
	"github.com/synnaxlabs/synnax-sub025/pkg/render/rendertest"
)

func newContext() *Context {
	return NewContext(ContextConfig{Canvases: rendertest.Canvases(100, 100)})
}

func recorder(ran *[]string, name string) func(int) error {
	return func(int) error {
		*ran = append(*ran, name)
		return nil
	}
}

func TestLoop_DedupesByKey(t *testing.T) {
	loop := newContext().Loop()
	var ran []string
	for _, name := range []string{"first", "second", "last"} {
		loop.Set(Task{Key: "plot", Render: recorder(&ran, name)})
	}
	if failures := loop.Render(); failures != nil {
		t.Fatalf("Render -> %v", failures)
	}
	if diff := cmp.Diff([]string{"last"}, ran); diff != "" {
		t.Errorf("ran (-want +got):\n%s", diff)
	}
	ran = nil
	loop.Render()
	if len(ran) != 0 {
		t.Errorf("tasks ran again in the next frame: %v", ran)
	}
}

func TestLoop_ReplacementOverwritesPriority(t *testing.T) {
	loop := newContext().Loop()
	var ran []string
	loop.Set(Task{Key: "plot", Priority: High, Render: recorder(&ran, "plot-high"), Canvases: []CanvasVariant{GL}})
	loop.Set(Task{Key: "other", Priority: Low, Render: recorder(&ran, "other"), Canvases: []CanvasVariant{GL}})
	loop.Set(Task{Key: "plot", Priority: Low, Render: recorder(&ran, "plot-low"), Canvases: []CanvasVariant{GL}})
	loop.Render()
	if diff := cmp.Diff([]string{"other", "plot-low"}, ran); diff != "" {
		t.Errorf("ran (-want +got):\n%s", diff)
	}
}

func TestLoop_DrainOrder(t *testing.T) {
	loop := newContext().Loop()
	set := func(key string, p Priority, cs ...CanvasVariant) {
		loop.Set(Task{Key: key, Priority: p, Canvases: cs})
	}
	set("upper-low", Low, Upper2D)
	set("none", High)
	set("gl-low", Low, GL)
	set("upper-high", High, Upper2D)
	set("lower-low", Low, Lower2D)
	set("gl-high", High, GL)
	set("gl-upper", High, GL, Upper2D)
	set("lower-high", High, Lower2D)
	set("gl-low-2", Low, GL)

	want := []string{
		"gl-high", "gl-low", "gl-low-2",
		"gl-upper",
		"lower-high", "lower-low",
		"upper-high", "upper-low",
		"none",
	}
	if diff := cmp.Diff(want, loop.Pending()); diff != "" {
		t.Errorf("Pending (-want +got):\n%s", diff)
	}
}

func TestLoop_FailuresAreIsolated(t *testing.T) {
	loop := newContext().Loop()
	boom := errors.New("boom")
	var ran []string
	loop.Set(Task{Key: "a", Priority: High, Render: func(int) error { return boom }})
	loop.Set(Task{Key: "b", Priority: High, Render: func(int) error { panic("oops") }})
	loop.Set(Task{Key: "c", Render: recorder(&ran, "c")})

	failures := loop.Render()
	if len(failures) != 2 || failures[0].Key != "a" || failures[1].Key != "b" {
		t.Fatalf("failures -> %v", failures)
	}
	if !errors.Is(failures[0], boom) {
		t.Errorf("failure does not wrap the task error")
	}
	if diff := cmp.Diff([]string{"c"}, ran); diff != "" {
		t.Errorf("ran (-want +got):\n%s", diff)
	}

	loop.Set(Task{Key: "a", Render: recorder(&ran, "a")})
	if failures := loop.Render(); failures != nil {
		t.Errorf("next frame -> %v", failures)
	}
}

func TestLoop_CancelAndRemove(t *testing.T) {
	loop := newContext().Loop()
	loop.Set(Task{Key: "plot"})
	loop.Set(Task{Key: "plot.line1"})
	loop.Set(Task{Key: "cursor", Owner: "plot.line1"})
	loop.Set(Task{Key: "x"})
	loop.Remove("x")
	if n := loop.Cancel("plot.line1"); n != 2 {
		t.Errorf("Cancel -> %d, want 2", n)
	}
	if diff := cmp.Diff([]string{"plot"}, loop.Pending()); diff != "" {
		t.Errorf("Pending (-want +got):\n%s", diff)
	}
}

func TestLoop_RequestedIsCoalesced(t *testing.T) {
	loop := newContext().Loop()
	loop.Set(Task{Key: "a"})
	loop.Set(Task{Key: "b"})
	select {
	case <-loop.Requested():
	default:
		t.Fatalf("Requested not signalled")
	}
	select {
	case <-loop.Requested():
		t.Errorf("Requested signalled twice")
	default:
	}
}

func TestLoop_PassesTrackerLevel(t *testing.T) {
	rc := newContext()
	loop := rc.Loop()
	var got []int
	task := Task{Key: "k", Render: func(level int) error {
		got = append(got, level)
		return nil
	}}
	loop.Set(task)
	loop.Render()
	if e := rc.Tracker().Entries(); len(e) != 1 || e[0].Key != "k" || e[0].Samples != 1 {
		t.Errorf("tracker entries -> %v", e)
	}
	if diff := cmp.Diff([]int{0}, got); diff != "" {
		t.Errorf("levels (-want +got):\n%s", diff)
	}
}

// Scenario: a node requests a render in its hook, and deleting it cancels
// the pending task within the same call.
func TestRequestAndDeleteCancel(t *testing.T) {
	rc := newContext()
	reg := aether.NewRegistry()
	reg.MustRegister(
		aethertest.Probe{Type: "plot", Composite: true, OnUpdate: func(n *aether.Node, c *aether.Context) error {
			r, err := Use(c)
			if err != nil {
				return err
			}
			r.Loop().Request(c, Task{Priority: High, Canvases: []CanvasVariant{GL}})
			return r.Claim(n.Path().String(), Box{0, 0, 10, 10})
		}}.Registration(),
		aethertest.Probe{Type: "line", OnUpdate: func(n *aether.Node, c *aether.Context) error {
			r, err := Use(c)
			if err != nil {
				return err
			}
			r.Loop().Request(c, Task{})
			return nil
		}}.Registration(),
	)
	tree := aether.NewTree(aether.TreeConfig{Registry: reg, OnDelete: rc.Forget})
	ctx := context.Background()
	if err := Provide(tree.RootContext(ctx), rc); err != nil {
		t.Fatal(err)
	}
	if err := Provide(tree.RootContext(ctx), rc); !errors.Is(err, ErrAlreadyProvided) {
		t.Errorf("second Provide -> %v", err)
	}
	for _, u := range []aether.Update{
		aethertest.State("plot", "plot", nil),
		aethertest.State("plot.line1", "line", nil),
	} {
		if err := tree.Dispatch(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	if diff := cmp.Diff([]string{"plot", "plot.line1"}, rc.Loop().Pending()); diff != "" {
		t.Errorf("Pending (-want +got):\n%s", diff)
	}
	if err := tree.Delete(ctx, aether.Path{"plot"}); err != nil {
		t.Fatal(err)
	}
	if p := rc.Loop().Pending(); len(p) != 0 {
		t.Errorf("tasks of deleted nodes still pending: %v", p)
	}
	if c := rc.Claims(); len(c) != 0 {
		t.Errorf("claims of deleted nodes remain: %v", c)
	}
}

func TestUse_WithoutProvide(t *testing.T) {
	var useErr error
	reg := aether.NewRegistry()
	reg.MustRegister(aethertest.Probe{Type: "x", OnUpdate: func(n *aether.Node, c *aether.Context) error {
		_, useErr = Use(c)
		return nil
	}}.Registration())
	tree := aether.NewTree(aether.TreeConfig{Registry: reg})
	tree.Dispatch(context.Background(), aethertest.State("x", "x", nil))
	var nf *aether.ContextNotFoundError
	if !errors.As(useErr, &nf) {
		t.Errorf("Use -> %v, want *ContextNotFoundError", useErr)
	}
}
