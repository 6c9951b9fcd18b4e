package aether_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	. "github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/aether/aethertest"
)

// A provider sets "theme" from its state; a reader logs what it sees.
func contextProbes(seen map[string]string) []aethertest.Probe {
	read := func(n *Node, c *Context) error {
		v, _ := c.Get("theme")
		s, _ := v.(string)
		seen[n.Path().String()] = s
		return nil
	}
	return []aethertest.Probe{
		{Type: "provider", Composite: true, OnUpdate: func(n *Node, c *Context) error {
			read(n, c)
			if theme, ok := n.State()["theme"]; ok {
				c.Set("theme", theme)
			}
			return nil
		}},
		{Type: "quiet", Composite: true, OnUpdate: func(n *Node, c *Context) error {
			c.SetQuiet("theme", n.State()["theme"])
			return nil
		}},
		{Type: "reader", OnUpdate: read},
	}
}

func TestContext_ScopedToDescendants(t *testing.T) {
	seen := map[string]string{}
	f := setup(t, contextProbes(seen)...)
	f.dispatch(t,
		aethertest.State("a", "provider", map[string]any{"theme": "dark"}),
		aethertest.State("a.b", "provider", map[string]any{"theme": "light"}),
		aethertest.State("a.b.r", "reader", nil),
		aethertest.State("a.r", "reader", nil),
		aethertest.State("s", "reader", nil))

	want := map[string]string{
		// A node never sees its own value.
		"a": "",
		// The nearest ancestor wins.
		"a.b":   "dark",
		"a.b.r": "light",
		"a.r":   "dark",
		// Siblings of the provider see nothing.
		"s": "",
	}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("seen (-want +got):\n%s", diff)
	}
}

func TestContext_SetTriggersDescendants(t *testing.T) {
	seen := map[string]string{}
	f := setup(t, contextProbes(seen)...)
	f.dispatch(t,
		aethertest.State("a", "provider", map[string]any{"theme": "dark"}),
		aethertest.State("a.p", "plot", nil),
		aethertest.State("a.p.r", "reader", nil),
		aethertest.State("a.r", "reader", nil))
	f.log.Reset()

	f.dispatch(t, aethertest.State("a", "provider", map[string]any{"theme": "light"}))
	wantEvents := []string{"update a", "update a.p", "update a.p.r", "update a.r"}
	if diff := cmp.Diff(wantEvents, f.log.Events()); diff != "" {
		t.Errorf("hooks (-want +got):\n%s", diff)
	}
	if seen["a.p.r"] != "light" || seen["a.r"] != "light" {
		t.Errorf("descendants did not see new value: %v", seen)
	}
}

func TestContext_SetQuietDoesNotTrigger(t *testing.T) {
	seen := map[string]string{}
	f := setup(t, contextProbes(seen)...)
	f.dispatch(t,
		aethertest.State("q", "quiet", map[string]any{"theme": "dark"}),
		aethertest.State("q.r", "reader", nil))
	f.log.Reset()
	f.dispatch(t, aethertest.State("q", "quiet", map[string]any{"theme": "light"}))
	if diff := cmp.Diff([]string{"update q"}, f.log.Events()); diff != "" {
		t.Errorf("hooks (-want +got):\n%s", diff)
	}
	if seen["q.r"] != "dark" {
		t.Errorf("reader saw %q before being re-run", seen["q.r"])
	}
}

func TestContext_UpdateVariant(t *testing.T) {
	seen := map[string]string{}
	f := setup(t, contextProbes(seen)...)
	f.dispatch(t,
		aethertest.State("p", "plot", nil),
		aethertest.State("p.r", "reader", nil),
		Update{Path: nil, Variant: VariantContext, State: []byte(`{"theme":"root"}`)})
	if seen["p.r"] != "root" {
		t.Errorf("reader saw %q, want root", seen["p.r"])
	}
	f.dispatch(t, Update{Path: Path{"p"}, Variant: VariantContext, State: []byte(`{"theme":"p"}`)})
	if seen["p.r"] != "p" {
		t.Errorf("reader saw %q, want p", seen["p.r"])
	}

	err := f.tree.Dispatch(ctx, Update{Path: Path{"nope"}, Variant: VariantContext, State: []byte(`{}`)})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("context update to absent node -> %v, want *NotFoundError", err)
	}
}

func TestContext_RootValuesAndUse(t *testing.T) {
	var (
		got    int
		gotErr error
	)
	reg := NewRegistry()
	reg.MustRegister(aethertest.Probe{Type: "user", OnUpdate: func(n *Node, c *Context) error {
		got, gotErr = Use[int](c, "answer")
		_, err := Use[string](c, "answer")
		if err == nil {
			t.Errorf("Use with wrong type -> nil error")
		}
		var nf *ContextNotFoundError
		if _, err := Use[int](c, "missing"); !errors.As(err, &nf) {
			t.Errorf("Use of missing key -> %v", err)
		}
		if c.SetPreviously("answer") || !c.Has("answer") {
			t.Errorf("SetPreviously/Has wrong")
		}
		return nil
	}}.Registration())
	tree := NewTree(TreeConfig{Registry: reg, RootContext: map[string]any{"answer": 42}})
	if err := tree.Dispatch(ctx, aethertest.State("u", "user", nil)); err != nil {
		t.Fatal(err)
	}
	if got != 42 || gotErr != nil {
		t.Errorf("Use -> (%v, %v), want (42, nil)", got, gotErr)
	}
}

func TestContext_SetPreviously(t *testing.T) {
	var before, after bool
	f := setup(t, aethertest.Probe{Type: "once", Composite: true, OnUpdate: func(n *Node, c *Context) error {
		before = c.SetPreviously("k")
		c.SetQuiet("k", 1)
		after = c.SetPreviously("k")
		return nil
	}})
	f.dispatch(t, aethertest.State("o", "once", nil))
	if before || !after {
		t.Errorf("first update: before=%v after=%v", before, after)
	}
	f.dispatch(t, aethertest.State("o", "once", nil))
	if !before {
		t.Errorf("second update: SetPreviously -> false")
	}
}
