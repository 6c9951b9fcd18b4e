package storetest

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/store/storedefs"
)

// Entry builds a StateEntry from a dotted path.
func Entry(path, typ, state string) storedefs.StateEntry {
	return storedefs.StateEntry{
		Path: aether.ParsePath(path), Type: typ, State: json.RawMessage(state)}
}

func paths(entries []storedefs.StateEntry) []string {
	var ps []string
	for _, e := range entries {
		ps = append(ps, e.Path.String())
	}
	return ps
}

// TestStates tests the state log functionality of a Store.
func TestStates(t *testing.T, store storedefs.Store) {
	if es, err := store.States("empty"); err != nil || len(es) != 0 {
		t.Errorf("States(empty) -> %v, %v, want empty, nil", es, err)
	}

	puts := []storedefs.StateEntry{
		Entry("root", "group", `{}`),
		Entry("root.a", "line", `{"w":1}`),
		Entry("root.a.p", "point", `{}`),
		Entry("root.ab", "line", `{}`),
		Entry("root.b", "line", `{}`),
	}
	for _, e := range puts {
		if err := store.PutState("s", e); err != nil {
			t.Fatalf("PutState(%v) -> error %v", e.Path, err)
		}
	}
	// Updating keeps the original position.
	if err := store.PutState("s", Entry("root.a", "line", `{"w":3}`)); err != nil {
		t.Fatalf("PutState again -> error %v", err)
	}
	// Other scopes are separate.
	if err := store.PutState("other", Entry("root", "group", `{}`)); err != nil {
		t.Fatalf("PutState(other) -> error %v", err)
	}

	es, err := store.States("s")
	if err != nil {
		t.Fatalf("States(s) -> error %v", err)
	}
	want := []string{"root", "root.a", "root.a.p", "root.ab", "root.b"}
	if diff := cmp.Diff(want, paths(es)); diff != "" {
		t.Errorf("States(s) paths (-want +got):\n%s", diff)
	}
	if len(es) > 1 && string(es[1].State) != `{"w":3}` {
		t.Errorf("root.a state = %s, want {\"w\":3}", es[1].State)
	}
	for i := 1; i < len(es); i++ {
		if es[i].Seq <= es[i-1].Seq {
			t.Errorf("Seq not increasing: %v", es)
		}
	}

	if err := store.DelState("s", aether.ParsePath("root.a")); err != nil {
		t.Fatalf("DelState(root.a) -> error %v", err)
	}
	es, _ = store.States("s")
	want = []string{"root", "root.ab", "root.b"}
	if diff := cmp.Diff(want, paths(es)); diff != "" {
		t.Errorf("States(s) after DelState (-want +got):\n%s", diff)
	}

	if err := store.DelState("s", nil); err != nil {
		t.Fatalf("DelState(root) -> error %v", err)
	}
	if es, _ = store.States("s"); len(es) != 0 {
		t.Errorf("States(s) after clearing -> %v", es)
	}
	if es, _ = store.States("other"); len(es) != 1 {
		t.Errorf("States(other) -> %v, want one entry", es)
	}
	if err := store.DelState("missing", aether.ParsePath("x")); err != nil {
		t.Errorf("DelState on missing scope -> error %v", err)
	}

	testStateSegments(t, store)
}

// Segments are opaque: they may contain dots or multi-byte characters.
func testStateSegments(t *testing.T, store storedefs.Store) {
	puts := []aether.Path{{"é"}, {"é", "x"}, {"a.b"}, {"a", "b"}}
	for _, p := range puts {
		if err := store.PutState("seg", storedefs.StateEntry{Path: p, State: json.RawMessage(`{}`)}); err != nil {
			t.Fatalf("PutState(%q) -> error %v", p, err)
		}
	}
	segs := func() []aether.Path {
		es, err := store.States("seg")
		if err != nil {
			t.Fatalf("States(seg) -> error %v", err)
		}
		var ps []aether.Path
		for _, e := range es {
			ps = append(ps, e.Path)
		}
		return ps
	}
	if diff := cmp.Diff(puts, segs()); diff != "" {
		t.Errorf("States(seg) paths (-want +got):\n%s", diff)
	}

	if err := store.DelState("seg", aether.Path{"é"}); err != nil {
		t.Fatalf("DelState(é) -> error %v", err)
	}
	if diff := cmp.Diff([]aether.Path{{"a.b"}, {"a", "b"}}, segs()); diff != "" {
		t.Errorf("States(seg) after DelState(é) (-want +got):\n%s", diff)
	}
	if err := store.DelState("seg", aether.Path{"a"}); err != nil {
		t.Fatalf("DelState(a) -> error %v", err)
	}
	if diff := cmp.Diff([]aether.Path{{"a.b"}}, segs()); diff != "" {
		t.Errorf("States(seg) after DelState(a) (-want +got):\n%s", diff)
	}
}
