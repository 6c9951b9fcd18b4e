package storetest

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/store/storedefs"
)

var (
	t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Minute)
)

// TestSnapshots tests the snapshot functionality of a Store.
func TestSnapshots(t *testing.T, store storedefs.Store) {
	if _, err := store.Snapshot("nope"); !matchErr(err, storedefs.ErrNoSnapshot) {
		t.Errorf("Snapshot(nope) -> error %v, want %v", err, storedefs.ErrNoSnapshot)
	}

	a := storedefs.Snapshot{
		Session: "a", Time: t0,
		Nodes: []aether.NodeInfo{
			{Path: aether.Path{"root"}, Type: "group", Composite: true, State: map[string]any{}},
			{Path: aether.Path{"root", "x"}, Type: "line", State: map[string]any{"width": 2.0}},
		},
		Levels: map[string]int{"root.x": 1},
	}
	b := storedefs.Snapshot{Session: "b", Time: t1}
	for _, s := range []storedefs.Snapshot{a, b} {
		if err := store.PutSnapshot(s); err != nil {
			t.Fatalf("PutSnapshot(%q) -> error %v", s.Session, err)
		}
	}

	got, err := store.Snapshot("a")
	if err != nil {
		t.Fatalf("Snapshot(a) -> error %v", err)
	}
	if diff := cmp.Diff(a, got); diff != "" {
		t.Errorf("Snapshot(a) (-want +got):\n%s", diff)
	}

	infos, err := store.Snapshots()
	wantInfos := []storedefs.SnapshotInfo{{Session: "b", Time: t1, Nodes: 0}, {Session: "a", Time: t0, Nodes: 2}}
	if err != nil || !cmp.Equal(infos, wantInfos) {
		t.Errorf("Snapshots() -> %v, %v, want %v, nil", infos, err, wantInfos)
	}

	a.Time = t1.Add(time.Minute)
	a.Nodes = a.Nodes[:1]
	if err := store.PutSnapshot(a); err != nil {
		t.Fatalf("PutSnapshot(a) again -> error %v", err)
	}
	infos, _ = store.Snapshots()
	wantInfos = []storedefs.SnapshotInfo{{Session: "a", Time: a.Time, Nodes: 1}, {Session: "b", Time: t1, Nodes: 0}}
	if !cmp.Equal(infos, wantInfos) {
		t.Errorf("Snapshots() after replace -> %v, want %v", infos, wantInfos)
	}

	if err := store.DelSnapshot("a"); err != nil {
		t.Errorf("DelSnapshot(a) -> error %v", err)
	}
	if _, err := store.Snapshot("a"); !matchErr(err, storedefs.ErrNoSnapshot) {
		t.Errorf("Snapshot(a) after delete -> error %v", err)
	}
}
