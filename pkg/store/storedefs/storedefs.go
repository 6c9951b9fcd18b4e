// Package storedefs contains definitions of the store API.
//
// It is a separate package so that packages that only depend on the store API
// do not need to depend on the concrete implementations.
package storedefs

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
)

// ErrNoSnapshot is returned by Snapshot when there is no snapshot for the
// session.
var ErrNoSnapshot = errors.New("no such snapshot")

// Store is an interface satisfied by the storage backends.
type Store interface {
	// PutSnapshot stores s, replacing any snapshot of the same session.
	PutSnapshot(s Snapshot) error
	Snapshot(session string) (Snapshot, error)
	// Snapshots lists stored snapshots, most recent first.
	Snapshots() ([]SnapshotInfo, error)
	DelSnapshot(session string) error

	// PutState records the last known state of a path within a scope. A path
	// keeps the position it was first put at.
	PutState(scope string, e StateEntry) error
	// DelState forgets a path and all paths below it.
	DelState(scope string, path aether.Path) error
	// States returns the entries of a scope in the order they were first put.
	States(scope string) ([]StateEntry, error)
}

// Snapshot is the tree of a worker session at some point in time.
type Snapshot struct {
	Session string            `json:"session" yaml:"session"`
	Time    time.Time         `json:"time" yaml:"time"`
	Nodes   []aether.NodeInfo `json:"nodes" yaml:"nodes"`
	Levels  map[string]int    `json:"levels,omitempty" yaml:"levels,omitempty"`
}

// SnapshotInfo summarizes a Snapshot.
type SnapshotInfo struct {
	Session string    `json:"session"`
	Time    time.Time `json:"time"`
	Nodes   int       `json:"nodes"`
}

// StateEntry is the last state sent for a path.
type StateEntry struct {
	Path  aether.Path     `json:"path"`
	Type  string          `json:"type"`
	State json.RawMessage `json:"state"`
	Seq   int             `json:"seq"`
}
