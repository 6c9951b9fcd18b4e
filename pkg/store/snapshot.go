package store

import (
	"encoding/json"
	"sort"

	bolt "go.etcd.io/bbolt"

	. "github.com/synnaxlabs/synnax-sub025/pkg/store/storedefs"
)

func init() {
	initDB["initialize snapshot table"] = func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketSnapshot))
		return err
	}
}

// PutSnapshot stores a snapshot under its session.
func (s *dbStore) PutSnapshot(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSnapshot)).Put([]byte(snap.Session), data)
	})
}

// Snapshot gets the snapshot of a session.
func (s *dbStore) Snapshot(session string) (Snapshot, error) {
	var snap Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketSnapshot)).Get([]byte(session))
		if v == nil {
			return ErrNoSnapshot
		}
		return json.Unmarshal(v, &snap)
	})
	return snap, err
}

// Snapshots lists all snapshots, most recent first.
func (s *dbStore) Snapshots() ([]SnapshotInfo, error) {
	var infos []SnapshotInfo
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSnapshot)).ForEach(func(k, v []byte) error {
			var snap Snapshot
			if err := json.Unmarshal(v, &snap); err != nil {
				return err
			}
			infos = append(infos, SnapshotInfo{Session: snap.Session, Time: snap.Time, Nodes: len(snap.Nodes)})
			return nil
		})
	})
	sortInfos(infos)
	return infos, err
}

func sortInfos(infos []SnapshotInfo) {
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].Time.Equal(infos[j].Time) {
			return infos[i].Time.After(infos[j].Time)
		}
		return infos[i].Session < infos[j].Session
	})
}

// DelSnapshot deletes the snapshot of a session.
func (s *dbStore) DelSnapshot(session string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketSnapshot)).Delete([]byte(session))
	})
}
