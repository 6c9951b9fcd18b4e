package store

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	bolt "go.etcd.io/bbolt"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	. "github.com/synnaxlabs/synnax-sub025/pkg/store/storedefs"
)

func init() {
	initDB["initialize state table"] = func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketState))
		return err
	}
}

// Path segments may contain ".", so keys join them with a unit separator.
const keySep = "\x1f"

func pathKey(p aether.Path) []byte { return []byte(strings.Join(p, keySep)) }

// PutState records the state of a path. The entry keeps the sequence number
// it was first put with.
func (s *dbStore) PutState(scope string, e StateEntry) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.Bucket([]byte(bucketState)).CreateBucketIfNotExists([]byte(scope))
		if err != nil {
			return err
		}
		k := pathKey(e.Path)
		if v := b.Get(k); v != nil {
			var old StateEntry
			if err := json.Unmarshal(v, &old); err != nil {
				return err
			}
			e.Seq = old.Seq
		} else {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			e.Seq = int(seq)
		}
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put(k, data)
	})
}

// DelState deletes the entry of a path and of every path below it.
func (s *dbStore) DelState(scope string, p aether.Path) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketState)).Bucket([]byte(scope))
		if b == nil {
			return nil
		}
		k := pathKey(p)
		prefix := append(append([]byte(nil), k...), keySep...)
		var doomed [][]byte
		if len(p) == 0 {
			prefix = nil
		}
		c := b.Cursor()
		for key, _ := c.Seek(k); key != nil; key, _ = c.Next() {
			if bytes.Equal(key, k) || bytes.HasPrefix(key, prefix) {
				doomed = append(doomed, append([]byte(nil), key...))
			} else if !bytes.HasPrefix(key, k) {
				break
			}
		}
		for _, key := range doomed {
			if err := b.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// States lists the entries of a scope by sequence number.
func (s *dbStore) States(scope string) ([]StateEntry, error) {
	var entries []StateEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketState)).Bucket([]byte(scope))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var e StateEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	return entries, err
}
