// Package sqlstore implements storedefs.Store on SQLite.
package sqlstore

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/store/storedefs"
)

// DB is a SQLite backed store.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

var _ storedefs.Store = (*DB)(nil)

// Open opens the database at path, creating parent directories as needed,
// and applies pending migrations.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	db := &DB{conn: conn, path: path}
	if err := db.Migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path of the database file.
func (db *DB) Path() string { return db.path }

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}
	var current int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Snapshots},
		{2, migrationV2States},
		{3, migrationV3PathSeparator},
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}
	return nil
}

const migrationV1Snapshots = `
CREATE TABLE IF NOT EXISTS snapshots (
	session TEXT PRIMARY KEY,
	taken_at INTEGER NOT NULL,
	nodes INTEGER NOT NULL,
	body TEXT NOT NULL
);
`

const migrationV2States = `
CREATE TABLE IF NOT EXISTS states (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	scope TEXT NOT NULL,
	path TEXT NOT NULL,
	type TEXT NOT NULL,
	state TEXT NOT NULL,
	UNIQUE(scope, path)
);

CREATE INDEX IF NOT EXISTS idx_states_scope ON states(scope);
`

// Path segments may contain ".", so stored paths join them with a unit
// separator instead.
const migrationV3PathSeparator = `
UPDATE states SET path = replace(path, '.', char(31));
`

const (
	pathSep = "\x1f"
	// The byte after pathSep; every descendant key of k sorts between
	// k+pathSep and k+pathEnd.
	pathEnd = "\x20"
)

func pathKey(p aether.Path) string { return strings.Join(p, pathSep) }

// PutSnapshot stores a snapshot, replacing any with the same session.
func (db *DB) PutSnapshot(s storedefs.Snapshot) error {
	body, err := json.Marshal(s)
	if err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err = db.conn.Exec(`
		INSERT INTO snapshots (session, taken_at, nodes, body) VALUES (?, ?, ?, ?)
		ON CONFLICT(session) DO UPDATE SET
			taken_at = excluded.taken_at, nodes = excluded.nodes, body = excluded.body
	`, s.Session, s.Time.UnixNano(), len(s.Nodes), string(body))
	return err
}

// Snapshot returns the snapshot of a session.
func (db *DB) Snapshot(session string) (storedefs.Snapshot, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var s storedefs.Snapshot
	var body string
	err := db.conn.QueryRow("SELECT body FROM snapshots WHERE session = ?", session).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return s, storedefs.ErrNoSnapshot
	} else if err != nil {
		return s, err
	}
	return s, json.Unmarshal([]byte(body), &s)
}

// Snapshots lists snapshots, most recent first.
func (db *DB) Snapshots() ([]storedefs.SnapshotInfo, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	rows, err := db.conn.Query(
		"SELECT session, taken_at, nodes FROM snapshots ORDER BY taken_at DESC, session")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var infos []storedefs.SnapshotInfo
	for rows.Next() {
		var info storedefs.SnapshotInfo
		var ns int64
		if err := rows.Scan(&info.Session, &ns, &info.Nodes); err != nil {
			return nil, err
		}
		info.Time = time.Unix(0, ns).UTC()
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// DelSnapshot deletes the snapshot of a session.
func (db *DB) DelSnapshot(session string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.conn.Exec("DELETE FROM snapshots WHERE session = ?", session)
	return err
}

// PutState records the state of a path, keeping its original sequence
// number if it already exists.
func (db *DB) PutState(scope string, e storedefs.StateEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, err := db.conn.Exec(`
		INSERT INTO states (scope, path, type, state) VALUES (?, ?, ?, ?)
		ON CONFLICT(scope, path) DO UPDATE SET type = excluded.type, state = excluded.state
	`, scope, pathKey(e.Path), e.Type, string(e.State))
	return err
}

// DelState deletes the entry of a path and every entry below it.
func (db *DB) DelState(scope string, p aether.Path) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(p) == 0 {
		_, err := db.conn.Exec("DELETE FROM states WHERE scope = ?", scope)
		return err
	}
	key := pathKey(p)
	_, err := db.conn.Exec(
		"DELETE FROM states WHERE scope = ? AND (path = ? OR (path >= ? AND path < ?))",
		scope, key, key+pathSep, key+pathEnd)
	return err
}

// States lists the entries of a scope by sequence number.
func (db *DB) States(scope string) ([]storedefs.StateEntry, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	rows, err := db.conn.Query(
		"SELECT seq, path, type, state FROM states WHERE scope = ? ORDER BY seq", scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []storedefs.StateEntry
	for rows.Next() {
		var e storedefs.StateEntry
		var path, state string
		if err := rows.Scan(&e.Seq, &path, &e.Type, &state); err != nil {
			return nil, err
		}
		e.Path = aether.Path(strings.Split(path, pathSep))
		e.State = json.RawMessage(state)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
