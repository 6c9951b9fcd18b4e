package sqlstore_test

import (
	"path/filepath"
	"testing"

	"github.com/synnaxlabs/synnax-sub025/pkg/store/sqlstore"
	"github.com/synnaxlabs/synnax-sub025/pkg/store/storetest"
)

func open(t *testing.T) *sqlstore.DB {
	t.Helper()
	db, err := sqlstore.Open(filepath.Join(t.TempDir(), "sub", "aether.db"))
	if err != nil {
		t.Fatalf("Open -> error %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSnapshots(t *testing.T) {
	storetest.TestSnapshots(t, open(t))
}

func TestStates(t *testing.T) {
	storetest.TestStates(t, open(t))
}

func TestMigrate_Idempotent(t *testing.T) {
	db := open(t)
	for i := 0; i < 2; i++ {
		if err := db.Migrate(); err != nil {
			t.Errorf("Migrate #%d -> error %v", i, err)
		}
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aether.db")
	db, err := sqlstore.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.PutState("s", storetest.Entry("root", "group", "{}")); err != nil {
		t.Fatal(err)
	}
	db.Close()

	db, err = sqlstore.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	es, err := db.States("s")
	if err != nil || len(es) != 1 || es[0].Path.String() != "root" {
		t.Errorf("States after reopen -> %v, %v", es, err)
	}
}
