package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/aether/aethertest"
	"github.com/synnaxlabs/synnax-sub025/pkg/comms/wsconn"
	"github.com/synnaxlabs/synnax-sub025/pkg/perf"
	"github.com/synnaxlabs/synnax-sub025/pkg/presentation"
	. "github.com/synnaxlabs/synnax-sub025/pkg/server"
	"github.com/synnaxlabs/synnax-sub025/pkg/store"
	"github.com/synnaxlabs/synnax-sub025/pkg/store/storedefs"
	"github.com/synnaxlabs/synnax-sub025/pkg/testutil"
	"github.com/synnaxlabs/synnax-sub025/pkg/worker"
)

type fixture struct {
	srv   *Server
	http  *httptest.Server
	store storedefs.Store
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st, cleanup := store.MustGetTempStore()
	t.Cleanup(cleanup)
	reg := aether.NewRegistry()
	reg.MustRegister(
		aethertest.Probe{Type: "plot", Composite: true}.Registration(),
		aethertest.Probe{Type: "line"}.Registration(),
	)
	srv := New(Config{
		Registry: reg, Store: st, Width: 20, Height: 10,
		Worker: worker.Config{FrameRate: 1},
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return &fixture{srv, ts, st}
}

func (f *fixture) connect(t *testing.T) *presentation.Client {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/sync"
	conn, err := wsconn.Dial(context.Background(), url)
	if err != nil {
		t.Fatal(err)
	}
	c := presentation.New(presentation.Config{Conn: conn})
	t.Cleanup(func() { c.Close() })
	return c
}

func (f *fixture) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(f.http.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, string(body)
}

func (f *fixture) waitSessions(t *testing.T, n int) {
	t.Helper()
	testutil.Eventually(t, 2*time.Second, func() bool { return len(f.srv.Sessions()) == n })
}

var ctx = context.Background()

func TestSession(t *testing.T) {
	f := setup(t)
	c := f.connect(t)
	f.waitSessions(t, 1)
	id := f.srv.Sessions()[0]

	c.SetState(ctx, aether.Path{"plot"}, "plot", nil)
	c.SetState(ctx, aether.Path{"plot", "l"}, "line", nil)

	var infos []SessionInfo
	testutil.Eventually(t, 2*time.Second, func() bool {
		_, body := f.get(t, "/sessions")
		return json.Unmarshal([]byte(body), &infos) == nil && len(infos) == 1 && infos[0].Nodes == 2
	})
	if infos[0].ID != id {
		t.Errorf("session id = %s, want %s", infos[0].ID, id)
	}

	code, body := f.get(t, "/sessions/"+id+"/tree")
	var nodes []aether.NodeInfo
	if code != http.StatusOK || json.Unmarshal([]byte(body), &nodes) != nil || len(nodes) != 2 {
		t.Errorf("GET tree -> %d %s", code, body)
	}
	code, body = f.get(t, "/sessions/"+id+"/tree.svg")
	if code != http.StatusOK || !strings.Contains(body, "<svg") {
		t.Errorf("GET tree.svg -> %d %.40s", code, body)
	}
	code, body = f.get(t, "/sessions/"+id+"/levels")
	var entries []perf.Entry
	if code != http.StatusOK || json.Unmarshal([]byte(body), &entries) != nil {
		t.Errorf("GET levels -> %d %s", code, body)
	}
	code, body = f.get(t, "/metrics")
	if code != http.StatusOK || !strings.Contains(body, "aether_sessions_active 1") {
		t.Errorf("GET metrics -> %d, missing active sessions gauge:\n%s", code, body)
	}

	// Closing the connection ends the session and stores its snapshot.
	c.Close()
	f.waitSessions(t, 0)
	snap, err := f.store.Snapshot(id)
	if err != nil || len(snap.Nodes) != 2 {
		t.Errorf("stored snapshot -> %v, %v", snap, err)
	}
	code, body = f.get(t, "/snapshots/"+id)
	if code != http.StatusOK || !strings.Contains(body, id) {
		t.Errorf("GET snapshot -> %d %s", code, body)
	}
	code, body = f.get(t, "/snapshots")
	if code != http.StatusOK || !strings.Contains(body, id) {
		t.Errorf("GET snapshots -> %d %s", code, body)
	}
}

func TestNotFound(t *testing.T) {
	f := setup(t)
	for _, path := range []string{"/sessions/nope/levels", "/sessions/nope/tree.svg", "/snapshots/nope"} {
		if code, _ := f.get(t, path); code != http.StatusNotFound {
			t.Errorf("GET %s -> %d, want 404", path, code)
		}
	}
}

func TestClose_EndsSessions(t *testing.T) {
	f := setup(t)
	f.connect(t)
	f.connect(t)
	f.waitSessions(t, 2)
	f.srv.Close()
	if n := len(f.srv.Sessions()); n != 0 {
		t.Errorf("%d sessions after Close", n)
	}
}
