package wsconn_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/synnaxlabs/synnax-sub025/pkg/comms/commstest"
	"github.com/synnaxlabs/synnax-sub025/pkg/comms/wsconn"
)

func TestConn(t *testing.T) {
	accepted := make(chan *wsconn.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := wsconn.Accept(w, r)
		if err != nil {
			t.Errorf("Accept -> %v", err)
			return
		}
		accepted <- c
	}))
	defer srv.Close()

	client, err := wsconn.Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatal(err)
	}
	server := <-accepted
	commstest.TestConn(t, client, server)
	if err := server.Err(); err != nil {
		t.Errorf("Err after normal close -> %v", err)
	}
}
