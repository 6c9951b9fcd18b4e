package rpcconn_test

import (
	"context"
	"io"
	"net"
	"testing"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/synnaxlabs/synnax-sub025/pkg/comms/commstest"
	"github.com/synnaxlabs/synnax-sub025/pkg/comms/rpcconn"
)

func TestConn(t *testing.T) {
	ctx := context.Background()
	p1, p2 := net.Pipe()
	commstest.TestConn(t, rpcconn.New(ctx, p1), rpcconn.New(ctx, p2))
}

func TestConn_OverStdio(t *testing.T) {
	ctx := context.Background()
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	a := rpcconn.New(ctx, rpcconn.Stdio(r1, w2))
	b := rpcconn.New(ctx, rpcconn.Stdio(r2, w1))
	commstest.TestConn(t, a, b)
}

func TestConn_RejectsUnknownMethod(t *testing.T) {
	ctx := context.Background()
	p1, p2 := net.Pipe()
	rpcconn.New(ctx, p1)
	client := jsonrpc2.NewConn(ctx,
		jsonrpc2.NewBufferedStream(p2, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(func(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) (any, error) {
			return nil, nil
		}))
	defer client.Close()

	err := client.Call(ctx, "bogus", nil, nil)
	rpcErr, ok := err.(*jsonrpc2.Error)
	if !ok || rpcErr.Code != jsonrpc2.CodeMethodNotFound {
		t.Errorf("Call(bogus) -> %v, want method not found", err)
	}
	err = client.Call(ctx, rpcconn.Method, []int{1}, nil)
	rpcErr, ok = err.(*jsonrpc2.Error)
	if !ok || rpcErr.Code != jsonrpc2.CodeInvalidParams {
		t.Errorf("Call with bad params -> %v, want invalid params", err)
	}
}
