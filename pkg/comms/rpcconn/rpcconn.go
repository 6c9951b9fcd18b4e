// Package rpcconn carries updates as JSON-RPC 2.0 notifications over a byte
// stream, such as the standard streams of a worker process or a unix socket.
package rpcconn

import (
	"context"
	"encoding/json"
	"io"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/comms"
	"github.com/synnaxlabs/synnax-sub025/pkg/logutil"
)

// Method is the JSON-RPC method of update notifications.
const Method = "aether.update"

var logger = logutil.GetLogger("[rpcconn] ")

var (
	errMethodNotFound = &jsonrpc2.Error{
		Code: jsonrpc2.CodeMethodNotFound, Message: "method not found"}
	errInvalidParams = &jsonrpc2.Error{
		Code: jsonrpc2.CodeInvalidParams, Message: "invalid params"}
)

// Conn is a comms.Conn over a JSON-RPC stream.
type Conn struct {
	conn *jsonrpc2.Conn
	in   chan aether.Update
}

var _ comms.Conn = (*Conn)(nil)

// New starts serving the stream. Messages are framed with Content-Length
// headers.
func New(ctx context.Context, rwc io.ReadWriteCloser) *Conn {
	c := &Conn{in: make(chan aether.Update, comms.Buffer)}
	c.conn = jsonrpc2.NewConn(ctx,
		jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(c.handle))
	return c
}

// Handlers are called synchronously by jsonrpc2, which keeps the order of
// updates.
func (c *Conn) handle(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	if req.Method != Method {
		return nil, errMethodNotFound
	}
	var u aether.Update
	if req.Params == nil || json.Unmarshal(*req.Params, &u) != nil {
		logger.Printf("dropping malformed update: %v", req.Params)
		return nil, errInvalidParams
	}
	select {
	case c.in <- u:
	case <-c.conn.DisconnectNotify():
	}
	return nil, nil
}

func (c *Conn) Send(ctx context.Context, u aether.Update) error {
	return c.conn.Notify(ctx, Method, u)
}

func (c *Conn) Receive() <-chan aether.Update { return c.in }
func (c *Conn) Done() <-chan struct{}         { return c.conn.DisconnectNotify() }
func (c *Conn) Close() error                  { return c.conn.Close() }

// Stdio joins a reader and a writer, typically os.Stdin and os.Stdout, into
// a stream.
func Stdio(in io.ReadCloser, out io.WriteCloser) io.ReadWriteCloser {
	return transport{in, out}
}

type transport struct {
	in  io.ReadCloser
	out io.WriteCloser
}

func (c transport) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c transport) Write(p []byte) (int, error) { return c.out.Write(p) }

func (c transport) Close() error {
	if err := c.in.Close(); err != nil {
		c.out.Close()
		return err
	}
	return c.out.Close()
}
