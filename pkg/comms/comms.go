// Package comms defines the ordered message channel between the presentation
// side and a worker, and an in-memory implementation of it.
//
// Implementations over real transports live in the rpcconn (JSON-RPC over a
// byte stream) and wsconn (websocket) subpackages.
package comms

import (
	"context"
	"errors"
	"sync"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
)

// ErrClosed is returned by Send after the connection is closed.
var ErrClosed = errors.New("connection closed")

// Conn is one end of an ordered, bidirectional channel of updates.
type Conn interface {
	aether.Sender
	// Receive delivers updates from the peer in the order they were sent. The
	// channel is never closed; select on Done as well.
	Receive() <-chan aether.Update
	// Done is closed when the connection is closed by either side.
	Done() <-chan struct{}
	Close() error
}

// Buffer is the number of received updates a connection holds before its
// reader blocks.
const Buffer = 256

type pipeConn struct {
	in    chan aether.Update
	peer  *pipeConn
	done  chan struct{}
	close *sync.Once
}

// Pipe returns the two ends of an in-memory connection.
func Pipe() (Conn, Conn) {
	done := make(chan struct{})
	once := new(sync.Once)
	a := &pipeConn{in: make(chan aether.Update, Buffer), done: done, close: once}
	b := &pipeConn{in: make(chan aether.Update, Buffer), done: done, close: once}
	a.peer, b.peer = b, a
	return a, b
}

func (p *pipeConn) Send(ctx context.Context, u aether.Update) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.peer.in <- u:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeConn) Receive() <-chan aether.Update { return p.in }
func (p *pipeConn) Done() <-chan struct{}         { return p.done }

func (p *pipeConn) Close() error {
	p.close.Do(func() { close(p.done) })
	return nil
}
