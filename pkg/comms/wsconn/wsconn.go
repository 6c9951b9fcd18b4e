// Package wsconn carries updates as JSON text frames over a websocket.
package wsconn

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/comms"
	"github.com/synnaxlabs/synnax-sub025/pkg/logutil"
)

var logger = logutil.GetLogger("[wsconn] ")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Conn is a comms.Conn over a websocket.
type Conn struct {
	ws   *websocket.Conn
	in   chan aether.Update
	done chan struct{}

	writeMutex sync.Mutex
	closeOnce  sync.Once
	errMutex   sync.Mutex
	err        error
}

var _ comms.Conn = (*Conn)(nil)

// New wraps an established websocket and starts reading from it.
func New(ws *websocket.Conn) *Conn {
	c := &Conn{ws: ws, in: make(chan aether.Update, comms.Buffer), done: make(chan struct{})}
	go c.read()
	return c
}

// Accept upgrades an HTTP request.
func Accept(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return New(ws), nil
}

// Dial connects to a websocket URL.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return New(ws), nil
}

func (c *Conn) read() {
	for {
		mt, p, err := c.ws.ReadMessage()
		if err != nil {
			c.closeWith(err)
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		var u aether.Update
		if err := json.Unmarshal(p, &u); err != nil {
			logger.Printf("dropping malformed frame: %v", err)
			continue
		}
		select {
		case c.in <- u:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) Send(ctx context.Context, u aether.Update) error {
	select {
	case <-c.done:
		return comms.ErrClosed
	default:
	}
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	c.ws.SetWriteDeadline(deadline)
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

func (c *Conn) Receive() <-chan aether.Update { return c.in }
func (c *Conn) Done() <-chan struct{}         { return c.done }

// Err returns the error that ended the connection, if any.
func (c *Conn) Err() error {
	c.errMutex.Lock()
	defer c.errMutex.Unlock()
	return c.err
}

func (c *Conn) closeWith(err error) {
	c.closeOnce.Do(func() {
		if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.errMutex.Lock()
			c.err = err
			c.errMutex.Unlock()
		}
		close(c.done)
		c.ws.Close()
	})
}

// Close sends a close frame and closes the connection.
func (c *Conn) Close() error {
	c.writeMutex.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMutex.Unlock()
	c.closeWith(nil)
	return nil
}
