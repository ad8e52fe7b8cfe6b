package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// Envelope is the wire frame in both directions: an event name plus an
// event-specific payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// Client is one live websocket session: the authenticated user, the
// connection and the outbound queue drained by the write pump.
type Client struct {
	userID     string
	conn       *websocket.Conn
	send       chan outbound
	done       chan struct{}
	closeOnce  sync.Once
	identified bool
}

const sendBuffer = 32

func newClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		userID: userID,
		conn:   conn,
		send:   make(chan outbound, sendBuffer),
		done:   make(chan struct{}),
	}
}

// enqueue hands an event to the write pump without blocking. A full queue
// means the client is too slow; the event is dropped, matching the
// best-effort delivery contract.
func (c *Client) enqueue(evt outbound) {
	select {
	case c.send <- evt:
	case <-c.done:
	default:
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}
