package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Client is one websocket connection. Writes are serialized by the client
// mutex; reads happen only on the connection's reader goroutine, which also
// owns the token field.
type Client struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	token  string
	origin string
}

// Send marshals and writes one message. Errors close the connection; the
// reader loop notices and runs cleanup.
func (c *Client) Send(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal outbound message", "error", err)
		return
	}
	c.sendRaw(data)
}

func (c *Client) sendRaw(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.conn.Close()
	}
}

// Close terminates the connection.
func (c *Client) Close() {
	c.conn.Close()
}
