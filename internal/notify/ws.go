package notify

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// WSConn adapts a gorilla WebSocket connection to the bus Conn interface.
// gorilla allows only one concurrent writer, so sends are serialized with a
// mutex.
type WSConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSConn wraps an upgraded WebSocket connection
func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn}
}

// Send writes one text message to the peer
func (c *WSConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close closes the underlying connection
func (c *WSConn) Close() error {
	return c.conn.Close()
}
