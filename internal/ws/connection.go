package ws

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection wraps a single WebSocket client connection with a write mutex
// for serializing outbound frames. It implements registry.Handle.
type Connection struct {
	conn         net.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex // serializes writes to this connection
}

// newConnection wraps an upgraded network connection.
func newConnection(conn net.Conn, writeTimeout time.Duration) *Connection {
	return &Connection{conn: conn, writeTimeout: writeTimeout}
}

// WriteMessage sends a WebSocket text frame to this connection. The write
// mutex ensures concurrent goroutines do not interleave frame bytes, and the
// write deadline bounds how long a slow peer can stall one delivery.
func (c *Connection) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	err := wsutil.WriteServerMessage(c.conn, ws.OpText, data)
	_ = c.conn.SetWriteDeadline(time.Time{})
	return err
}

// writeClose sends a close frame with the given status code and reason.
func (c *Connection) writeClose(code ws.StatusCode, reason string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	frame := ws.NewCloseFrame(ws.NewCloseFrameBody(code, reason))
	return ws.WriteFrame(c.conn, frame)
}

// Close closes the underlying network connection.
func (c *Connection) Close() error {
	return c.conn.Close()
}
