package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame write so one stalled client cannot
	// block the event forwarder.
	writeWait = 10 * time.Second

	// readWait is generous: a proctored test can sit idle on one question
	// for minutes, and the client pings well inside this window.
	readWait = 5 * time.Minute
)

// Conn wraps a gorilla connection with a write lock. The read-loop replies
// and the engine event forwarder run on different goroutines, and gorilla
// supports at most one concurrent writer per connection.
type Conn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewConn wraps an upgraded connection.
func NewConn(conn *websocket.Conn) *Conn {
	return &Conn{conn: conn}
}

// WriteTyped sends a typed event payload over the stream.
func (c *Conn) WriteTyped(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// WriteError sends an ErrorResponse frame over the stream.
func (c *Conn) WriteError(errMsg string) error {
	return c.WriteTyped(ErrorResponse{
		Event: EventError,
		Error: errMsg,
	})
}

// ReadJSON reads and decodes the next frame into v, refreshing the read
// deadline first. Reads stay on a single goroutine and need no lock.
func (c *Conn) ReadJSON(v interface{}) error {
	c.conn.SetReadDeadline(time.Now().Add(readWait))
	return c.conn.ReadJSON(v)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}
