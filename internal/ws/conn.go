// Package ws provides the WebSocket transport seam shared by the chat
// and price feed clients. Production code dials with gorilla/websocket;
// tests inject fake conns.
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnClosed is returned by writes on a closed connection.
var ErrConnClosed = errors.New("ws: connection closed")

// Conn is the minimal connection surface the streaming clients need.
type Conn interface {
	// ReadMessage blocks until the next text frame arrives.
	ReadMessage() ([]byte, error)

	// WriteJSON marshals v and sends it as a text frame. Thread-safe.
	WriteJSON(v any) error

	// Close tears the connection down. When normal is true a close
	// frame with code 1000 is written first so the peer does not treat
	// the disconnect as a failure.
	Close(normal bool) error
}

// Dialer opens WebSocket connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// GorillaDialer dials with gorilla/websocket.
type GorillaDialer struct {
	HandshakeTimeout time.Duration
}

// Dial opens a WebSocket connection to the given URL.
func (d GorillaDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}
	c, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return &gorillaConn{ws: c}, nil
}

// gorillaConn wraps a gorilla conn with a write mutex.
type gorillaConn struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	closed bool
}

func (c *gorillaConn) ReadMessage() ([]byte, error) {
	_, msg, err := c.ws.ReadMessage()
	return msg, err
}

func (c *gorillaConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	return c.ws.WriteJSON(v)
}

func (c *gorillaConn) Close(normal bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if normal {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
	}
	return c.ws.Close()
}

// IsNormalClosure reports whether err is a close with code 1000 (or a
// going-away 1001), i.e. a deliberate disconnect that must not trigger
// the reconnect path.
func IsNormalClosure(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

// CloseCode extracts the close code from err, or -1 when err is not a
// close error.
func CloseCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return -1
}
