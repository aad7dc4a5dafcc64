package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20 // analysis frames carry whole source files
	sendBuffer     = 16
)

// Conn is the part of *websocket.Conn the pumps use.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type websocketDialer struct {
	d *websocket.Dialer
}

func NewWebsocketDialer(handshakeTimeout time.Duration) Dialer {
	return &websocketDialer{d: &websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}}
}

func (w *websocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := w.d.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket handshake failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// client is one live connection and its two pumps.
type client struct {
	id        string
	sessionId int64
	handlers  Handlers
	manager   *Manager

	// Buffered channel of outbound frames.
	send chan []byte
	done chan struct{}

	mu      sync.Mutex
	conn    Conn
	closing bool
	once    sync.Once
}

func newClient(id string, sessionId int64, h Handlers, m *Manager) *client {
	return &client{
		id:        id,
		sessionId: sessionId,
		handlers:  h,
		manager:   m,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
	}
}

func (c *client) attach(conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing {
		return false
	}
	c.conn = conn
	return true
}

func (c *client) stop() {
	c.once.Do(func() { close(c.done) })
}

// close is the deliberate shutdown: the peer gets a close frame and the read
// pump exits without reporting an error.
func (c *client) close() {
	c.mu.Lock()
	c.closing = true
	conn := c.conn
	c.mu.Unlock()

	c.stop()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session switched"),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
}

func (c *client) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

func (c *client) enqueue(frame []byte) error {
	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// readPump pumps frames from the websocket connection to the handlers.
func (c *client) readPump() {
	defer func() {
		c.stop()
		_ = c.conn.Close()
		c.manager.onClosed(c)
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			// A clean close from the server is a close, not an error.
			if !c.isClosing() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.manager.onError(c, err)
			}
			return
		}
		c.manager.onFrame(c, data)
	}
}

// writePump pumps frames from the send buffer to the websocket connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.manager.logger.Warn("Stream", "Write failed", map[string]interface{}{"conn_id": c.id, "error": err.Error()})
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
