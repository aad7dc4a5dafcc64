// Package stream owns the single live duplex connection to the tutor
// service. It performs no request gating; callers decide when to send.
package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ai-tutoring-engine/internal/pkg/logger"
	"ai-tutoring-engine/pkg/credential"
	"ai-tutoring-engine/pkg/retry"

	"github.com/google/uuid"
)

type ConnectionState string

const (
	StateClosed     ConnectionState = "closed"
	StateConnecting ConnectionState = "connecting"
	StateOpen       ConnectionState = "open"
	StateErroring   ConnectionState = "erroring"
)

var (
	ErrNotConnected   = errors.New("stream: no open connection")
	ErrSendBufferFull = errors.New("stream: send buffer full")
)

// Handlers are registered per Bind. Every callback carries the id of the
// connection it originates from.
type Handlers struct {
	OnOpen  func(connId string)
	OnFrame func(connId string, data []byte)
	OnError func(connId string, err error)
	OnClose func(connId string)
}

func (h Handlers) open(id string) {
	if h.OnOpen != nil {
		h.OnOpen(id)
	}
}

func (h Handlers) frame(id string, data []byte) {
	if h.OnFrame != nil {
		h.OnFrame(id, data)
	}
}

func (h Handlers) fail(id string, err error) {
	if h.OnError != nil {
		h.OnError(id, err)
	}
}

func (h Handlers) closed(id string) {
	if h.OnClose != nil {
		h.OnClose(id)
	}
}

type Manager struct {
	dialer      Dialer
	endpoint    Endpoint
	credentials credential.Provider
	poll        retry.Policy
	logger      logger.ILogger

	mu      sync.Mutex
	current *client
	state   ConnectionState
}

func NewManager(dialer Dialer, endpoint Endpoint, credentials credential.Provider, poll retry.Policy, log logger.ILogger) *Manager {
	return &Manager{
		dialer:      dialer,
		endpoint:    endpoint,
		credentials: credentials,
		poll:        poll,
		logger:      log,
		state:       StateClosed,
	}
}

// Bind closes any existing connection and opens a new one for sessionId.
// Without a credential it returns ("", nil): the user is not ready yet.
func (m *Manager) Bind(ctx context.Context, sessionId int64, h Handlers) (string, error) {
	m.Close()

	cred := credential.Poll(ctx, m.credentials, m.poll)
	if !cred.Ready() {
		m.logger.Debug("Stream", "Credential not ready, bind skipped", map[string]interface{}{"session_id": sessionId})
		return "", nil
	}

	target, err := m.endpoint.URL(cred, sessionId)
	if err != nil {
		m.mu.Lock()
		if m.current == nil {
			m.state = StateErroring
		}
		m.mu.Unlock()
		m.logger.Error("Stream", "Invalid stream endpoint", map[string]interface{}{"session_id": sessionId, "error": err.Error()})
		h.fail("", err)
		return "", err
	}

	c := newClient(uuid.NewString(), sessionId, h, m)

	m.mu.Lock()
	// A concurrent Bind may have registered first; it loses.
	prev := m.current
	m.current = c
	m.state = StateConnecting
	m.mu.Unlock()
	if prev != nil {
		prev.close()
	}

	conn, err := m.dialer.Dial(ctx, target)

	m.mu.Lock()
	if m.current != c {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		m.logger.Debug("Stream", "Bind superseded during dial", map[string]interface{}{"conn_id": c.id, "session_id": sessionId})
		return "", nil
	}
	if err != nil {
		m.current = nil
		m.state = StateErroring
		m.mu.Unlock()
		m.logger.Warn("Stream", "Dial failed", map[string]interface{}{"conn_id": c.id, "session_id": sessionId, "error": err.Error()})
		h.fail(c.id, err)
		return c.id, fmt.Errorf("bind session %d: %w", sessionId, err)
	}
	if !c.attach(conn) {
		m.mu.Unlock()
		_ = conn.Close()
		return "", nil
	}
	m.state = StateOpen
	m.mu.Unlock()

	m.logger.Info("Stream", "Connection open", map[string]interface{}{"conn_id": c.id, "session_id": sessionId})
	h.open(c.id)

	go c.writePump()
	go c.readPump()

	return c.id, nil
}

// Close severs the current connection. Safe to call when none exists.
func (m *Manager) Close() {
	m.mu.Lock()
	c := m.current
	m.current = nil
	m.state = StateClosed
	m.mu.Unlock()

	if c != nil {
		c.close()
		m.logger.Debug("Stream", "Connection closed by client", map[string]interface{}{"conn_id": c.id, "session_id": c.sessionId})
	}
}

// Send queues one frame on the live connection.
func (m *Manager) Send(frame []byte) error {
	m.mu.Lock()
	c, state := m.current, m.state
	m.mu.Unlock()

	if c == nil || state != StateOpen {
		return ErrNotConnected
	}
	return c.enqueue(frame)
}

func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentId is the id of the bound connection, or "".
func (m *Manager) CurrentId() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.id
}

func (m *Manager) isCurrent(c *client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current == c
}

func (m *Manager) onFrame(c *client, data []byte) {
	if !m.isCurrent(c) {
		m.logger.Debug("Stream", "Dropped frame from superseded connection", map[string]interface{}{"conn_id": c.id})
		return
	}
	m.logger.Debug("Stream", "Frame received", map[string]interface{}{"conn_id": c.id, "bytes": len(data)})
	c.handlers.frame(c.id, data)
}

func (m *Manager) onError(c *client, err error) {
	m.mu.Lock()
	if m.current != c {
		m.mu.Unlock()
		return
	}
	m.state = StateErroring
	m.mu.Unlock()

	m.logger.Warn("Stream", "Connection error", map[string]interface{}{"conn_id": c.id, "session_id": c.sessionId, "error": err.Error()})
	c.handlers.fail(c.id, err)
}

func (m *Manager) onClosed(c *client) {
	m.mu.Lock()
	if m.current == c {
		m.current = nil
		if m.state == StateOpen {
			m.state = StateClosed
		}
	}
	m.mu.Unlock()

	m.logger.Info("Stream", "Connection closed", map[string]interface{}{"conn_id": c.id, "session_id": c.sessionId})
	c.handlers.closed(c.id)
}
