package app

import (
	"context"
	"fmt"
	"sync"

	"campus_chat/internal/chat/domain"
	"campus_chat/internal/chat/repository"
	"campus_chat/pkg/logger"

	"go.uber.org/zap"
)

// ConnState live connection state
type ConnState int

const (
	// ConnDisconnected never connected or torn down
	ConnDisconnected ConnState = iota
	// ConnConnected connection open
	ConnConnected
	// ConnUnavailable dial failed or connection dropped
	ConnUnavailable
)

func (s ConnState) String() string {
	switch s {
	case ConnConnected:
		return "connected"
	case ConnUnavailable:
		return "unavailable"
	default:
		return "disconnected"
	}
}

// ConnectionManager owns the single live connection of the process.
// Handlers registered with On survive reconnects.
type ConnectionManager struct {
	dialer repository.Dialer

	// dialMu 序列化 EnsureConnected, 同時只有一個 dial
	dialMu sync.Mutex

	mu        sync.RWMutex
	conn      repository.LiveConn
	token     string
	state     ConnState
	lastErr   error
	handlers  map[domain.Action][]repository.FrameHandler
	onConnect []func()
	onDrop    []func(err error)
}

// NewConnectionManager create ConnectionManager
func NewConnectionManager(dialer repository.Dialer) *ConnectionManager {
	return &ConnectionManager{
		dialer:   dialer,
		handlers: make(map[domain.Action][]repository.FrameHandler),
	}
}

// EnsureConnected return the open connection for token, dialing when there is none.
// A different token tears the current connection down first.
func (m *ConnectionManager) EnsureConnected(ctx context.Context, token string) (repository.LiveConn, error) {
	m.dialMu.Lock()
	defer m.dialMu.Unlock()

	m.mu.Lock()
	current := m.conn
	if current != nil && m.token == token && alive(current) {
		m.mu.Unlock()
		return current, nil
	}
	m.conn = nil
	m.token = ""
	m.mu.Unlock()

	if current != nil {
		logger.Log.Info("close previous live connection before dial")
		_ = current.Close()
	}

	conn, err := m.dialer.Dial(ctx, token, m.dispatch)
	if err != nil {
		wrapped := fmt.Errorf("%w: %w", domain.ErrConnectionUnavailable, err)
		m.mu.Lock()
		m.state = ConnUnavailable
		m.lastErr = wrapped
		m.mu.Unlock()
		logger.Log.Error("dial live connection", zap.Error(err))
		return nil, wrapped
	}

	m.mu.Lock()
	m.conn = conn
	m.token = token
	m.state = ConnConnected
	m.lastErr = nil
	hooks := append([]func(){}, m.onConnect...)
	m.mu.Unlock()

	go m.watch(conn)

	for _, hook := range hooks {
		hook()
	}
	return conn, nil
}

// watch 連線斷掉時轉為 Unavailable, Teardown 造成的關閉不算
func (m *ConnectionManager) watch(conn repository.LiveConn) {
	<-conn.Done()

	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.state = ConnUnavailable
	m.lastErr = fmt.Errorf("%w: %v", domain.ErrConnectionUnavailable, conn.Err())
	hooks := append([]func(error){}, m.onDrop...)
	err := m.lastErr
	m.mu.Unlock()

	logger.Log.Warn("live connection lost", zap.Error(conn.Err()))
	for _, hook := range hooks {
		hook(err)
	}
}

// Teardown close the connection, called on logout
func (m *ConnectionManager) Teardown() {
	m.dialMu.Lock()
	defer m.dialMu.Unlock()

	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.token = ""
	m.state = ConnDisconnected
	m.lastErr = nil
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// State current state and, when unavailable, the reason
func (m *ConnectionManager) State() (ConnState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.lastErr
}

// Connected check there is an open connection
func (m *ConnectionManager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn != nil && alive(m.conn)
}

// Emit fire-and-forget event on the current connection
func (m *ConnectionManager) Emit(event domain.Action, payload interface{}) error {
	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()
	if conn == nil {
		return domain.ErrConnectionUnavailable
	}
	return conn.Emit(event, payload)
}

// On register handler for an inbound event
func (m *ConnectionManager) On(event domain.Action, handler repository.FrameHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], handler)
}

// OnConnect hook run after every successful dial, the new connection is already current
func (m *ConnectionManager) OnConnect(hook func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnect = append(m.onConnect, hook)
}

// OnDrop hook run when the current connection is lost
func (m *ConnectionManager) OnDrop(hook func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDrop = append(m.onDrop, hook)
}

func (m *ConnectionManager) dispatch(frame domain.Frame) {
	m.mu.RLock()
	handlers := append([]repository.FrameHandler{}, m.handlers[frame.Event]...)
	m.mu.RUnlock()

	if len(handlers) == 0 {
		logger.Log.Debug("no handler for event", zap.String("event", string(frame.Event)))
		return
	}
	for _, h := range handlers {
		h(frame)
	}
}

func alive(conn repository.LiveConn) bool {
	select {
	case <-conn.Done():
		return false
	default:
		return true
	}
}
