package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"campus_chat/internal/chat/domain"
	"campus_chat/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	sendBufferSize = 64
	writeWait      = 10 * time.Second
)

// WebsocketDialer Dialer over gorilla websocket
type WebsocketDialer struct {
	URL              string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
}

// NewWebsocketDialer create WebsocketDialer
func NewWebsocketDialer(url string, handshakeTimeout, pingInterval time.Duration) *WebsocketDialer {
	return &WebsocketDialer{
		URL:              url,
		HandshakeTimeout: handshakeTimeout,
		PingInterval:     pingInterval,
	}
}

// Dial open a connection, handler is called from the read goroutine
func (d *WebsocketDialer) Dial(ctx context.Context, token string, handler FrameHandler) (LiveConn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	ws, resp, err := dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake rejected (%d): %w", resp.StatusCode, err)
		}
		return nil, err
	}

	c := &wsConn{
		ws:      ws,
		handler: handler,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	go c.writeLoop(d.PingInterval)
	return c, nil
}

// wsConn gorilla 連線只允許單一 writer, 所有寫入經過 send channel
type wsConn struct {
	ws      *websocket.Conn
	handler FrameHandler
	send    chan []byte

	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

func (c *wsConn) Emit(event domain.Action, payload interface{}) error {
	frame, err := domain.NewFrame(event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return domain.ErrConnectionUnavailable
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return domain.ErrConnectionUnavailable
	default:
		return errors.New("send buffer full")
	}
}

func (c *wsConn) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *wsConn) Done() <-chan struct{} {
	return c.done
}

func (c *wsConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *wsConn) shutdown(reason error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = reason
		c.mu.Unlock()
		close(c.done)

		if reason == nil {
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
		}
		_ = c.ws.Close()
	})
}

func (c *wsConn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				logger.Log.Warn("live connection dropped", zap.Error(err))
			}
			c.shutdown(err)
			return
		}

		var frame domain.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.Log.Warn("drop malformed frame", zap.Error(err))
			continue
		}
		if c.handler != nil {
			c.handler(frame)
		}
	}
}

func (c *wsConn) writeLoop(pingInterval time.Duration) {
	var tick <-chan time.Time
	if pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.shutdown(err)
				return
			}
		case <-tick:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.shutdown(err)
				return
			}
		}
	}
}
