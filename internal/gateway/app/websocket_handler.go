package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"campus_chat/internal/chat/domain"
	"campus_chat/internal/gateway/repository"
	"campus_chat/pkg/logger"
	"campus_chat/pkg/middlewares"
	"campus_chat/pkg/token"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	// recentWindow 同一則訊息會經由 room 與 user channel 各到一次
	recentWindow = 256
)

// ChatWebsocketHandler live connection endpoint
type ChatWebsocketHandler struct {
	messageUC    *MessageUseCase
	broadcaster  repository.Broadcaster
	pingInterval time.Duration
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(messageUC *MessageUseCase, b repository.Broadcaster, pingInterval time.Duration) *ChatWebsocketHandler {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &ChatWebsocketHandler{
		messageUC:    messageUC,
		broadcaster:  b,
		pingInterval: pingInterval,
	}
}

// session 單一連線狀態, 所有寫入都經過 send 由 writer goroutine 送出
type session struct {
	user domain.Participant
	log  *logger.LogInfo
	conn *websocket.Conn
	send chan []byte
	ctx  context.Context
	stop context.CancelFunc

	mu     sync.Mutex
	joined map[string]struct{}
	recent map[string]struct{}
	order  []string
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	claims, ok := conn.Locals(middlewares.TokenClaims).(*token.Claims)
	if !ok || claims.MemberID == "" {
		closeWebSocketConnection(conn, websocket.ClosePolicyViolation, "unauthorized")
		return
	}

	ctxClose, cancel := context.WithCancel(ctx)
	s := &session{
		user:   domain.Participant{ID: claims.MemberID, Name: claims.Name, Email: claims.Email},
		log:    logger.Log.With(zap.String("userID", claims.MemberID)),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		ctx:    ctxClose,
		stop:   cancel,
		joined: make(map[string]struct{}),
		recent: make(map[string]struct{}),
	}
	s.log.Info("websocket open")

	writerDone := make(chan struct{})
	defer func() {
		cancel()
		<-writerDone
		s.log.Info("websocket close")
		conn.Close()
	}()

	conn.SetPongHandler(func(appData string) error {
		s.log.Debug("received pong")
		return nil
	})

	go h.writeLoop(s, writerDone)

	// 訂閱自己的 user channel, chat_created 也走這裡
	if err := h.broadcaster.Subscribe(ctxClose, repository.UserChannel(s.user.ID), s.deliver); err != nil {
		s.log.Error("subscribe user channel", zap.Error(err))
		return
	}

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				s.log.Info("connection closed")
			} else {
				//直接斷線 1006
				s.log.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			s.sendError("", "unsupported message type")
			continue
		}
		h.textMessageAction(s, message)
	}
}

func (h *ChatWebsocketHandler) writeLoop(s *session, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case b := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				s.log.Warn("write message error", zap.Error(err))
				s.stop()
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				s.log.Warn("ping error", zap.Error(err))
				s.stop()
				_ = s.conn.Close()
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (h *ChatWebsocketHandler) textMessageAction(s *session, msg []byte) {
	var frame domain.Frame
	if err := json.Unmarshal(msg, &frame); err != nil {
		s.sendError("", "invalid frame")
		return
	}

	switch frame.Event {
	case domain.JoinChat:
		var req domain.JoinChatPayload
		if err := frame.Decode(&req); err != nil || req.ChatID == "" {
			s.sendError(frame.Event, "chatId is required")
			return
		}
		if err := h.join(s, req.ChatID); err != nil {
			s.sendError(frame.Event, err.Error())
		}

	case domain.SendMessage:
		var req domain.SendMessagePayload
		if err := frame.Decode(&req); err != nil {
			s.sendError(frame.Event, "invalid payload")
			return
		}
		m, err := h.messageUC.Send(s.ctx, s.user, req)
		if err != nil {
			s.log.Error("websocket send_message", zap.String("chatId", req.ChatID), zap.Error(err))
			s.sendError(frame.Event, err.Error())
			return
		}
		// 新建的對話, 自動加入 room
		if m.ConversationID != req.ChatID {
			if err := h.join(s, m.ConversationID); err != nil {
				logger.Log.Warn("auto join", zap.String("chatId", m.ConversationID), zap.Error(err))
			}
		}

	default:
		s.sendError(frame.Event, "unknown event")
	}
}

// join 訂閱 room channel, 重複 join 只訂閱一次
func (h *ChatWebsocketHandler) join(s *session, conversationID string) error {
	s.mu.Lock()
	_, already := s.joined[conversationID]
	s.mu.Unlock()
	if already {
		return nil
	}

	if err := h.messageUC.CanJoin(s.ctx, conversationID, s.user.ID); err != nil {
		return err
	}

	s.mu.Lock()
	if _, already := s.joined[conversationID]; already {
		s.mu.Unlock()
		return nil
	}
	s.joined[conversationID] = struct{}{}
	s.mu.Unlock()

	if err := h.broadcaster.Subscribe(s.ctx, repository.RoomChannel(conversationID), s.deliver); err != nil {
		s.mu.Lock()
		delete(s.joined, conversationID)
		s.mu.Unlock()
		return err
	}
	return nil
}

// deliver 由 broadcaster 呼叫, receive_message 依 message id 去重
func (s *session) deliver(frame domain.Frame) {
	if frame.Event == domain.ReceiveMessage {
		var ref struct {
			ID string `json:"_id"`
		}
		if err := frame.Decode(&ref); err == nil && ref.ID != "" && !s.remember(ref.ID) {
			return
		}
	}

	b, err := json.Marshal(frame)
	if err != nil {
		logger.Log.Error("encode frame", zap.Error(err))
		return
	}
	s.enqueue(b)
}

func (s *session) remember(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.recent[id]; seen {
		return false
	}
	s.recent[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > recentWindow {
		delete(s.recent, s.order[0])
		s.order = s.order[1:]
	}
	return true
}

func (s *session) enqueue(b []byte) {
	select {
	case <-s.ctx.Done():
	case s.send <- b:
	default:
		// client 讀太慢, 斷線讓它重連補 history
		s.log.Warn("send buffer full, closing")
		s.stop()
		_ = s.conn.Close()
	}
}

func (s *session) sendError(action domain.Action, message string) {
	frame, err := domain.NewFrame(domain.ErrorEvent, domain.ErrorPayload{Action: action, Message: message})
	if err != nil {
		return
	}
	b, err := json.Marshal(frame)
	if err != nil {
		return
	}
	s.enqueue(b)
}

func closeWebSocketConnection(conn *websocket.Conn, code int, reason string) {
	if err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason)); err != nil {
		logger.Log.Warn("failed to send close message", zap.Error(err))
	}
	conn.Close()
}
