package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"campus_chat/internal/chat/domain"
	"campus_chat/internal/chat/repository"
	"campus_chat/pkg/logger"
	"campus_chat/pkg/token"

	"go.uber.org/zap"
)

var errNotStarted = errors.New("session not started")

// View user facing surface: toasts for other conversations and transient errors
type View interface {
	Notifier
	ShowError(op string, err error)
}

// SessionView what the chat screen renders
type SessionView struct {
	User      domain.Participant
	Ref       domain.ConversationRef
	Item      *domain.Item
	Messages  []domain.Message
	Loading   bool
	Connected bool
}

// Session chat feature controller. Owns one ConnectionManager and wires the
// room, stream, resolver, notification and upload components to it.
type Session struct {
	store  repository.Store
	view   View
	conn   *ConnectionManager
	rooms  *RoomMembership
	stream *MessageStream
	notify *NotificationDispatcher
	upload *AttachmentUploader

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	user     domain.Participant
	token    string
	resolver *ConversationResolver
	nav      *Resolution
	navGen   uint64
}

// NewSession create Session, call Start before navigating
func NewSession(store repository.Store, dialer repository.Dialer, view View) *Session {
	conn := NewConnectionManager(dialer)
	s := &Session{
		store:  store,
		view:   view,
		conn:   conn,
		rooms:  NewRoomMembership(conn),
		stream: NewMessageStream(store),
		upload: NewAttachmentUploader(store, conn),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.notify = NewNotificationDispatcher(view, s.viewing)

	conn.On(domain.ReceiveMessage, s.onReceive)
	conn.On(domain.ChatCreated, s.onChatCreated)
	conn.On(domain.ErrorEvent, s.onServerError)
	conn.OnConnect(s.onReconnect)
	conn.OnDrop(func(err error) {
		s.report("connection", err)
	})
	return s
}

// Start authenticate as the token's user and open the live connection. The
// store and the live connection both use tok. A connect failure is returned
// but the session stays usable read-only.
func (s *Session) Start(ctx context.Context, tok string) error {
	claims, err := token.PeekClaimsFunc(tok)
	if err != nil {
		err = fmt.Errorf("read token: %w", err)
		s.report("start", err)
		return err
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}
	s.user = domain.Participant{ID: claims.MemberID, Name: claims.Name, Email: claims.Email, Role: claims.Role}
	s.token = tok
	s.store.SetToken(tok)
	s.resolver = NewConversationResolver(s.store, claims.MemberID)
	s.mu.Unlock()

	s.notify.SetActive(true)
	if _, err := s.conn.EnsureConnected(ctx, tok); err != nil {
		s.report("connect", err)
		return err
	}
	logger.Log.Info("chat session started", zap.String("user_id", claims.MemberID))
	return nil
}

// Reconnect dial again with the session token after the connection dropped
func (s *Session) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	tok := s.token
	s.mu.Unlock()
	if tok == "" {
		return errNotStarted
	}
	if _, err := s.conn.EnsureConnected(ctx, tok); err != nil {
		s.report("connect", err)
		return err
	}
	return nil
}

// Conversations sidebar list
func (s *Session) Conversations(ctx context.Context) ([]domain.Conversation, error) {
	convs, err := s.store.ListConversations(ctx)
	if err != nil {
		s.report("list conversations", err)
		return nil, err
	}
	return convs, nil
}

// OpenConversation navigate to a known conversation: join its room and load history
func (s *Session) OpenConversation(ctx context.Context, conversationID string) error {
	resolver, err := s.currentResolver()
	if err != nil {
		return err
	}
	nav := resolver.ResolveConversation(conversationID)

	gen := s.beginNavigation()
	if !s.commitNavigation(gen, nav) {
		return domain.ErrStaleEventIgnored
	}
	return s.openBound(ctx, conversationID)
}

// OpenItem navigate to an item. An existing conversation about it is opened
// instead (redirect); otherwise the navigation stays pending until the first
// send creates the conversation.
func (s *Session) OpenItem(ctx context.Context, itemID string) (*Resolution, error) {
	resolver, err := s.currentResolver()
	if err != nil {
		return nil, err
	}

	gen := s.beginNavigation()
	s.stream.Close()

	res, err := resolver.Resolve(ctx, itemID)
	if err != nil {
		if s.isCurrent(gen) {
			s.report("open item", err)
		}
		return nil, err
	}

	if res.State() == StateBound {
		if !s.commitNavigation(gen, res) {
			return nil, domain.ErrStaleEventIgnored
		}
		return res, s.openBound(ctx, res.ConversationID())
	}

	res.OnBound(func(conversationID string) {
		s.onPendingBound(res, conversationID)
	})
	if !s.commitNavigation(gen, res) {
		return nil, domain.ErrStaleEventIgnored
	}
	return res, nil
}

// SendText send a text message to the open conversation, or to the pending
// item (the server then creates the conversation)
func (s *Session) SendText(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.ErrEmptyMessage
	}
	nav := s.current()
	if nav == nil {
		return domain.ErrNoConversation
	}

	ref := nav.Ref()
	if err := s.checkTarget(nav, ref); err != nil {
		s.report("send message", err)
		return err
	}
	if id, ok := ref.ConversationID(); ok {
		_ = s.rooms.Ensure(id)
	}

	err := s.conn.Emit(domain.SendMessage, domain.SendMessagePayload{
		ChatID:  ref.WireID(),
		Content: content,
		Type:    domain.KindText,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrConnectionUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrConnectionUnavailable, err)
		}
		s.report("send message", err)
		return err
	}
	return nil
}

// SendAttachment upload file and send it as an image/file message
func (s *Session) SendAttachment(ctx context.Context, file domain.Upload) error {
	nav := s.current()
	if nav == nil {
		return domain.ErrNoConversation
	}

	ref := nav.Ref()
	if err := s.checkTarget(nav, ref); err != nil {
		s.report("send attachment", err)
		return err
	}
	if id, ok := ref.ConversationID(); ok {
		_ = s.rooms.Ensure(id)
	}

	_, err := s.upload.Send(ctx, file, ref, func(conv *domain.Conversation) {
		nav.Bind(conv.ID)
	})
	if err != nil {
		s.report("send attachment", err)
		return err
	}
	return nil
}

// View snapshot for rendering
func (s *Session) View() SessionView {
	s.mu.Lock()
	nav := s.nav
	user := s.user
	s.mu.Unlock()

	snap := s.stream.Snapshot()
	v := SessionView{
		User:      user,
		Messages:  snap.Messages,
		Loading:   snap.Loading,
		Connected: s.conn.Connected(),
	}
	if nav != nil {
		v.Ref = nav.Ref()
		v.Item = nav.Item()
	}
	return v
}

// Stream message stream, subscribe with OnChange
func (s *Session) Stream() *MessageStream {
	return s.stream
}

// Connection connection manager of this session
func (s *Session) Connection() *ConnectionManager {
	return s.conn
}

// Close logout: stop notifications, drop state, close the connection
func (s *Session) Close() {
	s.notify.SetActive(false)

	s.mu.Lock()
	s.navGen++
	s.nav = nil
	s.token = ""
	s.store.SetToken("")
	s.resolver = nil
	s.cancel()
	s.mu.Unlock()

	s.stream.Close()
	s.conn.Teardown()
	s.rooms.Reset()
}

func (s *Session) openBound(ctx context.Context, conversationID string) error {
	_ = s.rooms.Join(conversationID)
	if err := s.stream.Open(ctx, conversationID); err != nil {
		if !errors.Is(err, domain.ErrStaleEventIgnored) {
			s.report("load history", err)
		}
		return err
	}
	return nil
}

// onPendingBound 送出第一則訊息後對話建立, 還在看這個 item 才切換
func (s *Session) onPendingBound(res *Resolution, conversationID string) {
	s.mu.Lock()
	current := s.nav == res
	ctx := s.ctx
	s.mu.Unlock()
	if !current {
		return
	}

	logger.Log.Info("pending item bound", zap.String("item_id", res.ItemID()), zap.String("chat_id", conversationID))
	_ = s.rooms.Join(conversationID)
	s.awaitLoad(s.stream.OpenAsync(ctx, conversationID))
}

// onReconnect 斷線期間可能漏掉事件, 重新抓 history 並保留已載入的訊息
func (s *Session) onReconnect() {
	id := s.stream.ConversationID()
	if id == "" {
		return
	}
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	s.awaitLoad(s.stream.RefreshAsync(ctx))
}

func (s *Session) awaitLoad(result <-chan error) {
	go func() {
		if err := <-result; err != nil && !errors.Is(err, domain.ErrStaleEventIgnored) {
			s.report("load history", err)
		}
	}()
}

func (s *Session) onReceive(frame domain.Frame) {
	var msg domain.Message
	if err := frame.Decode(&msg); err != nil {
		logger.Log.Warn("decode receive_message", zap.Error(err))
		return
	}

	s.notify.Dispatch(msg)
	if err := s.stream.Accept(msg); err != nil {
		logger.Log.Debug("message not applied", zap.String("message_id", msg.ID), zap.Error(err))
	}
}

func (s *Session) onChatCreated(frame domain.Frame) {
	var ev domain.ChatCreatedPayload
	if err := frame.Decode(&ev); err != nil {
		logger.Log.Warn("decode chat_created", zap.Error(err))
		return
	}

	nav := s.current()
	if nav == nil || !nav.HandleChatCreated(ev) {
		logger.Log.Debug("chat_created ignored", zap.String("chat_id", ev.ChatID), zap.String("item_id", ev.ItemID))
	}
}

func (s *Session) onServerError(frame domain.Frame) {
	var ev domain.ErrorPayload
	if err := frame.Decode(&ev); err != nil {
		logger.Log.Warn("decode error event", zap.Error(err))
		return
	}
	op := string(ev.Action)
	if op == "" {
		op = "server"
	}
	s.report(op, errors.New(ev.Message))
}

func (s *Session) checkTarget(nav *Resolution, ref domain.ConversationRef) error {
	switch {
	case ref.IsBound():
		return nil
	case ref.IsPending():
		if item := nav.Item(); item != nil && item.Status == domain.ItemDeleted {
			return domain.ErrItemUnavailable
		}
		return nil
	default:
		return domain.ErrNoConversation
	}
}

func (s *Session) viewing() string {
	nav := s.current()
	if nav == nil {
		return ""
	}
	return nav.ConversationID()
}

func (s *Session) current() *Resolution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav
}

func (s *Session) currentResolver() (*ConversationResolver, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolver == nil {
		return nil, errNotStarted
	}
	return s.resolver, nil
}

// beginNavigation 舊的 navigation 失效, 畫面先清空
func (s *Session) beginNavigation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navGen++
	s.nav = nil
	return s.navGen
}

func (s *Session) commitNavigation(gen uint64, nav *Resolution) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.navGen {
		return false
	}
	s.nav = nav
	return true
}

func (s *Session) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.navGen
}

func (s *Session) report(op string, err error) {
	logger.Log.Error(op, zap.Error(err))
	if s.view != nil {
		s.view.ShowError(op, err)
	}
}
