package app

import (
	"context"
	"fmt"
	"sync"

	"campus_chat/internal/chat/domain"
	"campus_chat/pkg/logger"

	"go.uber.org/zap"
)

// HistoryFetcher history side of the store
type HistoryFetcher interface {
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
}

// StreamSnapshot rendered state of the open conversation
type StreamSnapshot struct {
	ConversationID string
	Messages       []domain.Message
	Loading        bool
}

// MessageStream ordered, de-duplicated messages of the one open conversation.
// Every Open bumps a generation; results of an older generation are dropped.
type MessageStream struct {
	fetcher HistoryFetcher

	mu        sync.Mutex
	openID    string
	gen       uint64
	cancel    context.CancelFunc
	loading   bool
	messages  []domain.Message
	seen      map[string]struct{}
	observers []func(StreamSnapshot)
}

// NewMessageStream create MessageStream
func NewMessageStream(fetcher HistoryFetcher) *MessageStream {
	return &MessageStream{
		fetcher: fetcher,
		seen:    make(map[string]struct{}),
	}
}

// Open switch to conversationID and load its history. Returns
// ErrStaleEventIgnored when another Open or Close superseded this one.
func (s *MessageStream) Open(ctx context.Context, conversationID string) error {
	gen, fetchCtx := s.begin(ctx, conversationID)
	return s.load(fetchCtx, gen, conversationID)
}

// OpenAsync switch now, load history in the background. The channel
// receives the load result.
func (s *MessageStream) OpenAsync(ctx context.Context, conversationID string) <-chan error {
	gen, fetchCtx := s.begin(ctx, conversationID)
	result := make(chan error, 1)
	go func() {
		result <- s.load(fetchCtx, gen, conversationID)
	}()
	return result
}

func (s *MessageStream) begin(ctx context.Context, conversationID string) (uint64, context.Context) {
	fetchCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.openID = conversationID
	s.cancel = cancel
	s.loading = true
	s.messages = nil
	s.seen = make(map[string]struct{})
	s.notifyLocked()
	return s.gen, fetchCtx
}

// Refresh re-fetch history of the open conversation without clearing what is
// shown. Fetched messages merge by id; a failed fetch leaves the state as it was.
func (s *MessageStream) Refresh(ctx context.Context) error {
	id, gen, fetchCtx, ok := s.beginRefresh(ctx)
	if !ok {
		return domain.ErrStaleEventIgnored
	}
	return s.load(fetchCtx, gen, id)
}

// RefreshAsync Refresh in the background
func (s *MessageStream) RefreshAsync(ctx context.Context) <-chan error {
	result := make(chan error, 1)
	id, gen, fetchCtx, ok := s.beginRefresh(ctx)
	if !ok {
		result <- domain.ErrStaleEventIgnored
		return result
	}
	go func() {
		result <- s.load(fetchCtx, gen, id)
	}()
	return result
}

func (s *MessageStream) beginRefresh(ctx context.Context) (string, uint64, context.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openID == "" {
		return "", 0, nil, false
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.cancel = cancel
	s.loading = true
	s.notifyLocked()
	return s.openID, s.gen, fetchCtx, true
}

func (s *MessageStream) load(ctx context.Context, gen uint64, conversationID string) error {
	history, err := s.fetcher.ListMessages(ctx, conversationID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		logger.Log.Debug("drop superseded history", zap.String("chat_id", conversationID))
		return domain.ErrStaleEventIgnored
	}
	s.cancel()
	s.cancel = nil
	s.loading = false

	if err != nil {
		// 保留目前畫面: 空的 history 加上 fetch 期間收到的即時訊息, 或 refresh 前的內容
		s.notifyLocked()
		logger.Log.Error("fetch history", zap.String("chat_id", conversationID), zap.Error(err))
		return fmt.Errorf("%w: %w", domain.ErrHistoryFetchFailed, err)
	}

	merged := make([]domain.Message, 0, len(history)+len(s.messages))
	seen := make(map[string]struct{}, len(history)+len(s.messages))
	for _, m := range history {
		if !belongs(m, conversationID) {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		m.ConversationID = conversationID
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}
	// fetch 期間到達的即時訊息接在 history 後面
	for _, m := range s.messages {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
	}

	s.messages = merged
	s.seen = seen
	s.notifyLocked()
	return nil
}

// Accept apply a live message. ErrStaleEventIgnored when it is for another
// conversation, nothing is open, or the id was already seen.
func (s *MessageStream) Accept(msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openID == "" || msg.ConversationID != s.openID || msg.ID == "" {
		return domain.ErrStaleEventIgnored
	}
	if _, dup := s.seen[msg.ID]; dup {
		return domain.ErrStaleEventIgnored
	}
	s.seen[msg.ID] = struct{}{}
	s.messages = append(s.messages, msg)
	s.notifyLocked()
	return nil
}

// Close forget the open conversation, pending loads become stale
func (s *MessageStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.openID = ""
	s.loading = false
	s.messages = nil
	s.seen = make(map[string]struct{})
	s.notifyLocked()
}

// ConversationID open conversation, empty when none
func (s *MessageStream) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openID
}

// Snapshot copy of the current state
func (s *MessageStream) Snapshot() StreamSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Messages copy of the open conversation messages
func (s *MessageStream) Messages() []domain.Message {
	return s.Snapshot().Messages
}

// OnChange observer called on every state change. Observers run under the
// stream lock and must not call back into the stream.
func (s *MessageStream) OnChange(fn func(StreamSnapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

func (s *MessageStream) snapshotLocked() StreamSnapshot {
	return StreamSnapshot{
		ConversationID: s.openID,
		Messages:       append([]domain.Message(nil), s.messages...),
		Loading:        s.loading,
	}
}

func (s *MessageStream) notifyLocked() {
	if len(s.observers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, fn := range s.observers {
		fn(snap)
	}
}

func belongs(m domain.Message, conversationID string) bool {
	if m.ID == "" {
		return false
	}
	return m.ConversationID == "" || m.ConversationID == conversationID
}
