package app

import (
	"sync"

	"campus_chat/internal/chat/domain"
	"campus_chat/pkg/logger"

	"go.uber.org/zap"
)

// emitter outbound side of ConnectionManager
type emitter interface {
	Emit(event domain.Action, payload interface{}) error
	OnConnect(hook func())
}

// RoomMembership tracks which conversation rooms this client asked to join.
// Joins are advisory and best-effort; the set only grows until Reset and is
// re-announced on every new connection.
type RoomMembership struct {
	conn emitter

	mu     sync.Mutex
	rooms  []string
	joined map[string]struct{}
}

// NewRoomMembership create RoomMembership, re-join runs on each connect
func NewRoomMembership(conn emitter) *RoomMembership {
	r := &RoomMembership{
		conn:   conn,
		joined: make(map[string]struct{}),
	}
	conn.OnConnect(r.rejoin)
	return r
}

// Join record conversationID and emit join_chat. The join is re-issued even
// when already a member; a failed emit is retried on the next connection.
func (r *RoomMembership) Join(conversationID string) error {
	if conversationID == "" {
		return nil
	}
	r.remember(conversationID)
	return r.emit(conversationID)
}

// Ensure join only when the room is not already in the set
func (r *RoomMembership) Ensure(conversationID string) error {
	if conversationID == "" {
		return nil
	}
	r.mu.Lock()
	_, ok := r.joined[conversationID]
	r.mu.Unlock()
	if ok {
		return nil
	}
	return r.Join(conversationID)
}

// Joined rooms in join order
func (r *RoomMembership) Joined() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.rooms...)
}

// Reset forget all rooms (logout)
func (r *RoomMembership) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms = nil
	r.joined = make(map[string]struct{})
}

func (r *RoomMembership) remember(conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.joined[conversationID]; ok {
		return
	}
	r.joined[conversationID] = struct{}{}
	r.rooms = append(r.rooms, conversationID)
}

func (r *RoomMembership) emit(conversationID string) error {
	err := r.conn.Emit(domain.JoinChat, domain.JoinChatPayload{ChatID: conversationID})
	if err != nil {
		logger.Log.Warn("join_chat not sent", zap.String("chat_id", conversationID), zap.Error(err))
	}
	return err
}

// rejoin 新連線沒有任何房間, 全部重新加入
func (r *RoomMembership) rejoin() {
	for _, id := range r.Joined() {
		_ = r.emit(id)
	}
}
