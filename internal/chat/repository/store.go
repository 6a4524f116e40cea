package repository

import (
	"context"

	"campus_chat/internal/chat/domain"
)

// Store request/response endpoints of the persistent chat store
type Store interface {
	// ListConversations conversations of the current user
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	// ListMessages full history of a conversation, oldest first
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	// CreateConversation get or create the conversation about itemID
	CreateConversation(ctx context.Context, itemID string) (*domain.Conversation, error)
	// UploadAttachment upload a file into a conversation
	UploadAttachment(ctx context.Context, conversationID string, file domain.Upload) (*domain.Attachment, error)
	// GetItem item summary, seller populated
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)
	// SetToken bearer credential for later calls, empty clears it
	SetToken(token string)
}

// FrameHandler receives every inbound frame of a live connection
type FrameHandler func(frame domain.Frame)

// LiveConn one open live connection
type LiveConn interface {
	// Emit fire-and-forget outbound event
	Emit(event domain.Action, payload interface{}) error
	// Close close the connection, Done fires afterwards
	Close() error
	// Done closed when the connection is gone (closed or dropped)
	Done() <-chan struct{}
	// Err drop reason, nil when closed by Close
	Err() error
}

// Dialer open live connections authenticated with a token
type Dialer interface {
	Dial(ctx context.Context, token string, handler FrameHandler) (LiveConn, error)
}
