package app

import (
	"context"
	"io"

	"campus_chat/internal/chat/domain"

	"github.com/stretchr/testify/mock"
)

// MockConversationRepository mock ConversationRepository
type MockConversationRepository struct {
	mock.Mock
}

// Create mock
func (m *MockConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	args := m.Called(ctx, conv)
	return args.Error(0)
}

// FindByID mock
func (m *MockConversationRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if conv, ok := args.Get(0).(*domain.Conversation); ok {
		return conv, args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByPairKey mock
func (m *MockConversationRepository) FindByPairKey(ctx context.Context, pairKey string) (*domain.Conversation, error) {
	args := m.Called(ctx, pairKey)
	if conv, ok := args.Get(0).(*domain.Conversation); ok {
		return conv, args.Error(1)
	}
	return nil, args.Error(1)
}

// ListByParticipant mock
func (m *MockConversationRepository) ListByParticipant(ctx context.Context, userID string) ([]domain.Conversation, error) {
	args := m.Called(ctx, userID)
	if convs, ok := args.Get(0).([]domain.Conversation); ok {
		return convs, args.Error(1)
	}
	return nil, args.Error(1)
}

// NextSeq mock
func (m *MockConversationRepository) NextSeq(ctx context.Context, id string, preview domain.MessagePreview) (int64, error) {
	args := m.Called(ctx, id, preview)
	return args.Get(0).(int64), args.Error(1)
}

// MockMessageRepository mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Insert mock
func (m *MockMessageRepository) Insert(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// ListByConversation mock
func (m *MockMessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	args := m.Called(ctx, conversationID)
	if msgs, ok := args.Get(0).([]domain.Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockItemRepository mock ItemRepository
type MockItemRepository struct {
	mock.Mock
}

// FindByID mock
func (m *MockItemRepository) FindByID(ctx context.Context, id string) (*domain.Item, error) {
	args := m.Called(ctx, id)
	if item, ok := args.Get(0).(*domain.Item); ok {
		return item, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockAttachmentStorage mock AttachmentStorage
type MockAttachmentStorage struct {
	mock.Mock
}

// Put mock, reads r so callers see the body consumed
func (m *MockAttachmentStorage) Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error) {
	data, _ := io.ReadAll(r)
	args := m.Called(ctx, objectName, data, size, contentType)
	return args.String(0), args.Error(1)
}
