package router_test

import (
	"context"
	"io"
	"sort"
	"sync"

	"campus_chat/internal/chat/domain"
	"campus_chat/internal/gateway/repository"
)

// memory backed repositories for end to end tests

type convStore struct {
	mu    sync.Mutex
	convs map[string]domain.Conversation
}

func (s *convStore) Create(ctx context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.convs {
		if c.PairKey == conv.PairKey {
			return repository.ErrDuplicateConversation
		}
	}
	s.convs[conv.ID] = *conv
	return nil
}

func (s *convStore) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (s *convStore) FindByPairKey(ctx context.Context, pairKey string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.convs {
		if c.PairKey == pairKey {
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *convStore) ListByParticipant(ctx context.Context, userID string) ([]domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Conversation
	for _, c := range s.convs {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *convStore) NextSeq(ctx context.Context, id string, preview domain.MessagePreview) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	c.MessageSeq++
	c.LatestMessage = &preview
	s.convs[id] = c
	return c.MessageSeq, nil
}

func (s *convStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.convs)
}

type messageStore struct {
	mu   sync.Mutex
	msgs map[string][]domain.Message
}

func (s *messageStore) Insert(ctx context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs[msg.ConversationID] = append(s.msgs[msg.ConversationID], *msg)
	return nil
}

func (s *messageStore) ListByConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.msgs[conversationID]...), nil
}

type itemStore map[string]*domain.Item

func (s itemStore) FindByID(ctx context.Context, id string) (*domain.Item, error) {
	item, ok := s[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

type objectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *objectStore) Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectName] = data
	return "http://files.local/" + objectName, nil
}

func (s *objectStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
