package app

import (
	"context"
	"errors"
	"time"

	"campus_chat/internal/chat/domain"
	"campus_chat/internal/gateway/repository"
	"campus_chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConversationUseCase lazy conversation creation and listing
type ConversationUseCase struct {
	convRepo repository.ConversationRepository
	itemRepo repository.ItemRepository
}

// NewConversationUseCase init conversation use case
func NewConversationUseCase(c repository.ConversationRepository, i repository.ItemRepository) *ConversationUseCase {
	return &ConversationUseCase{
		convRepo: c,
		itemRepo: i,
	}
}

// GetOrCreate the buyer's conversation about itemID, created on first use.
// created reports whether this call created it.
func (uc *ConversationUseCase) GetOrCreate(ctx context.Context, itemID string, buyer domain.Participant) (*domain.Conversation, bool, error) {
	item, err := uc.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, false, err
	}
	if item.Status == domain.ItemDeleted {
		return nil, false, domain.ErrItemUnavailable
	}
	if item.Seller == nil || item.Seller.ID == "" {
		return nil, false, domain.ErrItemUnavailable
	}
	if item.Seller.ID == buyer.ID {
		return nil, false, domain.ErrOwnItem
	}

	key := domain.PairKey(item.ID, buyer.ID, item.Seller.ID)
	existing, err := uc.convRepo.FindByPairKey(ctx, key)
	if err == nil {
		existing.Item = item
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}

	buyer.Role = "buyer"
	seller := *item.Seller
	seller.Role = "seller"
	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:           uuid.New().String(),
		ItemID:       item.ID,
		PairKey:      key,
		Participants: []domain.Participant{buyer, seller},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := uc.convRepo.Create(ctx, conv); err != nil {
		if !errors.Is(err, repository.ErrDuplicateConversation) {
			return nil, false, err
		}
		// 同時建立, 以先寫入的為準
		existing, err := uc.convRepo.FindByPairKey(ctx, key)
		if err != nil {
			return nil, false, err
		}
		existing.Item = item
		return existing, false, nil
	}

	logger.Log.Info("conversation created",
		zap.String("chat_id", conv.ID),
		zap.String("item_id", item.ID),
		zap.String("buyer", buyer.ID),
		zap.String("seller", seller.ID),
	)
	conv.Item = item
	return conv, true, nil
}

// List conversations of userID with item summaries
func (uc *ConversationUseCase) List(ctx context.Context, userID string) ([]domain.Conversation, error) {
	convs, err := uc.convRepo.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := make(map[string]*domain.Item)
	for i := range convs {
		uc.decorate(ctx, &convs[i], items)
	}
	return convs, nil
}

// Get conversation, only for its participants
func (uc *ConversationUseCase) Get(ctx context.Context, conversationID, userID string) (*domain.Conversation, error) {
	conv, err := uc.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(userID) {
		return nil, domain.ErrNotParticipant
	}
	return conv, nil
}

// Item item summary
func (uc *ConversationUseCase) Item(ctx context.Context, itemID string) (*domain.Item, error) {
	return uc.itemRepo.FindByID(ctx, itemID)
}

// decorate 補上 item 與 lastMessage, item 查不到時保留 id
func (uc *ConversationUseCase) decorate(ctx context.Context, conv *domain.Conversation, cache map[string]*domain.Item) {
	if conv.LatestMessage != nil {
		conv.LastMessage = conv.LatestMessage.Content
	}
	if conv.ItemID == "" {
		return
	}

	item, ok := cache[conv.ItemID]
	if !ok {
		found, err := uc.itemRepo.FindByID(ctx, conv.ItemID)
		if err != nil {
			logger.Log.Warn("conversation item missing", zap.String("item_id", conv.ItemID), zap.Error(err))
			found = &domain.Item{ID: conv.ItemID, Status: domain.ItemDeleted}
		}
		cache[conv.ItemID] = found
		item = found
	}
	conv.Item = item
}
