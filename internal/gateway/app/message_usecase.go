package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"campus_chat/internal/chat/domain"
	"campus_chat/internal/gateway/repository"
	"campus_chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MessageUseCase persist messages and fan them out
type MessageUseCase struct {
	convs       *ConversationUseCase
	convRepo    repository.ConversationRepository
	msgRepo     repository.MessageRepository
	broadcaster repository.Broadcaster
}

// NewMessageUseCase init message use case
func NewMessageUseCase(
	convs *ConversationUseCase,
	c repository.ConversationRepository,
	m repository.MessageRepository,
	b repository.Broadcaster,
) *MessageUseCase {
	return &MessageUseCase{
		convs:       convs,
		convRepo:    c,
		msgRepo:     m,
		broadcaster: b,
	}
}

// Send store and fan out a message. chatId is a conversation id, or an item
// id for the first message about an item: the conversation is then created
// and chat_created goes to the sender before the message itself.
func (uc *MessageUseCase) Send(ctx context.Context, sender domain.Participant, req domain.SendMessagePayload) (*domain.Message, error) {
	kind, err := validate(&req)
	if err != nil {
		return nil, err
	}

	conv, err := uc.convRepo.FindByID(ctx, req.ChatID)
	switch {
	case err == nil:
		if !conv.HasParticipant(sender.ID) {
			return nil, domain.ErrNotParticipant
		}
	case errors.Is(err, domain.ErrNotFound):
		conv, err = uc.materialize(ctx, req.ChatID, sender)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	// snapshot 以對話裡的資料為準, token 沒有 name/email 時補上
	for _, p := range conv.Participants {
		if p.ID == sender.ID {
			if sender.Name == "" {
				sender.Name = p.Name
			}
			if sender.Email == "" {
				sender.Email = p.Email
			}
			sender.Role = p.Role
		}
	}

	seq, err := uc.convRepo.NextSeq(ctx, conv.ID, domain.MessagePreview{Content: req.Content, Type: kind})
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		Sender:         sender,
		Kind:           kind,
		Content:        req.Content,
		FileURL:        req.FileURL,
		FileName:       req.FileName,
		MIMEType:       req.MIMEType,
		Seq:            seq,
		CreatedAt:      time.Now().UTC(),
	}
	if err := uc.msgRepo.Insert(ctx, msg); err != nil {
		return nil, err
	}

	uc.fanOut(ctx, conv, msg)
	return msg, nil
}

// History messages of a conversation for a participant
func (uc *MessageUseCase) History(ctx context.Context, conversationID, userID string) ([]domain.Message, error) {
	if _, err := uc.convs.Get(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return uc.msgRepo.ListByConversation(ctx, conversationID)
}

// CanJoin check userID may subscribe to the conversation room
func (uc *MessageUseCase) CanJoin(ctx context.Context, conversationID, userID string) error {
	_, err := uc.convs.Get(ctx, conversationID, userID)
	return err
}

func (uc *MessageUseCase) materialize(ctx context.Context, itemID string, sender domain.Participant) (*domain.Conversation, error) {
	conv, created, err := uc.convs.GetOrCreate(ctx, itemID, sender)
	if err != nil {
		return nil, err
	}

	frame, err := domain.NewFrame(domain.ChatCreated, domain.ChatCreatedPayload{ChatID: conv.ID, ItemID: itemID})
	if err != nil {
		return nil, err
	}
	if err := uc.broadcaster.Publish(ctx, repository.UserChannel(sender.ID), frame); err != nil {
		logger.Log.Error("publish chat_created", zap.String("chat_id", conv.ID), zap.Error(err))
	}
	logger.Log.Info("item message bound", zap.String("item_id", itemID), zap.String("chat_id", conv.ID), zap.Bool("created", created))
	return conv, nil
}

// fanOut room channel + 每個成員的 user channel, 同一連線由 message id 去重
func (uc *MessageUseCase) fanOut(ctx context.Context, conv *domain.Conversation, msg *domain.Message) {
	frame, err := domain.NewFrame(domain.ReceiveMessage, msg)
	if err != nil {
		logger.Log.Error("encode receive_message", zap.Error(err))
		return
	}

	channels := []string{repository.RoomChannel(conv.ID)}
	for _, p := range conv.Participants {
		channels = append(channels, repository.UserChannel(p.ID))
	}
	for _, ch := range channels {
		if err := uc.broadcaster.Publish(ctx, ch, frame); err != nil {
			logger.Log.Error("publish receive_message", zap.String("channel", ch), zap.Error(err))
		}
	}
}

func validate(req *domain.SendMessagePayload) (domain.MessageKind, error) {
	req.ChatID = strings.TrimSpace(req.ChatID)
	if req.ChatID == "" {
		return "", domain.ErrNoConversation
	}

	kind := req.Type
	if kind == "" {
		kind = domain.KindText
	}
	switch kind {
	case domain.KindText:
		req.Content = strings.TrimSpace(req.Content)
		if req.Content == "" {
			return "", domain.ErrEmptyMessage
		}
	case domain.KindImage, domain.KindFile:
		if req.FileURL == "" {
			return "", errors.New("attachment message without fileUrl")
		}
		if req.Content == "" {
			req.Content = domain.PreviewFor(kind)
		}
	default:
		return "", errors.New("unknown message type " + string(kind))
	}
	return kind, nil
}
