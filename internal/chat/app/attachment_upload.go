package app

import (
	"context"
	"fmt"

	"campus_chat/internal/chat/domain"
	errprocess "campus_chat/pkg/err"

	"go.uber.org/zap"
)

// UploadStore store calls the uploader needs
type UploadStore interface {
	CreateConversation(ctx context.Context, itemID string) (*domain.Conversation, error)
	UploadAttachment(ctx context.Context, conversationID string, file domain.Upload) (*domain.Attachment, error)
}

// liveSender outbound side used for the final send_message
type liveSender interface {
	Emit(event domain.Action, payload interface{}) error
	Connected() bool
}

// AttachmentUploader create conversation (when pending) -> upload -> emit, strictly in order
type AttachmentUploader struct {
	store UploadStore
	live  liveSender
}

// NewAttachmentUploader create AttachmentUploader
func NewAttachmentUploader(store UploadStore, live liveSender) *AttachmentUploader {
	return &AttachmentUploader{store: store, live: live}
}

// Send upload file into target and announce it. onCreated runs right after a
// pending target got its conversation, before the upload starts. Returns the
// conversation id the attachment was sent to.
func (u *AttachmentUploader) Send(ctx context.Context, file domain.Upload, target domain.ConversationRef, onCreated func(conv *domain.Conversation)) (string, error) {
	if file.Size() > domain.MaxAttachmentSize {
		return "", fmt.Errorf("%w: %d bytes, limit %d", domain.ErrAttachmentTooLarge, file.Size(), domain.MaxAttachmentSize)
	}
	if !target.IsPending() && !target.IsBound() {
		return "", domain.ErrNoConversation
	}
	// 附件訊息只能即時送出, 沒有連線就不建立對話也不上傳
	if !u.live.Connected() {
		return "", domain.ErrConnectionUnavailable
	}

	conversationID, bound := target.ConversationID()
	if !bound {
		itemID, _ := target.ItemID()
		conv, err := u.store.CreateConversation(ctx, itemID)
		if err != nil {
			return "", errprocess.Wrap(domain.ErrConversationCreationFailed, err, zap.String("item_id", itemID))
		}
		conversationID = conv.ID
		if onCreated != nil {
			onCreated(conv)
		}
	}

	att, err := u.store.UploadAttachment(ctx, conversationID, file)
	if err != nil {
		return conversationID, errprocess.Wrap(domain.ErrUploadFailed, err, zap.String("chat_id", conversationID))
	}

	kind := att.Kind
	if kind == "" {
		kind = domain.KindForMIME(att.MIMEType)
	}
	mimeType := att.MIMEType
	if mimeType == "" {
		mimeType = file.MIMEType
	}
	fileName := att.FileName
	if fileName == "" {
		fileName = file.FileName
	}

	payload := domain.SendMessagePayload{
		ChatID:   conversationID,
		Content:  domain.PreviewFor(kind),
		Type:     kind,
		FileURL:  att.URL,
		FileName: fileName,
		MIMEType: mimeType,
	}
	if err := u.live.Emit(domain.SendMessage, payload); err != nil {
		return conversationID, fmt.Errorf("%w: %w", domain.ErrConnectionUnavailable, err)
	}
	return conversationID, nil
}
