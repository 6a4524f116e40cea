package app

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"campus_chat/internal/chat/domain"
	"campus_chat/internal/gateway/repository"
	errprocess "campus_chat/pkg/err"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AttachmentUseCase store chat attachments
type AttachmentUseCase struct {
	convs   *ConversationUseCase
	storage repository.AttachmentStorage
}

// NewAttachmentUseCase init attachment use case
func NewAttachmentUseCase(convs *ConversationUseCase, s repository.AttachmentStorage) *AttachmentUseCase {
	return &AttachmentUseCase{convs: convs, storage: s}
}

// Upload store a file into a conversation the user takes part in
func (uc *AttachmentUseCase) Upload(ctx context.Context, conversationID, userID, fileName, mimeType string, size int64, r io.Reader) (*domain.Attachment, error) {
	if size > domain.MaxAttachmentSize {
		return nil, domain.ErrAttachmentTooLarge
	}
	if _, err := uc.convs.Get(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	name := sanitizeFileName(fileName)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	objectName := fmt.Sprintf("chats/%s/%s-%s", conversationID, uuid.New().String(), name)

	url, err := uc.storage.Put(ctx, objectName, r, size, mimeType)
	if err != nil {
		return nil, errprocess.Wrap(domain.ErrUploadFailed, err, zap.String("object", objectName))
	}

	return &domain.Attachment{
		Kind:     domain.KindForMIME(mimeType),
		URL:      url,
		FileName: name,
		MIMEType: mimeType,
	}, nil
}

func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}
