package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"campus_chat/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newAttachmentFixture() (*MockConversationRepository, *MockAttachmentStorage, *AttachmentUseCase) {
	convRepo := new(MockConversationRepository)
	storage := new(MockAttachmentStorage)
	convRepo.On("FindByID", mock.Anything, "C9").Return(&domain.Conversation{ID: "C9", Participants: []domain.Participant{buyer, seller}}, nil)
	return convRepo, storage, NewAttachmentUseCase(NewConversationUseCase(convRepo, new(MockItemRepository)), storage)
}

func TestUpload_StoresObject(t *testing.T) {
	_, storage, uc := newAttachmentFixture()
	storage.On("Put", mock.Anything, mock.MatchedBy(func(name string) bool {
		return strings.HasPrefix(name, "chats/C9/") && strings.HasSuffix(name, "-photo.png")
	}), []byte("png!"), int64(4), "image/png").Return("http://files/chats/C9/x-photo.png", nil)

	att, err := uc.Upload(context.Background(), "C9", "U1", "../../photo.png", "image/png", 4, bytes.NewReader([]byte("png!")))
	require.NoError(t, err)
	assert.Equal(t, domain.KindImage, att.Kind)
	assert.Equal(t, "photo.png", att.FileName)
	assert.Equal(t, "http://files/chats/C9/x-photo.png", att.URL)
	storage.AssertExpectations(t)
}

func TestUpload_Rejects(t *testing.T) {
	_, storage, uc := newAttachmentFixture()

	_, err := uc.Upload(context.Background(), "C9", "U1", "big.pdf", "application/pdf", domain.MaxAttachmentSize+1, bytes.NewReader(nil))
	assert.ErrorIs(t, err, domain.ErrAttachmentTooLarge)

	_, err = uc.Upload(context.Background(), "C9", "X1", "a.pdf", "application/pdf", 1, bytes.NewReader([]byte("a")))
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	storage.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpload_StorageFailure(t *testing.T) {
	_, storage, uc := newAttachmentFixture()
	storage.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "application/octet-stream").Return("", errors.New("bucket down"))

	_, err := uc.Upload(context.Background(), "C9", "U1", "notes", "", 1, bytes.NewReader([]byte("a")))
	assert.ErrorIs(t, err, domain.ErrUploadFailed)
}
