package app

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"campus_chat/internal/chat/domain"
	"campus_chat/pkg/logger"
	"campus_chat/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ChatHandler REST side of the chat service
type ChatHandler struct {
	convUC    *ConversationUseCase
	messageUC *MessageUseCase
	attachUC  *AttachmentUseCase
}

// NewChatHandler create ChatHandler
func NewChatHandler(convUC *ConversationUseCase, messageUC *MessageUseCase, attachUC *AttachmentUseCase) *ChatHandler {
	return &ChatHandler{
		convUC:    convUC,
		messageUC: messageUC,
		attachUC:  attachUC,
	}
}

type createChatRequest struct {
	ItemID string `json:"itemId"`
}

// ListChats GET /chats
func (h *ChatHandler) ListChats(c *fiber.Ctx) error {
	user, err := participant(c)
	if err != nil {
		return fail(c, err)
	}

	convs, err := h.convUC.List(c.UserContext(), user.ID)
	if err != nil {
		return fail(c, err)
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}
	return c.JSON(convs)
}

// ListMessages GET /chats/:id/messages
func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	user, err := participant(c)
	if err != nil {
		return fail(c, err)
	}

	msgs, err := h.messageUC.History(c.UserContext(), c.Params("id"), user.ID)
	if err != nil {
		return fail(c, err)
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return c.JSON(msgs)
}

// CreateChat POST /chats, returns the existing conversation when the pair has one
func (h *ChatHandler) CreateChat(c *fiber.Ctx) error {
	user, err := participant(c)
	if err != nil {
		return fail(c, err)
	}

	var req createChatRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.ItemID) == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "itemId is required"})
	}

	conv, created, err := h.convUC.GetOrCreate(c.UserContext(), strings.TrimSpace(req.ItemID), user)
	if err != nil {
		return fail(c, err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(conv)
}

// Upload POST /chats/:id/upload multipart "file"
func (h *ChatHandler) Upload(c *fiber.Ctx) error {
	user, err := participant(c)
	if err != nil {
		return fail(c, err)
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}
	if fileHeader.Size > domain.MaxAttachmentSize {
		return fail(c, domain.ErrAttachmentTooLarge)
	}

	mimeType := c.FormValue("mimeType")
	if mimeType == "" {
		mimeType = fileHeader.Header.Get(fiber.HeaderContentType)
	}

	f, err := fileHeader.Open()
	if err != nil {
		return fail(c, err)
	}
	defer f.Close()

	att, err := h.attachUC.Upload(c.UserContext(), c.Params("id"), user.ID, fileHeader.Filename, mimeType, fileHeader.Size, io.Reader(f))
	if err != nil {
		return fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(att)
}

// GetItem GET /items/:id
func (h *ChatHandler) GetItem(c *fiber.Ctx) error {
	item, err := h.convUC.Item(c.UserContext(), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(item)
}

func participant(c *fiber.Ctx) (domain.Participant, error) {
	claims, ok := middlewares.ClaimsFrom(c)
	if !ok || claims.MemberID == "" {
		return domain.Participant{}, errUnauthorized
	}
	return domain.Participant{ID: claims.MemberID, Name: claims.Name, Email: claims.Email}, nil
}

var errUnauthorized = errors.New("unauthorized")

// StatusFor map use case errors to http status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrOwnItem),
		errors.Is(err, domain.ErrNoConversation),
		errors.Is(err, domain.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrItemUnavailable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAttachmentTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Log.Error("chat request failed", zap.String("path", c.Path()), zap.Error(err))
		msg = "internal error"
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
