package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"campus_chat/internal/chat/domain"

	"github.com/gofiber/fiber/v2"
)

// StatusError non 2xx store response
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("store responded %d", e.Code)
	}
	return fmt.Sprintf("store responded %d: %s", e.Code, e.Message)
}

// HTTPStore Store over the chat service REST endpoints (fiber client agent)
type HTTPStore struct {
	baseURL string
	timeout time.Duration

	mu    sync.RWMutex
	token string
}

// NewHTTPStore create HTTPStore, token is sent as bearer credential until SetToken replaces it
func NewHTTPStore(baseURL, token string, timeout time.Duration) *HTTPStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: timeout,
	}
}

// SetToken replace the bearer credential, empty sends requests without one
func (s *HTTPStore) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *HTTPStore) bearer() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// ListConversations GET /chats
func (s *HTTPStore) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	var convs []domain.Conversation
	if err := s.do(ctx, fiber.Get(s.url("chats")), &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// ListMessages GET /chats/:id/messages
func (s *HTTPStore) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	var msgs []domain.Message
	if err := s.do(ctx, fiber.Get(s.url("chats", conversationID, "messages")), &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// CreateConversation POST /chats {itemId}
func (s *HTTPStore) CreateConversation(ctx context.Context, itemID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	agent := fiber.Post(s.url("chats")).JSON(fiber.Map{"itemId": itemID})
	if err := s.do(ctx, agent, &conv); err != nil {
		return nil, err
	}
	if conv.ID == "" {
		return nil, errors.New("store returned a conversation without id")
	}
	return &conv, nil
}

// UploadAttachment POST /chats/:id/upload multipart "file"
func (s *HTTPStore) UploadAttachment(ctx context.Context, conversationID string, file domain.Upload) (*domain.Attachment, error) {
	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	if file.MIMEType != "" {
		args.Set("mimeType", file.MIMEType)
	}

	agent := fiber.Post(s.url("chats", conversationID, "upload")).
		FileData(&fiber.FormFile{
			Fieldname: "file",
			Name:      file.FileName,
			Content:   file.Data,
		}).
		MultipartForm(args)

	var att domain.Attachment
	if err := s.do(ctx, agent, &att); err != nil {
		return nil, err
	}
	if att.URL == "" {
		return nil, errors.New("store returned an attachment without url")
	}
	if att.Kind == "" {
		att.Kind = domain.KindForMIME(att.MIMEType)
	}
	return &att, nil
}

// GetItem GET /items/:id
func (s *HTTPStore) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	var item domain.Item
	if err := s.do(ctx, fiber.Get(s.url("items", itemID)), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *HTTPStore) url(segments ...string) string {
	var b strings.Builder
	b.WriteString(s.baseURL)
	for _, seg := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}
	return b.String()
}

// do 送出請求並解析 JSON. fiber agent 不吃 ctx, 前後各檢查一次
func (s *HTTPStore) do(ctx context.Context, agent *fiber.Agent, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if tok := s.bearer(); tok != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+tok)
	}
	agent.Timeout(timeout)

	if err := agent.Parse(); err != nil {
		return err
	}
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		statusErr := &StatusError{Code: code, Message: errorMessage(body)}
		if code == fiber.StatusNotFound {
			return fmt.Errorf("%w: %w", domain.ErrNotFound, statusErr)
		}
		return statusErr
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode store response: %w", err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var resp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return strings.TrimSpace(string(body))
	}
	if resp.Error != "" {
		return resp.Error
	}
	return resp.Message
}
