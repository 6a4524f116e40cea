package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"campus_chat/internal/chat/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, setup func(app *fiber.App)) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	setup(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String()
}

// 測試帶 bearer token 並解析對話列表
func TestHTTPStore_ListConversations(t *testing.T) {
	baseURL := newTestServer(t, func(app *fiber.App) {
		app.Get("/chats", func(c *fiber.Ctx) error {
			if c.Get(fiber.HeaderAuthorization) != "Bearer tok" {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
			}
			return c.JSON([]fiber.Map{{
				"_id":          "c1",
				"participants": []fiber.Map{{"_id": "buyer"}, {"_id": "seller", "email": "s@campus.edu"}},
				"item":         fiber.Map{"_id": "i1", "title": "desk", "price": 20},
				"lastMessage":  "hi",
			}})
		})
	})

	store := NewHTTPStore(baseURL, "tok", time.Second)
	convs, err := store.ListConversations(context.Background())

	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "c1", convs[0].ID)
	assert.Equal(t, "i1", convs[0].ItemRef())
	assert.Equal(t, "hi", convs[0].Preview())
}

// 測試 sender 可能是物件, chatId 可能是字串
func TestHTTPStore_ListMessages(t *testing.T) {
	baseURL := newTestServer(t, func(app *fiber.App) {
		app.Get("/chats/:id/messages", func(c *fiber.Ctx) error {
			return c.JSON([]fiber.Map{
				{"_id": "m1", "chatId": c.Params("id"), "sender": fiber.Map{"_id": "u1", "name": "Ann"}, "type": "text", "content": "hi"},
				{"_id": "m2", "chatId": fiber.Map{"_id": c.Params("id")}, "sender": "u2", "type": "image", "content": "📷 Image", "fileUrl": "http://f/x.png"},
			})
		})
	})

	msgs, err := NewHTTPStore(baseURL, "tok", time.Second).ListMessages(context.Background(), "c1")

	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "c1", msgs[0].ConversationID)
	assert.Equal(t, "Ann", msgs[0].Sender.Name)
	assert.Equal(t, "c1", msgs[1].ConversationID)
	assert.Equal(t, "u2", msgs[1].Sender.ID)
	att, ok := msgs[1].Attachment()
	assert.True(t, ok)
	assert.Equal(t, "http://f/x.png", att.URL)
}

// 測試建立對話送出 itemId
func TestHTTPStore_CreateConversation(t *testing.T) {
	baseURL := newTestServer(t, func(app *fiber.App) {
		app.Post("/chats", func(c *fiber.Ctx) error {
			var body struct {
				ItemID string `json:"itemId"`
			}
			if err := c.BodyParser(&body); err != nil {
				return c.SendStatus(fiber.StatusBadRequest)
			}
			return c.Status(fiber.StatusCreated).JSON(fiber.Map{"_id": "c9", "item": fiber.Map{"_id": body.ItemID}})
		})
	})

	conv, err := NewHTTPStore(baseURL, "tok", time.Second).CreateConversation(context.Background(), "i1")

	require.NoError(t, err)
	assert.Equal(t, "i1", conv.ItemRef())
	assert.Equal(t, "c9", conv.ID)
}

// 測試 multipart 上傳
func TestHTTPStore_UploadAttachment(t *testing.T) {
	baseURL := newTestServer(t, func(app *fiber.App) {
		app.Post("/chats/:id/upload", func(c *fiber.Ctx) error {
			fh, err := c.FormFile("file")
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
			return c.JSON(fiber.Map{
				"kind":     "image",
				"url":      fmt.Sprintf("http://files/%s/%s?size=%d", c.Params("id"), fh.Filename, fh.Size),
				"fileName": fh.Filename,
				"mimeType": c.FormValue("mimeType"),
			})
		})
	})

	att, err := NewHTTPStore(baseURL, "tok", time.Second).UploadAttachment(context.Background(), "c1", domain.Upload{
		FileName: "desk.png", MIMEType: "image/png", Data: []byte("pngdata"),
	})

	require.NoError(t, err)
	assert.Equal(t, "desk.png", att.FileName)
	assert.Equal(t, "image/png", att.MIMEType)
	assert.Equal(t, domain.KindImage, att.Kind)
	assert.Equal(t, "http://files/c1/desk.png?size=7", att.URL)
}

// 測試 404 與其他錯誤狀態
func TestHTTPStore_ErrorStatus(t *testing.T) {
	baseURL := newTestServer(t, func(app *fiber.App) {
		app.Get("/items/:id", func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "item not found"})
		})
		app.Get("/chats", func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "db down"})
		})
	})
	store := NewHTTPStore(baseURL, "tok", time.Second)

	_, err := store.GetItem(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.ListConversations(context.Background())
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, fiber.StatusInternalServerError, statusErr.Code)
	assert.Equal(t, "db down", statusErr.Message)
}

// 測試 ctx 已取消不送請求
func TestHTTPStore_CanceledContext(t *testing.T) {
	baseURL := newTestServer(t, func(app *fiber.App) {
		app.Get("/chats", func(c *fiber.Ctx) error {
			return c.JSON([]fiber.Map{})
		})
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTPStore(baseURL, "tok", time.Second).ListConversations(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

// 測試 SetToken 換掉之後的 bearer, 清空後不帶 Authorization
func TestHTTPStore_SetToken(t *testing.T) {
	seen := make(chan string, 3)
	baseURL := newTestServer(t, func(app *fiber.App) {
		app.Get("/chats", func(c *fiber.Ctx) error {
			seen <- c.Get(fiber.HeaderAuthorization)
			return c.JSON([]fiber.Map{})
		})
	})
	store := NewHTTPStore(baseURL, "tokA", time.Second)

	_, err := store.ListConversations(context.Background())
	require.NoError(t, err)
	store.SetToken("tokB")
	_, err = store.ListConversations(context.Background())
	require.NoError(t, err)
	store.SetToken("")
	_, err = store.ListConversations(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer tokA", <-seen)
	assert.Equal(t, "Bearer tokB", <-seen)
	assert.Equal(t, "", <-seen)
}
