package router

import (
	"context"

	"campus_chat/internal/gateway/app"
	"campus_chat/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes 注册 chat REST 與 websocket 路由
func RegisterRoutes(r *fiber.App, chatHandler *app.ChatHandler, chatWebsocket *app.ChatWebsocketHandler) {
	r.Use(middlewares.JWTMiddleware())

	r.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		chatWebsocket.HandleConnection(context.Background(), c)
	}))

	r.Get("/chats", chatHandler.ListChats)
	r.Post("/chats", chatHandler.CreateChat)
	r.Get("/chats/:id/messages", chatHandler.ListMessages)
	r.Post("/chats/:id/upload", chatHandler.Upload)
	r.Get("/items/:id", chatHandler.GetItem)
}
