package handler

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"protonmc/internal/events"
	"protonmc/internal/http/middleware"
	"protonmc/internal/model"
)

// WebSocketGate runs after middleware.Auth: it only lets upgrade requests through.
func WebSocketGate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}
}

// WebSocket hands the upgraded connection to the hub until it closes or ctx ends.
func WebSocket(ctx context.Context, hub *events.Hub) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		user, _ := conn.Locals(middleware.UserLocalKey).(*model.User)
		if user == nil {
			_ = conn.Close()
			return
		}
		hub.Serve(ctx, conn, user.Username, user.Permissions)
	})
}
