package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	RequestIDHeader   = "X-Request-ID"
	RequestIDLocalKey = "request_id"

	maxRequestIDLen = 64
)

// RequestID tags every request with an id, reusing a well-formed
// X-Request-ID from the client (a reverse proxy usually sets one) and
// echoing it in the response.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		c.Locals(RequestIDLocalKey, id)
		c.Set(RequestIDHeader, id)
		return c.Next()
	}
}

// RequestIDFrom returns the id stored by RequestID, or "" outside of it.
func RequestIDFrom(c *fiber.Ctx) string {
	id, _ := c.Locals(RequestIDLocalKey).(string)
	return id
}

// ids end up in log lines and JSON bodies, so only short tokens are accepted
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
