package middleware

import "github.com/gofiber/fiber/v2"

// ErrorBody is the JSON envelope every failed request gets. Message is
// duplicated at the top level for clients that only read json["message"].
type ErrorBody struct {
	RequestID string      `json:"request_id,omitempty"`
	Message   string      `json:"message"`
	Error     ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError responds with status and the error envelope.
func WriteError(c *fiber.Ctx, status int, code, message string) error {
	rid := RequestIDFrom(c)
	return c.Status(status).JSON(ErrorBody{
		RequestID: rid,
		Message:   message,
		Error:     ErrorDetail{Code: code, Message: message},
	})
}
