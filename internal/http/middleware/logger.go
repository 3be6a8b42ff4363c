package middleware

import (
	"io"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"protonmc/internal/logging"
)

// Logger writes one JSON access log line per request to stdout.
func Logger() fiber.Handler {
	return LoggerWithWriter(os.Stdout, time.UTC)
}

// LoggerWithWriter is Logger with an explicit sink and timestamp location.
func LoggerWithWriter(w io.Writer, loc *time.Location) fiber.Handler {
	return AccessLog(logging.New(w, loc, logging.LevelInfo))
}

// AccessLog logs request_id, method, path, status and latency (ms) through log.
func AccessLog(log *logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		rid := RequestIDFrom(c)
		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}

		log.Entry(map[string]any{
			"request_id": rid,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     status,
			"latency":    float64(time.Since(start).Microseconds()) / 1000,
		})

		return err
	}
}
