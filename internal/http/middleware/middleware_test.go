package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"protonmc/internal/auth"
	"protonmc/internal/logging"
	"protonmc/internal/model"
)

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())

	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString(RequestIDFrom(c))
	})

	t.Run("should generate new request id if not present", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		ridHeader := resp.Header.Get(RequestIDHeader)
		assert.NotEmpty(t, ridHeader)

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, ridHeader, buf.String())
	})

	t.Run("should preserve existing request id", func(t *testing.T) {
		existingID := "test-id-123"
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, existingID)

		resp, _ := app.Test(req)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, existingID, resp.Header.Get(RequestIDHeader))

		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		assert.Equal(t, existingID, buf.String())
	})

	t.Run("should replace malformed request id", func(t *testing.T) {
		for _, bad := range []string{"has space", "line\nbreak", strings.Repeat("a", 65), `"quoted"`} {
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set(RequestIDHeader, bad)

			resp, _ := app.Test(req)

			got := resp.Header.Get(RequestIDHeader)
			assert.NotEqual(t, bad, got)
			_, err := uuid.Parse(got)
			assert.NoError(t, err, bad)
		}
	})
}

func TestRequestIDFrom_OutsideMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("[" + RequestIDFrom(c) + "]") })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	assert.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "[]", string(body))
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()

	app.Use(RequestID())
	app.Use(LoggerWithWriter(&buf, time.UTC))

	app.Get("/api/servers/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	req := httptest.NewRequest("GET", "/api/servers/", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	var logData map[string]any
	err := json.Unmarshal(buf.Bytes(), &logData)
	assert.NoError(t, err)

	assert.NotEmpty(t, logData["request_id"])
	assert.Equal(t, "GET", logData["method"])
	assert.Equal(t, "/api/servers/", logData["path"])
	assert.Equal(t, float64(fiber.StatusAccepted), logData["status"])
	assert.Equal(t, "info", logData["level"])
	assert.NotNil(t, logData["latency"])
	assert.NotEmpty(t, logData["ts"])
}

func TestAccessLog_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Use(AccessLog(logging.New(&buf, time.UTC, logging.LevelInfo).With("component", "http")))
	app.Get("/boom", func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "short and stout")
	})

	_, _ = app.Test(httptest.NewRequest("GET", "/boom", nil))

	var logData map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logData))
	assert.Equal(t, "http", logData["component"])
	assert.Equal(t, float64(fiber.StatusTeapot), logData["status"])
}

type stubAuthenticator struct {
	users map[string]*model.User
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, auth.ErrMissingToken
	}
	if u, ok := s.users[token]; ok {
		return u, nil
	}
	return nil, auth.ErrInvalidToken
}

func newAuthApp() *fiber.App {
	a := stubAuthenticator{users: map[string]*model.User{
		"viewer-token": {Username: "viewer", Permissions: 1},
		"admin-token":  {Username: "admin", Permissions: auth.MaxLevel},
	}}
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/me", Auth(a), func(c *fiber.Ctx) error {
		return c.SendString(CurrentUser(c).Username)
	})
	app.Post("/me", Auth(a), func(c *fiber.Ctx) error {
		return c.SendString(CurrentUser(c).Username)
	})
	app.Delete("/danger", Auth(a), RequirePermission(auth.PermDeleteServer), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func decodeBody(t *testing.T, r io.Reader) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.NewDecoder(r).Decode(&body))
	return body
}

func TestAuth(t *testing.T) {
	app := newAuthApp()

	t.Run("missing token", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		body := decodeBody(t, resp.Body)
		assert.Equal(t, "Token is missing", body.Message)
		assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
		assert.NotEmpty(t, body.RequestID)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer forged")
		resp, _ := app.Test(req)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Invalid token", decodeBody(t, resp.Body).Message)
	})

	t.Run("header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer viewer-token")
		resp, _ := app.Test(req)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		b, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "viewer", string(b))
	})

	t.Run("form field", func(t *testing.T) {
		form := url.Values{"Authorization": {"Bearer admin-token"}}
		req := httptest.NewRequest("POST", "/me", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		resp, _ := app.Test(req)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		b, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "admin", string(b))
	})

	t.Run("query parameter", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/me?Authorization=Bearer%20viewer-token", nil)
		resp, _ := app.Test(req)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})
}

func TestRequirePermission(t *testing.T) {
	app := newAuthApp()

	req := httptest.NewRequest("DELETE", "/danger", nil)
	req.Header.Set("Authorization", "viewer-token")
	resp, _ := app.Test(req)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "You do not have permission", decodeBody(t, resp.Body).Message)

	req = httptest.NewRequest("DELETE", "/danger", nil)
	req.Header.Set("Authorization", "admin-token")
	resp, _ = app.Test(req)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
