package handler

import (
	"errors"
	"io/fs"

	"github.com/gofiber/fiber/v2"

	"protonmc/internal/archive"
	"protonmc/internal/auth"
	"protonmc/internal/http/middleware"
	"protonmc/internal/minecraft"
	"protonmc/internal/mods"
	"protonmc/internal/provision"
	"protonmc/internal/scheduler"
	"protonmc/internal/service"
)

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "SERVER_NOT_FOUND", "INTERNAL_ERROR")
// - message: human-readable safe message (no internal details)
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return middleware.WriteError(c, status, code, message)
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string // empty means use target's text
}

var errorMappings = []errorMapping{
	{service.ErrServerNotFound, fiber.StatusNotFound, "SERVER_NOT_FOUND", "Server does not exist"},
	{service.ErrServerExists, fiber.StatusConflict, "SERVER_EXISTS", ""},
	{service.ErrInvalidServerName, fiber.StatusBadRequest, "INVALID_NAME", ""},
	{service.ErrInvalidServerType, fiber.StatusBadRequest, "INVALID_TYPE", ""},
	{service.ErrVersionRequired, fiber.StatusBadRequest, "VERSION_REQUIRED", ""},
	{service.ErrServerRunning, fiber.StatusConflict, "SERVER_RUNNING", ""},
	{service.ErrServerCreating, fiber.StatusConflict, "SERVER_CREATING", ""},
	{service.ErrServerRestoring, fiber.StatusConflict, "SERVER_RESTORING", ""},

	{service.ErrBackupNotFound, fiber.StatusNotFound, "BACKUP_NOT_FOUND", ""},
	{service.ErrBackupInProgress, fiber.StatusConflict, "BACKUP_IN_PROGRESS", "A backup for this server is already in progress."},
	{archive.ErrUnsafePath, fiber.StatusUnprocessableEntity, "UNSAFE_ARCHIVE", ""},

	{service.ErrModsUnsupported, fiber.StatusBadRequest, "MODS_UNSUPPORTED", ""},
	{service.ErrProjectIDRequired, fiber.StatusBadRequest, "PROJECT_ID_REQUIRED", ""},
	{mods.ErrUnknownPlatform, fiber.StatusBadRequest, "UNKNOWN_PLATFORM", ""},
	{mods.ErrMissingAPIKey, fiber.StatusBadRequest, "MISSING_API_KEY", ""},
	{mods.ErrInvalidFile, fiber.StatusBadRequest, "INVALID_FILE", ""},
	{mods.ErrNotFound, fiber.StatusNotFound, "MOD_NOT_FOUND", ""},
	{mods.ErrNoCompatible, fiber.StatusNotFound, "NO_COMPATIBLE_FILE", ""},
	{mods.ErrUpstream, fiber.StatusBadGateway, "UPSTREAM_ERROR", ""},
	{provision.ErrUpstream, fiber.StatusBadGateway, "UPSTREAM_ERROR", ""},

	{minecraft.ErrHiddenProperty, fiber.StatusBadRequest, "HIDDEN_PROPERTY", ""},
	{minecraft.ErrPathEscapes, fiber.StatusBadRequest, "INVALID_PATH", ""},
	{fs.ErrNotExist, fiber.StatusNotFound, "NOT_FOUND", "file not found"},

	{service.ErrInvalidAction, fiber.StatusBadRequest, "INVALID_ACTION", ""},
	{service.ErrInvalidFrequency, fiber.StatusBadRequest, "INVALID_FREQUENCY", ""},
	{scheduler.ErrInvalidClock, fiber.StatusBadRequest, "INVALID_TIME", ""},
	{service.ErrScheduleNotFound, fiber.StatusNotFound, "SCHEDULE_NOT_FOUND", ""},

	{service.ErrInvalidCredentials, fiber.StatusUnauthorized, "INVALID_CREDENTIALS", "Incorrect username and password"},
	{auth.ErrInvalidToken, fiber.StatusUnauthorized, "UNAUTHORIZED", "Invalid token"},
	{auth.ErrMissingToken, fiber.StatusUnauthorized, "UNAUTHORIZED", "Token is missing"},
}

// respondError maps a service error to its HTTP status. Unknown errors are
// reported as 500 without their text.
func respondError(c *fiber.Ctx, err error) error {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = m.target.Error()
			}
			return writeError(c, m.status, m.code, msg)
		}
	}
	return err
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		case fiber.StatusUpgradeRequired:
			return writeError(c, status, "UPGRADE_REQUIRED", "websocket upgrade required")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "TOO_LARGE", "request body too large")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
