package handler

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RegisterFrontend serves a built single-page app from dir: /assets/* as
// static files and index.html for every other non-API GET. It must be
// registered after all other routes.
func RegisterFrontend(app *fiber.App, dir string) bool {
	if dir == "" {
		return false
	}
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		return false
	}
	app.Static("/assets", filepath.Join(dir, "assets"))
	app.Get("/*", func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), "/api/") {
			return fiber.ErrNotFound
		}
		return c.SendFile(index)
	})
	return true
}
