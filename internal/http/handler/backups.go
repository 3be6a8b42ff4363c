package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"protonmc/internal/model"
	"protonmc/internal/service"
	"protonmc/internal/storage"
)

const backupParam = "backup"

// ListBackups godoc
// @Summary      Backups of a server, newest first
// @Description  Names by default; detail=true returns objects with size and creation time.
// @Tags         backups
// @Produce      json
// @Security     BearerAuth
// @Param        server  path   string  true   "Server name"
// @Param        detail  query  bool    false  "Return objects"
// @Success      200  {array}   string
// @Router       /api/servers/{server}/backup [get]
func ListBackups(svc service.BackupService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := svc.List(c.UserContext(), c.Params(serverParam))
		if err != nil {
			return respondError(c, err)
		}
		if items == nil {
			items = []model.Backup{}
		}
		if c.QueryBool("detail") {
			return c.JSON(items)
		}
		names := make([]string, 0, len(items))
		for _, b := range items {
			names = append(names, b.Name)
		}
		return c.JSON(names)
	}
}

// CreateBackup godoc
// @Summary      Start a backup job
// @Tags         backups
// @Produce      json
// @Security     BearerAuth
// @Param        server  path  string  true  "Server name"
// @Success      200  {object}  map[string]string
// @Router       /api/servers/{server}/backup [post]
func CreateBackup(svc service.BackupService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		started, err := svc.Start(c.UserContext(), c.Params(serverParam))
		if err != nil {
			return respondError(c, err)
		}
		if !started {
			return c.JSON(fiber.Map{"message": "A backup for this server is already in progress."})
		}
		return c.JSON(fiber.Map{"message": "Backup started."})
	}
}

// BackupProgress answers {isBackupping, backupProgress}.
func BackupProgress(svc service.BackupService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := svc.Progress(c.Params(serverParam))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(p)
	}
}

// DownloadBackup godoc
// @Summary      Download a backup archive
// @Description  Redirects to a presigned URL when the store supports it, otherwise streams the zip.
// @Tags         backups
// @Produce      application/zip
// @Security     BearerAuth
// @Param        server  path  string  true  "Server name"
// @Param        backup  path  string  true  "Backup name"
// @Success      200
// @Success      302
// @Failure      404  {object}  middleware.ErrorBody
// @Router       /api/servers/{server}/backup/{backup}/download [get]
func DownloadBackup(svc service.BackupService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		server, name := c.Params(serverParam), c.Params(backupParam)
		url, err := svc.DownloadURL(c.UserContext(), server, name)
		if err == nil {
			return c.Redirect(url, fiber.StatusFound)
		}
		if !errors.Is(err, storage.ErrPresignUnsupported) {
			return respondError(c, err)
		}

		rc, b, err := svc.Open(c.UserContext(), server, name)
		if err != nil {
			return respondError(c, err)
		}
		c.Attachment(b.Name + ".zip")
		// fasthttp closes rc once the body is written
		if b.Size > 0 {
			return c.SendStream(rc, int(b.Size))
		}
		return c.SendStream(rc)
	}
}

// RestoreBackup replaces the server folder with the archive contents.
func RestoreBackup(svc service.BackupService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Restore(c.UserContext(), c.Params(serverParam), c.Params(backupParam)); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Backup restored."})
	}
}

// DeleteBackup removes the archive and its metadata.
func DeleteBackup(svc service.BackupService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Delete(c.UserContext(), c.Params(serverParam), c.Params(backupParam)); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Backup deleted."})
	}
}
