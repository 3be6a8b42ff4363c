package handler

import (
	"bytes"

	"github.com/gofiber/fiber/v2"

	"protonmc/internal/model"
	"protonmc/internal/service"
)

// DownloadMods godoc
// @Summary      Zip of the mods or plugins folder
// @Tags         mods
// @Produce      application/zip
// @Security     BearerAuth
// @Param        server  path  string  true  "Server name"
// @Success      200
// @Failure      400  {object}  middleware.ErrorBody
// @Router       /api/servers/{server}/mods [get]
func DownloadMods(svc service.ModService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		server := c.Params(serverParam)
		var buf bytes.Buffer
		if err := svc.WriteZip(c.UserContext(), server, &buf); err != nil {
			return respondError(c, err)
		}
		c.Attachment(server + ".zip")
		return c.Send(buf.Bytes())
	}
}

// ListMods answers [{file, name}].
func ListMods(svc service.ModService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := svc.List(c.Params(serverParam))
		if err != nil {
			return respondError(c, err)
		}
		if items == nil {
			items = []model.InstalledMod{}
		}
		return c.JSON(items)
	}
}

// SearchMods godoc
// @Summary      Search Modrinth or CurseForge for the server's loader and version
// @Tags         mods
// @Produce      json
// @Security     BearerAuth
// @Param        server    path   string  true   "Server name"
// @Param        q         query  string  false  "Search text"
// @Param        platform  query  string  false  "modrinth or curseforge"
// @Param        limit     query  int     false  "Result limit"
// @Success      200  {array}   model.ModSearchResult
// @Failure      400  {object}  middleware.ErrorBody
// @Failure      502  {object}  middleware.ErrorBody
// @Router       /api/servers/{server}/mods/search [get]
func SearchMods(svc service.ModService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 0)
		if limit < 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		res, err := svc.Search(c.UserContext(), c.Params(serverParam), c.Query("platform"), c.Query("q"), limit)
		if err != nil {
			return respondError(c, err)
		}
		if res == nil {
			res = []model.ModSearchResult{}
		}
		return c.JSON(res)
	}
}

// InstallMod downloads the newest compatible file of a project.
func InstallMod(svc service.ModService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		file, err := svc.Install(c.UserContext(), c.Params(serverParam), c.FormValue("platform"), c.FormValue("project_id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Installed " + file, "file": file})
	}
}

// RemoveMod deletes one jar.
func RemoveMod(svc service.ModService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Remove(c.Params(serverParam), c.Params("file")); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Removed."})
	}
}
