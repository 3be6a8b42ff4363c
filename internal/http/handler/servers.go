package handler

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"protonmc/internal/service"
)

const serverParam = "server"

// ListServers godoc
// @Summary      List server names
// @Tags         servers
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   string
// @Router       /api/servers/ [get]
func ListServers(svc service.ServerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		names, err := svc.List(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(names)
	}
}

// CreateServer godoc
// @Summary      Create a server
// @Description  Validates the form and provisions the server in the background.
// @Tags         servers
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Security     BearerAuth
// @Param        name     formData  string  true  "Server name"
// @Param        type     formData  string  true  "spigot, paper, vanilla, forge, neoforge or fabric"
// @Param        version  formData  string  true  "Minecraft version"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  middleware.ErrorBody
// @Failure      409  {object}  middleware.ErrorBody
// @Router       /api/servers/ [post]
func CreateServer(svc service.ServerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		_, err := svc.Create(c.UserContext(), service.CreateServerInput{
			Name:    c.FormValue("name"),
			Type:    c.FormValue("type"),
			Version: c.FormValue("version"),
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Server creation started."})
	}
}

// DeleteServer godoc
// @Summary      Delete a server with its folder, backups and schedules
// @Tags         servers
// @Produce      json
// @Security     BearerAuth
// @Param        server  path  string  true  "Server name"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  middleware.ErrorBody
// @Router       /api/servers/{server} [delete]
func DeleteServer(svc service.ServerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Delete(c.UserContext(), c.Params(serverParam)); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": "Server deleted."})
	}
}

// GameVersions godoc
// @Summary      Installable game versions, newest first
// @Tags         servers
// @Produce      json
// @Security     BearerAuth
// @Param        type  query  string  true  "Server type"
// @Success      200  {object}  map[string][]string
// @Failure      502  {object}  middleware.ErrorBody
// @Router       /api/servers/game_versions [get]
func GameVersions(svc service.ServerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		versions, err := svc.GameVersions(c.UserContext(), c.Query("type"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": versions})
	}
}

// ServerStatus godoc
// @Summary      [isRunning, isOperational]
// @Tags         servers
// @Produce      json
// @Security     BearerAuth
// @Param        server  path  string  true  "Server name"
// @Success      200  {object}  map[string][]bool
// @Failure      404  {object}  middleware.ErrorBody
// @Router       /api/servers/{server}/status [get]
func ServerStatus(svc service.ServerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := svc.Status(c.Params(serverParam))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": []bool{st.Running, st.Operational}})
	}
}

// Players lists the players currently online.
func Players(svc service.ServerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := svc.Status(c.Params(serverParam))
		if err != nil {
			return respondError(c, err)
		}
		players := st.Players
		if players == nil {
			players = []string{}
		}
		return c.JSON(fiber.Map{"players": players})
	}
}

// StartTime answers epoch seconds, or false when the server is not running.
func StartTime(svc service.ServerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := svc.Status(c.Params(serverParam))
		if err != nil {
			return respondError(c, err)
		}
		if st.StartedAt == nil {
			return c.JSON(fiber.Map{"message": false})
		}
		return c.JSON(fiber.Map{"message": float64(st.StartedAt.UnixMilli()) / 1000})
	}
}

// Uptime answers "h:mm:ss", or false when the server is not running.
func Uptime(svc service.ServerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := svc.Status(c.Params(serverParam))
		if err != nil {
			return respondError(c, err)
		}
		if st.Uptime == "" {
			return c.JSON(fiber.Map{"message": false})
		}
		return c.JSON(fiber.Map{"message": st.Uptime})
	}
}

// ServerInfo godoc
// @Summary      Full status snapshot
// @Tags         servers
// @Produce      json
// @Security     BearerAuth
// @Param        server  path  string  true  "Server name"
// @Success      200  {object}  model.ServerStatus
// @Failure      404  {object}  middleware.ErrorBody
// @Router       /api/servers/{server}/info [get]
func ServerInfo(svc service.ServerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := svc.Status(c.Params(serverParam))
		if err != nil {
			return respondError(c, err)
		}
		if st.Players == nil {
			st.Players = []string{}
		}
		return c.JSON(st)
	}
}

// StartServer answers true when a stopped server was started.
func StartServer(svc service.ServerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, err := svc.Start(c.Params(serverParam))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": ok})
	}
}

// StopServer answers true when a stop was requested.
func StopServer(svc service.ServerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ok, err := svc.Stop(c.Params(serverParam))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": ok})
	}
}

// RestartServer blocks until the old process has exited.
func RestartServer(svc service.ServerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Restart(c.UserContext(), c.Params(serverParam)); err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": true})
	}
}

// Console godoc
// @Summary      Buffered console lines
// @Tags         console
// @Produce      json
// @Security     BearerAuth
// @Param        server  path  string  true  "Server name"
// @Success      200  {array}   string
// @Failure      403  {object}  middleware.ErrorBody
// @Router       /api/servers/{server}/console [get]
func Console(svc service.ServerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		lines, err := svc.Console(c.Params(serverParam))
		if err != nil {
			return respondError(c, err)
		}
		if lines == nil {
			lines = []string{}
		}
		return c.JSON(lines)
	}
}

// SendCommand godoc
// @Summary      Write a command to the server's stdin
// @Tags         console
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Security     BearerAuth
// @Param        server   path      string  true  "Server name"
// @Param        command  formData  string  true  "Console command"
// @Success      200  {object}  map[string]bool
// @Router       /api/servers/{server}/console [post]
func SendCommand(svc service.ServerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		command := c.FormValue("command")
		if strings.TrimSpace(command) == "" {
			return writeError(c, fiber.StatusBadRequest, "COMMAND_REQUIRED", "command is required")
		}
		ok, err := svc.SendCommand(c.Params(serverParam), command)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"message": ok})
	}
}

// Properties returns server.properties without hidden keys.
func Properties(svc service.ServerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		props, err := svc.Properties(c.Params(serverParam))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(props)
	}
}

// UpdateProperties godoc
// @Summary      Change existing server.properties keys
// @Tags         servers
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        server  path  string             true  "Server name"
// @Param        body    body  map[string]string  true  "Keys to change"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  middleware.ErrorBody
// @Router       /api/servers/{server}/properties [patch]
func UpdateProperties(svc service.ServerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var updates map[string]string
		if err := json.Unmarshal(c.Body(), &updates); err != nil || len(updates) == 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "body must be a non-empty JSON object of strings")
		}
		changed, err := svc.UpdateProperties(c.Params(serverParam), updates)
		if err != nil {
			return respondError(c, err)
		}
		if changed == nil {
			changed = []string{}
		}
		return c.JSON(fiber.Map{"message": "Properties updated.", "updated": changed})
	}
}

// Files lists a folder inside the server directory.
func Files(svc service.ServerService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entries, err := svc.Files(c.Params(serverParam), c.Query("folder"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(entries)
	}
}
