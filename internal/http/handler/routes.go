package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"protonmc/internal/auth"
	"protonmc/internal/events"
	"protonmc/internal/http/middleware"
	"protonmc/internal/service"
)

// Deps are the collaborators the routes need. Nil Gatherer and Hub disable
// /metrics and /ws.
type Deps struct {
	DB        Pinger
	Auth      service.AuthService
	Servers   service.ServerService
	Backups   service.BackupService
	Mods      service.ModService
	Schedules service.ScheduleService
	Hub       *events.Hub
	Gatherer  prometheus.Gatherer

	// BaseContext bounds websocket sessions; it is cancelled on shutdown.
	BaseContext    context.Context
	LoginRateLimit int
	Swagger        bool
}

// RegisterRoutes attaches every HTTP route to app.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.BaseContext == nil {
		d.BaseContext = context.Background()
	}

	app.Get("/health", HealthCheck(d.DB))
	app.Get("/healthz", LivenessProbe())
	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	if d.Swagger {
		app.Get("/swagger/*", swagger.HandlerDefault)
	}

	authed := middleware.Auth(d.Auth)
	perm := middleware.RequirePermission

	if d.Hub != nil {
		app.Get("/ws", authed, WebSocketGate(), WebSocket(d.BaseContext, d.Hub))
	}

	api := app.Group("/api")

	login := api.Group("/login")
	login.Post("/", loginLimiter(d.LoginRateLimit), Login(d.Auth))
	login.Get("/", authed, CurrentUser())
	login.Get("/validate", authed, ValidateToken())
	login.Post("/logout", authed, Logout(d.Auth))

	servers := api.Group("/servers", authed)
	servers.Get("/", perm(auth.PermViewServers), ListServers(d.Servers))
	servers.Post("/", perm(auth.PermCreateServer), CreateServer(d.Servers))
	servers.Get("/game_versions", perm(auth.PermCreateServer), GameVersions(d.Servers))
	servers.Delete("/:server", perm(auth.PermDeleteServer), DeleteServer(d.Servers))

	srv := servers.Group("/:server")
	srv.Get("/status", perm(auth.PermViewServers), ServerStatus(d.Servers))
	srv.Get("/status/players", perm(auth.PermViewServers), Players(d.Servers))
	srv.Get("/status/startTime", perm(auth.PermViewServers), StartTime(d.Servers))
	srv.Get("/uptime", perm(auth.PermViewServers), Uptime(d.Servers))
	srv.Get("/info", perm(auth.PermViewServers), ServerInfo(d.Servers))
	srv.Post("/start", perm(auth.PermControlServers), StartServer(d.Servers))
	srv.Post("/stop", perm(auth.PermControlServers), StopServer(d.Servers))
	srv.Post("/restart", perm(auth.PermControlServers), RestartServer(d.Servers))

	srv.Get("/console", perm(auth.PermViewConsole), Console(d.Servers))
	srv.Post("/console", perm(auth.PermSendCommands), SendCommand(d.Servers))

	srv.Get("/properties", perm(auth.PermViewConsole), Properties(d.Servers))
	srv.Patch("/properties", perm(auth.PermEditProperties), UpdateProperties(d.Servers))
	srv.Get("/files", perm(auth.PermViewConsole), Files(d.Servers))

	srv.Get("/backup", perm(auth.PermViewServers), ListBackups(d.Backups))
	srv.Post("/backup", perm(auth.PermCreateBackup), CreateBackup(d.Backups))
	srv.Get("/backup/progress", perm(auth.PermViewServers), BackupProgress(d.Backups))
	srv.Get("/backup/:backup/download", perm(auth.PermCreateBackup), DownloadBackup(d.Backups))
	srv.Post("/backup/:backup/restore", perm(auth.PermRestoreBackup), RestoreBackup(d.Backups))
	srv.Delete("/backup/:backup", perm(auth.PermRestoreBackup), DeleteBackup(d.Backups))

	srv.Get("/mods", perm(auth.PermViewServers), DownloadMods(d.Mods))
	srv.Get("/mods/list", perm(auth.PermViewServers), ListMods(d.Mods))
	srv.Get("/mods/search", perm(auth.PermManageMods), SearchMods(d.Mods))
	srv.Post("/mods", perm(auth.PermManageMods), InstallMod(d.Mods))
	srv.Delete("/mods/:file", perm(auth.PermManageMods), RemoveMod(d.Mods))

	srv.Get("/schedules", perm(auth.PermViewServers), ListSchedules(d.Schedules))
	srv.Post("/schedules", perm(auth.PermManageSchedules), CreateSchedule(d.Schedules))
	srv.Delete("/schedules/:id", perm(auth.PermManageSchedules), DeleteSchedule(d.Schedules))
}

func loginLimiter(limit int) fiber.Handler {
	if limit <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:        limit,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return writeError(c, fiber.StatusTooManyRequests, "TOO_MANY_REQUESTS", "Too many login attempts, try again later")
		},
	})
}
