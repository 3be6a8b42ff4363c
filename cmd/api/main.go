package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"protonmc/docs"
	"protonmc/internal/auth"
	"protonmc/internal/config"
	"protonmc/internal/database"
	"protonmc/internal/database/migration"
	"protonmc/internal/events"
	handlers "protonmc/internal/http/handler"
	"protonmc/internal/http/middleware"
	"protonmc/internal/logging"
	"protonmc/internal/metrics"
	"protonmc/internal/minecraft"
	"protonmc/internal/mods"
	"protonmc/internal/notify"
	tracing "protonmc/internal/otel"
	"protonmc/internal/provision"
	"protonmc/internal/repository/sqlstore"
	"protonmc/internal/scheduler"
	"protonmc/internal/service"
	"protonmc/internal/storage"
)

// @title ProtonMC API
// @version 1.0
// @description Control panel backend for self-hosted Minecraft servers.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	loc := cfg.Location()
	log := logging.New(os.Stdout, loc, logging.ParseLevel(cfg.LogLevel))

	fatal := func(msg string, err error) {
		log.Error(msg, "error", err)
		os.Exit(1)
	}

	tokens, err := auth.NewTokenManager(cfg.SecretKey, cfg.TokenTTL)
	if err != nil {
		fatal("SECRET_KEY is not set, run `protonctl setup` first", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, log)
	if err != nil {
		fatal("failed to initialize tracing", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		fatal("failed to connect to database", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, cfg.Database.Driver, log); err != nil {
		fatal("failed to migrate database", err)
	}

	users := sqlstore.NewUserStore(db, cfg.Database.Driver)
	serverRepo := sqlstore.NewServerStore(db, cfg.Database.Driver)
	backupRepo := sqlstore.NewBackupStore(db, cfg.Database.Driver)
	scheduleRepo := sqlstore.NewScheduleStore(db, cfg.Database.Driver)

	// Backup archives go to the local folder or MinIO
	objStore, err := storage.New(cfg)
	if err != nil {
		fatal("failed to initialize backup storage", err)
	}

	upstream := provision.NewClient(provision.NewHTTPClient(0), provision.DefaultEndpoints())
	jdks := provision.NewJDKManager(cfg.Minecraft.JDKDir, cfg.Minecraft.JDKAutoInstall, upstream, log)
	installer := provision.NewInstaller(upstream, jdks, log)

	manager := minecraft.NewManager(minecraft.Options{
		Build: minecraft.NewCommandBuilder(jdks, minecraft.LaunchOptions{
			MinRAM: cfg.Minecraft.MinRAM,
			MaxRAM: cfg.Minecraft.MaxRAM,
		}),
		ConsoleMaxLines: cfg.Minecraft.ConsoleMaxLines,
		StopTimeout:     cfg.Minecraft.StopTimeout,
		Logger:          log,
	})

	hub := events.NewHub(log)
	manager.AddSink(hub)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := metrics.New(reg, metrics.Sources{
		RunningServers: manager.RunningCount,
		WSClients:      hub.Count,
	})
	if err != nil {
		fatal("failed to register metrics", err)
	}
	manager.AddSink(collector)

	promMW, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		fatal("failed to register http metrics", err)
	}

	if cfg.Notify.TelegramToken != "" {
		sender, err := notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, provision.NewHTTPClient(15*time.Second))
		if err != nil {
			log.Warn("telegram_disabled", "error", err)
		} else {
			n := notify.New(sender, notify.Mode(cfg.Notify.Mode), cfg.Notify.Lang, log)
			manager.AddSink(n)
			go n.Run(ctx)
		}
	}

	modHTTP := provision.NewHTTPClient(cfg.Mods.HTTPTimeout)
	platforms := mods.NewRegistry(
		mods.NewModrinth(mods.DefaultModrinthURL, modHTTP),
		mods.NewCurseForge(mods.DefaultCurseForgeURL, cfg.Mods.CurseForgeAPIKey, modHTTP),
	)

	authSvc := service.NewAuthService(users, tokens)
	backupSvc := service.NewBackupService(service.BackupDeps{
		Repo:       backupRepo,
		Store:      objStore,
		Manager:    manager,
		Notifier:   hub,
		Recorder:   collector,
		Location:   loc,
		PresignTTL: cfg.Storage.PresignTTL,
		Logger:     log,
	})
	serverSvc := service.NewServerService(service.ServerDeps{
		Repo:       serverRepo,
		Schedules:  scheduleRepo,
		Backups:    backupSvc,
		Manager:    manager,
		Versions:   upstream,
		Installer:  installer,
		Notifier:   hub,
		ServersDir: cfg.Minecraft.ServersDir,
		Logger:     log,
	})
	modSvc := service.NewModService(manager, platforms, hub, log)
	scheduleSvc := service.NewScheduleService(scheduleRepo, serverRepo, loc)

	loaded, err := serverSvc.LoadAll(ctx)
	if err != nil {
		fatal("failed to load servers", err)
	}
	log.Info("servers_loaded", "count", loaded)

	if n, err := users.Count(ctx); err == nil && n == 0 {
		log.Warn("no_users", "hint", "run `protonctl setup` to create the admin account")
	}

	sched := scheduler.New(scheduleRepo, service.NewActionRunner(serverSvc, backupSvc), scheduler.Options{
		Location: loc,
		Logger:   log,
	})
	go sched.Run(ctx)

	app := fiber.New(fiber.Config{
		AppName:      "ProtonMC",
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.AccessLog(log.With("component", "http")))
	app.Use(promMW.Handler())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.HTTP.CORSAllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))

	// Swagger host and scheme follow the incoming request
	app.Use("/swagger", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}
		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}
		return c.Next()
	})

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:             db,
		Auth:           authSvc,
		Servers:        serverSvc,
		Backups:        backupSvc,
		Mods:           modSvc,
		Schedules:      scheduleSvc,
		Hub:            hub,
		Gatherer:       reg,
		BaseContext:    ctx,
		LoginRateLimit: cfg.HTTP.LoginRateLimit,
		Swagger:        true,
	})

	if handlers.RegisterFrontend(app, cfg.HTTP.FrontendDir) {
		log.Info("frontend_enabled", "dir", cfg.HTTP.FrontendDir)
	}

	addr := ":" + cfg.Port
	listenErr := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr)
		listenErr <- app.Listen(addr)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			fatal("failed to start server", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Minecraft.StopTimeout+10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Warn("http_shutdown_failed", "error", err)
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Warn("server_shutdown_failed", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing_shutdown_failed", "error", err)
	}
}
