package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"protonmc/internal/auth"
	"protonmc/internal/config"
	"protonmc/internal/database"
	"protonmc/internal/database/migration"
	"protonmc/internal/logging"
	"protonmc/internal/repository"
	"protonmc/internal/repository/sqlstore"
	"protonmc/internal/service"
	"protonmc/internal/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var envFile string

var rootCmd = &cobra.Command{
	Use:   "protonctl",
	Short: "Administration tool for the ProtonMC panel",
	Long: `protonctl prepares a ProtonMC installation and manages panel accounts.

Run "protonctl setup" once before starting the API server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("protonctl version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file holding SECRET_KEY and database settings")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// backend is the slice of the application the commands operate on.
type backend struct {
	Users   repository.UserRepository
	Servers repository.ServerRepository
	Backups repository.BackupRepository
	Store   storage.Storage
	Auth    service.AuthService
	close   func() error
}

func (b *backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// openBackend loads the env file, opens the configured database and
// migrates it. Tests replace it.
var openBackend = func(ctx context.Context) (*backend, error) {
	if err := loadEnv(envFile); err != nil {
		return nil, err
	}
	cfg := config.Load()
	log := logging.New(os.Stderr, cfg.Location(), logging.ParseLevel(cfg.LogLevel))

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := migration.EnsureMigrated(ctx, db, cfg.Database.Driver, log); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	store, err := storage.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize backup storage: %w", err)
	}
	return newBackend(db, cfg.Database.Driver, store), nil
}

func newBackend(db *sql.DB, driver string, store storage.Storage) *backend {
	users := sqlstore.NewUserStore(db, driver)
	return &backend{
		Users:   users,
		Servers: sqlstore.NewServerStore(db, driver),
		Backups: sqlstore.NewBackupStore(db, driver),
		Store:   store,
		Auth:    service.NewAuthService(users, nil),
		close:   db.Close,
	}
}

var promptPassword = auth.PromptAndConfirmPassword
