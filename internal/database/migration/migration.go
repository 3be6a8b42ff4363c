package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"protonmc/internal/database"
	"protonmc/internal/logging"
)

type migrationStep struct {
	Name string
	SQL  string
}

// The DDL sticks to types both SQLite and PostgreSQL accept; timestamps are unix millis.
var steps = []migrationStep{
	{
		Name: "create_table_users",
		SQL: `CREATE TABLE IF NOT EXISTS users (
  username      TEXT    PRIMARY KEY,
  password_hash TEXT    NOT NULL,
  permissions   INTEGER NOT NULL CHECK (permissions >= 0),
  created_at    BIGINT  NOT NULL
);`,
	},
	{
		Name: "create_table_servers",
		SQL: `CREATE TABLE IF NOT EXISTS servers (
  name          TEXT   PRIMARY KEY,
  server_type   TEXT   NOT NULL,
  game_version  TEXT   NOT NULL,
  server_folder TEXT   NOT NULL,
  backup_folder TEXT   NOT NULL,
  created_at    BIGINT NOT NULL
);`,
	},
	{
		Name: "create_table_backups",
		SQL: `CREATE TABLE IF NOT EXISTS backups (
  id          TEXT   PRIMARY KEY,
  server_name TEXT   NOT NULL,
  name        TEXT   NOT NULL,
  object_key  TEXT   NOT NULL UNIQUE,
  size        BIGINT NOT NULL CHECK (size >= 0),
  created_at  BIGINT NOT NULL,
  UNIQUE (server_name, name)
);`,
	},
	{
		Name: "create_index_backups_server_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_backups_server_created_at ON backups (server_name, created_at);`,
	},
	{
		Name: "create_table_schedules",
		SQL: `CREATE TABLE IF NOT EXISTS schedules (
  id          TEXT   PRIMARY KEY,
  server_name TEXT   NOT NULL,
  action      TEXT   NOT NULL,
  clock       TEXT   NOT NULL,
  frequency   TEXT   NOT NULL,
  next_run    BIGINT NOT NULL,
  created_at  BIGINT NOT NULL
);`,
	},
	{
		Name: "create_index_schedules_next_run",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_schedules_next_run ON schedules (next_run);`,
	},
}

const createLedger = `CREATE TABLE IF NOT EXISTS schema_migrations (
  name       TEXT   PRIMARY KEY,
  applied_at BIGINT NOT NULL
);`

// EnsureMigrated applies every step not yet recorded in schema_migrations.
func EnsureMigrated(ctx context.Context, db *sql.DB, driver string, log *logging.Logger) error {
	start := time.Now()
	log = log.With("component", "database").With("db_driver", driver)

	log.Entry(map[string]any{"event": "db_migration_check", "status": "starting"})

	if _, err := db.ExecContext(ctx, createLedger); err != nil {
		log.Entry(map[string]any{
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to create migration ledger: %v", err),
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to create migration ledger: %w", err)
	}

	applied, err := appliedSteps(ctx, db)
	if err != nil {
		log.Entry(map[string]any{
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": err.Error(),
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return err
	}

	pending := 0
	for _, step := range steps {
		if applied[step.Name] {
			continue
		}
		pending++
		stepStart := time.Now()
		if err := applyStep(ctx, db, driver, step); err != nil {
			log.Entry(map[string]any{
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"error_message":    err.Error(),
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		log.Entry(map[string]any{
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	if pending == 0 {
		log.Entry(map[string]any{
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already up to date",
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	log.Entry(map[string]any{
		"event":       "db_migration_success",
		"status":      "success",
		"steps":       pending,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

func appliedSteps(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("read migration ledger: %w", err)
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan migration ledger: %w", err)
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

func applyStep(ctx context.Context, db *sql.DB, driver string, step migrationStep) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, step.SQL); err != nil {
		return err
	}
	record := database.Rebind(driver, "INSERT INTO schema_migrations (name, applied_at) VALUES ($1, $2)")
	if _, err := tx.ExecContext(ctx, record, step.Name, time.Now().UnixMilli()); err != nil {
		return err
	}
	return tx.Commit()
}
