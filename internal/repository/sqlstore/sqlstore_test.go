package sqlstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"protonmc/internal/database"
	"protonmc/internal/database/migration"
	"protonmc/internal/logging"
)

// openMigratedSQLite returns an in-memory SQLite database with the full schema.
func openMigratedSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migration.EnsureMigrated(context.Background(), db, database.DriverSQLite, logging.Nop()))
	return db
}

func ms(t time.Time) time.Time {
	return fromMillis(toMillis(t))
}
