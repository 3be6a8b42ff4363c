package migration

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"protonmc/internal/database"
	"protonmc/internal/logging"
)

func TestEnsureMigrated_AppliesPendingSteps(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied := sqlmock.NewRows([]string{"name"})
	for _, step := range steps[:2] {
		applied.AddRow(step.Name)
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM schema_migrations")).WillReturnRows(applied)

	for _, step := range steps[2:] {
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(step.SQL)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (name, applied_at) VALUES ($1, $2)")).
			WithArgs(step.Name, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()
	}

	var buf bytes.Buffer
	err = EnsureMigrated(context.Background(), db, database.DriverPostgres, logging.New(&buf, time.UTC, logging.LevelInfo))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, buf.String(), "db_migration_success")
}

func TestEnsureMigrated_StepFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(steps[0].SQL)).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	var buf bytes.Buffer
	err = EnsureMigrated(context.Background(), db, database.DriverPostgres, logging.New(&buf, time.UTC, logging.LevelInfo))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create_table_users")
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureMigrated_LedgerFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnError(errors.New("read only"))

	err = EnsureMigrated(context.Background(), db, database.DriverPostgres, logging.Nop())
	assert.ErrorContains(t, err, "failed to create migration ledger")
}

func TestEnsureMigrated_SQLiteIsIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, EnsureMigrated(ctx, db, database.DriverSQLite, logging.Nop()))
	require.NoError(t, EnsureMigrated(ctx, db, database.DriverSQLite, logging.Nop()))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(steps), count)

	for _, table := range []string{"users", "servers", "backups", "schedules"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
	}
}
