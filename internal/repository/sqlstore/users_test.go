package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"protonmc/internal/database"
	"protonmc/internal/model"
)

func TestUserStore_FindByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserStore(db, database.DriverPostgres)
	ctx := context.Background()
	created := time.Date(2024, 3, 7, 9, 5, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"username", "password_hash", "permissions", "created_at"}).
			AddRow("admin", "$argon2id$...", 5, created.UnixMilli())
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1`).
			WithArgs("admin").
			WillReturnRows(rows)

		u, err := repo.FindByUsername(ctx, "admin")
		require.NoError(t, err)
		assert.Equal(t, 5, u.Permissions)
		assert.Equal(t, created, u.CreatedAt)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM users WHERE username = \$1`).
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		u, err := repo.FindByUsername(ctx, "ghost")
		assert.Nil(t, u)
		assert.True(t, IsNoRowsError(err))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_UpdatePassword(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserStore(db, database.DriverPostgres)

	mock.ExpectExec(`UPDATE users SET password_hash = \$1 WHERE username = \$2`).
		WithArgs("h", "admin").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE users SET password_hash = \$1 WHERE username = \$2`).
		WithArgs("h", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.UpdatePassword(context.Background(), "admin", "h"))
	err = repo.UpdatePassword(context.Background(), "ghost", "h")
	assert.True(t, IsNoRowsError(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_CreateError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewUserStore(db, database.DriverPostgres)
	mock.ExpectExec("INSERT INTO users").WillReturnError(errors.New("duplicate key"))

	err = repo.Create(context.Background(), &model.User{Username: "admin"})
	assert.EqualError(t, err, "duplicate key")
}

func TestUserStore_SQLite(t *testing.T) {
	db := openMigratedSQLite(t)
	repo := NewUserStore(db, database.DriverSQLite)
	ctx := context.Background()

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	now := ms(time.Now())
	require.NoError(t, repo.Create(ctx, &model.User{Username: "zoe", PasswordHash: "h1", Permissions: 2, CreatedAt: now}))
	require.NoError(t, repo.Create(ctx, &model.User{Username: "admin", PasswordHash: "h2", Permissions: 5, CreatedAt: now}))

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "admin", users[0].Username)

	require.NoError(t, repo.UpdatePermissions(ctx, "zoe", 4))
	zoe, err := repo.FindByUsername(ctx, "zoe")
	require.NoError(t, err)
	assert.Equal(t, 4, zoe.Permissions)
	assert.Equal(t, now, zoe.CreatedAt)

	require.NoError(t, repo.Delete(ctx, "zoe"))
	_, err = repo.FindByUsername(ctx, "zoe")
	assert.True(t, IsNoRowsError(err))
}
