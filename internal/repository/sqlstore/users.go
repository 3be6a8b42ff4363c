package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"protonmc/internal/model"
	"protonmc/internal/repository"
)

// UserStore is a database/sql implementation of repository.UserRepository.
type UserStore struct {
	base
}

// NewUserStore creates a UserStore for the given driver dialect.
func NewUserStore(db *sql.DB, driver string) *UserStore {
	return &UserStore{base{db: db, driver: driver}}
}

var _ repository.UserRepository = (*UserStore)(nil)

// Create inserts a new user row.
func (r *UserStore) Create(ctx context.Context, u *model.User) error {
	const q = `
		INSERT INTO users (username, password_hash, permissions, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, r.q(q), u.Username, u.PasswordHash, u.Permissions, toMillis(u.CreatedAt))
	return err
}

// FindByUsername fetches a single user.
func (r *UserStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	const q = `
		SELECT username, password_hash, permissions, created_at
		FROM users
		WHERE username = $1
	`
	var (
		u       model.User
		created int64
	)
	err := r.db.QueryRowContext(ctx, r.q(q), username).Scan(&u.Username, &u.PasswordHash, &u.Permissions, &created)
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(created)
	return &u, nil
}

// List returns every user ordered by username.
func (r *UserStore) List(ctx context.Context) ([]model.User, error) {
	const q = `
		SELECT username, password_hash, permissions, created_at
		FROM users
		ORDER BY username
	`
	rows, err := r.db.QueryContext(ctx, r.q(q))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.User, 0)
	for rows.Next() {
		var (
			u       model.User
			created int64
		)
		if err := rows.Scan(&u.Username, &u.PasswordHash, &u.Permissions, &created); err != nil {
			return nil, err
		}
		u.CreatedAt = fromMillis(created)
		items = append(items, u)
	}
	return items, rows.Err()
}

// Count returns the number of users.
func (r *UserStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// UpdatePassword replaces the stored hash.
func (r *UserStore) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	const q = `UPDATE users SET password_hash = $1 WHERE username = $2`
	return r.updateOne(ctx, r.q(q), passwordHash, username)
}

// UpdatePermissions sets the permission level.
func (r *UserStore) UpdatePermissions(ctx context.Context, username string, level int) error {
	const q = `UPDATE users SET permissions = $1 WHERE username = $2`
	return r.updateOne(ctx, r.q(q), level, username)
}

func (r *UserStore) updateOne(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("update user: %w", sql.ErrNoRows)
	}
	return nil
}

// Delete removes a user by username.
func (r *UserStore) Delete(ctx context.Context, username string) error {
	const q = `DELETE FROM users WHERE username = $1`
	_, err := r.db.ExecContext(ctx, r.q(q), username)
	return err
}
