package sqlstore

import (
	"context"
	"database/sql"

	"protonmc/internal/model"
	"protonmc/internal/repository"
)

// BackupStore is a database/sql implementation of repository.BackupRepository.
type BackupStore struct {
	base
}

// NewBackupStore creates a BackupStore for the given driver dialect.
func NewBackupStore(db *sql.DB, driver string) *BackupStore {
	return &BackupStore{base{db: db, driver: driver}}
}

var _ repository.BackupRepository = (*BackupStore)(nil)

func scanBackup(row rowScanner) (*model.Backup, error) {
	var (
		b       model.Backup
		created int64
	)
	if err := row.Scan(&b.ID, &b.Server, &b.Name, &b.ObjectKey, &b.Size, &created); err != nil {
		return nil, err
	}
	b.CreatedAt = fromMillis(created)
	return &b, nil
}

// Create inserts a new backup row and returns the stored record.
func (r *BackupStore) Create(ctx context.Context, b *model.Backup) (*model.Backup, error) {
	const q = `
		INSERT INTO backups (id, server_name, name, object_key, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, server_name, name, object_key, size, created_at
	`
	row := r.db.QueryRowContext(ctx, r.q(q),
		b.ID,
		b.Server,
		b.Name,
		b.ObjectKey,
		b.Size,
		toMillis(b.CreatedAt),
	)
	return scanBackup(row)
}

// FindByName fetches one backup of a server.
func (r *BackupStore) FindByName(ctx context.Context, server, name string) (*model.Backup, error) {
	const q = `
		SELECT id, server_name, name, object_key, size, created_at
		FROM backups
		WHERE server_name = $1 AND name = $2
	`
	return scanBackup(r.db.QueryRowContext(ctx, r.q(q), server, name))
}

// ListByServer returns backups newest first with a total count.
func (r *BackupStore) ListByServer(ctx context.Context, server string, pq repository.PageQuery) (*repository.PageResult[model.Backup], error) {
	const qCount = `SELECT COUNT(*) FROM backups WHERE server_name = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, r.q(qCount), server).Scan(&total); err != nil {
		return nil, err
	}

	limit := pq.Limit
	if limit <= 0 {
		limit = total
	}
	const qList = `
		SELECT id, server_name, name, object_key, size, created_at
		FROM backups
		WHERE server_name = $1
		ORDER BY created_at DESC, name DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, r.q(qList), server, limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Backup, 0)
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Backup]{
		Items: items,
		Total: total,
	}, nil
}

// Delete removes a backup by ID. It does not return an error if the row does not exist.
func (r *BackupStore) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM backups WHERE id = $1`
	_, err := r.db.ExecContext(ctx, r.q(q), id)
	return err
}
