package sqlstore

import (
	"context"
	"database/sql"

	"protonmc/internal/model"
	"protonmc/internal/repository"
)

// ServerStore is a database/sql implementation of repository.ServerRepository.
type ServerStore struct {
	base
}

// NewServerStore creates a ServerStore for the given driver dialect.
func NewServerStore(db *sql.DB, driver string) *ServerStore {
	return &ServerStore{base{db: db, driver: driver}}
}

var _ repository.ServerRepository = (*ServerStore)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanServer(row rowScanner) (*model.Server, error) {
	var (
		s       model.Server
		st      string
		created int64
	)
	if err := row.Scan(&s.Name, &st, &s.GameVersion, &s.Directory, &s.BackupFolder, &created); err != nil {
		return nil, err
	}
	s.Type = model.ServerType(st)
	s.CreatedAt = fromMillis(created)
	return &s, nil
}

// Create registers a new server.
func (r *ServerStore) Create(ctx context.Context, s *model.Server) error {
	const q = `
		INSERT INTO servers (name, server_type, game_version, server_folder, backup_folder, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, r.q(q),
		s.Name,
		string(s.Type),
		s.GameVersion,
		s.Directory,
		s.BackupFolder,
		toMillis(s.CreatedAt),
	)
	return err
}

// FindByName fetches a server by its unique name.
func (r *ServerStore) FindByName(ctx context.Context, name string) (*model.Server, error) {
	const q = `
		SELECT name, server_type, game_version, server_folder, backup_folder, created_at
		FROM servers
		WHERE name = $1
	`
	return scanServer(r.db.QueryRowContext(ctx, r.q(q), name))
}

// List returns all servers in creation order.
func (r *ServerStore) List(ctx context.Context) ([]model.Server, error) {
	const q = `
		SELECT name, server_type, game_version, server_folder, backup_folder, created_at
		FROM servers
		ORDER BY created_at, name
	`
	rows, err := r.db.QueryContext(ctx, r.q(q))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Server, 0)
	for rows.Next() {
		s, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *s)
	}
	return items, rows.Err()
}

// Delete removes a server row. It does not return an error if the row does not exist.
func (r *ServerStore) Delete(ctx context.Context, name string) error {
	const q = `DELETE FROM servers WHERE name = $1`
	_, err := r.db.ExecContext(ctx, r.q(q), name)
	return err
}
