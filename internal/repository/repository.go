// Package repository contains data access layer abstractions.
// The SQL implementation lives in the sqlstore subpackage; lookups that find
// nothing return an error wrapping sql.ErrNoRows.
package repository

import (
	"context"
	"time"

	"protonmc/internal/model"
)

// UserRepository persists panel accounts.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Count(ctx context.Context) (int, error)
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	UpdatePermissions(ctx context.Context, username string, level int) error
	// Delete removes a user. It returns nil if the row did not exist.
	Delete(ctx context.Context, username string) error
}

// ServerRepository persists the server registry.
type ServerRepository interface {
	Create(ctx context.Context, s *model.Server) error
	FindByName(ctx context.Context, name string) (*model.Server, error)
	List(ctx context.Context) ([]model.Server, error)
	// Delete removes a server row. It returns nil if the row did not exist.
	Delete(ctx context.Context, name string) error
}

// BackupRepository persists backup archive metadata.
type BackupRepository interface {
	// Create inserts a backup record and returns the stored row.
	Create(ctx context.Context, b *model.Backup) (*model.Backup, error)
	FindByName(ctx context.Context, server, name string) (*model.Backup, error)
	// ListByServer returns the server's backups, newest first. A zero Limit means all rows.
	ListByServer(ctx context.Context, server string, pq PageQuery) (*PageResult[model.Backup], error)
	Delete(ctx context.Context, id string) error
}

// ScheduleRepository persists scheduled server actions.
type ScheduleRepository interface {
	Create(ctx context.Context, s *model.Schedule) error
	ListByServer(ctx context.Context, server string) ([]model.Schedule, error)
	// ListDue returns schedules whose next run is at or before now.
	ListDue(ctx context.Context, now time.Time) ([]model.Schedule, error)
	UpdateNextRun(ctx context.Context, id string, next time.Time) error
	Delete(ctx context.Context, server, id string) error
	DeleteByServer(ctx context.Context, server string) error
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
