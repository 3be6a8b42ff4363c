package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"protonmc/internal/model"
	"protonmc/internal/repository"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, u *model.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockUserRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	return m.Called(ctx, username, passwordHash).Error(0)
}

func (m *MockUserRepository) UpdatePermissions(ctx context.Context, username string, level int) error {
	return m.Called(ctx, username, level).Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

type MockServerRepository struct {
	mock.Mock
}

func (m *MockServerRepository) Create(ctx context.Context, s *model.Server) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockServerRepository) FindByName(ctx context.Context, name string) (*model.Server, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Server), args.Error(1)
}

func (m *MockServerRepository) List(ctx context.Context) ([]model.Server, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Server), args.Error(1)
}

func (m *MockServerRepository) Delete(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

type MockBackupRepository struct {
	mock.Mock
}

func (m *MockBackupRepository) Create(ctx context.Context, b *model.Backup) (*model.Backup, error) {
	args := m.Called(ctx, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Backup), args.Error(1)
}

func (m *MockBackupRepository) FindByName(ctx context.Context, server, name string) (*model.Backup, error) {
	args := m.Called(ctx, server, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Backup), args.Error(1)
}

func (m *MockBackupRepository) ListByServer(ctx context.Context, server string, pq repository.PageQuery) (*repository.PageResult[model.Backup], error) {
	args := m.Called(ctx, server, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Backup]), args.Error(1)
}

func (m *MockBackupRepository) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type MockScheduleRepository struct {
	mock.Mock
}

func (m *MockScheduleRepository) Create(ctx context.Context, s *model.Schedule) error {
	return m.Called(ctx, s).Error(0)
}

func (m *MockScheduleRepository) ListByServer(ctx context.Context, server string) ([]model.Schedule, error) {
	args := m.Called(ctx, server)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Schedule), args.Error(1)
}

func (m *MockScheduleRepository) ListDue(ctx context.Context, now time.Time) ([]model.Schedule, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Schedule), args.Error(1)
}

func (m *MockScheduleRepository) UpdateNextRun(ctx context.Context, id string, next time.Time) error {
	return m.Called(ctx, id, next).Error(0)
}

func (m *MockScheduleRepository) Delete(ctx context.Context, server, id string) error {
	return m.Called(ctx, server, id).Error(0)
}

func (m *MockScheduleRepository) DeleteByServer(ctx context.Context, server string) error {
	return m.Called(ctx, server).Error(0)
}

var (
	_ repository.UserRepository     = (*MockUserRepository)(nil)
	_ repository.ServerRepository   = (*MockServerRepository)(nil)
	_ repository.BackupRepository   = (*MockBackupRepository)(nil)
	_ repository.ScheduleRepository = (*MockScheduleRepository)(nil)
)
