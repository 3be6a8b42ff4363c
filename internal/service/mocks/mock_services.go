package mocks

import (
	"context"
	"io"

	"protonmc/internal/model"
	"protonmc/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockAuthService struct {
	mock.Mock
}

var _ service.AuthService = (*MockAuthService)(nil)

func (m *MockAuthService) Login(ctx context.Context, username, password string) (*service.LoginResult, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.LoginResult), args.Error(1)
}

func (m *MockAuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockAuthService) CreateUser(ctx context.Context, username, password string, level int) (*model.User, error) {
	args := m.Called(ctx, username, password, level)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockAuthService) ListUsers(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockAuthService) DeleteUser(ctx context.Context, username string) error {
	return m.Called(ctx, username).Error(0)
}

func (m *MockAuthService) SetPassword(ctx context.Context, username, password string) error {
	return m.Called(ctx, username, password).Error(0)
}

func (m *MockAuthService) SetPermissions(ctx context.Context, username string, level int) error {
	return m.Called(ctx, username, level).Error(0)
}

func (m *MockAuthService) EnsureAdmin(ctx context.Context, password string) (bool, error) {
	args := m.Called(ctx, password)
	return args.Bool(0), args.Error(1)
}

type MockServerService struct {
	mock.Mock
}

var _ service.ServerService = (*MockServerService)(nil)

func (m *MockServerService) LoadAll(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockServerService) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockServerService) Get(ctx context.Context, name string) (*model.Server, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Server), args.Error(1)
}

func (m *MockServerService) Create(ctx context.Context, in service.CreateServerInput) (*model.Server, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Server), args.Error(1)
}

func (m *MockServerService) Delete(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockServerService) GameVersions(ctx context.Context, typ string) ([]string, error) {
	args := m.Called(ctx, typ)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockServerService) Start(name string) (bool, error) {
	args := m.Called(name)
	return args.Bool(0), args.Error(1)
}

func (m *MockServerService) Stop(name string) (bool, error) {
	args := m.Called(name)
	return args.Bool(0), args.Error(1)
}

func (m *MockServerService) Restart(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *MockServerService) Status(name string) (*model.ServerStatus, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ServerStatus), args.Error(1)
}

func (m *MockServerService) SendCommand(name, command string) (bool, error) {
	args := m.Called(name, command)
	return args.Bool(0), args.Error(1)
}

func (m *MockServerService) Console(name string) ([]string, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockServerService) Properties(name string) (map[string]string, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockServerService) UpdateProperties(name string, updates map[string]string) ([]string, error) {
	args := m.Called(name, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockServerService) Files(name, folder string) (map[string]string, error) {
	args := m.Called(name, folder)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

type MockBackupService struct {
	mock.Mock
}

var _ service.BackupService = (*MockBackupService)(nil)

func (m *MockBackupService) Start(ctx context.Context, server string) (bool, error) {
	args := m.Called(ctx, server)
	return args.Bool(0), args.Error(1)
}

func (m *MockBackupService) Run(ctx context.Context, server string) (*model.Backup, error) {
	args := m.Called(ctx, server)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Backup), args.Error(1)
}

func (m *MockBackupService) Progress(server string) (model.BackupProgress, error) {
	args := m.Called(server)
	return args.Get(0).(model.BackupProgress), args.Error(1)
}

func (m *MockBackupService) List(ctx context.Context, server string) ([]model.Backup, error) {
	args := m.Called(ctx, server)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Backup), args.Error(1)
}

func (m *MockBackupService) Open(ctx context.Context, server, name string) (io.ReadCloser, *model.Backup, error) {
	args := m.Called(ctx, server, name)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(*model.Backup), args.Error(2)
}

func (m *MockBackupService) DownloadURL(ctx context.Context, server, name string) (string, error) {
	args := m.Called(ctx, server, name)
	return args.String(0), args.Error(1)
}

func (m *MockBackupService) Restore(ctx context.Context, server, name string) error {
	return m.Called(ctx, server, name).Error(0)
}

func (m *MockBackupService) Delete(ctx context.Context, server, name string) error {
	return m.Called(ctx, server, name).Error(0)
}

func (m *MockBackupService) DeleteAll(ctx context.Context, server string) error {
	return m.Called(ctx, server).Error(0)
}

type MockModService struct {
	mock.Mock
}

var _ service.ModService = (*MockModService)(nil)

func (m *MockModService) Search(ctx context.Context, server, platform, text string, limit int) ([]model.ModSearchResult, error) {
	args := m.Called(ctx, server, platform, text, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ModSearchResult), args.Error(1)
}

func (m *MockModService) Install(ctx context.Context, server, platform, projectID string) (string, error) {
	args := m.Called(ctx, server, platform, projectID)
	return args.String(0), args.Error(1)
}

func (m *MockModService) List(server string) ([]model.InstalledMod, error) {
	args := m.Called(server)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.InstalledMod), args.Error(1)
}

func (m *MockModService) Remove(server, file string) error {
	return m.Called(server, file).Error(0)
}

func (m *MockModService) WriteZip(ctx context.Context, server string, w io.Writer) error {
	args := m.Called(ctx, server, w)
	if fn, ok := args.Get(0).(func(io.Writer) error); ok {
		return fn(w)
	}
	return args.Error(0)
}

type MockScheduleService struct {
	mock.Mock
}

var _ service.ScheduleService = (*MockScheduleService)(nil)

func (m *MockScheduleService) List(ctx context.Context, server string) ([]model.Schedule, error) {
	args := m.Called(ctx, server)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Schedule), args.Error(1)
}

func (m *MockScheduleService) Create(ctx context.Context, server string, in service.CreateScheduleInput) (*model.Schedule, error) {
	args := m.Called(ctx, server, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Schedule), args.Error(1)
}

func (m *MockScheduleService) Delete(ctx context.Context, server, id string) error {
	return m.Called(ctx, server, id).Error(0)
}
