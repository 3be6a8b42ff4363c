package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"protonmc/internal/events"
	"protonmc/internal/logging"
	"protonmc/internal/minecraft"
	"protonmc/internal/model"
	"protonmc/internal/repository"
)

var (
	ErrServerNotFound    = errors.New("server does not exist")
	ErrServerExists      = errors.New("a server with this name already exists")
	ErrInvalidServerName = errors.New("server name must be at least 3 characters and may not contain _ or path separators")
	ErrInvalidServerType = errors.New("invalid server type")
	ErrVersionRequired   = errors.New("version is required")
	ErrServerRunning     = errors.New("server must be stopped first")
	ErrServerCreating    = errors.New("server is still being created")
	ErrServerRestoring   = errors.New("a backup is being restored to this server")
)

// provisionTimeout bounds a background install, including JDK downloads.
const provisionTimeout = 30 * time.Minute

// VersionSource lists installable game versions.
type VersionSource interface {
	GameVersions(ctx context.Context, typ model.ServerType) ([]string, error)
}

// Provisioner installs server files into a directory.
type Provisioner interface {
	Install(ctx context.Context, typ model.ServerType, version, dir string) error
}

// Notifier pushes panel toasts. An empty server addresses every browser.
type Notifier interface {
	Notify(server, message, level string)
}

// BackupCleaner removes every backup of a server.
type BackupCleaner interface {
	DeleteAll(ctx context.Context, server string) error
}

// CreateServerInput is the form posted by the panel.
type CreateServerInput struct {
	Name    string
	Type    string
	Version string
}

// ServerService manages the server registry and the server processes.
type ServerService interface {
	// LoadAll registers every stored server with the process manager.
	LoadAll(ctx context.Context) (int, error)
	List(ctx context.Context) ([]string, error)
	Get(ctx context.Context, name string) (*model.Server, error)
	// Create validates the input, stores the server and provisions it in the background.
	Create(ctx context.Context, in CreateServerInput) (*model.Server, error)
	// Delete stops the server and removes its folder, registry row, backups and schedules.
	Delete(ctx context.Context, name string) error
	GameVersions(ctx context.Context, typ string) ([]string, error)

	Start(name string) (bool, error)
	Stop(name string) (bool, error)
	// Restart stops a running server, waits for it to exit and starts it again.
	Restart(ctx context.Context, name string) error
	Status(name string) (*model.ServerStatus, error)
	SendCommand(name, command string) (bool, error)
	Console(name string) ([]string, error)

	Properties(name string) (map[string]string, error)
	UpdateProperties(name string, updates map[string]string) ([]string, error)
	Files(name, folder string) (map[string]string, error)
}

type serverService struct {
	repo       repository.ServerRepository
	schedules  repository.ScheduleRepository
	backups    BackupCleaner
	manager    *minecraft.Manager
	versions   VersionSource
	installer  Provisioner
	notifier   Notifier
	serversDir string
	log        *logging.Logger
	now        func() time.Time

	// wg tracks background provisioning
	wg sync.WaitGroup
}

// ServerDeps groups the collaborators of NewServerService.
type ServerDeps struct {
	Repo       repository.ServerRepository
	Schedules  repository.ScheduleRepository
	Backups    BackupCleaner
	Manager    *minecraft.Manager
	Versions   VersionSource
	Installer  Provisioner
	Notifier   Notifier
	ServersDir string
	Logger     *logging.Logger
}

// NewServerService constructs a ServerService.
func NewServerService(d ServerDeps) ServerService {
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	return &serverService{
		repo:       d.Repo,
		schedules:  d.Schedules,
		backups:    d.Backups,
		manager:    d.Manager,
		versions:   d.Versions,
		installer:  d.Installer,
		notifier:   d.Notifier,
		serversDir: d.ServersDir,
		log:        d.Logger.With("component", "servers"),
		now:        time.Now,
	}
}

func (s *serverService) LoadAll(ctx context.Context) (int, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, srv := range all {
		s.manager.Register(srv)
	}
	return len(all), nil
}

func (s *serverService) List(ctx context.Context) ([]string, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(all))
	for _, srv := range all {
		names = append(names, srv.Name)
	}
	return names, nil
}

func (s *serverService) Get(ctx context.Context, name string) (*model.Server, error) {
	srv, err := s.repo.FindByName(ctx, name)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrServerNotFound
		}
		return nil, err
	}
	return srv, nil
}

func (s *serverService) instance(name string) (*minecraft.Instance, error) {
	inst, ok := s.manager.Get(name)
	if !ok {
		return nil, ErrServerNotFound
	}
	return inst, nil
}

// ValidateServerName applies the naming rules for new servers.
func ValidateServerName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) < 3 || strings.ContainsAny(name, `_/\`) || name == ".." || strings.HasPrefix(name, ".") {
		return "", ErrInvalidServerName
	}
	return name, nil
}

func (s *serverService) Create(ctx context.Context, in CreateServerInput) (*model.Server, error) {
	name, err := ValidateServerName(in.Name)
	if err != nil {
		return nil, err
	}
	typ, ok := model.ParseServerType(in.Type)
	if !ok {
		return nil, ErrInvalidServerType
	}
	version := strings.TrimSpace(in.Version)
	if version == "" {
		return nil, ErrVersionRequired
	}
	if _, ok := s.manager.Get(name); ok {
		return nil, ErrServerExists
	}
	if _, err := s.repo.FindByName(ctx, name); err == nil {
		return nil, ErrServerExists
	} else if !isNoRows(err) {
		return nil, err
	}
	dir := filepath.Join(s.serversDir, name)
	if _, err := os.Stat(dir); err == nil {
		return nil, ErrServerExists
	}

	srv := &model.Server{
		Name:         name,
		Type:         typ,
		GameVersion:  version,
		Directory:    dir,
		BackupFolder: BackupPrefix(name),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, srv); err != nil {
		return nil, fmt.Errorf("save server: %w", err)
	}
	inst := s.manager.Register(*srv)
	if err := inst.BeginCreating(); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.provision(*srv, inst)
	}()
	return srv, nil
}

func (s *serverService) provision(srv model.Server, inst *minecraft.Instance) {
	ctx, cancel := context.WithTimeout(context.Background(), provisionTimeout)
	defer cancel()
	log := s.log.With("server", srv.Name)
	log.Info("server_provision_started", "type", string(srv.Type), "version", srv.GameVersion)

	err := os.MkdirAll(srv.Directory, 0o755)
	if err == nil {
		err = s.installer.Install(ctx, srv.Type, srv.GameVersion, srv.Directory)
	}
	if err == nil {
		inst.FinishCreating()
		log.Info("server_provision_done")
		s.notify("", fmt.Sprintf("Server %s created.", srv.Name), events.NotifySuccess)
		return
	}

	log.Error("server_provision_failed", "error", err)
	if rmErr := os.RemoveAll(srv.Directory); rmErr != nil {
		log.Warn("server_provision_cleanup_failed", "error", rmErr)
	}
	if delErr := s.repo.Delete(context.Background(), srv.Name); delErr != nil {
		log.Warn("server_provision_rollback_failed", "error", delErr)
	}
	inst.FinishCreating()
	_ = s.manager.Remove(srv.Name)
	s.notify("", fmt.Sprintf("Failed to create server %s: %v", srv.Name, err), events.NotifyError)
}

func (s *serverService) notify(server, msg, level string) {
	if s.notifier != nil {
		s.notifier.Notify(server, msg, level)
	}
}

func (s *serverService) Delete(ctx context.Context, name string) error {
	srv, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	if inst, ok := s.manager.Get(name); ok {
		switch inst.State() {
		case model.StateCreating:
			return ErrServerCreating
		case model.StateRestoring:
			return ErrServerRestoring
		case model.StateStarting, model.StateRunning:
			inst.Stop()
			if err := inst.Wait(ctx); err != nil {
				return fmt.Errorf("wait for stop: %w", err)
			}
		}
		if err := s.manager.Remove(name); err != nil {
			if errors.Is(err, minecraft.ErrServerBusy) {
				return ErrServerRunning
			}
			return err
		}
	}

	if srv.Directory != "" {
		if err := os.RemoveAll(srv.Directory); err != nil {
			return fmt.Errorf("remove server folder: %w", err)
		}
	}
	if s.backups != nil {
		if err := s.backups.DeleteAll(ctx, name); err != nil {
			return fmt.Errorf("delete backups: %w", err)
		}
	}
	if err := s.schedules.DeleteByServer(ctx, name); err != nil {
		return fmt.Errorf("delete schedules: %w", err)
	}
	if err := s.repo.Delete(ctx, name); err != nil {
		return err
	}
	s.log.Info("server_deleted", "server", name)
	s.notify("", fmt.Sprintf("Server %s deleted.", name), events.NotifyInfo)
	return nil
}

func (s *serverService) GameVersions(ctx context.Context, typ string) ([]string, error) {
	st, ok := model.ParseServerType(typ)
	if !ok {
		return nil, ErrInvalidServerType
	}
	return s.versions.GameVersions(ctx, st)
}

func (s *serverService) Start(name string) (bool, error) {
	inst, err := s.instance(name)
	if err != nil {
		return false, err
	}
	if err := reserved(inst); err != nil {
		return false, err
	}
	return inst.Start(), nil
}

// reserved reports why a held instance cannot be started.
func reserved(inst *minecraft.Instance) error {
	switch inst.State() {
	case model.StateCreating:
		return ErrServerCreating
	case model.StateRestoring:
		return ErrServerRestoring
	}
	return nil
}

func (s *serverService) Stop(name string) (bool, error) {
	inst, err := s.instance(name)
	if err != nil {
		return false, err
	}
	return inst.Stop(), nil
}

func (s *serverService) Restart(ctx context.Context, name string) error {
	inst, err := s.instance(name)
	if err != nil {
		return err
	}
	if err := reserved(inst); err != nil {
		return err
	}
	if inst.Stop() {
		if err := inst.Wait(ctx); err != nil {
			return fmt.Errorf("wait for stop: %w", err)
		}
	}
	inst.Start()
	return nil
}

func (s *serverService) Status(name string) (*model.ServerStatus, error) {
	inst, err := s.instance(name)
	if err != nil {
		return nil, err
	}
	st := inst.Status()
	return &st, nil
}

func (s *serverService) SendCommand(name, command string) (bool, error) {
	inst, err := s.instance(name)
	if err != nil {
		return false, err
	}
	command = strings.TrimSpace(strings.ReplaceAll(command, "\n", " "))
	if command == "" {
		return false, nil
	}
	return inst.SendCommand(command), nil
}

func (s *serverService) Console(name string) ([]string, error) {
	inst, err := s.instance(name)
	if err != nil {
		return nil, err
	}
	return inst.Console(), nil
}

func (s *serverService) Properties(name string) (map[string]string, error) {
	inst, err := s.instance(name)
	if err != nil {
		return nil, err
	}
	return minecraft.ReadProperties(inst.Server().Directory)
}

func (s *serverService) UpdateProperties(name string, updates map[string]string) ([]string, error) {
	inst, err := s.instance(name)
	if err != nil {
		return nil, err
	}
	return minecraft.UpdateProperties(inst.Server().Directory, updates)
}

func (s *serverService) Files(name, folder string) (map[string]string, error) {
	inst, err := s.instance(name)
	if err != nil {
		return nil, err
	}
	return minecraft.ListFiles(inst.Server().Directory, folder)
}
