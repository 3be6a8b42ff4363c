package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"protonmc/internal/events"
	"protonmc/internal/logging"
	"protonmc/internal/minecraft"
	"protonmc/internal/model"
	"protonmc/internal/mods"
)

var (
	ErrModsUnsupported   = errors.New("this server type does not support mods or plugins")
	ErrProjectIDRequired = errors.New("project_id is required")
)

// ModService searches mod platforms and manages a server's mods or plugins folder.
type ModService interface {
	Search(ctx context.Context, server, platform, text string, limit int) ([]model.ModSearchResult, error)
	// Install downloads the first compatible file and returns its file name.
	Install(ctx context.Context, server, platform, projectID string) (string, error)
	List(server string) ([]model.InstalledMod, error)
	Remove(server, file string) error
	// WriteZip streams the folder as a zip.
	WriteZip(ctx context.Context, server string, w io.Writer) error
}

type modService struct {
	manager   *minecraft.Manager
	platforms mods.Registry
	notifier  Notifier
	log       *logging.Logger
}

// NewModService constructs a ModService.
func NewModService(manager *minecraft.Manager, platforms mods.Registry, notifier Notifier, log *logging.Logger) ModService {
	if log == nil {
		log = logging.Nop()
	}
	return &modService{manager: manager, platforms: platforms, notifier: notifier, log: log.With("component", "mods")}
}

// folder resolves the server and its mods or plugins directory.
func (s *modService) folder(name string) (model.Server, string, error) {
	inst, ok := s.manager.Get(name)
	if !ok {
		return model.Server{}, "", ErrServerNotFound
	}
	srv := inst.Server()
	sub := srv.Type.AddonKind().Folder()
	if sub == "" {
		return srv, "", ErrModsUnsupported
	}
	return srv, filepath.Join(srv.Directory, sub), nil
}

func (s *modService) Search(ctx context.Context, server, platform, text string, limit int) ([]model.ModSearchResult, error) {
	srv, _, err := s.folder(server)
	if err != nil {
		return nil, err
	}
	if platform == "" {
		platform = string(model.PlatformModrinth)
	}
	p, err := s.platforms.Get(platform)
	if err != nil {
		return nil, err
	}
	return p.Search(ctx, mods.QueryFor(srv, text, limit))
}

func (s *modService) Install(ctx context.Context, server, platform, projectID string) (string, error) {
	srv, dir, err := s.folder(server)
	if err != nil {
		return "", err
	}
	if projectID == "" {
		return "", ErrProjectIDRequired
	}
	p, err := s.platforms.Get(platform)
	if err != nil {
		return "", err
	}
	file, err := p.Download(ctx, projectID, mods.QueryFor(srv, "", 0), dir)
	if err != nil {
		return "", fmt.Errorf("install %s from %s: %w", projectID, p.Name(), err)
	}
	s.log.Info("mod_installed", "server", server, "platform", string(p.Name()), "project", projectID, "file", file)
	if s.notifier != nil {
		s.notifier.Notify(server, fmt.Sprintf("Installed %s.", file), events.NotifySuccess)
	}
	return file, nil
}

func (s *modService) List(server string) ([]model.InstalledMod, error) {
	_, dir, err := s.folder(server)
	if err != nil {
		return nil, err
	}
	return mods.List(dir)
}

func (s *modService) Remove(server, file string) error {
	_, dir, err := s.folder(server)
	if err != nil {
		return err
	}
	if err := mods.Remove(dir, file); err != nil {
		return err
	}
	s.log.Info("mod_removed", "server", server, "file", file)
	return nil
}

func (s *modService) WriteZip(ctx context.Context, server string, w io.Writer) error {
	_, dir, err := s.folder(server)
	if err != nil {
		return err
	}
	return mods.WriteZip(ctx, dir, w)
}
