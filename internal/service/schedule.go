package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"protonmc/internal/model"
	"protonmc/internal/repository"
	"protonmc/internal/scheduler"
)

var (
	ErrInvalidAction    = errors.New("action must be start, stop, restart or backup")
	ErrInvalidFrequency = errors.New("frequency must be daily or once")
	ErrScheduleNotFound = errors.New("schedule not found")
)

// CreateScheduleInput is the form posted by the panel.
type CreateScheduleInput struct {
	Action    string
	Time      string
	Frequency string
}

// ScheduleService manages per-server scheduled actions.
type ScheduleService interface {
	List(ctx context.Context, server string) ([]model.Schedule, error)
	Create(ctx context.Context, server string, in CreateScheduleInput) (*model.Schedule, error)
	Delete(ctx context.Context, server, id string) error
}

type scheduleService struct {
	repo    repository.ScheduleRepository
	servers repository.ServerRepository
	loc     *time.Location
	now     func() time.Time
}

// NewScheduleService constructs a ScheduleService; clock times are read in loc.
func NewScheduleService(repo repository.ScheduleRepository, servers repository.ServerRepository, loc *time.Location) ScheduleService {
	if loc == nil {
		loc = time.Local
	}
	return &scheduleService{repo: repo, servers: servers, loc: loc, now: time.Now}
}

func (s *scheduleService) checkServer(ctx context.Context, server string) error {
	if _, err := s.servers.FindByName(ctx, server); err != nil {
		if isNoRows(err) {
			return ErrServerNotFound
		}
		return err
	}
	return nil
}

func (s *scheduleService) List(ctx context.Context, server string) ([]model.Schedule, error) {
	if err := s.checkServer(ctx, server); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByServer(ctx, server)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.Schedule{}
	}
	return items, nil
}

func (s *scheduleService) Create(ctx context.Context, server string, in CreateScheduleInput) (*model.Schedule, error) {
	action := model.ScheduleAction(strings.ToLower(strings.TrimSpace(in.Action)))
	if !action.Valid() {
		return nil, ErrInvalidAction
	}
	freq := model.Frequency(strings.ToLower(strings.TrimSpace(in.Frequency)))
	if freq == "" {
		freq = model.FrequencyDaily
	}
	if freq != model.FrequencyDaily && freq != model.FrequencyOnce {
		return nil, ErrInvalidFrequency
	}
	clock := strings.TrimSpace(in.Time)
	now := s.now().In(s.loc)
	next, err := scheduler.NextRun(clock, now)
	if err != nil {
		return nil, err
	}
	if err := s.checkServer(ctx, server); err != nil {
		return nil, err
	}
	h, m, _ := scheduler.ParseClock(clock)
	item := &model.Schedule{
		ID:        uuid.New().String(),
		Server:    server,
		Action:    action,
		Clock:     fmt.Sprintf("%02d:%02d", h, m),
		Frequency: freq,
		NextRun:   next,
		CreatedAt: now.UTC(),
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("save schedule: %w", err)
	}
	return item, nil
}

func (s *scheduleService) Delete(ctx context.Context, server, id string) error {
	if err := s.checkServer(ctx, server); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, server, id); err != nil {
		if isNoRows(err) {
			return ErrScheduleNotFound
		}
		return err
	}
	return nil
}

// actionRunner executes scheduled actions through the services.
type actionRunner struct {
	servers ServerService
	backups BackupService
}

// NewActionRunner adapts the services to scheduler.Executor.
func NewActionRunner(servers ServerService, backups BackupService) scheduler.Executor {
	return &actionRunner{servers: servers, backups: backups}
}

func (a *actionRunner) RunAction(ctx context.Context, server string, action model.ScheduleAction) error {
	switch action {
	case model.ActionStart:
		_, err := a.servers.Start(server)
		return err
	case model.ActionStop:
		_, err := a.servers.Stop(server)
		return err
	case model.ActionRestart:
		return a.servers.Restart(ctx, server)
	case model.ActionBackup:
		started, err := a.backups.Start(ctx, server)
		if err != nil {
			return err
		}
		if !started {
			return ErrBackupInProgress
		}
		return nil
	default:
		return ErrInvalidAction
	}
}
