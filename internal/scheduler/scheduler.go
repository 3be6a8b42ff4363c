// Package scheduler fires stored schedules against servers.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"protonmc/internal/logging"
	"protonmc/internal/model"
	"protonmc/internal/repository"
)

// ErrInvalidClock is returned for times not in "HH:MM" form.
var ErrInvalidClock = errors.New("time must be HH:MM")

// DefaultInterval is how often due schedules are checked.
const DefaultInterval = 30 * time.Second

// Executor performs a scheduled action.
type Executor interface {
	RunAction(ctx context.Context, server string, action model.ScheduleAction) error
}

// Options configures a Scheduler.
type Options struct {
	Interval time.Duration
	Location *time.Location
	Logger   *logging.Logger
}

// Scheduler polls the repository for due schedules.
type Scheduler struct {
	repo     repository.ScheduleRepository
	exec     Executor
	interval time.Duration
	loc      *time.Location
	log      *logging.Logger
	now      func() time.Time
}

// New creates a Scheduler.
func New(repo repository.ScheduleRepository, exec Executor, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Scheduler{
		repo:     repo,
		exec:     exec,
		interval: opts.Interval,
		loc:      opts.Location,
		log:      opts.Logger.With("component", "scheduler"),
		now:      time.Now,
	}
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.log.Error("schedule_tick_failed", "error", err)
			}
		}
	}
}

// Tick runs every due schedule once. Failed actions are logged and still rescheduled.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := s.now().In(s.loc)
	due, err := s.repo.ListDue(ctx, now)
	if err != nil {
		return err
	}
	for _, item := range due {
		log := s.log.With("schedule", item.ID).With("server", item.Server)
		if err := s.exec.RunAction(ctx, item.Server, item.Action); err != nil {
			log.Warn("schedule_action_failed", "action", string(item.Action), "error", err)
		} else {
			log.Info("schedule_action_run", "action", string(item.Action))
		}

		if item.Frequency == model.FrequencyOnce {
			if err := s.repo.Delete(ctx, item.Server, item.ID); err != nil {
				return fmt.Errorf("delete schedule %s: %w", item.ID, err)
			}
			continue
		}
		next, err := NextRun(item.Clock, now.Add(time.Minute))
		if err != nil {
			// a corrupt clock would fire every tick; push it out a day
			next = now.AddDate(0, 0, 1)
		}
		if err := s.repo.UpdateNextRun(ctx, item.ID, next); err != nil {
			return fmt.Errorf("reschedule %s: %w", item.ID, err)
		}
	}
	return nil
}

// ParseClock splits "HH:MM".
func ParseClock(clock string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(clock), ":")
	if !ok {
		return 0, 0, ErrInvalidClock
	}
	hour, err1 := strconv.Atoi(h)
	minute, err2 := strconv.Atoi(m)
	if err1 != nil || err2 != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, ErrInvalidClock
	}
	return hour, minute, nil
}

// NextRun returns the first occurrence of clock strictly after now, in now's location.
func NextRun(clock string, now time.Time) (time.Time, error) {
	h, m, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, h, m, 0, 0, now.Location())
	}
	return next, nil
}
