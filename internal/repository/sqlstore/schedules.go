package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"protonmc/internal/model"
	"protonmc/internal/repository"
)

// ScheduleStore is a database/sql implementation of repository.ScheduleRepository.
type ScheduleStore struct {
	base
}

// NewScheduleStore creates a ScheduleStore for the given driver dialect.
func NewScheduleStore(db *sql.DB, driver string) *ScheduleStore {
	return &ScheduleStore{base{db: db, driver: driver}}
}

var _ repository.ScheduleRepository = (*ScheduleStore)(nil)

const scheduleColumns = `id, server_name, action, clock, frequency, next_run, created_at`

func scanSchedule(row rowScanner) (*model.Schedule, error) {
	var (
		s                 model.Schedule
		action, frequency string
		next, created     int64
	)
	if err := row.Scan(&s.ID, &s.Server, &action, &s.Clock, &frequency, &next, &created); err != nil {
		return nil, err
	}
	s.Action = model.ScheduleAction(action)
	s.Frequency = model.Frequency(frequency)
	s.NextRun = fromMillis(next)
	s.CreatedAt = fromMillis(created)
	return &s, nil
}

func (r *ScheduleStore) list(ctx context.Context, q string, args ...any) ([]model.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, r.q(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Schedule, 0)
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *s)
	}
	return items, rows.Err()
}

// Create inserts a schedule.
func (r *ScheduleStore) Create(ctx context.Context, s *model.Schedule) error {
	q := `INSERT INTO schedules (` + scheduleColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, r.q(q),
		s.ID,
		s.Server,
		string(s.Action),
		s.Clock,
		string(s.Frequency),
		toMillis(s.NextRun),
		toMillis(s.CreatedAt),
	)
	return err
}

// ListByServer returns a server's schedules ordered by next run.
func (r *ScheduleStore) ListByServer(ctx context.Context, server string) ([]model.Schedule, error) {
	q := `SELECT ` + scheduleColumns + ` FROM schedules WHERE server_name = $1 ORDER BY next_run`
	return r.list(ctx, q, server)
}

// ListDue returns schedules with next_run <= now across all servers.
func (r *ScheduleStore) ListDue(ctx context.Context, now time.Time) ([]model.Schedule, error) {
	q := `SELECT ` + scheduleColumns + ` FROM schedules WHERE next_run <= $1 ORDER BY next_run`
	return r.list(ctx, q, toMillis(now))
}

// UpdateNextRun moves a schedule to its next occurrence.
func (r *ScheduleStore) UpdateNextRun(ctx context.Context, id string, next time.Time) error {
	const q = `UPDATE schedules SET next_run = $1 WHERE id = $2`
	res, err := r.db.ExecContext(ctx, r.q(q), toMillis(next), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update schedule: %w", sql.ErrNoRows)
	}
	return nil
}

// Delete removes one schedule of a server; a missing row yields sql.ErrNoRows.
func (r *ScheduleStore) Delete(ctx context.Context, server, id string) error {
	const q = `DELETE FROM schedules WHERE server_name = $1 AND id = $2`
	res, err := r.db.ExecContext(ctx, r.q(q), server, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete schedule: %w", sql.ErrNoRows)
	}
	return nil
}

// DeleteByServer removes all schedules of a server.
func (r *ScheduleStore) DeleteByServer(ctx context.Context, server string) error {
	const q = `DELETE FROM schedules WHERE server_name = $1`
	_, err := r.db.ExecContext(ctx, r.q(q), server)
	return err
}
