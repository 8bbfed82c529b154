package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vietanh/keeper/internal/core/domain"
	"github.com/vietanh/keeper/internal/infra/storage"
)

// RecordRepo implements storage.RecordStore using PostgreSQL. Every write
// is an upsert by the record's natural key.
type RecordRepo struct {
	db *DB
}

// NewRecordRepo creates a new PostgreSQL record store.
func NewRecordRepo(db *DB) *RecordRepo {
	return &RecordRepo{db: db}
}

// GetDeadline retrieves a deadline by id.
func (r *RecordRepo) GetDeadline(ctx context.Context, id string) (*domain.Deadline, error) {
	query := `
		SELECT id, title, due_at, completed, notes, updated_at
		FROM deadlines
		WHERE id = $1
	`

	var row struct {
		ID        string         `db:"id"`
		Title     string         `db:"title"`
		DueAt     time.Time      `db:"due_at"`
		Completed bool           `db:"completed"`
		Notes     sql.NullString `db:"notes"`
		UpdatedAt time.Time      `db:"updated_at"`
	}
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deadline: %w", err)
	}

	return &domain.Deadline{
		ID:        row.ID,
		Title:     row.Title,
		DueAt:     row.DueAt,
		Completed: row.Completed,
		Notes:     row.Notes.String,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// UpsertDeadline writes a deadline keyed by id.
func (r *RecordRepo) UpsertDeadline(ctx context.Context, d *domain.Deadline) error {
	query := `
		INSERT INTO deadlines (id, title, due_at, completed, notes, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, due_at = EXCLUDED.due_at,
		    completed = EXCLUDED.completed, notes = EXCLUDED.notes, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, d.ID, d.Title, d.DueAt, d.Completed, d.Notes); err != nil {
		return fmt.Errorf("failed to upsert deadline: %w", err)
	}
	return nil
}

// ListDeadlinesDue returns incomplete deadlines due before the cutoff.
func (r *RecordRepo) ListDeadlinesDue(ctx context.Context, before time.Time) ([]*domain.Deadline, error) {
	query := `
		SELECT id, title, due_at, completed, notes, updated_at
		FROM deadlines
		WHERE completed = FALSE AND due_at < $1
		ORDER BY due_at ASC
	`

	var rows []struct {
		ID        string         `db:"id"`
		Title     string         `db:"title"`
		DueAt     time.Time      `db:"due_at"`
		Completed bool           `db:"completed"`
		Notes     sql.NullString `db:"notes"`
		UpdatedAt time.Time      `db:"updated_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, before); err != nil {
		return nil, fmt.Errorf("failed to list due deadlines: %w", err)
	}

	deadlines := make([]*domain.Deadline, 0, len(rows))
	for _, row := range rows {
		deadlines = append(deadlines, &domain.Deadline{
			ID:        row.ID,
			Title:     row.Title,
			DueAt:     row.DueAt,
			Completed: row.Completed,
			Notes:     row.Notes.String,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return deadlines, nil
}

// GetScheduleEntry retrieves a schedule entry by id.
func (r *RecordRepo) GetScheduleEntry(ctx context.Context, id string) (*domain.ScheduleEntry, error) {
	query := `
		SELECT id, title, starts_at, ends_at, location, updated_at
		FROM schedule_entries
		WHERE id = $1
	`

	var row struct {
		ID        string         `db:"id"`
		Title     string         `db:"title"`
		StartsAt  time.Time      `db:"starts_at"`
		EndsAt    time.Time      `db:"ends_at"`
		Location  sql.NullString `db:"location"`
		UpdatedAt time.Time      `db:"updated_at"`
	}
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule entry: %w", err)
	}

	return &domain.ScheduleEntry{
		ID:        row.ID,
		Title:     row.Title,
		StartsAt:  row.StartsAt,
		EndsAt:    row.EndsAt,
		Location:  row.Location.String,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// UpsertScheduleEntry writes a schedule entry keyed by id.
func (r *RecordRepo) UpsertScheduleEntry(ctx context.Context, e *domain.ScheduleEntry) error {
	query := `
		INSERT INTO schedule_entries (id, title, starts_at, ends_at, location, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE
		SET title = EXCLUDED.title, starts_at = EXCLUDED.starts_at,
		    ends_at = EXCLUDED.ends_at, location = EXCLUDED.location, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, e.ID, e.Title, e.StartsAt, e.EndsAt, e.Location); err != nil {
		return fmt.Errorf("failed to upsert schedule entry: %w", err)
	}
	return nil
}

// UpsertContextEntry writes a context entry keyed by id. Tags are stored
// as JSON.
func (r *RecordRepo) UpsertContextEntry(ctx context.Context, e *domain.ContextEntry) error {
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `
		INSERT INTO context_entries (id, body, tags, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET body = EXCLUDED.body, tags = EXCLUDED.tags, updated_at = NOW()
	`
	if _, err := r.db.ExecContext(ctx, query, e.ID, e.Body, tags); err != nil {
		return fmt.Errorf("failed to upsert context entry: %w", err)
	}
	return nil
}

// UpsertHabitCheckin writes a checkin keyed by (habit_id, date).
func (r *RecordRepo) UpsertHabitCheckin(ctx context.Context, c *domain.HabitCheckin) error {
	query := `
		INSERT INTO habit_checkins (habit_id, date, done, note)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (habit_id, date) DO UPDATE
		SET done = EXCLUDED.done, note = EXCLUDED.note
	`
	if _, err := r.db.ExecContext(ctx, query, c.HabitID, c.Date, c.Done, c.Note); err != nil {
		return fmt.Errorf("failed to upsert habit checkin: %w", err)
	}
	return nil
}

// UpsertGoalCheckin writes a checkin keyed by (goal_id, date).
func (r *RecordRepo) UpsertGoalCheckin(ctx context.Context, c *domain.GoalCheckin) error {
	query := `
		INSERT INTO goal_checkins (goal_id, date, progress, note)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (goal_id, date) DO UPDATE
		SET progress = EXCLUDED.progress, note = EXCLUDED.note
	`
	if _, err := r.db.ExecContext(ctx, query, c.GoalID, c.Date, c.Progress, c.Note); err != nil {
		return fmt.Errorf("failed to upsert goal checkin: %w", err)
	}
	return nil
}
