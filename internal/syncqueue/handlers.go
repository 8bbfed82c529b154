package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vietanh/keeper/internal/core/domain"
	"github.com/vietanh/keeper/internal/infra/storage"
)

// Stores bundles the domain stores the built-in handlers write to.
type Stores struct {
	Records storage.RecordStore
}

// RegisterDefaults attaches the built-in handler for every known operation
// type.
func RegisterDefaults(p *Processor, s Stores) {
	p.Register(domain.OpDeadlineUpdate, DeadlineUpdateHandler(s.Records))
	p.Register(domain.OpScheduleUpdate, ScheduleUpdateHandler(s.Records))
	p.Register(domain.OpContextUpdate, ContextUpdateHandler(s.Records))
	p.Register(domain.OpHabitCheckin, HabitCheckinHandler(s.Records))
	p.Register(domain.OpGoalCheckin, GoalCheckinHandler(s.Records))
}

type deadlineUpdatePayload struct {
	DeadlineID string     `json:"deadlineId"`
	Title      *string    `json:"title"`
	DueAt      *time.Time `json:"dueAt"`
	Completed  *bool      `json:"completed"`
	Notes      *string    `json:"notes"`
}

// DeadlineUpdateHandler applies a deadline create or patch. A "temp-" id is
// a client-side create and must carry the full record; a committed id
// patches the existing record.
func DeadlineUpdateHandler(store storage.RecordStore) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p deadlineUpdatePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("deadline-update: malformed payload: %w", err)
		}
		if p.DeadlineID == "" {
			return errors.New("deadline-update: missing string deadlineId")
		}

		if domain.IsTempID(p.DeadlineID) {
			if p.Title == nil || *p.Title == "" {
				return errors.New("deadline-update: create requires title")
			}
			if p.DueAt == nil {
				return errors.New("deadline-update: create requires dueAt")
			}
			d := &domain.Deadline{ID: p.DeadlineID, Title: *p.Title, DueAt: *p.DueAt}
			if p.Completed != nil {
				d.Completed = *p.Completed
			}
			if p.Notes != nil {
				d.Notes = *p.Notes
			}
			return store.UpsertDeadline(ctx, d)
		}

		d, err := store.GetDeadline(ctx, p.DeadlineID)
		if err != nil {
			return fmt.Errorf("deadline-update: load %s: %w", p.DeadlineID, err)
		}
		if p.Title != nil {
			d.Title = *p.Title
		}
		if p.DueAt != nil {
			d.DueAt = *p.DueAt
		}
		if p.Completed != nil {
			d.Completed = *p.Completed
		}
		if p.Notes != nil {
			d.Notes = *p.Notes
		}
		return store.UpsertDeadline(ctx, d)
	}
}

type scheduleUpdatePayload struct {
	ScheduleID string `json:"scheduleId"`
	Patch      struct {
		Title    *string    `json:"title"`
		StartsAt *time.Time `json:"startsAt"`
		EndsAt   *time.Time `json:"endsAt"`
		Location *string    `json:"location"`
	} `json:"patch"`
}

// ScheduleUpdateHandler applies a partial schedule patch. The patch must
// carry at least one recognized field; fields are set, not appended, so
// applying the same item twice leaves the entry unchanged.
func ScheduleUpdateHandler(store storage.RecordStore) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p scheduleUpdatePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("schedule-update: malformed payload: %w", err)
		}
		if p.ScheduleID == "" {
			return errors.New("schedule-update: missing string scheduleId")
		}
		if p.Patch.Title == nil && p.Patch.StartsAt == nil && p.Patch.EndsAt == nil && p.Patch.Location == nil {
			return errors.New("schedule-update: patch has no recognized fields")
		}

		var entry *domain.ScheduleEntry
		if domain.IsTempID(p.ScheduleID) {
			entry = &domain.ScheduleEntry{ID: p.ScheduleID}
		} else {
			var err error
			entry, err = store.GetScheduleEntry(ctx, p.ScheduleID)
			if err != nil {
				return fmt.Errorf("schedule-update: load %s: %w", p.ScheduleID, err)
			}
		}

		if p.Patch.Title != nil {
			entry.Title = *p.Patch.Title
		}
		if p.Patch.StartsAt != nil {
			entry.StartsAt = *p.Patch.StartsAt
		}
		if p.Patch.EndsAt != nil {
			entry.EndsAt = *p.Patch.EndsAt
		}
		if p.Patch.Location != nil {
			entry.Location = *p.Patch.Location
		}
		return store.UpsertScheduleEntry(ctx, entry)
	}
}

type contextUpdatePayload struct {
	ContextID string   `json:"contextId"`
	Body      string   `json:"body"`
	Tags      []string `json:"tags"`
}

// ContextUpdateHandler upserts a journal/context entry by id.
func ContextUpdateHandler(store storage.RecordStore) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p contextUpdatePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("context-update: malformed payload: %w", err)
		}
		if p.ContextID == "" {
			return errors.New("context-update: missing string contextId")
		}
		if p.Body == "" {
			return errors.New("context-update: missing string body")
		}
		return store.UpsertContextEntry(ctx, &domain.ContextEntry{
			ID:   p.ContextID,
			Body: p.Body,
			Tags: p.Tags,
		})
	}
}

type habitCheckinPayload struct {
	HabitID string `json:"habitId"`
	Date    string `json:"date"`
	Done    *bool  `json:"done"`
	Note    string `json:"note"`
}

// HabitCheckinHandler upserts a habit checkin keyed by (habitId, date).
func HabitCheckinHandler(store storage.RecordStore) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p habitCheckinPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("habit-checkin: malformed payload: %w", err)
		}
		if p.HabitID == "" {
			return errors.New("habit-checkin: missing string habitId")
		}
		if _, err := time.Parse("2006-01-02", p.Date); err != nil {
			return fmt.Errorf("habit-checkin: invalid date %q: %w", p.Date, err)
		}
		done := true
		if p.Done != nil {
			done = *p.Done
		}
		return store.UpsertHabitCheckin(ctx, &domain.HabitCheckin{
			HabitID: p.HabitID,
			Date:    p.Date,
			Done:    done,
			Note:    p.Note,
		})
	}
}

type goalCheckinPayload struct {
	GoalID   string   `json:"goalId"`
	Date     string   `json:"date"`
	Progress *float64 `json:"progress"`
	Note     string   `json:"note"`
}

// GoalCheckinHandler upserts a goal checkin keyed by (goalId, date).
// Progress is an absolute value in [0, 100].
func GoalCheckinHandler(store storage.RecordStore) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p goalCheckinPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("goal-checkin: malformed payload: %w", err)
		}
		if p.GoalID == "" {
			return errors.New("goal-checkin: missing string goalId")
		}
		if _, err := time.Parse("2006-01-02", p.Date); err != nil {
			return fmt.Errorf("goal-checkin: invalid date %q: %w", p.Date, err)
		}
		if p.Progress == nil {
			return errors.New("goal-checkin: missing number progress")
		}
		if *p.Progress < 0 || *p.Progress > 100 {
			return fmt.Errorf("goal-checkin: progress %v out of range [0, 100]", *p.Progress)
		}
		return store.UpsertGoalCheckin(ctx, &domain.GoalCheckin{
			GoalID:   p.GoalID,
			Date:     p.Date,
			Progress: *p.Progress,
			Note:     p.Note,
		})
	}
}
