package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietanh/keeper/internal/core/domain"
)

var (
	// ErrNotFound is returned when a record doesn't exist
	ErrNotFound = errors.New("record not found")
)

// SyncQueueRepository handles the durable offline mutation queue
type SyncQueueRepository interface {
	// Enqueue inserts a new pending item
	Enqueue(ctx context.Context, item *domain.SyncItem) error

	// GetPending retrieves up to limit pending items, oldest first
	GetPending(ctx context.Context, limit int) ([]*domain.SyncItem, error)

	// MarkCompleted transitions an item to the terminal completed status
	MarkCompleted(ctx context.Context, id string) error

	// MarkFailed transitions an item to the terminal failed status (dead-letter)
	MarkFailed(ctx context.Context, id string, errMsg string) error

	// RecordAttempt bumps the attempt count and stamps the failure while the
	// item stays pending
	RecordAttempt(ctx context.Context, id string, errMsg string, at time.Time) error

	// CountByStatus returns the number of items with the given status
	CountByStatus(ctx context.Context, status domain.SyncItemStatus) (int, error)
}

// SubscriptionRepository handles push subscription storage
type SubscriptionRepository interface {
	// Save upserts a subscription keyed by endpoint
	Save(ctx context.Context, sub *domain.PushSubscription) error

	// List retrieves all subscriptions
	List(ctx context.Context) ([]*domain.PushSubscription, error)

	// Delete removes a subscription by endpoint
	Delete(ctx context.Context, endpoint string) error
}

// RecordStore persists the productivity records the queue handlers apply.
// Every write is an upsert by the record's natural key so that replaying a
// queue item after a crash cannot double-apply its effect.
type RecordStore interface {
	GetDeadline(ctx context.Context, id string) (*domain.Deadline, error)
	UpsertDeadline(ctx context.Context, d *domain.Deadline) error

	// ListDeadlinesDue returns incomplete deadlines due before the cutoff
	ListDeadlinesDue(ctx context.Context, before time.Time) ([]*domain.Deadline, error)

	GetScheduleEntry(ctx context.Context, id string) (*domain.ScheduleEntry, error)
	UpsertScheduleEntry(ctx context.Context, e *domain.ScheduleEntry) error

	UpsertContextEntry(ctx context.Context, e *domain.ContextEntry) error
	UpsertHabitCheckin(ctx context.Context, c *domain.HabitCheckin) error
	UpsertGoalCheckin(ctx context.Context, c *domain.GoalCheckin) error
}
