// Package memory provides in-memory implementations of the storage
// interfaces, used in tests and when running without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietanh/keeper/internal/core/domain"
	"github.com/vietanh/keeper/internal/infra/storage"
)

// Storage holds all in-memory tables behind one mutex.
type Storage struct {
	mu            sync.Mutex
	items         map[string]*domain.SyncItem
	subscriptions map[string]*domain.PushSubscription
	deadlines     map[string]*domain.Deadline
	schedule      map[string]*domain.ScheduleEntry
	contexts      map[string]*domain.ContextEntry
	habits        map[string]*domain.HabitCheckin
	goals         map[string]*domain.GoalCheckin
}

// NewStorage creates an empty in-memory storage.
func NewStorage() *Storage {
	return &Storage{
		items:         make(map[string]*domain.SyncItem),
		subscriptions: make(map[string]*domain.PushSubscription),
		deadlines:     make(map[string]*domain.Deadline),
		schedule:      make(map[string]*domain.ScheduleEntry),
		contexts:      make(map[string]*domain.ContextEntry),
		habits:        make(map[string]*domain.HabitCheckin),
		goals:         make(map[string]*domain.GoalCheckin),
	}
}

// =============================================================================
// SyncQueueRepository
// =============================================================================

// SyncQueueRepo implements storage.SyncQueueRepository.
type SyncQueueRepo struct{ s *Storage }

// NewSyncQueueRepo creates an in-memory sync queue repository.
func NewSyncQueueRepo(s *Storage) *SyncQueueRepo {
	return &SyncQueueRepo{s: s}
}

func (r *SyncQueueRepo) Enqueue(ctx context.Context, item *domain.SyncItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *item
	if cp.Status == "" {
		cp.Status = domain.SyncItemStatusPending
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.s.items[cp.ID] = &cp
	return nil
}

func (r *SyncQueueRepo) GetPending(ctx context.Context, limit int) ([]*domain.SyncItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var pending []*domain.SyncItem
	for _, item := range r.s.items {
		if item.Status == domain.SyncItemStatusPending {
			cp := *item
			pending = append(pending, &cp)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *SyncQueueRepo) MarkCompleted(ctx context.Context, id string) error {
	return r.update(id, func(item *domain.SyncItem) {
		item.Status = domain.SyncItemStatusCompleted
	})
}

func (r *SyncQueueRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.update(id, func(item *domain.SyncItem) {
		item.Status = domain.SyncItemStatusFailed
		item.Attempts++
		item.LastError = errMsg
		now := time.Now()
		item.LastAttemptAt = &now
	})
}

func (r *SyncQueueRepo) RecordAttempt(ctx context.Context, id string, errMsg string, at time.Time) error {
	return r.update(id, func(item *domain.SyncItem) {
		item.Attempts++
		item.LastError = errMsg
		t := at
		item.LastAttemptAt = &t
	})
}

func (r *SyncQueueRepo) CountByStatus(ctx context.Context, status domain.SyncItemStatus) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, item := range r.s.items {
		if item.Status == status {
			count++
		}
	}
	return count, nil
}

func (r *SyncQueueRepo) update(id string, fn func(*domain.SyncItem)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.items[id]
	if !ok {
		return storage.ErrNotFound
	}
	fn(item)
	return nil
}

// =============================================================================
// SubscriptionRepository
// =============================================================================

// SubscriptionRepo implements storage.SubscriptionRepository.
type SubscriptionRepo struct{ s *Storage }

// NewSubscriptionRepo creates an in-memory subscription repository.
func NewSubscriptionRepo(s *Storage) *SubscriptionRepo {
	return &SubscriptionRepo{s: s}
}

func (r *SubscriptionRepo) Save(ctx context.Context, sub *domain.PushSubscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *sub
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.s.subscriptions[cp.Endpoint] = &cp
	return nil
}

func (r *SubscriptionRepo) List(ctx context.Context) ([]*domain.PushSubscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	subs := make([]*domain.PushSubscription, 0, len(r.s.subscriptions))
	for _, sub := range r.s.subscriptions {
		cp := *sub
		subs = append(subs, &cp)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Endpoint < subs[j].Endpoint })
	return subs, nil
}

func (r *SubscriptionRepo) Delete(ctx context.Context, endpoint string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.subscriptions, endpoint)
	return nil
}

// =============================================================================
// RecordStore
// =============================================================================

// RecordRepo implements storage.RecordStore.
type RecordRepo struct{ s *Storage }

// NewRecordRepo creates an in-memory record store.
func NewRecordRepo(s *Storage) *RecordRepo {
	return &RecordRepo{s: s}
}

func (r *RecordRepo) GetDeadline(ctx context.Context, id string) (*domain.Deadline, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.deadlines[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *RecordRepo) UpsertDeadline(ctx context.Context, d *domain.Deadline) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *d
	cp.UpdatedAt = time.Now()
	r.s.deadlines[cp.ID] = &cp
	return nil
}

func (r *RecordRepo) ListDeadlinesDue(ctx context.Context, before time.Time) ([]*domain.Deadline, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var due []*domain.Deadline
	for _, d := range r.s.deadlines {
		if !d.Completed && d.DueAt.Before(before) {
			cp := *d
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })
	return due, nil
}

func (r *RecordRepo) GetScheduleEntry(ctx context.Context, id string) (*domain.ScheduleEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.schedule[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *RecordRepo) UpsertScheduleEntry(ctx context.Context, e *domain.ScheduleEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *e
	cp.UpdatedAt = time.Now()
	r.s.schedule[cp.ID] = &cp
	return nil
}

func (r *RecordRepo) UpsertContextEntry(ctx context.Context, e *domain.ContextEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *e
	cp.UpdatedAt = time.Now()
	r.s.contexts[cp.ID] = &cp
	return nil
}

func (r *RecordRepo) UpsertHabitCheckin(ctx context.Context, c *domain.HabitCheckin) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *c
	r.s.habits[cp.HabitID+"/"+cp.Date] = &cp
	return nil
}

func (r *RecordRepo) UpsertGoalCheckin(ctx context.Context, c *domain.GoalCheckin) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *c
	r.s.goals[cp.GoalID+"/"+cp.Date] = &cp
	return nil
}

// HabitCheckin returns the stored checkin for (habitID, date), for tests.
func (r *RecordRepo) HabitCheckin(habitID, date string) (*domain.HabitCheckin, bool) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.habits[habitID+"/"+date]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

// GoalCheckin returns the stored checkin for (goalID, date), for tests.
func (r *RecordRepo) GoalCheckin(goalID, date string) (*domain.GoalCheckin, bool) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.goals[goalID+"/"+date]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

// ContextEntry returns the stored context entry by id, for tests.
func (r *RecordRepo) ContextEntry(id string) (*domain.ContextEntry, bool) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.contexts[id]
	if !ok {
		return nil, false
	}
	cp := *e
	return &cp, true
}

// Item returns the stored queue item by id, for tests.
func (s *Storage) Item(id string) (*domain.SyncItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, false
	}
	cp := *item
	return &cp, true
}
