package memory

import (
	"context"
	"testing"
	"time"

	"github.com/vietanh/keeper/internal/core/domain"
	"github.com/vietanh/keeper/internal/infra/storage"
)

func TestSyncQueueRepo_Lifecycle(t *testing.T) {
	repo := NewSyncQueueRepo(NewStorage())
	ctx := context.Background()

	item := &domain.SyncItem{
		ID:            "item-1",
		OperationType: domain.OpDeadlineUpdate,
		Payload:       []byte(`{}`),
	}
	if err := repo.Enqueue(ctx, item); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	pending, err := repo.GetPending(ctx, 10)
	if err != nil {
		t.Fatalf("get pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].Status != domain.SyncItemStatusPending {
		t.Fatalf("expected one pending item, got %+v", pending)
	}

	at := time.Now()
	if err := repo.RecordAttempt(ctx, "item-1", "boom", at); err != nil {
		t.Fatalf("record attempt failed: %v", err)
	}
	pending, _ = repo.GetPending(ctx, 10)
	if pending[0].Attempts != 1 || pending[0].LastError != "boom" {
		t.Errorf("attempt not recorded: %+v", pending[0])
	}
	if pending[0].Status != domain.SyncItemStatusPending {
		t.Errorf("item left pending state after attempt: %s", pending[0].Status)
	}

	if err := repo.MarkCompleted(ctx, "item-1"); err != nil {
		t.Fatalf("mark completed failed: %v", err)
	}
	pending, _ = repo.GetPending(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("completed item still pending")
	}

	count, _ := repo.CountByStatus(ctx, domain.SyncItemStatusCompleted)
	if count != 1 {
		t.Errorf("expected 1 completed, got %d", count)
	}
}

func TestSyncQueueRepo_MarkFailedIsTerminal(t *testing.T) {
	store := NewStorage()
	repo := NewSyncQueueRepo(store)
	ctx := context.Background()

	repo.Enqueue(ctx, &domain.SyncItem{ID: "item-1", OperationType: domain.OpContextUpdate, Attempts: 4})
	if err := repo.MarkFailed(ctx, "item-1", "still broken"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	item, _ := store.Item("item-1")
	if item.Status != domain.SyncItemStatusFailed {
		t.Errorf("expected failed, got %s", item.Status)
	}
	if item.Attempts != 5 {
		t.Errorf("expected attempt counted, got %d", item.Attempts)
	}
	if item.LastError != "still broken" {
		t.Errorf("expected last error recorded, got %q", item.LastError)
	}

	pending, _ := repo.GetPending(ctx, 10)
	if len(pending) != 0 {
		t.Error("failed item still pending")
	}
}

func TestSyncQueueRepo_GetPendingOrderAndLimit(t *testing.T) {
	repo := NewSyncQueueRepo(NewStorage())
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"c", "a", "b"} {
		repo.Enqueue(ctx, &domain.SyncItem{
			ID:        id,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	pending, _ := repo.GetPending(ctx, 2)
	if len(pending) != 2 {
		t.Fatalf("expected 2 items, got %d", len(pending))
	}
	if pending[0].ID != "c" || pending[1].ID != "a" {
		t.Errorf("expected oldest-first [c a], got [%s %s]", pending[0].ID, pending[1].ID)
	}
}

func TestSyncQueueRepo_UnknownID(t *testing.T) {
	repo := NewSyncQueueRepo(NewStorage())

	if err := repo.MarkCompleted(context.Background(), "nope"); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSubscriptionRepo_SaveIsUpsert(t *testing.T) {
	repo := NewSubscriptionRepo(NewStorage())
	ctx := context.Background()

	repo.Save(ctx, &domain.PushSubscription{Endpoint: "https://push/1", Keys: map[string]string{"auth": "a"}})
	repo.Save(ctx, &domain.PushSubscription{Endpoint: "https://push/1", Keys: map[string]string{"auth": "b"}})

	subs, _ := repo.List(ctx)
	if len(subs) != 1 {
		t.Fatalf("expected 1 subscription, got %d", len(subs))
	}
	if subs[0].Keys["auth"] != "b" {
		t.Errorf("expected updated keys, got %q", subs[0].Keys["auth"])
	}

	repo.Delete(ctx, "https://push/1")
	subs, _ = repo.List(ctx)
	if len(subs) != 0 {
		t.Error("expected empty list after delete")
	}
}

func TestRecordRepo_DueDeadlines(t *testing.T) {
	repo := NewRecordRepo(NewStorage())
	ctx := context.Background()
	now := time.Now()

	repo.UpsertDeadline(ctx, &domain.Deadline{ID: "soon", Title: "soon", DueAt: now.Add(time.Hour)})
	repo.UpsertDeadline(ctx, &domain.Deadline{ID: "later", Title: "later", DueAt: now.Add(48 * time.Hour)})
	repo.UpsertDeadline(ctx, &domain.Deadline{ID: "done", Title: "done", DueAt: now.Add(time.Hour), Completed: true})

	due, err := repo.ListDeadlinesDue(ctx, now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(due) != 1 || due[0].ID != "soon" {
		t.Errorf("expected [soon], got %+v", due)
	}
}

func TestRecordRepo_CheckinKeys(t *testing.T) {
	repo := NewRecordRepo(NewStorage())
	ctx := context.Background()

	repo.UpsertHabitCheckin(ctx, &domain.HabitCheckin{HabitID: "h1", Date: "2026-08-30", Done: true})
	repo.UpsertHabitCheckin(ctx, &domain.HabitCheckin{HabitID: "h1", Date: "2026-08-31", Done: true})
	repo.UpsertHabitCheckin(ctx, &domain.HabitCheckin{HabitID: "h1", Date: "2026-08-31", Done: false})

	if c, ok := repo.HabitCheckin("h1", "2026-08-30"); !ok || !c.Done {
		t.Error("expected done checkin for 2026-08-30")
	}
	if c, ok := repo.HabitCheckin("h1", "2026-08-31"); !ok || c.Done {
		t.Error("expected replaced checkin for 2026-08-31")
	}

	repo.UpsertGoalCheckin(ctx, &domain.GoalCheckin{GoalID: "g1", Date: "2026-08-31", Progress: 40})
	repo.UpsertGoalCheckin(ctx, &domain.GoalCheckin{GoalID: "g1", Date: "2026-08-31", Progress: 55})
	if c, ok := repo.GoalCheckin("g1", "2026-08-31"); !ok || c.Progress != 55 {
		t.Error("expected absolute progress 55")
	}
}
