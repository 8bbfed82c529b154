package notify

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/vietanh/keeper/internal/core/domain"
	"github.com/vietanh/keeper/internal/infra/storage/memory"
	"github.com/vietanh/keeper/internal/push"
)

// =============================================================================
// Mock Deduper
// =============================================================================

type mockDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMockDeduper() *mockDeduper {
	return &mockDeduper{seen: make(map[string]bool)}
}

func (d *mockDeduper) MarkSent(ctx context.Context, endpoint, notificationID string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := notificationID + ":" + endpoint
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func (d *mockDeduper) ClearSent(ctx context.Context, endpoint, notificationID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, notificationID+":"+endpoint)
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func seedSubs(t *testing.T, repo *memory.SubscriptionRepo, endpoints ...string) {
	t.Helper()
	for _, ep := range endpoints {
		if err := repo.Save(context.Background(), &domain.PushSubscription{Endpoint: ep}); err != nil {
			t.Fatal(err)
		}
	}
}

func noopSleep(ctx context.Context, d time.Duration) {}

func notif(id string) *domain.Notification {
	return &domain.Notification{ID: id, Title: "t", Message: "m", Timestamp: time.Now()}
}

// =============================================================================
// Dispatch Tests
// =============================================================================

func TestDispatch_DeliversToAll(t *testing.T) {
	repo := memory.NewSubscriptionRepo(memory.NewStorage())
	seedSubs(t, repo, "https://p/a", "https://p/b")

	var sent []string
	d := NewDispatcher(repo, nil, push.Options{
		Send: func(ctx context.Context, sub *domain.PushSubscription, payload []byte) error {
			sent = append(sent, sub.Endpoint)
			return nil
		},
		Sleep: noopSleep,
	}, 0)

	out, err := d.Dispatch(context.Background(), notif("n-1"))
	if err != nil {
		t.Fatal(err)
	}
	if out.Delivered != 2 || len(sent) != 2 {
		t.Errorf("outcome = %+v, sent = %v", out, sent)
	}
}

func TestDispatch_DropsGoneSubscription(t *testing.T) {
	store := memory.NewStorage()
	repo := memory.NewSubscriptionRepo(store)
	seedSubs(t, repo, "https://p/alive", "https://p/gone")

	d := NewDispatcher(repo, nil, push.Options{
		Send: func(ctx context.Context, sub *domain.PushSubscription, payload []byte) error {
			if sub.Endpoint == "https://p/gone" {
				return &push.SendError{StatusCode: http.StatusGone}
			}
			return nil
		},
		Sleep: noopSleep,
	}, 0)

	out, err := d.Dispatch(context.Background(), notif("n-1"))
	if err != nil {
		t.Fatal(err)
	}
	if out.Delivered != 1 || out.Dropped != 1 {
		t.Errorf("outcome = %+v, want 1 delivered 1 dropped", out)
	}

	subs, _ := repo.List(context.Background())
	if len(subs) != 1 || subs[0].Endpoint != "https://p/alive" {
		t.Errorf("remaining subscriptions = %v, want only the alive one", subs)
	}
}

func TestDispatch_DedupeSkipsSecondRound(t *testing.T) {
	repo := memory.NewSubscriptionRepo(memory.NewStorage())
	seedSubs(t, repo, "https://p/a")

	calls := 0
	d := NewDispatcher(repo, newMockDeduper(), push.Options{
		Send: func(ctx context.Context, sub *domain.PushSubscription, payload []byte) error {
			calls++
			return nil
		},
		Sleep: noopSleep,
	}, time.Hour)

	n := notif("n-1")
	if out, _ := d.Dispatch(context.Background(), n); out.Delivered != 1 {
		t.Fatalf("first round outcome = %+v", out)
	}
	out, _ := d.Dispatch(context.Background(), n)
	if out.Skipped != 1 || out.Delivered != 0 {
		t.Errorf("second round outcome = %+v, want skipped", out)
	}
	if calls != 1 {
		t.Errorf("send called %d times, want 1", calls)
	}

	// A different notification id is not deduped.
	if out, _ := d.Dispatch(context.Background(), notif("n-2")); out.Delivered != 1 {
		t.Errorf("new notification outcome = %+v", out)
	}
}

func TestDispatch_FailureClearsDedupeMarker(t *testing.T) {
	repo := memory.NewSubscriptionRepo(memory.NewStorage())
	seedSubs(t, repo, "https://p/a")

	fail := true
	d := NewDispatcher(repo, newMockDeduper(), push.Options{
		MaxRetries: 1,
		Send: func(ctx context.Context, sub *domain.PushSubscription, payload []byte) error {
			if fail {
				return errors.New("unreachable")
			}
			return nil
		},
		Sleep: noopSleep,
	}, time.Hour)

	n := notif("n-1")
	if out, _ := d.Dispatch(context.Background(), n); out.Failed != 1 {
		t.Fatal("expected first round to fail")
	}

	// The marker was cleared, so the next dispatch retries and delivers.
	fail = false
	out, _ := d.Dispatch(context.Background(), n)
	if out.Delivered != 1 || out.Skipped != 0 {
		t.Errorf("retry round outcome = %+v, want delivered", out)
	}
}
