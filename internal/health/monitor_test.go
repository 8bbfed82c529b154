package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietanh/keeper/internal/core/domain"
	"github.com/vietanh/keeper/internal/resilience/healing"
)

// =============================================================================
// Mocks
// =============================================================================

type stubQueueRepo struct {
	pending int
	failed  int
}

func (s *stubQueueRepo) Enqueue(ctx context.Context, item *domain.SyncItem) error { return nil }
func (s *stubQueueRepo) GetPending(ctx context.Context, limit int) ([]*domain.SyncItem, error) {
	return nil, nil
}
func (s *stubQueueRepo) MarkCompleted(ctx context.Context, id string) error { return nil }
func (s *stubQueueRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return nil
}
func (s *stubQueueRepo) RecordAttempt(ctx context.Context, id string, errMsg string, at time.Time) error {
	return nil
}
func (s *stubQueueRepo) CountByStatus(ctx context.Context, status domain.SyncItemStatus) (int, error) {
	switch status {
	case domain.SyncItemStatusPending:
		return s.pending, nil
	case domain.SyncItemStatusFailed:
		return s.failed, nil
	}
	return 0, nil
}

// =============================================================================
// Tests
// =============================================================================

func TestCheckHealth_AllHealthy(t *testing.T) {
	policy := healing.New(healing.Config{Integration: "calendar"})
	monitor := NewMonitor([]*healing.Policy{policy}, &stubQueueRepo{})

	report := monitor.CheckHealth(context.Background())

	if report.SystemStatus != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.SystemStatus)
	}
	if ih := report.Integrations["calendar"]; ih.Status != StatusHealthy {
		t.Errorf("expected calendar healthy, got %s", ih.Status)
	}
	if report.Queue.Status != StatusHealthy {
		t.Errorf("expected queue healthy, got %s", report.Queue.Status)
	}
}

func TestCheckHealth_FailingIntegrationDegrades(t *testing.T) {
	policy := healing.New(healing.Config{
		Integration: "email",
		Rand:        func() float64 { return 0 },
	})
	policy.RecordFailure(errors.New("timeout"), time.Now())

	monitor := NewMonitor([]*healing.Policy{policy}, &stubQueueRepo{})
	report := monitor.CheckHealth(context.Background())

	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.SystemStatus)
	}
	if ih := report.Integrations["email"]; ih.Healing.ConsecutiveFailures != 1 {
		t.Errorf("expected 1 consecutive failure, got %d", ih.Healing.ConsecutiveFailures)
	}
}

func TestCheckHealth_OpenCircuitIsCritical(t *testing.T) {
	policy := healing.New(healing.Config{
		Integration:             "tasks",
		CircuitFailureThreshold: 2,
		Rand:                    func() float64 { return 0 },
	})
	now := time.Now()
	policy.RecordFailure(errors.New("boom"), now)
	policy.RecordFailure(errors.New("boom"), now)

	monitor := NewMonitor([]*healing.Policy{policy}, &stubQueueRepo{})
	report := monitor.CheckHealth(context.Background())

	if report.SystemStatus != StatusCritical {
		t.Errorf("expected critical, got %s", report.SystemStatus)
	}
	if ih := report.Integrations["tasks"]; ih.Status != StatusCritical {
		t.Errorf("expected tasks critical, got %s", ih.Status)
	}
}

func TestCheckHealth_QueueBacklogDegrades(t *testing.T) {
	monitor := NewMonitor(nil, &stubQueueRepo{pending: 50})
	report := monitor.CheckHealth(context.Background())

	if report.Queue.Status != StatusDegraded {
		t.Errorf("expected queue degraded, got %s", report.Queue.Status)
	}
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected system degraded, got %s", report.SystemStatus)
	}
	if report.Queue.Pending != 50 {
		t.Errorf("expected 50 pending, got %d", report.Queue.Pending)
	}
}

func TestCheckHealth_DeadLettersDegrade(t *testing.T) {
	monitor := NewMonitor(nil, &stubQueueRepo{failed: 3})
	report := monitor.CheckHealth(context.Background())

	if report.Queue.Status != StatusDegraded {
		t.Errorf("expected queue degraded, got %s", report.Queue.Status)
	}
	if report.Queue.DeadLettered != 3 {
		t.Errorf("expected 3 dead-lettered, got %d", report.Queue.DeadLettered)
	}
}

func TestCheckHealth_ReportIsCached(t *testing.T) {
	repo := &stubQueueRepo{pending: 5}
	monitor := NewMonitor(nil, repo)

	first := monitor.CheckHealth(context.Background())
	repo.pending = 500
	second := monitor.CheckHealth(context.Background())

	if second.Queue.Pending != first.Queue.Pending {
		t.Errorf("expected cached report, got pending %d", second.Queue.Pending)
	}
}
