package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietanh/keeper/internal/core/domain"
	"github.com/vietanh/keeper/internal/infra/storage"
	"github.com/vietanh/keeper/internal/resilience/healing"
)

// Monitor aggregates health status from the healing policies and the
// mutation queue.
type Monitor struct {
	policies  []*healing.Policy
	queueRepo storage.SyncQueueRepository

	// Queue depth thresholds for status evaluation.
	pendingDegraded int
	pendingCritical int

	lastCheck  time.Time
	lastReport Report
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor.
func NewMonitor(policies []*healing.Policy, queueRepo storage.SyncQueueRepository) *Monitor {
	return &Monitor{
		policies:        policies,
		queueRepo:       queueRepo,
		pendingDegraded: 20,
		pendingCritical: 200,
	}
}

// CheckHealth builds a health report covering every integration and the
// queue.
func (m *Monitor) CheckHealth(ctx context.Context) Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit checks to avoid hammering storage on every probe.
	if time.Since(m.lastCheck) < 10*time.Second && m.lastReport.Integrations != nil {
		return m.lastReport
	}

	now := time.Now()
	report := Report{
		SystemStatus: StatusHealthy,
		Integrations: make(map[string]IntegrationHealth),
	}

	for _, p := range m.policies {
		state := p.State(now)

		status := StatusHealthy
		if state.CircuitOpenUntil != nil {
			status = StatusCritical
		} else if state.ConsecutiveFailures > 0 {
			status = StatusDegraded
		}

		report.Integrations[state.Integration] = IntegrationHealth{
			Integration: state.Integration,
			Status:      status,
			Healing:     state,
		}
	}

	report.Queue = m.checkQueue(ctx)

	// Worst case wins.
	report.SystemStatus = report.Queue.Status
	for _, ih := range report.Integrations {
		if worse(ih.Status, report.SystemStatus) {
			report.SystemStatus = ih.Status
		}
	}

	m.lastCheck = now
	m.lastReport = report
	return report
}

func (m *Monitor) checkQueue(ctx context.Context) QueueHealth {
	qh := QueueHealth{Status: StatusHealthy}

	if m.queueRepo == nil {
		return qh
	}

	if pending, err := m.queueRepo.CountByStatus(ctx, domain.SyncItemStatusPending); err == nil {
		qh.Pending = pending
	}
	if failed, err := m.queueRepo.CountByStatus(ctx, domain.SyncItemStatusFailed); err == nil {
		qh.DeadLettered = failed
	}

	if qh.Pending >= m.pendingCritical {
		qh.Status = StatusCritical
	} else if qh.Pending >= m.pendingDegraded || qh.DeadLettered > 0 {
		qh.Status = StatusDegraded
	}

	return qh
}

func worse(a, b SystemStatus) bool {
	rank := func(s SystemStatus) int {
		switch s {
		case StatusCritical:
			return 2
		case StatusDegraded:
			return 1
		default:
			return 0
		}
	}
	return rank(a) > rank(b)
}
