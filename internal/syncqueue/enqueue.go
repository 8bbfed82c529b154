package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vietanh/keeper/internal/core/domain"
	"github.com/vietanh/keeper/internal/infra/storage"
)

var knownOps = map[domain.OperationType]struct{}{
	domain.OpDeadlineUpdate: {},
	domain.OpContextUpdate:  {},
	domain.OpHabitCheckin:   {},
	domain.OpGoalCheckin:    {},
	domain.OpScheduleUpdate: {},
}

// Enqueuer is the client-facing edge of the queue. It validates the
// operation type and persists a new pending item; processing happens later
// on the processor's schedule.
type Enqueuer struct {
	repo storage.SyncQueueRepository
	now  func() time.Time
}

// NewEnqueuer creates an enqueuer over repo.
func NewEnqueuer(repo storage.SyncQueueRepository) *Enqueuer {
	return &Enqueuer{repo: repo, now: time.Now}
}

// Enqueue persists a new pending mutation and returns it. The payload is
// stored as-is; handlers validate its shape at processing time.
func (e *Enqueuer) Enqueue(ctx context.Context, op domain.OperationType, payload json.RawMessage) (*domain.SyncItem, error) {
	if _, ok := knownOps[op]; !ok {
		return nil, fmt.Errorf("unknown operation type: %s", op)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload for %s", op)
	}

	item := &domain.SyncItem{
		ID:            uuid.New().String(),
		OperationType: op,
		Payload:       payload,
		Status:        domain.SyncItemStatusPending,
		CreatedAt:     e.now(),
	}
	if err := e.repo.Enqueue(ctx, item); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", op, err)
	}
	return item, nil
}
