package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vietanh/keeper/internal/core/domain"
)

// SyncQueueRepo implements storage.SyncQueueRepository using PostgreSQL.
type SyncQueueRepo struct {
	db *DB
}

// NewSyncQueueRepo creates a new PostgreSQL sync queue repository.
func NewSyncQueueRepo(db *DB) *SyncQueueRepo {
	return &SyncQueueRepo{db: db}
}

type syncItemRow struct {
	ID            string          `db:"id"`
	OperationType string          `db:"operation_type"`
	Payload       json.RawMessage `db:"payload"`
	Attempts      int             `db:"attempts"`
	LastAttemptAt sql.NullTime    `db:"last_attempt_at"`
	Status        string          `db:"status"`
	LastError     sql.NullString  `db:"last_error"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (r syncItemRow) toDomain() *domain.SyncItem {
	item := &domain.SyncItem{
		ID:            r.ID,
		OperationType: domain.OperationType(r.OperationType),
		Payload:       r.Payload,
		Attempts:      r.Attempts,
		Status:        domain.SyncItemStatus(r.Status),
		LastError:     r.LastError.String,
		CreatedAt:     r.CreatedAt,
	}
	if r.LastAttemptAt.Valid {
		t := r.LastAttemptAt.Time
		item.LastAttemptAt = &t
	}
	return item
}

// Enqueue inserts a new pending item.
func (r *SyncQueueRepo) Enqueue(ctx context.Context, item *domain.SyncItem) error {
	query := `
		INSERT INTO sync_queue_items (id, operation_type, payload, attempts, status, created_at)
		VALUES ($1, $2, $3, 0, 'pending', NOW())
	`
	_, err := r.db.ExecContext(ctx, query, item.ID, string(item.OperationType), []byte(item.Payload))
	if err != nil {
		return fmt.Errorf("failed to enqueue sync item: %w", err)
	}
	return nil
}

// GetPending returns up to limit pending items, oldest first.
func (r *SyncQueueRepo) GetPending(ctx context.Context, limit int) ([]*domain.SyncItem, error) {
	query := `
		SELECT id, operation_type, payload, attempts, last_attempt_at, status, last_error, created_at
		FROM sync_queue_items
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT $1
	`

	var rows []syncItemRow
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get pending items: %w", err)
	}

	items := make([]*domain.SyncItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toDomain())
	}
	return items, nil
}

// MarkCompleted transitions an item to the terminal completed status.
func (r *SyncQueueRepo) MarkCompleted(ctx context.Context, id string) error {
	query := `
		UPDATE sync_queue_items
		SET status = 'completed'
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// MarkFailed dead-letters an item, counting the final attempt.
func (r *SyncQueueRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	query := `
		UPDATE sync_queue_items
		SET status = 'failed', attempts = attempts + 1, last_error = $2, last_attempt_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, errMsg)
	return err
}

// RecordAttempt bumps the attempt count while the item stays pending.
func (r *SyncQueueRepo) RecordAttempt(ctx context.Context, id string, errMsg string, at time.Time) error {
	query := `
		UPDATE sync_queue_items
		SET attempts = attempts + 1, last_error = $2, last_attempt_at = $3
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id, errMsg, at)
	return err
}

// CountByStatus returns the number of items with the given status.
func (r *SyncQueueRepo) CountByStatus(ctx context.Context, status domain.SyncItemStatus) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM sync_queue_items
		WHERE status = $1
	`
	var count int
	if err := r.db.GetContext(ctx, &count, query, string(status)); err != nil {
		return 0, fmt.Errorf("failed to count sync items: %w", err)
	}
	return count, nil
}
