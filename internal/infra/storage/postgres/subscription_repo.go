package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vietanh/keeper/internal/core/domain"
)

// SubscriptionRepo implements storage.SubscriptionRepository using
// PostgreSQL.
type SubscriptionRepo struct {
	db *DB
}

// NewSubscriptionRepo creates a new PostgreSQL subscription repository.
func NewSubscriptionRepo(db *DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

// Save upserts a subscription keyed by endpoint.
func (r *SubscriptionRepo) Save(ctx context.Context, sub *domain.PushSubscription) error {
	keys, err := json.Marshal(sub.Keys)
	if err != nil {
		return fmt.Errorf("failed to encode subscription keys: %w", err)
	}

	query := `
		INSERT INTO push_subscriptions (endpoint, keys, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (endpoint) DO UPDATE SET keys = EXCLUDED.keys
	`
	if _, err := r.db.ExecContext(ctx, query, sub.Endpoint, keys); err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// List returns all subscriptions.
func (r *SubscriptionRepo) List(ctx context.Context) ([]*domain.PushSubscription, error) {
	query := `
		SELECT endpoint, keys, created_at
		FROM push_subscriptions
		ORDER BY endpoint ASC
	`

	var rows []struct {
		Endpoint  string          `db:"endpoint"`
		Keys      json.RawMessage `db:"keys"`
		CreatedAt time.Time       `db:"created_at"`
	}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	subs := make([]*domain.PushSubscription, 0, len(rows))
	for _, row := range rows {
		sub := &domain.PushSubscription{
			Endpoint:  row.Endpoint,
			CreatedAt: row.CreatedAt,
		}
		if len(row.Keys) > 0 {
			if err := json.Unmarshal(row.Keys, &sub.Keys); err != nil {
				return nil, fmt.Errorf("failed to decode subscription keys: %w", err)
			}
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// Delete removes a subscription by endpoint.
func (r *SubscriptionRepo) Delete(ctx context.Context, endpoint string) error {
	query := `
		DELETE FROM push_subscriptions
		WHERE endpoint = $1
	`
	_, err := r.db.ExecContext(ctx, query, endpoint)
	return err
}
