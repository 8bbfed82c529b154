// Package notify fans notifications out to every subscribed device. It is
// the calling layer around the push retrier: it surfaces dropped
// subscriptions by deleting them and skips duplicate sends via a dedupe
// store.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietanh/keeper/internal/core/domain"
	"github.com/vietanh/keeper/internal/metrics"
	"github.com/vietanh/keeper/internal/push"
)

// SubscriptionStore is the slice of subscription persistence the
// dispatcher needs.
type SubscriptionStore interface {
	List(ctx context.Context) ([]*domain.PushSubscription, error)
	Delete(ctx context.Context, endpoint string) error
}

// Deduper remembers which notification/endpoint pairs were already sent
// inside a window. Optional; without one every dispatch sends.
type Deduper interface {
	MarkSent(ctx context.Context, endpoint, notificationID string, ttl time.Duration) (bool, error)
	ClearSent(ctx context.Context, endpoint, notificationID string) error
}

// Outcome aggregates one fan-out.
type Outcome struct {
	Delivered int
	Dropped   int
	Failed    int
	Skipped   int
}

// Dispatcher sends one notification to all subscribers, sequentially.
type Dispatcher struct {
	store        SubscriptionStore
	dedupe       Deduper
	opts         push.Options
	dedupeWindow time.Duration
}

// NewDispatcher creates a dispatcher. dedupe may be nil; window <= 0
// defaults to 24h.
func NewDispatcher(store SubscriptionStore, dedupe Deduper, opts push.Options, window time.Duration) *Dispatcher {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Dispatcher{store: store, dedupe: dedupe, opts: opts, dedupeWindow: window}
}

// Dispatch fans n out to every stored subscription. Subscriptions reported
// gone by the retrier are deleted; send failures are counted, never
// returned, so one bad subscriber cannot abort the fan-out.
func (d *Dispatcher) Dispatch(ctx context.Context, n *domain.Notification) (Outcome, error) {
	subs, err := d.store.List(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("list subscriptions: %w", err)
	}

	var out Outcome
	for _, sub := range subs {
		if d.dedupe != nil {
			first, err := d.dedupe.MarkSent(ctx, sub.Endpoint, n.ID, d.dedupeWindow)
			if err != nil {
				// Dedupe is an optimization; deliver anyway.
				slog.Warn("notify: dedupe check failed", "endpoint", sub.Endpoint, "error", err)
			} else if !first {
				out.Skipped++
				metrics.PushSendsTotal.WithLabelValues(metrics.ResultDeduped).Inc()
				continue
			}
		}

		res := push.SendNotification(ctx, sub, n, d.opts)
		switch {
		case res.Delivered:
			out.Delivered++
			metrics.PushSendsTotal.WithLabelValues(metrics.ResultDelivered).Inc()
		case res.ShouldDropSubscription:
			out.Dropped++
			metrics.PushSendsTotal.WithLabelValues(metrics.ResultDropped).Inc()
			slog.Info("notify: dropping gone subscription",
				"endpoint", sub.Endpoint, "status", res.StatusCode)
			if err := d.store.Delete(ctx, sub.Endpoint); err != nil {
				slog.Error("notify: failed to delete subscription", "endpoint", sub.Endpoint, "error", err)
			}
		default:
			out.Failed++
			metrics.PushSendsTotal.WithLabelValues(metrics.ResultFailed).Inc()
			slog.Warn("notify: delivery failed",
				"endpoint", sub.Endpoint, "attempts", res.Attempts, "error", res.Err)
			if d.dedupe != nil {
				// Let a later dispatch retry this endpoint.
				if err := d.dedupe.ClearSent(ctx, sub.Endpoint, n.ID); err != nil {
					slog.Warn("notify: failed to clear dedupe marker", "endpoint", sub.Endpoint, "error", err)
				}
			}
		}
	}

	return out, nil
}
