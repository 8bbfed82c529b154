package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietanh/keeper/internal/core/domain"
	"github.com/vietanh/keeper/internal/infra/storage"
	"github.com/vietanh/keeper/internal/notify"
)

// Reminder periodically scans for deadlines coming due and dispatches a
// push notification for each. Duplicate reminders across ticks are
// suppressed by the dispatcher's dedupe store, keyed on the deterministic
// notification id built here.
type Reminder struct {
	records    storage.RecordStore
	dispatcher *notify.Dispatcher
	window     time.Duration // how far ahead a deadline counts as "due soon"
	interval   time.Duration
}

// NewReminder creates a reminder worker. window defaults to 24h, interval
// to 15m.
func NewReminder(records storage.RecordStore, dispatcher *notify.Dispatcher, window, interval time.Duration) *Reminder {
	if window <= 0 {
		window = 24 * time.Hour
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Reminder{records: records, dispatcher: dispatcher, window: window, interval: interval}
}

// Start runs the reminder loop until ctx is cancelled.
func (r *Reminder) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.remind(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.remind(ctx)
		}
	}
}

func (r *Reminder) remind(ctx context.Context) {
	now := time.Now()
	due, err := r.records.ListDeadlinesDue(ctx, now.Add(r.window))
	if err != nil {
		slog.Error("reminder: failed to list due deadlines", "error", err)
		return
	}

	for _, d := range due {
		out, err := r.dispatcher.Dispatch(ctx, NotificationFor(d, now))
		if err != nil {
			slog.Error("reminder: dispatch failed", "deadline", d.ID, "error", err)
			continue
		}
		if out.Delivered > 0 || out.Dropped > 0 || out.Failed > 0 {
			slog.Debug("reminder: dispatched",
				"deadline", d.ID, "delivered", out.Delivered,
				"dropped", out.Dropped, "failed", out.Failed, "skipped", out.Skipped)
		}
	}
}

// NotificationFor builds the reminder notification for a deadline. The id
// is derived from the deadline so repeated scans dedupe to one send per
// window.
func NotificationFor(d *domain.Deadline, now time.Time) *domain.Notification {
	priority := domain.PriorityNormal
	if d.DueAt.Sub(now) < 2*time.Hour {
		priority = domain.PriorityHigh
	}
	return &domain.Notification{
		ID:         "deadline:" + d.ID,
		Title:      "Deadline approaching",
		Message:    fmt.Sprintf("%s is due %s", d.Title, d.DueAt.Local().Format("Mon 15:04")),
		Priority:   priority,
		Source:     "deadline",
		Timestamp:  now,
		DeadlineID: d.ID,
		URL:        "/deadlines/" + d.ID,
	}
}
