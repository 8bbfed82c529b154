// Package syncqueue replays durable client mutations against the domain
// stores. Each item is its own failure domain: it carries a retry budget
// and an exponential backoff window keyed off its own attempt count,
// independent of the per-integration healing policy.
package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vietanh/keeper/internal/core/domain"
	"github.com/vietanh/keeper/internal/metrics"
	"github.com/vietanh/keeper/internal/resilience/backoff"
)

// Handler applies one operation type's payload to the domain. Handlers
// validate the payload shape strictly and must be idempotent: re-applying
// the same item after a crash may not double-apply the effect.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Repository is the persistence contract the processor consumes. The
// processor is the only writer while it holds the single-flight guard.
type Repository interface {
	GetPending(ctx context.Context, limit int) ([]*domain.SyncItem, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	RecordAttempt(ctx context.Context, id string, errMsg string, at time.Time) error
}

// Config tunes the processor.
type Config struct {
	MaxRetries     int           // per-item attempt budget, default 5
	BaseRetryDelay time.Duration // first backoff window, default 1s
	BatchSize      int           // items fetched per round, default 50
	Interval       time.Duration // periodic driver tick, default 30s
}

func (c Config) normalized() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.BaseRetryDelay <= 0 {
		c.BaseRetryDelay = 1 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	return c
}

// Result aggregates one processing round.
type Result struct {
	Processed int // items that transitioned to completed
	Failed    int // items that errored this round, terminal or not
}

// Processor drains pending queue items sequentially. ProcessQueue is
// single-flight: overlapping calls return a zero Result without touching
// any item.
type Processor struct {
	cfg      Config
	repo     Repository
	handlers map[domain.OperationType]Handler
	bo       backoff.Policy
	now      func() time.Time

	processing atomic.Bool

	mu     sync.Mutex // guards the periodic driver below
	cancel context.CancelFunc
	done   chan struct{}
}

// NewProcessor creates a processor over repo. Handlers are attached with
// Register before the first processing round.
func NewProcessor(cfg Config, repo Repository) *Processor {
	cfg = cfg.normalized()
	return &Processor{
		cfg:      cfg,
		repo:     repo,
		handlers: make(map[domain.OperationType]Handler),
		// Per-item backoff is deliberately jitter-free and uncapped: the
		// budget runs out before the curve gets long.
		bo:  backoff.Policy{Base: cfg.BaseRetryDelay},
		now: time.Now,
	}
}

// Register attaches the handler for an operation type, replacing any
// previous one.
func (p *Processor) Register(op domain.OperationType, h Handler) {
	p.handlers[op] = h
}

// ProcessQueue runs one round: fetch a batch of pending items oldest-first,
// skip items that are out of budget or still inside their backoff window,
// dispatch the rest in order, and record outcomes.
func (p *Processor) ProcessQueue(ctx context.Context) Result {
	if !p.processing.CompareAndSwap(false, true) {
		return Result{}
	}
	defer p.processing.Store(false)

	items, err := p.repo.GetPending(ctx, p.cfg.BatchSize)
	if err != nil {
		slog.Error("sync queue: failed to fetch pending items", "error", err)
		return Result{}
	}

	var res Result
	now := p.now()

	for _, item := range items {
		if item.Attempts >= p.cfg.MaxRetries {
			continue
		}
		if item.Attempts > 0 && item.LastAttemptAt != nil &&
			now.Before(item.LastAttemptAt.Add(p.bo.Delay(item.Attempts))) {
			continue
		}

		if err := p.dispatch(ctx, item); err != nil {
			res.Failed++
			if item.Attempts+1 >= p.cfg.MaxRetries {
				slog.Warn("sync queue: item dead-lettered",
					"id", item.ID, "op", item.OperationType, "attempts", item.Attempts+1, "error", err)
				metrics.QueueItemsTotal.WithLabelValues(metrics.ResultDeadLetter).Inc()
				if dbErr := p.repo.MarkFailed(ctx, item.ID, err.Error()); dbErr != nil {
					slog.Error("sync queue: failed to mark item failed", "id", item.ID, "error", dbErr)
				}
				continue
			}
			slog.Debug("sync queue: item attempt failed",
				"id", item.ID, "op", item.OperationType, "attempts", item.Attempts+1, "error", err)
			metrics.QueueItemsTotal.WithLabelValues(metrics.ResultRetried).Inc()
			if dbErr := p.repo.RecordAttempt(ctx, item.ID, err.Error(), now); dbErr != nil {
				slog.Error("sync queue: failed to record attempt", "id", item.ID, "error", dbErr)
			}
			continue
		}

		res.Processed++
		metrics.QueueItemsTotal.WithLabelValues(metrics.ResultCompleted).Inc()
		if dbErr := p.repo.MarkCompleted(ctx, item.ID); dbErr != nil {
			slog.Error("sync queue: failed to mark item completed", "id", item.ID, "error", dbErr)
		}
	}

	return res
}

// TriggerSync is the manual alias for ProcessQueue, for user-initiated
// "sync now" actions.
func (p *Processor) TriggerSync(ctx context.Context) Result {
	return p.ProcessQueue(ctx)
}

// IsProcessing reports whether a round is currently in flight.
func (p *Processor) IsProcessing() bool {
	return p.processing.Load()
}

// dispatch routes the item to its handler. A panicking handler is converted
// to an error so one bad payload cannot crash the periodic driver.
func (p *Processor) dispatch(ctx context.Context, item *domain.SyncItem) (err error) {
	h, ok := p.handlers[item.OperationType]
	if !ok {
		return fmt.Errorf("no handler registered for operation type %q", item.OperationType)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, item.Payload)
}

// Start launches the periodic driver. Calling Start while running is a
// no-op; interval <= 0 uses the configured default.
func (p *Processor) Start(ctx context.Context, interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}
	if interval <= 0 {
		interval = p.cfg.Interval
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				res := p.ProcessQueue(runCtx)
				if res.Processed > 0 || res.Failed > 0 {
					slog.Info("sync queue round finished",
						"processed", res.Processed, "failed", res.Failed)
				}
			}
		}
	}()

	slog.Info("sync queue driver started", "interval", interval)
}

// Stop halts the periodic driver and waits for the in-flight round to
// finish. Safe to call when not running; a later Start restarts the driver.
func (p *Processor) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
