package control

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietanh/keeper/internal/integration"
	"github.com/vietanh/keeper/internal/metrics"
	"github.com/vietanh/keeper/internal/resilience/healing"
)

// Driver periodically runs one integration's sync through its healing
// policy. Every tick consults the policy first; a rejected tick is recorded
// as a skip and costs nothing.
type Driver struct {
	policy   *healing.Policy
	syncer   integration.Syncer
	interval time.Duration
	log      *slog.Logger
}

// NewDriver creates a driver. interval <= 0 defaults to 5m.
func NewDriver(policy *healing.Policy, syncer integration.Syncer, interval time.Duration) *Driver {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Driver{
		policy:   policy,
		syncer:   syncer,
		interval: interval,
		log:      slog.Default().With("integration", syncer.Name()),
	}
}

// Start runs the periodic sync loop until ctx is canceled. The first tick
// fires immediately.
func (d *Driver) Start(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single policy-gated sync attempt.
func (d *Driver) RunOnce(ctx context.Context) {
	name := d.syncer.Name()
	now := time.Now()

	decision := d.policy.CanAttempt(now)
	if !decision.Allowed {
		d.policy.RecordSkip(decision.Reason)
		metrics.SyncSkipsTotal.WithLabelValues(name, string(decision.Reason)).Inc()
		d.log.Debug("Sync skipped", "reason", decision.Reason)
		return
	}

	if err := d.syncer.Sync(ctx); err != nil {
		d.policy.RecordFailure(err, time.Now())
		metrics.SyncAttemptsTotal.WithLabelValues(name, metrics.ResultFailure).Inc()
		d.updateCircuitGauge(name)
		d.log.Warn("Sync failed", "error", err)
		return
	}

	d.policy.RecordSuccess(time.Now())
	metrics.SyncAttemptsTotal.WithLabelValues(name, metrics.ResultSuccess).Inc()
	metrics.CircuitOpen.WithLabelValues(name).Set(0)
	d.log.Debug("Sync succeeded")
}

func (d *Driver) updateCircuitGauge(name string) {
	state := d.policy.State(time.Now())
	if state.CircuitOpenUntil != nil {
		metrics.CircuitOpen.WithLabelValues(name).Set(1)
	} else {
		metrics.CircuitOpen.WithLabelValues(name).Set(0)
	}
}
