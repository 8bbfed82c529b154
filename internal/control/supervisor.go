// Package control wires the resilience components together and manages
// their lifecycle: per-integration sync drivers, the mutation queue
// processor, the deadline reminder, and the health server.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietanh/keeper/internal/core/config"
	"github.com/vietanh/keeper/internal/core/domain"
	"github.com/vietanh/keeper/internal/core/worker"
	"github.com/vietanh/keeper/internal/health"
	"github.com/vietanh/keeper/internal/infra/redis"
	"github.com/vietanh/keeper/internal/infra/storage"
	"github.com/vietanh/keeper/internal/infra/storage/memory"
	"github.com/vietanh/keeper/internal/infra/storage/postgres"
	"github.com/vietanh/keeper/internal/integration"
	"github.com/vietanh/keeper/internal/metrics"
	"github.com/vietanh/keeper/internal/notify"
	"github.com/vietanh/keeper/internal/push"
	"github.com/vietanh/keeper/internal/resilience/healing"
	"github.com/vietanh/keeper/internal/syncqueue"
)

// Supervisor is the main application struct that manages the component
// lifecycle.
type Supervisor struct {
	cfg          config.AppConfig
	drivers      []*Driver
	processor    *syncqueue.Processor
	enqueuer     *syncqueue.Enqueuer
	reminder     *worker.Reminder
	dispatcher   *notify.Dispatcher
	healthServer *health.Server
	queueRepo    storage.SyncQueueRepository
	db           *postgres.DB
	redisClient  *redis.Client
	log          *slog.Logger
}

// NewSupervisor creates a supervisor with all dependencies initialized.
func NewSupervisor(ctx context.Context, cfg config.AppConfig) (*Supervisor, error) {
	// 1. Storage
	var (
		queueRepo  storage.SyncQueueRepository
		subRepo    storage.SubscriptionRepository
		recordRepo storage.RecordStore
		db         *postgres.DB
	)

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}

		queueRepo = postgres.NewSyncQueueRepo(db)
		subRepo = postgres.NewSubscriptionRepo(db)
		recordRepo = postgres.NewRecordRepo(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewStorage()
		queueRepo = memory.NewSyncQueueRepo(store)
		subRepo = memory.NewSubscriptionRepo(store)
		recordRepo = memory.NewRecordRepo(store)
		slog.Info("Using Memory storage")
	}

	// 2. Redis dedupe store (optional; delivery works without it)
	var redisClient *redis.Client
	var dedupe notify.Deduper
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, notification dedupe disabled", "error", err)
		} else {
			dedupe = redisClient
		}
	}

	// 3. Push delivery and fan-out
	pushOpts := push.Options{
		MaxRetries: cfg.Push.MaxRetries,
		BaseDelay:  cfg.Push.BaseDelay,
		Send:       push.HTTPSender(&http.Client{Timeout: cfg.Push.Timeout}),
	}
	dispatcher := notify.NewDispatcher(subRepo, dedupe, pushOpts, cfg.Push.DedupeWindow)

	// 4. Mutation queue
	processor := syncqueue.NewProcessor(syncqueue.Config{
		MaxRetries:     cfg.SyncQueue.MaxRetries,
		BaseRetryDelay: cfg.SyncQueue.BaseRetryDelay,
		BatchSize:      cfg.SyncQueue.BatchSize,
		Interval:       cfg.SyncQueue.Interval,
	}, queueRepo)
	syncqueue.RegisterDefaults(processor, syncqueue.Stores{Records: recordRepo})
	enqueuer := syncqueue.NewEnqueuer(queueRepo)

	// 5. Per-integration drivers
	drivers := make([]*Driver, 0, len(cfg.Integrations))
	policies := make([]*healing.Policy, 0, len(cfg.Integrations))
	for _, ic := range cfg.Integrations {
		policy := healing.New(healing.Config{
			Integration:             ic.Name,
			BaseBackoff:             ic.Healing.BaseBackoff,
			MaxBackoff:              ic.Healing.MaxBackoff,
			CircuitFailureThreshold: ic.Healing.CircuitFailureThreshold,
			CircuitOpen:             ic.Healing.CircuitOpen,
			JitterRatio:             ic.Healing.JitterRatio,
		})
		policies = append(policies, policy)

		syncer := integration.NewHTTPPuller(ic.Name, ic.URL, ic.Timeout)
		drivers = append(drivers, NewDriver(policy, syncer, ic.PullInterval))
	}

	// 6. Deadline reminders
	var reminder *worker.Reminder
	if cfg.Reminder.Enabled {
		reminder = worker.NewReminder(recordRepo, dispatcher, cfg.Reminder.Window, cfg.Reminder.Interval)
	}

	// 7. Health monitor + server
	monitor := health.NewMonitor(policies, queueRepo)
	healthServer := health.NewServer(monitor, cfg.Server.Port)

	return &Supervisor{
		cfg:          cfg,
		drivers:      drivers,
		processor:    processor,
		enqueuer:     enqueuer,
		reminder:     reminder,
		dispatcher:   dispatcher,
		healthServer: healthServer,
		queueRepo:    queueRepo,
		db:           db,
		redisClient:  redisClient,
		log:          slog.Default(),
	}, nil
}

// Enqueuer exposes the client-facing queue edge.
func (s *Supervisor) Enqueuer() *syncqueue.Enqueuer {
	return s.enqueuer
}

// Processor exposes the queue processor, mainly for manual TriggerSync.
func (s *Supervisor) Processor() *syncqueue.Processor {
	return s.processor
}

// Start starts all components. It returns immediately; components run
// until ctx is canceled or Stop is called.
func (s *Supervisor) Start(ctx context.Context) error {
	go func() {
		if err := s.healthServer.Start(); err != nil && err != http.ErrServerClosed {
			s.log.Error("Health server failed", "error", err)
		}
	}()

	s.processor.Start(ctx, s.cfg.SyncQueue.Interval)

	for _, d := range s.drivers {
		s.log.Info("Starting sync driver", "integration", d.syncer.Name())
		go d.Start(ctx)
	}

	if s.reminder != nil {
		s.log.Info("Starting deadline reminder")
		go s.reminder.Start(ctx)
	}

	go s.runQueueGauges(ctx)

	return nil
}

// Stop stops the supervisor and releases its resources.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.log.Info("Stopping keeper...")

	s.processor.Stop()

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("Failed to close DB", "error", err)
		}
	}

	return s.healthServer.Stop(ctx)
}

func (s *Supervisor) runQueueGauges(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pending, err := s.queueRepo.CountByStatus(ctx, domain.SyncItemStatusPending); err == nil {
				metrics.QueuePending.Set(float64(pending))
			}
			if failed, err := s.queueRepo.CountByStatus(ctx, domain.SyncItemStatusFailed); err == nil {
				metrics.QueueDeadLettered.Set(float64(failed))
			}
		}
	}
}
