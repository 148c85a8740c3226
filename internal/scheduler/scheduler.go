package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/wims-bridge-api/internal/models"
	"github.com/noah-isme/wims-bridge-api/pkg/config"
	"github.com/noah-isme/wims-bridge-api/pkg/jobs"
)

const jobTypeSyncRun = "sync_run"

type syncRunner interface {
	Run(ctx context.Context) (*models.SyncRunReport, error)
}

// Scheduler ticks the score synchroniser on the configured interval. Runs
// go through a single-worker queue so a tick landing during a long run
// queues behind it instead of overlapping.
type Scheduler struct {
	runner   syncRunner
	queue    *jobs.Queue
	interval time.Duration
	enabled  bool
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New constructs the scheduler.
func New(runner syncRunner, cfg config.SyncConfig, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		runner:   runner,
		interval: cfg.Interval,
		enabled:  cfg.Enabled,
		logger:   logger,
	}
	// Zero retries: a failed run is dropped and the next tick covers it.
	s.queue = jobs.NewQueue(jobTypeSyncRun, s.handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 4,
		MaxRetries: 0,
		Logger:     logger,
	})
	return s
}

func (s *Scheduler) handle(ctx context.Context, _ jobs.Job) error {
	report, err := s.runner.Run(ctx)
	if err != nil {
		return err
	}
	s.logger.Debug("sync run stored", zap.String("run_id", report.ID))
	return nil
}

// Start launches the ticker loop. Disabled schedulers still start the
// queue so manual triggers keep working.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.queue.Start(ctx)

	if !s.enabled {
		s.logger.Info("scheduled sync disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Trigger(); err != nil {
					s.logger.Warn("failed to enqueue sync run", zap.Error(err))
				}
			}
		}
	}()
	s.logger.Info("scheduled sync started", zap.Duration("interval", s.interval))
}

// Trigger enqueues one sync run outside the regular schedule.
func (s *Scheduler) Trigger() error {
	return s.queue.Enqueue(jobs.Job{
		ID:   uuid.NewString(),
		Type: jobTypeSyncRun,
	})
}

// Stop halts the ticker and waits for a running sync to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.queue.Stop()
}
