package trainer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"powerpulse/internal/feature"
)

// Scheduler retrains on a cron schedule. Overlapping runs are skipped; an
// in-flight run finishes or fails on its own, and the previously published
// model set stays authoritative when a run fails.
type Scheduler struct {
	trainer *Trainer
	data    func() (*feature.Set, error)
	logger  *zap.Logger

	// Notify, when set, is called after every successful publish.
	Notify func(trainedAt time.Time)

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// NewScheduler wires a trainer to a data provider. The provider is invoked at
// the start of every scheduled run so retraining sees fresh history.
func NewScheduler(t *Trainer, data func() (*feature.Set, error), logger *zap.Logger) *Scheduler {
	return &Scheduler{
		trainer: t,
		data:    data,
		logger:  logger,
		cron:    cron.New(),
	}
}

// Start registers the cron spec and begins scheduling.
func (s *Scheduler) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return fmt.Errorf("invalid retrain schedule %q: %w", spec, err)
	}
	s.cron.Start()
	s.logger.Info("Retraining scheduled", zap.String("spec", spec))
	return nil
}

// Stop stops scheduling and cancels any in-flight run.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
}

func (s *Scheduler) runOnce() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("Skipping scheduled retrain, previous run still in flight")
		return
	}
	s.running = true
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
	}()

	set, err := s.data()
	if err != nil {
		s.logger.Error("Scheduled retrain could not load data", zap.Error(err))
		return
	}

	result, err := s.trainer.Run(ctx, set)
	if err != nil {
		s.logger.Error("Scheduled retrain failed, keeping previous model set", zap.Error(err))
		return
	}

	s.logger.Info("Scheduled retrain published new model set",
		zap.Time("trained_at", result.Set.TrainedAt))
	if s.Notify != nil {
		s.Notify(result.Set.TrainedAt)
	}
}
