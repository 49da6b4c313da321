package collection

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/temcen/vocabimg/pkg/models"
)

const defaultSchedulerBatch = 25

// Scheduler re-runs items whose next attempt has come due.
type Scheduler struct {
	cron         *cron.Cron
	spec         string
	batchSize    int
	store        Store
	orchestrator *Orchestrator
	strategies   StrategyProvider
	logger       *logrus.Logger
	now          func() time.Time
}

func NewScheduler(spec string, batchSize int, store Store, orchestrator *Orchestrator, strategies StrategyProvider, logger *logrus.Logger) *Scheduler {
	if batchSize <= 0 {
		batchSize = defaultSchedulerBatch
	}
	return &Scheduler{
		cron:         cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		spec:         spec,
		batchSize:    batchSize,
		store:        store,
		orchestrator: orchestrator,
		strategies:   strategies,
		logger:       logger,
		now:          time.Now,
	}
}

// Start registers the periodic job and starts the cron runner. Runs use ctx
// so cancelling it aborts an in-flight pass.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.WithError(err).Error("Scheduled collection run failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid scheduler spec %q: %w", s.spec, err)
	}
	s.cron.Start()
	s.logger.WithField("spec", s.spec).Info("Collection scheduler started")
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce collects every due item once and returns how many were attempted.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.store.DueItems(ctx, now, s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to load due items: %w", err)
	}

	attempted := 0
	for _, p := range due {
		if ctx.Err() != nil {
			break
		}
		strategy := s.strategies.Strategy(p.CategoryID)
		if !strategy.Enabled || !Due(p, s.orchestrator.resolve(strategy), now) {
			continue
		}

		item := models.CollectionItem{ItemID: p.ItemID, CategoryID: p.CategoryID, Letter: p.Letter, Name: p.ItemName}
		attempted++
		if _, err := s.orchestrator.collectSafely(ctx, item, strategy, false); err != nil {
			s.logger.WithFields(logrus.Fields{
				"item_id":     p.ItemID,
				"category_id": p.CategoryID,
			}).WithError(err).Warn("Scheduled item collection failed")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"due":       len(due),
		"attempted": attempted,
	}).Info("Scheduled collection run finished")
	return attempted, nil
}
