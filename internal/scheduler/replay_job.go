package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/frombarmars/flickshare-sub000/internal/blockchain"
	"github.com/frombarmars/flickshare-sub000/pkg/logger"
)

// ReplayScheduler periodically re-scans the trailing block window.
// Reconciliation is idempotent, so replaying already-applied events is
// free; what this buys is recovery for events skipped because their
// review had not been synced yet, and for logs dropped under load.
type ReplayScheduler struct {
	cron     *cron.Cron
	manager  *blockchain.Manager
	cronExpr string
}

func NewReplayScheduler(manager *blockchain.Manager, cronExpr string) *ReplayScheduler {
	return &ReplayScheduler{
		cron:     cron.New(cron.WithSeconds()),
		manager:  manager,
		cronExpr: cronExpr,
	}
}

func (s *ReplayScheduler) Start() error {
	_, err := s.cron.AddFunc(s.cronExpr, s.replay)
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.Infof("replay scheduler started, schedule %q", s.cronExpr)
	return nil
}

func (s *ReplayScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("replay scheduler stopped")
}

func (s *ReplayScheduler) replay() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := s.manager.ReplayTail(ctx); err != nil {
		logger.Error("tail replay failed: ", err)
		return
	}

	logger.Debug("tail replay completed")
}
