package service

import (
	"context"
	"time"

	"github.com/facebookgo/clock"
	"go.uber.org/zap"
)

type expiredSessionSweeper interface {
	SweepExpiredSessions(ctx context.Context) (int64, error)
}

// Sweeper periodically removes expired refresh sessions until its context is canceled.
type Sweeper struct {
	tokens   expiredSessionSweeper
	interval time.Duration
	clock    clock.Clock
	log      *zap.SugaredLogger
}

func NewSweeper(tokens expiredSessionSweeper, interval time.Duration, clk clock.Clock, log *zap.SugaredLogger) *Sweeper {
	if clk == nil {
		clk = clock.New()
	}
	return &Sweeper{tokens: tokens, interval: interval, clock: clk, log: log}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := s.clock.Ticker(s.interval)
	defer ticker.Stop()

	s.log.Infow("session sweeper started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("session sweeper stopped")
			return
		case <-ticker.C:
			n, err := s.tokens.SweepExpiredSessions(ctx)
			if err != nil {
				s.log.Errorw("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.log.Infow("expired sessions swept", "count", n)
			}
		}
	}
}
