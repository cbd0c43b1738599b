package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Closer moves published surveys whose closing instant has passed to the closed status.
type Closer interface {
	CloseExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper closes expired surveys on a fixed interval.
type Sweeper struct {
	closer   Closer
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewSweeper creates a sweeper. A non-positive interval defaults to one minute.
func NewSweeper(closer Closer, interval time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{closer: closer, interval: interval, logger: logger, now: time.Now}
}

// Sweep closes expired surveys once and reports how many changed.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.closer.CloseExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("closed expired surveys", zap.Int64("count", n))
	}
	return n, nil
}

// Run sweeps immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("close sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("close sweeper stopping")
			return
		case <-ticker.C:
		}
	}
}
