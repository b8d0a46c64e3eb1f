package assets

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SentAssetLister is the slice of the message repository the sweep needs.
type SentAssetLister interface {
	ListSentAssetsBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

// Sweeper deletes assets of messages that reached sent status longer than
// the retention window ago. Safe to run while a new run is in flight: it
// only touches terminal rows.
type Sweeper struct {
	repo      SentAssetLister
	store     *Store
	retention time.Duration
	every     time.Duration
	logger    *zap.Logger
}

func NewSweeper(repo SentAssetLister, store *Store, retention, every time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		repo:      repo,
		store:     store,
		retention: retention,
		every:     every,
		logger:    logger,
	}
}

// Run sweeps on a ticker until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.Error("asset sweep failed", zap.Error(err))
				continue
			}
			if deleted > 0 {
				s.logger.Info("asset sweep completed", zap.Int("deleted", deleted))
			}
		}
	}
}

// SweepOnce deletes one batch of expired assets and reports how many.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.retention)

	paths, err := s.repo.ListSentAssetsBefore(ctx, cutoff, 500)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, p := range paths {
		if err := s.store.Delete(p); err != nil {
			s.logger.Warn("failed to delete asset", zap.String("path", p), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, nil
}
