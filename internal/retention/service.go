package retention

import (
	"context"
	"log/slog"
	"time"
)

type Pruner interface {
	DeletePastOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service deletes closed events older than the retention window.
type Service struct {
	store         Pruner
	retentionDays int
	log           *slog.Logger
	now           func() time.Time
}

func NewService(store Pruner, days int, logger *slog.Logger) *Service {
	if days <= 0 {
		days = 30
	}
	return &Service{store: store, retentionDays: days, log: logger, now: time.Now}
}

func (s *Service) Run(ctx context.Context) {
	cutoff := s.now().UTC().AddDate(0, 0, -s.retentionDays)
	n, err := s.store.DeletePastOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Error("retention cleanup failed", "err", err)
		return
	}
	s.log.Info("retention cleanup completed", "cutoff", cutoff, "deleted", n)
}
