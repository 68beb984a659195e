package scheduler

import (
	"context"
	"time"

	"lightchurch_backend/internal/churches/geocheck"
	"lightchurch_backend/internal/churches/repository"
	"lightchurch_backend/platform/logger"
)

const (
	defaultGeocheckSweepInterval = time.Hour
	defaultGeocheckSweepBatch    = 50
)

// UncheckedLister lists manually addressed churches whose coordinates were
// never verified.
type UncheckedLister interface {
	ListUnchecked(ctx context.Context, limit int) ([]repository.Church, error)
}

// GeocheckSweep periodically enqueues checks for manual addresses never verified,
// picking up churches whose enqueue was lost while Redis was unreachable.
type GeocheckSweep struct {
	store    UncheckedLister
	enqueuer geocheck.Enqueuer
	log      *logger.Logger
	interval time.Duration
	batch    int
}

func NewGeocheckSweep(store UncheckedLister, enqueuer geocheck.Enqueuer, log *logger.Logger, interval time.Duration, batch int) *GeocheckSweep {
	if interval <= 0 {
		interval = defaultGeocheckSweepInterval
	}
	if batch <= 0 {
		batch = defaultGeocheckSweepBatch
	}

	return &GeocheckSweep{
		store:    store,
		enqueuer: enqueuer,
		log:      log,
		interval: interval,
		batch:    batch,
	}
}

func (s *GeocheckSweep) Run(ctx context.Context) {
	if s == nil || s.store == nil {
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *GeocheckSweep) sweep(ctx context.Context) int {
	churches, err := s.store.ListUnchecked(ctx, s.batch)
	if err != nil {
		s.log.Warn("geocheck sweep failed to list churches", "error", err)
		return 0
	}

	enqueued := 0
	for _, church := range churches {
		if err := s.enqueuer.EnqueueGeocodeVerify(ctx, church.ID); err != nil {
			s.log.Warn("geocheck sweep failed to enqueue", "church_id", church.ID, "error", err)
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		s.log.Info("geocheck sweep enqueued checks", "enqueued", enqueued)
	}
	return enqueued
}
