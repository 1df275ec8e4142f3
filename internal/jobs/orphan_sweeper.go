package jobs

import (
	"context"
	"log"
	"time"

	"github.com/estatehub/backend/internal/services/kyc"
	"github.com/estatehub/backend/internal/store"
	"github.com/go-co-op/gocron"
)

const sweepBatchSize = 100

// OrphanSweeper periodically reschedules cleanup of orphaned files that
// nobody has touched within the grace period.
type OrphanSweeper struct {
	orphans   store.OrphanStore
	scheduler kyc.CleanupScheduler
	interval  time.Duration
	grace     time.Duration
	cron      *gocron.Scheduler
	now       func() time.Time
}

// NewOrphanSweeper creates a new orphan sweeper
func NewOrphanSweeper(orphans store.OrphanStore, scheduler kyc.CleanupScheduler, interval, grace time.Duration) *OrphanSweeper {
	return &OrphanSweeper{
		orphans:   orphans,
		scheduler: scheduler,
		interval:  interval,
		grace:     grace,
		cron:      gocron.NewScheduler(time.UTC),
		now:       time.Now,
	}
}

// Start schedules the sweep and starts the scheduler in the background
func (s *OrphanSweeper) Start(ctx context.Context) error {
	_, err := s.cron.Every(s.interval).SingletonMode().Do(func() {
		if _, err := s.Sweep(ctx); err != nil {
			log.Printf("Orphan sweep failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.StartAsync()
	log.Printf("Orphan sweeper scheduled every %s", s.interval)
	return nil
}

// Stop stops the scheduler
func (s *OrphanSweeper) Stop() {
	s.cron.Stop()
}

// Sweep reschedules every stale orphan and returns how many were scheduled
func (s *OrphanSweeper) Sweep(ctx context.Context) (int, error) {
	stale, err := s.orphans.ListStale(ctx, s.now().Add(-s.grace), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	scheduled := 0
	for i := range stale {
		if err := s.scheduler.ScheduleFileCleanup(ctx, &stale[i]); err != nil {
			log.Printf("Failed to reschedule cleanup of %s: %v", stale[i].FileRef, err)
			continue
		}
		scheduled++
	}

	if len(stale) > 0 {
		log.Printf("Orphan sweep rescheduled %d of %d files", scheduled, len(stale))
	}
	return scheduled, nil
}
