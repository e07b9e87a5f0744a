package task

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/brieferhq/briefer/internal/store"
)

// Sweeper deletes terminal tasks whose last update is older than the
// retention window, on a cron schedule.
type Sweeper struct {
	store     store.TaskStore
	schedule  *cronexpr.Expression
	retention time.Duration
	logger    *log.Logger
	now       func() time.Time
}

func NewSweeper(ts store.TaskStore, cronSpec string, retention time.Duration, logger *log.Logger) (*Sweeper, error) {
	if cronSpec == "" {
		cronSpec = "0 * * * *"
	}
	schedule, err := cronexpr.Parse(cronSpec)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep cron %q: %w", cronSpec, err)
	}
	if retention <= 0 {
		retention = 72 * time.Hour
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[SWEEP] ", log.LstdFlags)
	}
	return &Sweeper{store: ts, schedule: schedule, retention: retention, logger: logger, now: time.Now}, nil
}

// Start runs the sweep loop until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		for {
			next := s.schedule.Next(s.now())
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(next)):
			}
			if deleted, err := s.Sweep(ctx); err != nil {
				s.logger.Printf("sweep failed: %v", err)
			} else if deleted > 0 {
				s.logger.Printf("swept %d expired tasks", deleted)
			}
		}
	}()
}

// Sweep performs one pass and returns the number of deleted tasks.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)
	deleted := 0
	for _, status := range []Status{StatusCompleted, StatusFailed} {
		records, err := s.store.List(ctx, string(status), 0)
		if err != nil {
			return deleted, err
		}
		for _, record := range records {
			if record.UpdatedAt.After(cutoff) {
				continue
			}
			if err := s.store.Delete(ctx, record.TaskID); err != nil {
				s.logger.Printf("failed to delete task %s: %v", record.TaskID, err)
				continue
			}
			deleted++
		}
	}
	return deleted, nil
}
