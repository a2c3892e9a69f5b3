// Package jobs hosts the periodic background sweeps of the appointment
// service: reminder delivery and archiving of past bookings.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// BookingSweeper is the slice of the booking service the runner drives.
type BookingSweeper interface {
	SendDueReminders(ctx context.Context) (int, error)
	ArchivePastBookings(ctx context.Context) (int, error)
}

// Runner executes the reminder and archive sweeps on fixed intervals until
// its context is cancelled.
type Runner struct {
	bookings         BookingSweeper
	reminderInterval time.Duration
	archiveInterval  time.Duration
	logger           *slog.Logger
}

func NewRunner(bookings BookingSweeper, reminderInterval, archiveInterval time.Duration, logger *slog.Logger) *Runner {
	if reminderInterval <= 0 {
		reminderInterval = time.Minute
	}
	if archiveInterval <= 0 {
		archiveInterval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		bookings:         bookings,
		reminderInterval: reminderInterval,
		archiveInterval:  archiveInterval,
		logger:           logger.With("component", "jobs"),
	}
}

// Run blocks until ctx is cancelled. A failed sweep is logged and retried on
// the next tick.
func (r *Runner) Run(ctx context.Context) {
	if r == nil || r.bookings == nil {
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		r.loop(ctx, "reminders", r.reminderInterval, func(ctx context.Context) (int, error) {
			return r.bookings.SendDueReminders(ctx)
		})
	}()
	go func() {
		defer wg.Done()
		r.loop(ctx, "archive", r.archiveInterval, func(ctx context.Context) (int, error) {
			return r.bookings.ArchivePastBookings(ctx)
		})
	}()

	wg.Wait()
}

func (r *Runner) loop(ctx context.Context, name string, interval time.Duration, sweep func(context.Context) (int, error)) {
	logger := r.logger.With("sweep", name)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.InfoContext(ctx, "sweep started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "sweep stopped")
			return
		case <-ticker.C:
			count, err := sweep(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "sweep failed", "error", err)
				continue
			}
			if count > 0 {
				logger.InfoContext(ctx, "sweep completed", "processed", count)
			}
		}
	}
}
