package application

import (
	"context"
	"log"
	"time"
)

// Scheduler runs the sweep once a day at the configured UTC time.
type Scheduler struct {
	processor *Processor
	dailyAt   string
	logger    *log.Logger
}

// NewScheduler constructs a scheduler.
func NewScheduler(processor *Processor, dailyAt string, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{processor: processor, dailyAt: dailyAt, logger: logger}
}

// Start launches the scheduling loop; it stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.processor == nil {
		return
	}
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		wait := time.Until(nextRun(time.Now().UTC(), s.dailyAt))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		result, err := s.processor.Run(ctx)
		if err != nil {
			s.logger.Printf("commission: scheduled sweep failed: %v", err)
			continue
		}
		s.logger.Printf("commission: scheduled sweep done scanned=%d processed=%d", result.Scanned, result.Processed)
	}
}

// nextRun returns the next occurrence of the HH:MM wall-clock time strictly
// after now, in UTC. An unparseable time falls back to 24h from now.
func nextRun(now time.Time, dailyAt string) time.Time {
	at, err := time.Parse("15:04", dailyAt)
	if err != nil {
		return now.Add(24 * time.Hour)
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
