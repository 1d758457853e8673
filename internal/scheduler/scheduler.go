package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/notexe/reminderd/internal/reminder"
)

// Config controls the sweep loop.
type Config struct {
	Interval  time.Duration
	BatchSize int // 0 means every due reminder in one tick
}

// SweepResult counts the outcome of one tick.
type SweepResult struct {
	Due       int
	Triggered int
	Skipped   int
	Failed    int
}

// Sweeper promotes due scheduled reminders to triggered. It shares nothing
// with request handling except the store behind the service.
type Sweeper struct {
	service *reminder.Service
	config  Config
}

// New creates a new Sweeper.
func New(service *reminder.Service, cfg Config) *Sweeper {
	return &Sweeper{
		service: service,
		config:  cfg,
	}
}

// Run blocks and runs a sweep on interval + immediately on start.
// It exits when ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.config.Interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", s.config.Interval)
	}

	log.Printf("[scheduler] Started. Interval: %s", s.config.Interval)

	// Run immediately on start
	s.tick(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[scheduler] Shutting down...")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	// A slow tick must not overlap the next one.
	ctx, cancel := context.WithTimeout(ctx, s.config.Interval)
	defer cancel()

	res, err := s.Sweep(ctx)
	if err != nil {
		log.Printf("[scheduler] Error: sweep failed: %v", err)
		return
	}
	if res.Due == 0 {
		return
	}
	log.Printf("[scheduler] Sweep: %d due, %d triggered, %d skipped, %d failed",
		res.Due, res.Triggered, res.Skipped, res.Failed)
	if s.config.BatchSize > 0 && res.Due == s.config.BatchSize {
		log.Printf("[scheduler] Warning: batch of %d filled, remaining reminders wait for the next tick", s.config.BatchSize)
	}
}

// Sweep runs a single pass. It returns an error only when the due
// reminders cannot be read; a failure on one reminder never stops the rest.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	due, err := s.service.Due(ctx, s.service.Now(), s.config.BatchSize)
	if err != nil {
		return res, fmt.Errorf("failed to read due reminders: %w", err)
	}
	res.Due = len(due)

	for _, r := range due {
		if ctx.Err() != nil {
			res.Failed += res.Due - res.Triggered - res.Skipped - res.Failed
			break
		}

		_, err := s.service.Trigger(ctx, r.ID)
		switch {
		case err == nil:
			res.Triggered++
		case lostRace(err):
			res.Skipped++
		default:
			res.Failed++
			log.Printf("[scheduler] Error: trigger %s: %v", r.ID, err)
		}
	}

	return res, nil
}

// lostRace reports whether another actor moved the reminder first,
// including a reschedule that pushed its fire time past now.
func lostRace(err error) bool {
	return errors.Is(err, reminder.ErrNotDue) ||
		errors.Is(err, reminder.ErrStaleState) ||
		errors.Is(err, reminder.ErrAlreadyTerminal) ||
		errors.Is(err, reminder.ErrPreconditionFailed) ||
		errors.Is(err, reminder.ErrNotFound)
}
