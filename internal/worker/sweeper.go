// Package worker runs the background inactivity sweep over open help
// threads.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/helper-ledger/internal/logging"
	"github.com/helper-ledger/internal/models"
	"github.com/helper-ledger/internal/platform"
	"github.com/helper-ledger/internal/thread"
	"github.com/helper-ledger/internal/types"
)

// SweepStore is the persistence contract the sweeper depends on.
// *storage.ThreadRepository implements it.
type SweepStore interface {
	ListSweepable(ctx context.Context) ([]*models.HelpThread, error)
	SetReminderSent(ctx context.Context, threadID string, now time.Time) (bool, error)
	ClearReminder(ctx context.Context, threadID string, now time.Time) error
	Close(ctx context.Context, threadID string, reason types.CloseReason, now time.Time) (bool, error)
}

// Sweeper periodically walks the non-closed threads, sends inactivity
// reminders, and closes threads whose grace expired. Every write is a
// conditional update in the store, so a sweep racing a user action loses
// cleanly.
type Sweeper struct {
	store    SweepStore
	policy   thread.SweepPolicy
	notifier platform.Notifier
	schedule string
	logger   *logging.Logger
	cron     *cron.Cron
	now      func() time.Time
}

// NewSweeper creates a sweeper with the given cron schedule.
func NewSweeper(store SweepStore, policy thread.SweepPolicy, notifier platform.Notifier, schedule string, logger *logging.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		policy:   policy,
		notifier: notifier,
		schedule: schedule,
		logger:   logger,
		now:      time.Now,
	}
}

// Start schedules the sweep. It returns an error for an invalid schedule.
func (s *Sweeper) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() {
		if err := s.RunOnce(ctx); err != nil {
			s.logger.WithError(err).Error("Thread sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	c.Start()
	s.cron = c
	s.logger.WithField("schedule", s.schedule).Info("Thread sweeper started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("Thread sweeper stopped")
}

// RunOnce performs a single sweep pass.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	threads, err := s.store.ListSweepable(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sweepable threads: %w", err)
	}

	now := s.now()
	reminders, closes := 0, 0
	for _, t := range threads {
		switch s.policy.Decide(t, now) {
		case thread.SweepSendReminder:
			if s.sendReminder(ctx, t, now) {
				reminders++
			}
		case thread.SweepClearReminder:
			if err := s.store.ClearReminder(ctx, t.ThreadID, now); err != nil {
				s.logger.WithError(err).WithField("threadId", t.ThreadID).Error("Failed to clear reminder")
			}
		case thread.SweepClose:
			if s.closeThread(ctx, t, now) {
				closes++
			}
		}
	}

	if reminders > 0 || closes > 0 {
		s.logger.WithFields(map[string]interface{}{
			"scanned":   len(threads),
			"reminders": reminders,
			"closed":    closes,
		}).Info("Thread sweep completed")
	}
	return nil
}

// sendReminder stamps and announces the inactivity reminder. The stamp is
// guarded in the store; losing the guard means another sweep or a user
// action got there first, and no reminder is sent.
func (s *Sweeper) sendReminder(ctx context.Context, t *models.HelpThread, now time.Time) bool {
	stamped, err := s.store.SetReminderSent(ctx, t.ThreadID, now)
	if err != nil {
		s.logger.WithError(err).WithField("threadId", t.ThreadID).Error("Failed to stamp reminder")
		return false
	}
	if !stamped {
		return false
	}

	s.notifier.NotifyChannel(ctx, t.ThreadID, fmt.Sprintf(
		"<@%s> This thread has been quiet for a while. Is your question resolved? "+
			"Close the thread if so, or let us know you still need help. "+
			"Otherwise it will be closed automatically in 3 days.", t.OwnerID))
	return true
}

func (s *Sweeper) closeThread(ctx context.Context, t *models.HelpThread, now time.Time) bool {
	closed, err := s.store.Close(ctx, t.ThreadID, types.CloseReasonInactivity, now)
	if err != nil {
		s.logger.WithError(err).WithField("threadId", t.ThreadID).Error("Failed to close inactive thread")
		return false
	}
	if !closed {
		return false
	}

	s.logger.WithField("threadId", t.ThreadID).Info("Closed inactive thread")
	s.notifier.NotifyChannel(ctx, t.ThreadID, "This thread was closed automatically due to inactivity.")
	return true
}
