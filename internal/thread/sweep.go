package thread

import (
	"time"

	"github.com/helper-ledger/internal/models"
	"github.com/helper-ledger/internal/types"
)

// SweepAction is the decision the inactivity sweep takes for one thread.
type SweepAction int

const (
	// SweepNone leaves the thread untouched
	SweepNone SweepAction = iota
	// SweepSendReminder sends the inactivity reminder and stamps the thread
	SweepSendReminder
	// SweepClearReminder clears a reminder stamp superseded by new activity,
	// restarting the inactivity clock
	SweepClearReminder
	// SweepClose closes the thread for inactivity
	SweepClose
)

// SweepPolicy holds the sweep thresholds.
type SweepPolicy struct {
	// InactivityReminder is how long a thread may sit without activity
	// before a reminder is sent.
	InactivityReminder time.Duration

	// ReminderGrace is how long after an unanswered reminder the thread is
	// closed automatically.
	ReminderGrace time.Duration

	// PendingCloseAfter closes a pending-close thread whose creator never
	// confirmed. Zero disables the timeout.
	PendingCloseAfter time.Duration
}

// Decide returns the sweep action for a thread at the given instant.
//
// A reminder is sent at most once per inactivity episode: activity after the
// reminder clears the stamp rather than closing, and only a reminder that
// stayed unanswered through the grace window closes the thread.
func (p SweepPolicy) Decide(t *models.HelpThread, now time.Time) SweepAction {
	switch t.State {
	case types.ThreadClosed:
		return SweepNone

	case types.ThreadPendingClose:
		if p.PendingCloseAfter <= 0 || t.PendingSince == nil {
			return SweepNone
		}
		if now.Sub(*t.PendingSince) >= p.PendingCloseAfter {
			return SweepClose
		}
		return SweepNone

	case types.ThreadOpen:
		if t.ReminderSentAt != nil {
			if t.LastActivityAt.After(*t.ReminderSentAt) {
				return SweepClearReminder
			}
			if now.Sub(*t.ReminderSentAt) >= p.ReminderGrace {
				return SweepClose
			}
			return SweepNone
		}
		if now.Sub(t.LastActivityAt) >= p.InactivityReminder {
			return SweepSendReminder
		}
		return SweepNone

	default:
		return SweepNone
	}
}
