package models

import (
	"time"

	"github.com/helper-ledger/internal/types"
)

// HelpThread tracks one help request thread through its lifecycle. The
// persisted State column is the single source of truth for closure; handlers
// re-read it before acting instead of trusting process-local caches.
type HelpThread struct {
	ThreadID   string            `json:"threadId"`
	OwnerID    string            `json:"ownerId"`
	CategoryID string            `json:"categoryId"`
	State      types.ThreadState `json:"state"`

	// CloseReason is set when State becomes closed.
	CloseReason types.CloseReason `json:"closeReason,omitempty"`

	LastActivityAt time.Time  `json:"lastActivityAt"`
	ReminderSentAt *time.Time `json:"reminderSentAt,omitempty"`

	// PendingSince is set when the creator requests closure; the sweep closes
	// the thread if confirmation never arrives.
	PendingSince *time.Time `json:"pendingSince,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Closed reports whether the thread reached its terminal state.
func (t *HelpThread) Closed() bool {
	return t.State == types.ThreadClosed
}
