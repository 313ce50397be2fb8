// Package types provides common type definitions for the helper ledger system.
package types

// ThreadState represents the lifecycle state of a help thread
type ThreadState string

const (
	// ThreadOpen represents a help thread accepting messages and close requests
	ThreadOpen ThreadState = "open"
	// ThreadPendingClose represents a thread whose creator requested closure and
	// is being prompted to thank helpers before confirming
	ThreadPendingClose ThreadState = "pending_close"
	// ThreadClosed represents a terminally closed thread
	ThreadClosed ThreadState = "closed"
)

// CloseReason records why a thread reached the closed state
type CloseReason string

const (
	// CloseReasonOwner represents closure confirmed by the thread creator
	CloseReasonOwner CloseReason = "owner"
	// CloseReasonStaff represents a staff force-close
	CloseReasonStaff CloseReason = "staff"
	// CloseReasonStarterDeleted represents closure after the starter message was deleted
	CloseReasonStarterDeleted CloseReason = "starter_deleted"
	// CloseReasonMemberLeft represents closure after the owner left the community
	CloseReasonMemberLeft CloseReason = "member_left"
	// CloseReasonInactivity represents automatic closure by the reminder sweep
	CloseReasonInactivity CloseReason = "inactivity"
)

// Timeframe selects the window for leaderboard and breakdown queries
type Timeframe string

const (
	// TimeframeWeekly covers the rolling last 7 days
	TimeframeWeekly Timeframe = "weekly"
	// TimeframeMonthly covers the rolling last 30 days
	TimeframeMonthly Timeframe = "monthly"
	// TimeframeAll covers the full history
	TimeframeAll Timeframe = "all"
)

// WindowDays returns the rolling window size in days, or 0 for TimeframeAll.
func (t Timeframe) WindowDays() int {
	switch t {
	case TimeframeWeekly:
		return 7
	case TimeframeMonthly:
		return 30
	default:
		return 0
	}
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Error codes for expected, user-facing ledger outcomes. Callers branch on
// these to produce reply text; they are never treated as faults.
const (
	// ErrCodeDailyLimit signals the helper already earned the daily maximum
	ErrCodeDailyLimit = "DAILY_LIMIT_EXCEEDED"
	// ErrCodeLifetimeCap signals an unverified helper is at the lifetime cap
	ErrCodeLifetimeCap = "LIFETIME_CAP_REACHED"
	// ErrCodeInvalidAmount signals a non-positive point amount
	ErrCodeInvalidAmount = "INVALID_AMOUNT"
	// ErrCodeThreadNotFound signals an operation on an untracked thread
	ErrCodeThreadNotFound = "THREAD_NOT_FOUND"
	// ErrCodeNotThreadOwner signals a close request from a non-owner
	ErrCodeNotThreadOwner = "NOT_THREAD_OWNER"
	// ErrCodeAlreadyThanked signals a duplicate thank for the same helper in a thread
	ErrCodeAlreadyThanked = "ALREADY_THANKED"
)
