package models

import "time"

// UserAccount is the per-helper ledger row. Rows materialize lazily: reads of
// unknown users return a zero-value account and the first write performs an
// insert-or-update.
type UserAccount struct {
	UserID string `json:"userId"`

	// TotalPoints is the lifetime balance. While the helper is unverified it
	// never exceeds the ladder's verified-gate threshold.
	TotalPoints int `json:"totalPoints"`

	// DailyPoints counts points earned during the current reference day. It
	// is reset lazily on the first accrual of a new day, not by a background
	// job.
	DailyPoints int `json:"dailyPoints"`

	// LastAccrualDate is the reference date (YYYY-MM-DD) of the last capped
	// accrual, or empty if the helper has never been thanked.
	LastAccrualDate string `json:"lastAccrualDate,omitempty"`

	Verified             bool `json:"verified"`
	VerificationPrompted bool `json:"verificationPrompted"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
