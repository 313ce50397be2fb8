package models

import "time"

// AccrualRecord is an append-only log entry for a single thank. Records are
// never mutated or deleted; they back the rolling leaderboards and the
// per-category breakdowns.
type AccrualRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	PointsEarned   int       `json:"pointsEarned"`
	SourceCategory string    `json:"sourceCategory"`
	Timestamp      time.Time `json:"timestamp"`
}

// LeaderboardEntry is one row of a points leaderboard.
type LeaderboardEntry struct {
	UserID string `json:"userId"`
	Points int    `json:"points"`
}

// CategoryBreakdown maps a source category to the number of thanks a helper
// received from it. Requested categories with no records are zero-filled.
type CategoryBreakdown map[string]int
