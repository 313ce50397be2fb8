// Package ledger implements the point accrual policy: the daily cap, the
// lifetime cap for unverified helpers, and the lazy daily reset. All functions
// are pure; the storage layer applies their outcomes inside a per-user
// transaction so concurrent thanks cannot produce lost updates.
package ledger

import (
	"github.com/helper-ledger/internal/rank"
	"github.com/helper-ledger/internal/types"
)

// MaxDailyPoints is the number of points a helper can earn per reference day
// through the thank flow.
const MaxDailyPoints = 4

// AccountState is the snapshot of a ledger row the policy decides over.
// Unknown users are represented by the zero value.
type AccountState struct {
	TotalPoints     int
	DailyPoints     int
	LastAccrualDate string
	Verified        bool
}

// AccrualOutcome describes a successful capped accrual to be persisted.
type AccrualOutcome struct {
	// Granted is the number of points actually awarded after the daily
	// remainder clamp. It is the amount recorded in the accrual log.
	Granted int

	NewTotal       int
	NewDaily       int
	Date           string
	RemainingDaily int
}

// ApplyAccrual decides a capped accrual for the thank flow.
//
// The daily counter resets when the reference date advanced past the last
// accrual. The daily-limit gate applies to everyone; the lifetime-cap gate
// applies only to unverified helpers and only when the pre-grant balance is
// already at or over the cap. Below the cap the grant is soft-clamped, so an
// unverified balance can land short of the cap when the daily remainder
// clamps the grant below the remaining gap.
func ApplyAccrual(acct AccountState, amount int, date string) (AccrualOutcome, error) {
	if amount <= 0 {
		return AccrualOutcome{}, &types.ServiceError{
			Code:    types.ErrCodeInvalidAmount,
			Message: "accrual amount must be positive",
			Details: map[string]interface{}{"amount": amount},
		}
	}

	daily := acct.DailyPoints
	if acct.LastAccrualDate != date {
		daily = 0
	}

	remaining := MaxDailyPoints - daily
	if remaining <= 0 {
		return AccrualOutcome{}, &types.ServiceError{
			Code:    types.ErrCodeDailyLimit,
			Message: "daily point limit reached",
		}
	}

	granted := amount
	if granted > remaining {
		granted = remaining
	}

	newTotal := acct.TotalPoints + granted
	if !acct.Verified {
		if acct.TotalPoints >= rank.UnverifiedCap {
			return AccrualOutcome{}, &types.ServiceError{
				Code:    types.ErrCodeLifetimeCap,
				Message: "lifetime point cap reached for unverified helpers",
			}
		}
		if newTotal > rank.UnverifiedCap {
			newTotal = rank.UnverifiedCap
		}
	}

	newDaily := daily + granted
	return AccrualOutcome{
		Granted:        granted,
		NewTotal:       newTotal,
		NewDaily:       newDaily,
		Date:           date,
		RemainingDaily: MaxDailyPoints - newDaily,
	}, nil
}

// GrantOutcome describes an unrestricted administrative grant.
type GrantOutcome struct {
	NewTotal int

	// AutoVerified is true when the grant pushed an unverified helper to the
	// cap or beyond; the account is flipped to verified and marked prompted
	// in the same persistence step.
	AutoVerified bool
}

// ApplyUnrestrictedGrant decides an administrative grant. Neither the daily
// nor the lifetime cap applies.
func ApplyUnrestrictedGrant(acct AccountState, amount int) (GrantOutcome, error) {
	if amount <= 0 {
		return GrantOutcome{}, &types.ServiceError{
			Code:    types.ErrCodeInvalidAmount,
			Message: "grant amount must be positive",
			Details: map[string]interface{}{"amount": amount},
		}
	}

	newTotal := acct.TotalPoints + amount
	return GrantOutcome{
		NewTotal:     newTotal,
		AutoVerified: !acct.Verified && newTotal >= rank.UnverifiedCap,
	}, nil
}

// RemovalOutcome describes an administrative point removal.
type RemovalOutcome struct {
	NewTotal int

	// Demoted is true when the removal dropped a verified helper below the
	// cap; verification and the prompt marker are cleared in the same
	// persistence step.
	Demoted bool
}

// ApplyRemoval decides an administrative removal. The balance floors at zero.
func ApplyRemoval(acct AccountState, amount int) (RemovalOutcome, error) {
	if amount <= 0 {
		return RemovalOutcome{}, &types.ServiceError{
			Code:    types.ErrCodeInvalidAmount,
			Message: "removal amount must be positive",
			Details: map[string]interface{}{"amount": amount},
		}
	}

	newTotal := acct.TotalPoints - amount
	if newTotal < 0 {
		newTotal = 0
	}

	return RemovalOutcome{
		NewTotal: newTotal,
		Demoted:  acct.Verified && newTotal < rank.UnverifiedCap,
	}, nil
}
