package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helper-ledger/internal/ledger"
	"github.com/helper-ledger/internal/models"
)

// LedgerRepository owns the user_accounts and accrual_records tables. Every
// balance mutation locks the account row for the duration of the decision, so
// concurrent thanks for the same helper serialize at the database instead of
// losing updates.
type LedgerRepository struct {
	db *PostgresDB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *PostgresDB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// AccrualResult is returned by Accrue on success.
type AccrualResult struct {
	NewTotal       int `json:"newTotal"`
	Granted        int `json:"granted"`
	RemainingDaily int `json:"remainingDaily"`
}

// GrantResult is returned by GrantUnrestricted.
type GrantResult struct {
	NewTotal     int  `json:"newTotal"`
	AutoVerified bool `json:"autoVerified"`
}

// RemovalResult is returned by Remove.
type RemovalResult struct {
	NewTotal int  `json:"newTotal"`
	Demoted  bool `json:"demoted"`
}

// lockAccount ensures the ledger row exists and reads it under FOR UPDATE.
// Rows materialize lazily on first write; the insert-if-absent keeps the
// subsequent lock simple.
func (r *LedgerRepository) lockAccount(ctx context.Context, tx pgx.Tx, userID string, now time.Time) (ledger.AccountState, bool, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO user_accounts (user_id, created_at, updated_at)
		VALUES ($1, $2, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, now)
	if err != nil {
		return ledger.AccountState{}, false, fmt.Errorf("failed to ensure account row: %w", err)
	}

	var state ledger.AccountState
	var prompted bool
	err = tx.QueryRow(ctx, `
		SELECT total_points, daily_points, last_accrual_date, verified, verification_prompted
		FROM user_accounts
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&state.TotalPoints, &state.DailyPoints, &state.LastAccrualDate, &state.Verified, &prompted)
	if err != nil {
		return ledger.AccountState{}, false, fmt.Errorf("failed to lock account row: %w", err)
	}

	return state, prompted, nil
}

// Accrue awards points through the thank flow, subject to the daily cap and
// the unverified lifetime cap. Expected policy rejections (daily limit,
// lifetime cap) come back as *types.ServiceError with the transaction rolled
// back and no state changed. The accrual log append commits atomically with
// the balance update.
func (r *LedgerRepository) Accrue(ctx context.Context, userID, sourceCategory string, amount int, now time.Time) (*AccrualResult, error) {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin accrual transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck // no-op after commit

	state, _, err := r.lockAccount(ctx, tx, userID, now)
	if err != nil {
		return nil, err
	}

	outcome, err := ledger.ApplyAccrual(state, amount, ledger.ReferenceDate(now))
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE user_accounts
		SET total_points = $2, daily_points = $3, last_accrual_date = $4, updated_at = $5
		WHERE user_id = $1
	`, userID, outcome.NewTotal, outcome.NewDaily, outcome.Date, now)
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO accrual_records (id, user_id, points_earned, source_category, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.New().String(), userID, outcome.Granted, sourceCategory, now)
	if err != nil {
		return nil, fmt.Errorf("failed to append accrual record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit accrual: %w", err)
	}

	return &AccrualResult{
		NewTotal:       outcome.NewTotal,
		Granted:        outcome.Granted,
		RemainingDaily: outcome.RemainingDaily,
	}, nil
}

// GrantUnrestricted awards points administratively, bypassing both caps.
// Crossing the cap while unverified flips verification and the prompt marker
// in the same transaction as the point update.
func (r *LedgerRepository) GrantUnrestricted(ctx context.Context, userID string, amount int, now time.Time) (*GrantResult, error) {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin grant transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck // no-op after commit

	state, _, err := r.lockAccount(ctx, tx, userID, now)
	if err != nil {
		return nil, err
	}

	outcome, err := ledger.ApplyUnrestrictedGrant(state, amount)
	if err != nil {
		return nil, err
	}

	if outcome.AutoVerified {
		_, err = tx.Exec(ctx, `
			UPDATE user_accounts
			SET total_points = $2, verified = TRUE, verification_prompted = TRUE, updated_at = $3
			WHERE user_id = $1
		`, userID, outcome.NewTotal, now)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE user_accounts
			SET total_points = $2, updated_at = $3
			WHERE user_id = $1
		`, userID, outcome.NewTotal, now)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit grant: %w", err)
	}

	return &GrantResult{NewTotal: outcome.NewTotal, AutoVerified: outcome.AutoVerified}, nil
}

// Remove deducts points administratively, flooring at zero. Dropping a
// verified helper below the cap clears verification and the prompt marker in
// the same transaction.
func (r *LedgerRepository) Remove(ctx context.Context, userID string, amount int, now time.Time) (*RemovalResult, error) {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin removal transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck // no-op after commit

	state, _, err := r.lockAccount(ctx, tx, userID, now)
	if err != nil {
		return nil, err
	}

	outcome, err := ledger.ApplyRemoval(state, amount)
	if err != nil {
		return nil, err
	}

	if outcome.Demoted {
		_, err = tx.Exec(ctx, `
			UPDATE user_accounts
			SET total_points = $2, verified = FALSE, verification_prompted = FALSE, updated_at = $3
			WHERE user_id = $1
		`, userID, outcome.NewTotal, now)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE user_accounts
			SET total_points = $2, updated_at = $3
			WHERE user_id = $1
		`, userID, outcome.NewTotal, now)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit removal: %w", err)
	}

	return &RemovalResult{NewTotal: outcome.NewTotal, Demoted: outcome.Demoted}, nil
}

// GetAccount reads a ledger row. Unknown users read as a zero-value account,
// never as an error.
func (r *LedgerRepository) GetAccount(ctx context.Context, userID string) (*models.UserAccount, error) {
	acct := &models.UserAccount{UserID: userID}

	err := r.db.Pool().QueryRow(ctx, `
		SELECT total_points, daily_points, last_accrual_date, verified, verification_prompted, created_at, updated_at
		FROM user_accounts
		WHERE user_id = $1
	`, userID).Scan(
		&acct.TotalPoints,
		&acct.DailyPoints,
		&acct.LastAccrualDate,
		&acct.Verified,
		&acct.VerificationPrompted,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &models.UserAccount{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return acct, nil
}

// GetBalance returns the point balance, 0 for unknown users.
func (r *LedgerRepository) GetBalance(ctx context.Context, userID string) (int, error) {
	acct, err := r.GetAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	return acct.TotalPoints, nil
}

// SetVerified upserts the verification flag. Setting it true materializes the
// ledger row if absent so later balance reads never fail.
func (r *LedgerRepository) SetVerified(ctx context.Context, userID string, verified bool, now time.Time) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO user_accounts (user_id, verified, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO UPDATE SET verified = EXCLUDED.verified, updated_at = EXCLUDED.updated_at
	`, userID, verified, now)
	if err != nil {
		return fmt.Errorf("failed to set verification status: %w", err)
	}
	return nil
}

// SetPrompted upserts the verification-prompt marker.
func (r *LedgerRepository) SetPrompted(ctx context.Context, userID string, prompted bool, now time.Time) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO user_accounts (user_id, verification_prompted, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id) DO UPDATE SET verification_prompted = EXCLUDED.verification_prompted, updated_at = EXCLUDED.updated_at
	`, userID, prompted, now)
	if err != nil {
		return fmt.Errorf("failed to set verification prompt status: %w", err)
	}
	return nil
}

// TopByBalance returns the all-time leaderboard ordered by balance.
func (r *LedgerRepository) TopByBalance(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT user_id, total_points
		FROM user_accounts
		ORDER BY total_points DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top helpers: %w", err)
	}
	defer rows.Close()

	return scanLeaderboard(rows)
}

// WindowedTotals sums accrual records over the rolling window, grouped by
// user, descending by sum.
func (r *LedgerRepository) WindowedTotals(ctx context.Context, windowDays, limit int, now time.Time) ([]*models.LeaderboardEntry, error) {
	if windowDays <= 0 {
		return nil, fmt.Errorf("window days must be positive, got %d", windowDays)
	}

	since := now.AddDate(0, 0, -windowDays)
	rows, err := r.db.Pool().Query(ctx, `
		SELECT user_id, SUM(points_earned) AS points
		FROM accrual_records
		WHERE occurred_at >= $1
		GROUP BY user_id
		ORDER BY points DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query windowed totals: %w", err)
	}
	defer rows.Close()

	return scanLeaderboard(rows)
}

// ThanksCounts returns the leaderboard by number of thanks received,
// optionally limited to a rolling window. windowDays <= 0 means all time.
func (r *LedgerRepository) ThanksCounts(ctx context.Context, windowDays, limit int, now time.Time) ([]*models.LeaderboardEntry, error) {
	query := `
		SELECT user_id, COUNT(*) AS points
		FROM accrual_records
		GROUP BY user_id
		ORDER BY points DESC
		LIMIT $1
	`
	args := []interface{}{limit}

	if windowDays > 0 {
		query = `
			SELECT user_id, COUNT(*) AS points
			FROM accrual_records
			WHERE occurred_at >= $2
			GROUP BY user_id
			ORDER BY points DESC
			LIMIT $1
		`
		args = append(args, now.AddDate(0, 0, -windowDays))
	}

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query thanks counts: %w", err)
	}
	defer rows.Close()

	return scanLeaderboard(rows)
}

// CategoryBreakdown counts accrual records per source category for each
// requested user, optionally limited to a rolling window (windowDays <= 0
// means all time). Every requested user gets an entry, zero-filled when it
// has no records.
func (r *LedgerRepository) CategoryBreakdown(ctx context.Context, userIDs []string, windowDays int, now time.Time) (map[string]models.CategoryBreakdown, error) {
	result := make(map[string]models.CategoryBreakdown, len(userIDs))
	for _, id := range userIDs {
		result[id] = models.CategoryBreakdown{}
	}
	if len(userIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT user_id, source_category, COUNT(*)
		FROM accrual_records
		WHERE user_id = ANY($1)
		GROUP BY user_id, source_category
	`
	args := []interface{}{userIDs}

	if windowDays > 0 {
		query = `
			SELECT user_id, source_category, COUNT(*)
			FROM accrual_records
			WHERE user_id = ANY($1) AND occurred_at >= $2
			GROUP BY user_id, source_category
		`
		args = append(args, now.AddDate(0, 0, -windowDays))
	}

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query category breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID, category string
		var count int
		if err := rows.Scan(&userID, &category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan category breakdown: %w", err)
		}
		result[userID][category] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category breakdown: %w", err)
	}

	return result, nil
}

func scanLeaderboard(rows pgx.Rows) ([]*models.LeaderboardEntry, error) {
	var entries []*models.LeaderboardEntry
	for rows.Next() {
		var entry models.LeaderboardEntry
		if err := rows.Scan(&entry.UserID, &entry.Points); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}
	return entries, nil
}
