// Package service implements the application services over the ledger and
// thread repositories: point accrual and administration, the verification
// gate, rank promotion, and the thread lifecycle.
package service

import (
	"context"
	"time"

	"github.com/helper-ledger/internal/logging"
	"github.com/helper-ledger/internal/models"
	"github.com/helper-ledger/internal/rank"
	"github.com/helper-ledger/internal/storage"
	"github.com/helper-ledger/internal/types"
)

// LedgerStore is the persistence contract the points service depends on.
// *storage.LedgerRepository implements it; tests use in-memory fakes.
type LedgerStore interface {
	Accrue(ctx context.Context, userID, sourceCategory string, amount int, now time.Time) (*storage.AccrualResult, error)
	GrantUnrestricted(ctx context.Context, userID string, amount int, now time.Time) (*storage.GrantResult, error)
	Remove(ctx context.Context, userID string, amount int, now time.Time) (*storage.RemovalResult, error)
	GetAccount(ctx context.Context, userID string) (*models.UserAccount, error)
	GetBalance(ctx context.Context, userID string) (int, error)
	SetVerified(ctx context.Context, userID string, verified bool, now time.Time) error
	SetPrompted(ctx context.Context, userID string, prompted bool, now time.Time) error
	TopByBalance(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error)
	WindowedTotals(ctx context.Context, windowDays, limit int, now time.Time) ([]*models.LeaderboardEntry, error)
	ThanksCounts(ctx context.Context, windowDays, limit int, now time.Time) ([]*models.LeaderboardEntry, error)
	CategoryBreakdown(ctx context.Context, userIDs []string, windowDays int, now time.Time) (map[string]models.CategoryBreakdown, error)
}

// LeaderboardKind selects which leaderboard variant to compute.
type LeaderboardKind string

const (
	// LeaderboardBalance orders helpers by all-time balance
	LeaderboardBalance LeaderboardKind = "balance"
	// LeaderboardWindowed orders helpers by points earned in the window
	LeaderboardWindowed LeaderboardKind = "windowed"
	// LeaderboardThanks orders helpers by number of thanks received
	LeaderboardThanks LeaderboardKind = "thanks"
)

// PointsService exposes the ledger operations to command handlers and the
// HTTP API.
type PointsService struct {
	ledger LedgerStore
	ladder *rank.Ladder
	boards *storage.LeaderboardCache // optional
	logger *logging.Logger
	now    func() time.Time
}

// NewPointsService creates a points service. boards may be nil to disable
// leaderboard caching.
func NewPointsService(ledger LedgerStore, ladder *rank.Ladder, boards *storage.LeaderboardCache, logger *logging.Logger) *PointsService {
	return &PointsService{
		ledger: ledger,
		ladder: ladder,
		boards: boards,
		logger: logger,
		now:    time.Now,
	}
}

// Accrue awards thank-flow points, subject to the daily and lifetime caps.
func (s *PointsService) Accrue(ctx context.Context, userID, sourceCategory string, amount int) (*storage.AccrualResult, error) {
	return s.ledger.Accrue(ctx, userID, sourceCategory, amount, s.now())
}

// GrantPoints awards points administratively, bypassing the caps.
func (s *PointsService) GrantPoints(ctx context.Context, userID string, amount int) (*storage.GrantResult, error) {
	result, err := s.ledger.GrantUnrestricted(ctx, userID, amount, s.now())
	if err != nil {
		return nil, err
	}
	if result.AutoVerified {
		s.logger.WithFields(map[string]interface{}{
			"userId":   userID,
			"newTotal": result.NewTotal,
		}).Info("Helper auto-verified by administrative grant")
	}
	return result, nil
}

// RemovePoints deducts points administratively, flooring at zero.
func (s *PointsService) RemovePoints(ctx context.Context, userID string, amount int) (*storage.RemovalResult, error) {
	result, err := s.ledger.Remove(ctx, userID, amount, s.now())
	if err != nil {
		return nil, err
	}
	if result.Demoted {
		s.logger.WithFields(map[string]interface{}{
			"userId":   userID,
			"newTotal": result.NewTotal,
		}).Info("Helper demoted below the verified gate")
	}
	return result, nil
}

// Balance returns the helper's point balance, 0 for unknown users.
func (s *PointsService) Balance(ctx context.Context, userID string) (int, error) {
	return s.ledger.GetBalance(ctx, userID)
}

// HelperProfile is the presentation view of a helper's standing.
type HelperProfile struct {
	UserID      string     `json:"userId"`
	Points      int        `json:"points"`
	Verified    bool       `json:"verified"`
	CurrentRank *rank.Rank `json:"currentRank,omitempty"`
	NextRank    *rank.Rank `json:"nextRank,omitempty"`
}

// Profile resolves a helper's points against the ladder for display.
func (s *PointsService) Profile(ctx context.Context, userID string) (*HelperProfile, error) {
	acct, err := s.ledger.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := s.ladder.Resolve(acct.TotalPoints)
	return &HelperProfile{
		UserID:      userID,
		Points:      acct.TotalPoints,
		Verified:    acct.Verified,
		CurrentRank: res.Current,
		NextRank:    res.Next,
	}, nil
}

// Leaderboard computes a leaderboard variant, serving from the cache when one
// is configured. Cache faults fall through to the database.
func (s *PointsService) Leaderboard(ctx context.Context, kind LeaderboardKind, timeframe types.Timeframe, limit int) ([]*models.LeaderboardEntry, error) {
	windowDays := timeframe.WindowDays()

	var cacheKey string
	if s.boards != nil {
		cacheKey = s.boards.Key(string(kind), windowDays, limit)
		entries, err := s.boards.Get(ctx, cacheKey)
		if err != nil {
			s.logger.WithError(err).Warn("Leaderboard cache read failed")
		} else if entries != nil {
			return entries, nil
		}
	}

	var entries []*models.LeaderboardEntry
	var err error
	switch kind {
	case LeaderboardWindowed:
		if windowDays <= 0 {
			// All-time point totals are the balance board.
			entries, err = s.ledger.TopByBalance(ctx, limit)
		} else {
			entries, err = s.ledger.WindowedTotals(ctx, windowDays, limit, s.now())
		}
	case LeaderboardThanks:
		entries, err = s.ledger.ThanksCounts(ctx, windowDays, limit, s.now())
	default:
		entries, err = s.ledger.TopByBalance(ctx, limit)
	}
	if err != nil {
		return nil, err
	}

	if s.boards != nil {
		if cacheErr := s.boards.Set(ctx, cacheKey, entries); cacheErr != nil {
			s.logger.WithError(cacheErr).Warn("Leaderboard cache write failed")
		}
	}
	return entries, nil
}

// CategoryBreakdown returns per-category thank counts for the requested
// helpers, zero-filled for helpers with no records.
func (s *PointsService) CategoryBreakdown(ctx context.Context, userIDs []string, timeframe types.Timeframe) (map[string]models.CategoryBreakdown, error) {
	return s.ledger.CategoryBreakdown(ctx, userIDs, timeframe.WindowDays(), s.now())
}
