package service

import (
	"context"
	"time"

	"github.com/helper-ledger/internal/logging"
)

// VerificationService manages the verified flag that gates progression past
// the application rank.
type VerificationService struct {
	ledger LedgerStore
	logger *logging.Logger
	now    func() time.Time
}

func NewVerificationService(ledger LedgerStore, logger *logging.Logger) *VerificationService {
	return &VerificationService{
		ledger: ledger,
		logger: logger,
		now:    time.Now,
	}
}

// IsVerified reports whether the helper has passed verification. Unknown
// users are unverified.
func (s *VerificationService) IsVerified(ctx context.Context, userID string) (bool, error) {
	acct, err := s.ledger.GetAccount(ctx, userID)
	if err != nil {
		return false, err
	}
	return acct.Verified, nil
}

// SetVerified records a staff verification decision. Clearing verification
// also re-arms the application prompt.
func (s *VerificationService) SetVerified(ctx context.Context, userID string, verified bool) error {
	now := s.now()
	if err := s.ledger.SetVerified(ctx, userID, verified, now); err != nil {
		return err
	}
	if !verified {
		if err := s.ledger.SetPrompted(ctx, userID, false, now); err != nil {
			return err
		}
	}
	s.logger.WithFields(map[string]interface{}{
		"userId":   userID,
		"verified": verified,
	}).Info("Helper verification updated")
	return nil
}

// HasBeenPrompted reports whether the application prompt was already sent.
func (s *VerificationService) HasBeenPrompted(ctx context.Context, userID string) (bool, error) {
	acct, err := s.ledger.GetAccount(ctx, userID)
	if err != nil {
		return false, err
	}
	return acct.VerificationPrompted, nil
}

// MarkPrompted records that the application prompt was sent so it is never
// repeated.
func (s *VerificationService) MarkPrompted(ctx context.Context, userID string) error {
	return s.ledger.SetPrompted(ctx, userID, true, s.now())
}
