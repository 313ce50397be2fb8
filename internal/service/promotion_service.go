package service

import (
	"context"
	"fmt"
	"time"

	"github.com/helper-ledger/internal/logging"
	"github.com/helper-ledger/internal/platform"
	"github.com/helper-ledger/internal/rank"
)

// Promotion describes a rank role that was just granted.
type Promotion struct {
	RoleID   string `json:"roleId"`
	RoleName string `json:"roleName"`
	// Degraded is set when the role was granted but its display name could
	// not be resolved.
	Degraded bool `json:"degraded"`
}

// PromotionService applies rank transitions after balance changes. All of
// its outcomes are idempotent: re-running it for a helper whose role already
// matches their balance is a no-op.
type PromotionService struct {
	ledger       LedgerStore
	verification *VerificationService
	ladder       *rank.Ladder
	roles        platform.RoleManager
	notifier     platform.Notifier
	logChannelID string // optional promotion log channel
	logger       *logging.Logger
	now          func() time.Time
}

func NewPromotionService(
	ledger LedgerStore,
	verification *VerificationService,
	ladder *rank.Ladder,
	roles platform.RoleManager,
	notifier platform.Notifier,
	logChannelID string,
	logger *logging.Logger,
) *PromotionService {
	return &PromotionService{
		ledger:       ledger,
		verification: verification,
		ladder:       ladder,
		roles:        roles,
		notifier:     notifier,
		logChannelID: logChannelID,
		logger:       logger,
		now:          time.Now,
	}
}

// CheckAndApply resolves the helper's balance against the ladder and grants
// the earned rank role when it is missing. At the verified gate it instead
// sends the one-time application prompt until the helper is verified.
//
// Returns the granted promotion, or nil when no transition happened. Role
// lookup and grant failures are logged and reported as no transition rather
// than surfaced to the caller: a thank must never fail because the role
// backend is down.
func (s *PromotionService) CheckAndApply(ctx context.Context, userID string) (*Promotion, error) {
	acct, err := s.ledger.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := s.ladder.Resolve(acct.TotalPoints)
	if res.Current == nil {
		return nil, nil
	}

	log := s.logger.WithFields(map[string]interface{}{
		"userId":    userID,
		"rankIndex": res.Index,
		"points":    acct.TotalPoints,
	})

	if res.Current.RoleID == "" {
		log.Warn("No role configured for rank, skipping transition")
		return nil, nil
	}

	hasRole, err := s.roles.HasRole(ctx, userID, res.Current.RoleID)
	if err != nil {
		log.WithError(err).Error("Role lookup failed, skipping rank transition")
		return nil, nil
	}
	if hasRole {
		return nil, nil
	}

	if res.Index >= rank.VerifiedGateIndex && !acct.Verified {
		if res.Index == rank.VerifiedGateIndex {
			s.promptApplication(ctx, userID, acct.VerificationPrompted, log)
		}
		return nil, nil
	}

	if err := s.roles.GrantRole(ctx, userID, res.Current.RoleID); err != nil {
		log.WithError(err).Error("Role grant failed, skipping rank transition")
		return nil, nil
	}

	promo := &Promotion{RoleID: res.Current.RoleID}
	promo.RoleName, err = s.roles.RoleName(ctx, res.Current.RoleID)
	if err != nil {
		log.WithError(err).Warn("Role name lookup failed after grant")
		promo.Degraded = true
	}

	log.WithField("roleId", promo.RoleID).Info("Helper promoted")
	s.announce(ctx, userID, acct.TotalPoints, promo)
	return promo, nil
}

// promptApplication sends the verified-helper application prompt exactly
// once per helper.
func (s *PromotionService) promptApplication(ctx context.Context, userID string, alreadyPrompted bool, log *logging.Logger) {
	if alreadyPrompted {
		return
	}
	if err := s.ledger.SetPrompted(ctx, userID, true, s.now()); err != nil {
		log.WithError(err).Error("Failed to record application prompt")
		return
	}
	s.notifier.NotifyUser(ctx, userID,
		"You have reached the points required for the Verified Helper rank. "+
			"To progress further, please apply for verification with the staff team.")
	log.Info("Sent verified-helper application prompt")
}

func (s *PromotionService) announce(ctx context.Context, userID string, points int, promo *Promotion) {
	name := promo.RoleName
	if name == "" {
		name = "a new rank"
	}
	s.notifier.NotifyUser(ctx, userID,
		fmt.Sprintf("Congratulations! You have been promoted to %s.", name))
	if s.logChannelID != "" {
		s.notifier.NotifyChannel(ctx, s.logChannelID,
			fmt.Sprintf("<@%s> reached %s (%d points).", userID, name, points))
	}
}
