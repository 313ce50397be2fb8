package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/helper-ledger/internal/logging"
	"github.com/helper-ledger/internal/models"
	"github.com/helper-ledger/internal/platform"
	"github.com/helper-ledger/internal/storage"
	"github.com/helper-ledger/internal/thread"
	"github.com/helper-ledger/internal/types"
)

// ThreadStore is the persistence contract the thread service depends on.
// *storage.ThreadRepository implements it.
type ThreadStore interface {
	Register(ctx context.Context, threadID, ownerID, categoryID string, now time.Time) error
	Get(ctx context.Context, threadID string) (*models.HelpThread, error)
	MarkPendingClose(ctx context.Context, threadID string, now time.Time) (bool, error)
	Close(ctx context.Context, threadID string, reason types.CloseReason, now time.Time) (bool, error)
	TouchActivity(ctx context.Context, threadID string, now time.Time) error
	ClearReminder(ctx context.Context, threadID string, now time.Time) error
	ListOpenByOwner(ctx context.Context, ownerID string) ([]*models.HelpThread, error)
	RecordThank(ctx context.Context, threadID, helperID string, now time.Time) (bool, error)
}

// ThreadService drives the help-thread lifecycle: registration, the close
// handshake with its thank step, and the terminal transitions.
type ThreadService struct {
	threads        ThreadStore
	points         *PointsService
	promotions     *PromotionService
	roles          platform.RoleManager
	notifier       platform.Notifier
	helperRoleID   string
	thankChannelID string // optional thank log channel
	logger         *logging.Logger
	now            func() time.Time
}

func NewThreadService(
	threads ThreadStore,
	points *PointsService,
	promotions *PromotionService,
	roles platform.RoleManager,
	notifier platform.Notifier,
	helperRoleID string,
	thankChannelID string,
	logger *logging.Logger,
) *ThreadService {
	return &ThreadService{
		threads:        threads,
		points:         points,
		promotions:     promotions,
		roles:          roles,
		notifier:       notifier,
		helperRoleID:   helperRoleID,
		thankChannelID: thankChannelID,
		logger:         logger,
		now:            time.Now,
	}
}

// Register records a newly created help thread as open.
func (s *ThreadService) Register(ctx context.Context, threadID, ownerID, categoryID string) error {
	if err := s.threads.Register(ctx, threadID, ownerID, categoryID, s.now()); err != nil {
		return err
	}
	s.logger.WithFields(map[string]interface{}{
		"threadId":   threadID,
		"ownerId":    ownerID,
		"categoryId": categoryID,
	}).Info("Help thread registered")
	return nil
}

// TouchActivity bumps the thread's activity clock. Unknown threads are
// ignored so chatter in non-help threads costs nothing.
func (s *ThreadService) TouchActivity(ctx context.Context, threadID string) error {
	return s.threads.TouchActivity(ctx, threadID, s.now())
}

// CloseRequest is the outcome of an owner's close request.
type CloseRequest struct {
	Thread *models.HelpThread
	// EligibleHelpers are the participants the owner may thank, in the
	// order they were supplied.
	EligibleHelpers []string
}

// RequestClose begins the close handshake. Only the thread owner may start
// it; participants carry the candidate helper IDs gathered by the caller,
// which are filtered down to distinct helper-role holders other than the
// owner.
func (s *ThreadService) RequestClose(ctx context.Context, threadID, requesterID string, participants []string) (*CloseRequest, error) {
	t, err := s.threads.Get(ctx, threadID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &types.ServiceError{Code: types.ErrCodeThreadNotFound, Message: "thread is not a registered help thread"}
		}
		return nil, err
	}
	if t.OwnerID != requesterID {
		return nil, &types.ServiceError{Code: types.ErrCodeNotThreadOwner, Message: "only the thread owner can close this thread"}
	}
	if t.Closed() {
		return nil, &types.ServiceError{Code: types.ErrCodeThreadNotFound, Message: "thread is already closed"}
	}

	if thread.CanTransition(t.State, types.ThreadPendingClose) {
		now := s.now()
		moved, err := s.threads.MarkPendingClose(ctx, threadID, now)
		if err != nil {
			return nil, err
		}
		if moved {
			t.State = types.ThreadPendingClose
			t.PendingSince = &now
		}
	}

	helpers, err := s.eligibleHelpers(ctx, t.OwnerID, participants)
	if err != nil {
		return nil, err
	}
	return &CloseRequest{Thread: t, EligibleHelpers: helpers}, nil
}

// ConfirmClose completes the handshake. Confirming an already closed thread
// reports closed=false without error.
func (s *ThreadService) ConfirmClose(ctx context.Context, threadID, requesterID string) (bool, error) {
	t, err := s.threads.Get(ctx, threadID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, &types.ServiceError{Code: types.ErrCodeThreadNotFound, Message: "thread is not a registered help thread"}
		}
		return false, err
	}
	if t.OwnerID != requesterID {
		return false, &types.ServiceError{Code: types.ErrCodeNotThreadOwner, Message: "only the thread owner can close this thread"}
	}
	if !thread.CanTransition(t.State, types.ThreadClosed) {
		return false, nil
	}

	closed, err := s.threads.Close(ctx, threadID, types.CloseReasonOwner, s.now())
	if err != nil {
		return false, err
	}
	if closed {
		s.logger.WithField("threadId", threadID).Info("Help thread closed by owner")
	}
	return closed, nil
}

// ThankOutcome reports what a thank produced for the helper.
type ThankOutcome struct {
	Accrual   *storage.AccrualResult
	Promotion *Promotion
}

// ThankHelper awards a thank from the thread owner to a helper. Each helper
// can be thanked at most once per thread; the thank is consumed even when
// the accrual is rejected by the daily or lifetime cap, matching the
// one-shot thank buttons in the close flow.
func (s *ThreadService) ThankHelper(ctx context.Context, threadID, thankerID, helperID string) (*ThankOutcome, error) {
	t, err := s.threads.Get(ctx, threadID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &types.ServiceError{Code: types.ErrCodeThreadNotFound, Message: "thread is not a registered help thread"}
		}
		return nil, err
	}
	if t.OwnerID != thankerID {
		return nil, &types.ServiceError{Code: types.ErrCodeNotThreadOwner, Message: "only the thread owner can thank helpers"}
	}
	if helperID == t.OwnerID {
		return nil, &types.ServiceError{Code: types.ErrCodeInvalidAmount, Message: "you cannot thank yourself"}
	}
	if t.Closed() {
		return nil, &types.ServiceError{Code: types.ErrCodeThreadNotFound, Message: "thread is already closed"}
	}

	recorded, err := s.threads.RecordThank(ctx, threadID, helperID, s.now())
	if err != nil {
		return nil, err
	}
	if !recorded {
		return nil, &types.ServiceError{Code: types.ErrCodeAlreadyThanked, Message: "this helper was already thanked in this thread"}
	}

	accrual, err := s.points.Accrue(ctx, helperID, t.CategoryID, 1)
	if err != nil {
		// The thank stays consumed; the caps just mean no points this time.
		return nil, err
	}

	outcome := &ThankOutcome{Accrual: accrual}
	if accrual.Granted > 0 {
		outcome.Promotion, err = s.promotions.CheckAndApply(ctx, helperID)
		if err != nil {
			s.logger.WithError(err).WithField("userId", helperID).Error("Rank check after thank failed")
		}
	}

	if s.thankChannelID != "" {
		s.notifier.NotifyChannel(ctx, s.thankChannelID,
			fmt.Sprintf("<@%s> thanked <@%s> in <#%s> (+%d, total %d).",
				thankerID, helperID, threadID, accrual.Granted, accrual.NewTotal))
	}
	return outcome, nil
}

// ForceClose closes a thread on staff authority, skipping the handshake.
func (s *ThreadService) ForceClose(ctx context.Context, threadID string) (bool, error) {
	t, err := s.threads.Get(ctx, threadID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, &types.ServiceError{Code: types.ErrCodeThreadNotFound, Message: "thread is not a registered help thread"}
		}
		return false, err
	}
	if !thread.CanTransition(t.State, types.ThreadClosed) {
		return false, nil
	}
	closed, err := s.threads.Close(ctx, threadID, types.CloseReasonStaff, s.now())
	if err != nil {
		return false, err
	}
	if closed {
		s.logger.WithField("threadId", threadID).Info("Help thread force-closed by staff")
	}
	return closed, nil
}

// HandleStarterDeleted closes a thread whose starter message was deleted.
func (s *ThreadService) HandleStarterDeleted(ctx context.Context, threadID string) error {
	closed, err := s.threads.Close(ctx, threadID, types.CloseReasonStarterDeleted, s.now())
	if err != nil {
		return err
	}
	if closed {
		s.logger.WithField("threadId", threadID).Info("Help thread closed after starter message deletion")
	}
	return nil
}

// HandleMemberLeft closes every open thread owned by a departed member.
func (s *ThreadService) HandleMemberLeft(ctx context.Context, ownerID string) (int, error) {
	threads, err := s.threads.ListOpenByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, t := range threads {
		ok, err := s.threads.Close(ctx, t.ThreadID, types.CloseReasonMemberLeft, s.now())
		if err != nil {
			s.logger.WithError(err).WithField("threadId", t.ThreadID).Error("Failed to close thread of departed member")
			continue
		}
		if ok {
			closed++
		}
	}
	if closed > 0 {
		s.logger.WithFields(map[string]interface{}{
			"ownerId": ownerID,
			"closed":  closed,
		}).Info("Closed threads of departed member")
	}
	return closed, nil
}

// StillNeedHelp acknowledges an inactivity reminder: the reminder is cleared
// and the activity clock restarts, so a later idle stretch earns a fresh
// reminder instead of an immediate close.
func (s *ThreadService) StillNeedHelp(ctx context.Context, threadID string) error {
	now := s.now()
	if err := s.threads.ClearReminder(ctx, threadID, now); err != nil {
		return err
	}
	return s.threads.TouchActivity(ctx, threadID, now)
}

// eligibleHelpers filters participant IDs down to distinct helper-role
// holders, excluding the thread owner.
func (s *ThreadService) eligibleHelpers(ctx context.Context, ownerID string, participants []string) ([]string, error) {
	seen := make(map[string]bool, len(participants))
	var helpers []string
	for _, id := range participants {
		if id == ownerID || seen[id] {
			continue
		}
		seen[id] = true
		hasRole, err := s.roles.HasRole(ctx, id, s.helperRoleID)
		if err != nil {
			s.logger.WithError(err).WithField("userId", id).Warn("Helper role lookup failed, skipping participant")
			continue
		}
		if hasRole {
			helpers = append(helpers, id)
		}
	}
	return helpers, nil
}
