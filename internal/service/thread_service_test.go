package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helper-ledger/internal/rank"
	"github.com/helper-ledger/internal/types"
)

const (
	helperRole      = "role-helper"
	thankLogChannel = "chan-thanks"
)

type threadFixture struct {
	svc      *ThreadService
	threads  *fakeThreads
	store    *fakeLedger
	roles    *fakeRoles
	notifier *recordingNotifier
}

func newThreadFixture(t *testing.T) *threadFixture {
	t.Helper()

	roleIDs := make([]string, 0, 13)
	for i := 1; i <= 13; i++ {
		roleIDs = append(roleIDs, fmt.Sprintf("role-%d", i))
	}
	ladder, err := rank.NewLadder(roleIDs)
	require.NoError(t, err)

	store := newFakeLedger()
	threads := newFakeThreads()
	roles := newFakeRoles()
	notifier := newRecordingNotifier()
	logger := testLogger()

	points := NewPointsService(store, ladder, nil, logger)
	verification := NewVerificationService(store, logger)
	promotions := NewPromotionService(store, verification, ladder, roles, notifier, "", logger)

	return &threadFixture{
		svc:      NewThreadService(threads, points, promotions, roles, notifier, helperRole, thankLogChannel, logger),
		threads:  threads,
		store:    store,
		roles:    roles,
		notifier: notifier,
	}
}

func (f *threadFixture) openThread(t *testing.T, threadID, ownerID string) {
	t.Helper()
	require.NoError(t, f.svc.Register(context.Background(), threadID, ownerID, "cat-go"))
}

func serviceErrCode(err error) string {
	var serviceErr *types.ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code
	}
	return ""
}

func TestRequestClose_FiltersEligibleHelpers(t *testing.T) {
	f := newThreadFixture(t)
	f.openThread(t, "t1", "owner")
	f.roles.give("h1", helperRole)
	f.roles.give("h2", helperRole)

	req, err := f.svc.RequestClose(context.Background(), "t1", "owner",
		[]string{"owner", "h1", "bystander", "h2", "h1"})

	require.NoError(t, err)
	assert.Equal(t, []string{"h1", "h2"}, req.EligibleHelpers)

	// The returned snapshot reflects the transition the request caused.
	assert.Equal(t, types.ThreadPendingClose, req.Thread.State)
	assert.NotNil(t, req.Thread.PendingSince)

	got, err := f.threads.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, types.ThreadPendingClose, got.State)
}

func TestRequestClose_RepeatDoesNotRetransition(t *testing.T) {
	f := newThreadFixture(t)
	f.openThread(t, "t1", "owner")

	_, err := f.svc.RequestClose(context.Background(), "t1", "owner", nil)
	require.NoError(t, err)

	// Re-requesting from pending_close re-sends the prompt without another
	// state transition.
	req, err := f.svc.RequestClose(context.Background(), "t1", "owner", nil)
	require.NoError(t, err)
	assert.Equal(t, types.ThreadPendingClose, req.Thread.State)
	assert.Equal(t, 1, f.threads.markPendingCalls)
}

func TestRequestClose_NonOwnerIsRejected(t *testing.T) {
	f := newThreadFixture(t)
	f.openThread(t, "t1", "owner")

	_, err := f.svc.RequestClose(context.Background(), "t1", "intruder", nil)

	assert.Equal(t, types.ErrCodeNotThreadOwner, serviceErrCode(err))
}

func TestRequestClose_UntrackedThread(t *testing.T) {
	f := newThreadFixture(t)

	_, err := f.svc.RequestClose(context.Background(), "missing", "owner", nil)

	assert.Equal(t, types.ErrCodeThreadNotFound, serviceErrCode(err))
}

func TestConfirmClose_ClosesOnce(t *testing.T) {
	f := newThreadFixture(t)
	f.openThread(t, "t1", "owner")

	_, err := f.svc.RequestClose(context.Background(), "t1", "owner", nil)
	require.NoError(t, err)

	closed, err := f.svc.ConfirmClose(context.Background(), "t1", "owner")
	require.NoError(t, err)
	assert.True(t, closed)

	// A second confirmation is a reported no-op, not an error.
	closed, err = f.svc.ConfirmClose(context.Background(), "t1", "owner")
	require.NoError(t, err)
	assert.False(t, closed)

	got, err := f.threads.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, types.CloseReasonOwner, got.CloseReason)
}

func TestThankHelper_AwardsPointAndLogs(t *testing.T) {
	f := newThreadFixture(t)
	f.openThread(t, "t1", "owner")
	f.roles.give("h1", helperRole)

	outcome, err := f.svc.ThankHelper(context.Background(), "t1", "owner", "h1")

	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Accrual.Granted)
	assert.Equal(t, 1, outcome.Accrual.NewTotal)
	assert.Nil(t, outcome.Promotion)
	assert.Len(t, f.notifier.channels[thankLogChannel], 1)
}

func TestThankHelper_SecondThankSameThreadRejected(t *testing.T) {
	f := newThreadFixture(t)
	f.openThread(t, "t1", "owner")

	_, err := f.svc.ThankHelper(context.Background(), "t1", "owner", "h1")
	require.NoError(t, err)

	_, err = f.svc.ThankHelper(context.Background(), "t1", "owner", "h1")
	assert.Equal(t, types.ErrCodeAlreadyThanked, serviceErrCode(err))

	balance, err := f.store.GetBalance(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, 1, balance)
}

func TestThankHelper_SameHelperAcrossThreads(t *testing.T) {
	f := newThreadFixture(t)
	f.openThread(t, "t1", "owner")
	f.openThread(t, "t2", "owner")

	_, err := f.svc.ThankHelper(context.Background(), "t1", "owner", "h1")
	require.NoError(t, err)
	outcome, err := f.svc.ThankHelper(context.Background(), "t2", "owner", "h1")
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.Accrual.NewTotal)
}

func TestThankHelper_SelfThankRejected(t *testing.T) {
	f := newThreadFixture(t)
	f.openThread(t, "t1", "owner")

	_, err := f.svc.ThankHelper(context.Background(), "t1", "owner", "owner")

	assert.Equal(t, types.ErrCodeInvalidAmount, serviceErrCode(err))
}

func TestThankHelper_DailyLimitConsumesThank(t *testing.T) {
	f := newThreadFixture(t)
	for i := 1; i <= 5; i++ {
		f.openThread(t, fmt.Sprintf("t%d", i), "owner")
	}

	for i := 1; i <= 4; i++ {
		_, err := f.svc.ThankHelper(context.Background(), fmt.Sprintf("t%d", i), "owner", "h1")
		require.NoError(t, err)
	}

	_, err := f.svc.ThankHelper(context.Background(), "t5", "owner", "h1")
	assert.Equal(t, types.ErrCodeDailyLimit, serviceErrCode(err))

	// The thank was consumed despite the cap.
	_, err = f.svc.ThankHelper(context.Background(), "t5", "owner", "h1")
	assert.Equal(t, types.ErrCodeAlreadyThanked, serviceErrCode(err))
}

func TestThankHelper_PromotionAtThreshold(t *testing.T) {
	f := newThreadFixture(t)
	f.openThread(t, "t1", "owner")
	f.store.seed("h1", 27, false, false) // one point below the first rank

	outcome, err := f.svc.ThankHelper(context.Background(), "t1", "owner", "h1")

	require.NoError(t, err)
	require.NotNil(t, outcome.Promotion)
	assert.Equal(t, "role-1", outcome.Promotion.RoleID)
}

func TestForceClose(t *testing.T) {
	f := newThreadFixture(t)
	f.openThread(t, "t1", "owner")

	closed, err := f.svc.ForceClose(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, closed)

	got, err := f.threads.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, types.CloseReasonStaff, got.CloseReason)

	_, err = f.svc.ForceClose(context.Background(), "missing")
	assert.Equal(t, types.ErrCodeThreadNotFound, serviceErrCode(err))
}

func TestHandleMemberLeft_ClosesAllOwnedThreads(t *testing.T) {
	f := newThreadFixture(t)
	f.openThread(t, "t1", "leaver")
	f.openThread(t, "t2", "leaver")
	f.openThread(t, "t3", "stayer")

	closed, err := f.svc.HandleMemberLeft(context.Background(), "leaver")

	require.NoError(t, err)
	assert.Equal(t, 2, closed)

	got, err := f.threads.Get(context.Background(), "t3")
	require.NoError(t, err)
	assert.Equal(t, types.ThreadOpen, got.State)
}

func TestHandleStarterDeleted_IsIdempotent(t *testing.T) {
	f := newThreadFixture(t)
	f.openThread(t, "t1", "owner")

	require.NoError(t, f.svc.HandleStarterDeleted(context.Background(), "t1"))
	require.NoError(t, f.svc.HandleStarterDeleted(context.Background(), "t1"))

	got, err := f.threads.Get(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, types.CloseReasonStarterDeleted, got.CloseReason)
}
