package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/helper-ledger/internal/ledger"
	"github.com/helper-ledger/internal/logging"
	"github.com/helper-ledger/internal/models"
	"github.com/helper-ledger/internal/storage"
	"github.com/helper-ledger/internal/types"
)

// Shared in-memory fakes for the service tests. fakeLedger applies the same
// accrual policy as the real repository so service tests exercise realistic
// cap behavior without a database.

type fakeLedger struct {
	mu       sync.Mutex
	accounts map[string]*models.UserAccount

	balanceBoard []*models.LeaderboardEntry
	windowBoard  []*models.LeaderboardEntry
	thanksBoard  []*models.LeaderboardEntry

	accrueErr error
	getErr    error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{accounts: make(map[string]*models.UserAccount)}
}

func (f *fakeLedger) account(userID string) *models.UserAccount {
	acct, ok := f.accounts[userID]
	if !ok {
		acct = &models.UserAccount{UserID: userID}
		f.accounts[userID] = acct
	}
	return acct
}

func (f *fakeLedger) seed(userID string, points int, verified, prompted bool) {
	f.accounts[userID] = &models.UserAccount{
		UserID:               userID,
		TotalPoints:          points,
		Verified:             verified,
		VerificationPrompted: prompted,
	}
}

func (f *fakeLedger) Accrue(ctx context.Context, userID, sourceCategory string, amount int, now time.Time) (*storage.AccrualResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.accrueErr != nil {
		return nil, f.accrueErr
	}

	acct := f.account(userID)
	outcome, err := ledger.ApplyAccrual(ledger.AccountState{
		TotalPoints:     acct.TotalPoints,
		DailyPoints:     acct.DailyPoints,
		LastAccrualDate: acct.LastAccrualDate,
		Verified:        acct.Verified,
	}, amount, ledger.ReferenceDate(now))
	if err != nil {
		return nil, err
	}

	acct.TotalPoints = outcome.NewTotal
	acct.DailyPoints = outcome.NewDaily
	acct.LastAccrualDate = outcome.Date
	return &storage.AccrualResult{
		NewTotal:       outcome.NewTotal,
		Granted:        outcome.Granted,
		RemainingDaily: outcome.RemainingDaily,
	}, nil
}

func (f *fakeLedger) GrantUnrestricted(ctx context.Context, userID string, amount int, now time.Time) (*storage.GrantResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	acct := f.account(userID)
	outcome, err := ledger.ApplyUnrestrictedGrant(ledger.AccountState{
		TotalPoints: acct.TotalPoints,
		Verified:    acct.Verified,
	}, amount)
	if err != nil {
		return nil, err
	}

	acct.TotalPoints = outcome.NewTotal
	if outcome.AutoVerified {
		acct.Verified = true
		acct.VerificationPrompted = true
	}
	return &storage.GrantResult{NewTotal: outcome.NewTotal, AutoVerified: outcome.AutoVerified}, nil
}

func (f *fakeLedger) Remove(ctx context.Context, userID string, amount int, now time.Time) (*storage.RemovalResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	acct := f.account(userID)
	outcome, err := ledger.ApplyRemoval(ledger.AccountState{
		TotalPoints: acct.TotalPoints,
		Verified:    acct.Verified,
	}, amount)
	if err != nil {
		return nil, err
	}

	acct.TotalPoints = outcome.NewTotal
	if outcome.Demoted {
		acct.Verified = false
		acct.VerificationPrompted = false
	}
	return &storage.RemovalResult{NewTotal: outcome.NewTotal, Demoted: outcome.Demoted}, nil
}

func (f *fakeLedger) GetAccount(ctx context.Context, userID string) (*models.UserAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if acct, ok := f.accounts[userID]; ok {
		copied := *acct
		return &copied, nil
	}
	return &models.UserAccount{UserID: userID}, nil
}

func (f *fakeLedger) GetBalance(ctx context.Context, userID string) (int, error) {
	acct, err := f.GetAccount(ctx, userID)
	if err != nil {
		return 0, err
	}
	return acct.TotalPoints, nil
}

func (f *fakeLedger) SetVerified(ctx context.Context, userID string, verified bool, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.account(userID).Verified = verified
	return nil
}

func (f *fakeLedger) SetPrompted(ctx context.Context, userID string, prompted bool, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.account(userID).VerificationPrompted = prompted
	return nil
}

func (f *fakeLedger) TopByBalance(ctx context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	return f.balanceBoard, nil
}

func (f *fakeLedger) WindowedTotals(ctx context.Context, windowDays, limit int, now time.Time) ([]*models.LeaderboardEntry, error) {
	return f.windowBoard, nil
}

func (f *fakeLedger) ThanksCounts(ctx context.Context, windowDays, limit int, now time.Time) ([]*models.LeaderboardEntry, error) {
	return f.thanksBoard, nil
}

func (f *fakeLedger) CategoryBreakdown(ctx context.Context, userIDs []string, windowDays int, now time.Time) (map[string]models.CategoryBreakdown, error) {
	out := make(map[string]models.CategoryBreakdown, len(userIDs))
	for _, id := range userIDs {
		out[id] = models.CategoryBreakdown{}
	}
	return out, nil
}

type fakeThreads struct {
	mu               sync.Mutex
	threads          map[string]*models.HelpThread
	thanks           map[string]bool // threadID/helperID
	markPendingCalls int
}

func newFakeThreads() *fakeThreads {
	return &fakeThreads{
		threads: make(map[string]*models.HelpThread),
		thanks:  make(map[string]bool),
	}
}

func (f *fakeThreads) Register(ctx context.Context, threadID, ownerID, categoryID string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.threads[threadID]; ok {
		return nil
	}
	f.threads[threadID] = &models.HelpThread{
		ThreadID:       threadID,
		OwnerID:        ownerID,
		CategoryID:     categoryID,
		State:          types.ThreadOpen,
		LastActivityAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return nil
}

func (f *fakeThreads) Get(ctx context.Context, threadID string) (*models.HelpThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s: %w", threadID, storage.ErrNotFound)
	}
	copied := *t
	return &copied, nil
}

func (f *fakeThreads) MarkPendingClose(ctx context.Context, threadID string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markPendingCalls++
	t, ok := f.threads[threadID]
	if !ok || t.State != types.ThreadOpen {
		return false, nil
	}
	t.State = types.ThreadPendingClose
	t.PendingSince = &now
	return true, nil
}

func (f *fakeThreads) Close(ctx context.Context, threadID string, reason types.CloseReason, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.threads[threadID]
	if !ok || t.State == types.ThreadClosed {
		return false, nil
	}
	t.State = types.ThreadClosed
	t.CloseReason = reason
	return true, nil
}

func (f *fakeThreads) TouchActivity(ctx context.Context, threadID string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.threads[threadID]; ok && t.State != types.ThreadClosed {
		t.LastActivityAt = now
	}
	return nil
}

func (f *fakeThreads) ClearReminder(ctx context.Context, threadID string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.threads[threadID]; ok && t.State == types.ThreadOpen {
		t.ReminderSentAt = nil
	}
	return nil
}

func (f *fakeThreads) ListOpenByOwner(ctx context.Context, ownerID string) ([]*models.HelpThread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.HelpThread
	for _, t := range f.threads {
		if t.OwnerID == ownerID && t.State != types.ThreadClosed {
			copied := *t
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeThreads) RecordThank(ctx context.Context, threadID, helperID string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := threadID + "/" + helperID
	if f.thanks[key] {
		return false, nil
	}
	f.thanks[key] = true
	return true, nil
}

type fakeRoles struct {
	mu       sync.Mutex
	held     map[string]map[string]bool // userID -> roleID
	names    map[string]string
	hasErr   error
	grantErr error
	nameErr  error
	grants   []string // "userID/roleID"
}

func newFakeRoles() *fakeRoles {
	return &fakeRoles{
		held:  make(map[string]map[string]bool),
		names: make(map[string]string),
	}
}

func (f *fakeRoles) give(userID, roleID string) {
	if f.held[userID] == nil {
		f.held[userID] = make(map[string]bool)
	}
	f.held[userID][roleID] = true
}

func (f *fakeRoles) HasRole(ctx context.Context, userID, roleID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hasErr != nil {
		return false, f.hasErr
	}
	return f.held[userID][roleID], nil
}

func (f *fakeRoles) GrantRole(ctx context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grantErr != nil {
		return f.grantErr
	}
	f.give(userID, roleID)
	f.grants = append(f.grants, userID+"/"+roleID)
	return nil
}

func (f *fakeRoles) RevokeRole(ctx context.Context, userID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held[userID], roleID)
	return nil
}

func (f *fakeRoles) RoleName(ctx context.Context, roleID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nameErr != nil {
		return "", f.nameErr
	}
	return f.names[roleID], nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	dms      map[string][]string
	channels map[string][]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		dms:      make(map[string][]string),
		channels: make(map[string][]string),
	}
}

func (n *recordingNotifier) NotifyUser(ctx context.Context, userID, content string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dms[userID] = append(n.dms[userID], content)
	return nil
}

func (n *recordingNotifier) NotifyChannel(ctx context.Context, channelID, content string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channels[channelID] = append(n.channels[channelID], content)
	return nil
}

func testLogger() *logging.Logger {
	return logging.New(logging.LevelError, logging.FormatText)
}
