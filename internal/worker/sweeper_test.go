package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helper-ledger/internal/logging"
	"github.com/helper-ledger/internal/models"
	"github.com/helper-ledger/internal/thread"
	"github.com/helper-ledger/internal/types"
)

type fakeSweepStore struct {
	threads map[string]*models.HelpThread
}

func newFakeSweepStore() *fakeSweepStore {
	return &fakeSweepStore{threads: make(map[string]*models.HelpThread)}
}

func (f *fakeSweepStore) add(t *models.HelpThread) {
	f.threads[t.ThreadID] = t
}

func (f *fakeSweepStore) ListSweepable(ctx context.Context) ([]*models.HelpThread, error) {
	var out []*models.HelpThread
	for _, t := range f.threads {
		if t.State != types.ThreadClosed {
			copied := *t
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeSweepStore) SetReminderSent(ctx context.Context, threadID string, now time.Time) (bool, error) {
	t, ok := f.threads[threadID]
	if !ok || t.State != types.ThreadOpen || t.ReminderSentAt != nil {
		return false, nil
	}
	t.ReminderSentAt = &now
	return true, nil
}

func (f *fakeSweepStore) ClearReminder(ctx context.Context, threadID string, now time.Time) error {
	if t, ok := f.threads[threadID]; ok && t.State == types.ThreadOpen {
		t.ReminderSentAt = nil
	}
	return nil
}

func (f *fakeSweepStore) Close(ctx context.Context, threadID string, reason types.CloseReason, now time.Time) (bool, error) {
	t, ok := f.threads[threadID]
	if !ok || t.State == types.ThreadClosed {
		return false, nil
	}
	t.State = types.ThreadClosed
	t.CloseReason = reason
	return true, nil
}

type channelRecorder struct {
	messages map[string][]string
}

func (r *channelRecorder) NotifyUser(ctx context.Context, userID, content string) error {
	return nil
}

func (r *channelRecorder) NotifyChannel(ctx context.Context, channelID, content string) error {
	if r.messages == nil {
		r.messages = make(map[string][]string)
	}
	r.messages[channelID] = append(r.messages[channelID], content)
	return nil
}

func sweeperFixture() (*Sweeper, *fakeSweepStore, *channelRecorder, time.Time) {
	store := newFakeSweepStore()
	notifier := &channelRecorder{}
	policy := thread.SweepPolicy{
		InactivityReminder: 24 * time.Hour,
		ReminderGrace:      72 * time.Hour,
		PendingCloseAfter:  24 * time.Hour,
	}
	s := NewSweeper(store, policy, notifier, "0 * * * *", logging.New(logging.LevelError, logging.FormatText))

	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, store, notifier, now
}

func TestRunOnce_SendsReminderToIdleThread(t *testing.T) {
	s, store, notifier, now := sweeperFixture()
	store.add(&models.HelpThread{
		ThreadID:       "t1",
		OwnerID:        "owner",
		State:          types.ThreadOpen,
		LastActivityAt: now.Add(-25 * time.Hour),
	})

	require.NoError(t, s.RunOnce(context.Background()))

	require.NotNil(t, store.threads["t1"].ReminderSentAt)
	require.Len(t, notifier.messages["t1"], 1)
	assert.Contains(t, notifier.messages["t1"][0], "<@owner>")
}

func TestRunOnce_ActiveThreadIsLeftAlone(t *testing.T) {
	s, store, notifier, now := sweeperFixture()
	store.add(&models.HelpThread{
		ThreadID:       "t1",
		OwnerID:        "owner",
		State:          types.ThreadOpen,
		LastActivityAt: now.Add(-time.Hour),
	})

	require.NoError(t, s.RunOnce(context.Background()))

	assert.Nil(t, store.threads["t1"].ReminderSentAt)
	assert.Empty(t, notifier.messages)
}

func TestRunOnce_ReminderIsSentOnlyOnce(t *testing.T) {
	s, store, notifier, _ := sweeperFixture()
	now := s.now()
	store.add(&models.HelpThread{
		ThreadID:       "t1",
		OwnerID:        "owner",
		State:          types.ThreadOpen,
		LastActivityAt: now.Add(-25 * time.Hour),
	})

	require.NoError(t, s.RunOnce(context.Background()))
	require.NoError(t, s.RunOnce(context.Background()))

	assert.Len(t, notifier.messages["t1"], 1)
}

func TestRunOnce_ClosesAfterUnansweredGrace(t *testing.T) {
	s, store, notifier, now := sweeperFixture()
	reminderAt := now.Add(-73 * time.Hour)
	store.add(&models.HelpThread{
		ThreadID:       "t1",
		OwnerID:        "owner",
		State:          types.ThreadOpen,
		LastActivityAt: now.Add(-100 * time.Hour),
		ReminderSentAt: &reminderAt,
	})

	require.NoError(t, s.RunOnce(context.Background()))

	assert.Equal(t, types.ThreadClosed, store.threads["t1"].State)
	assert.Equal(t, types.CloseReasonInactivity, store.threads["t1"].CloseReason)
	require.Len(t, notifier.messages["t1"], 1)
	assert.Contains(t, notifier.messages["t1"][0], "inactivity")
}

func TestRunOnce_ActivityAfterReminderClearsIt(t *testing.T) {
	s, store, _, now := sweeperFixture()
	reminderAt := now.Add(-2 * time.Hour)
	store.add(&models.HelpThread{
		ThreadID:       "t1",
		OwnerID:        "owner",
		State:          types.ThreadOpen,
		LastActivityAt: now.Add(-time.Hour),
		ReminderSentAt: &reminderAt,
	})

	require.NoError(t, s.RunOnce(context.Background()))

	assert.Nil(t, store.threads["t1"].ReminderSentAt)
	assert.Equal(t, types.ThreadOpen, store.threads["t1"].State)
}

func TestRunOnce_ClosesStalePendingClose(t *testing.T) {
	s, store, _, now := sweeperFixture()
	pendingSince := now.Add(-25 * time.Hour)
	store.add(&models.HelpThread{
		ThreadID:       "t1",
		OwnerID:        "owner",
		State:          types.ThreadPendingClose,
		LastActivityAt: pendingSince,
		PendingSince:   &pendingSince,
	})

	require.NoError(t, s.RunOnce(context.Background()))

	assert.Equal(t, types.ThreadClosed, store.threads["t1"].State)
}
