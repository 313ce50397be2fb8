package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helper-ledger/internal/logging"
)

type fakeNotifier struct {
	calls    int
	failures int // fail this many calls before succeeding
}

func (f *fakeNotifier) NotifyUser(ctx context.Context, userID, content string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("recipient unreachable")
	}
	return nil
}

func (f *fakeNotifier) NotifyChannel(ctx context.Context, channelID, content string) error {
	return f.NotifyUser(ctx, channelID, content)
}

func newTestNotifier(inner *fakeNotifier, cfg Config) *BestEffortNotifier {
	n := NewBestEffortNotifier(inner, cfg, logging.New(logging.LevelError, logging.FormatText))
	n.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return n
}

func TestBestEffortNotifier_RetriesUntilSuccess(t *testing.T) {
	inner := &fakeNotifier{failures: 2}
	n := newTestNotifier(inner, DefaultConfig())

	err := n.NotifyUser(context.Background(), "u1", "hello")
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestBestEffortNotifier_GivesUpAfterMaxAttempts(t *testing.T) {
	inner := &fakeNotifier{failures: 10}
	n := newTestNotifier(inner, DefaultConfig())

	err := n.NotifyUser(context.Background(), "u1", "hello")
	require.Error(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestBestEffortNotifier_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeNotifier{failures: 1000}
	cfg := DefaultConfig()
	cfg.FailureThreshold = 2
	n := newTestNotifier(inner, cfg)

	ctx := context.Background()
	_ = n.NotifyUser(ctx, "u1", "one")
	_ = n.NotifyUser(ctx, "u1", "two")

	callsBefore := inner.calls
	err := n.NotifyUser(ctx, "u1", "three")
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Equal(t, callsBefore, inner.calls, "open breaker must not reach the platform")
}

func TestBreaker_HalfOpenProbeRecloses(t *testing.T) {
	b := newBreaker(1, time.Minute)
	now := time.Unix(0, 0)
	b.now = func() time.Time { return now }

	b.record(errors.New("boom"))
	require.False(t, b.allow())

	now = now.Add(2 * time.Minute)
	require.True(t, b.allow(), "cooldown elapsed, probe allowed")
	require.False(t, b.allow(), "only one probe at a time")

	b.record(nil)
	assert.True(t, b.allow(), "successful probe recloses the breaker")
}

func TestBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	b := newBreaker(1, time.Minute)
	now := time.Unix(0, 0)
	b.now = func() time.Time { return now }

	b.record(errors.New("boom"))
	now = now.Add(2 * time.Minute)
	require.True(t, b.allow())

	b.record(errors.New("still down"))
	assert.False(t, b.allow(), "failed probe reopens the breaker")
}
