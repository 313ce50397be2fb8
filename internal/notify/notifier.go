// Package notify wraps the platform notifier with best-effort delivery
// semantics: bounded retries with exponential backoff and a circuit breaker
// so a degraded platform does not stall command handling. Delivery failures
// are logged and swallowed; the state change a notification announces has
// already committed.
package notify

import (
	"context"
	"time"

	"github.com/helper-ledger/internal/logging"
	"github.com/helper-ledger/internal/platform"
)

// Config tunes delivery behavior.
type Config struct {
	MaxAttempts      int
	InitialDelay     time.Duration
	MaxDelay         time.Duration
	FailureThreshold int
	Cooldown         time.Duration
}

// DefaultConfig returns the delivery defaults: 3 attempts with 1s/2s backoff,
// breaker opening after 5 consecutive failed deliveries for one minute.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      3,
		InitialDelay:     time.Second,
		MaxDelay:         30 * time.Second,
		FailureThreshold: 5,
		Cooldown:         time.Minute,
	}
}

// BestEffortNotifier implements platform.Notifier on top of another notifier.
type BestEffortNotifier struct {
	inner   platform.Notifier
	cfg     Config
	breaker *breaker
	logger  *logging.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewBestEffortNotifier wraps a notifier with retries and a circuit breaker.
func NewBestEffortNotifier(inner platform.Notifier, cfg Config, logger *logging.Logger) *BestEffortNotifier {
	return &BestEffortNotifier{
		inner:   inner,
		cfg:     cfg,
		breaker: newBreaker(cfg.FailureThreshold, cfg.Cooldown),
		logger:  logger,
		sleep:   sleepContext,
	}
}

// NotifyUser delivers a direct message, best effort.
func (n *BestEffortNotifier) NotifyUser(ctx context.Context, userID, content string) error {
	return n.deliver(ctx, "user", userID, func(ctx context.Context) error {
		return n.inner.NotifyUser(ctx, userID, content)
	})
}

// NotifyChannel posts to a channel, best effort.
func (n *BestEffortNotifier) NotifyChannel(ctx context.Context, channelID, content string) error {
	return n.deliver(ctx, "channel", channelID, func(ctx context.Context) error {
		return n.inner.NotifyChannel(ctx, channelID, content)
	})
}

func (n *BestEffortNotifier) deliver(ctx context.Context, kind, target string, send func(context.Context) error) error {
	if !n.breaker.allow() {
		n.logger.WithFields(map[string]interface{}{
			"kind":   kind,
			"target": target,
		}).Warn("Notification dropped: circuit breaker open")
		return ErrBreakerOpen
	}

	delay := n.cfg.InitialDelay
	var err error
	for attempt := 1; attempt <= n.cfg.MaxAttempts; attempt++ {
		err = send(ctx)
		if err == nil {
			n.breaker.record(nil)
			return nil
		}

		if attempt < n.cfg.MaxAttempts {
			if sleepErr := n.sleep(ctx, delay); sleepErr != nil {
				break
			}
			delay *= 2
			if delay > n.cfg.MaxDelay {
				delay = n.cfg.MaxDelay
			}
		}
	}

	n.breaker.record(err)
	n.logger.WithError(err).WithFields(map[string]interface{}{
		"kind":     kind,
		"target":   target,
		"attempts": n.cfg.MaxAttempts,
	}).Warn("Notification delivery failed")
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
