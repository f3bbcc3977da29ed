package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"home-service-server/middleware"
	"home-service-server/notifications"
)

const relayBatchSize = 200

// NewNotificationRelayJob republishes notifications whose first delivery failed
func NewNotificationRelayJob(outbox *notifications.Outbox, interval time.Duration, logger *zap.Logger) *Job {
	var j *Job
	j = newJob("notification_relay", interval, logger, func(ctx context.Context) error {
		sent, err := outbox.Relay(ctx, interval, relayBatchSize)
		if sent > 0 {
			j.logger.Info("notifications relayed", zap.Int("count", sent))
		}
		return err
	})
	return j
}

// NewRateLimiterCleanupJob drops per-client limiters that have gone idle
func NewRateLimiterCleanupJob(rl *middleware.RateLimiter, interval time.Duration, logger *zap.Logger) *Job {
	var j *Job
	j = newJob("rate_limiter_cleanup", interval, logger, func(context.Context) error {
		if removed := rl.Cleanup(interval); removed > 0 {
			j.logger.Debug("idle rate limiters removed", zap.Int("count", removed))
		}
		return nil
	})
	return j
}
