package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"home-service-server/services"
)

// NewStaleAssignmentJob reminds servicemen about claims that have sat at job status
// assigned for longer than after, scanning every interval. A claim is reminded once.
func NewStaleAssignmentJob(lifecycle *services.LifecycleService, after, interval time.Duration, logger *zap.Logger) *Job {
	var j *Job
	j = newJob("stale_assignments", interval, logger, func(ctx context.Context) error {
		reminded, err := lifecycle.RemindStaleAssignments(ctx, time.Now().UTC().Add(-after))
		if err != nil {
			return err
		}
		if reminded > 0 {
			j.logger.Info("stale assignments reminded", zap.Int("count", reminded))
		}
		return nil
	})
	return j
}
