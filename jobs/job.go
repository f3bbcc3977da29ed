package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job runs a task on a fixed interval until stopped
type Job struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context) error
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newJob(name string, interval time.Duration, logger *zap.Logger, task func(ctx context.Context) error) *Job {
	return &Job{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logger.With(zap.String("job", name)),
	}
}

// Start begins the job in its own goroutine
func (j *Job) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)
	j.wg.Add(1)
	go j.run(ctx)
	j.logger.Info("job started", zap.Duration("interval", j.interval))
}

// Stop cancels the job and waits for the current run to finish
func (j *Job) Stop() {
	if j.cancel == nil {
		return
	}
	j.cancel()
	j.wg.Wait()
	j.logger.Info("job stopped")
}

// RunOnce executes the task immediately in the caller's goroutine
func (j *Job) RunOnce(ctx context.Context) error {
	return j.task(ctx)
}

func (j *Job) run(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.task(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error("job run failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}
