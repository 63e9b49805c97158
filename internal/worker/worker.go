package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/blessbox/backend/pkg/queue"
)

// Processor handles one job type.
type Processor interface {
	Process(ctx context.Context, job *queue.Job) error
}

// JobSource is the queue the runner drains.
type JobSource interface {
	Dequeue(ctx context.Context, timeout time.Duration, keys ...string) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) (bool, error)
}

// Runner dispatches dequeued jobs to processors by type.
type Runner struct {
	queue      JobSource
	processors map[queue.JobType]Processor
	keys       []string
	poll       time.Duration
	backoff    time.Duration
	logger     *zap.Logger
}

// NewRunner creates a runner. Register processors with Handle before Run.
func NewRunner(q JobSource, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		queue:      q,
		processors: map[queue.JobType]Processor{},
		poll:       5 * time.Second,
		backoff:    queue.RetryBackoff,
		logger:     logger,
	}
}

// Handle routes jobs of type t to p and adds t's list to the lists the runner drains.
func (r *Runner) Handle(t queue.JobType, p Processor) error {
	key, err := queue.KeyFor(t)
	if err != nil {
		return err
	}
	r.processors[t] = p
	r.keys = append(r.keys, key)
	return nil
}

// RunOnce waits for one job and processes it. It reports whether a job was handled.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	job, _, err := r.queue.Dequeue(ctx, r.poll, r.keys...)
	if err != nil {
		return false, fmt.Errorf("dequeue: %w", err)
	}
	if job == nil {
		return false, nil
	}
	p, ok := r.processors[job.Type]
	if !ok {
		r.logger.Warn("no processor for job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		return true, nil
	}

	r.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	if err := p.Process(ctx, job); err != nil {
		r.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
		if _, reErr := r.queue.Retry(ctx, job); reErr != nil {
			r.logger.Error("retry enqueue failed", zap.Error(reErr))
		}
		return true, err
	}
	return true, nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (r *Runner) Run(ctx context.Context) {
	r.logger.Info("worker loop started", zap.Strings("queues", r.keys))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("worker stopping")
			return
		default:
		}

		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			select {
			case <-ctx.Done():
			case <-time.After(r.backoff):
			}
		}
	}
}
