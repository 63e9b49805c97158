package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueEmails is the Redis list key for confirmation email jobs.
	QueueEmails = "worker:emails"
	// QueueExports is the Redis list key for registration export jobs.
	QueueExports = "worker:exports"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeEmail  JobType = "email"
	JobTypeExport JobType = "export"
)

// EmailPayload is the payload for email jobs. The worker renders the message.
type EmailPayload struct {
	EmailType      string    `json:"email_type"`
	QRCodeSetID    uuid.UUID `json:"qr_code_set_id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	RecipientEmail string    `json:"recipient_email"`
	RecipientName  string    `json:"recipient_name,omitempty"`
	CheckInURL     string    `json:"check_in_url"`
}

// ExportPayload is the payload for export jobs.
type ExportPayload struct {
	ExportID    string    `json:"export_id"`
	QRCodeSetID uuid.UUID `json:"qr_code_set_id"`
	RequestedBy string    `json:"requested_by"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client redis.UniversalClient, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// KeyFor returns the list a job type is queued on.
func KeyFor(t JobType) (string, error) {
	switch t {
	case JobTypeEmail:
		return QueueEmails, nil
	case JobTypeExport:
		return QueueExports, nil
	}
	return "", fmt.Errorf("unknown job type: %s", t)
}

func (q *Queue) enqueue(ctx context.Context, t JobType, payload interface{}) (*Job, error) {
	key, err := KeyFor(t)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	job := &Job{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return nil, fmt.Errorf("rpush: %w", err)
	}
	return job, nil
}

// EnqueueEmail enqueues an email job.
func (q *Queue) EnqueueEmail(ctx context.Context, payload EmailPayload) error {
	job, err := q.enqueue(ctx, JobTypeEmail, payload)
	if err != nil {
		return err
	}
	q.logger.Debug("enqueued email job",
		zap.String("job_id", job.ID),
		zap.String("email_type", payload.EmailType),
		zap.String("registration_id", payload.RegistrationID.String()))
	return nil
}

// EnqueueExport enqueues an export job.
func (q *Queue) EnqueueExport(ctx context.Context, payload ExportPayload) error {
	job, err := q.enqueue(ctx, JobTypeExport, payload)
	if err != nil {
		return err
	}
	q.logger.Debug("enqueued export job", zap.String("job_id", job.ID), zap.String("export_id", payload.ExportID))
	return nil
}

// Dequeue blocks for up to timeout until a job is available on one of keys (in priority order).
// It returns nil, "", nil on timeout or when the payload is not a job.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration, keys ...string) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, timeout, keys...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job on its own list with incremented attempt.
// If attempt >= MaxRetries, pushes to DLQ instead. It reports whether the job was dead-lettered.
func (q *Queue) Retry(ctx context.Context, job *Job) (bool, error) {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return false, err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return false, err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return true, nil
	}
	key, err := KeyFor(job.Type)
	if err != nil {
		return false, err
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return false, err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return false, nil
}

// Depths returns the length of each job list and the dead-letter queue.
func (q *Queue) Depths(ctx context.Context) (map[string]int64, error) {
	keys := []string{QueueEmails, QueueExports, QueueDLQ}
	pipe := q.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.LLen(ctx, k)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("queue depths: %w", err)
	}
	out := make(map[string]int64, len(keys))
	for i, k := range keys {
		out[k] = cmds[i].Val()
	}
	return out, nil
}
