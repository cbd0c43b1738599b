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
	// QueueStatistics is the Redis list key for survey result refresh jobs.
	QueueStatistics = "worker:statistics"
	// QueueExports is the Redis list key for CSV response export jobs.
	QueueExports = "worker:exports"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// pollTimeout bounds each BLPOP so the worker notices cancellation.
	pollTimeout = 5 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeStatisticsRefresh JobType = "statistics_refresh"
	JobTypeResponseExport    JobType = "response_export"
)

// ErrUnknownJobType is returned when a job type has no queue.
var ErrUnknownJobType = errors.New("unknown job type")

// StatisticsRefreshPayload asks the worker to recompute and cache a survey's results.
type StatisticsRefreshPayload struct {
	SurveyNo int64 `json:"survey_no"`
}

// ResponseExportPayload asks the worker to write a survey's responses to S3 as CSV.
type ResponseExportPayload struct {
	ExportID uuid.UUID `json:"export_id"`
	SurveyNo int64     `json:"survey_no"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// QueueFor returns the list key that carries jobs of type t.
func QueueFor(t JobType) (string, error) {
	switch t {
	case JobTypeStatisticsRefresh:
		return QueueStatistics, nil
	case JobTypeResponseExport:
		return QueueExports, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownJobType, t)
	}
}

// NewJob wraps payload in a fresh envelope.
func NewJob(t JobType, payload any) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   body,
		CreatedAt: time.Now(),
	}, nil
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// Enqueue pushes a job of type t onto its queue.
func (q *Queue) Enqueue(ctx context.Context, t JobType, payload any) error {
	key, err := QueueFor(t)
	if err != nil {
		return err
	}
	job, err := NewJob(t, payload)
	if err != nil {
		return err
	}
	if err := q.push(ctx, key, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued job", zap.String("job_id", job.ID), zap.String("type", string(t)))
	return nil
}

// EnqueueStatisticsRefresh enqueues a survey result refresh.
func (q *Queue) EnqueueStatisticsRefresh(ctx context.Context, surveyNo int64) error {
	return q.Enqueue(ctx, JobTypeStatisticsRefresh, StatisticsRefreshPayload{SurveyNo: surveyNo})
}

// EnqueueResponseExport enqueues a CSV export.
func (q *Queue) EnqueueResponseExport(ctx context.Context, exportID uuid.UUID, surveyNo int64) error {
	return q.Enqueue(ctx, JobTypeResponseExport, ResponseExportPayload{ExportID: exportID, SurveyNo: surveyNo})
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}

// Dequeue waits up to a few seconds for a job on any of keys. It returns a nil job when
// nothing arrived, so callers can check ctx between polls. Returns job and key (queue name).
func (q *Queue) Dequeue(ctx context.Context, keys ...string) (*Job, string, error) {
	if len(keys) == 0 {
		keys = []string{QueueStatistics, QueueExports}
	}
	result, err := q.client.BLPop(ctx, pollTimeout, keys...).Result()
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

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		if err := q.push(ctx, QueueDLQ, job); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	key, err := QueueFor(job.Type)
	if err != nil {
		return err
	}
	if err := q.push(ctx, key, job); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
