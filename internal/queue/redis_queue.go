package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	// QueueFileCleanup carries deferred deletions of KYC evidence files
	QueueFileCleanup = "kyc_file_cleanup"

	// Default values
	DefaultRetryCount = 5
	DefaultTTL        = 24 * time.Hour
)

// ErrJobNotFound is returned when no state is stored for a job ID
var ErrJobNotFound = errors.New("job not found")

// Redis key prefixes
const (
	queuePrefix     = "queue:"
	delayedPrefix   = "delayed:"
	failedPrefix    = "failed:"
	completedPrefix = "completed:"
	jobPrefix       = "jobs:"
)

// RedisQueue is a job queue backed by Redis lists and sorted sets.
// Ready jobs live in a list, delayed and retried jobs in a sorted set scored
// by their run time, and each job's latest state in a hash with a TTL.
type RedisQueue struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisQueue creates a new Redis queue
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{
		client: client,
		now:    time.Now,
	}
}

func (q *RedisQueue) newJob(queueName string, payload interface{}, runAt time.Time, opts []EnqueueOption) (*Job, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	now := q.now()
	job := &Job{
		ID:         uuid.New().String(),
		Queue:      queueName,
		Payload:    payloadBytes,
		Status:     JobStatusPending,
		MaxRetries: DefaultRetryCount,
		CreatedAt:  now,
		UpdatedAt:  now,
		RunAt:      runAt,
	}
	for _, opt := range opts {
		opt(job)
	}
	return job, nil
}

// Enqueue adds a job to the queue. A job whose ID is already waiting or
// running is not added again.
func (q *RedisQueue) Enqueue(ctx context.Context, queueName string, payload interface{}, opts ...EnqueueOption) (string, error) {
	job, err := q.newJob(queueName, payload, q.now(), opts)
	if err != nil {
		return "", err
	}
	if q.isActive(ctx, job.ID) {
		return job.ID, nil
	}

	jobBytes, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.client.LPush(ctx, queuePrefix+queueName, jobBytes).Err(); err != nil {
		return "", fmt.Errorf("failed to push job to queue: %w", err)
	}

	q.saveJob(ctx, job.ID, jobBytes)
	return job.ID, nil
}

// EnqueueIn adds a job to the queue with a delay. Like Enqueue it skips job
// IDs that are already waiting or running.
func (q *RedisQueue) EnqueueIn(ctx context.Context, queueName string, payload interface{}, delay time.Duration, opts ...EnqueueOption) (string, error) {
	job, err := q.newJob(queueName, payload, q.now().Add(delay), opts)
	if err != nil {
		return "", err
	}
	if q.isActive(ctx, job.ID) {
		return job.ID, nil
	}

	jobBytes, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	err = q.client.ZAdd(ctx, delayedPrefix+queueName, &redis.Z{
		Score:  float64(job.RunAt.Unix()),
		Member: jobBytes,
	}).Err()
	if err != nil {
		return "", fmt.Errorf("failed to add job to delayed queue: %w", err)
	}

	q.saveJob(ctx, job.ID, jobBytes)
	return job.ID, nil
}

// isActive reports whether a job with this ID is pending, delayed or being processed
func (q *RedisQueue) isActive(ctx context.Context, id string) bool {
	existing, err := q.GetJob(ctx, id)
	if err != nil {
		return false
	}
	return existing.Status == JobStatusPending || existing.Status == JobStatusProcessing
}

// saveJob stores the job's latest state for lookup. Failures are logged only.
func (q *RedisQueue) saveJob(ctx context.Context, id string, jobBytes []byte) {
	if err := q.client.HSet(ctx, jobPrefix+id, "data", jobBytes).Err(); err != nil {
		log.Printf("Warning: failed to store job details for %s: %v", id, err)
		return
	}
	if err := q.client.Expire(ctx, jobPrefix+id, DefaultTTL).Err(); err != nil {
		log.Printf("Warning: failed to set TTL on job %s: %v", id, err)
	}
}

// Dequeue waits up to timeout for a job. It returns nil, nil when none is ready.
func (q *RedisQueue) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Job, error) {
	q.moveReadyDelayedJobs(ctx, queueName)

	result, err := q.client.BRPop(ctx, timeout, queuePrefix+queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop job from queue: %w", err)
	}
	if len(result) < 2 {
		return nil, fmt.Errorf("unexpected result format from BRPOP")
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	job.Status = JobStatusProcessing
	job.UpdatedAt = q.now()
	if jobBytes, err := json.Marshal(job); err == nil {
		q.saveJob(ctx, job.ID, jobBytes)
	}

	return &job, nil
}

// moveReadyDelayedJobs moves delayed jobs whose run time has passed to the ready list
func (q *RedisQueue) moveReadyDelayedJobs(ctx context.Context, queueName string) {
	delayedKey := delayedPrefix + queueName

	jobs, err := q.client.ZRangeByScore(ctx, delayedKey, &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", q.now().Unix()),
	}).Result()
	if err != nil {
		log.Printf("Error getting ready delayed jobs: %v", err)
		return
	}

	for _, jobStr := range jobs {
		// Only the worker that wins the ZREM pushes the job.
		removed, err := q.client.ZRem(ctx, delayedKey, jobStr).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, queuePrefix+queueName, jobStr).Err(); err != nil {
			log.Printf("Error moving delayed job to main queue: %v", err)
		}
	}
}

// Complete marks a job as completed
func (q *RedisQueue) Complete(ctx context.Context, job *Job) error {
	job.Status = JobStatusCompleted
	job.UpdatedAt = q.now()

	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	q.saveJob(ctx, job.ID, jobBytes)

	if err := q.client.Incr(ctx, completedPrefix+job.Queue).Err(); err != nil {
		return fmt.Errorf("failed to count completed job: %w", err)
	}
	return nil
}

// Fail records a failed attempt. The job is retried with exponential backoff
// until it has used MaxRetries, then it is moved to the failed set.
func (q *RedisQueue) Fail(ctx context.Context, job *Job, jobErr error) error {
	job.RetryCount++
	job.UpdatedAt = q.now()
	if jobErr != nil {
		job.Error = jobErr.Error()
	}

	if job.RetryCount <= job.MaxRetries {
		job.Status = JobStatusPending
		job.RunAt = q.now().Add(calculateBackoff(job.RetryCount))

		jobBytes, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		err = q.client.ZAdd(ctx, delayedPrefix+job.Queue, &redis.Z{
			Score:  float64(job.RunAt.Unix()),
			Member: jobBytes,
		}).Err()
		if err != nil {
			return fmt.Errorf("failed to add job to delayed queue for retry: %w", err)
		}
		q.saveJob(ctx, job.ID, jobBytes)
		return nil
	}

	job.Status = JobStatusFailed
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.HSet(ctx, failedPrefix+job.Queue, job.ID, jobBytes).Err(); err != nil {
		return fmt.Errorf("failed to add job to failed set: %w", err)
	}
	q.saveJob(ctx, job.ID, jobBytes)
	return nil
}

// GetJob returns the latest stored state of a job
func (q *RedisQueue) GetJob(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.HGet(ctx, jobPrefix+id, "data").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job details: %w", err)
	}
	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// Stats gets statistics for a queue
func (q *RedisQueue) Stats(ctx context.Context, queueName string) (*QueueStats, error) {
	stats := &QueueStats{Queue: queueName}

	waiting, err := q.client.LLen(ctx, queuePrefix+queueName).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get waiting count: %w", err)
	}
	stats.Waiting = int(waiting)

	delayed, err := q.client.ZCard(ctx, delayedPrefix+queueName).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get delayed count: %w", err)
	}
	stats.Delayed = int(delayed)

	failed, err := q.client.HLen(ctx, failedPrefix+queueName).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get failed count: %w", err)
	}
	stats.Failed = int(failed)

	completed, err := q.client.Get(ctx, completedPrefix+queueName).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to get completed count: %w", err)
	}
	stats.Completed = completed

	return stats, nil
}

// Ping checks the Redis connection
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
