// Package redis provides a Redis-based job queue implementation.
// This package offers distributed queue operations with blocking dequeue and processing tracking.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// queueName is the single list this queue serves; each consumer gets its
// own Queue instance with a distinct prefix rather than sharing one queue
// keyed by name. In this module only the xref indexer uses one.
const queueName = "jobs"

// Queue handles job queue operations using Redis.
type Queue struct {
	client *redis.Client
	ctx    context.Context
	prefix string
}

// Job is one unit of work: an opaque, caller-defined payload plus the
// bookkeeping the queue needs for at-least-once redelivery.
type Job struct {
	ID         string          `json:"id"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	RetryCount int             `json:"retry_count"`
	Payload    json.RawMessage `json:"payload"`
}

// Config configures the Redis queue.
type Config struct {
	RedisURL  string // defaults to ADAPTARR_REDIS_URL or redis://localhost:6379/0
	KeyPrefix string // defaults to "queue:"
}

// NewQueue creates a new Redis queue client.
func NewQueue(ctx context.Context, config Config) (*Queue, error) {
	redisURL := config.RedisURL
	if redisURL == "" {
		redisURL = os.Getenv("ADAPTARR_REDIS_URL")
	}
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "queue:"
	}

	return &Queue{client: client, ctx: ctx, prefix: prefix}, nil
}

// Close closes the Redis connection.
func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) key() string           { return q.prefix + queueName }
func (q *Queue) processingKey() string { return q.prefix + "processing" }

// Enqueue appends job to the queue.
func (q *Queue) Enqueue(job Job) error {
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return q.client.RPush(q.ctx, q.key(), string(jobJSON)).Err()
}

// Dequeue blocks up to timeout for the next job, returning (nil, nil) on
// timeout with no job available.
func (q *Queue) Dequeue(timeout time.Duration) (*Job, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := q.client.BLPop(ctx, timeout, q.key()).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}
	if len(result) < 2 {
		return nil, nil
	}

	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// MarkProcessing records jobID as in-flight with a processing deadline.
func (q *Queue) MarkProcessing(jobID string, deadline time.Time) error {
	return q.client.ZAdd(q.ctx, q.processingKey(), redis.Z{Score: float64(deadline.Unix()), Member: jobID}).Err()
}

// CompleteJob removes jobID from the processing set.
func (q *Queue) CompleteJob(jobID string) error {
	return q.client.ZRem(q.ctx, q.processingKey(), jobID).Err()
}

// FailJob clears jobID's in-flight marker and, if requeue is set,
// reinserts it at the tail with an incremented retry count.
func (q *Queue) FailJob(job Job, requeue bool) error {
	if err := q.CompleteJob(job.ID); err != nil {
		return err
	}
	if !requeue {
		return nil
	}
	job.RetryCount++
	job.EnqueuedAt = time.Now()
	return q.Enqueue(job)
}

// GetQueueDepth returns the number of jobs waiting in the queue.
func (q *Queue) GetQueueDepth() (int, error) {
	depth, err := q.client.LLen(q.ctx, q.key()).Result()
	if err != nil {
		return 0, err
	}
	return int(depth), nil
}

// IsProcessing reports whether jobID is currently marked in-flight.
func (q *Queue) IsProcessing(jobID string) (bool, error) {
	_, err := q.client.ZScore(q.ctx, q.processingKey(), jobID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
