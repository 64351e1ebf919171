package worker

import (
	"time"

	redisqueue "adaptarr.dev/queue/redis"
)

// RedisQueue adapts queue/redis.Queue to the worker.Queue interface,
// translating between the queue package's wire Job and the pool's
// transport-agnostic Job.
type RedisQueue struct {
	Queue *redisqueue.Queue
}

func (r RedisQueue) Dequeue(timeout time.Duration) (*Job, error) {
	job, err := r.Queue.Dequeue(timeout)
	if err != nil || job == nil {
		return nil, err
	}
	return &Job{ID: job.ID, EnqueuedAt: job.EnqueuedAt, RetryCount: job.RetryCount, Payload: job.Payload}, nil
}

func (r RedisQueue) Enqueue(job Job) error {
	return r.Queue.Enqueue(redisqueue.Job{
		ID: job.ID, EnqueuedAt: job.EnqueuedAt, RetryCount: job.RetryCount, Payload: job.Payload,
	})
}

func (r RedisQueue) MarkProcessing(jobID string, deadline time.Time) error {
	return r.Queue.MarkProcessing(jobID, deadline)
}

func (r RedisQueue) CompleteJob(jobID string) error {
	return r.Queue.CompleteJob(jobID)
}

func (r RedisQueue) FailJob(job Job, requeue bool) error {
	return r.Queue.FailJob(redisqueue.Job{
		ID: job.ID, EnqueuedAt: job.EnqueuedAt, RetryCount: job.RetryCount, Payload: job.Payload,
	}, requeue)
}

var _ Queue = RedisQueue{}
