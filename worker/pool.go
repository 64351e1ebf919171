// Package worker provides a generic worker pool for processing queued jobs.
// This package offers concurrent job processing with configurable worker counts per queue.
package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"adaptarr.dev/logging"
)

// Queue defines the interface for job queue operations a worker pool
// consumes. adaptarr's concrete implementation is queue/redis.Queue.
type Queue interface {
	Dequeue(timeout time.Duration) (*Job, error)
	Enqueue(job Job) error
	MarkProcessing(jobID string, deadline time.Time) error
	CompleteJob(jobID string) error
	FailJob(job Job, requeue bool) error
}

// Job is the queue envelope a Processor receives; Payload is opaque to
// the pool and interpreted by the processor alone.
type Job struct {
	ID         string
	EnqueuedAt time.Time
	RetryCount int
	Payload    []byte
}

// Processor handles one dequeued job's payload.
type Processor interface {
	Process(ctx context.Context, payload []byte) error
	Timeout() time.Duration
}

// Pool runs a fixed number of workers draining one queue. The
// xref indexer requires exactly one worker (a "single-writer" to avoid
// write contention on XrefTarget rows); the digest job does not use this
// pool at all (it is a plain ticker, see RunDigestLoop).
type Pool struct {
	queue     Queue
	processor Processor
	workers   int
	log       *logrus.Entry
	stopChan  chan struct{}
}

// NewPool creates a pool of n workers draining queue with processor.
func NewPool(queue Queue, processor Processor, workers int, log *logrus.Entry) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{queue: queue, processor: processor, workers: workers, log: log, stopChan: make(chan struct{})}
}

// Start launches the pool's workers in the background.
func (p *Pool) Start() {
	p.log.WithField("workers", p.workers).Info("starting worker pool")
	for i := 0; i < p.workers; i++ {
		go p.runWorker(i)
	}
}

// Stop signals all workers to exit after their current job.
func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) runWorker(id int) {
	log := p.log.WithField("worker", id)
	defer logging.RecoverAndLog(log)
	log.Info("worker started")
	for {
		select {
		case <-p.stopChan:
			log.Info("worker stopped")
			return
		default:
			if err := p.processNext(log); err != nil {
				log.WithError(err).Warn("job processing error")
				time.Sleep(time.Second)
			}
		}
	}
}

func (p *Pool) processNext(log *logrus.Entry) error {
	job, err := p.queue.Dequeue(5 * time.Second)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}

	log = log.WithField("job_id", job.ID)
	timeout := p.processor.Timeout()
	if err := p.queue.MarkProcessing(job.ID, time.Now().Add(timeout)); err != nil {
		log.WithError(err).Warn("failed to mark job processing, re-enqueueing")
		_ = p.queue.Enqueue(*job)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := p.processor.Process(ctx, job.Payload); err != nil {
		log.WithError(err).Warn("job failed")
		if failErr := p.queue.FailJob(*job, true); failErr != nil {
			log.WithError(failErr).Warn("failed to requeue failed job")
		}
		return nil
	}

	if err := p.queue.CompleteJob(job.ID); err != nil {
		log.WithError(err).Warn("failed to mark job complete")
	}
	return nil
}
