package worker

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu     sync.Mutex
	jobs   []Job
	done   chan string
	failed chan string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{done: make(chan string, 10), failed: make(chan string, 10)}
}

func (q *fakeQueue) Dequeue(timeout time.Duration) (*Job, error) {
	q.mu.Lock()
	if len(q.jobs) == 0 {
		q.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.mu.Unlock()
	return &job, nil
}

func (q *fakeQueue) Enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) MarkProcessing(jobID string, deadline time.Time) error { return nil }

func (q *fakeQueue) CompleteJob(jobID string) error {
	q.done <- jobID
	return nil
}

func (q *fakeQueue) FailJob(job Job, requeue bool) error {
	q.failed <- job.ID
	return nil
}

type countingProcessor struct {
	fail  bool
	panic bool
}

func (p *countingProcessor) Timeout() time.Duration { return time.Second }

func (p *countingProcessor) Process(ctx context.Context, payload []byte) error {
	if p.panic {
		panic("processor exploded")
	}
	if p.fail {
		return errProcessingFailed
	}
	return nil
}

var errProcessingFailed = &procError{}

type procError struct{}

func (*procError) Error() string { return "processing failed" }

func TestPoolCompletesJob(t *testing.T) {
	q := newFakeQueue()
	require.NoError(t, q.Enqueue(Job{ID: "job-1", Payload: []byte("{}")}))

	p := NewPool(q, &countingProcessor{}, 1, logrus.NewEntry(logrus.New()))
	p.Start()
	defer p.Stop()

	select {
	case id := <-q.done:
		require.Equal(t, "job-1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job completion")
	}
}

func TestPoolRequeuesFailedJob(t *testing.T) {
	q := newFakeQueue()
	require.NoError(t, q.Enqueue(Job{ID: "job-2", Payload: []byte("{}")}))

	p := NewPool(q, &countingProcessor{fail: true}, 1, logrus.NewEntry(logrus.New()))
	p.Start()
	defer p.Stop()

	select {
	case id := <-q.failed:
		require.Equal(t, "job-2", id)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job failure")
	}
}

func TestPoolRecoversFromProcessorPanic(t *testing.T) {
	q := newFakeQueue()
	require.NoError(t, q.Enqueue(Job{ID: "job-3", Payload: []byte("{}")}))

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)

	p := NewPool(q, &countingProcessor{panic: true}, 1, logrus.NewEntry(logger))
	p.Start()
	defer p.Stop()

	require.Eventually(t, func() bool {
		return bytes.Contains(buf.Bytes(), []byte("recovered from panic"))
	}, 2*time.Second, 10*time.Millisecond, "worker goroutine must recover instead of crashing the process")
}
