// Package queue carries clip jobs from the service to the extraction workers.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deepp5/catrack/internal/domain/model"
	"github.com/deepp5/catrack/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Job asks a worker to fingerprint one catalog sample. The worker sends
// exactly one outcome on Reply, which must be buffered so workers never
// block on a caller that has given up.
type Job struct {
	ID     string
	Index  int
	Sample model.SoundSample
	Reply  chan<- model.SampleOutcome
}

// Queue is a bounded FIFO of jobs.
type Queue interface {
	// Enqueue waits for room until ctx ends, the enqueue timeout passes, or
	// the queue closes.
	Enqueue(ctx context.Context, job Job) error

	// Dequeue returns a channel of jobs that ends when the queue closes or
	// ctx is cancelled.
	Dequeue(ctx context.Context) <-chan Job

	Len(ctx context.Context) int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs           chan Job
	capacity       int
	enqueueTimeout time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0.0)
	return q
}

// Capacity returns the queue bound.
func (q *InMemoryQueue) Capacity() int { return q.capacity }

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, job Job) error { //nolint:gocritic // Job travels by value through the channel
	if q.IsClosed() {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}

	var timeout <-chan time.Time
	if q.enqueueTimeout > 0 {
		t := time.NewTimer(q.enqueueTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case q.jobs <- job:
		metrics.RecordQueueEnqueue()
		q.publishSize()
		return nil
	case <-q.done:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	case <-timeout:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return fmt.Errorf("%w after %s", ErrFull, q.enqueueTimeout)
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return fmt.Errorf("enqueue job %s: %w", job.ID, ctx.Err())
	}
}

// Dequeue returns a channel that will receive jobs as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-q.done:
				return
			case job := <-q.jobs:
				select {
				case out <- job:
					metrics.RecordQueueDequeue()
					q.publishSize()
				case <-ctx.Done():
					reject(job, ctx.Err())
					return
				case <-q.done:
					reject(job, ErrClosed)
					return
				}
			}
		}
	}()
	return out
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return q.publishSize()
}

// Close stops the queue. Jobs still waiting are answered with ErrClosed so
// no caller waits on a reply that will never come.
func (q *InMemoryQueue) Close() error {
	q.closeOnce.Do(func() {
		close(q.done)
		for {
			select {
			case job := <-q.jobs:
				reject(job, ErrClosed)
			default:
				q.publishSize()
				return
			}
		}
	})
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}

func (q *InMemoryQueue) publishSize() int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
	return size
}

func reject(job Job, err error) { //nolint:gocritic // Job travels by value through the channel
	if job.Reply == nil {
		return
	}
	select {
	case job.Reply <- model.SampleOutcome{Index: job.Index, Sample: job.Sample, Err: err}:
	default:
	}
}
