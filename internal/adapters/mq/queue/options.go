package queue

import "time"

// Option applies a configuration option to the InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity sets the maximum capacity of the queue.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithEnqueueTimeout makes Enqueue give up with ErrFull after waiting d for
// room. Zero waits as long as the caller's context allows.
func WithEnqueueTimeout(d time.Duration) Option {
	return func(q *InMemoryQueue) {
		if d > 0 {
			q.enqueueTimeout = d
		}
	}
}
