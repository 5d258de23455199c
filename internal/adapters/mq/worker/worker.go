// Package worker runs clip jobs through the fetch, decode and extract
// pipeline on a fixed pool of goroutines.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/deepp5/catrack/internal/adapters/mq/queue"
	"github.com/deepp5/catrack/internal/domain/model"
	"github.com/deepp5/catrack/pkg/logger"
	"github.com/deepp5/catrack/pkg/metrics"
)

const (
	defaultClipTimeout  = 60 * time.Second
	poolShutdownTimeout = 30 * time.Second
)

// Processor turns one stored clip into a fingerprint. It must be safe for
// concurrent use.
type Processor interface {
	Process(ctx context.Context, ref model.MediaRef) (model.Fingerprint, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue       Queue
	processor   Processor
	name        string
	clipTimeout time.Duration
	active      *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, p Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:       q,
		processor:   p,
		name:        "worker",
		clipTimeout: defaultClipTimeout,
		active:      &atomic.Int64{},
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.handle(ctx, job)
		}
	}
}

// Shutdown stops the worker after its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// handle runs one job and always answers it.
func (w *InMemoryWorker) handle(ctx context.Context, job queue.Job) { //nolint:gocritic // Job travels by value through the channel
	start := time.Now()
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	clipCtx, cancel := context.WithTimeout(ctx, w.clipTimeout)
	defer cancel()

	out := model.SampleOutcome{Index: job.Index, Sample: job.Sample}
	out.Fingerprint, out.Err = w.safeProcess(clipCtx, job.Sample.Media)
	if out.Err != nil {
		out.Fingerprint = nil
		metrics.RecordWorkerError()
		w.logger.Debug(ctx, "clip skipped",
			logger.String("job_id", job.ID),
			logger.String("media_id", job.Sample.Media.ID),
			logger.Error(out.Err))
	}

	if job.Reply != nil {
		select {
		case job.Reply <- out:
		default:
			w.logger.Warn(ctx, "reply channel full, outcome dropped", logger.String("job_id", job.ID))
		}
	}
}

// safeProcess keeps a panicking decoder from taking the pool down.
func (w *InMemoryWorker) safeProcess(ctx context.Context, ref model.MediaRef) (fp model.Fingerprint, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("worker", "panic")
			err = fmt.Errorf("process %s: panic: %v", ref.ID, r)
		}
	}()
	return w.processor.Process(ctx, ref)
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	active  atomic.Int64
	stopped atomic.Bool
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers; zero or less means one per
// CPU. Options are applied to every worker.
func NewPool(workerCount int, q Queue, p Processor, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		w := NewInMemoryWorker(q, p, wopts...)
		w.active = &pool.active
		pool.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Active returns how many workers are processing a job right now.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for every worker to finish its job.
func (p *Pool) Shutdown(ctx context.Context) error {
	if !p.stopped.CompareAndSwap(false, true) {
		return nil
	}
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
