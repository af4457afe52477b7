package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/pipeline"
)

// ErrQueueClosed is returned by Enqueue after Shutdown has started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one document submitted for background processing.
type Job struct {
	Request     pipeline.Request
	SubmittedAt time.Time
	TraceID     string
}

// Result is delivered to the result hook once a job finishes.
type Result struct {
	Job     Job
	Outcome pipeline.Outcome
	Err     error
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

type RunQueue struct {
	runner  pipeline.Runner
	logger  *slog.Logger
	workers int
	timeout time.Duration
	hook    func(Result)

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*RunQueue)

func WithWorkers(n int) Option {
	return func(q *RunQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *RunQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithRunTimeout(d time.Duration) Option {
	return func(q *RunQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithResultHook registers fn to receive every finished job. fn is called
// from worker goroutines and must be safe for concurrent use.
func WithResultHook(fn func(Result)) Option {
	return func(q *RunQueue) { q.hook = fn }
}

func NewRunQueue(runner pipeline.Runner, logger *slog.Logger, opts ...Option) *RunQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &RunQueue{
		runner:  runner,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *RunQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.process(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *RunQueue) process(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	if job.TraceID != "" {
		ctx = common.WithTraceID(ctx, job.TraceID)
	}
	out, err := q.runner.Run(ctx, job.Request)
	cancel()

	key := job.Request.DocumentKey
	switch {
	case err != nil:
		q.logger.Error("processing failed", "worker_id", workerID, "document_key", key, "error", err)
	case out.Failure != nil:
		q.logger.Warn("run failed", "worker_id", workerID, "document_key", key, "run_id", out.RunID, "code", out.Failure.Code)
	default:
		q.logger.Info("processed document successfully", "worker_id", workerID, "document_key", key, "run_id", out.RunID, "records", len(out.Records))
	}
	if q.hook != nil {
		q.hook(Result{Job: job, Outcome: out, Err: err})
	}
}

// Enqueue hands job to the workers, blocking while the queue is full until
// ctx is done.
func (q *RunQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "document_key", job.Request.DocumentKey)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued document for processing", "document_key", job.Request.DocumentKey, "force", job.Request.Force)
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "document_key", job.Request.DocumentKey)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to drain or ctx to end.
func (q *RunQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
