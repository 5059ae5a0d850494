// Package jobs runs background work, such as outgoing mail, on an in-process
// worker pool with bounded retries.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrQueueStopped is returned by Enqueue once the queue is not accepting work.
var ErrQueueStopped = errors.New("queue stopped")

// Job is one unit of work. Attempt counts failed runs so far.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

type Handler func(context.Context, Job) error

// DiscardHandler is told about jobs that exhausted their retries.
type DiscardHandler func(Job, error)

// QueueConfig sizes the pool. Zero values fall back to one worker, a buffer
// of four slots per worker, a one second first retry and a one minute cap.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	MaxDelay   time.Duration
	OnDiscard  DiscardHandler
	Logger     *zap.Logger
}

// Stats is a point-in-time view of queue activity.
type Stats struct {
	Pending   int
	Succeeded int64
	Retried   int64
	Discarded int64
}

// run holds everything tied to one Start/Stop cycle.
type run struct {
	ctx    context.Context
	cancel context.CancelFunc
	busy   sync.WaitGroup
}

// Queue fans jobs out to a fixed set of goroutines. Failed jobs are retried
// with exponential backoff, then handed to OnDiscard.
type Queue struct {
	name    string
	handler Handler
	cfg     QueueConfig
	logger  *zap.Logger
	jobs    chan Job

	mu  sync.Mutex
	cur *run

	succeeded atomic.Int64
	retried   atomic.Int64
	discarded atomic.Int64
}

func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	cfg.Workers = max(cfg.Workers, 1)
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 4 * cfg.Workers
	}
	cfg.MaxRetries = max(cfg.MaxRetries, 0)
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  logger.With(zap.String("queue", name)),
		jobs:    make(chan Job, cfg.BufferSize),
	}
}

// Start launches the workers. A second call while running is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cur != nil {
		return
	}
	r := &run{}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.busy.Add(q.cfg.Workers)
	for n := 0; n < q.cfg.Workers; n++ {
		go q.work(r)
	}
	q.cur = r
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop cancels workers and scheduled retries and waits for in-flight
// handlers. Buffered jobs are dropped.
func (q *Queue) Stop() {
	q.mu.Lock()
	r := q.cur
	q.cur = nil
	q.mu.Unlock()
	if r == nil {
		return
	}
	r.cancel()
	r.busy.Wait()
	q.logger.Info("queue stopped", zap.Int("dropped", len(q.jobs)))
}

// Pending returns the number of buffered jobs.
func (q *Queue) Pending() int {
	return len(q.jobs)
}

func (q *Queue) Stats() Stats {
	return Stats{
		Pending:   len(q.jobs),
		Succeeded: q.succeeded.Load(),
		Retried:   q.retried.Load(),
		Discarded: q.discarded.Load(),
	}
}

// Enqueue pushes a job onto the queue, blocking while the buffer is full.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	r := q.cur
	q.mu.Unlock()
	if r == nil {
		return fmt.Errorf("%w: %s", ErrQueueStopped, q.name)
	}
	return q.push(r, job)
}

func (q *Queue) push(r *run, job Job) error {
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}
	select {
	case q.jobs <- job:
		return nil
	case <-r.ctx.Done():
		return fmt.Errorf("%w: %s: %v", ErrQueueStopped, q.name, r.ctx.Err())
	}
}

func (q *Queue) work(r *run) {
	defer r.busy.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case job := <-q.jobs:
			err := q.handler(r.ctx, job)
			if err == nil {
				q.succeeded.Add(1)
				continue
			}
			q.fail(r, job, err)
		}
	}
}

// backoff returns RetryDelay * 2^(attempt-1), capped at MaxDelay.
func (q *Queue) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 32 {
		return q.cfg.MaxDelay
	}
	d := q.cfg.RetryDelay << (attempt - 1)
	if d <= 0 || d > q.cfg.MaxDelay {
		return q.cfg.MaxDelay
	}
	return d
}

func (q *Queue) fail(r *run, job Job, err error) {
	job.Attempt++
	log := q.logger.With(zap.String("job_id", job.ID), zap.String("type", job.Type), zap.Int("attempt", job.Attempt))
	if job.Attempt > q.cfg.MaxRetries {
		q.discarded.Add(1)
		log.Error("job exceeded retries", zap.Error(err))
		if q.cfg.OnDiscard != nil {
			q.cfg.OnDiscard(job, err)
		}
		return
	}

	q.retried.Add(1)
	delay := q.backoff(job.Attempt)
	log.Warn("job failed, retrying", zap.Duration("delay", delay), zap.Error(err))

	r.busy.Add(1)
	go func() {
		defer r.busy.Done()
		select {
		case <-r.ctx.Done():
		case <-time.After(delay):
			if err := q.push(r, job); err != nil {
				log.Error("failed to requeue job", zap.Error(err))
			}
		}
	}()
}
