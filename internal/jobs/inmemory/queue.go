package inmemory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/jobs"
)

// ErrClosed is returned when publishing to or starting a stopped queue.
var ErrClosed = errors.New("queue is closed")

// Queue is a channel-backed Publisher and Consumer for a single process.
type Queue struct {
	jobChan    chan *jobs.IndexJob
	closeChan  chan struct{}
	wg         sync.WaitGroup
	mu         sync.RWMutex
	store      jobs.JobStore
	closed     bool
	workers    int
	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger
}

// Config sizes the queue.
type Config struct {
	BufferSize int
	Workers    int
	MaxRetries int
	// Backoff is multiplied by the retry count before a failed job is
	// re-enqueued.
	Backoff time.Duration
}

// NewQueue creates a new in-memory job queue.
func NewQueue(cfg Config, store jobs.JobStore, log zerolog.Logger) *Queue {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &Queue{
		jobChan:    make(chan *jobs.IndexJob, cfg.BufferSize),
		closeChan:  make(chan struct{}),
		store:      store,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		log:        log,
	}
}

// PublishIndex enqueues an index job, filling in ID, status and limits.
func (q *Queue) PublishIndex(ctx context.Context, job *jobs.IndexJob) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.maxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return err
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return ErrClosed
	}
}

// Start launches the worker goroutines and returns.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs one job and schedules a retry on failure.
func (q *Queue) processJob(ctx context.Context, job *jobs.IndexJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now().UTC()
	job.StartedAt = &now
	q.save(ctx, job)

	err := handler(ctx, job)

	completedAt := time.Now().UTC()
	job.CompletedAt = &completedAt

	if err == nil {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.save(ctx, job)
		return
	}

	job.Error = err.Error()
	if job.RetryCount >= job.MaxRetries {
		job.Status = jobs.JobStatusFailed
		q.save(ctx, job)
		return
	}

	job.RetryCount++
	job.Status = jobs.JobStatusRetrying
	// Saved before the retry is scheduled so the retry's state always wins.
	q.save(ctx, job)

	retry := *job
	backoff := time.Duration(job.RetryCount) * q.backoff
	time.AfterFunc(backoff, func() {
		retry.Status = jobs.JobStatusPending
		retry.StartedAt = nil
		retry.CompletedAt = nil
		if err := q.PublishIndex(ctx, &retry); err != nil {
			q.log.Warn().Err(err).Str("job_id", retry.JobID).Msg("Failed to re-enqueue job")
		}
	})
}

func (q *Queue) save(ctx context.Context, job *jobs.IndexJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.log.Warn().Err(err).Str("job_id", job.JobID).Msg("Failed to save job state")
	}
}

// Stop stops the workers and waits for in-flight jobs, up to ctx.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
