// Package scheduler runs queued export jobs on a fixed pool of workers.
//
// Jobs enter through Submit, which never blocks: a full backlog is reported as
// ErrQueueFull so callers can leave the job queued in the store for the
// daemon's recovery sweep to pick up later. A job ID is held at most once
// between Submit and the end of its processing.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"shipyard/internal/export"
	"shipyard/internal/logging"
	"shipyard/internal/services"
)

// ErrQueueFull is returned when the backlog has no room for another job.
var ErrQueueFull = errors.New("scheduler queue is full")

// Processor runs one job to completion.
type Processor interface {
	ProcessJob(ctx context.Context, jobID string) (*export.Job, error)
}

// Dispatcher is a channel-backed job queue with a fixed worker pool.
type Dispatcher struct {
	processor Processor
	logger    *slog.Logger
	workers   int
	queue     chan string

	mu      sync.Mutex
	held    map[string]struct{}
	active  int
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New builds a dispatcher. Submit may be called before Start; submitted jobs
// wait in the backlog until workers run.
func New(processor Processor, workers, queueSize int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		processor: processor,
		logger:    logging.NewComponentLogger(logger, "scheduler"),
		workers:   workers,
		queue:     make(chan string, queueSize),
		held:      make(map[string]struct{}),
	}
}

// Submit enqueues a job. Submitting a job that is already waiting or running
// is a no-op.
func (d *Dispatcher) Submit(jobID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.held[jobID]; ok {
		return nil
	}
	select {
	case d.queue <- jobID:
		d.held[jobID] = struct{}{}
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.started = true
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(runCtx)
	}
	d.logger.Info("scheduler started",
		logging.Int("workers", d.workers),
		logging.Int("queue_size", cap(d.queue)),
	)
}

// Stop cancels in-flight jobs and waits for workers to exit. Jobs still in the
// backlog stay queued in the store.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	cancel := d.cancel
	d.mu.Unlock()

	cancel()
	d.wg.Wait()
	d.logger.Info("scheduler stopped")
}

// Stats reports backlog depth and the number of jobs being processed.
func (d *Dispatcher) Stats() (waiting, active int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue), d.active
}

func (d *Dispatcher) work(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case jobID := <-d.queue:
			d.run(ctx, jobID)
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, jobID string) {
	d.mu.Lock()
	d.active++
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.active--
		delete(d.held, jobID)
		d.mu.Unlock()
	}()

	ctx = services.WithJobID(ctx, jobID)
	logger := logging.WithContext(ctx, d.logger)
	started := time.Now()
	job, err := d.processor.ProcessJob(ctx, jobID)
	if err != nil {
		logging.ErrorWithContext(logger, "job processing failed", "job_processing_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the job stays in the store; check the job database"),
		)
		return
	}
	if job != nil {
		logger.Debug("job processed",
			logging.String("status", string(job.Status)),
			logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
		)
	}
}
