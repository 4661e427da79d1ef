package task

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/asrq/internal/domain"
	"github.com/phrazzld/asrq/internal/store"
	"github.com/sethvargo/go-retry"
)

// Lookup retries for a dequeued ID whose record could not be read.
const (
	lookupRetries     = 5
	lookupBaseBackoff = 50 * time.Millisecond
)

// DispatcherState is what the dispatch loop is doing.
type DispatcherState string

// Dispatcher states
const (
	DispatcherIdle        DispatcherState = "idle"
	DispatcherWaiting     DispatcherState = "waiting"
	DispatcherDispatching DispatcherState = "dispatching"
)

// TaskFactory builds the task that processes job.
type TaskFactory func(job *domain.Job) Task

// DispatcherConfig tunes the dispatch loop.
type DispatcherConfig struct {
	// DequeueTimeout bounds each blocking dequeue, so cancellation is
	// noticed at least this often. Defaults to one second.
	DequeueTimeout time.Duration

	// ErrorBackoff is the pause after a failed dequeue. It also caps the
	// backoff between lookups of a dequeued job whose record could not be read.
	ErrorBackoff time.Duration
}

// Dispatcher moves job IDs from the queue to the worker pool, one at a time.
type Dispatcher struct {
	queue   store.JobQueue
	jobs    store.JobStore
	pool    Submitter
	newTask TaskFactory
	config  DispatcherConfig
	logger  *slog.Logger

	state      atomic.Value
	dispatched atomic.Int64
	discarded  atomic.Int64
	requeued   atomic.Int64
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	queue store.JobQueue,
	jobs store.JobStore,
	pool Submitter,
	newTask TaskFactory,
	config DispatcherConfig,
	logger *slog.Logger,
) *Dispatcher {
	if config.DequeueTimeout <= 0 {
		config.DequeueTimeout = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		queue:   queue,
		jobs:    jobs,
		pool:    pool,
		newTask: newTask,
		config:  config,
		logger:  logger.With("component", "dispatcher"),
	}
	d.state.Store(DispatcherIdle)
	return d
}

// State returns the current loop state.
func (d *Dispatcher) State() DispatcherState {
	return d.state.Load().(DispatcherState)
}

// Dispatched returns how many jobs were handed to the pool.
func (d *Dispatcher) Dispatched() int64 {
	return d.dispatched.Load()
}

// Discarded returns how many dequeued IDs were dropped because their job
// could not be loaded.
func (d *Dispatcher) Discarded() int64 {
	return d.discarded.Load()
}

// Requeued returns how many dequeued IDs were put back on the queue because
// their job could not be loaded or handed to the pool.
func (d *Dispatcher) Requeued() int64 {
	return d.requeued.Load()
}

// Run dispatches until ctx is cancelled. An ID that was already dequeued
// when ctx is cancelled is still handed to the pool before Run returns.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatcher started",
		"dequeue_timeout", d.config.DequeueTimeout,
		"error_backoff", d.config.ErrorBackoff)
	defer func() {
		d.state.Store(DispatcherIdle)
		d.logger.Info("dispatcher stopped")
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		d.state.Store(DispatcherWaiting)
		id, err := d.queue.Dequeue(ctx, d.config.DequeueTimeout)
		switch {
		case err == nil:
		case errors.Is(err, store.ErrQueueEmpty):
			continue
		case ctx.Err() != nil:
			return
		default:
			d.logger.Error("failed to dequeue job", "error", err, "backoff", d.config.ErrorBackoff)
			if !sleep(ctx, d.config.ErrorBackoff) {
				return
			}
			continue
		}

		d.state.Store(DispatcherDispatching)
		d.dispatch(context.WithoutCancel(ctx), id)
	}
}

// dispatch loads the job and blocks until the pool accepts its task.
// Only an ID without a record, or with a record that is no longer pending,
// is dropped. Any other failure puts the ID back on the queue.
func (d *Dispatcher) dispatch(ctx context.Context, id uuid.UUID) {
	log := d.logger.With("job_id", id)

	job, err := d.load(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			d.discarded.Add(1)
			log.Warn("dequeued job has no record; discarding")
			return
		}
		log.Error("failed to load dequeued job", "error", err)
		d.requeue(ctx, log, id)
		return
	}

	if job.Status != domain.JobStatusPending {
		d.discarded.Add(1)
		log.Warn("dequeued job is not pending; discarding", "status", job.Status)
		return
	}

	if err := d.pool.Submit(ctx, d.newTask(job)); err != nil {
		log.Error("worker pool refused job", "error", err)
		d.requeue(ctx, log, id)
		return
	}

	d.dispatched.Add(1)
	log.Debug("job handed to worker pool")
}

// load reads the job for a dequeued ID, retrying every error except
// store.ErrJobNotFound.
func (d *Dispatcher) load(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return retry.DoValue(ctx, d.backoff(), func(ctx context.Context) (*domain.Job, error) {
		job, err := d.jobs.GetByID(ctx, id)
		if err != nil && !errors.Is(err, store.ErrJobNotFound) {
			d.logger.Warn("retrying job lookup", "job_id", id, "error", err)
			return nil, retry.RetryableError(err)
		}
		return job, err
	})
}

// requeue appends id to the queue again so another pass can pick it up.
func (d *Dispatcher) requeue(ctx context.Context, log *slog.Logger, id uuid.UUID) {
	err := retry.Do(ctx, d.backoff(), func(ctx context.Context) error {
		return retry.RetryableError(d.queue.Enqueue(ctx, id))
	})
	if err != nil {
		d.discarded.Add(1)
		log.Error("failed to requeue job; job stays pending without a queue entry", "error", err)
		return
	}
	d.requeued.Add(1)
	log.Warn("job requeued")
}

func (d *Dispatcher) backoff() retry.Backoff {
	ceiling := d.config.ErrorBackoff
	if ceiling < lookupBaseBackoff {
		ceiling = lookupBaseBackoff
	}
	return retry.WithMaxRetries(lookupRetries,
		retry.WithCappedDuration(ceiling, retry.NewExponential(lookupBaseBackoff)))
}

// sleep waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
