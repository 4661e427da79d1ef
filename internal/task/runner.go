package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/asrq/internal/domain"
	"github.com/phrazzld/asrq/internal/recognition"
	"github.com/phrazzld/asrq/internal/store"
)

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// WorkerCount determines how many recognitions run concurrently
	WorkerCount int

	// Backlog is how many dispatched jobs may wait for a free worker
	Backlog int

	// DequeueTimeout bounds each blocking dequeue of the dispatcher
	DequeueTimeout time.Duration

	// ErrorBackoff is the dispatcher's pause after a failed dequeue
	ErrorBackoff time.Duration

	// StuckJobAge defines how long a job can be processing before it is
	// reported as stuck. Zero disables the monitor.
	StuckJobAge time.Duration

	// StuckJobCheckInterval defines how often to check for stuck jobs
	// If zero, defaults to 5 minutes
	StuckJobCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		WorkerCount:           2,
		DequeueTimeout:        time.Second,
		ErrorBackoff:          2 * time.Second,
		StuckJobAge:           30 * time.Minute,
		StuckJobCheckInterval: 5 * time.Minute,
	}
}

// TaskRunner owns the worker pool, the dispatcher and the stuck job monitor.
type TaskRunner struct {
	pool       *WorkerPool
	dispatcher *Dispatcher
	monitor    *StuckJobMonitor
	logger     *slog.Logger

	mu         sync.Mutex
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewTaskRunner creates a new TaskRunner that executes a RecognitionTask
// with recognizer for every job dequeued from queue.
func NewTaskRunner(
	jobs store.JobStore,
	queue store.JobQueue,
	recognizer recognition.Recognizer,
	config TaskRunnerConfig,
	logger *slog.Logger,
) *TaskRunner {
	if logger == nil {
		logger = slog.Default()
	}

	pool := NewWorkerPool(WorkerPoolConfig{
		WorkerCount: config.WorkerCount,
		Backlog:     config.Backlog,
	}, logger)

	newTask := func(job *domain.Job) Task {
		return NewRecognitionTask(job, jobs, recognizer, logger)
	}
	dispatcher := NewDispatcher(queue, jobs, pool, newTask, DispatcherConfig{
		DequeueTimeout: config.DequeueTimeout,
		ErrorBackoff:   config.ErrorBackoff,
	}, logger)

	var monitor *StuckJobMonitor
	if config.StuckJobAge > 0 {
		monitor = NewStuckJobMonitor(jobs, config.StuckJobAge, config.StuckJobCheckInterval, logger)
	}

	r := &TaskRunner{
		pool:       pool,
		dispatcher: dispatcher,
		monitor:    monitor,
		logger:     logger.With("component", "task_runner"),
	}
	pool.SetErrorHandler(func(task Task, err error) {
		level := slog.LevelError
		if errors.Is(err, recognition.ErrRecognitionFailed) {
			level = slog.LevelWarn
		}
		r.logger.Log(context.Background(), level, "task execution failed",
			"task_id", task.ID(),
			"task_type", task.Type(),
			"error", err)
	})
	return r
}

// Start starts the pool first and then the dispatcher and monitor.
func (r *TaskRunner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancelFunc != nil {
		return errors.New("task runner already started")
	}

	r.pool.Start()

	ctx, cancel := context.WithCancel(context.Background())
	r.cancelFunc = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.dispatcher.Run(ctx)
	}()

	if r.monitor != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.monitor.Run(ctx)
		}()
	}

	r.logger.Info("task runner started", "worker_count", r.pool.WorkerCount())
	return nil
}

// Stop cancels the dispatcher, waits for it to hand off any job it holds,
// then waits for the pool to finish every accepted job.
func (r *TaskRunner) Stop() {
	r.mu.Lock()
	cancel := r.cancelFunc
	r.mu.Unlock()
	if cancel == nil {
		return
	}

	r.logger.Info("stopping task runner")
	cancel()
	r.wg.Wait()
	r.pool.Stop()
	r.logger.Info("task runner stopped")
}

// Dispatcher exposes the dispatcher for status reporting.
func (r *TaskRunner) Dispatcher() *Dispatcher {
	return r.dispatcher
}

// Pool exposes the worker pool for status reporting.
func (r *TaskRunner) Pool() *WorkerPool {
	return r.pool
}
