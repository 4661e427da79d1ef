package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/phrazzld/asrq/internal/platform/logger"
)

// ErrPoolClosed is returned by Submit once Stop has been called.
var ErrPoolClosed = errors.New("worker pool is closed")

// WorkerPool runs a fixed number of worker goroutines that execute tasks
// handed to Submit. At most WorkerCount tasks execute at once.
type WorkerPool struct {
	// tasks is the intake; its buffer is the backlog
	tasks chan Task

	// workerCount is the number of concurrent workers to start
	workerCount int

	// wg tracks active worker goroutines for clean shutdown
	wg sync.WaitGroup

	// mu guards closed and the close of tasks against concurrent sends
	mu      sync.RWMutex
	closed  bool
	started bool

	// active counts tasks currently executing
	active atomic.Int32

	// logger for structured logging
	logger *slog.Logger

	// errorHandler is called when a task execution fails
	// If nil, errors are only logged
	errorHandler func(task Task, err error)
}

var _ Submitter = (*WorkerPool)(nil)

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start
	// If zero or negative, defaults to 1
	WorkerCount int

	// Backlog is how many accepted tasks may wait for a free worker.
	// Zero means Submit only returns once a worker has taken the task.
	Backlog int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 2,
	}
}

// NewWorkerPool creates a new worker pool with the specified configuration
func NewWorkerPool(config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "worker_pool")

	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = 1
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
	}
	backlog := config.Backlog
	if backlog < 0 {
		backlog = 0
	}

	return &WorkerPool{
		tasks:       make(chan Task, backlog),
		workerCount: workerCount,
		logger:      logger,
	}
}

// SetErrorHandler allows setting a custom error handler for task execution failures
func (p *WorkerPool) SetErrorHandler(handler func(task Task, err error)) {
	p.errorHandler = handler
}

// Start launches the workers. Calling it more than once has no effect.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started", "worker_count", p.workerCount, "backlog", cap(p.tasks))
}

// Submit implements Submitter.
func (p *WorkerPool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("submit task %s: %w", task.ID(), ctx.Err())
	}
}

// Stop closes the intake and waits for every accepted task, including the
// backlog, to finish.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// Active returns the number of tasks currently executing.
func (p *WorkerPool) Active() int {
	return int(p.active.Load())
}

// WorkerCount returns the configured concurrency.
func (p *WorkerPool) WorkerCount() int {
	return p.workerCount
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	log := p.logger.With("worker_id", id)
	log.Debug("starting worker")

	for task := range p.tasks {
		p.execute(task, log)
	}

	log.Debug("task channel closed, stopping worker")
}

// execute runs task with a context that is never cancelled by shutdown.
func (p *WorkerPool) execute(task Task, log *slog.Logger) {
	p.active.Add(1)
	defer p.active.Add(-1)

	log = log.With("task_id", task.ID(), "task_type", task.Type())
	ctx := logger.WithLogger(context.Background(), log)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		return task.Execute(ctx)
	}()

	if err == nil {
		return
	}
	if p.errorHandler != nil {
		p.errorHandler(task, err)
		return
	}
	log.Error("task execution failed", "error", err)
}
