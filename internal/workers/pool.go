// Package workers provides a bounded background worker pool. Jobs wait in a
// fixed-size queue until one of a fixed number of workers picks them up;
// Submit never blocks and reports a full queue instead.
package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anstrom/netport/internal/errors"
	"github.com/anstrom/netport/internal/logging"
	"github.com/anstrom/netport/internal/metrics"
)

// Job represents a unit of work to be executed by a worker.
type Job interface {
	// Execute performs the job. The context is cancelled when the pool is
	// forced to stop.
	Execute(ctx context.Context) error
	// ID returns a unique identifier for the job.
	ID() string
}

// Config holds configuration for the worker pool.
type Config struct {
	// Size is the number of worker goroutines.
	Size int `yaml:"workers" json:"workers"`
	// QueueSize is the maximum number of jobs waiting for a worker.
	QueueSize int `yaml:"queue_size" json:"queue_size"`
	// ShutdownTimeout is how long Shutdown waits before cancelling running jobs.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// DefaultConfig returns a default worker pool configuration.
func DefaultConfig() Config {
	return Config{
		Size:            4,
		QueueSize:       100,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Pool manages a pool of worker goroutines.
type Pool struct {
	config    Config
	jobs      chan Job
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	logger    *logging.Logger
	metrics   *metrics.PrometheusMetrics
}

// New creates a new worker pool. Non-positive sizes fall back to defaults.
func New(config Config, logger *logging.Logger, m *metrics.PrometheusMetrics) *Pool {
	defaults := DefaultConfig()
	if config.Size <= 0 {
		config.Size = defaults.Size
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		config:  config,
		jobs:    make(chan Job, config.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.WithComponent("workers"),
		metrics: m,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("Starting worker pool",
			"worker_count", p.config.Size,
			"queue_size", p.config.QueueSize)

		for i := 0; i < p.config.Size; i++ {
			p.wg.Add(1)
			go p.run(i)
		}
		p.metrics.SetWorkerCount(p.config.Size)
	})
}

// Submit queues job without blocking. It fails with QUEUE_FULL when the
// queue is at capacity and with CANCELED after Shutdown.
func (p *Pool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return errors.NewScanError(errors.CodeCanceled, "worker pool is shut down")
	}

	select {
	case p.jobs <- job:
		p.metrics.AddQueuedJobs(1)
		p.logger.Debug("Job queued", "job_id", job.ID())
		return nil
	default:
		return errors.NewScanErrorWithTarget(errors.CodeQueueFull, "job queue is full", job.ID())
	}
}

// Shutdown stops accepting jobs and waits for queued and running jobs to
// finish. After ShutdownTimeout the pool context is cancelled: running jobs
// can abort, and every job still queued is executed with the cancelled
// context. Shutdown then waits for the workers to exit.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.logger.Info("Shutting down worker pool")

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.config.ShutdownTimeout):
		p.logger.Warn("Worker pool shutdown timeout, cancelling running jobs")
		p.cancel()
		<-done
	}
	p.cancel()
	p.logger.Info("Worker pool shutdown completed")
}

func (p *Pool) run(id int) {
	defer p.wg.Done()

	// Jobs still queued after a forced stop run with the cancelled context.
	for job := range p.jobs {
		p.metrics.AddQueuedJobs(-1)
		p.execute(id, job)
	}
}

func (p *Pool) execute(workerID int, job Job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Job panicked", "job_id", job.ID(), "worker_id", workerID, "panic", fmt.Sprint(r))
		}
		p.metrics.RecordJobDuration(time.Since(start))
	}()

	if err := job.Execute(p.ctx); err != nil {
		p.logger.Debug("Job finished with error", "job_id", job.ID(), "worker_id", workerID, "error", err)
		return
	}
	p.logger.Debug("Job finished", "job_id", job.ID(), "worker_id", workerID, "duration", time.Since(start))
}

// FuncJob adapts a function to the Job interface.
type FuncJob struct {
	id string
	fn func(ctx context.Context) error
}

// NewFuncJob creates a job that runs fn.
func NewFuncJob(id string, fn func(ctx context.Context) error) *FuncJob {
	return &FuncJob{id: id, fn: fn}
}

// Execute implements the Job interface.
func (j *FuncJob) Execute(ctx context.Context) error {
	return j.fn(ctx)
}

// ID implements the Job interface.
func (j *FuncJob) ID() string {
	return j.id
}
