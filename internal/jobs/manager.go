// Package jobs runs scans in the background for the HTTP API and the
// scheduler. Each job has a short identifier and moves from queued to
// running to complete or error while clients poll or subscribe to it.
package jobs

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/netport/internal/errors"
	"github.com/anstrom/netport/internal/export"
	"github.com/anstrom/netport/internal/logging"
	"github.com/anstrom/netport/internal/metrics"
	"github.com/anstrom/netport/internal/scanning"
	"github.com/anstrom/netport/internal/workers"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// Terminal reports whether no further updates will happen.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

const (
	idLength         = 8
	subscriberBuffer = 32
)

// Job is a point-in-time snapshot of a background scan.
type Job struct {
	ID            string                `json:"job_id"`
	Host          string                `json:"host"`
	Range         scanning.PortRange    `json:"range" swaggertype:"string" example:"1-1024"`
	Status        Status                `json:"status"`
	Progress      float64               `json:"progress"`
	Scanned       int                   `json:"scanned"`
	Total         int                   `json:"total"`
	OpenPortsLive []scanning.PortResult `json:"open_ports_live"`
	Results       *scanning.ScanReport  `json:"results"`
	Error         string                `json:"error,omitempty"`
	ReportPath    string                `json:"report_path,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	FinishedAt    *time.Time            `json:"finished_at,omitempty"`
}

func (j *Job) clone() Job {
	c := *j
	c.OpenPortsLive = slices.Clone(j.OpenPortsLive)
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return c
}

// Request describes a scan to run in the background.
type Request struct {
	Host        string
	Range       scanning.PortRange
	Concurrency int
	Timeout     time.Duration
}

// Config holds job manager settings.
type Config struct {
	// ReportsDir receives scan_<id>.json for every completed job; empty disables it
	ReportsDir string
	// MaxConcurrency caps the concurrency of any request
	MaxConcurrency int
}

type entry struct {
	job         Job
	subscribers []chan Job
}

// Manager owns the in-memory job table and feeds jobs to a worker pool.
type Manager struct {
	runner  ScanRunner
	pool    *workers.Pool
	config  Config
	store   ReportStore
	logger  *logging.Logger
	metrics *metrics.PrometheusMetrics

	mu   sync.RWMutex
	jobs map[string]*entry
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore persists completed reports. Persistence failures are logged only.
func WithStore(store ReportStore) Option {
	return func(m *Manager) { m.store = store }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics records job outcomes.
func WithMetrics(pm *metrics.PrometheusMetrics) Option {
	return func(m *Manager) { m.metrics = pm }
}

// NewManager creates a manager that runs scans with runner on pool.
// The caller starts and shuts down the pool.
func NewManager(runner ScanRunner, pool *workers.Pool, config Config, opts ...Option) *Manager {
	if config.MaxConcurrency <= 0 || config.MaxConcurrency > scanning.MaxConcurrency {
		config.MaxConcurrency = scanning.MaxConcurrency
	}
	m := &Manager{
		runner: runner,
		pool:   pool,
		config: config,
		logger: logging.Default(),
		jobs:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("jobs")
	return m
}

// Submit validates req, records a queued job and hands it to the pool.
// It returns the job id, or a VALIDATION, INVALID_RANGE or QUEUE_FULL error.
func (m *Manager) Submit(req Request) (string, error) {
	cfg := scanning.ScanConfig{
		Host:        req.Host,
		Range:       req.Range,
		Concurrency: min(req.Concurrency, m.config.MaxConcurrency),
		Timeout:     req.Timeout,
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	m.mu.Lock()
	id := m.newID()
	m.jobs[id] = &entry{job: Job{
		ID:            id,
		Host:          req.Host,
		Range:         req.Range,
		Status:        StatusQueued,
		Total:         req.Range.Total(),
		OpenPortsLive: []scanning.PortResult{},
		CreatedAt:     time.Now(),
	}}
	m.mu.Unlock()

	job := workers.NewFuncJob(id, func(ctx context.Context) error {
		return m.run(ctx, id, cfg)
	})
	if err := m.pool.Submit(job); err != nil {
		m.mu.Lock()
		delete(m.jobs, id)
		m.mu.Unlock()
		m.metrics.IncrementJobsTotal("rejected")
		return "", err
	}

	m.logger.WithJobID(id).Info("Scan job queued",
		"host", req.Host,
		"range", req.Range.String(),
		"concurrency", cfg.Concurrency)
	return id, nil
}

// newID returns an unused short id. Callers hold m.mu.
func (m *Manager) newID() string {
	for {
		id := uuid.NewString()[:idLength]
		if _, taken := m.jobs[id]; !taken {
			return id
		}
	}
}

// Get returns a snapshot of the job.
func (m *Manager) Get(id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.jobs[id]
	if !ok {
		return Job{}, errors.ErrJobNotFound(id)
	}
	return e.job.clone(), nil
}

// Export writes the completed report of job id to w. It fails with NOT_FOUND
// for unknown jobs and NOT_READY until the job is complete.
func (m *Manager) Export(id string, f export.Format, w io.Writer) error {
	job, err := m.Get(id)
	if err != nil {
		return err
	}
	if job.Status != StatusComplete || job.Results == nil {
		return errors.ErrJobNotReady(id)
	}
	return export.Write(w, f, job.Results)
}

// Subscribe returns a channel of job snapshots, one per progress update,
// closed after the terminal snapshot. Slow readers miss intermediate
// updates but always receive the terminal one. The returned func detaches
// the subscription early.
func (m *Manager) Subscribe(id string) (<-chan Job, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.jobs[id]
	if !ok {
		return nil, nil, errors.ErrJobNotFound(id)
	}

	ch := make(chan Job, subscriberBuffer)
	ch <- e.job.clone()
	if e.job.Status.Terminal() {
		close(ch)
		return ch, func() {}, nil
	}
	e.subscribers = append(e.subscribers, ch)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, sub := range e.subscribers {
				if sub == ch {
					e.subscribers = slices.Delete(e.subscribers, i, i+1)
					close(ch)
					return
				}
			}
		})
	}
	return ch, cancel, nil
}

func (m *Manager) run(ctx context.Context, id string, cfg scanning.ScanConfig) error {
	logger := m.logger.WithJobID(id)
	if err := ctx.Err(); err != nil {
		err = errors.WrapScanErrorWithTarget(errors.CodeCanceled, "Scan canceled", cfg.Host, err)
		m.fail(id, err)
		logger.Warn("Scan job canceled before it started", "host", cfg.Host)
		return err
	}

	m.update(id, func(j *Job) { j.Status = StatusRunning })
	logger.Info("Scan job started", "host", cfg.Host)

	sink := scanning.ProgressFunc(func(event scanning.ProgressEvent) {
		m.update(id, func(j *Job) {
			j.Progress = event.Percent()
			j.Scanned = event.Scanned
			j.Total = event.Total
			if event.Result.State == scanning.StateOpen {
				j.OpenPortsLive = append(j.OpenPortsLive, event.Result)
			}
		})
	})

	report, err := m.runner.Scan(ctx, cfg, sink)
	if err != nil {
		m.fail(id, err)
		logger.ErrorScan("Scan job failed", cfg.Host, err)
		return err
	}

	reportPath := m.saveReport(ctx, logger, id, report)
	m.finish(id, func(j *Job) {
		j.Status = StatusComplete
		j.Progress = 100
		j.Scanned = report.TotalPortsScanned
		j.Results = report
		j.ReportPath = reportPath
	})
	m.metrics.IncrementJobsTotal(string(StatusComplete))
	logger.Info("Scan job completed",
		"host", cfg.Host,
		"open_count", report.OpenCount,
		"duration_seconds", report.DurationSeconds)
	return nil
}

// fail moves a job to the error state with a user-facing message.
func (m *Manager) fail(id string, err error) {
	m.finish(id, func(j *Job) {
		j.Status = StatusError
		j.Error = errors.UserMessage(err)
	})
	m.metrics.IncrementJobsTotal(string(StatusError))
}

// saveReport writes the JSON report file and the database rows. Neither
// failure affects the job outcome.
func (m *Manager) saveReport(ctx context.Context, logger *logging.Logger, id string, report *scanning.ScanReport) string {
	var path string
	if m.config.ReportsDir != "" {
		path = filepath.Join(m.config.ReportsDir, fmt.Sprintf("scan_%s.%s", id, export.FormatJSON.Extension()))
		if err := export.Save(path, export.FormatJSON, report); err != nil {
			logger.WithError(err).Warn("Failed to save report file", "path", path)
			path = ""
		}
	}

	if m.store != nil {
		if err := m.store.SaveReport(ctx, id, report); err != nil {
			logger.ErrorDatabase("Failed to persist report", err)
		}
	}
	return path
}

// update applies fn to a running job and notifies subscribers.
func (m *Manager) update(id string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.jobs[id]
	if !ok || e.job.Status.Terminal() {
		return
	}
	fn(&e.job)

	if len(e.subscribers) == 0 {
		return
	}
	snap := e.job.clone()
	for _, ch := range e.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}

// finish applies fn, delivers the terminal snapshot and closes all
// subscriptions.
func (m *Manager) finish(id string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.jobs[id]
	if !ok {
		return
	}
	fn(&e.job)
	now := time.Now()
	e.job.FinishedAt = &now

	snap := e.job.clone()
	for _, ch := range e.subscribers {
		select {
		case ch <- snap:
		default:
			// Make room by dropping the oldest pending update.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
		close(ch)
	}
	e.subscribers = nil
}
