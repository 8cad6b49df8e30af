// Package scheduler submits recurring scans declared in the configuration
// to the job manager on standard five-field cron schedules.
package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/anstrom/netport/internal/config"
	"github.com/anstrom/netport/internal/jobs"
	"github.com/anstrom/netport/internal/logging"
	"github.com/anstrom/netport/internal/scanning"
)

// Submitter queues scans. Satisfied by *jobs.Manager.
type Submitter interface {
	Submit(req jobs.Request) (string, error)
}

// ScheduledJob is a snapshot of one schedule.
type ScheduledJob struct {
	Name      string       `json:"name"`
	Cron      string       `json:"cron"`
	Request   jobs.Request `json:"-"`
	Runs      int          `json:"runs"`
	LastRun   time.Time    `json:"last_run,omitempty"`
	LastJobID string       `json:"last_job_id,omitempty"`
	LastError string       `json:"last_error,omitempty"`
	NextRun   time.Time    `json:"next_run,omitempty"`

	entryID cron.EntryID
}

// Scheduler manages scheduled scans.
type Scheduler struct {
	cron      *cron.Cron
	submitter Submitter
	logger    *logging.Logger
	jobs      map[string]*ScheduledJob
	mu        sync.RWMutex
	running   bool
}

// New creates a scheduler that hands every firing to submitter.
func New(submitter Submitter, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("scheduler")
	cl := cronLogger{logger: logger}

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		submitter: submitter,
		logger:    logger,
		jobs:      make(map[string]*ScheduledJob),
	}
}

// LoadConfig registers every configured schedule, filling omitted fields
// from the scanning defaults. The first invalid schedule aborts loading.
func (s *Scheduler) LoadConfig(schedules []config.ScheduleConfig, defaults config.ScanningConfig) error {
	for i := range schedules {
		sc := schedules[i]

		spec := sc.Range
		if spec == "" {
			spec = defaults.DefaultRange
		}
		portRange, err := scanning.ParsePortRange(spec)
		if err != nil {
			return fmt.Errorf("schedule %q: %w", sc.Name, err)
		}

		req := jobs.Request{
			Host:        sc.Host,
			Range:       portRange,
			Concurrency: sc.Threads,
			Timeout:     sc.Timeout,
		}
		if req.Concurrency == 0 {
			req.Concurrency = defaults.Concurrency
		}
		if req.Timeout == 0 {
			req.Timeout = defaults.Timeout
		}

		if err := s.Add(sc.Name, sc.Cron, req); err != nil {
			return err
		}
	}
	return nil
}

// Add registers a schedule. Names must be unique and cronExpr must be a
// standard five-field expression or a descriptor such as @hourly.
func (s *Scheduler) Add(name, cronExpr string, req jobs.Request) error {
	if name == "" {
		return fmt.Errorf("schedule name is required")
	}
	if req.Host == "" {
		return fmt.Errorf("schedule %q: host is required", name)
	}
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return fmt.Errorf("schedule %q: invalid cron expression %q: %w", name, cronExpr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("schedule %q already exists", name)
	}

	job := &ScheduledJob{Name: name, Cron: cronExpr, Request: req}
	job.entryID = s.cron.Schedule(schedule, cron.FuncJob(func() { s.fire(name) }))
	s.jobs[name] = job

	s.logger.Info("Added scheduled scan", "name", name, "cron", cronExpr, "host", req.Host, "range", req.Range.String())
	return nil
}

// Remove unregisters a schedule.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("schedule %q not found", name)
	}
	s.cron.Remove(job.entryID)
	delete(s.jobs, name)

	s.logger.Info("Removed scheduled scan", "name", name)
	return nil
}

// Start begins firing schedules.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started", "schedules", len(s.jobs))
	return nil
}

// Stop halts the scheduler and waits for in-flight submissions.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// Jobs returns the schedules ordered by name.
func (s *Scheduler) Jobs() []ScheduledJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ScheduledJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		snapshot := *job
		snapshot.NextRun = s.cron.Entry(job.entryID).Next
		out = append(out, snapshot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// fire submits one run of the named schedule.
func (s *Scheduler) fire(name string) {
	s.mu.RLock()
	job, exists := s.jobs[name]
	var req jobs.Request
	if exists {
		req = job.Request
	}
	s.mu.RUnlock()
	if !exists {
		return
	}

	id, err := s.submitter.Submit(req)

	s.mu.Lock()
	job.Runs++
	job.LastRun = time.Now()
	job.LastJobID = id
	job.LastError = ""
	if err != nil {
		job.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Scheduled scan rejected", "name", name, "host", req.Host, "error", err)
		return
	}
	s.logger.Info("Scheduled scan submitted", "name", name, "host", req.Host, "job_id", id)
}

// cronLogger adapts a logging.Logger to the cron.Logger interface.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
