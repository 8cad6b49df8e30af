// Package metrics provides Prometheus-based metrics collection for netport.
// Every recording method is safe to call on a nil *PrometheusMetrics, which
// turns metrics off for callers that were not given a collector.
package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	namespace = "netport"

	subsystemScan     = "scan"
	subsystemJobs     = "jobs"
	subsystemDatabase = "database"
	subsystemSystem   = "system"
	subsystemAPI      = "api"
)

// PrometheusMetrics holds all Prometheus metric collectors.
type PrometheusMetrics struct {
	// Scan metrics
	scansTotal   *prometheus.CounterVec
	scanDuration prometheus.Histogram
	portsScanned *prometheus.CounterVec
	activeScans  prometheus.Gauge

	// Job metrics
	jobsTotal   *prometheus.CounterVec
	jobDuration prometheus.Histogram
	jobsQueued  prometheus.Gauge
	workerCount prometheus.Gauge

	// Database metrics
	dbQueries *prometheus.CounterVec

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	// System metrics
	memoryUsage prometheus.Gauge
	goroutines  prometheus.Gauge
	uptime      prometheus.Gauge

	startTime  time.Time
	lastUpdate time.Time
	mu         sync.RWMutex
	registry   *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with its own registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),
	}

	pm.initScanMetrics()
	pm.initJobMetrics()
	pm.initDatabaseMetrics()
	pm.initAPIMetrics()
	pm.initSystemMetrics()
	pm.registerMetrics()

	pm.registry.MustRegister(collectors.NewGoCollector())
	pm.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

func (pm *PrometheusMetrics) initScanMetrics() {
	pm.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total number of scans by outcome",
		},
		[]string{"status"},
	)

	pm.scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of completed scans in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0},
		},
	)

	pm.portsScanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "ports_total",
			Help:      "Total number of ports probed by resulting state",
		},
		[]string{"state"},
	)

	pm.activeScans = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "active",
			Help:      "Number of scans currently probing",
		},
	)
}

func (pm *PrometheusMetrics) initJobMetrics() {
	pm.jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemJobs,
			Name:      "total",
			Help:      "Total number of background jobs by final status",
		},
		[]string{"status"},
	)

	pm.jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemJobs,
			Name:      "duration_seconds",
			Help:      "Time a worker spent executing a job",
			Buckets:   prometheus.DefBuckets,
		},
	)

	pm.jobsQueued = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemJobs,
			Name:      "queued",
			Help:      "Number of jobs waiting for a worker",
		},
	)

	pm.workerCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemJobs,
			Name:      "workers",
			Help:      "Number of workers in the job pool",
		},
	)
}

func (pm *PrometheusMetrics) initDatabaseMetrics() {
	pm.dbQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemDatabase,
			Name:      "queries_total",
			Help:      "Total number of database operations by operation and status",
		},
		[]string{"operation", "status"},
	)
}

func (pm *PrometheusMetrics) initAPIMetrics() {
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"method", "path"},
	)
}

func (pm *PrometheusMetrics) initSystemMetrics() {
	pm.memoryUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystemSystem,
		Name:      "memory_bytes",
		Help:      "Current memory usage in bytes",
	})
	pm.goroutines = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystemSystem,
		Name:      "goroutines",
		Help:      "Current number of goroutines",
	})
	pm.uptime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystemSystem,
		Name:      "uptime_seconds",
		Help:      "Application uptime in seconds",
	})
}

func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(
		pm.scansTotal,
		pm.scanDuration,
		pm.portsScanned,
		pm.activeScans,
		pm.jobsTotal,
		pm.jobDuration,
		pm.jobsQueued,
		pm.workerCount,
		pm.dbQueries,
		pm.httpRequests,
		pm.httpDuration,
		pm.memoryUsage,
		pm.goroutines,
		pm.uptime,
	)
}

// GetRegistry returns the registry backing this instance.
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// Scan Metrics Methods

// ScanStarted marks a scan as actively probing.
func (pm *PrometheusMetrics) ScanStarted() {
	if pm == nil {
		return
	}
	pm.activeScans.Inc()
}

// ScanFinished records the outcome of a scan that previously called ScanStarted.
func (pm *PrometheusMetrics) ScanFinished(status string, duration time.Duration) {
	if pm == nil {
		return
	}
	pm.activeScans.Dec()
	pm.scansTotal.WithLabelValues(status).Inc()
	if status == "success" {
		pm.scanDuration.Observe(duration.Seconds())
	}
}

// IncrementScansTotal counts a scan that never started probing.
func (pm *PrometheusMetrics) IncrementScansTotal(status string) {
	if pm == nil {
		return
	}
	pm.scansTotal.WithLabelValues(status).Inc()
}

// IncrementPortsScanned counts a probed port by state.
func (pm *PrometheusMetrics) IncrementPortsScanned(state string) {
	if pm == nil {
		return
	}
	pm.portsScanned.WithLabelValues(state).Inc()
}

// Job Metrics Methods

// IncrementJobsTotal counts a job reaching a final status.
func (pm *PrometheusMetrics) IncrementJobsTotal(status string) {
	if pm == nil {
		return
	}
	pm.jobsTotal.WithLabelValues(status).Inc()
}

// RecordJobDuration records how long a worker executed a job.
func (pm *PrometheusMetrics) RecordJobDuration(duration time.Duration) {
	if pm == nil {
		return
	}
	pm.jobDuration.Observe(duration.Seconds())
}

// AddQueuedJobs adjusts the queued jobs gauge by delta.
func (pm *PrometheusMetrics) AddQueuedJobs(delta int) {
	if pm == nil {
		return
	}
	pm.jobsQueued.Add(float64(delta))
}

// SetWorkerCount sets the job pool size gauge.
func (pm *PrometheusMetrics) SetWorkerCount(count int) {
	if pm == nil {
		return
	}
	pm.workerCount.Set(float64(count))
}

// IncrementDatabaseQueries counts a database operation.
func (pm *PrometheusMetrics) IncrementDatabaseQueries(operation, status string) {
	if pm == nil {
		return
	}
	pm.dbQueries.WithLabelValues(operation, status).Inc()
}

// API Metrics Methods

// IncrementHTTPRequests increments the HTTP request counter.
func (pm *PrometheusMetrics) IncrementHTTPRequests(method, path, status string) {
	if pm == nil {
		return
	}
	pm.httpRequests.WithLabelValues(method, path, status).Inc()
}

// RecordHTTPDuration records an HTTP request duration.
func (pm *PrometheusMetrics) RecordHTTPDuration(method, path string, duration time.Duration) {
	if pm == nil {
		return
	}
	pm.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// UpdateSystemMetrics refreshes memory, goroutine and uptime gauges.
func (pm *PrometheusMetrics) UpdateSystemMetrics() {
	if pm == nil {
		return
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	pm.memoryUsage.Set(float64(memStats.Alloc))
	pm.goroutines.Set(float64(runtime.NumGoroutine()))
	pm.uptime.Set(time.Since(pm.startTime).Seconds())
	pm.lastUpdate = time.Now()
}

// GetUptime returns the time since the instance was created.
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	return time.Since(pm.startTime)
}

// GetLastUpdate returns the last system metrics update time.
func (pm *PrometheusMetrics) GetLastUpdate() time.Time {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.lastUpdate
}

// StartPeriodicUpdates refreshes system metrics every interval until ctx is done.
func (pm *PrometheusMetrics) StartPeriodicUpdates(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pm.UpdateSystemMetrics()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.UpdateSystemMetrics()
		}
	}
}

var (
	globalMetrics *PrometheusMetrics
	metricsOnce   sync.Once
)

// GetGlobalMetrics returns the process-wide Prometheus metrics instance.
func GetGlobalMetrics() *PrometheusMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewPrometheusMetrics()
	})
	return globalMetrics
}
