package scanning

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/anstrom/netport/internal/catalog"
	"github.com/anstrom/netport/internal/errors"
	"github.com/anstrom/netport/internal/logging"
	"github.com/anstrom/netport/internal/metrics"
)

// Scanner runs scans. The zero value is not usable; use NewScanner.
type Scanner struct {
	resolver Resolver
	prober   Prober
	logger   *logging.Logger
	metrics  *metrics.PrometheusMetrics
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithResolver replaces the default system resolver.
func WithResolver(r Resolver) Option {
	return func(s *Scanner) { s.resolver = r }
}

// WithProber replaces the default TCP prober.
func WithProber(p Prober) Option {
	return func(s *Scanner) { s.prober = p }
}

// WithLogger sets the logger used for scan lifecycle messages.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithMetrics enables Prometheus recording.
func WithMetrics(m *metrics.PrometheusMetrics) Option {
	return func(s *Scanner) { s.metrics = m }
}

// NewScanner creates a scanner with a system resolver and TCP prober unless
// overridden by opts.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		resolver: NewSystemResolver(),
		prober:   NewTCPProber(),
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("scanner")
	return s
}

// Scan validates cfg, resolves the host once, probes every port in the range
// with at most cfg.EffectiveConcurrency() probes in flight, and returns the
// report with open ports sorted ascending and recommendations attached.
//
// sink may be nil. Otherwise it receives exactly one event per port, from a
// single goroutine, with Scanned strictly increasing to Total.
//
// A resolution failure returns a RESOLUTION_FAILED error before any probe is
// issued. Cancelling ctx stops outstanding probes and returns CANCELED with no
// report.
func (s *Scanner) Scan(ctx context.Context, cfg ScanConfig, sink ProgressSink) (*ScanReport, error) {
	if err := cfg.Validate(); err != nil {
		s.metrics.IncrementScansTotal("invalid")
		return nil, err
	}

	ip, err := s.resolver.Resolve(ctx, cfg.Host)
	if err != nil {
		s.metrics.IncrementScansTotal("resolution_failed")
		s.logger.ErrorScan("Host resolution failed", cfg.Host, err)
		return nil, err
	}

	workers := cfg.EffectiveConcurrency()
	total := cfg.Range.Total()

	s.logger.InfoScan("Starting scan", cfg.Host,
		"ip", ip.String(),
		"range", cfg.Range.String(),
		"ports", total,
		"concurrency", workers,
		"timeout", cfg.Timeout)

	started := time.Now()
	s.metrics.ScanStarted()

	open, err := s.probeRange(ctx, ip, cfg, workers, sink)
	finished := time.Now()
	if err != nil {
		s.metrics.ScanFinished("canceled", finished.Sub(started))
		s.logger.ErrorScan("Scan aborted", cfg.Host, err)
		return nil, err
	}
	s.metrics.ScanFinished("success", finished.Sub(started))

	sort.Slice(open, func(i, j int) bool { return open[i].Port < open[j].Port })
	for i := range open {
		open[i].Recommendation = catalog.Recommendation(open[i].Service)
	}

	report := &ScanReport{
		Host:              cfg.Host,
		ResolvedIP:        ip.String(),
		ScanRange:         cfg.Range,
		TotalPortsScanned: total,
		OpenCount:         len(open),
		OpenPorts:         open,
		ScanStarted:       started,
		ScanFinished:      finished,
		DurationSeconds:   roundDuration(finished.Sub(started)),
	}

	s.logger.InfoScan("Scan completed", cfg.Host,
		"open_ports", report.OpenCount,
		"duration_seconds", report.DurationSeconds)

	return report, nil
}

// probeRange fans the range out over an ants pool. Probe results flow over a
// channel to one collector goroutine, which owns the scanned counter, the
// open set and sink delivery.
func (s *Scanner) probeRange(
	ctx context.Context, ip net.IP, cfg ScanConfig, workers int, sink ProgressSink,
) ([]PortResult, error) {
	total := cfg.Range.Total()
	results := make(chan PortResult, workers)

	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(workers, func(arg interface{}) {
		defer wg.Done()
		if ctx.Err() != nil {
			return
		}
		results <- s.prober.Probe(ctx, ip, arg.(int), cfg.Timeout)
	})
	if err != nil {
		return nil, errors.WrapScanErrorWithTarget(errors.CodeScanFailed, "Failed to create probe pool", cfg.Host, err)
	}
	defer pool.Release()

	open := make([]PortResult, 0)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		scanned := 0
		for result := range results {
			scanned++
			s.metrics.IncrementPortsScanned(string(result.State))
			if result.State == StateOpen {
				open = append(open, result)
			}
			if sink != nil {
				sink.OnProgress(ProgressEvent{Scanned: scanned, Total: total, Result: result})
			}
		}
	}()

	var submitErr error
	for port := cfg.Range.Start; port <= cfg.Range.End; port++ {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		if err := pool.Invoke(port); err != nil {
			wg.Done()
			submitErr = err
			break
		}
	}

	wg.Wait()
	close(results)
	<-collected

	if err := ctx.Err(); err != nil {
		return nil, errors.WrapScanErrorWithTarget(errors.CodeCanceled, "Scan canceled", cfg.Host, err)
	}
	if submitErr != nil {
		return nil, errors.WrapScanErrorWithTarget(errors.CodeScanFailed, "Failed to schedule probe", cfg.Host, submitErr)
	}
	return open, nil
}
