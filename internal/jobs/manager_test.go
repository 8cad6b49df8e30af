package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anstrom/netport/internal/errors"
	"github.com/anstrom/netport/internal/export"
	"github.com/anstrom/netport/internal/jobs/mocks"
	"github.com/anstrom/netport/internal/logging"
	"github.com/anstrom/netport/internal/scanning"
	"github.com/anstrom/netport/internal/workers"
)

func newTestManager(t *testing.T, runner ScanRunner, cfg Config, size, queue int, opts ...Option) *Manager {
	t.Helper()
	pool := workers.New(workers.Config{Size: size, QueueSize: queue, ShutdownTimeout: 5 * time.Second}, logging.NewDiscard(), nil)
	pool.Start()
	t.Cleanup(pool.Shutdown)

	opts = append([]Option{WithLogger(logging.NewDiscard())}, opts...)
	return NewManager(runner, pool, cfg, opts...)
}

func waitForStatus(t *testing.T, m *Manager, id string, want Status) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		var err error
		job, err = m.Get(id)
		return err == nil && job.Status == want
	}, 5*time.Second, 5*time.Millisecond)
	return job
}

func testReport() *scanning.ScanReport {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &scanning.ScanReport{
		Host:              "scanme.example",
		ResolvedIP:        "192.0.2.10",
		ScanRange:         scanning.PortRange{Start: 20, End: 23},
		TotalPortsScanned: 4,
		OpenCount:         1,
		OpenPorts: []scanning.PortResult{
			{Port: 22, State: scanning.StateOpen, Service: "SSH", Banner: "SSH-2.0-OpenSSH", Recommendation: "tip"},
		},
		ScanStarted:     started,
		ScanFinished:    started.Add(time.Second),
		DurationSeconds: 1,
	}
}

func validRequest() Request {
	return Request{
		Host:        "scanme.example",
		Range:       scanning.PortRange{Start: 20, End: 23},
		Concurrency: 200,
		Timeout:     time.Second,
	}
}

func TestSubmitCompletes(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockScanRunner(ctrl)
	report := testReport()
	reportsDir := t.TempDir()

	runner.EXPECT().Scan(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cfg scanning.ScanConfig, sink scanning.ProgressSink) (*scanning.ScanReport, error) {
			assert.Equal(t, "scanme.example", cfg.Host)
			assert.Equal(t, 200, cfg.Concurrency)
			sink.OnProgress(scanning.ProgressEvent{Scanned: 1, Total: 4, Result: scanning.PortResult{Port: 20, State: scanning.StateClosed}})
			sink.OnProgress(scanning.ProgressEvent{Scanned: 2, Total: 4, Result: report.OpenPorts[0]})
			sink.OnProgress(scanning.ProgressEvent{Scanned: 3, Total: 4, Result: scanning.PortResult{Port: 21, State: scanning.StateClosed}})
			return report, nil
		})

	m := newTestManager(t, runner, Config{ReportsDir: reportsDir}, 1, 4)

	id, err := m.Submit(validRequest())
	require.NoError(t, err)
	assert.Len(t, id, 8)

	job := waitForStatus(t, m, id, StatusComplete)
	assert.Equal(t, 100.0, job.Progress)
	assert.Equal(t, 4, job.Total)
	assert.Equal(t, 4, job.Scanned)
	assert.Equal(t, report.OpenPorts, job.OpenPortsLive)
	assert.Same(t, report, job.Results)
	assert.Empty(t, job.Error)
	require.NotNil(t, job.FinishedAt)

	assert.Equal(t, filepath.Join(reportsDir, "scan_"+id+".json"), job.ReportPath)
	data, err := os.ReadFile(job.ReportPath)
	require.NoError(t, err)
	var saved scanning.ScanReport
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, report.OpenPorts, saved.OpenPorts)

	var buf bytes.Buffer
	require.NoError(t, m.Export(id, export.FormatCSV, &buf))
	assert.Equal(t, "port,service,state,banner,recommendation\n22,SSH,open,SSH-2.0-OpenSSH,tip\n", buf.String())
}

func TestSubmitRecordsProgress(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockScanRunner(ctrl)
	release := make(chan struct{})

	runner.EXPECT().Scan(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ scanning.ScanConfig, sink scanning.ProgressSink) (*scanning.ScanReport, error) {
			sink.OnProgress(scanning.ProgressEvent{Scanned: 1, Total: 3, Result: scanning.PortResult{Port: 22, State: scanning.StateOpen, Service: "SSH"}})
			<-release
			return testReport(), nil
		})

	m := newTestManager(t, runner, Config{}, 1, 4)
	id, err := m.Submit(validRequest())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, _ := m.Get(id)
		return job.Scanned == 1
	}, 5*time.Second, 5*time.Millisecond)

	job, err := m.Get(id)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, job.Status)
	assert.Equal(t, 33.3, job.Progress)
	assert.Equal(t, 3, job.Total)
	require.Len(t, job.OpenPortsLive, 1)
	assert.Equal(t, 22, job.OpenPortsLive[0].Port)

	var buf bytes.Buffer
	err = m.Export(id, export.FormatJSON, &buf)
	assert.True(t, errors.IsCode(err, errors.CodeNotReady))

	close(release)
	job = waitForStatus(t, m, id, StatusComplete)
	assert.Empty(t, job.ReportPath)
}

func TestSubmitCapsConcurrency(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockScanRunner(ctrl)

	runner.EXPECT().Scan(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cfg scanning.ScanConfig, _ scanning.ProgressSink) (*scanning.ScanReport, error) {
			assert.Equal(t, scanning.MaxConcurrency, cfg.Concurrency)
			return testReport(), nil
		})

	m := newTestManager(t, runner, Config{}, 1, 4)
	req := validRequest()
	req.Concurrency = 5000

	id, err := m.Submit(req)
	require.NoError(t, err)
	waitForStatus(t, m, id, StatusComplete)
}

func TestSubmitRejectsInvalidRequest(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockScanRunner(ctrl)
	m := newTestManager(t, runner, Config{}, 1, 4)

	tests := []struct {
		name   string
		modify func(*Request)
		code   errors.ErrorCode
	}{
		{"missing host", func(r *Request) { r.Host = " " }, errors.CodeValidation},
		{"inverted range", func(r *Request) { r.Range = scanning.PortRange{Start: 80, End: 20} }, errors.CodeInvalidRange},
		{"zero threads", func(r *Request) { r.Concurrency = 0 }, errors.CodeValidation},
		{"zero timeout", func(r *Request) { r.Timeout = 0 }, errors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.modify(&req)
			_, err := m.Submit(req)
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestScanFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockScanRunner(ctrl)

	runner.EXPECT().Scan(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.ErrResolutionFailed("nope.invalid", fmt.Errorf("no such host")))

	m := newTestManager(t, runner, Config{ReportsDir: t.TempDir()}, 1, 4)
	req := validRequest()
	req.Host = "nope.invalid"

	id, err := m.Submit(req)
	require.NoError(t, err)

	job := waitForStatus(t, m, id, StatusError)
	assert.Equal(t, "Could not resolve host: nope.invalid", job.Error)
	assert.Nil(t, job.Results)

	var buf bytes.Buffer
	err = m.Export(id, export.FormatJSON, &buf)
	assert.True(t, errors.IsCode(err, errors.CodeNotReady))
}

func TestPersistsReport(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockScanRunner(ctrl)
	store := mocks.NewMockReportStore(ctrl)
	report := testReport()

	runner.EXPECT().Scan(gomock.Any(), gomock.Any(), gomock.Any()).Return(report, nil)
	saved := make(chan string, 1)
	store.EXPECT().SaveReport(gomock.Any(), gomock.Any(), report).
		DoAndReturn(func(_ context.Context, jobID string, _ *scanning.ScanReport) error {
			saved <- jobID
			return fmt.Errorf("connection refused")
		})

	m := newTestManager(t, runner, Config{}, 1, 4, WithStore(store))
	id, err := m.Submit(validRequest())
	require.NoError(t, err)

	// A persistence failure does not fail the job.
	waitForStatus(t, m, id, StatusComplete)
	assert.Equal(t, id, <-saved)
}

func TestUnknownJob(t *testing.T) {
	m := newTestManager(t, mocks.NewMockScanRunner(gomock.NewController(t)), Config{}, 1, 1)

	_, err := m.Get("deadbeef")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	err = m.Export("deadbeef", export.FormatJSON, &bytes.Buffer{})
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	_, _, err = m.Subscribe("deadbeef")
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestQueueFull(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockScanRunner(ctrl)
	release := make(chan struct{})

	runner.EXPECT().Scan(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, scanning.ScanConfig, scanning.ProgressSink) (*scanning.ScanReport, error) {
			<-release
			return testReport(), nil
		}).Times(2)

	m := newTestManager(t, runner, Config{}, 1, 1)

	first, err := m.Submit(validRequest())
	require.NoError(t, err)
	waitForStatus(t, m, first, StatusRunning)

	second, err := m.Submit(validRequest())
	require.NoError(t, err)
	job, err := m.Get(second)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, job.Status)

	_, err = m.Submit(validRequest())
	assert.True(t, errors.IsCode(err, errors.CodeQueueFull))

	close(release)
	waitForStatus(t, m, first, StatusComplete)
	waitForStatus(t, m, second, StatusComplete)
}

func TestPoolStopFailsQueuedJobs(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockScanRunner(ctrl)

	runner.EXPECT().Scan(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, cfg scanning.ScanConfig, _ scanning.ProgressSink) (*scanning.ScanReport, error) {
			<-ctx.Done()
			return nil, errors.WrapScanErrorWithTarget(errors.CodeCanceled, "Scan canceled", cfg.Host, ctx.Err())
		}).Times(1)

	pool := workers.New(workers.Config{Size: 1, QueueSize: 2, ShutdownTimeout: 20 * time.Millisecond},
		logging.NewDiscard(), nil)
	pool.Start()
	m := NewManager(runner, pool, Config{}, WithLogger(logging.NewDiscard()))

	first, err := m.Submit(validRequest())
	require.NoError(t, err)
	waitForStatus(t, m, first, StatusRunning)

	second, err := m.Submit(validRequest())
	require.NoError(t, err)

	pool.Shutdown()

	for _, id := range []string{first, second} {
		job, err := m.Get(id)
		require.NoError(t, err)
		assert.Equal(t, StatusError, job.Status, "job %s", id)
		assert.Equal(t, "Scan canceled: scanme.example", job.Error)
		assert.NotNil(t, job.FinishedAt)
	}
}

func TestSubscribe(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockScanRunner(ctrl)
	release := make(chan struct{})

	runner.EXPECT().Scan(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ scanning.ScanConfig, sink scanning.ProgressSink) (*scanning.ScanReport, error) {
			<-release
			for i := 1; i <= 4; i++ {
				sink.OnProgress(scanning.ProgressEvent{Scanned: i, Total: 4, Result: scanning.PortResult{Port: 19 + i, State: scanning.StateClosed}})
			}
			return testReport(), nil
		})

	m := newTestManager(t, runner, Config{}, 1, 4)
	id, err := m.Submit(validRequest())
	require.NoError(t, err)

	updates, cancel, err := m.Subscribe(id)
	require.NoError(t, err)
	defer cancel()
	close(release)

	var last Job
	count := 0
	for job := range updates {
		assert.Equal(t, id, job.ID)
		last = job
		count++
	}
	assert.GreaterOrEqual(t, count, 2)
	assert.Equal(t, StatusComplete, last.Status)
	assert.Equal(t, 100.0, last.Progress)

	// Subscribing to a finished job yields the final snapshot only.
	updates, _, err = m.Subscribe(id)
	require.NoError(t, err)
	final, ok := <-updates
	require.True(t, ok)
	assert.Equal(t, StatusComplete, final.Status)
	_, ok = <-updates
	assert.False(t, ok)
}

func TestSubscribeCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockScanRunner(ctrl)
	release := make(chan struct{})

	runner.EXPECT().Scan(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, scanning.ScanConfig, scanning.ProgressSink) (*scanning.ScanReport, error) {
			<-release
			return testReport(), nil
		})

	m := newTestManager(t, runner, Config{}, 1, 4)
	id, err := m.Submit(validRequest())
	require.NoError(t, err)

	updates, cancel, err := m.Subscribe(id)
	require.NoError(t, err)
	<-updates
	cancel()
	cancel()

	// Drains anything buffered before the cancel, then observes the close.
	for range updates {
	}

	close(release)
	waitForStatus(t, m, id, StatusComplete)
}
