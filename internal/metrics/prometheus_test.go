package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusMetrics_InitializationAndUpdate(t *testing.T) {
	pm := NewPrometheusMetrics()
	if pm.GetRegistry() == nil {
		t.Fatalf("GetRegistry returned nil")
	}

	pm.UpdateSystemMetrics()
	if pm.GetLastUpdate().IsZero() {
		t.Fatalf("expected last update to be set")
	}

	before := pm.GetUptime()
	time.Sleep(10 * time.Millisecond)
	if after := pm.GetUptime(); before >= after {
		t.Fatalf("expected uptime to increase, before=%v after=%v", before, after)
	}
}

func TestPrometheusMetrics_HTTPHandlerServes(t *testing.T) {
	pm := NewPrometheusMetrics()
	pm.UpdateSystemMetrics()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	promhttp.HandlerFor(pm.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "netport_system_uptime_seconds") {
		t.Fatalf("expected uptime metric in output")
	}
}

func TestPrometheusMetrics_ScanMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.ScanStarted()
	pm.ScanStarted()
	if got := testutil.ToFloat64(pm.activeScans); got != 2 {
		t.Errorf("expected 2 active scans, got %v", got)
	}

	pm.ScanFinished("success", 2*time.Second)
	pm.ScanFinished("canceled", time.Second)
	pm.IncrementScansTotal("resolution_failed")

	if got := testutil.ToFloat64(pm.activeScans); got != 0 {
		t.Errorf("expected 0 active scans, got %v", got)
	}
	if got := testutil.CollectAndCount(pm.scansTotal); got != 3 {
		t.Errorf("expected 3 status labels, got %d", got)
	}
	if got := testutil.ToFloat64(pm.scansTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("expected 1 successful scan, got %v", got)
	}

	pm.IncrementPortsScanned("open")
	pm.IncrementPortsScanned("closed")
	pm.IncrementPortsScanned("closed")
	if got := testutil.ToFloat64(pm.portsScanned.WithLabelValues("closed")); got != 2 {
		t.Errorf("expected 2 closed ports, got %v", got)
	}
}

func TestPrometheusMetrics_JobMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.SetWorkerCount(4)
	pm.AddQueuedJobs(3)
	pm.AddQueuedJobs(-1)
	pm.IncrementJobsTotal("complete")
	pm.RecordJobDuration(150 * time.Millisecond)

	if got := testutil.ToFloat64(pm.workerCount); got != 4 {
		t.Errorf("expected 4 workers, got %v", got)
	}
	if got := testutil.ToFloat64(pm.jobsQueued); got != 2 {
		t.Errorf("expected 2 queued jobs, got %v", got)
	}
	if got := testutil.ToFloat64(pm.jobsTotal.WithLabelValues("complete")); got != 1 {
		t.Errorf("expected 1 complete job, got %v", got)
	}
}

func TestPrometheusMetrics_APIAndDatabaseMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncrementHTTPRequests("GET", "/api/v1/scans/{id}", "200")
	pm.IncrementHTTPRequests("POST", "/api/v1/scans", "202")
	pm.RecordHTTPDuration("GET", "/api/v1/scans/{id}", 5*time.Millisecond)
	pm.IncrementDatabaseQueries("save_report", "success")

	if got := testutil.CollectAndCount(pm.httpRequests); got != 2 {
		t.Errorf("expected 2 request label sets, got %d", got)
	}
	if got := testutil.CollectAndCount(pm.dbQueries); got != 1 {
		t.Errorf("expected 1 database label set, got %d", got)
	}
}

func TestPrometheusMetrics_NilReceiverIsNoop(t *testing.T) {
	var pm *PrometheusMetrics

	pm.ScanStarted()
	pm.ScanFinished("success", time.Second)
	pm.IncrementPortsScanned("open")
	pm.IncrementJobsTotal("error")
	pm.AddQueuedJobs(1)
	pm.IncrementHTTPRequests("GET", "/", "200")
	pm.UpdateSystemMetrics()
}

func TestPrometheusMetrics_StartPeriodicUpdates(t *testing.T) {
	pm := NewPrometheusMetrics()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		pm.StartPeriodicUpdates(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("periodic updates did not stop after cancel")
	}
	if pm.GetLastUpdate().IsZero() {
		t.Fatal("expected at least one update")
	}
}

func TestGetGlobalMetrics(t *testing.T) {
	if GetGlobalMetrics() != GetGlobalMetrics() {
		t.Fatal("expected a single global instance")
	}
}
