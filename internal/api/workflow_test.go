package api_test

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/anstrom/netport/internal/api"
	apihandlers "github.com/anstrom/netport/internal/api/handlers"
	"github.com/anstrom/netport/internal/config"
	"github.com/anstrom/netport/internal/jobs"
	"github.com/anstrom/netport/internal/logging"
	"github.com/anstrom/netport/internal/metrics"
	"github.com/anstrom/netport/internal/scanning"
	"github.com/anstrom/netport/internal/workers"
)

// WorkflowSuite runs the real scanner, worker pool and job manager behind
// the HTTP API and drives complete scan workflows against a local listener.
type WorkflowSuite struct {
	suite.Suite

	listener   net.Listener
	openPort   int
	reportsDir string
	pool       *workers.Pool
	server     *httptest.Server
	client     *http.Client
}

func TestWorkflowSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping workflow tests in short mode")
	}
	suite.Run(t, new(WorkflowSuite))
}

func (s *WorkflowSuite) SetupSuite() {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	s.listener = listener
	s.openPort = listener.Addr().(*net.TCPAddr).Port

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			_, _ = conn.Write([]byte("220 test ftp ready\r\n"))
			_ = conn.Close()
		}
	}()

	logger := logging.NewDiscard()
	m := metrics.NewPrometheusMetrics()
	s.reportsDir = s.T().TempDir()

	s.pool = workers.New(workers.Config{Size: 2, QueueSize: 10, ShutdownTimeout: 5 * time.Second}, logger, m)
	s.pool.Start()

	scanner := scanning.NewScanner(scanning.WithLogger(logger), scanning.WithMetrics(m))
	manager := jobs.NewManager(scanner, s.pool, jobs.Config{ReportsDir: s.reportsDir},
		jobs.WithLogger(logger), jobs.WithMetrics(m))

	server, err := api.New(config.Default(), manager, nil, m, logger)
	s.Require().NoError(err)

	s.server = httptest.NewServer(server.Handler())
	s.client = &http.Client{Timeout: 10 * time.Second}
}

func (s *WorkflowSuite) TearDownSuite() {
	s.server.Close()
	s.pool.Shutdown()
	_ = s.listener.Close()
}

func (s *WorkflowSuite) portRange() string {
	p := strconv.Itoa(s.openPort)
	return p + "-" + p
}

func (s *WorkflowSuite) submit(path, host string) string {
	body := fmt.Sprintf(`{"host":%q,"range":%q,"threads":4,"timeout":1}`, host, s.portRange())
	resp, err := s.client.Post(s.server.URL+path, "application/json", strings.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Contains([]int{http.StatusOK, http.StatusAccepted}, resp.StatusCode)

	var created apihandlers.ScanResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&created))
	s.Require().Len(created.JobID, 8)
	return created.JobID
}

func (s *WorkflowSuite) waitForStatus(id string, want jobs.Status) jobs.Job {
	var job jobs.Job
	s.Require().Eventually(func() bool {
		resp, err := s.client.Get(s.server.URL + "/api/v1/scans/" + id)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return false
		}
		job = jobs.Job{}
		if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
			return false
		}
		return job.Status == want
	}, 10*time.Second, 50*time.Millisecond)
	return job
}

func (s *WorkflowSuite) TestScanLifecycle() {
	id := s.submit("/api/v1/scans", "127.0.0.1")

	job := s.waitForStatus(id, jobs.StatusComplete)
	s.Equal(100.0, job.Progress)
	s.Equal(1, job.Scanned)
	s.Require().NotNil(job.Results)
	s.Equal("127.0.0.1", job.Results.ResolvedIP)
	s.Equal(1, job.Results.OpenCount)
	s.Require().Len(job.Results.OpenPorts, 1)
	s.Equal(s.openPort, job.Results.OpenPorts[0].Port)
	s.Equal("220 test ftp ready", job.Results.OpenPorts[0].Banner)
	s.NotEmpty(job.Results.OpenPorts[0].Recommendation)
	s.Equal(filepath.Join(s.reportsDir, "scan_"+id+".json"), job.ReportPath)
	s.FileExists(job.ReportPath)

	resp, err := s.client.Get(s.server.URL + "/api/v1/scans/" + id + "/export/csv")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(fmt.Sprintf(`attachment; filename="scan_%s.csv"`, id), resp.Header.Get("Content-Disposition"))

	rows, err := csv.NewReader(resp.Body).ReadAll()
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal([]string{"port", "service", "state", "banner", "recommendation"}, rows[0])
	s.Equal(strconv.Itoa(s.openPort), rows[1][0])
	s.Equal("open", rows[1][2])
}

func (s *WorkflowSuite) TestLegacyRoutes() {
	id := s.submit("/api/scan", "127.0.0.1")
	s.waitForStatus(id, jobs.StatusComplete)

	resp, err := s.client.Get(s.server.URL + "/api/status/" + id)
	s.Require().NoError(err)
	resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	resp, err = s.client.Get(s.server.URL + "/api/export/" + id + "/json")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	s.Require().NoError(err)
	var report scanning.ScanReport
	s.Require().NoError(json.Unmarshal(buf.Bytes(), &report))
	s.Equal(1, report.TotalPortsScanned)
}

func (s *WorkflowSuite) TestResolutionFailure() {
	id := s.submit("/api/v1/scans", "nope.invalid")

	job := s.waitForStatus(id, jobs.StatusError)
	s.Equal("Could not resolve host: nope.invalid", job.Error)
	s.Nil(job.Results)

	resp, err := s.client.Get(s.server.URL + "/api/v1/scans/" + id + "/export/json")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *WorkflowSuite) TestWebSocketProgress() {
	id := s.submit("/api/v1/scans", "127.0.0.1")

	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/api/v1/scans/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	defer conn.Close()

	var last apihandlers.WebSocketMessage
	for {
		_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
		var msg apihandlers.WebSocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			s.True(websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
			break
		}
		last = msg
	}
	s.Equal(apihandlers.MessageComplete, last.Type)
}

func (s *WorkflowSuite) TestUnknownJob() {
	resp, err := s.client.Get(s.server.URL + "/api/v1/scans/ffffffff")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusNotFound, resp.StatusCode)
}
