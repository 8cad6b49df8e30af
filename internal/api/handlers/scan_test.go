package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netport/internal/errors"
	"github.com/anstrom/netport/internal/export"
	"github.com/anstrom/netport/internal/jobs"
	"github.com/anstrom/netport/internal/logging"
	"github.com/anstrom/netport/internal/scanning"
)

type mockJobService struct {
	mock.Mock
}

func (m *mockJobService) Submit(req jobs.Request) (string, error) {
	args := m.Called(req)
	return args.String(0), args.Error(1)
}

func (m *mockJobService) Get(id string) (jobs.Job, error) {
	args := m.Called(id)
	return args.Get(0).(jobs.Job), args.Error(1)
}

func (m *mockJobService) Export(id string, f export.Format, w io.Writer) error {
	args := m.Called(id, f, w)
	return args.Error(0)
}

func (m *mockJobService) Subscribe(id string) (<-chan jobs.Job, func(), error) {
	args := m.Called(id)
	ch, _ := args.Get(0).(<-chan jobs.Job)
	cancel, _ := args.Get(1).(func())
	return ch, cancel, args.Error(2)
}

var testDefaults = ScanDefaults{Range: "1-1024", Threads: 200, Timeout: time.Second}

func newScanRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateScanAppliesDefaults(t *testing.T) {
	svc := &mockJobService{}
	handler := NewScanHandler(svc, testDefaults, logging.NewDiscard())

	svc.On("Submit", jobs.Request{
		Host:        "scanme.example",
		Range:       scanning.PortRange{Start: 1, End: 1024},
		Concurrency: 200,
		Timeout:     time.Second,
	}).Return("ab12cd34", nil)

	rec := httptest.NewRecorder()
	handler.CreateScan(rec, newScanRequest(`{"host": "  scanme.example "}`))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var resp ScanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ab12cd34", resp.JobID)
	svc.AssertExpectations(t)
}

func TestCreateScanExplicitFields(t *testing.T) {
	svc := &mockJobService{}
	handler := NewScanHandler(svc, testDefaults, logging.NewDiscard())

	svc.On("Submit", jobs.Request{
		Host:        "10.0.0.5",
		Range:       scanning.PortRange{Start: 20, End: 25},
		Concurrency: 900,
		Timeout:     250 * time.Millisecond,
	}).Return("ffff0000", nil)

	rec := httptest.NewRecorder()
	handler.CreateScanLegacy(rec, newScanRequest(`{"host":"10.0.0.5","range":"20-25","threads":900,"timeout":0.25}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestCreateScanRejections(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{"missing host", `{"range":"1-10"}`, http.StatusBadRequest, "Host is required"},
		{"blank host", `{"host":"   "}`, http.StatusBadRequest, "Host is required"},
		{"bad range", `{"host":"h","range":"abc"}`, http.StatusBadRequest, "Invalid port range. Use format: start-end: abc"},
		{"inverted range", `{"host":"h","range":"100-1"}`, http.StatusBadRequest, "Invalid port range. Use format: start-end: 100-1"},
		{"zero threads", `{"host":"h","threads":0}`, http.StatusBadRequest, ""},
		{"negative timeout", `{"host":"h","timeout":-1}`, http.StatusBadRequest, ""},
		{"not json", `host=h`, http.StatusBadRequest, ""},
		{"unknown field", `{"host":"h","ports":"1-2"}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockJobService{}
			handler := NewScanHandler(svc, testDefaults, logging.NewDiscard())

			rec := httptest.NewRecorder()
			handler.CreateScan(rec, newScanRequest(tt.body))

			assert.Equal(t, tt.status, rec.Code)
			if tt.message != "" {
				assert.Equal(t, tt.message, decodeError(t, rec).Error)
			}
			svc.AssertNotCalled(t, "Submit", mock.Anything)
		})
	}
}

func TestCreateScanQueueFull(t *testing.T) {
	svc := &mockJobService{}
	handler := NewScanHandler(svc, testDefaults, logging.NewDiscard())
	svc.On("Submit", mock.Anything).
		Return("", errors.NewScanErrorWithTarget(errors.CodeQueueFull, "job queue is full", "x"))

	rec := httptest.NewRecorder()
	handler.CreateScan(rec, newScanRequest(`{"host":"h"}`))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "QUEUE_FULL", decodeError(t, rec).Code)
}

func TestGetScan(t *testing.T) {
	svc := &mockJobService{}
	handler := NewScanHandler(svc, testDefaults, logging.NewDiscard())

	job := jobs.Job{
		ID:            "ab12cd34",
		Host:          "h",
		Status:        jobs.StatusRunning,
		Progress:      12.5,
		Scanned:       1,
		Total:         8,
		OpenPortsLive: []scanning.PortResult{},
	}
	svc.On("Get", "ab12cd34").Return(job, nil)
	svc.On("Get", "missing").Return(jobs.Job{}, errors.ErrJobNotFound("missing"))

	rec := httptest.NewRecorder()
	handler.GetScan(rec, mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "ab12cd34"}))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ab12cd34", body["job_id"])
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, 12.5, body["progress"])
	assert.Equal(t, []interface{}{}, body["open_ports_live"])
	assert.Nil(t, body["results"])

	rec = httptest.NewRecorder()
	handler.GetScan(rec, mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "missing"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Job not found: missing", decodeError(t, rec).Error)
}

func exportRequest(id, format string) *http.Request {
	return mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": id, "format": format})
}

func TestExportScan(t *testing.T) {
	svc := &mockJobService{}
	handler := NewScanHandler(svc, testDefaults, logging.NewDiscard())

	svc.On("Get", "ab12cd34").Return(jobs.Job{ID: "ab12cd34", Status: jobs.StatusComplete}, nil)
	svc.On("Export", "ab12cd34", export.FormatCSV, mock.Anything).
		Run(func(args mock.Arguments) {
			_, _ = io.WriteString(args.Get(2).(io.Writer), "port,service,state,banner,recommendation\n")
		}).
		Return(nil)

	rec := httptest.NewRecorder()
	handler.ExportScan(rec, exportRequest("ab12cd34", "csv"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="scan_ab12cd34.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "port,service,state,banner,recommendation\n", rec.Body.String())
}

func TestExportScanErrors(t *testing.T) {
	svc := &mockJobService{}
	handler := NewScanHandler(svc, testDefaults, logging.NewDiscard())

	svc.On("Get", "missing").Return(jobs.Job{}, errors.ErrJobNotFound("missing"))
	svc.On("Get", "running1").Return(jobs.Job{ID: "running1", Status: jobs.StatusRunning}, nil)
	svc.On("Export", "running1", export.FormatJSON, mock.Anything).Return(errors.ErrJobNotReady("running1"))

	tests := []struct {
		name    string
		id      string
		format  string
		status  int
		message string
	}{
		{"unknown job", "missing", "json", http.StatusNotFound, "Job not found: missing"},
		{"bad format", "running1", "xml", http.StatusBadRequest, "Invalid format"},
		{"not complete", "running1", "json", http.StatusBadRequest, "Scan not complete: running1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ExportScan(rec, exportRequest(tt.id, tt.format))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, decodeError(t, rec).Error)
		})
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.ErrValidation("x"), http.StatusBadRequest},
		{errors.ErrInvalidRange("x", "y"), http.StatusBadRequest},
		{errors.ErrJobNotReady("x"), http.StatusBadRequest},
		{errors.ErrJobNotFound("x"), http.StatusNotFound},
		{errors.NewScanError(errors.CodeQueueFull, "full"), http.StatusServiceUnavailable},
		{io.EOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusForError(tt.err), "error %v", tt.err)
	}
}
