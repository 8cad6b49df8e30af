package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/anstrom/netport/internal/errors"
	"github.com/anstrom/netport/internal/export"
	"github.com/anstrom/netport/internal/jobs"
	"github.com/anstrom/netport/internal/logging"
	"github.com/anstrom/netport/internal/scanning"
)

// JobService is the part of jobs.Manager the API uses.
type JobService interface {
	Submit(req jobs.Request) (string, error)
	Get(id string) (jobs.Job, error)
	Export(id string, f export.Format, w io.Writer) error
	Subscribe(id string) (<-chan jobs.Job, func(), error)
}

// ScanDefaults fill in fields a scan request leaves out.
type ScanDefaults struct {
	Range   string
	Threads int
	Timeout time.Duration
}

// ScanRequest is the body of a scan submission.
type ScanRequest struct {
	Host    string   `json:"host" validate:"required,max=253"`
	Range   string   `json:"range,omitempty" validate:"omitempty,max=32"`
	Threads *int     `json:"threads,omitempty" validate:"omitempty,min=1"`
	Timeout *float64 `json:"timeout,omitempty" validate:"omitempty,gt=0,lte=60"`
}

// ScanResponse acknowledges a queued scan.
type ScanResponse struct {
	JobID string `json:"job_id"`
}

// ScanHandler handles scan submission, polling and export.
type ScanHandler struct {
	jobs      JobService
	defaults  ScanDefaults
	logger    *logging.Logger
	validator *validator.Validate
}

// NewScanHandler creates a new scan handler.
func NewScanHandler(jobService JobService, defaults ScanDefaults, logger *logging.Logger) *ScanHandler {
	return &ScanHandler{
		jobs:      jobService,
		defaults:  defaults,
		logger:    logger.WithComponent("scan_handler"),
		validator: validator.New(),
	}
}

// CreateScan queues a scan and answers 202 with its job id.
//
// @Summary Submit a scan
// @Description Queues a TCP connect scan of one host. Omitted fields take the server defaults.
// @Tags Scans
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body ScanRequest true "Scan request"
// @Success 202 {object} ScanResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse "Job queue is full"
// @Router /scans [post]
// @ID createScan
func (h *ScanHandler) CreateScan(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, http.StatusAccepted)
}

// CreateScanLegacy is CreateScan for the unversioned route, which answers 200.
func (h *ScanHandler) CreateScanLegacy(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, http.StatusOK)
}

func (h *ScanHandler) create(w http.ResponseWriter, r *http.Request, successStatus int) {
	var req ScanRequest
	if err := parseJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err)
		return
	}

	jobReq, err := h.toJobRequest(&req)
	if err != nil {
		writeError(w, r, statusForError(err), err)
		return
	}

	id, err := h.jobs.Submit(jobReq)
	if err != nil {
		h.logger.Warn("Scan submission rejected", "host", jobReq.Host, "error", err)
		writeError(w, r, statusForError(err), err)
		return
	}

	writeJSON(w, r, successStatus, ScanResponse{JobID: id})
}

// toJobRequest validates req and applies defaults.
func (h *ScanHandler) toJobRequest(req *ScanRequest) (jobs.Request, error) {
	req.Host = strings.TrimSpace(req.Host)
	if err := h.validator.Struct(req); err != nil {
		if req.Host == "" {
			return jobs.Request{}, errors.ErrValidation("Host is required")
		}
		return jobs.Request{}, errors.ErrValidation(fmt.Sprintf("Invalid scan request: %v", err))
	}

	spec := req.Range
	if spec == "" {
		spec = h.defaults.Range
	}
	portRange, err := scanning.ParsePortRange(spec)
	if err != nil {
		return jobs.Request{}, errors.NewScanErrorWithTarget(errors.CodeInvalidRange,
			"Invalid port range. Use format: start-end", spec)
	}

	threads := h.defaults.Threads
	if req.Threads != nil {
		threads = *req.Threads
	}
	timeout := h.defaults.Timeout
	if req.Timeout != nil {
		timeout = time.Duration(*req.Timeout * float64(time.Second))
	}

	return jobs.Request{
		Host:        req.Host,
		Range:       portRange,
		Concurrency: threads,
		Timeout:     timeout,
	}, nil
}

// GetScan returns the job snapshot.
//
// @Summary Get scan status
// @Description Returns progress, live open ports and, once complete, the full report.
// @Tags Scans
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Job ID"
// @Success 200 {object} jobs.Job
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /scans/{id} [get]
// @ID getScan
func (h *ScanHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, statusForError(err), err)
		return
	}
	writeJSON(w, r, http.StatusOK, job)
}

// ExportScan sends the completed report as a scan_<id>.<ext> attachment.
//
// @Summary Export a scan report
// @Tags Scans
// @Produce json
// @Produce text/csv
// @Security ApiKeyAuth
// @Param id path string true "Job ID"
// @Param format path string true "Export format" Enums(json, csv)
// @Success 200 {file} file
// @Failure 400 {object} ErrorResponse "Bad format or scan not complete"
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /scans/{id}/export/{format} [get]
// @ID exportScan
func (h *ScanHandler) ExportScan(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	if _, err := h.jobs.Get(id); err != nil {
		writeError(w, r, statusForError(err), err)
		return
	}

	format, err := export.ParseFormat(vars["format"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, errors.ErrValidation("Invalid format"))
		return
	}

	var buf bytes.Buffer
	if err := h.jobs.Export(id, format, &buf); err != nil {
		writeError(w, r, statusForError(err), err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="scan_%s.%s"`, id, format.Extension()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Debug("Failed to write export", "job_id", id, "error", err)
	}
}
