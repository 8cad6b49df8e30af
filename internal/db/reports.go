package db

import (
	"context"
	"time"

	"github.com/anstrom/netport/internal/metrics"
	"github.com/anstrom/netport/internal/scanning"
)

type reportRow struct {
	JobID           string    `db:"job_id"`
	Host            string    `db:"host"`
	ResolvedIP      string    `db:"resolved_ip"`
	RangeStart      int       `db:"range_start"`
	RangeEnd        int       `db:"range_end"`
	TotalPorts      int       `db:"total_ports"`
	OpenCount       int       `db:"open_count"`
	StartedAt       time.Time `db:"started_at"`
	FinishedAt      time.Time `db:"finished_at"`
	DurationSeconds float64   `db:"duration_seconds"`
}

type openPortRow struct {
	Port           int    `db:"port"`
	Service        string `db:"service"`
	State          string `db:"state"`
	Banner         string `db:"banner"`
	Recommendation string `db:"recommendation"`
}

const (
	insertReportQuery = `
		INSERT INTO scan_reports (
			job_id, host, resolved_ip, range_start, range_end, total_ports,
			open_count, started_at, finished_at, duration_seconds
		) VALUES (
			:job_id, :host, :resolved_ip, :range_start, :range_end, :total_ports,
			:open_count, :started_at, :finished_at, :duration_seconds
		)`

	insertOpenPortQuery = `
		INSERT INTO scan_open_ports (job_id, port, service, state, banner, recommendation)
		VALUES ($1, $2, $3, $4, $5, $6)`

	selectReportQuery = `
		SELECT job_id, host, resolved_ip, range_start, range_end, total_ports,
			open_count, started_at, finished_at, duration_seconds
		FROM scan_reports WHERE job_id = $1`

	selectOpenPortsQuery = `
		SELECT port, service, state, banner, recommendation
		FROM scan_open_ports WHERE job_id = $1 ORDER BY port`
)

// ReportRepository stores completed scan reports.
type ReportRepository struct {
	db      *DB
	metrics *metrics.PrometheusMetrics
}

// NewReportRepository creates a repository. m may be nil.
func NewReportRepository(db *DB, m *metrics.PrometheusMetrics) *ReportRepository {
	return &ReportRepository{db: db, metrics: m}
}

// SaveReport writes the report and its open ports in one transaction.
func (r *ReportRepository) SaveReport(ctx context.Context, jobID string, report *scanning.ScanReport) (err error) {
	defer func() { r.record("save_report", err) }()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return sanitizeDBError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := reportRow{
		JobID:           jobID,
		Host:            report.Host,
		ResolvedIP:      report.ResolvedIP,
		RangeStart:      report.ScanRange.Start,
		RangeEnd:        report.ScanRange.End,
		TotalPorts:      report.TotalPortsScanned,
		OpenCount:       report.OpenCount,
		StartedAt:       report.ScanStarted,
		FinishedAt:      report.ScanFinished,
		DurationSeconds: report.DurationSeconds,
	}
	if _, err := tx.NamedExecContext(ctx, insertReportQuery, row); err != nil {
		return sanitizeDBError("insert report", err)
	}

	for _, p := range report.OpenPorts {
		_, err := tx.ExecContext(ctx, insertOpenPortQuery,
			jobID, p.Port, p.Service, string(p.State), p.Banner, p.Recommendation)
		if err != nil {
			return sanitizeDBError("insert open port", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return sanitizeDBError("commit report", err)
	}
	return nil
}

// GetReport loads a stored report. A missing job yields a NOT_FOUND error.
func (r *ReportRepository) GetReport(ctx context.Context, jobID string) (report *scanning.ScanReport, err error) {
	defer func() { r.record("get_report", err) }()

	var row reportRow
	if err := r.db.GetContext(ctx, &row, selectReportQuery, jobID); err != nil {
		return nil, sanitizeDBError("get report", err)
	}

	var ports []openPortRow
	if err := r.db.SelectContext(ctx, &ports, selectOpenPortsQuery, jobID); err != nil {
		return nil, sanitizeDBError("get open ports", err)
	}

	report = &scanning.ScanReport{
		Host:              row.Host,
		ResolvedIP:        row.ResolvedIP,
		ScanRange:         scanning.PortRange{Start: row.RangeStart, End: row.RangeEnd},
		TotalPortsScanned: row.TotalPorts,
		OpenCount:         row.OpenCount,
		OpenPorts:         make([]scanning.PortResult, 0, len(ports)),
		ScanStarted:       row.StartedAt,
		ScanFinished:      row.FinishedAt,
		DurationSeconds:   row.DurationSeconds,
	}
	for _, p := range ports {
		report.OpenPorts = append(report.OpenPorts, scanning.PortResult{
			Port:           p.Port,
			Service:        p.Service,
			State:          scanning.PortState(p.State),
			Banner:         p.Banner,
			Recommendation: p.Recommendation,
		})
	}
	return report, nil
}

func (r *ReportRepository) record(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.IncrementDatabaseQueries(operation, status)
}
