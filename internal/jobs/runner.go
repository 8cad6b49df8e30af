package jobs

import (
	"context"

	"github.com/anstrom/netport/internal/scanning"
)

//go:generate mockgen -source=runner.go -destination=mocks/mock_runner.go -package=mocks

// ScanRunner performs one scan. *scanning.Scanner satisfies it.
type ScanRunner interface {
	Scan(ctx context.Context, cfg scanning.ScanConfig, sink scanning.ProgressSink) (*scanning.ScanReport, error)
}

// ReportStore persists completed reports. *db.ReportRepository satisfies it.
type ReportStore interface {
	SaveReport(ctx context.Context, jobID string, report *scanning.ScanReport) error
}
