// Package export serialises scan reports. JSON carries the whole report;
// CSV carries one row per open port.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/anstrom/netport/internal/errors"
	"github.com/anstrom/netport/internal/scanning"
)

// Format names an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Header is the fixed CSV column order.
var Header = []string{"port", "service", "state", "banner", "recommendation"}

// ParseFormat accepts "json" or "csv", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", errors.ErrValidation(fmt.Sprintf("unsupported export format %q", s))
}

// Extension returns the file extension, without the dot.
func (f Format) Extension() string {
	return string(f)
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Write encodes report to w in format f.
func Write(w io.Writer, f Format, report *scanning.ScanReport) error {
	switch f {
	case FormatJSON:
		return WriteJSON(w, report)
	case FormatCSV:
		return WriteCSV(w, report)
	}
	return errors.ErrValidation(fmt.Sprintf("unsupported export format %q", f))
}

// Encode returns report encoded in format f.
func Encode(f Format, report *scanning.ScanReport) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, f, report); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON writes the full report as JSON indented by two spaces.
func WriteJSON(w io.Writer, report *scanning.ScanReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// WriteCSV writes a header row followed by one row per open port, in report order.
func WriteCSV(w io.Writer, report *scanning.ScanReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, p := range report.OpenPorts {
		row := []string{strconv.Itoa(p.Port), p.Service, string(p.State), p.Banner, p.Recommendation}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses rows written by WriteCSV back into port results.
func ReadCSV(r io.Reader) ([]scanning.PortResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read csv: missing header")
	}
	for i, col := range Header {
		if records[0][i] != col {
			return nil, fmt.Errorf("read csv: unexpected column %q at position %d", records[0][i], i)
		}
	}

	results := make([]scanning.PortResult, 0, len(records)-1)
	for line, rec := range records[1:] {
		port, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("read csv: row %d: invalid port %q", line+2, rec[0])
		}
		results = append(results, scanning.PortResult{
			Port:           port,
			Service:        rec[1],
			State:          scanning.PortState(rec[2]),
			Banner:         rec[3],
			Recommendation: rec[4],
		})
	}
	return results, nil
}

// Filename builds "<prefix>_<YYYYmmdd_HHMMSS>.<ext>".
func Filename(prefix string, f Format, at time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, at.Format("20060102_150405"), f.Extension())
}
