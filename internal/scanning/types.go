package scanning

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/anstrom/netport/internal/errors"
)

const (
	// MinPort and MaxPort bound every valid TCP port.
	MinPort = 1
	MaxPort = 65535

	// MaxConcurrency is the ceiling applied to any requested worker count.
	MaxConcurrency = 500

	expectedPortRangeParts = 2
)

// PortState is the observed state of a probed port.
type PortState string

const (
	StateOpen   PortState = "open"
	StateClosed PortState = "closed"
)

// PortResult is the outcome of probing a single port.
type PortResult struct {
	// Port is the probed port number (1-65535)
	Port int `json:"port"`
	// State is open when the TCP handshake completed within the timeout
	State PortState `json:"state"`
	// Service is the catalog name for Port, or "Unknown"
	Service string `json:"service"`
	// Banner is the first bytes the peer sent back, only set for open ports
	Banner string `json:"banner"`
	// Recommendation is attached to open results once the scan completes
	Recommendation string `json:"recommendation,omitempty"`
}

// MarshalJSON always writes the banner key, as null when no banner was read.
func (r PortResult) MarshalJSON() ([]byte, error) {
	type plain PortResult
	out := struct {
		plain
		Banner *string `json:"banner"`
	}{plain: plain(r)}
	if r.Banner != "" {
		out.Banner = &r.Banner
	}
	return json.Marshal(out)
}

// PortRange is an inclusive range of ports.
type PortRange struct {
	Start int
	End   int
}

// ParsePortRange parses "start-end" or a single port into a PortRange.
func ParsePortRange(spec string) (PortRange, error) {
	trimmed := strings.TrimSpace(spec)
	if trimmed == "" {
		return PortRange{}, errors.ErrInvalidRange(spec, "empty range")
	}

	parts := strings.Split(trimmed, "-")
	if len(parts) == 1 {
		parts = append(parts, parts[0])
	}
	if len(parts) != expectedPortRangeParts {
		return PortRange{}, errors.ErrInvalidRange(spec, "use format start-end")
	}

	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return PortRange{}, errors.ErrInvalidRange(spec, fmt.Sprintf("invalid start port %q", parts[0]))
	}
	end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return PortRange{}, errors.ErrInvalidRange(spec, fmt.Sprintf("invalid end port %q", parts[1]))
	}

	r := PortRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return PortRange{}, err
	}
	return r, nil
}

// Validate checks bounds and ordering.
func (r PortRange) Validate() error {
	if r.Start < MinPort || r.Start > MaxPort || r.End < MinPort || r.End > MaxPort {
		return errors.ErrInvalidRange(r.String(), "ports must be between 1 and 65535")
	}
	if r.Start > r.End {
		return errors.ErrInvalidRange(r.String(), "start port must not exceed end port")
	}
	return nil
}

// Total returns the number of ports in the range.
func (r PortRange) Total() int {
	return r.End - r.Start + 1
}

func (r PortRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// MarshalText encodes the range as "start-end".
func (r PortRange) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText parses "start-end".
func (r *PortRange) UnmarshalText(text []byte) error {
	parsed, err := ParsePortRange(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ScanConfig is the input to a single-host scan.
type ScanConfig struct {
	// Host is a hostname or IP literal
	Host string
	// Range is the inclusive port range to probe
	Range PortRange
	// Concurrency is the requested number of simultaneous probes
	Concurrency int
	// Timeout bounds each connection attempt
	Timeout time.Duration
}

// Validate rejects a configuration before any network activity happens.
func (c *ScanConfig) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return errors.ErrValidation("host is required")
	}
	if err := c.Range.Validate(); err != nil {
		return err
	}
	if c.Concurrency <= 0 {
		return errors.ErrValidation("concurrency must be at least 1")
	}
	if c.Timeout <= 0 {
		return errors.ErrValidation("timeout must be positive")
	}
	return nil
}

// EffectiveConcurrency caps the requested concurrency at MaxConcurrency and
// at the number of ports to probe.
func (c *ScanConfig) EffectiveConcurrency() int {
	return min(c.Concurrency, MaxConcurrency, c.Range.Total())
}

// ScanReport is the immutable result of a completed scan.
type ScanReport struct {
	Host              string       `json:"host"`
	ResolvedIP        string       `json:"ip"`
	ScanRange         PortRange    `json:"scan_range" swaggertype:"string" example:"1-1024"`
	TotalPortsScanned int          `json:"total_ports_scanned"`
	OpenCount         int          `json:"open_count"`
	OpenPorts         []PortResult `json:"open_ports"`
	ScanStarted       time.Time    `json:"scan_started"`
	ScanFinished      time.Time    `json:"scan_finished"`
	DurationSeconds   float64      `json:"duration_seconds"`
}

func roundDuration(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}

// ProgressEvent is emitted once per probed port.
type ProgressEvent struct {
	// Scanned is the number of ports completed so far, including this one
	Scanned int `json:"scanned"`
	// Total is the size of the range
	Total int `json:"total"`
	// Result is the outcome for the port that just completed
	Result PortResult `json:"result"`
}

// Percent returns progress as a percentage rounded to one decimal.
func (e ProgressEvent) Percent() float64 {
	if e.Total == 0 {
		return 0
	}
	return math.Round(float64(e.Scanned)/float64(e.Total)*1000) / 10
}

// ProgressSink receives progress events. Calls are serialised.
type ProgressSink interface {
	OnProgress(event ProgressEvent)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(event ProgressEvent)

// OnProgress calls f(event).
func (f ProgressFunc) OnProgress(event ProgressEvent) {
	f(event)
}
