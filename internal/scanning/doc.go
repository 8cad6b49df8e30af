// Package scanning provides the single-host TCP port scanning engine for netport.
//
// # Overview
//
// A scan takes a ScanConfig (host, inclusive port range, concurrency and
// per-connection timeout), resolves the host once, and probes every port in
// the range with a full TCP connect. Open ports get a short banner exchange.
// The result is a ScanReport listing only the open ports, sorted ascending,
// each carrying the catalog service name and a security recommendation.
//
// # Main Components
//
//   - Resolver: SystemResolver uses the OS resolver; DNSResolver queries a
//     specific server with miekg/dns.
//   - Prober: TCPProber performs the connect and banner read. It never fails;
//     unreachable, refused and timed-out ports are all reported closed.
//   - Scanner: the orchestrator. Probes run on an ants pool capped at
//     min(concurrency, 500, ports in range). One collector goroutine counts
//     completions and feeds the optional ProgressSink.
//
// # Usage
//
//	r, err := scanning.ParsePortRange("1-1024")
//	if err != nil {
//		return err
//	}
//	scanner := scanning.NewScanner()
//	report, err := scanner.Scan(ctx, scanning.ScanConfig{
//		Host:        "scanme.example.org",
//		Range:       r,
//		Concurrency: 200,
//		Timeout:     time.Second,
//	}, scanning.ProgressFunc(func(e scanning.ProgressEvent) {
//		fmt.Printf("\r%d/%d", e.Scanned, e.Total)
//	}))
//
// # Errors
//
// Scan returns errors from internal/errors: VALIDATION or INVALID_RANGE for a
// bad configuration, RESOLUTION_FAILED when the host has no address, and
// CANCELED when the context ends mid-scan. Probe-level network failures are
// never surfaced as errors.
package scanning
