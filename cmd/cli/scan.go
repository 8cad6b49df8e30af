package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/anstrom/netport/internal/config"
	"github.com/anstrom/netport/internal/export"
	"github.com/anstrom/netport/internal/logging"
	"github.com/anstrom/netport/internal/metrics"
	"github.com/anstrom/netport/internal/scanning"
)

const (
	exportJSON = "json"
	exportCSV  = "csv"
	exportBoth = "both"

	bannerPreviewLen = 80
	ruleWidth        = 60
)

// portRangeValue is a pflag.Value holding a "start-end" port range.
type portRangeValue struct {
	r *scanning.PortRange
}

var _ pflag.Value = (*portRangeValue)(nil)

func newPortRangeValue(def scanning.PortRange, p *scanning.PortRange) *portRangeValue {
	*p = def
	return &portRangeValue{r: p}
}

func (v *portRangeValue) String() string {
	if v.r == nil {
		return ""
	}
	return v.r.String()
}

func (v *portRangeValue) Set(s string) error {
	parsed, err := scanning.ParsePortRange(s)
	if err != nil {
		return fmt.Errorf("invalid port range %q, use format start-end (e.g. 1-1024)", s)
	}
	*v.r = parsed
	return nil
}

func (v *portRangeValue) Type() string {
	return "start-end"
}

// exportMode is a pflag.Value restricted to json, csv or both.
type exportMode string

func (m *exportMode) String() string { return string(*m) }

func (m *exportMode) Set(s string) error {
	switch s {
	case exportJSON, exportCSV, exportBoth:
		*m = exportMode(s)
		return nil
	}
	return fmt.Errorf("must be one of json, csv, both")
}

func (m *exportMode) Type() string { return "format" }

// formats lists the export formats selected by m.
func (m exportMode) formats() []export.Format {
	switch string(m) {
	case exportJSON:
		return []export.Format{export.FormatJSON}
	case exportCSV:
		return []export.Format{export.FormatCSV}
	case exportBoth:
		return []export.Format{export.FormatJSON, export.FormatCSV}
	}
	return nil
}

type scanOptions struct {
	portRange  scanning.PortRange
	threads    int
	timeout    float64
	export     exportMode
	output     string
	reportsDir string
	noBanner   bool
}

func newScanCmd() *cobra.Command {
	opts := &scanOptions{}

	cmd := &cobra.Command{
		Use:   "scan <host>",
		Short: "Scan a host for open TCP ports",
		Long: `Probe every port in a range on one host, print open ports as they are
found and finish with a summary table of services and security notes.`,
		Example: `  netport scan 192.168.1.1
  netport scan scanme.example --range 1-10000 --threads 300 --export json
  netport scan example.com --range 80-443 --export csv --output results`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args[0], opts)
		},
	}

	defaultRange := scanning.PortRange{Start: 1, End: 1024}
	cmd.Flags().Var(newPortRangeValue(defaultRange, &opts.portRange), "range", "port range to scan")
	cmd.Flags().IntVarP(&opts.threads, "threads", "t", 200, "number of concurrent probes (capped at 500)")
	cmd.Flags().Float64Var(&opts.timeout, "timeout", 1.0, "connection timeout in seconds")
	cmd.Flags().Var(&opts.export, "export", "export results to file: json, csv or both")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "scan_results", "export filename prefix, without extension")
	cmd.Flags().StringVar(&opts.reportsDir, "reports-dir", "", "directory for exported reports (default from config)")
	cmd.Flags().BoolVar(&opts.noBanner, "no-banner", false, "disable the ASCII banner")

	return cmd
}

func init() {
	rootCmd.AddCommand(newScanCmd())
}

func runScan(cmd *cobra.Command, host string, opts *scanOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !verbose {
		cfg.Logging.Level = logging.LevelWarn
	}
	logger := initLogging(cfg)

	scanCfg := opts.scanConfig(cmd.Flags(), cfg, host)
	if err := scanCfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := newConsoleReporter(cmd.OutOrStdout())
	if !opts.noBanner {
		console.printBanner()
	}
	console.printHeader(scanCfg)

	if err := console.start(scanCfg.Range.Total()); err != nil {
		return err
	}
	scanner := newScanner(cfg, logger, metrics.GetGlobalMetrics())
	report, err := scanner.Scan(ctx, scanCfg, console)
	console.stop()
	if err != nil {
		return err
	}

	if err := console.printSummary(report); err != nil {
		return err
	}

	if formats := opts.export.formats(); len(formats) > 0 {
		dir := opts.reportsDir
		if dir == "" {
			dir = cfg.Jobs.ReportsDir
		}
		paths, err := exportReport(report, formats, dir, opts.output, time.Now())
		if err != nil {
			return err
		}
		for _, path := range paths {
			console.printSaved(path)
		}
	}
	return nil
}

// scanConfig merges flags with configuration defaults. Flags the user set
// win over the config file.
func (o *scanOptions) scanConfig(flags *pflag.FlagSet, cfg *config.Config, host string) scanning.ScanConfig {
	sc := scanning.ScanConfig{
		Host:        host,
		Range:       o.portRange,
		Concurrency: o.threads,
		Timeout:     time.Duration(o.timeout * float64(time.Second)),
	}
	if !flags.Changed("range") {
		if r, err := scanning.ParsePortRange(cfg.Scanning.DefaultRange); err == nil {
			sc.Range = r
		}
	}
	if !flags.Changed("threads") && cfg.Scanning.Concurrency > 0 {
		sc.Concurrency = cfg.Scanning.Concurrency
	}
	if !flags.Changed("timeout") && cfg.Scanning.Timeout > 0 {
		sc.Timeout = cfg.Scanning.Timeout
	}
	return sc
}

// newScanner builds the scan engine, querying the configured DNS server
// directly when one is set.
func newScanner(cfg *config.Config, logger *logging.Logger, m *metrics.PrometheusMetrics) *scanning.Scanner {
	opts := []scanning.Option{
		scanning.WithLogger(logger),
		scanning.WithMetrics(m),
	}
	if cfg.Scanning.DNSServer != "" {
		opts = append(opts, scanning.WithResolver(scanning.NewDNSResolver(cfg.Scanning.DNSServer, 0)))
	}
	return scanning.NewScanner(opts...)
}

// exportReport writes report once per format as <dir>/<prefix>_<timestamp>.<ext>.
func exportReport(
	report *scanning.ScanReport, formats []export.Format, dir, prefix string, at time.Time,
) ([]string, error) {
	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		path := filepath.Join(dir, export.Filename(prefix, f, at))
		if err := export.Save(path, f, report); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// consoleReporter renders scan progress and results to a terminal.
type consoleReporter struct {
	out io.Writer
	bar *pterm.ProgressbarPrinter
}

func newConsoleReporter(out io.Writer) *consoleReporter {
	return &consoleReporter{out: out}
}

func (c *consoleReporter) printBanner() {
	banner, err := pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("NET", pterm.FgCyan.ToStyle()),
		putils.LettersFromStringWithStyle("PORT", pterm.FgLightCyan.ToStyle()),
	).Srender()
	if err != nil {
		return
	}
	pterm.Fprintln(c.out, banner)
	pterm.Fprintln(c.out, pterm.Yellow("TCP Port Scanner"))
}

func (c *consoleReporter) printHeader(sc scanning.ScanConfig) {
	pterm.Fprintln(c.out, pterm.Sprintf("%s %s", pterm.Bold.Sprint("Target  :"), sc.Host))
	pterm.Fprintln(c.out, pterm.Sprintf("%s %s", pterm.Bold.Sprint("Range   :"), sc.Range.String()))
	pterm.Fprintln(c.out, pterm.Sprintf("%s %d", pterm.Bold.Sprint("Threads :"), sc.Concurrency))
	pterm.Fprintln(c.out, pterm.Sprintf("%s %s", pterm.Bold.Sprint("Timeout :"), sc.Timeout))
	c.rule()
	pterm.Fprintln(c.out, pterm.Yellow("[*] Starting scan..."))
}

func (c *consoleReporter) rule() {
	line := make([]rune, ruleWidth)
	for i := range line {
		line[i] = '─'
	}
	pterm.Fprintln(c.out, pterm.Cyan(string(line)))
}

func (c *consoleReporter) start(total int) error {
	bar, err := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle("Scanning").
		WithWriter(c.out).
		WithRemoveWhenDone(true).
		Start()
	if err != nil {
		return fmt.Errorf("failed to start progress bar: %w", err)
	}
	c.bar = bar
	return nil
}

// OnProgress implements scanning.ProgressSink.
func (c *consoleReporter) OnProgress(event scanning.ProgressEvent) {
	if event.Result.State == scanning.StateOpen {
		pterm.Fprintln(c.out, pterm.Sprintf("%s Port %s  →  %s",
			pterm.Green("[OPEN]"),
			pterm.Bold.Sprintf("%5d", event.Result.Port),
			pterm.Cyan(event.Result.Service)))
	}
	if c.bar != nil {
		c.bar.Increment()
	}
}

func (c *consoleReporter) stop() {
	if c.bar != nil {
		_, _ = c.bar.Stop()
		c.bar = nil
	}
}

func (c *consoleReporter) printSummary(report *scanning.ScanReport) error {
	c.rule()
	pterm.Fprintln(c.out, pterm.Bold.Sprint("SCAN COMPLETE"))
	c.rule()
	pterm.Fprintln(c.out, pterm.Sprintf("  Host            : %s (%s)", report.Host, report.ResolvedIP))
	pterm.Fprintln(c.out, pterm.Sprintf("  Ports Scanned   : %d", report.TotalPortsScanned))
	pterm.Fprintln(c.out, pterm.Sprintf("  Open Ports      : %s", pterm.Green(report.OpenCount)))
	pterm.Fprintln(c.out, pterm.Sprintf("  Duration        : %gs", report.DurationSeconds))
	c.rule()

	if len(report.OpenPorts) == 0 {
		pterm.Fprintln(c.out, pterm.Yellow(fmt.Sprintf("No open ports found in range %s.", report.ScanRange.String())))
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Port", "Service", "Security Note", "Banner")
	for _, p := range report.OpenPorts {
		banner := p.Banner
		if runes := []rune(banner); len(runes) > bannerPreviewLen {
			banner = string(runes[:bannerPreviewLen])
		}
		if err := table.Append([]string{fmt.Sprint(p.Port), p.Service, p.Recommendation, banner}); err != nil {
			return fmt.Errorf("failed to render results: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render results: %w", err)
	}
	return nil
}

func (c *consoleReporter) printSaved(path string) {
	pterm.Fprintln(c.out, pterm.Green(fmt.Sprintf("[✓] Report saved → %s", path)))
}
