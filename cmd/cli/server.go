package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/anstrom/netport/internal/api"
	apihandlers "github.com/anstrom/netport/internal/api/handlers"
	"github.com/anstrom/netport/internal/config"
	"github.com/anstrom/netport/internal/db"
	"github.com/anstrom/netport/internal/jobs"
	"github.com/anstrom/netport/internal/logging"
	"github.com/anstrom/netport/internal/metrics"
	"github.com/anstrom/netport/internal/scheduler"
	"github.com/anstrom/netport/internal/workers"
)

const systemMetricsInterval = 15 * time.Second

type serverOptions struct {
	host string
	port int
}

func newServerCmd() *cobra.Command {
	opts := &serverOptions{}

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the scan job API",
		Long: `Start the HTTP API that queues scans on a worker pool, reports their
progress over polling and websockets, exports finished reports and runs the
configured scan schedules.`,
		Example: `  netport server
  netport server --host 0.0.0.0 --port 8080
  NETPORT_DATABASE_ENABLED=true netport server --config netport.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "override the API listen host")
	cmd.Flags().IntVar(&opts.port, "port", 0, "override the API listen port")

	return cmd
}

func init() {
	rootCmd.AddCommand(newServerCmd())
}

func runServer(cmd *cobra.Command, opts *serverOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.host != "" {
		cfg.API.Host = opts.host
	}
	if opts.port != 0 {
		cfg.API.Port = opts.port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := initLogging(cfg)
	m := metrics.GetGlobalMetrics()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go m.StartPeriodicUpdates(ctx, systemMetricsInterval)

	return serve(ctx, cfg, logger, m)
}

// serve wires the scanner, worker pool, job manager, scheduler and HTTP API
// and blocks until ctx is canceled.
func serve(ctx context.Context, cfg *config.Config, logger *logging.Logger, m *metrics.PrometheusMetrics) error {
	var (
		pinger   apihandlers.DatabasePinger
		jobsOpts = []jobs.Option{jobs.WithLogger(logger), jobs.WithMetrics(m)}
	)

	if cfg.Database.Enabled {
		database, err := db.ConnectAndMigrate(ctx, &cfg.Database)
		if err != nil {
			return err
		}
		defer func() {
			if err := database.Close(); err != nil {
				logger.Warn("Failed to close database", "error", err)
			}
		}()
		pinger = database
		jobsOpts = append(jobsOpts, jobs.WithStore(db.NewReportRepository(database, m)))
		logger.InfoDatabase("Report persistence enabled", "host", cfg.Database.Host, "database", cfg.Database.Database)
	}

	pool := workers.New(cfg.Jobs.Config, logger, m)
	pool.Start()
	defer pool.Shutdown()

	manager := jobs.NewManager(newScanner(cfg, logger, m), pool, jobs.Config{
		ReportsDir:     cfg.Jobs.ReportsDir,
		MaxConcurrency: cfg.Scanning.MaxConcurrency,
	}, jobsOpts...)

	sched := scheduler.New(manager, logger)
	if err := sched.LoadConfig(cfg.Schedules, cfg.Scanning); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	server, err := api.New(cfg, manager, pinger, m, logger)
	if err != nil {
		return err
	}
	return server.Start(ctx)
}
