package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/anstrom/netport/internal/db"
	"github.com/anstrom/netport/internal/errors"
	"github.com/anstrom/netport/internal/export"
	"github.com/anstrom/netport/internal/metrics"
)

const reportLookupTimeout = 10 * time.Second

func newReportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "report <job-id>",
		Short: "Show a report stored by the server",
		Long: `Load a completed scan report from the database by job id and print its
summary, or write it as JSON or CSV with --format.`,
		Example: `  netport report ab12cd34
  netport report ab12cd34 --format csv > scan.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled {
				return errors.NewConfigFieldError(errors.CodeConfiguration,
					"Reports are only stored when the database is enabled", "database.enabled", false)
			}
			initLogging(cfg)

			ctx, cancel := context.WithTimeout(cmd.Context(), reportLookupTimeout)
			defer cancel()

			database, err := db.Connect(ctx, &cfg.Database)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			report, err := db.NewReportRepository(database, metrics.GetGlobalMetrics()).GetReport(ctx, args[0])
			if err != nil {
				return err
			}

			if format != "" {
				f, err := export.ParseFormat(format)
				if err != nil {
					return err
				}
				return export.Write(cmd.OutOrStdout(), f, report)
			}
			return newConsoleReporter(cmd.OutOrStdout()).printSummary(report)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "", "write the report as json or csv instead of a summary")
	return cmd
}

func init() {
	rootCmd.AddCommand(newReportCmd())
}
