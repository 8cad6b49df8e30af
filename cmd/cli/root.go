// Package cli implements the netport command line: one-shot scans with live
// progress and the long-running API server.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apihandlers "github.com/anstrom/netport/internal/api/handlers"
	"github.com/anstrom/netport/internal/config"
	apperrors "github.com/anstrom/netport/internal/errors"
	"github.com/anstrom/netport/internal/logging"
)

// envPrefix namespaces environment overrides, e.g. NETPORT_API_PORT.
const envPrefix = "NETPORT"

var (
	cfgFile string
	envFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "netport",
	Short: "Concurrent TCP port scanner",
	Long: `netport probes a range of TCP ports on a single host, grabs banners from
open ports and annotates them with a known service name and a security note.

Run a scan from the terminal with "netport scan", or start the HTTP job API
with "netport server".`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", apperrors.UserMessage(err))
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./netport.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before environment overrides")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig loads the dotenv file, locates the config file and sets up
// environment lookups.
func initConfig() {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load %s: %v\n", envFile, err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("netport")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig reads the config file found by initConfig, applies
// environment overrides and validates the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.ConfigFileUsed())
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, viper.GetViper()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyOverrides copies environment values onto cfg. Only keys with an
// environment variable set are applied.
func applyOverrides(cfg *config.Config, v *viper.Viper) error {
	overrides := []struct {
		key   string
		apply func(v *viper.Viper, key string)
	}{
		{"scanning.default_range", func(v *viper.Viper, k string) { cfg.Scanning.DefaultRange = v.GetString(k) }},
		{"scanning.concurrency", func(v *viper.Viper, k string) { cfg.Scanning.Concurrency = v.GetInt(k) }},
		{"scanning.timeout", func(v *viper.Viper, k string) { cfg.Scanning.Timeout = v.GetDuration(k) }},
		{"scanning.dns_server", func(v *viper.Viper, k string) { cfg.Scanning.DNSServer = v.GetString(k) }},
		{"api.host", func(v *viper.Viper, k string) { cfg.API.Host = v.GetString(k) }},
		{"api.port", func(v *viper.Viper, k string) { cfg.API.Port = v.GetInt(k) }},
		{"api.auth_enabled", func(v *viper.Viper, k string) { cfg.API.AuthEnabled = v.GetBool(k) }},
		{"api.api_key_hashes", func(v *viper.Viper, k string) { cfg.API.APIKeyHashes = v.GetStringSlice(k) }},
		{"jobs.workers", func(v *viper.Viper, k string) { cfg.Jobs.Size = v.GetInt(k) }},
		{"jobs.reports_dir", func(v *viper.Viper, k string) { cfg.Jobs.ReportsDir = v.GetString(k) }},
		{"database.enabled", func(v *viper.Viper, k string) { cfg.Database.Enabled = v.GetBool(k) }},
		{"database.host", func(v *viper.Viper, k string) { cfg.Database.Host = v.GetString(k) }},
		{"database.port", func(v *viper.Viper, k string) { cfg.Database.Port = v.GetInt(k) }},
		{"database.database", func(v *viper.Viper, k string) { cfg.Database.Database = v.GetString(k) }},
		{"database.username", func(v *viper.Viper, k string) { cfg.Database.Username = v.GetString(k) }},
		{"database.password", func(v *viper.Viper, k string) { cfg.Database.Password = v.GetString(k) }},
		{"logging.level", func(v *viper.Viper, k string) { cfg.Logging.Level = logging.LogLevel(v.GetString(k)) }},
		{"logging.format", func(v *viper.Viper, k string) { cfg.Logging.Format = logging.LogFormat(v.GetString(k)) }},
	}

	for _, o := range overrides {
		envVar := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(o.key, ".", "_"))
		if err := v.BindEnv(o.key, envVar); err != nil {
			return fmt.Errorf("failed to bind %s: %w", envVar, err)
		}
		if _, ok := os.LookupEnv(envVar); ok {
			o.apply(v, o.key)
		}
	}
	return nil
}

// initLogging installs the configured logger as the process default.
func initLogging(cfg *config.Config) *logging.Logger {
	logCfg := cfg.Logging
	if verbose {
		logCfg.Level = logging.LevelDebug
	}

	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
		logger = logging.NewDefault()
	}
	logging.SetDefault(logger)
	return logger
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
	apihandlers.SetBuildInfo(v, c, bt)
}
