package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/ac-deploy/internal/config"
	"github.com/oshokin/ac-deploy/internal/domain/content"
	"github.com/oshokin/ac-deploy/internal/logger"
	"github.com/oshokin/ac-deploy/internal/version"
)

var (
	// configPath to the configuration YAML file; empty means the default file, if present.
	configPath string
	// logLevel overrides log_level from the configuration.
	logLevel string

	// rootCmd is the base command; every action is a subcommand.
	rootCmd = &cobra.Command{
		Use:   "ac-deploy",
		Short: "Publish custom Assetto Corsa content and roll it out to a game server",
		Long: `ac-deploy finds the cars and tracks of a server pack that are not part of
the stock game, uploads them to object storage, points the pack's
content.json at the uploaded archives and replaces the content of a
remote AssettoServer installation, restarting and checking the service.

Settings come from ac-deploy.yaml, then .env, then environment variables
(GCP_BUCKET_NAME, ASSETTO_CORSA_DIR, GCP_VM_INSTANCE_NAME, GCP_VM_ZONE,
GCP_VM_DESTINATION_PATH, AC_DEPLOY_*).`,
		SilenceUsage: true,
	}
)

// Execute runs the ac-deploy CLI and exits with non-zero status on error.
func Execute() {
	rootCmd.AddCommand(version.NewCommand())

	err := rootCmd.Execute()

	logger.Sync()

	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads settings and applies the effective log level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	level, ok := logger.ParseLogLevel(cfg.LogLevel)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	logger.SetLevel(level)

	return cfg, nil
}

func loadBaseline(cfg *config.Config) (*content.Baseline, error) {
	if cfg.BaselineFile == "" {
		return content.DefaultBaseline(), nil
	}

	return content.LoadBaseline(cfg.BaselineFile)
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().
		StringVarP(&configPath, "config", "c", "", "path to configuration file (default "+config.DefaultConfigFilename+")")
	rootCmd.PersistentFlags().
		StringVarP(&logLevel, "log-level", "l", "", "debug, info, warn or error")
}
