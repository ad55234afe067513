package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/solatis/overseer/internal/core/config"
	"github.com/solatis/overseer/internal/core/logging"
	"github.com/spf13/cobra"
)

// Version is the overseer release, also the default engine version.
const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:           "overseer",
	Short:         "Overseer agent action governance",
	Long:          `Overseer decides whether actions proposed by autonomous agents may run, based on a prioritized rule set.`,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads configuration and applies the persistent flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbURL != "" {
		cfg.Database.URL = dbURL
	}
	return cfg, nil
}

// newLogger builds the process logger and installs it as the slog default.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	logger, err := logging.New(logLevel, logFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

func requireDBURL(cfg *config.Config) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("--db-url required (or set OV_DATABASE_URL)")
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
