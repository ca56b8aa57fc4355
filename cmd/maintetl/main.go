package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/maintetl/internal/config"
	"github.com/JonMunkholm/maintetl/internal/logging"
)

// cfg is loaded once by the root command before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:          "maintetl",
	Short:        "Maintenance events ETL",
	Long:         "Builds the maintenance fact and summary tables from raw CSV exports.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Load .env file if it exists (Overload overwrites existing env vars)
		if err := godotenv.Overload(); err == nil {
			slog.Info("loaded .env file (overwriting existing env vars)")
		}

		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded

		applyFlagOverrides(cmd, cfg)
		logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

		slog.Info("configuration loaded", "config", cfg.String())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("input-dir", "", "Override PIPELINE_INPUT_DIR")
	rootCmd.PersistentFlags().String("output-dir", "", "Override PIPELINE_OUTPUT_DIR")
	rootCmd.PersistentFlags().String("log-level", "", "Override LOG_LEVEL")
}

// applyFlagOverrides lets explicit flags win over the environment.
func applyFlagOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if v, _ := flags.GetString("input-dir"); v != "" {
		c.Pipeline.InputDir = v
	}
	if v, _ := flags.GetString("output-dir"); v != "" {
		c.Pipeline.OutputDir = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		c.Logging.Level = v
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}
