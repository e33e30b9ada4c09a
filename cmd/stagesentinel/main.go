package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"StageSentinel/internal/config"
	"StageSentinel/internal/logging"
)

var configPath string

// rootCmd is the base command for the StageSentinel CLI.
var rootCmd = &cobra.Command{
	Use:   "stagesentinel",
	Short: "Synthetic Weinstein stage series generator and watcher",
	Long: `StageSentinel generates demo OHLCV series that walk through the four
Weinstein stages (basing, advancing, topping, declining), serves them over
HTTP, and alerts when a watched symbol's replayed stage changes.

The data is synthetic. It is not market data.`,
	SilenceUsage: true,
}

func init() {
	defaultPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultPath = v
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultPath, "Path to the YAML config file")

	rootCmd.AddCommand(serveCmd, generateCmd, exportCmd, backtestCmd)
}

// loadConfig loads and validates the config, then configures logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
