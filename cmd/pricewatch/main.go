package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/pricewatch/internal/common"
)

var (
	// Command-line flags shared by every subcommand
	configFiles []string // Later files override earlier ones
	logLevel    string

	// Global state, set in loadConfig
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:           "pricewatch",
	Short:         "Retail catalog and weekly offer crawler",
	Long:          `Crawls retailer product catalogs and weekly flyers with a headless browser and keeps a reconciled price history.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return loadConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(targetsCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig runs the startup sequence: defaults -> files -> env -> flags,
// then initializes the logger
func loadConfig() error {
	if len(configFiles) == 0 {
		if _, err := os.Stat("pricewatch.toml"); err == nil {
			configFiles = append(configFiles, "pricewatch.toml")
		} else if _, err := os.Stat("deployments/local/pricewatch.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/pricewatch.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration %v: %w", configFiles, err)
	}
	if logLevel != "" {
		config.Logging.Level = logLevel
	}

	logger = common.InitLogger(config)
	common.InstallCrashHandler(config)
	logger.Debug().
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Str("badger_path", config.Storage.Badger.Path).
		Msg("Configuration loaded")
	return nil
}

func main() {
	defer common.RecoverWithCrashReport()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
