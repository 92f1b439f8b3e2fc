package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rewired-gh/elecwatch/internal/config"
	"github.com/rewired-gh/elecwatch/internal/logger"
)

var (
	cfgFile string
	envFile string
	strict  bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "elecwatch",
	Short: "Watch prepaid electricity balances and alert before they run out",
	Long: `elecwatch polls each unit's balance page, keeps a per-unit history of readings,
estimates consumption over the last hour and day, and pushes an alert when the
balance or the estimated time remaining drops below its threshold.

Without a subcommand it runs a single batch, like "elecwatch run".`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runOnce,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultFileName+" when present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading configuration")
	rootCmd.Flags().BoolVar(&strict, "strict", false, "exit with status 2 when history cannot be saved")
}

// setup loads the env file and configuration and initializes logging.
func setup(cmd *cobra.Command, args []string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return configError(fmt.Errorf("loading %s: %w", envFile, err))
		}
	}

	loaded, err := config.Load(cfgFile)
	if err != nil {
		return configError(err)
	}
	if err := loaded.Validate(); err != nil {
		return configError(fmt.Errorf("invalid configuration: %w", err))
	}
	cfg = loaded

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if cfgFile != "" {
		logger.Debug("Configuration loaded from %s", cfgFile)
	}
	return nil
}
