package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corvusmta/corvus/internal/config"
	"github.com/corvusmta/corvus/internal/logging"
)

var (
	configPath string
	cfg        *config.Config

	rootCmd = &cobra.Command{
		Use:   "corvus",
		Short: "Corvus SMTP delivery-outcome engine",
		Long: `Command line tool for the Corvus delivery-outcome engine: the part of an
SMTP client that decides, per recipient, whether a delivery attempt succeeded,
should be retried later, or has permanently failed.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "completion" {
				return
			}

			var err error
			cfg, err = config.LoadConfig(configPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
				os.Exit(1)
			}
			logging.Init(cfg.Logging)
		},
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return cfg
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
}
