/*
sales-engine - payment attribution and compensation engine

PURPOSE:
  Command-line entry point. Loads configuration, sets up logging and
  dispatches to subcommands.

COMMANDS:
  serve    Start the HTTP API with periodic refresh
  payroll  Compute payroll for one month or a range
  audit    Print the anomaly and schedule reports
  seed     Load a demo scenario into the configured store

ENVIRONMENT:
  Every config key can be set with the SALES_ prefix, for example
  SALES_STORE_DRIVER=postgres or SALES_PAYROLL_TIMEZONE=Europe/Kyiv.

SEE ALSO:
  - config/config.go: Keys and defaults
  - api/server.go: Routes
*/
package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/astropanel/sales-engine/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sales-engine",
	Short: "Payment attribution and compensation engine",
	Long:  "Attributes payments to acquisition channels, computes manager payroll and audits payments and shift schedules.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
