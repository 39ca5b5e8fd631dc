package main

import (
	"github.com/spf13/cobra"

	"github.com/finbridge/finbridge/logger"
)

var (
	configPath string
	jsonLogs   bool
)

var rootCmd = &cobra.Command{
	Use:   "finbridge",
	Short: "Business plugin middleware host",
	Long: `finbridge hosts integration plugins that connect document management
and invoicing systems (Paperless-NGX, InvoicePlane, Invoice Ninja) to
accounting backends (BigCapital), extracting financial records from
documents and syncing them across systems.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Initialize(jsonLogs)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "finbridge.ini", "path to the settings file")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit JSON log output")
}
