package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/meridian-fmcg/rfp-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "rfp-cli",
	Short: "FMCG order and RFP automation pipeline",
	Long:  "Parses purchase orders and RFPs, matches line items to the SKU catalog, prices the quote, analyzes the deal, and drafts a client-ready proposal.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
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
