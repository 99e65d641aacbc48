package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/IGTA-Tech/xtraordinary-research-visa-generator-complete/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "petition-cli",
	Short: "Visa petition document generator",
	Long:  "Fetches evidence URLs, extracts uploaded files, and generates the full 8-document petition package via tiered text-generation providers.",
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
