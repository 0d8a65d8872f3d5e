package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/vendortwin/internal/config"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		cfg        = &config.Config{}
	)

	rootCmd := &cobra.Command{
		Use:          "vendortwin",
		Short:        "Vendor dependency graph and failure impact simulation",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig(configPath, cmd.Flags().Changed("config"))
			if err != nil {
				return err
			}
			*cfg = *loaded
			setupLogging(cfg)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/vendortwin.yaml", "Config file path")

	rootCmd.AddCommand(
		newLoadCmd(cfg),
		newLoadComplianceCmd(cfg),
		newMaintainCmd(cfg),
		newSimulateCmd(cfg),
		newVendorsCmd(cfg),
		newStatsCmd(cfg),
		newServeCmd(cfg),
		newWorkflowCmd(cfg),
	)
	return rootCmd
}
