package cmd

import (
	"github.com/spf13/cobra"

	"github.com/trii-invest/insightd/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize insightd configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose backends and upstream services, and writes the config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
