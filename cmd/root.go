package cmd

import (
	"github.com/spf13/cobra"

	"github.com/trii-invest/insightd/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "insightd",
	Short: "Context-aware model dispatch for investment recommendations",
	Long: `insightd gathers market data, investor profiles and research notes into
a per-session context, then dispatches generation requests across hosted
and local language models with automatic fallback. It is served over
HTTP, websocket and MCP.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
