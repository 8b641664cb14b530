package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	mcpserver "github.com/trii-invest/insightd/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing recommendation, context and health tools plus market data, profile and research note resources.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := newApp(context.Background(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		mcpserver.Version = Version

		opts := []mcpserver.Option{mcpserver.WithLogger(a.logger.Named("mcp"))}
		if store := a.noteStore(); store != nil {
			opts = append(opts, mcpserver.WithNotes(store))
		}
		srv := mcpserver.NewServer(a.contexts, a.orch, opts...)

		a.logger.Info("insightd MCP server started on stdio",
			zap.String("version", Version),
			zap.Int("backends", len(cfg.Backends)),
		)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
