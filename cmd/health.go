package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/trii-invest/insightd/internal/contextserver"
)

var healthJSON bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check which configured models are available",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		contexts, err := newContextServer(cfg, logger)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		report := contexts.HealthCheck(ctx)

		if healthJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		fmt.Printf("Overall: %s\n\n", report.OverallStatus)
		for _, b := range cfg.Backends {
			st, ok := report.Models[b.ID()]
			if !ok {
				continue
			}
			mark := "ok"
			if !st.Available {
				mark = "unavailable"
			}
			fmt.Printf("  %-28s %-12s %s\n", st.ID, mark, st.Error)
		}
		if report.OverallStatus == contextserver.StatusUnhealthy {
			return fmt.Errorf("no models available")
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(healthCmd)
}
