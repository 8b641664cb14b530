package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/trii-invest/insightd/internal/audit"
	"github.com/trii-invest/insightd/internal/db"
)

var (
	auditSince     time.Duration
	auditOlderThan time.Duration
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and prune the dispatch audit trail",
}

var auditUsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show requests and tokens per model",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, closeDB, err := openAuditStore()
		if err != nil {
			return err
		}
		defer closeDB()

		var since *time.Time
		if auditSince > 0 {
			t := time.Now().Add(-auditSince)
			since = &t
		}
		usage, err := store.UsageByModel(cmd.Context(), since)
		if err != nil {
			return err
		}
		if len(usage) == 0 {
			fmt.Println("No dispatches recorded.")
			return nil
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(usage)
	},
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete audit entries older than a duration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if auditOlderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}
		store, closeDB, err := openAuditStore()
		if err != nil {
			return err
		}
		defer closeDB()

		n, err := store.DeleteBefore(cmd.Context(), time.Now().Add(-auditOlderThan))
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d audit entries.\n", n)
		return nil
	},
}

func openAuditStore() (*audit.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return audit.NewStore(database), func() { database.Close() }, nil
}

func init() {
	auditUsageCmd.Flags().DurationVar(&auditSince, "since", 0, "only count dispatches within this window (e.g. 24h)")
	auditPruneCmd.Flags().DurationVar(&auditOlderThan, "older-than", 30*24*time.Hour, "age of entries to delete")
	auditCmd.AddCommand(auditUsageCmd, auditPruneCmd)
	rootCmd.AddCommand(auditCmd)
}
