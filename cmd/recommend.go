package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trii-invest/insightd/internal/orchestrator"
	"github.com/trii-invest/insightd/internal/progress"
)

var (
	recUser        string
	recComplexity  string
	recJSON        bool
	recConcurrency int
)

type recommendResult struct {
	Symbol         string                       `json:"symbol"`
	Recommendation *orchestrator.Recommendation `json:"recommendation,omitempty"`
	Error          string                       `json:"error,omitempty"`
}

var recommendCmd = &cobra.Command{
	Use:   "recommend SYMBOL [SYMBOL...]",
	Short: "Generate recommendations for one or more symbols",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		complexity, err := orchestrator.ParseComplexity(recComplexity)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		var contextData map[string]any
		if recUser != "" {
			summary, err := a.users.ContextData(ctx, recUser)
			if err != nil {
				return fmt.Errorf("loading profile %s: %w", recUser, err)
			}
			if summary != nil {
				contextData = map[string]any{"user_profile": summary}
			}
		}

		results := make([]recommendResult, len(args))
		reporter := progress.NewReporter(os.Stderr, "Recommending")
		reporter.Start(len(args))

		var (
			mu   sync.Mutex
			done int
		)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(recConcurrency, 1))
		for i, arg := range args {
			symbol := strings.ToUpper(arg)
			g.Go(func() error {
				rec, err := a.orch.GenerateRecommendation(gctx, symbol, recUser, contextData, complexity)
				results[i] = recommendResult{Symbol: symbol, Recommendation: rec}
				if err != nil {
					results[i].Error = err.Error()
					a.logger.Warn("recommendation failed", zap.String("symbol", symbol), zap.Error(err))
				}
				mu.Lock()
				done++
				reporter.Update(done, symbol)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
		reporter.Finish()

		if recJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}

		failed := 0
		for _, r := range results {
			if r.Error != "" {
				failed++
				fmt.Printf("%-8s error: %s\n", r.Symbol, r.Error)
				continue
			}
			an := r.Recommendation.Recommendation
			fmt.Printf("%-8s %-6s confidence %3d%%  horizon %-12s model %s\n",
				r.Symbol, an.Signal, an.Confidence, an.TimeHorizon, r.Recommendation.ModelUsed)
			for _, reason := range an.Reasons {
				fmt.Printf("         + %s\n", reason)
			}
			for _, risk := range an.Risks {
				fmt.Printf("         - %s\n", risk)
			}
		}
		if failed == len(results) {
			return fmt.Errorf("all %d recommendations failed", failed)
		}
		return nil
	},
}

func init() {
	recommendCmd.Flags().StringVar(&recUser, "user", "", "investor id whose profile shapes the prompt")
	recommendCmd.Flags().StringVar(&recComplexity, "complexity", "medium", "low, medium, high or critical")
	recommendCmd.Flags().BoolVar(&recJSON, "json", false, "print results as JSON")
	recommendCmd.Flags().IntVar(&recConcurrency, "concurrency", 2, "symbols processed in parallel")
	rootCmd.AddCommand(recommendCmd)
}
