package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/apply-agent/internal/registry"
	"github.com/jonathan/apply-agent/internal/store"
)

var metricsCommand = &cobra.Command{
	Use:   "metrics [strategy-id]",
	Short: "Show persisted A/B aggregates for a strategy",
	Long:  "Reads the A/B-test aggregate recorded for a strategy from the persistent store and prints the success rates of the AI and deterministic paths.",
	Args:  cobra.ExactArgs(1),
	RunE:  runMetricsCmd,
}

var metricsDatabaseURL string

func init() {
	metricsCommand.Flags().StringVar(&metricsDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	rootCmd.AddCommand(metricsCommand)
}

func runMetricsCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	id := args[0]

	databaseURL := metricsDatabaseURL
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}

	pg, err := store.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pg.Close()

	reg := registry.New(registry.Config{Store: pg})
	defer reg.Close()

	agg, err := reg.ABAggregateFor(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read aggregate for %s: %w", id, err)
	}

	fmt.Printf("Strategy: %s\n", id)
	fmt.Printf("  AI path:        %d attempts, %d successes (%s)\n",
		agg.AIAttempts, agg.AISuccesses, rate(agg.AISuccesses, agg.AIAttempts))
	fmt.Printf("  Strategy path:  %d attempts, %d successes (%s)\n",
		agg.StrategyAttempts, agg.StrategySuccesses, rate(agg.StrategySuccesses, agg.StrategyAttempts))
	return nil
}

func rate(successes, attempts int) string {
	if attempts == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%%", float64(successes)/float64(attempts)*100)
}
