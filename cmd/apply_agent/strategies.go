package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/apply-agent/internal/observability"
	"github.com/jonathan/apply-agent/internal/strategy"
)

var strategiesCommand = &cobra.Command{
	Use:   "strategies",
	Short: "Inspect strategy definition files",
}

var strategiesListCommand = &cobra.Command{
	Use:   "list",
	Short: "List the strategies in a directory",
	RunE:  runStrategiesListCmd,
}

var strategiesValidateCommand = &cobra.Command{
	Use:   "validate",
	Short: "Validate every strategy definition in a directory",
	RunE:  runStrategiesValidateCmd,
}

var strategiesDir string

func init() {
	strategiesCommand.PersistentFlags().StringVarP(&strategiesDir, "strategies", "s", "strategies", "Directory of strategy definition JSON files")
	strategiesCommand.AddCommand(strategiesListCommand)
	strategiesCommand.AddCommand(strategiesValidateCommand)
	rootCmd.AddCommand(strategiesCommand)
}

func runStrategiesListCmd(_ *cobra.Command, _ []string) error {
	defs, errs := strategy.LoadDir(strategiesDir)
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	printer := observability.NewPrinter(os.Stdout)
	printer.PrintDefinitions(defs)
	return nil
}

func runStrategiesValidateCmd(_ *cobra.Command, _ []string) error {
	defs, errs := strategy.LoadDir(strategiesDir)
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
	}
	for _, def := range defs {
		fmt.Printf("✓ %s (%s)\n", def.ID, def.Name)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d of %d definitions failed validation", len(errs), len(defs)+len(errs))
	}
	fmt.Printf("All %d definitions valid\n", len(defs))
	return nil
}
