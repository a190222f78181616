package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/chococrunch/pipeline/internal/domain"
	"github.com/spf13/cobra"
)

var (
	targetCount  int
	skipExisting bool
	jsonOutput   bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Fetch chocolate products into the raw snapshot",
	Long: `Pages through the Open Food Facts search until the target record count is
reached or a page comes back empty, and writes raw/chocolate_products_raw.csv.

Example:
  chococrunch extract --target 500`,
	RunE: stageCommand(domain.StageExtract),
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Drop incomplete records, impute gaps and remove outliers",
	RunE:  stageCommand(domain.StageClean),
}

var engineerCmd = &cobra.Command{
	Use:   "engineer",
	Short: "Derive calorie, sugar, risk and brand size classifications",
	RunE:  stageCommand(domain.StageEngineer),
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Replace the relational tables with the engineered snapshot",
	RunE:  stageCommand(domain.StageLoad),
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run extract, clean, engineer and load in order",
	RunE:  stageCommand(domain.Stages...),
}

func init() {
	for _, cmd := range []*cobra.Command{extractCmd, cleanCmd, engineerCmd, loadCmd, runCmd} {
		cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the execution report as JSON")
		rootCmd.AddCommand(cmd)
	}

	extractCmd.Flags().IntVar(&targetCount, "target", 0, "minimum number of records to extract (default from config)")
	runCmd.Flags().IntVar(&targetCount, "target", 0, "minimum number of records to extract (default from config)")
	runCmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "skip stages whose snapshot already exists")
}

// stageCommand runs the given stages, cancelling on SIGINT/SIGTERM
func stageCommand(stages ...domain.Stage) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, runErr := a.pipeline.RunStages(ctx, stages...)
		if err := printReport(cmd.OutOrStdout(), report, jsonOutput); err != nil {
			return err
		}
		return runErr
	}
}
