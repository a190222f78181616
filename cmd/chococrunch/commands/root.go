package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chococrunch",
	Short: "ChocoCrunch - chocolate product nutrition pipeline",
	Long: `ChocoCrunch CLI

Extracts chocolate products from Open Food Facts, cleans the nutrient data,
derives health classifications and loads the result into a relational store.

Each stage reads the snapshot written by the previous one under storage.data_dir:
  extract   -> raw/chocolate_products_raw.csv
  clean     -> processed/chocolate_products_cleaned.csv
  engineer  -> processed/chocolate_products_engineered.csv
  load      -> product_info, nutrient_info, derived_metrics

Examples:
  chococrunch run
  chococrunch extract --target 500
  chococrunch serve --port 8080`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
