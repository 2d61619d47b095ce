package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taridex/declaration-processor/internal/customsoffice"
	"github.com/taridex/declaration-processor/internal/rates"
)

var (
	version = "1.0.0"

	// Global flags
	verbose    bool
	cbrBaseURL string
	officesURL string
)

var rootCmd = &cobra.Command{
	Use:   "declaration-processor",
	Short: "Compute customs declaration field maps from trade documents",
	Long: `Declaration Processor folds extracted trade documents (invoice,
contract, packing list, transport and payment documents) into one
dataset, computes the full declaration field map and exports it as
ESADout_CU XML.

Examples:
  # Serve the HTTP API backed by sqlite
  declaration-processor serve --db declarations.db

  # Compute a field map from per-type JSON files
  declaration-processor compute --date 20.01.2024 \
    --doc invoice=invoice.json --doc packing=packing.json

  # Export the XML payload
  declaration-processor export --date 20.01.2024 \
    --doc invoice=invoice.json -o declaration.xml`,
	Version: version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cbrBaseURL, "cbr-url", "", "Central bank base URL for FX rates (env: CBR_URL)")
	rootCmd.PersistentFlags().StringVar(&officesURL, "offices-url", "", "Customs office directory base URL (env: OFFICES_URL)")

	// Load from environment variables if not set via flags
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if cbrBaseURL == "" {
		cbrBaseURL = os.Getenv("CBR_URL")
	}
	if officesURL == "" {
		officesURL = os.Getenv("OFFICES_URL")
	}
}

func newRateSource() rates.Source {
	return rates.NewCBRClient(cbrBaseURL, nil)
}

func newOfficeDirectory() customsoffice.Directory {
	if officesURL == "" {
		return nil
	}
	return customsoffice.NewHTTPDirectory(officesURL, nil)
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
