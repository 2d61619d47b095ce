package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taridex/declaration-processor/internal/fields"
	"github.com/taridex/declaration-processor/internal/xmlexport"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the ESADout_CU XML payload",
	Long: `Export computes the field map the same way compute does, projects
it into the ESADout_CU shape and writes the XML document.

Examples:
  declaration-processor export --date 20.01.2024 \
    --doc invoice=invoice.json --doc packing=packing.json -o declaration.xml

  # Write to stdout
  declaration-processor export --doc invoice=invoice.json -o -`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringArrayVar(&computeDocs, "doc", nil, "Document as <type>=<path> (repeatable)")
	exportCmd.Flags().StringVar(&computeDate, "date", "", "Declaration date")
	exportCmd.Flags().StringVar(&computeOverrides, "overrides", "", "Path to a JSON override map")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "declaration.xml", "Output path, - for stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
	in, err := loadInputs("local")
	if err != nil {
		return err
	}

	fieldMap := fields.Assemble(cmd.Context(), in)
	out, err := xmlexport.Build(fieldMap)
	if err != nil {
		return err
	}

	if exportOutput == "-" {
		_, err = os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(exportOutput, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportOutput, err)
	}
	printVerbose("wrote %d bytes to %s\n", len(out), exportOutput)
	return nil
}
