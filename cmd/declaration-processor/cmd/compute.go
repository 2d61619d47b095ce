package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taridex/declaration-processor/internal/dataset"
	"github.com/taridex/declaration-processor/internal/fields"
	"github.com/taridex/declaration-processor/internal/model"
)

var (
	computeDocs      []string
	computeDate      string
	computeOverrides string
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute a declaration field map from per-type JSON files",
	Long: `Compute folds per-type JSON documents into one dataset, runs the
resolver chain and prints the field map as JSON on stdout.

Each --doc takes the form <type>=<path>, where <type> is one of:
  invoice, contract, packing, transport_road, transport_air,
  transport_sea, transport_rail, payment, consolidated

Examples:
  declaration-processor compute --date 20.01.2024 \
    --doc invoice=invoice.json --doc packing=packing.json

  declaration-processor compute --date 20.01.2024 \
    --doc invoice=invoice.json --overrides overrides.json`,
	RunE: runCompute,
}

func init() {
	rootCmd.AddCommand(computeCmd)

	computeCmd.Flags().StringArrayVar(&computeDocs, "doc", nil, "Document as <type>=<path> (repeatable)")
	computeCmd.Flags().StringVar(&computeDate, "date", "", "Declaration date")
	computeCmd.Flags().StringVar(&computeOverrides, "overrides", "", "Path to a JSON override map")
}

// loadInputs builds the compute inputs shared by compute and export.
func loadInputs(declID string) (fields.Inputs, error) {
	if len(computeDocs) == 0 {
		return fields.Inputs{}, fmt.Errorf("at least one --doc is required")
	}

	var docs []model.Document
	for i, spec := range computeDocs {
		typeKey, path, ok := strings.Cut(spec, "=")
		if !ok {
			return fields.Inputs{}, fmt.Errorf("invalid --doc %q, expected <type>=<path>", spec)
		}
		if !model.IsKnownDocType(typeKey) {
			return fields.Inputs{}, fmt.Errorf("unknown document type %q", typeKey)
		}
		payload, err := os.ReadFile(path)
		if err != nil {
			return fields.Inputs{}, fmt.Errorf("read %s: %w", path, err)
		}
		printVerbose("loaded %s (%d bytes) as %s\n", path, len(payload), typeKey)
		docs = append(docs, model.Document{
			ID:        fmt.Sprintf("doc-%d", i+1),
			TypeKey:   model.DocType(typeKey),
			Payload:   payload,
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
		})
	}

	decl := model.Declaration{ID: declID, Date: computeDate}
	ds, err := dataset.Build(decl, docs)
	if err != nil {
		return fields.Inputs{}, err
	}

	overrides := model.Overrides{}
	if computeOverrides != "" {
		raw, err := os.ReadFile(computeOverrides)
		if err != nil {
			return fields.Inputs{}, fmt.Errorf("read %s: %w", computeOverrides, err)
		}
		if err := json.Unmarshal(raw, &overrides); err != nil {
			return fields.Inputs{}, fmt.Errorf("parse %s: %w", computeOverrides, err)
		}
	}

	return fields.Inputs{
		DeclarationID: declID,
		DS:            ds,
		Overrides:     overrides,
		Rates:         newRateSource(),
		Offices:       newOfficeDirectory(),
	}, nil
}

func runCompute(cmd *cobra.Command, args []string) error {
	in, err := loadInputs("local")
	if err != nil {
		return err
	}

	fieldMap := fields.Assemble(cmd.Context(), in)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(fieldMap)
}
