// Package declarant is the public surface of the declaration engine:
// the domain types and the compute entry points, re-exported so
// embedding applications do not import internal packages directly.
package declarant

import (
	"context"

	"github.com/taridex/declaration-processor/internal/customsoffice"
	"github.com/taridex/declaration-processor/internal/dataset"
	"github.com/taridex/declaration-processor/internal/fields"
	"github.com/taridex/declaration-processor/internal/model"
	"github.com/taridex/declaration-processor/internal/rates"
	"github.com/taridex/declaration-processor/internal/xmlexport"
)

// Re-exported domain types.
type (
	Declaration = model.Declaration
	Document    = model.Document
	DocType     = model.DocType
	Overrides   = model.Overrides
	FieldMap    = model.FieldMap

	RateSource      = rates.Source
	OfficeDirectory = customsoffice.Directory
)

// Engine computes field maps for one rate source and office directory
// pair. The zero value computes without either collaborator.
type Engine struct {
	Rates   RateSource
	Offices OfficeDirectory
}

// Compute merges the documents of one declaration and runs the full
// resolver chain against the given overrides.
func (e Engine) Compute(ctx context.Context, decl Declaration, docs []Document, overrides Overrides) (FieldMap, error) {
	ds, err := dataset.Build(decl, docs)
	if err != nil {
		return nil, err
	}
	return fields.Assemble(ctx, fields.Inputs{
		DeclarationID: decl.ID,
		DS:            ds,
		Overrides:     overrides,
		Rates:         e.Rates,
		Offices:       e.Offices,
	}), nil
}

// ApplyOverrides reconciles a set of edits against the computed
// defaults and returns the pruned override map with the fresh fields.
func (e Engine) ApplyOverrides(ctx context.Context, decl Declaration, docs []Document, current Overrides, changes map[string]any) (Overrides, FieldMap, error) {
	ds, err := dataset.Build(decl, docs)
	if err != nil {
		return nil, nil, err
	}
	merged, fieldMap := fields.ApplyChanges(ctx, fields.Inputs{
		DeclarationID: decl.ID,
		DS:            ds,
		Overrides:     current,
		Rates:         e.Rates,
		Offices:       e.Offices,
	}, changes)
	return merged, fieldMap, nil
}

// ExportXML projects a finalized field map into the ESADout_CU payload.
func ExportXML(fieldMap FieldMap) ([]byte, error) {
	return xmlexport.Build(fieldMap)
}

// NewCBRRateSource returns the central bank FX rate client. An empty
// base URL selects the production endpoint.
func NewCBRRateSource(baseURL string) RateSource {
	return rates.NewCBRClient(baseURL, nil)
}
