package model

import (
	"encoding/json"
	"time"
)

// DocType is the document-type key a trade document is filed under.
type DocType string

const (
	DocInvoice       DocType = "invoice"
	DocContract      DocType = "contract"
	DocPacking       DocType = "packing"
	DocTransportRoad DocType = "transport_road"
	DocTransportAir  DocType = "transport_air"
	DocTransportSea  DocType = "transport_sea"
	DocTransportRail DocType = "transport_rail"
	DocPayment       DocType = "payment"

	// DocConsolidated is a precomputed snapshot of the whole merged
	// dataset. When present it is used verbatim instead of re-merging.
	DocConsolidated DocType = "consolidated"
)

// KnownDocTypes lists every type key a document may be uploaded under.
var KnownDocTypes = []DocType{
	DocInvoice, DocContract, DocPacking,
	DocTransportRoad, DocTransportAir, DocTransportSea, DocTransportRail,
	DocPayment, DocConsolidated,
}

// IsKnownDocType reports whether key is one of the accepted type keys.
func IsKnownDocType(key string) bool {
	for _, t := range KnownDocTypes {
		if string(t) == key {
			return true
		}
	}
	return false
}

// IsTransport reports whether the type key is one of the four
// transport-document variants.
func (t DocType) IsTransport() bool {
	switch t {
	case DocTransportRoad, DocTransportAir, DocTransportSea, DocTransportRail:
		return true
	}
	return false
}

// Document is one uploaded, already-extracted trade document: a structured
// JSON payload whose shape is specific to its type key.
type Document struct {
	ID        string          `json:"id"`
	TypeKey   DocType         `json:"type_key"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Declaration is one customs filing. Documents are linked to it per type
// key; a key may carry several documents (re-uploads) that the merge
// engine folds together.
type Declaration struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Date      string    `json:"date"` // DD.MM.YYYY, authoritative for every resolver
	CreatedAt time.Time `json:"created_at"`
}

// Overrides is the persisted per-declaration map of user edits:
// field key to scalar, list or goods-map value. It never contains a key
// whose value equals the freshly computed default (auto-pruned).
type Overrides map[string]any

// Clone returns a shallow copy safe to mutate at the top level.
func (o Overrides) Clone() Overrides {
	out := make(Overrides, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// FieldMap is the flat computed output: ~40 field groups keyed
// g<N>_<sub> / g<N>_<sub>_list plus declaration_date, document_id and
// goods_by_tnved. Recomputed fresh on every read, never persisted.
type FieldMap map[string]any
