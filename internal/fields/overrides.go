package fields

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/taridex/declaration-processor/internal/model"
)

// ApplyChanges folds a set of edits into the stored overrides and
// returns the pruned override map together with the recomputed fields.
// An edit carrying an empty value clears the override for that key, and
// overrides that merely restate the computed default are dropped, so
// saving an unchanged form leaves the override map untouched.
func ApplyChanges(ctx context.Context, in Inputs, changes map[string]any) (model.Overrides, model.FieldMap) {
	merged := in.Overrides.Clone()
	if merged == nil {
		merged = model.Overrides{}
	}
	for key, val := range changes {
		if isEmptyOverride(val) {
			delete(merged, key)
			continue
		}
		merged[key] = val
	}

	baseline := Assemble(ctx, Inputs{
		DeclarationID: in.DeclarationID,
		DS:            in.DS,
		Rates:         in.Rates,
		Offices:       in.Offices,
	})
	for key, val := range merged {
		if def, ok := baseline[key]; ok && sameFieldValue(val, def) {
			delete(merged, key)
		}
	}

	in.Overrides = merged
	return merged, Assemble(ctx, in)
}

// sameFieldValue compares an override against a computed default across
// the representations JSON round-trips produce.
func sameFieldValue(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	la, aList := asStringList(a)
	lb, bList := asStringList(b)
	if aList || bList {
		return aList && bList && reflect.DeepEqual(la, lb)
	}
	if isScalar(a) && isScalar(b) {
		return toString(a) == toString(b)
	}
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ja) == string(jb)
}

func asStringList(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return x, true
	case []any:
		out := make([]string, len(x))
		for i, item := range x {
			if !isScalar(item) {
				return nil, false
			}
			out[i] = toString(item)
		}
		return out, true
	}
	return nil, false
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, float64, bool, int, int64:
		return true
	}
	return false
}
