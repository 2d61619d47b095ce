package dataset

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/taridex/declaration-processor/internal/model"
)

// emptyScalar reports whether a value carries no information. The dash
// variants appear in extracted tables where a cell was visually empty.
func emptyScalar(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(x)
		return s == "" || s == "null" || s == "-" || s == "—"
	}
	return false
}

// FillMissing merges src into dst, filling only slots that are absent or
// empty in dst. Existing non-empty values in dst always win. Nested maps
// are merged recursively, lists element-wise with the longer tail of src
// appended verbatim. dst is mutated and returned.
func FillMissing(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for key, sv := range src {
		dv, ok := dst[key]
		if !ok || emptyScalar(dv) {
			dst[key] = mergeValue(nil, sv)
			continue
		}
		dst[key] = mergeValue(dv, sv)
	}
	return dst
}

func mergeValue(dst, src any) any {
	switch sv := src.(type) {
	case map[string]any:
		dm, ok := dst.(map[string]any)
		if !ok {
			if dst == nil || emptyScalar(dst) {
				return FillMissing(map[string]any{}, sv)
			}
			return dst
		}
		return FillMissing(dm, sv)
	case []any:
		dl, ok := dst.([]any)
		if !ok {
			if dst == nil || emptyScalar(dst) {
				out := make([]any, len(sv))
				for i, item := range sv {
					out[i] = mergeValue(nil, item)
				}
				return out
			}
			return dst
		}
		for i := range dl {
			if i < len(sv) {
				dl[i] = mergeValue(dl[i], sv[i])
			}
		}
		for i := len(dl); i < len(sv); i++ {
			dl = append(dl, mergeValue(nil, sv[i]))
		}
		return dl
	default:
		if dst == nil || emptyScalar(dst) {
			return src
		}
		return dst
	}
}

// Build folds a declaration's documents, oldest first, into a single
// dataset. A consolidated snapshot, when present, is the dataset: the
// newest readable one becomes the root and the typed documents are not
// folded in. Without a snapshot, every document merges under its type
// key. Documents whose payload does not parse are skipped silently.
// The declaration date is injected last and unconditionally, so
// downstream rate lookups always see it.
func Build(decl model.Declaration, docs []model.Document) (*Dataset, error) {
	sorted := make([]model.Document, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	root := map[string]any{}
	for i := len(sorted) - 1; i >= 0; i-- {
		doc := sorted[i]
		if doc.TypeKey != model.DocConsolidated || len(doc.Payload) == 0 {
			continue
		}
		var snapshot map[string]any
		if err := json.Unmarshal(doc.Payload, &snapshot); err != nil {
			continue
		}
		root = snapshot
		break
	}

	if len(root) == 0 {
		for _, doc := range sorted {
			if doc.TypeKey == model.DocConsolidated || len(doc.Payload) == 0 {
				continue
			}
			var payload map[string]any
			if err := json.Unmarshal(doc.Payload, &payload); err != nil {
				continue
			}
			section, _ := root[string(doc.TypeKey)].(map[string]any)
			root[string(doc.TypeKey)] = FillMissing(section, payload)
		}
	}

	declSection, _ := root["declaration"].(map[string]any)
	if declSection == nil {
		declSection = map[string]any{}
	}
	declSection["Дата декларации"] = decl.Date
	declSection["date"] = decl.Date
	root["declaration"] = declSection

	return New(root)
}
