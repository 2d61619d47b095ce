// Package dataset folds a declaration's uploaded documents into one
// immutable JSON image and gives resolvers path access into it.
package dataset

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"

	"github.com/taridex/declaration-processor/internal/model"
)

// Dataset is the merged document image for one declaration. The raw JSON
// form is built once; all reads go through gjson paths against it.
type Dataset struct {
	root map[string]any
	raw  []byte
}

// New builds a dataset from an already-merged root map.
func New(root map[string]any) (*Dataset, error) {
	raw, err := json.Marshal(root)
	if err != nil {
		return nil, model.NewSourceDataError("dataset", "cannot serialize merged image", err)
	}
	return &Dataset{root: root, raw: raw}, nil
}

// Empty returns a dataset with no documents behind it. Every lookup on
// it yields the empty string, which resolvers treat as missing data.
func Empty() *Dataset {
	d, _ := New(map[string]any{})
	return d
}

// Raw returns the serialized JSON image.
func (d *Dataset) Raw() []byte { return d.raw }

// Root returns the merged map. Callers must not mutate it.
func (d *Dataset) Root() map[string]any { return d.root }

// Get returns the trimmed string value at a dotted path, or "" when the
// path is absent or holds an empty scalar.
func (d *Dataset) Get(path string) string {
	res := gjson.GetBytes(d.raw, path)
	if !res.Exists() {
		return ""
	}
	s := strings.TrimSpace(res.String())
	if s == "null" || s == "-" || s == "—" {
		return ""
	}
	return s
}

// Result returns the raw gjson result at a dotted path, for callers that
// need arrays or objects rather than a scalar.
func (d *Dataset) Result(path string) gjson.Result {
	return gjson.GetBytes(d.raw, path)
}

// Has reports whether the path resolves to a non-empty scalar or a
// non-empty collection.
func (d *Dataset) Has(path string) bool {
	res := gjson.GetBytes(d.raw, path)
	if !res.Exists() {
		return false
	}
	if res.IsArray() || res.IsObject() {
		return len(res.Raw) > 2
	}
	return d.Get(path) != ""
}

// GetAny returns the most informative value among the candidate paths:
// the one whose string form carries the most letters and digits. Ties go
// to the earlier path, so callers list paths in preference order. The
// winner comes back trimmed and upper-cased, the form the declaration
// fields carry on the wire.
func (d *Dataset) GetAny(paths ...string) string {
	best := ""
	bestScore := -1
	for _, p := range paths {
		v := strings.ToUpper(d.Get(p))
		if v == "" {
			continue
		}
		score := alnumCount(v)
		if score > bestScore {
			best, bestScore = v, score
		}
	}
	return best
}

func alnumCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// Section returns the object at a top-level key as a map, or nil.
func (d *Dataset) Section(key string) map[string]any {
	sec, _ := d.root[key].(map[string]any)
	return sec
}

// TransportType returns the transport document type present in the
// dataset. Road wins over air, air over sea, sea over rail when more
// than one was uploaded.
func (d *Dataset) TransportType() model.DocType {
	for _, t := range []model.DocType{
		model.DocTransportRoad, model.DocTransportAir,
		model.DocTransportSea, model.DocTransportRail,
	} {
		if sec := d.Section(string(t)); len(sec) > 0 {
			return t
		}
	}
	return ""
}

// FindDeep walks the image depth-first and returns the first non-empty
// scalar stored under a key containing the given fragment, case folded.
// Used for loosely placed values like a currency name buried in a line
// item.
func (d *Dataset) FindDeep(fragment string) string {
	fragment = strings.ToLower(fragment)
	return findDeep(d.root, fragment)
}

// FindKey is FindDeep with exact key matching, case folded.
func (d *Dataset) FindKey(key string) string {
	key = strings.ToLower(key)
	return findKey(d.root, key)
}

// FindKeyIn is FindKey restricted to one top-level section.
func (d *Dataset) FindKeyIn(section, key string) string {
	sec := d.Section(section)
	if sec == nil {
		return ""
	}
	return findKey(sec, strings.ToLower(key))
}

func findKey(v any, key string) string {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if strings.ToLower(k) == key {
				if s, ok := x[k].(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
		for _, k := range keys {
			if found := findKey(x[k], key); found != "" {
				return found
			}
		}
	case []any:
		for _, item := range x {
			if found := findKey(item, key); found != "" {
				return found
			}
		}
	}
	return ""
}

func findDeep(v any, fragment string) string {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for key := range x {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if strings.Contains(strings.ToLower(key), fragment) {
				if s, ok := x[key].(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
		for _, key := range keys {
			if found := findDeep(x[key], fragment); found != "" {
				return found
			}
		}
	case []any:
		for _, item := range x {
			if found := findDeep(item, fragment); found != "" {
				return found
			}
		}
	}
	return ""
}
