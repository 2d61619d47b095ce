// Package fields computes the flat declaration field map: scalar graph
// values keyed g<N>_<sub>, per-commodity lists keyed g<N>_<sub>_list,
// and the goods_by_tnved grouping. Resolvers run in a fixed order so
// later graphs can read what earlier ones produced, and every resolver
// degrades to empty values instead of failing the whole map.
package fields

import (
	"context"
	"fmt"
	"strings"

	"github.com/taridex/declaration-processor/internal/customsoffice"
	"github.com/taridex/declaration-processor/internal/dataset"
	"github.com/taridex/declaration-processor/internal/model"
	"github.com/taridex/declaration-processor/internal/rates"
	"github.com/taridex/declaration-processor/internal/tariff"
)

// Context carries everything one compute pass needs. Resolved holds the
// output of resolvers that already ran; later resolvers read their
// dependencies from it instead of recomputing.
type Context struct {
	Ctx       context.Context
	DS        *dataset.Dataset
	Ledger    *tariff.Ledger
	Overrides model.Overrides
	Rates     rates.Source
	Offices   customsoffice.Directory
	Resolved  model.FieldMap
}

// Resolver computes one field group from the dataset and overrides.
type Resolver struct {
	Name string
	Fn   func(*Context) map[string]any
}

// registry lists every resolver in dependency order: procedure code
// before the per-item procedure list, currency and rate before the
// customs value lists, customs value before the statistical value.
var registry = []Resolver{
	{"declaration_date", resolveDeclarationDate},
	{"g1", resolveG1},
	{"g2", resolveG2},
	{"g3", resolveG3},
	{"g4", resolveG4},
	{"g5", resolveG5},
	{"g6", resolveG6},
	{"g7", resolveG7},
	{"g8", resolveG8},
	{"g9", resolveG9},
	{"g11", resolveG11},
	{"g12", resolveG12},
	{"g14", resolveG14},
	{"g15", resolveG15},
	{"g16", resolveG16},
	{"g17", resolveG17},
	{"g18", resolveG18},
	{"g19", resolveG19},
	{"g20", resolveG20},
	{"g21", resolveG21},
	{"g22", resolveG22},
	{"g23", resolveG23},
	{"g24", resolveG24},
	{"g25", resolveG25},
	{"g26", resolveG26},
	{"g29", resolveG29},
	{"g30", resolveG30},
	{"g31", resolveG31},
	{"g32", resolveG32},
	{"g33", resolveG33},
	{"g34", resolveG34},
	{"g35", resolveG35},
	{"g36", resolveG36},
	{"g37", resolveG37},
	{"g38", resolveG38},
	{"g39", resolveG39},
	{"g40", resolveG40},
	{"g41", resolveG41},
	{"g42", resolveG42},
	{"g43", resolveG43},
	{"g44", resolveG44},
	{"g45", resolveG45},
	{"g46", resolveG46},
	{"goods", resolveGoods},
}

// Inputs bundles the per-declaration state Assemble works from.
type Inputs struct {
	DeclarationID string
	DS            *dataset.Dataset
	Overrides     model.Overrides
	Rates         rates.Source
	Offices       customsoffice.Directory
}

// Assemble runs the full resolver chain and returns the flat field map.
// A panicking resolver contributes nothing; its keys stay absent, which
// readers treat as empty.
func Assemble(ctx context.Context, in Inputs) model.FieldMap {
	c := &Context{
		Ctx:       ctx,
		DS:        in.DS,
		Ledger:    tariff.NewLedger(in.DS),
		Overrides: in.Overrides,
		Rates:     in.Rates,
		Offices:   in.Offices,
		Resolved:  model.FieldMap{},
	}
	if c.Overrides == nil {
		c.Overrides = model.Overrides{}
	}

	for _, r := range registry {
		for key, val := range runResolver(r, c) {
			c.Resolved[key] = val
		}
	}

	if in.DeclarationID != "" {
		c.Resolved["document_id"] = "declaration_" + in.DeclarationID
	}
	return c.Resolved
}

func runResolver(r Resolver, c *Context) (out map[string]any) {
	defer func() {
		if recover() != nil {
			out = map[string]any{}
		}
	}()
	return r.Fn(c)
}

// DeclarationDate returns the effective date: the override when set and
// non-empty, otherwise the injected dataset value.
func (c *Context) DeclarationDate() string {
	if v, ok := c.Overrides["declaration_date"]; ok && !isEmptyOverride(v) {
		return strings.TrimSpace(toString(v))
	}
	return c.DS.GetAny("declaration.Дата декларации", "declaration.date",
		"dt.Дата декларации", "dt.date")
}

// str resolves a scalar field: the override when the key is present
// (even an empty one), otherwise the computed default.
func (c *Context) str(key, def string) string {
	if v, ok := c.Overrides[key]; ok {
		return toString(v)
	}
	return def
}

// strSoft resolves a scalar field treating empty overrides as absent.
func (c *Context) strSoft(key, def string) string {
	if v, ok := c.Overrides[key]; ok && !isEmptyOverride(v) {
		return strings.TrimSpace(toString(v))
	}
	return def
}

// overrideList returns a string list override when one is present.
func (c *Context) overrideList(key string) ([]string, bool) {
	v, ok := c.Overrides[key]
	if !ok {
		return nil, false
	}
	raw, ok := v.([]any)
	if !ok {
		if typed, isStrs := v.([]string); isStrs {
			out := make([]string, len(typed))
			for i, s := range typed {
				out[i] = strings.TrimSpace(s)
			}
			return out, true
		}
		return nil, false
	}
	out := make([]string, len(raw))
	for i, item := range raw {
		out[i] = strings.TrimSpace(toString(item))
	}
	return out, true
}

// listField resolves a per-commodity list: the override (padded or
// truncated to the target length) when present, the default otherwise.
func (c *Context) listField(key string, def []string, n int) []string {
	if over, ok := c.overrideList(key); ok {
		return normList(over, n)
	}
	return def
}

// resolvedStr reads an already-resolved scalar from an earlier graph.
func (c *Context) resolvedStr(key string) string {
	if v, ok := c.Resolved[key]; ok {
		return toString(v)
	}
	return ""
}

// resolvedList reads an already-resolved list from an earlier graph.
func (c *Context) resolvedList(key string) []string {
	v, ok := c.Resolved[key]
	if !ok {
		return nil
	}
	if typed, isStrs := v.([]string); isStrs {
		return typed
	}
	if raw, isAny := v.([]any); isAny {
		out := make([]string, len(raw))
		for i, item := range raw {
			out[i] = toString(item)
		}
		return out
	}
	return nil
}

// normList pads with "" or truncates so the list has exactly n items.
func normList(lst []string, n int) []string {
	if n <= 0 {
		return lst
	}
	out := make([]string, 0, n)
	for _, v := range lst {
		if len(out) == n {
			break
		}
		out = append(out, strings.TrimSpace(v))
	}
	for len(out) < n {
		out = append(out, "")
	}
	return out
}

// isEmptyOverride reports whether an override value carries no user
// intent: nil, blanks and the dash placeholders.
func isEmptyOverride(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(x)
		return s == "" || s == "null" || s == "None" || s == "-" || s == "—"
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	}
	return false
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%v", x)
	}
	return fmt.Sprint(v)
}

func broadcast(val string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = val
	}
	return out
}
