package dataset

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taridex/declaration-processor/internal/model"
)

func TestFillMissingScalars(t *testing.T) {
	tests := []struct {
		name     string
		dst      map[string]any
		src      map[string]any
		expected map[string]any
	}{
		{
			name:     "absent key is filled",
			dst:      map[string]any{},
			src:      map[string]any{"ИНН": "7810459349"},
			expected: map[string]any{"ИНН": "7810459349"},
		},
		{
			name:     "existing value wins",
			dst:      map[string]any{"ИНН": "7810459349"},
			src:      map[string]any{"ИНН": "0000000000"},
			expected: map[string]any{"ИНН": "7810459349"},
		},
		{
			name:     "empty string is filled",
			dst:      map[string]any{"ИНН": ""},
			src:      map[string]any{"ИНН": "7810459349"},
			expected: map[string]any{"ИНН": "7810459349"},
		},
		{
			name:     "dash placeholder is filled",
			dst:      map[string]any{"ИНН": "-"},
			src:      map[string]any{"ИНН": "7810459349"},
			expected: map[string]any{"ИНН": "7810459349"},
		},
		{
			name:     "literal null string is filled",
			dst:      map[string]any{"ИНН": "null"},
			src:      map[string]any{"ИНН": "7810459349"},
			expected: map[string]any{"ИНН": "7810459349"},
		},
		{
			name:     "nil is filled",
			dst:      map[string]any{"ИНН": nil},
			src:      map[string]any{"ИНН": "7810459349"},
			expected: map[string]any{"ИНН": "7810459349"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FillMissing(tt.dst, tt.src)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFillMissingNested(t *testing.T) {
	dst := map[string]any{
		"Получатель": map[string]any{
			"Название": "ООО РОМАШКА",
			"ИНН":      "",
		},
	}
	src := map[string]any{
		"Получатель": map[string]any{
			"ИНН":   "7810459349",
			"Адрес": "г. Санкт-Петербург",
		},
	}

	got := FillMissing(dst, src)

	recv := got["Получатель"].(map[string]any)
	assert.Equal(t, "ООО РОМАШКА", recv["Название"])
	assert.Equal(t, "7810459349", recv["ИНН"])
	assert.Equal(t, "г. Санкт-Петербург", recv["Адрес"])
}

func TestFillMissingLists(t *testing.T) {
	dst := map[string]any{
		"Товары": []any{
			map[string]any{"Наименование": "Насос", "Цена": ""},
			map[string]any{"Наименование": "Фильтр"},
		},
	}
	src := map[string]any{
		"Товары": []any{
			map[string]any{"Цена": "100"},
			map[string]any{"Цена": "200"},
			map[string]any{"Наименование": "Клапан", "Цена": "300"},
		},
	}

	got := FillMissing(dst, src)
	goods := got["Товары"].([]any)

	require.Len(t, goods, 3)
	assert.Equal(t, "Насос", goods[0].(map[string]any)["Наименование"])
	assert.Equal(t, "100", goods[0].(map[string]any)["Цена"])
	assert.Equal(t, "200", goods[1].(map[string]any)["Цена"])
	assert.Equal(t, "Клапан", goods[2].(map[string]any)["Наименование"])
}

func TestFillMissingIsStable(t *testing.T) {
	dst := map[string]any{"a": "x", "b": map[string]any{"c": "y"}}
	src := map[string]any{"a": "z", "b": map[string]any{"c": "w", "d": "v"}}

	once := FillMissing(cloneMap(dst), src)
	twice := FillMissing(cloneMap(once), src)

	assert.Equal(t, once, twice)
}

func TestBuildFoldsOldestFirst(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	docs := []model.Document{
		{
			ID:        "doc-2",
			TypeKey:   model.DocInvoice,
			Payload:   json.RawMessage(`{"Номер": "INV-2", "Валюта": "USD"}`),
			CreatedAt: t0.Add(time.Hour),
		},
		{
			ID:        "doc-1",
			TypeKey:   model.DocInvoice,
			Payload:   json.RawMessage(`{"Номер": "INV-1"}`),
			CreatedAt: t0,
		},
	}
	decl := model.Declaration{ID: "d1", Date: "14.03.2025"}

	ds, err := Build(decl, docs)
	require.NoError(t, err)

	// oldest document seeds the slot, newer one only fills gaps
	assert.Equal(t, "INV-1", ds.Get("invoice.Номер"))
	assert.Equal(t, "USD", ds.Get("invoice.Валюта"))
}

func TestBuildConsolidatedMergesAtRoot(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	docs := []model.Document{
		{
			ID:      "snap",
			TypeKey: model.DocConsolidated,
			Payload: json.RawMessage(
				`{"invoice": {"Номер": "INV-9"}, "contract": {"Номер": "К-5"}}`),
			CreatedAt: t0,
		},
	}
	decl := model.Declaration{ID: "d1", Date: "14.03.2025"}

	ds, err := Build(decl, docs)
	require.NoError(t, err)

	assert.Equal(t, "INV-9", ds.Get("invoice.Номер"))
	assert.Equal(t, "К-5", ds.Get("contract.Номер"))
}

func TestBuildInjectsDeclarationDate(t *testing.T) {
	docs := []model.Document{
		{
			ID:      "snap",
			TypeKey: model.DocConsolidated,
			Payload: json.RawMessage(
				`{"declaration": {"Дата декларации": "01.01.2020", "Номер": "77"}}`),
			CreatedAt: time.Now(),
		},
	}
	decl := model.Declaration{ID: "d1", Date: "14.03.2025"}

	ds, err := Build(decl, docs)
	require.NoError(t, err)

	// injected date overwrites whatever the snapshot carried
	assert.Equal(t, "14.03.2025", ds.Get("declaration.Дата декларации"))
	assert.Equal(t, "14.03.2025", ds.Get("declaration.date"))
	assert.Equal(t, "77", ds.Get("declaration.Номер"))
}

func TestBuildSkipsMalformedPayload(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	docs := []model.Document{
		{
			ID:        "bad",
			TypeKey:   model.DocInvoice,
			Payload:   json.RawMessage(`{"Номер":`),
			CreatedAt: t0,
		},
		{
			ID:        "good",
			TypeKey:   model.DocInvoice,
			Payload:   json.RawMessage(`{"Номер": "INV-1"}`),
			CreatedAt: t0.Add(time.Hour),
		},
	}

	ds, err := Build(model.Declaration{ID: "d1", Date: "14.03.2025"}, docs)
	require.NoError(t, err)

	// the unreadable upload contributes nothing; the rest still merge
	assert.Equal(t, "INV-1", ds.Get("invoice.Номер"))
}

func TestBuildSnapshotWinsOverTypedDocuments(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	docs := []model.Document{
		{
			ID:        "typed",
			TypeKey:   model.DocInvoice,
			Payload:   json.RawMessage(`{"Номер": "OLD", "Валюта": "USD"}`),
			CreatedAt: t0,
		},
		{
			ID:        "snap",
			TypeKey:   model.DocConsolidated,
			Payload:   json.RawMessage(`{"invoice": {"Номер": "SNAP"}}`),
			CreatedAt: t0.Add(time.Hour),
		},
	}

	ds, err := Build(model.Declaration{ID: "d1", Date: "14.03.2025"}, docs)
	require.NoError(t, err)

	// the snapshot is taken as-is, typed documents do not leak through
	assert.Equal(t, "SNAP", ds.Get("invoice.Номер"))
	assert.Equal(t, "", ds.Get("invoice.Валюта"))
}

func TestBuildUnreadableSnapshotFallsBack(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	docs := []model.Document{
		{
			ID:        "typed",
			TypeKey:   model.DocInvoice,
			Payload:   json.RawMessage(`{"Номер": "INV-1"}`),
			CreatedAt: t0,
		},
		{
			ID:        "snap",
			TypeKey:   model.DocConsolidated,
			Payload:   json.RawMessage(`{"invoice":`),
			CreatedAt: t0.Add(time.Hour),
		},
	}

	ds, err := Build(model.Declaration{ID: "d1", Date: "14.03.2025"}, docs)
	require.NoError(t, err)

	assert.Equal(t, "INV-1", ds.Get("invoice.Номер"))
}

func cloneMap(m map[string]any) map[string]any {
	raw, _ := json.Marshal(m)
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}
