package tariff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taridex/declaration-processor/internal/dataset"
	"github.com/taridex/declaration-processor/internal/decimal"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"8413703500", "8413703500"},
		{"8413 70 3500", "8413703500"},
		{"код 8413703500 (насосы)", "8413703500"},
		{"841370350", ""},
		{"84137035001", ""},
		{"", ""},
		{"насосы центробежные", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, Normalize(tt.in), "input %q", tt.in)
	}
}

func newDS(t *testing.T, root map[string]any) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(root)
	require.NoError(t, err)
	return ds
}

func TestCodesSortedDeduplicated(t *testing.T) {
	ds := newDS(t, map[string]any{
		"invoice": map[string]any{"Товары": []any{
			map[string]any{"Наименование": "Фильтр", "Код ТНВЭД": "8421230000"},
			map[string]any{"Наименование": "Насос", "Код ТНВЭД": "8413703500"},
			map[string]any{"Наименование": "Насос малый", "Код ТНВЭД": "8413703500"},
			map[string]any{"Наименование": "Без кода", "Код ТНВЭД": ""},
		}},
	})

	l := NewLedger(ds)

	assert.Equal(t, []string{"8413703500", "8421230000"}, l.Codes())
	assert.Equal(t, "8413703500", l.Primary())
	assert.Equal(t, 2, l.ListLen())
}

func TestListLenWithoutCodes(t *testing.T) {
	l := NewLedger(dataset.Empty())
	assert.Empty(t, l.Codes())
	assert.Equal(t, 1, l.ListLen())
}

func TestSingleCodeMassSumsWholeColumn(t *testing.T) {
	ds := newDS(t, map[string]any{
		"invoice": map[string]any{"Товары": []any{
			map[string]any{"Наименование": "Насос", "Код ТНВЭД": "8413703500"},
		}},
		"packing": map[string]any{"Товары": []any{
			map[string]any{"Наименование": "Насос", "Масса брутто": "600", "Масса нетто": "580", "Количество мест": "10"},
			map[string]any{"Наименование": "Запчасти", "Масса брутто": "614", "Масса нетто": "590", "Количество мест": "4"},
		}},
	})

	l := NewLedger(ds)

	gross := l.GrossByCode()
	require.Contains(t, gross, "8413703500")
	assert.Equal(t, "1214.0", decimal.WeightString(gross["8413703500"]))

	net := l.NetByCode()
	assert.Equal(t, "1170.0", decimal.WeightString(net["8413703500"]))

	seats := l.SeatsByCode()
	assert.Equal(t, "14", seats["8413703500"].String())
}

func TestMultiCodeMassMatchesByName(t *testing.T) {
	ds := newDS(t, map[string]any{
		"invoice": map[string]any{"Товары": []any{
			map[string]any{"Наименование": "Насос центробежный", "Код ТНВЭД": "8413703500"},
			map[string]any{"Наименование": "Фильтр масляный", "Код ТНВЭД": "8421230000"},
		}},
		"packing": map[string]any{"Товары": []any{
			map[string]any{"Наименование": "Насос", "Масса брутто": "600.25"},
			map[string]any{"Наименование": "Фильтр", "Масса брутто": "13.75"},
			map[string]any{"Наименование": "Паллета", "Масса брутто": "20"},
		}},
	})

	l := NewLedger(ds)
	gross := l.GrossByCode()

	assert.Equal(t, "600.25", gross["8413703500"].String())
	assert.Equal(t, "13.75", gross["8421230000"].String())
	// unmatched packing line contributes nothing
	assert.Len(t, gross, 2)
}

func TestInvoiceSumByCode(t *testing.T) {
	ds := newDS(t, map[string]any{
		"invoice": map[string]any{"Товары": []any{
			map[string]any{"Наименование": "Насос", "Код ТНВЭД": "8413703500", "Стоимость": "30000"},
			map[string]any{"Наименование": "Насос малый", "Код ТНВЭД": "8413703500", "Цена": "810", "Количество": "20"},
			map[string]any{"Наименование": "продолжение таблицы"},
		}},
	})

	l := NewLedger(ds)
	sums := l.InvoiceSumByCode()

	// 30000 + 810*20
	assert.Equal(t, "46200", sums["8413703500"].String())
}

func TestQuantityAndUnits(t *testing.T) {
	ds := newDS(t, map[string]any{
		"invoice": map[string]any{"Товары": []any{
			map[string]any{"Наименование": "Насос", "Код ТНВЭД": "8413703500", "Количество": "12", "Единица измерения": "шт"},
			map[string]any{"Наименование": "Насос малый", "Код ТНВЭД": "8413703500", "Количество": "8"},
		}},
	})

	l := NewLedger(ds)

	assert.Equal(t, "20", l.QuantityByCode()["8413703500"].String())
	assert.Equal(t, "шт", l.UnitByCode()["8413703500"])
}

func TestContinuationRowsFiltered(t *testing.T) {
	ds := newDS(t, map[string]any{
		"invoice": map[string]any{"Товары": []any{
			map[string]any{"Наименование": "Продолжение таблицы 1", "Код ТНВЭД": "8413703500"},
			map[string]any{"Наименование": "перенос через границу листа"},
			map[string]any{"Наименование": "Насос", "Код ТНВЭД": "8421230000"},
		}},
	})

	l := NewLedger(ds)

	require.Len(t, l.InvoiceRows(), 1)
	assert.Equal(t, []string{"8421230000"}, l.Codes())
}
