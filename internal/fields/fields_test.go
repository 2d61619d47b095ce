package fields

import (
	"context"
	"testing"

	dec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taridex/declaration-processor/internal/dataset"
	"github.com/taridex/declaration-processor/internal/model"
	"github.com/taridex/declaration-processor/internal/rates"
)

func importRoot() map[string]any {
	return map[string]any{
		"declaration": map[string]any{"Дата декларации": "2024-01-20"},
		"invoice": map[string]any{
			"Общая информация": map[string]any{
				"Номер инвойса": "INV-2024-001",
				"Дата инвойса": "15.01.2024",
				"Валюта": "CNY",
				"Условия поставки (Incoterms)": "DAP Москва",
			},
			"Отправитель": map[string]any{
				"Название компании": "NINGBO TOOLS CO., LTD",
				"Страна": "Китай",
			},
			"Получатель": map[string]any{"Страна": "Россия"},
			"Товары": []any{
				map[string]any{
					"Код ТН ВЭД": "8467210000",
					"Наименование": "Дрель аккумуляторная",
					"Количество": "100",
					"Цена": "25",
					"Стоимость": "2500",
					"Ед. изм.": "шт",
					"Модель": "DX-20",
					"Валюта": "CNY",
					"Страна-производитель": "Китай",
				},
				map[string]any{
					"Код ТН ВЭД": "8205400000",
					"Наименование": "Отвертка",
					"Количество": "500",
					"Цена": "1",
					"Стоимость": "500",
					"Ед. изм.": "шт",
					"Страна-производитель": "Китай",
				},
			},
		},
		"packing": map[string]any{
			"Товары": []any{
				map[string]any{
					"Наименование": "Дрель аккумуляторная",
					"Вес брутто": "520.5",
					"Вес нетто": "480",
					"Количество мест": "10",
				},
				map[string]any{
					"Наименование": "Отвертка",
					"Вес брутто": "80.1",
					"Вес нетто": "75.5",
					"Количество мест": "2",
				},
			},
		},
		"contract": map[string]any{
			"Общая информация": map[string]any{
				"Номер контракта": "Контракт № DL-55/2023",
				"Дата заключения": "2023-12-01",
			},
			"Оплата контракта": map[string]any{"Общая сумма": "100000"},
		},
		"transport_road": map[string]any{
			"Перевозка": map[string]any{
				"Регистрационный номер": map[string]any{"Тягач": "A123BC77"},
				"Место погрузки": map[string]any{"Страна": "Китай"},
				"Номер CMR": "CMR № 445120",
			},
		},
		"payment": map[string]any{
			"Общая информация": map[string]any{"Валюта документа": "RUB"},
			"Покупатель (Заказчик)": map[string]any{"Страна": "Россия"},
			"Перевозка": []any{
				map[string]any{"Услуга": map[string]any{"Описание": "Перевозка груза", "Сумма": "50000"}},
				map[string]any{"Услуга": map[string]any{"Описание": "Страхование груза", "Сумма": "5000"}},
			},
		},
	}
}

func importRates() rates.Static {
	return rates.Static{
		"20.01.2024": {
			"CNY": dec.RequireFromString("12.5"),
			"USD": dec.RequireFromString("90"),
		},
	}
}

func assembleImport(t *testing.T, overrides model.Overrides) model.FieldMap {
	t.Helper()
	ds, err := dataset.New(importRoot())
	require.NoError(t, err)
	return Assemble(context.Background(), Inputs{
		DeclarationID: "d-1",
		DS:            ds,
		Overrides:     overrides,
		Rates:         importRates(),
	})
}

func fieldList(t *testing.T, fm model.FieldMap, key string) []string {
	t.Helper()
	list, ok := fm[key].([]string)
	require.True(t, ok, "field %s is not a string list: %#v", key, fm[key])
	return list
}

func TestAssembleImportScenario(t *testing.T) {
	fm := assembleImport(t, nil)

	assert.Equal(t, "2024-01-20", fm["declaration_date"])
	assert.Equal(t, "declaration_d-1", fm["document_id"])

	assert.Equal(t, "ИМ", fm["g1_1"])
	assert.Equal(t, "40", fm["g1_2"])
	assert.Equal(t, "2", fm["g3_2"])
	assert.Equal(t, "2", fm["g5_1"])
	assert.Equal(t, "12", fm["g6_1"])
	assert.Equal(t, "CN", fm["g11_1"])

	assert.Equal(t, "NINGBO TOOLS CO., LTD", fm["g2_3"])
	assert.Equal(t, "КИТАЙ", fm["g2_5"])
	assert.Equal(t, "CN", fm["g2_4"])

	assert.Equal(t, "КИТАЙ", fm["g15_2"])
	assert.Equal(t, "CN", fm["g15_1"])
	assert.Equal(t, "КИТАЙ", fm["g16_2"])
	assert.Equal(t, "CN", fm["g16_1"])

	assert.Equal(t, "DAP", fm["g20_1"])
	assert.Equal(t, "МОСКВА", fm["g20_2"])
	assert.Equal(t, "CNY", fm["g22_1"])
	assert.Equal(t, "3000", fm["g22_2"])
	assert.Equal(t, "12.5", fm["g23_1"])
	assert.Equal(t, "CNY", fm["g23_2"])
	assert.Equal(t, "010", fm["g24_1"])
	assert.Equal(t, "06", fm["g24_2"])
	assert.Equal(t, "31", fm["g25_1"])
	assert.Equal(t, "11", fm["g30_1"])

	assert.Equal(t, "50000.00", fm["g12_logistics"])
	assert.Equal(t, "5000.00", fm["g12_insurance"])
	assert.Equal(t, "92500.00", fm["g12_1"])

	assert.Equal(t, []string{"8205400000", "8467210000"}, fieldList(t, fm, "g33_1_list"))
	assert.Equal(t, []string{"80.1", "520.5"}, fieldList(t, fm, "g35_1_list"))
	assert.Equal(t, []string{"75.5", "480.0"}, fieldList(t, fm, "g38_1_list"))
	assert.Equal(t, []string{"CN", "CN"}, fieldList(t, fm, "g34_1_list"))
	assert.Equal(t, []string{"40", "40"}, fieldList(t, fm, "g37_1_list"))
	assert.Equal(t, []string{"500", "100"}, fieldList(t, fm, "g41_1_list"))
	assert.Equal(t, []string{"ШТ", "ШТ"}, fieldList(t, fm, "g41_2_list"))
	assert.Equal(t, []string{"796", "796"}, fieldList(t, fm, "g41_3_list"))
	assert.Equal(t, []string{"500", "2500"}, fieldList(t, fm, "g42_1_list"))
	assert.Equal(t, []string{"1", "1"}, fieldList(t, fm, "g43_1_list"))

	assert.Equal(t, []string{
		"Отвертка",
		"Дрель аккумуляторная — Модель: DX-20",
	}, fieldList(t, fm, "g31_1_list"))
}

func TestAssembleCustomsValueChain(t *testing.T) {
	fm := assembleImport(t, nil)

	// 500 and 2500 CNY at 12.5, plus the 55000 RUB of freight and
	// insurance split by gross mass 80.1 against 520.5.
	assert.Equal(t, []string{"13585.16", "78914.84"}, fieldList(t, fm, "g45_1_list"))
	assert.Equal(t, []string{"150.95", "876.83"}, fieldList(t, fm, "g46_1_list"))
}

func TestAssembleDocumentsPresented(t *testing.T) {
	fm := assembleImport(t, nil)

	assert.Equal(t, []string{"03011", "04021", "02015"}, fieldList(t, fm, "g44_1_list"))
	assert.Equal(t, []string{"0", "0", "0"}, fieldList(t, fm, "g44_2_list"))
	assert.Equal(t, []string{
		"Внешнеторговый контракт (договор)",
		"Инвойс (счет-фактура)",
		"Автотранспортная накладная (CMR)",
	}, fieldList(t, fm, "g44_3_list"))
	assert.Equal(t, []string{"DL-55/2023", "INV-2024-001", "445120"}, fieldList(t, fm, "g44_4_list"))
	assert.Equal(t, []string{"2023-12-01", "2024-01-15", ""}, fieldList(t, fm, "g44_5_list"))
}

func TestAssembleGoodsGrouping(t *testing.T) {
	fm := assembleImport(t, nil)

	goods, ok := fm["goods_by_tnved"].(map[string]any)
	require.True(t, ok)
	require.Len(t, goods, 2)

	drills, ok := goods["8467210000"].([]GoodsItem)
	require.True(t, ok)
	require.Len(t, drills, 1)
	item := drills[0]
	assert.Equal(t, "Дрель аккумуляторная", item.Name)
	assert.Equal(t, "NINGBO TOOLS CO., LTD", item.Manufacturer)
	assert.Equal(t, "DX-20", item.Model)
	assert.Equal(t, "ОТСУТСТВУЕТ", item.Mark)
	assert.Equal(t, "ОТСУТСТВУЕТ", item.Marking)
	assert.Equal(t, "100", item.Qty)
	assert.Equal(t, "CNY", item.Currency)
	assert.Equal(t, "2500", item.InvoicedCost)
}

func TestAssembleGoodsFilter(t *testing.T) {
	fm := assembleImport(t, model.Overrides{"goods_tnved_filter": "8467"})

	goods, ok := fm["goods_by_tnved"].(map[string]any)
	require.True(t, ok)
	require.Len(t, goods, 1)
	_, ok = goods["8467210000"]
	assert.True(t, ok)
}

func TestPartyFieldsUpperCased(t *testing.T) {
	ds, err := dataset.New(map[string]any{
		"invoice": map[string]any{
			"Отправитель": map[string]any{
				"Название компании": "Ningbo Tools Co., Ltd",
				"Страна":            "Китай",
				"Юридический адрес": map[string]any{
					"Город": "Ningbo",
					"Улица": "Jiangdong road, 12",
				},
			},
		},
	})
	require.NoError(t, err)

	fm := Assemble(context.Background(), Inputs{DS: ds})

	assert.Equal(t, "NINGBO TOOLS CO., LTD", fm["g2_3"])
	assert.Equal(t, "NINGBO", fm["g2_8"])
	assert.Equal(t, "JIANGDONG ROAD, 12", fm["g2_9"])
}

func TestAssembleEmptyDataset(t *testing.T) {
	fm := Assemble(context.Background(), Inputs{DS: dataset.Empty()})

	assert.Equal(t, "", fm["declaration_date"])
	assert.Equal(t, "0", fm["g5_1"])
	assert.Equal(t, "НЕИЗВЕСТНА", fm["g16_2"])
	assert.Equal(t, "НЕИЗВЕСТНА", fm["g15_2"])
	assert.Equal(t, "ОО", fm["g36_1"])
	assert.Equal(t, "-", fm["g36_3"])
	assert.Equal(t, []string{}, fieldList(t, fm, "g33_1_list"))
	assert.Equal(t, []string{""}, fieldList(t, fm, "g35_1_list"))
	_, hasDoc := fm["document_id"]
	assert.False(t, hasDoc)
}

func TestOverridePrecedence(t *testing.T) {
	fm := assembleImport(t, model.Overrides{
		"g20_1": "",
		"g22_1": "USD",
		"g23_1": "",
	})

	// A present scalar override wins even when empty.
	assert.Equal(t, "", fm["g20_1"])
	// The rate follows the overridden currency.
	assert.Equal(t, "USD", fm["g23_2"])
	assert.Equal(t, "90", fm["g23_1"])
}

func TestListOverrideAlignment(t *testing.T) {
	fm := assembleImport(t, model.Overrides{
		"g35_1_list": []any{"600.0"},
	})

	assert.Equal(t, []string{"600.0", ""}, fieldList(t, fm, "g35_1_list"))
}

func TestCodesOverrideDropsEmpties(t *testing.T) {
	fm := assembleImport(t, model.Overrides{
		"g33_1_list": []any{"8467210000", "", "  "},
	})

	assert.Equal(t, []string{"8467210000"}, fieldList(t, fm, "g33_1_list"))
}

func TestCustomsValueWithoutRate(t *testing.T) {
	ds, err := dataset.New(importRoot())
	require.NoError(t, err)
	fm := Assemble(context.Background(), Inputs{DS: ds, Rates: rates.Static{}})

	assert.Equal(t, "", fm["g23_1"])
	assert.Equal(t, []string{"", ""}, fieldList(t, fm, "g45_1_list"))
	assert.Equal(t, []string{"", ""}, fieldList(t, fm, "g46_1_list"))
}

func TestApplyChangesReconciliation(t *testing.T) {
	ds, err := dataset.New(importRoot())
	require.NoError(t, err)
	in := Inputs{DeclarationID: "d-1", DS: ds, Rates: importRates()}

	// An edit equal to the computed default leaves no override behind.
	merged, fm := ApplyChanges(context.Background(), in, map[string]any{
		"g22_1": "CNY",
		"g6_1": "15",
	})
	assert.NotContains(t, merged, "g22_1")
	assert.Equal(t, model.Overrides{"g6_1": "15"}, merged)
	assert.Equal(t, "15", fm["g6_1"])

	// Clearing the edit restores the computed value.
	in.Overrides = merged
	merged, fm = ApplyChanges(context.Background(), in, map[string]any{"g6_1": ""})
	assert.Empty(t, merged)
	assert.Equal(t, "12", fm["g6_1"])

	// A real change sticks, and re-entering the default drops it again.
	in.Overrides = merged
	merged, fm = ApplyChanges(context.Background(), in, map[string]any{"g20_1": "FOB"})
	assert.Equal(t, model.Overrides{"g20_1": "FOB"}, merged)
	assert.Equal(t, "FOB", fm["g20_1"])

	in.Overrides = merged
	merged, fm = ApplyChanges(context.Background(), in, map[string]any{"g20_1": "DAP"})
	assert.Empty(t, merged)
	assert.Equal(t, "DAP", fm["g20_1"])
}

func TestApplyChangesIdempotent(t *testing.T) {
	ds, err := dataset.New(importRoot())
	require.NoError(t, err)
	in := Inputs{DS: ds, Rates: importRates()}

	merged, _ := ApplyChanges(context.Background(), in, map[string]any{"g23_1": "13"})
	require.Equal(t, model.Overrides{"g23_1": "13"}, merged)

	in.Overrides = merged
	again, fm := ApplyChanges(context.Background(), in, map[string]any{"g23_1": "13"})
	assert.Equal(t, merged, again)
	assert.Equal(t, "13", fm["g23_1"])
}
