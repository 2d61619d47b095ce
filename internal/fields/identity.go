package fields

import (
	"regexp"
	"strconv"

	"github.com/taridex/declaration-processor/internal/classify"
)

func resolveDeclarationDate(c *Context) map[string]any {
	return map[string]any{"declaration_date": c.DeclarationDate()}
}

// Declaration kind and procedure: an import under procedure 40 whenever
// the consignee's country differs from the consignor's.
func resolveG1(c *Context) map[string]any {
	consigneeCountry := classify.NormalizeCountry(c.DS.GetAny(
		"invoice.Получатель.Страна",
		"contract.Общая информация.Стороны.Получатель.Юридический адрес.Страна"))
	consignorCountry := classify.NormalizeCountry(c.DS.GetAny(
		"invoice.Отправитель.Страна",
		"contract.Общая информация.Стороны.Отправитель.Страна"))

	kind, proc := "", ""
	if consigneeCountry != "" && consigneeCountry != consignorCountry {
		kind, proc = "ИМ", "40"
	}
	return map[string]any{
		"g1_1": c.str("g1_1", kind),
		"g1_2": c.str("g1_2", proc),
		"g1_3": c.str("g1_3", "ЭД"),
	}
}

// Form count: one main sheet plus a page counter equal to the number of
// distinct commodity codes.
func resolveG3(c *Context) map[string]any {
	return map[string]any{
		"g3_1": c.str("g3_1", "1"),
		"g3_2": c.str("g3_2", strconv.Itoa(len(c.Ledger.Codes()))),
	}
}

func resolveG4(c *Context) map[string]any {
	return map[string]any{
		"g4_1": c.str("g4_1", ""),
		"g4_2": c.str("g4_2", ""),
	}
}

// Item count equals the number of distinct commodity codes.
func resolveG5(c *Context) map[string]any {
	return map[string]any{
		"g5_1": c.str("g5_1", strconv.Itoa(len(c.Ledger.Codes()))),
	}
}

var digitRuns = regexp.MustCompile(`\d+`)

// Total places: every number mentioned in the packing list place
// column, summed.
func resolveG6(c *Context) map[string]any {
	total := 0
	for _, row := range c.Ledger.PackingRows() {
		raw, _ := row.Raw["Количество мест"].(string)
		if raw == "" {
			raw = row.Seats.String()
		}
		for _, m := range digitRuns.FindAllString(raw, -1) {
			if n, err := strconv.Atoi(m); err == nil {
				total += n
			}
		}
	}
	return map[string]any{"g6_1": c.str("g6_1", strconv.Itoa(total))}
}

func resolveG7(c *Context) map[string]any {
	return map[string]any{"g7_1": c.str("g7_1", "")}
}

// Trading country: the consignor's country, letter code form. An
// explicit consignor code override wins over the computed one.
func resolveG11(c *Context) map[string]any {
	senderCountry := classify.NormalizeCountry(c.DS.GetAny(
		"invoice.Отправитель.Страна",
		"contract.Общая информация.Стороны.Отправитель.Страна"))
	code := ""
	if senderCountry != "" {
		code = classify.CountryCode(senderCountry)
	}
	if v, ok := c.Overrides["g2_4"]; ok && !isEmptyOverride(v) {
		code = toString(v)
	}
	return map[string]any{"g11_1": c.str("g11_1", code)}
}
