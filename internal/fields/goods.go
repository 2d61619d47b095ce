package fields

import (
	"strings"

	dec "github.com/shopspring/decimal"

	"github.com/taridex/declaration-processor/internal/classify"
	"github.com/taridex/declaration-processor/internal/decimal"
	"github.com/taridex/declaration-processor/internal/tariff"
)

var originKeys = []string{"Страна-производитель", "Страна происхождения", "Страна-изготовитель"}

func rowOrigin(raw map[string]any) (string, bool) {
	for _, key := range originKeys {
		if v, ok := raw[key]; ok && v != nil {
			return strings.TrimSpace(toString(v)), true
		}
	}
	return "", false
}

// collectOrigins gathers every origin-country cell from the invoice and
// packing goods tables. Cells naming something the country directory
// does not know collapse to "".
func collectOrigins(c *Context) []string {
	var vals []string
	appendRow := func(raw map[string]any) {
		v, ok := rowOrigin(raw)
		if !ok {
			return
		}
		if classify.CountryCode(classify.NormalizeCountry(v)) != "" || classify.IsEULabel(v) {
			vals = append(vals, v)
		} else {
			vals = append(vals, "")
		}
	}
	for _, row := range c.Ledger.InvoiceRows() {
		appendRow(row.Raw)
	}
	for _, row := range c.Ledger.PackingRows() {
		appendRow(row.Raw)
	}
	return vals
}

// senderCountry is the consignor's country, the fallback origin when
// the goods tables do not state one.
func senderCountry(c *Context) string {
	return classify.NormalizeCountry(c.DS.GetAny(
		"invoice.Отправитель.Страна",
		"contract.Общая информация.Стороны.Отправитель.Страна"))
}

// originByCode maps each commodity code to the origin stated on its
// first invoice line, normalized. Codes without one get "".
func originByCode(c *Context) map[string]string {
	out := map[string]string{}
	for _, row := range c.Ledger.InvoiceRows() {
		if row.Code == "" {
			continue
		}
		if _, seen := out[row.Code]; seen {
			continue
		}
		if v, ok := rowOrigin(row.Raw); ok && v != "" {
			out[row.Code] = classify.NormalizeCountry(v)
		}
	}
	return out
}

// Origin country summary. One known country names itself; several
// collapse to the mixed sentinel, EU labels to the union sentinel, and
// nothing known to the unknown sentinel.
func resolveG16(c *Context) map[string]any {
	raw := collectOrigins(c)

	countries := map[string]string{} // folded -> original spelling
	hasEU := false
	unknownCount := 0
	for _, v := range raw {
		switch {
		case classify.IsUnknown(v):
			unknownCount++
		case classify.IsEULabel(v):
			hasEU = true
		default:
			folded := strings.ToUpper(strings.TrimSpace(v))
			if folded != "" {
				if _, ok := countries[folded]; !ok {
					countries[folded] = v
				}
			}
		}
	}

	var name, code string
	switch {
	case len(countries) == 0 && (unknownCount > 0 || len(raw) == 0):
		name = classify.UnknownCountry
	case len(countries) == 0 && hasEU:
		name = classify.EuropeanUnion
	case len(countries) == 1 && !hasEU:
		for _, orig := range countries {
			name = classify.NormalizeCountry(orig)
		}
		code = classify.CountryCode(name)
	default:
		name = classify.MixedOrigins
	}

	g16_2 := c.str("g16_2", name)
	var g16_1 string
	if v, ok := c.Overrides["g16_1"]; ok {
		g16_1 = toString(v)
	} else if g16_2 != "" {
		if viaName := classify.CountryCode(g16_2); viaName != "" {
			g16_1 = viaName
		} else {
			g16_1 = code
		}
	} else {
		g16_1 = code
	}
	return map[string]any{"g16_1": g16_1, "g16_2": g16_2}
}

// describeRow builds a human description of an invoice line: name plus
// the labelled technical attributes it carries.
func describeRow(row tariff.InvoiceRow) string {
	name := strings.TrimSpace(row.Name)
	var parts []string
	for _, kv := range []struct{ label, val string }{
		{"Модель", row.Model},
		{"Артикул", row.Article},
		{"Характеристики", row.Characteristics},
		{"Маркировка", row.Marking},
	} {
		if v := strings.TrimSpace(kv.val); v != "" {
			parts = append(parts, kv.label+": "+v)
		}
	}
	if len(parts) == 0 {
		return name
	}
	joined := strings.Join(parts, "; ")
	if name == "" {
		return joined
	}
	return name + " — " + joined
}

// Goods description list, one entry per commodity code: a curated group
// description when the dataset carries one, the line's technical
// description next, the composed fallback last.
func resolveG31(c *Context) map[string]any {
	codes := c.Ledger.Codes()

	groupDesc := map[string]string{}
	for key, val := range c.DS.Result("invoice._tnved_groups").Map() {
		code := tariff.Normalize(key)
		if code == "" {
			continue
		}
		desc := ""
		if val.IsObject() {
			desc = strings.TrimSpace(val.Get("Описание группы").String())
			if desc == "" {
				desc = strings.TrimSpace(val.Get("group_desc").String())
			}
		} else {
			desc = strings.TrimSpace(val.String())
		}
		if desc != "" {
			groupDesc[code] = desc
		}
	}

	firstRow := map[string]tariff.InvoiceRow{}
	for _, row := range c.Ledger.InvoiceRows() {
		if row.Code != "" {
			if _, ok := firstRow[row.Code]; !ok {
				firstRow[row.Code] = row
			}
		}
	}

	describe := func(code string) string {
		if d, ok := groupDesc[code]; ok {
			return d
		}
		row, ok := firstRow[code]
		if !ok {
			return ""
		}
		if tech := strings.TrimSpace(toString(row.Raw["Техническое описание"])); tech != "" {
			return tech
		}
		return describeRow(row)
	}

	if over, ok := c.overrideList("g31_1_list"); ok {
		n := len(codes)
		if n == 0 {
			n = len(over)
		}
		return map[string]any{"g31_1_list": normList(over, n)}
	}

	var list []string
	if len(codes) > 0 {
		for _, code := range codes {
			list = append(list, describe(code))
		}
	} else {
		for _, row := range c.Ledger.InvoiceRows() {
			if d := describe(row.Code); d != "" {
				list = append(list, d)
			} else {
				list = append(list, describeRow(row))
			}
		}
	}
	return map[string]any{"g31_1_list": list}
}

func resolveG32(c *Context) map[string]any {
	return map[string]any{"g32_1": c.str("g32_1", "1")}
}

// Commodity code list. Overrides replace it wholesale; empty entries in
// an override are dropped, not padded.
func resolveG33(c *Context) map[string]any {
	codes := c.Ledger.Codes()
	over, ok := c.overrideList("g33_1_list")
	if !ok {
		over, ok = c.overrideList("g33_list")
	}
	if ok {
		var cleaned []string
		for _, v := range over {
			if v = strings.TrimSpace(v); v != "" {
				cleaned = append(cleaned, v)
			}
		}
		codes = cleaned
	}
	if codes == nil {
		codes = []string{}
	}
	return map[string]any{"g33_1_list": codes}
}

// Origin country code per commodity code. A per-line origin wins,
// otherwise the consignor's country is broadcast.
func resolveG34(c *Context) map[string]any {
	codes := c.Ledger.Codes()
	if over, ok := c.overrideList("g34_1_list"); ok {
		return map[string]any{"g34_1_list": over}
	}

	perCode := originByCode(c)
	list := []string{}
	if len(perCode) > 0 && len(codes) > 0 {
		for _, code := range codes {
			list = append(list, classify.CountryCode(perCode[code]))
		}
	} else {
		base := classify.CountryCode(senderCountry(c))
		if len(codes) > 0 {
			list = broadcast(base, len(codes))
		} else if base != "" {
			list = []string{base}
		}
	}
	return map[string]any{"g34_1_list": list}
}

func massList(c *Context, byCode map[string]dec.Decimal, key string) []string {
	codes := c.Ledger.Codes()
	n := c.Ledger.ListLen()
	if over, ok := c.overrideList(key); ok {
		return normList(over, n)
	}
	if over, ok := c.overrideList(strings.Replace(key, "_1_list", "_list", 1)); ok {
		return normList(over, n)
	}

	list := []string{}
	for _, code := range codes {
		if v, ok := byCode[code]; ok {
			list = append(list, decimal.WeightString(v))
		} else {
			list = append(list, "")
		}
	}
	return normList(list, n)
}

// Gross mass per commodity code.
func resolveG35(c *Context) map[string]any {
	return map[string]any{"g35_1_list": massList(c, c.Ledger.GrossByCode(), "g35_1_list")}
}

// Marks on packages, fixed placeholders.
func resolveG36(c *Context) map[string]any {
	return map[string]any{
		"g36_1": c.str("g36_1", "ОО"),
		"g36_2": c.str("g36_2", "ОО"),
		"g36_3": c.str("g36_3", "-"),
		"g36_4": c.str("g36_4", "ОО"),
	}
}

// Procedure per item: the declaration procedure broadcast over the
// codes. Reads the already-resolved g1.
func resolveG37(c *Context) map[string]any {
	codes := c.Ledger.Codes()
	proc := strings.TrimSpace(c.resolvedStr("g1_2"))
	if v, ok := c.Overrides["g1_2"]; ok && strings.TrimSpace(toString(v)) != "" {
		proc = strings.TrimSpace(toString(v))
	}

	if over, ok := c.overrideList("g37_1_list"); ok {
		if len(codes) > 0 {
			return map[string]any{"g37_1_list": normList(over, len(codes))}
		}
		return map[string]any{"g37_1_list": over}
	}

	n := len(codes)
	if n == 0 {
		n = 1
	}
	return map[string]any{"g37_1_list": broadcast(proc, n)}
}

// Net mass per commodity code.
func resolveG38(c *Context) map[string]any {
	return map[string]any{"g38_1_list": massList(c, c.Ledger.NetByCode(), "g38_1_list")}
}

// Quota, empty per item unless overridden.
func resolveG39(c *Context) map[string]any {
	n := c.Ledger.ListLen()
	return map[string]any{"g39_1_list": c.listField("g39_1_list", normList(nil, n), n)}
}

// Preceding document, empty per item unless overridden.
func resolveG40(c *Context) map[string]any {
	n := c.Ledger.ListLen()
	return map[string]any{"g40_1_list": c.listField("g40_1_list", normList(nil, n), n)}
}

// Supplementary units: quantity, unit short name and unit code per
// commodity code.
func resolveG41(c *Context) map[string]any {
	codes := c.Ledger.Codes()
	n := len(codes)

	qtyByCode := c.Ledger.QuantityByCode()
	unitByCode := c.Ledger.UnitByCode()

	qtyList := make([]string, 0, n)
	unitList := make([]string, 0, n)
	codeList := make([]string, 0, n)
	for _, code := range codes {
		qty := ""
		if v, ok := qtyByCode[code]; ok {
			qty = v.String()
		}
		unitCode, unitShort := classify.Unit(unitByCode[code])
		qtyList = append(qtyList, qty)
		unitList = append(unitList, unitShort)
		codeList = append(codeList, unitCode)
	}

	return map[string]any{
		"g41_1_list": c.listField("g41_1_list", qtyList, n),
		"g41_2_list": c.listField("g41_2_list", unitList, n),
		"g41_3_list": c.listField("g41_3_list", codeList, n),
	}
}

// Invoice amount per commodity code, in the invoice currency.
func resolveG42(c *Context) map[string]any {
	codes := c.Ledger.Codes()
	n := len(codes)
	sums := c.Ledger.InvoiceSumByCode()

	list := make([]string, 0, n)
	for _, code := range codes {
		if v, ok := sums[code]; ok && !v.IsZero() {
			list = append(list, v.String())
		} else {
			list = append(list, "")
		}
	}
	return map[string]any{"g42_1_list": c.listField("g42_1_list", list, n)}
}

// Valuation method per item, method 1 unless overridden.
func resolveG43(c *Context) map[string]any {
	n := len(c.Ledger.Codes())
	base := strings.TrimSpace(c.str("g43_1", "1"))
	if base == "" {
		base = "1"
	}
	return map[string]any{"g43_1_list": c.listField("g43_1_list", broadcast(base, n), n)}
}

// Customs value per item: the invoice amount converted at the
// declaration rate, plus the item's gross-mass share of freight and
// insurance.
func resolveG45(c *Context) map[string]any {
	n := c.Ledger.ListLen()

	if over, ok := c.overrideList("g45_1_list"); ok {
		return map[string]any{"g45_1_list": normList(over, n)}
	}

	g42 := normList(c.resolvedList("g42_1_list"), n)
	if over, ok := c.overrideList("g42_1_list"); ok {
		g42 = normList(over, n)
	}

	rateStr := c.strSoft("g23_1", c.resolvedStr("g23_1"))
	rate := decimal.FromAny(rateStr)
	if !rate.IsPositive() {
		return map[string]any{"g45_1_list": normList(nil, n)}
	}

	var addTotal dec.Decimal
	if c.Overrides["g12_logistics"] != nil || c.Overrides["g12_insurance"] != nil {
		addTotal = decimal.FromAny(c.Overrides["g12_logistics"]).
			Add(decimal.FromAny(c.Overrides["g12_insurance"]))
	} else {
		addTotal = decimal.FromAny(c.resolvedStr("g12_logistics")).
			Add(decimal.FromAny(c.resolvedStr("g12_insurance")))
	}

	g35 := normList(c.resolvedList("g35_1_list"), n)
	gross := make([]dec.Decimal, n)
	totalGross := decimal.Zero
	for i, v := range g35 {
		gross[i] = decimal.FromAny(v)
		if gross[i].IsPositive() {
			totalGross = totalGross.Add(gross[i])
		}
	}

	list := make([]string, 0, n)
	for i := 0; i < n; i++ {
		inv := decimal.FromAny(g42[i])
		base := decimal.Zero
		if inv.IsPositive() {
			base = decimal.MulMoney(inv, rate)
		}
		share := decimal.Zero
		if addTotal.IsPositive() && totalGross.IsPositive() && gross[i].IsPositive() {
			share = addTotal.Mul(gross[i]).Div(totalGross).Round(2)
		}
		item := base.Add(share)
		if item.IsPositive() {
			list = append(list, decimal.MoneyString(item))
		} else {
			list = append(list, "")
		}
	}
	return map[string]any{"g45_1_list": list}
}

// Statistical value per item: the customs value in USD at the
// declaration date rate.
func resolveG46(c *Context) map[string]any {
	n := len(c.Ledger.Codes())
	if over, ok := c.overrideList("g46_1_list"); ok {
		return map[string]any{"g46_1_list": normList(over, n)}
	}

	g45 := normList(c.resolvedList("g45_1_list"), n)
	if over, ok := c.overrideList("g45_1_list"); ok {
		g45 = normList(over, n)
	}

	date := c.DeclarationDate()
	if date == "" {
		return map[string]any{"g46_1_list": normList(nil, n)}
	}
	usdRate := lookupRate(c, date, "USD")
	if !usdRate.IsPositive() {
		return map[string]any{"g46_1_list": normList(nil, n)}
	}

	list := make([]string, 0, n)
	for _, v := range g45 {
		base := decimal.FromAny(v)
		if !base.IsPositive() {
			list = append(list, "")
			continue
		}
		list = append(list, decimal.MoneyString(decimal.DivMoney(base, usdRate)))
	}
	return map[string]any{"g46_1_list": list}
}

// GoodsItem is one invoice line inside the goods_by_tnved grouping.
type GoodsItem struct {
	Index         int    `json:"index"`
	TNVED         string `json:"tnved"`
	Name          string `json:"name"`
	OriginalName  string `json:"original_name"`
	TechDesc      string `json:"tech_desc"`
	Manufacturer  string `json:"manufacturer"`
	Trademark     string `json:"goods_trademark"`
	Mark          string `json:"goods_mark"`
	Model         string `json:"goods_model"`
	Marking       string `json:"goods_marking"`
	Qty           string `json:"qty"`
	Currency      string `json:"currency"`
	InvoicedCost  string `json:"invoiced_cost"`
}

const attributeMissing = "ОТСУТСТВУЕТ"

func orMissing(s string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return attributeMissing
}

// Per-code goods grouping for the detailed goods editor. An override
// replaces the grouping wholesale; the optional prefix filter narrows
// it either way.
func resolveGoods(c *Context) map[string]any {
	filter := strings.TrimSpace(toString(c.Overrides["goods_tnved_filter"]))

	applyFilter := func(goods map[string]any) map[string]any {
		if filter == "" {
			return goods
		}
		filtered := map[string]any{}
		for code, items := range goods {
			if strings.HasPrefix(code, filter) {
				filtered[code] = items
			}
		}
		return filtered
	}

	if over, ok := c.Overrides["goods_by_tnved"].(map[string]any); ok && len(over) > 0 {
		return map[string]any{"goods_by_tnved": applyFilter(over)}
	}

	manufacturer := strings.TrimSpace(c.DS.Get("invoice.Отправитель.Название компании"))

	goods := map[string]any{}
	for idx, row := range c.Ledger.InvoiceRows() {
		if row.Code == "" {
			continue
		}
		techDesc := strings.TrimSpace(toString(row.Raw["Техническое описание"]))
		displayName := techDesc
		if displayName == "" {
			displayName = strings.TrimSpace(row.Name)
		}
		currency := strings.TrimSpace(toString(row.Raw["Валюта"]))
		if strings.EqualFold(currency, "null") {
			currency = ""
		}
		cost := ""
		if !row.Total.IsZero() {
			cost = row.Total.String()
		}
		item := GoodsItem{
			Index:        idx,
			TNVED:        row.Code,
			Name:         displayName,
			OriginalName: strings.TrimSpace(row.Name),
			TechDesc:     techDesc,
			Manufacturer: manufacturer,
			Trademark:    strings.TrimSpace(toString(row.Raw["Товарный знак"])),
			Mark:         orMissing(toString(row.Raw["Марка"])),
			Model:        orMissing(row.Model),
			Marking:      orMissing(row.Article),
			Qty:          strings.TrimSpace(toString(row.Raw["Количество"])),
			Currency:     currency,
			InvoicedCost: cost,
		}
		items, _ := goods[row.Code].([]GoodsItem)
		goods[row.Code] = append(items, item)
	}

	return map[string]any{"goods_by_tnved": applyFilter(goods)}
}
