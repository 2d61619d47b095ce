package fields

import (
	"regexp"
	"strings"

	"github.com/taridex/declaration-processor/internal/classify"
)

// postalPatterns match the index formats that show up in legal
// addresses, longest form first.
var postalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{6}\b`),
	regexp.MustCompile(`\b\d{5}\b`),
	regexp.MustCompile(`\b\d{3}-\d{3}\b`),
	regexp.MustCompile(`\b\d{3} \d{2}\b`),
	regexp.MustCompile(`\b\d{5}-\d{4}\b`),
}

// extractIndex pulls a postal index out of a free-form address.
func extractIndex(address string) string {
	if address == "" {
		return ""
	}
	for _, p := range postalPatterns {
		if m := p.FindString(address); m != "" {
			return m
		}
	}
	return ""
}

// Consignor: invoice first, contract parties block second.
func resolveG2(c *Context) map[string]any {
	const invBase = "invoice.Отправитель"
	const conBase = "contract.Общая информация.Стороны.Отправитель"

	countryNorm := classify.NormalizeCountry(c.DS.GetAny(
		invBase+".Страна", conBase+".Страна"))

	defaults := map[string]string{
		"g2_1": c.DS.GetAny(invBase+".ИНН", conBase+".ИНН"),
		"g2_2": c.DS.GetAny(invBase+".КПП", conBase+".КПП"),
		"g2_3": c.DS.GetAny(invBase+".Название компании", conBase+".Название компании"),
		"g2_6": extractIndex(c.DS.GetAny(
			invBase+".Юридический адрес.Полностью", conBase+".Юридический адрес.Полностью")),
		"g2_7":  c.DS.GetAny(invBase+".Юридический адрес.Регион/Область", conBase+".Юридический адрес.Регион/Область"),
		"g2_8":  c.DS.GetAny(invBase+".Юридический адрес.Город", conBase+".Юридический адрес.Город"),
		"g2_9":  c.DS.GetAny(invBase+".Юридический адрес.Улица", conBase+".Юридический адрес.Улица"),
		"g2_10": c.DS.GetAny(invBase+".Юридический адрес.Номер дома", conBase+".Юридический адрес.Номер дома"),
		"g2_11": c.DS.Get(conBase + ".ОГРН"),
		"g2_addr_invoice":  c.DS.Get(invBase + ".Юридический адрес.Полностью"),
		"g2_addr_contract": c.DS.Get(conBase + ".Юридический адрес.Полностью"),
	}
	if countryNorm != "" {
		defaults["g2_5"] = countryNorm
	} else {
		defaults["g2_5"] = c.DS.GetAny(invBase+".Страна", conBase+".Страна")
	}

	out := map[string]any{}
	for key, def := range defaults {
		out[key] = c.str(key, def)
	}
	g2_5 := toString(out["g2_5"])
	// the country letter code follows the resolved country name unless
	// overridden directly
	if v, ok := c.Overrides["g2_4"]; ok {
		out["g2_4"] = toString(v)
	} else if g2_5 != "" {
		out["g2_4"] = classify.CountryCode(g2_5)
	} else {
		out["g2_4"] = ""
	}
	return out
}

// blankParty builds the fixed see-graph-14 stub used by the graphs that
// mirror the declarant.
func blankParty(c *Context, prefix string) map[string]any {
	out := map[string]any{}
	for _, sub := range []string{"1", "2", "3", "5", "6", "7", "8", "9", "10", "11"} {
		key := prefix + "_" + sub
		def := ""
		if sub == "3" {
			def = "СМ. ГРАФУ 14 ДТ"
		}
		out[key] = c.str(key, def)
	}
	codeKey := prefix + "_4"
	countryVal := toString(out[prefix+"_5"])
	if v, ok := c.Overrides[codeKey]; ok {
		out[codeKey] = toString(v)
	} else if countryVal != "" {
		out[codeKey] = classify.CountryCode(countryVal)
	} else {
		out[codeKey] = ""
	}
	return out
}

func resolveG8(c *Context) map[string]any { return blankParty(c, "g8") }
func resolveG9(c *Context) map[string]any { return blankParty(c, "g9") }

// Declarant/consignee. When the contract names the consignee as its own
// declarant, the graph collapses to a reference to itself.
func resolveG14(c *Context) map[string]any {
	const invBase = "invoice.Получатель"
	const conBase = "contract.Общая информация.Стороны.Получатель"

	declarant := strings.TrimSpace(c.DS.Get("contract.Общая информация.Декларант.Название компании"))
	consignee := strings.TrimSpace(c.DS.Get(conBase + ".Название компании"))
	sameParty := declarant != "" && consignee != "" &&
		strings.EqualFold(declarant, consignee)

	defaults := map[string]string{}
	if sameParty {
		defaults["g14_1"] = "СМ. ГРАФУ 14 ДТ"
		for _, sub := range []string{"2", "3", "5", "6", "7", "8", "9", "10", "11"} {
			defaults["g14_"+sub] = ""
		}
	} else {
		countryNorm := classify.NormalizeCountry(c.DS.GetAny(
			invBase+".Страна", conBase+".Юридический адрес.Страна"))
		defaults["g14_1"] = c.DS.GetAny(invBase+".ИНН", conBase+".ИНН")
		defaults["g14_2"] = c.DS.GetAny(invBase+".КПП", conBase+".КПП")
		defaults["g14_3"] = c.DS.GetAny(invBase+".Название компании", conBase+".Название компании")
		if countryNorm != "" {
			defaults["g14_5"] = countryNorm
		} else {
			defaults["g14_5"] = c.DS.GetAny(invBase+".Страна", conBase+".Юридический адрес.Страна")
		}
		defaults["g14_6"] = extractIndex(c.DS.GetAny(
			invBase+".Юридический адрес.Полностью", conBase+".Юридический адрес.Полностью"))
		defaults["g14_7"] = c.DS.GetAny(invBase+".Юридический адрес.Регион/Область", conBase+".Юридический адрес.Регион/Область")
		defaults["g14_8"] = c.DS.GetAny(invBase+".Юридический адрес.Город", conBase+".Юридический адрес.Город")
		defaults["g14_9"] = c.DS.GetAny(invBase+".Юридический адрес.Улица", conBase+".Юридический адрес.Улица")
		defaults["g14_10"] = c.DS.GetAny(invBase+".Юридический адрес.Номер дома", conBase+".Юридический адрес.Номер дома")
		defaults["g14_11"] = c.DS.Get(conBase + ".ОГРН")
	}
	defaults["g14_addr_invoice"] = c.DS.Get(invBase + ".Юридический адрес.Полностью")
	defaults["g14_addr_contract"] = c.DS.Get(conBase + ".Юридический адрес.Полностью")

	out := map[string]any{}
	for key, def := range defaults {
		out[key] = c.str(key, def)
	}
	g14_5 := toString(out["g14_5"])
	if v, ok := c.Overrides["g14_4"]; ok {
		out["g14_4"] = toString(v)
	} else if g14_5 != "" {
		out["g14_4"] = classify.CountryCode(g14_5)
	} else {
		out["g14_4"] = ""
	}
	return out
}
