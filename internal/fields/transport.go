package fields

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/taridex/declaration-processor/internal/classify"
	"github.com/taridex/declaration-processor/internal/customsoffice"
	"github.com/taridex/declaration-processor/internal/model"
)

var (
	tractorPlate = regexp.MustCompile(`(?i)^[A-Z]\d{3}[A-Z]{2}\d{2,3}$`)
	trailerPlate = regexp.MustCompile(`(?i)^[A-Z]{2}\d{6,7}$`)
	flightNumber = regexp.MustCompile(`(?i)\b[A-ZА-Я0-9]{2,3}[-\s]?\d{3,4}[A-ZА-Я]?\b`)
	wagonNumber  = regexp.MustCompile(`\b\d{10}\b`)
)

// transportIdents extracts the vehicle identification for the dataset's
// transport document: road plates, a flight number or a wagon number.
// Returns the ident count, the joined idents and the registration
// country.
func transportIdents(c *Context) (int, string, string) {
	switch c.DS.TransportType() {
	case model.DocTransportRoad:
		return roadIdents(c)
	case model.DocTransportAir:
		return airIdent(c)
	case model.DocTransportRail:
		return railIdent(c)
	}
	return 0, "", ""
}

func roadIdents(c *Context) (int, string, string) {
	tractors := matchingValues(
		c.DS.Result("transport_road.Перевозка.Регистрационный номер.Тягач"), tractorPlate)
	trailers := matchingValues(
		c.DS.Result("transport_road.Перевозка.Регистрационный номер.Прицеп"), trailerPlate)

	count := len(tractors) + len(trailers)
	tractorStr := strings.Join(tractors, "; ")
	trailerStr := strings.Join(trailers, "; ")

	switch {
	case tractorStr != "" && trailerStr != "":
		return count, tractorStr + "/" + trailerStr, "RU"
	case tractorStr != "":
		return count, tractorStr, "RU"
	case trailerStr != "":
		return count, trailerStr, "RU"
	}
	return 0, "", ""
}

func matchingValues(res gjson.Result, pattern *regexp.Regexp) []string {
	var raw []string
	if res.IsArray() {
		for _, item := range res.Array() {
			raw = append(raw, item.String())
		}
	} else if res.Exists() {
		raw = append(raw, res.String())
	}
	var out []string
	for _, v := range raw {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v != "" && pattern.MatchString(v) {
			out = append(out, v)
		}
	}
	return out
}

func airIdent(c *Context) (int, string, string) {
	carrier := "transport_air.Перевозка.Перевозчик"
	reys := firstScalar(c.DS.Result(carrier + ".Номер рейса"))

	if m := flightNumber.FindString(reys); m != "" && strings.EqualFold(m, strings.TrimSpace(reys)) {
		return 1, strings.ToUpper(m), ""
	}
	// flight code split between the airline field and the number field
	company := c.DS.GetAny(carrier+".Авиакомпания", carrier+".Авиакомпания (Carrier)")
	if m := flightNumber.FindString(strings.TrimSpace(company + reys)); m != "" {
		return 1, strings.ToUpper(m), ""
	}
	return 0, "", ""
}

func firstScalar(res gjson.Result) string {
	if res.IsArray() {
		for _, item := range res.Array() {
			if s := strings.TrimSpace(item.String()); s != "" {
				return s
			}
		}
		return ""
	}
	return strings.TrimSpace(res.String())
}

func railIdent(c *Context) (int, string, string) {
	// explicit wagon fields first
	priority := []string{
		"transport_rail.Перевозка.Вагон",
		"transport_rail.Перевозка.Номер вагона",
		"transport_rail.Перевозка.Номер вагона/тележки",
		"transport_rail.Общая информация.Номер вагона",
		"transport_rail.Общая информация.Вагон",
	}
	for _, path := range priority {
		if m := wagonNumber.FindString(firstScalar(c.DS.Result(path))); m != "" {
			return 1, m, ""
		}
	}
	for _, item := range c.DS.Result("transport_rail.Товары").Array() {
		if m := wagonNumber.FindString(item.Get("Маркировка").String()); m != "" {
			return 1, m, ""
		}
	}
	// anywhere in the shipment or header blocks
	for _, scope := range []string{"transport_rail.Перевозка", "transport_rail.Общая информация", "transport_rail.Товары"} {
		if m := wagonNumber.FindString(c.DS.Result(scope).Raw); m != "" {
			return 1, m, ""
		}
	}
	return 0, "", ""
}

// modeCode maps the transport document type and ident string to the
// declaration mode-of-transport code.
func modeCode(c *Context, idents string) string {
	switch c.DS.TransportType() {
	case model.DocTransportRoad:
		if strings.Contains(idents, "/") && len(strings.Split(idents, "/")) >= 3 {
			return "32"
		}
		return "31"
	case model.DocTransportAir:
		return "40"
	case model.DocTransportSea:
		return "10"
	case model.DocTransportRail:
		return "20"
	}
	return ""
}

const unknownDispatch = classify.UnknownCountry

// Dispatch country, read off the transport document's departure point.
func resolveG15(c *Context) map[string]any {
	name := classify.NormalizeCountry(c.DS.GetAny(
		"transport_rail.Перевозка.Станция отправления.Страна",
		"transport_road.Перевозка.Место погрузки.Страна",
		"transport_air.Перевозка.Аэропорт отправления.Страна",
		"transport_sea.Перевозка.Отправитель.Страна"))
	if name == "" {
		name = unknownDispatch
	}
	defCode := ""
	if name != unknownDispatch {
		defCode = classify.CountryCode(name)
	}

	g15_2 := c.str("g15_2", name)
	var g15_1 string
	if v, ok := c.Overrides["g15_1"]; ok {
		g15_1 = toString(v)
	} else if g15_2 != "" {
		g15_1 = classify.CountryCode(g15_2)
	} else {
		g15_1 = defCode
	}
	return map[string]any{"g15_1": g15_1, "g15_2": g15_2}
}

// Destination country, read off the arrival point.
func resolveG17(c *Context) map[string]any {
	name := classify.NormalizeCountry(c.DS.GetAny(
		"transport_rail.Перевозка.Станция назначения.Страна",
		"transport_road.Перевозка.Место разгрузки.Страна",
		"transport_air.Перевозка.Аэропорт назначения.Страна"))

	g17_2 := c.str("g17_2", name)
	var g17_1 string
	if v, ok := c.Overrides["g17_1"]; ok {
		g17_1 = toString(v)
	} else if g17_2 != "" {
		g17_1 = classify.CountryCode(g17_2)
	}
	return map[string]any{"g17_1": g17_1, "g17_2": g17_2}
}

// Departure transport idents: land transport only.
func resolveG18(c *Context) map[string]any {
	t := c.DS.TransportType()
	if t != model.DocTransportRoad && t != model.DocTransportRail {
		return map[string]any{"g18_1": "", "g18_2": "", "g18_3": ""}
	}
	count, nums, country := transportIdents(c)
	countStr := ""
	if count > 0 {
		countStr = strconv.Itoa(count)
	}
	return map[string]any{
		"g18_1": c.str("g18_1", countStr),
		"g18_2": c.str("g18_2", nums),
		"g18_3": c.str("g18_3", country),
	}
}

// Container flag: sea and rail shipments are containerized by default.
func resolveG19(c *Context) map[string]any {
	def := ""
	switch c.DS.TransportType() {
	case model.DocTransportSea, model.DocTransportRail:
		def = "1"
	case model.DocTransportRoad, model.DocTransportAir:
		def = "0"
	}
	return map[string]any{"g19_1": c.str("g19_1", def)}
}

// Border transport idents: air and sea only.
func resolveG21(c *Context) map[string]any {
	t := c.DS.TransportType()
	if t != model.DocTransportAir && t != model.DocTransportSea {
		return map[string]any{"g21_1": "", "g21_2": "", "g21_3": ""}
	}
	count, nums, country := transportIdents(c)
	countStr := ""
	if count > 0 {
		countStr = strconv.Itoa(count)
	}
	return map[string]any{
		"g21_1": c.str("g21_1", countStr),
		"g21_2": c.str("g21_2", nums),
		"g21_3": c.str("g21_3", country),
	}
}

// Mode of transport at the border.
func resolveG25(c *Context) map[string]any {
	def := ""
	if c.DS.TransportType() != "" {
		_, nums, _ := transportIdents(c)
		def = modeCode(c, nums)
	}
	return map[string]any{"g25_1": c.str("g25_1", def)}
}

/// Inland mode of transport: land shipments only.
func resolveG26(c *Context) map[string]any {
	def := ""
	t := c.DS.TransportType()
	if t == model.DocTransportRoad || t == model.DocTransportRail {
		_, nums, _ := transportIdents(c)
		def = modeCode(c, nums)
	}
	return map[string]any{"g26_1": c.str("g26_1", def)}
}

var customsPostPaths = []string{
	"transport_rail.Таможенный пост.Код ТП",
	"transport_road.Таможенный пост.Код ТП",
	"transport_air.Таможенный пост.Код ТП",
	"transport_sea.Таможенный пост.Код ТП",
}

// Entry customs post code.
func resolveG29(c *Context) map[string]any {
	code := strings.TrimSpace(c.DS.GetAny(customsPostPaths...))
	return map[string]any{"g29_1": c.str("g29_1", code)}
}

// lookupOffice queries the directory, swallowing misses and transport
// errors: a bare goods location is valid output.
func lookupOffice(c *Context, code string) customsoffice.Office {
	if code == "" || c.Offices == nil {
		return customsoffice.Office{}
	}
	office, ok, err := c.Offices.Lookup(c.Ctx, code)
	if err != nil || !ok {
		return customsoffice.Office{}
	}
	return office
}

// Goods location. The location kind depends on the transport document;
// the storage terminal details come from the office directory.
func resolveG30(c *Context) map[string]any {
	kind, flag := "", ""
	switch c.DS.TransportType() {
	case model.DocTransportSea:
		kind, flag = "95", "2"
	case model.DocTransportRail:
		kind, flag = "99", "2"
	case model.DocTransportRoad, model.DocTransportAir:
		kind, flag = "11", "2"
	}

	postCode := strings.TrimSpace(c.DS.GetAny(customsPostPaths...))

	out := map[string]any{
		"g30_1": c.str("g30_1", kind),
		"g30_2": c.str("g30_2", flag),
		"g30_3": c.str("g30_3", postCode),
	}

	office := lookupOffice(c, toString(out["g30_3"]))
	out["g30_svh_name"] = c.str("g30_svh_name", office.SVHName)
	out["g30_license_number"] = c.str("g30_license_number", office.LicenseNumber)
	out["g30_license_date"] = c.str("g30_license_date", office.LicenseDate)
	out["g30_address"] = c.str("g30_address", office.Address)
	out["g30_country_code"] = c.str("g30_country_code", office.CountryCode)
	out["g30_country_name"] = c.str("g30_country_name", office.CountryName)
	out["g30_region"] = c.str("g30_region", office.Region)
	out["g30_city"] = c.str("g30_city", office.City)
	out["g30_street_house"] = c.str("g30_street_house", office.StreetHouse)
	return out
}
