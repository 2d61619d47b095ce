package fields

import (
	"regexp"
	"strings"

	"github.com/taridex/declaration-processor/internal/model"
)

// Document presentation codes for graph 44.
const (
	docModeContract = "03011"
	docModeInvoice  = "04021"
)

// transportDocMode maps the transport mode code of graph 25 to the
// presentation code of the accompanying transport document.
var transportDocMode = map[string]string{
	"40": "02017",
	"50": "02019",
	"10": "02011",
	"20": "02013",
	"30": "02015",
	"31": "02015",
	"32": "02015",
	"71": "02018",
	"72": "02018",
	"80": "02012",
}

var docNameByMode = map[string]string{
	"03011": "Внешнеторговый контракт (договор)",
	"04021": "Инвойс (счет-фактура)",
	"02011": "Морская накладная / коносамент",
	"02012": "Документы внутреннего водного транспорта",
	"02013": "Ж/д накладная",
	"02015": "Автотранспортная накладная (CMR)",
	"02017": "Авианакладная",
	"02018": "Документы на трубопровод/ЛЭП",
	"02019": "Почтовые документы",
}

var contractNumberPaths = []string{
	"Номер контракта", "Номер договора", "№ договора", "Contract No", "Contract number",
}
var contractDatePaths = []string{
	"Дата заключения", "Дата договора", "Contract Date",
}
var invoiceNumberPaths = []string{
	"Номер инвойса", "Номер счета", "Счет №", "Invoice No",
}
var invoiceDatePaths = []string{
	"Дата инвойса", "Дата счета",
}
var transportNumberPaths = []string{
	"Номер накладной", "Номер транспортного документа", "Номер документа",
	"Номер CMR", "Номер авианакладной", "Номер ж/д накладной",
	"Номер коносамента", "B/L No", "AWB No",
}

var (
	docNumberToken = regexp.MustCompile(`[A-Za-zА-Яа-яЁё0-9/-]+`)
	hasDigit       = regexp.MustCompile(`\d`)
	ddmmyyyyDot    = regexp.MustCompile(`^(\d{2})\.(\d{2})\.(\d{4})`)
	ddmmyyyySlash  = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})`)
)

// cleanDocNumber extracts the document number proper from a cell that
// may carry labels around it. Cells without a digit-bearing token mean
// a number was never assigned.
func cleanDocNumber(s string) string {
	for _, token := range docNumberToken.FindAllString(s, -1) {
		if !hasDigit.MatchString(token) {
			continue
		}
		if token = strings.Trim(token, "-/ "); token != "" {
			return token
		}
	}
	return "БН"
}

// toISODate converts the date spellings the source documents use to
// YYYY-MM-DD. Anything unrecognized passes through unchanged.
func toISODate(s string) string {
	s = strings.TrimSpace(s)
	if m := isoDate.FindStringSubmatch(s); m != nil {
		return m[1] + "-" + m[2] + "-" + m[3]
	}
	if m := ddmmyyyyDot.FindStringSubmatch(s); m != nil {
		return m[3] + "-" + m[2] + "-" + m[1]
	}
	if m := ddmmyyyySlash.FindStringSubmatch(s); m != nil {
		return m[3] + "-" + m[2] + "-" + m[1]
	}
	return s
}

type presentedDoc struct {
	mode, kind, name, number, date string
}

func sectionDoc(c *Context, section string, mode string, numberKeys, dateKeys []string) (presentedDoc, bool) {
	if len(c.DS.Section(section)) == 0 {
		return presentedDoc{}, false
	}
	var number, date string
	for _, key := range numberKeys {
		if v := strings.TrimSpace(c.DS.FindKeyIn(section, key)); v != "" {
			number = v
			break
		}
	}
	for _, key := range dateKeys {
		if v := strings.TrimSpace(c.DS.FindKeyIn(section, key)); v != "" {
			date = v
			break
		}
	}
	return presentedDoc{
		mode:   mode,
		kind:   "0",
		name:   docNameByMode[mode],
		number: cleanDocNumber(number),
		date:   toISODate(date),
	}, true
}

// Documents presented with the declaration: the contract, the invoice
// and the transport document matching the transport mode of graph 25.
func resolveG44(c *Context) map[string]any {
	if over, ok := c.overrideList("g44_1_list"); ok {
		return map[string]any{
			"g44_1_list": over,
			"g44_2_list": c.listField("g44_2_list", nil, len(over)),
			"g44_3_list": c.listField("g44_3_list", nil, len(over)),
			"g44_4_list": c.listField("g44_4_list", nil, len(over)),
			"g44_5_list": c.listField("g44_5_list", nil, len(over)),
		}
	}

	var docs []presentedDoc
	if d, ok := sectionDoc(c, string(model.DocContract), docModeContract, contractNumberPaths, contractDatePaths); ok {
		docs = append(docs, d)
	}
	if d, ok := sectionDoc(c, string(model.DocInvoice), docModeInvoice, invoiceNumberPaths, invoiceDatePaths); ok {
		docs = append(docs, d)
	}

	modeCode := c.strSoft("g25_1", c.resolvedStr("g25_1"))
	if docMode, ok := transportDocMode[modeCode]; ok {
		if t := c.DS.TransportType(); t != "" {
			if d, found := sectionDoc(c, string(t), docMode, transportNumberPaths, nil); found {
				docs = append(docs, d)
			}
		}
	}

	modes := make([]string, 0, len(docs))
	kinds := make([]string, 0, len(docs))
	names := make([]string, 0, len(docs))
	numbers := make([]string, 0, len(docs))
	dates := make([]string, 0, len(docs))
	for _, d := range docs {
		modes = append(modes, d.mode)
		kinds = append(kinds, d.kind)
		names = append(names, d.name)
		numbers = append(numbers, d.number)
		dates = append(dates, d.date)
	}

	n := len(docs)
	return map[string]any{
		"g44_1_list": modes,
		"g44_2_list": c.listField("g44_2_list", kinds, n),
		"g44_3_list": c.listField("g44_3_list", names, n),
		"g44_4_list": c.listField("g44_4_list", numbers, n),
		"g44_5_list": c.listField("g44_5_list", dates, n),
	}
}
