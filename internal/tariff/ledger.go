// Package tariff maintains the per-declaration set of 10-digit
// commodity codes and the per-code aggregates (mass, seats, sums,
// quantities) the goods field groups are built from.
package tariff

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	dec "github.com/shopspring/decimal"

	"github.com/taridex/declaration-processor/internal/dataset"
	"github.com/taridex/declaration-processor/internal/decimal"
)

var tenDigits = regexp.MustCompile(`\b(\d{10})\b`)

// Normalize extracts a 10-digit commodity code from free text, ignoring
// spaces. Anything without exactly ten consecutive digits yields "".
func Normalize(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	m := tenDigits.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return m[1]
}

// Column candidate names, most common spelling first. Row lookups score
// them the same way dataset.GetAny scores paths.
var (
	codeColumns     = []string{"Код ТНВЭД", "Код ТН ВЭД", "ТНВЭД", "ТН ВЭД", "Код"}
	nameColumns     = []string{"Наименование", "Наименование товара", "Описание", "Товар"}
	quantityColumns = []string{"Количество", "Кол-во", "Кол во"}
	priceColumns    = []string{"Цена", "Цена за единицу"}
	totalColumns    = []string{"Стоимость", "Сумма", "Общая стоимость"}
	grossColumns    = []string{"Масса брутто", "Вес брутто", "Брутто"}
	netColumns      = []string{"Масса нетто", "Вес нетто", "Нетто"}
	seatsColumns    = []string{"Количество мест", "Кол-во мест", "Мест"}
	unitColumns     = []string{"Единица измерения", "Ед. изм.", "Ед.изм", "Единица"}
)

// InvoiceRow is one goods line of the invoice table with its columns
// already resolved against the candidate spellings.
type InvoiceRow struct {
	Code            string
	Name            string
	Quantity        dec.Decimal
	Price           dec.Decimal
	Total           dec.Decimal
	Unit            string
	Model           string
	Article         string
	Characteristics string
	Marking         string
	Raw             map[string]any
}

// PackingRow is one line of the packing list table.
type PackingRow struct {
	Name     string
	Gross    dec.Decimal
	Net      dec.Decimal
	Seats    dec.Decimal
	Quantity dec.Decimal
	Price    dec.Decimal
	Total    dec.Decimal
	Raw      map[string]any
}

// Ledger is the commodity-code view over a merged dataset. Codes are
// deduplicated and kept in ascending order; every list-valued field
// group is aligned to that order.
type Ledger struct {
	codes   []string
	invoice []InvoiceRow
	packing []PackingRow
}

// NewLedger scans the invoice and packing tables of the dataset.
func NewLedger(ds *dataset.Dataset) *Ledger {
	l := &Ledger{
		invoice: invoiceRows(ds),
		packing: packingRows(ds),
	}
	seen := map[string]bool{}
	for _, row := range l.invoice {
		if row.Code != "" && !seen[row.Code] {
			seen[row.Code] = true
			l.codes = append(l.codes, row.Code)
		}
	}
	sort.Strings(l.codes)
	return l
}

// Codes returns the sorted, deduplicated commodity codes.
func (l *Ledger) Codes() []string { return l.codes }

// Primary returns the first code in order, or "".
func (l *Ledger) Primary() string {
	if len(l.codes) == 0 {
		return ""
	}
	return l.codes[0]
}

// ListLen is the row count every goods list must have: one row per
// code, one placeholder row when no code was recognized.
func (l *Ledger) ListLen() int {
	if len(l.codes) == 0 {
		return 1
	}
	return len(l.codes)
}

// InvoiceRows returns the parsed invoice goods lines. Table-continuation
// artifacts are already filtered out.
func (l *Ledger) InvoiceRows() []InvoiceRow { return l.invoice }

// PackingRows returns the parsed packing list lines.
func (l *Ledger) PackingRows() []PackingRow { return l.packing }

// RowsByCode groups the invoice lines by their commodity code.
func (l *Ledger) RowsByCode() map[string][]InvoiceRow {
	out := map[string][]InvoiceRow{}
	for _, row := range l.invoice {
		if row.Code == "" {
			continue
		}
		out[row.Code] = append(out[row.Code], row)
	}
	return out
}

// InvoiceSumByCode sums line totals per code. A code whose invoice
// lines carry no amounts falls back to the packing list lines matched
// by name.
func (l *Ledger) InvoiceSumByCode() map[string]dec.Decimal {
	out := map[string]dec.Decimal{}
	for _, row := range l.invoice {
		if row.Code == "" {
			continue
		}
		out[row.Code] = out[row.Code].Add(row.Total)
	}

	packSum := map[string]dec.Decimal{}
	for _, pack := range l.packing {
		if !pack.Total.IsPositive() {
			continue
		}
		if code := l.matchCode(pack.Name); code != "" {
			packSum[code] = packSum[code].Add(pack.Total)
		}
	}
	for code, sp := range packSum {
		if !out[code].IsPositive() {
			out[code] = sp
		}
	}
	return out
}

// TotalInvoiceSum sums all line totals, preferring the invoice table
// and falling back to the packing list when the invoice has none.
func (l *Ledger) TotalInvoiceSum() dec.Decimal {
	sumInv := decimal.Zero
	for _, row := range l.invoice {
		sumInv = sumInv.Add(row.Total)
	}
	if sumInv.IsPositive() {
		return sumInv
	}
	sumPack := decimal.Zero
	for _, row := range l.packing {
		sumPack = sumPack.Add(row.Total)
	}
	return sumPack
}

// QuantityByCode sums quantities per code.
func (l *Ledger) QuantityByCode() map[string]dec.Decimal {
	out := map[string]dec.Decimal{}
	for _, row := range l.invoice {
		if row.Code == "" {
			continue
		}
		out[row.Code] = out[row.Code].Add(row.Quantity)
	}
	return out
}

// UnitByCode returns the first non-empty raw unit text per code.
func (l *Ledger) UnitByCode() map[string]string {
	out := map[string]string{}
	for _, row := range l.invoice {
		if row.Code == "" || row.Unit == "" {
			continue
		}
		if _, ok := out[row.Code]; !ok {
			out[row.Code] = row.Unit
		}
	}
	return out
}

// GrossByCode distributes the packing list gross mass over the codes.
func (l *Ledger) GrossByCode() map[string]dec.Decimal {
	return l.massByCode(func(r PackingRow) dec.Decimal { return r.Gross })
}

// NetByCode distributes the packing list net mass over the codes.
func (l *Ledger) NetByCode() map[string]dec.Decimal {
	return l.massByCode(func(r PackingRow) dec.Decimal { return r.Net })
}

// SeatsByCode distributes the packing list place counts over the codes.
func (l *Ledger) SeatsByCode() map[string]dec.Decimal {
	return l.massByCode(func(r PackingRow) dec.Decimal { return r.Seats })
}

// massByCode distributes one packing column over the commodity codes.
// With a single code the whole column is summed onto it. With several,
// packing lines are matched to invoice lines by name containment and
// accumulated onto the matched line's code. Totals are rounded to three
// decimals.
func (l *Ledger) massByCode(column func(PackingRow) dec.Decimal) map[string]dec.Decimal {
	out := map[string]dec.Decimal{}
	if len(l.codes) == 0 || len(l.packing) == 0 {
		return out
	}

	if len(l.codes) == 1 {
		total := decimal.Zero
		for _, row := range l.packing {
			total = total.Add(column(row))
		}
		out[l.codes[0]] = total.Round(3)
		return out
	}

	for _, pack := range l.packing {
		code := l.matchCode(pack.Name)
		if code == "" {
			continue
		}
		out[code] = out[code].Add(column(pack))
	}
	for code, v := range out {
		out[code] = v.Round(3)
	}
	return out
}

// matchCode finds the commodity code of the invoice line whose name
// contains, or is contained in, the packing line's name.
func (l *Ledger) matchCode(packName string) string {
	pn := foldName(packName)
	if pn == "" {
		return ""
	}
	for _, inv := range l.invoice {
		if inv.Code == "" {
			continue
		}
		in := foldName(inv.Name)
		if in == "" {
			continue
		}
		if strings.Contains(in, pn) || strings.Contains(pn, in) {
			return inv.Code
		}
	}
	return ""
}

func foldName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func invoiceRows(ds *dataset.Dataset) []InvoiceRow {
	var rows []InvoiceRow
	for _, item := range ds.Result("invoice.Товары").Array() {
		raw, ok := item.Value().(map[string]any)
		if !ok {
			continue
		}
		name := rowGet(raw, nameColumns...)
		if isContinuation(name) {
			continue
		}
		row := InvoiceRow{
			Code:            Normalize(rowGet(raw, codeColumns...)),
			Name:            name,
			Quantity:        decimal.FromAny(rowGet(raw, quantityColumns...)),
			Price:           decimal.FromAny(rowGet(raw, priceColumns...)),
			Unit:            rowGet(raw, unitColumns...),
			Model:           rowGet(raw, "Модель"),
			Article:         rowGet(raw, "Артикул"),
			Characteristics: rowGet(raw, "Характеристики"),
			Marking:         rowGet(raw, "Маркировка"),
			Raw:             raw,
		}
		row.Total = decimal.FromAny(rowGet(raw, totalColumns...))
		if row.Total.IsZero() {
			row.Total = row.Price.Mul(row.Quantity)
		}
		rows = append(rows, row)
	}
	return rows
}

func packingRows(ds *dataset.Dataset) []PackingRow {
	items := ds.Result("packing.Товары").Array()
	if len(items) == 0 {
		// some extractors nest the goods table one level deeper
		items = ds.Result("packing.Перевозка.Товары").Array()
	}
	var rows []PackingRow
	for _, item := range items {
		raw, ok := item.Value().(map[string]any)
		if !ok {
			continue
		}
		name := rowGet(raw, nameColumns...)
		if isContinuation(name) {
			continue
		}
		row := PackingRow{
			Name:     name,
			Gross:    decimal.FromAny(rowGet(raw, grossColumns...)),
			Net:      decimal.FromAny(rowGet(raw, netColumns...)),
			Seats:    decimal.FromAny(rowGet(raw, seatsColumns...)),
			Quantity: decimal.FromAny(rowGet(raw, quantityColumns...)),
			Price:    decimal.FromAny(rowGet(raw, priceColumns...)),
			Raw:      raw,
		}
		row.Total = decimal.FromAny(rowGet(raw, totalColumns...))
		if row.Total.IsZero() {
			row.Total = row.Price.Mul(row.Quantity)
		}
		rows = append(rows, row)
	}
	return rows
}

// isContinuation recognizes rows that are table artifacts rather than
// goods lines: "продолжение таблицы", page-break markers and the like.
func isContinuation(name string) bool {
	low := strings.ToLower(name)
	return strings.Contains(low, "продолж") || strings.Contains(low, "границ")
}

// rowGet resolves a row column by candidate names, case and whitespace
// folded, preferring the value with the most letters and digits.
func rowGet(row map[string]any, candidates ...string) string {
	folded := make(map[string]string, len(row))
	for key := range row {
		folded[foldColumn(key)] = key
	}
	best := ""
	bestScore := -1
	for _, cand := range candidates {
		key, ok := folded[foldColumn(cand)]
		if !ok {
			continue
		}
		v := scalarString(row[key])
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

func foldColumn(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if s == "null" || s == "-" || s == "—" {
			return ""
		}
		return s
	case float64:
		return dec.NewFromFloat(x).String()
	case bool, nil:
		return ""
	}
	return ""
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
