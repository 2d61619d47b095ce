package fields

import (
	"regexp"
	"strings"

	dec "github.com/shopspring/decimal"

	"github.com/taridex/declaration-processor/internal/classify"
	"github.com/taridex/declaration-processor/internal/decimal"
)

var (
	isoDate = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	ruDate  = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`)
)

// normalizeRateDate brings a date to DD.MM.YYYY for rate lookups.
func normalizeRateDate(d string) string {
	s := strings.TrimSpace(d)
	if m := isoDate.FindStringSubmatch(s); m != nil {
		return m[3] + "." + m[2] + "." + m[1]
	}
	if ruDate.MatchString(s) {
		return s
	}
	return s
}

// invoiceCurrency returns the first currency mentioned anywhere in the
// dataset, as written.
func invoiceCurrency(c *Context) string {
	return strings.TrimSpace(c.DS.FindKey("Валюта"))
}

// rateCurrency maps free currency text to the alpha code the rate feed
// understands, keeping unknown text uppercased so the lookup fails
// loudly instead of guessing.
func rateCurrency(s string) string {
	if code, ok := classify.CurrencyCode(s); ok {
		return code
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

// lookupRate fetches the RUB rate, degrading to zero on any failure.
func lookupRate(c *Context, date, currency string) dec.Decimal {
	if c.Rates == nil || date == "" || currency == "" {
		return decimal.Zero
	}
	rate, err := c.Rates.Rate(c.Ctx, normalizeRateDate(date), rateCurrency(currency))
	if err != nil {
		return decimal.Zero
	}
	return rate
}

// Total cost of the consignment in RUB: invoice goods plus freight and
// insurance from the payment document, each converted at the
// declaration date rate.
func resolveG12(c *Context) map[string]any {
	sumInv := decimal.Zero
	for _, row := range c.Ledger.InvoiceRows() {
		sumInv = sumInv.Add(row.Total)
	}
	if sumInv.IsZero() {
		return map[string]any{
			"g12_currency":  c.str("g12_currency", "RUB"),
			"g12_logistics": c.str("g12_logistics", ""),
			"g12_insurance": c.str("g12_insurance", ""),
			"g12_1":         c.str("g12_1", ""),
		}
	}

	sumShipping := decimal.Zero
	sumInsurance := decimal.Zero
	addService := func(item map[string]any, insuranceOnly bool) {
		service, _ := item["Услуга"].(map[string]any)
		route, _ := item["Маршрут"].(map[string]any)
		descr := strings.ToLower(toString(service["Описание"]))
		from := strings.ToLower(toString(route["Откуда"]))
		if strings.Contains(descr, "продолж") || strings.Contains(from, "границ") {
			return
		}
		amount := decimal.FromAny(service["Сумма"])
		switch {
		case strings.Contains(descr, "страхов"):
			sumInsurance = sumInsurance.Add(amount)
		case !insuranceOnly:
			sumShipping = sumShipping.Add(amount)
		}
	}
	for _, item := range c.DS.Result("payment.Перевозка").Array() {
		if m, ok := item.Value().(map[string]any); ok {
			addService(m, false)
		}
	}
	for _, item := range c.DS.Result("payment.Страхование").Array() {
		if m, ok := item.Value().(map[string]any); ok {
			addService(m, true)
		}
	}

	date := c.DeclarationDate()
	invCurrency := invoiceCurrency(c)
	if invCurrency == "" {
		invCurrency = "RUB"
	}
	payCurrency := c.DS.Get("payment.Общая информация.Валюта документа")

	buyerCountry := classify.NormalizeCountry(c.DS.Get("payment.Покупатель (Заказчик).Страна"))
	buyerCode := ""
	if buyerCountry != "" {
		buyerCode = classify.CountryCode(buyerCountry)
	}
	buyerIsDomestic := buyerCode == "RU"
	if buyerIsDomestic {
		payCurrency = "RUB"
	}

	rateInv := dec.NewFromInt(1)
	if date != "" && rateCurrency(invCurrency) != "RUB" {
		rateInv = lookupRate(c, date, invCurrency)
	}
	ratePay := dec.NewFromInt(1)
	if !buyerIsDomestic && date != "" && rateCurrency(payCurrency) != "RUB" {
		ratePay = lookupRate(c, date, payCurrency)
	}

	sumInvRub := decimal.MulMoney(sumInv, rateInv)
	sumShippingRub := decimal.MulMoney(sumShipping, ratePay)
	sumInsuranceRub := decimal.MulMoney(sumInsurance, ratePay)
	totalRub := sumInvRub.Add(sumShippingRub).Add(sumInsuranceRub)

	moneyOrEmpty := func(d dec.Decimal) string {
		if d.IsZero() {
			return ""
		}
		return decimal.MoneyString(d)
	}

	return map[string]any{
		"g12_cur_payment":        payCurrency,
		"g12_buyer_country":      buyerCountry,
		"g12_buyer_country_code": buyerCode,
		"g12_currency":           c.str("g12_currency", "RUB"),
		"g12_logistics":          c.str("g12_logistics", moneyOrEmpty(sumShippingRub)),
		"g12_insurance":          c.str("g12_insurance", moneyOrEmpty(sumInsuranceRub)),
		"g12_1":                  c.str("g12_1", moneyOrEmpty(totalRub)),
	}
}

// Delivery terms, split into code and place.
func resolveG20(c *Context) map[string]any {
	code, place := classify.Incoterms(c.DS.GetAny(
		"invoice.Общая информация.Условия поставки (Incoterms)",
		"contract.Поставка.Условия поставки (Incoterms)"))
	return map[string]any{
		"g20_1": c.str("g20_1", code),
		"g20_2": c.str("g20_2", place),
	}
}

// Invoice currency and total, in the document's own currency.
func resolveG22(c *Context) map[string]any {
	total := c.Ledger.TotalInvoiceSum()
	sumStr := ""
	if !total.IsZero() {
		sumStr = total.String()
	}
	return map[string]any{
		"g22_1": c.str("g22_1", invoiceCurrency(c)),
		"g22_2": c.str("g22_2", sumStr),
	}
}

// Exchange rate on the declaration date for the invoice currency.
// Empty overrides of the rate and its inputs fall back to computed
// values, so clearing the manual rate restores the feed's one.
func resolveG23(c *Context) map[string]any {
	currency := c.strSoft("g22_1", "")
	if currency == "" {
		currency = invoiceCurrency(c)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))

	defRate := ""
	date := c.DeclarationDate()
	if date != "" && currency != "" {
		if rate := lookupRate(c, date, currency); !rate.IsZero() {
			defRate = rate.String()
		}
	}
	return map[string]any{
		"g23_1": c.strSoft("g23_1", defRate),
		"g23_2": c.str("g23_2", currency),
	}
}

// Transaction nature code. The feature code flags small contracts,
// below three million RUB at the declaration date rate.
func resolveG24(c *Context) map[string]any {
	feature := "00"
	contractTotal := decimal.FromAny(c.DS.Get("contract.Оплата контракта.Общая сумма"))
	if contractTotal.IsPositive() {
		rate := lookupRate(c, c.DeclarationDate(), invoiceCurrency(c))
		if rate.IsZero() {
			rate = dec.NewFromInt(1)
		}
		if decimal.MulMoney(contractTotal, rate).LessThan(dec.NewFromInt(3000000)) {
			feature = "06"
		}
	}
	return map[string]any{
		"g24_1": c.str("g24_1", "010"),
		"g24_2": c.str("g24_2", feature),
	}
}
