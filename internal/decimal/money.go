package decimal

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

var nonNumeric = regexp.MustCompile(`[^0-9\-,.]`)

// FromAny parses a scalar of unknown provenance (extracted text, JSON
// number, user override) into a decimal. Spaces and non-breaking spaces
// are stripped, a decimal comma becomes a point. Unparsable input is zero.
func FromAny(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return Zero
	case decimal.Decimal:
		return x
	case float64:
		return decimal.NewFromFloat(x)
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	}
	s := strings.TrimSpace(toString(v))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		// salvage digits from strings like "1 234,50 USD"
		cleaned := nonNumeric.ReplaceAllString(s, "")
		d, err = decimal.NewFromString(cleaned)
		if err != nil {
			return Zero
		}
	}
	return d
}

// FromString parses decimal from string
func FromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// MustFromString parses decimal from string, panics on error
func MustFromString(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// MulMoney multiplies amount by rate and rounds half-up to two decimal
// places, the boundary applied at every currency conversion.
func MulMoney(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Round(2)
}

// DivMoney divides a by b, rounds half-up to two decimal places.
// Division by zero yields zero.
func DivMoney(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return Zero
	}
	return a.Div(b).Round(2)
}

// MoneyString renders a monetary value with exactly two decimals,
// the wire form of every RUB amount in the field map.
func MoneyString(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// WeightString renders a mass rounded to three decimals. Whole values
// keep one decimal place ("1214.0"), matching the historical wire form.
func WeightString(d decimal.Decimal) string {
	d = d.Round(3)
	if d.IsInteger() {
		return d.StringFixed(1)
	}
	return d.String()
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// IsPositive returns true if decimal is greater than zero
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(Zero)
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}
