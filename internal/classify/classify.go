// Package classify resolves free-text country, currency and unit names
// against embedded directories, and splits Incoterms strings. Misses
// never invent codes: callers get the raw text back or an empty code.
package classify

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Origin sentinels used by the goods origin summary field.
const (
	UnknownCountry = "НЕИЗВЕСТНА"
	EuropeanUnion  = "ЕВРОСОЮЗ"
	MixedOrigins   = "РАЗНЫЕ"
)

//go:embed data/countries.yaml
var countriesYAML []byte

//go:embed data/currencies.yaml
var currenciesYAML []byte

//go:embed data/units.yaml
var unitsYAML []byte

type countryEntry struct {
	Name     string   `yaml:"name"`
	Alpha2   string   `yaml:"alpha2"`
	Variants []string `yaml:"variants"`
}

type currencyEntry struct {
	Code     string   `yaml:"code"`
	Numeric  string   `yaml:"numeric"`
	Variants []string `yaml:"variants"`
}

type unitEntry struct {
	Code     string   `yaml:"code"`
	Short    string   `yaml:"short"`
	Variants []string `yaml:"variants"`
}

var (
	countryByVariant  = map[string]countryEntry{}
	currencyByVariant = map[string]currencyEntry{}
	currencyByCode    = map[string]currencyEntry{}
	unitByVariant     = map[string]unitEntry{}
)

func init() {
	var countries []countryEntry
	mustUnmarshal(countriesYAML, &countries, "countries")
	for _, c := range countries {
		countryByVariant[foldKey(c.Name)] = c
		for _, v := range c.Variants {
			countryByVariant[foldKey(v)] = c
		}
	}

	var currencies []currencyEntry
	mustUnmarshal(currenciesYAML, &currencies, "currencies")
	for _, c := range currencies {
		currencyByCode[c.Code] = c
		currencyByVariant[foldLatin(c.Code)] = c
		for _, v := range c.Variants {
			currencyByVariant[foldLatin(v)] = c
		}
	}

	var units []unitEntry
	mustUnmarshal(unitsYAML, &units, "units")
	for _, u := range units {
		unitByVariant[foldKey(u.Short)] = u
		for _, v := range u.Variants {
			unitByVariant[foldKey(v)] = u
		}
	}
}

func mustUnmarshal(raw []byte, out any, what string) {
	if err := yaml.Unmarshal(raw, out); err != nil {
		panic(fmt.Sprintf("classify: embedded %s table: %v", what, err))
	}
}

// foldKey uppercases and collapses whitespace.
func foldKey(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// cyrillicLookalikes maps Cyrillic letters that render identically to
// Latin ones. Currency codes are routinely typed with them.
var cyrillicLookalikes = strings.NewReplacer(
	"А", "A", "В", "B", "Е", "E", "К", "K", "М", "M", "Н", "H",
	"О", "O", "Р", "P", "С", "C", "Т", "T", "У", "Y", "Х", "X",
)

func foldLatin(s string) string {
	return cyrillicLookalikes.Replace(foldKey(s))
}

// NormalizeCountry maps free text to the canonical short country name.
// Unrecognized input comes back uppercased and trimmed.
func NormalizeCountry(s string) string {
	key := foldKey(strings.Trim(s, " .,;"))
	if key == "" {
		return ""
	}
	if c, ok := countryByVariant[key]; ok {
		return c.Name
	}
	return key
}

// CountryCode returns the ISO alpha-2 code for a country spelled in
// free text, or "" when the directory does not know it.
func CountryCode(s string) string {
	key := foldKey(strings.Trim(s, " .,;"))
	if c, ok := countryByVariant[key]; ok {
		return c.Alpha2
	}
	return ""
}

// SplitCountries breaks a multi-country cell ("КИТАЙ, ВЬЕТНАМ",
// "CN/VN") into individual entries.
func SplitCountries(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '/' || r == ';'
	})
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var euLabels = map[string]bool{
	"ЕВРОСОЮЗ": true, "ЕС": true, "EU": true,
	"ЕВРОПЕЙСКИЙ СОЮЗ": true, "EUROPEAN UNION": true,
}

// IsEULabel reports whether the text names the European Union rather
// than a single country.
func IsEULabel(s string) bool {
	return euLabels[foldKey(s)]
}

var unknownLabels = map[string]bool{
	"НЕИЗВЕСТНА": true, "НЕИЗВЕСТНО": true, "НЕИЗВЕСТЕН": true,
	"UNKNOWN": true, "Н/Д": true, "N/A": true,
}

// IsUnknown reports whether the text is empty or an explicit
// unknown-marker.
func IsUnknown(s string) bool {
	key := foldKey(s)
	return key == "" || unknownLabels[key]
}

// CurrencyCode maps free text (a name, a symbol, a code typed with
// Cyrillic lookalikes) to the ISO alpha currency code.
func CurrencyCode(s string) (string, bool) {
	c, ok := currencyByVariant[foldLatin(strings.Trim(s, " .,;"))]
	if !ok {
		return "", false
	}
	return c.Code, true
}

// CurrencyNumeric returns the ISO numeric code for an alpha code.
func CurrencyNumeric(code string) string {
	return currencyByCode[code].Numeric
}

// Unit resolves a measurement unit to its national classifier code and
// short name. Empty or unrecognized input defaults to pieces.
func Unit(s string) (code, short string) {
	if u, ok := unitByVariant[foldKey(strings.Trim(s, " .,;"))]; ok {
		return u.Code, u.Short
	}
	return "796", "ШТ"
}

// Incoterms codes in a fixed order so the longest-standing terms win a
// scan over free text.
var incotermsCodes = []string{
	"EXW", "FCA", "FAS", "FOB", "CFR", "CIF", "CPT", "CIP",
	"DAP", "DPU", "DDP", "DAT", "DAF", "DES", "DEQ", "DDU",
}

// Incoterms extracts the delivery term code from free text like
// "FOB SHANGHAI" and returns the code and the remaining place name.
// Only the code itself is lookalike-folded, so Cyrillic place names
// survive intact.
func Incoterms(s string) (code, place string) {
	folded := foldKey(s)
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return r == ' ' || r == ',' || r == '-' || r == '(' || r == ')' || r == '.'
	})
	for _, term := range incotermsCodes {
		for _, w := range words {
			if cyrillicLookalikes.Replace(w) != term {
				continue
			}
			rest := strings.Replace(folded, w, "", 1)
			rest = strings.Trim(strings.Join(strings.Fields(rest), " "), " ,.-")
			return term, rest
		}
	}
	return "", strings.TrimSpace(s)
}
