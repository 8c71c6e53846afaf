package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// NormalizeSpace collapses whitespace runs into single spaces and trims
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var (
	numberRunRe    = regexp.MustCompile(`\d[\d.,]*`)
	plainDecimalRe = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
)

// ParsePrice reads the first number in s, dropping currency symbols,
// thousands separators and other noise. ok is false when nothing positive
// could be parsed, including signed amounts such as "-5.00".
//
// When both '.' and ',' appear, the later one is the decimal separator. A
// lone '.' or ',' followed by exactly three digits groups thousands, so
// "€1.299" and "1,299 €" both read 1299; otherwise it is the decimal mark.
// Repeated separators of one kind group thousands.
func ParsePrice(s string) (decimal.Decimal, bool) {
	loc := numberRunRe.FindStringIndex(s)
	if loc == nil || signed(s[:loc[0]]) {
		return decimal.Zero, false
	}
	run := strings.TrimRight(s[loc[0]:loc[1]], ".,")
	if run == "" {
		return decimal.Zero, false
	}

	dot := strings.LastIndex(run, ".")
	comma := strings.LastIndex(run, ",")

	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			run = strings.ReplaceAll(run, ".", "")
			run = strings.Replace(run, ",", ".", 1)
		} else {
			run = strings.ReplaceAll(run, ",", "")
		}
	case comma >= 0:
		run = singleSeparator(run, ",", comma)
	case dot >= 0:
		run = singleSeparator(run, ".", dot)
	}

	d, err := decimal.NewFromString(run)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// ParseDeclaredPrice reads a machine-written amount such as a JSON-LD price
// or a data attribute. Plain decimals like "1.299" keep '.' as the decimal
// mark; anything else goes through ParsePrice.
func ParseDeclaredPrice(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if !plainDecimalRe.MatchString(s) {
		return ParsePrice(s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// singleSeparator resolves a run that uses only sep, last seen at index at
func singleSeparator(run, sep string, at int) string {
	if strings.Count(run, sep) == 1 && len(run)-at-1 != 3 {
		return strings.Replace(run, sep, ".", 1)
	}
	return strings.ReplaceAll(run, sep, "")
}

// signed reports whether the text before an amount ends in a minus sign,
// allowing a currency symbol in between as in "-$5".
func signed(prefix string) bool {
	prefix = strings.TrimRight(prefix, "$£€¥₹₩₽")
	return strings.HasSuffix(prefix, "-") || strings.HasSuffix(prefix, "−")
}

// symbolCurrencies maps price symbols to currency codes. Longer symbols come
// first so "CA$" is not read as "A$" or "$".
var symbolCurrencies = []struct {
	symbol string
	code   string
}{
	{"US$", "USD"},
	{"CA$", "CAD"},
	{"AU$", "AUD"},
	{"NZ$", "NZD"},
	{"HK$", "HKD"},
	{"C$", "CAD"},
	{"A$", "AUD"},
	{"R$", "BRL"},
	{"$", "USD"},
	{"£", "GBP"},
	{"€", "EUR"},
	{"¥", "JPY"},
	{"₹", "INR"},
	{"₩", "KRW"},
	{"₽", "RUB"},
}

// CurrencyFromSymbol guesses an ISO code from the symbol or code found in s
func CurrencyFromSymbol(s string) string {
	upper := strings.ToUpper(s)
	for _, code := range []string{"USD", "EUR", "GBP", "CAD", "AUD", "JPY", "INR", "CHF", "SEK", "NOK", "DKK", "MXN"} {
		if strings.Contains(upper, code) {
			return code
		}
	}
	for _, sc := range symbolCurrencies {
		if strings.Contains(s, sc.symbol) {
			return sc.code
		}
	}
	return ""
}

// NormalizeCurrency upper-cases a declared currency code and maps bare symbols
func NormalizeCurrency(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) == 3 && isLetters(s) {
		return strings.ToUpper(s)
	}
	return CurrencyFromSymbol(s)
}

func isLetters(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
