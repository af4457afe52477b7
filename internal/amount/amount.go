// Package amount parses the numeric notation found in financial statements.
package amount

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind classifies a cell's text.
type Kind int

const (
	NotNumber Kind = iota
	Null           // an explicit "no value" marker such as an em dash
	Number
)

var (
	nullMarkers = map[string]struct{}{
		"-": {}, "--": {}, "—": {}, "–": {}, "−": {}, "n/a": {}, "na": {}, "nil": {}, "nm": {}, "n.m.": {},
	}
	currencySymbols = strings.NewReplacer("$", "", "€", "", "£", "", "¥", "", "₹", "", "₩", "", "₽", "", "CHF", "")
	isoPrefix       = regexp.MustCompile(`^[A-Z]{3}\s*`)
	isoSuffix       = regexp.MustCompile(`\s*[A-Z]{3}$`)
	digitsOnly      = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)

	dateLike = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4}-\d{1,2}-\d{1,2}$`),
		regexp.MustCompile(`^\d{1,2}[/.]\d{1,2}[/.]\d{2,4}$`),
		regexp.MustCompile(`(?i)^(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d`),
		regexp.MustCompile(`(?i)^\d{1,2}\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)`),
	}
)

// Parse interprets raw as a statement amount: thousands separators and currency
// markers are ignored, parentheses or a leading/trailing minus mean negative.
func Parse(raw string) (decimal.Decimal, Kind) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, NotNumber
	}
	if _, ok := nullMarkers[strings.ToLower(s)]; ok {
		return decimal.Zero, Null
	}
	if IsDateLike(s) || strings.HasSuffix(s, "%") {
		return decimal.Zero, NotNumber
	}

	neg := false
	s = isoPrefix.ReplaceAllString(s, "")
	s = isoSuffix.ReplaceAllString(s, "")
	s = currencySymbols.Replace(s)
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
		s = currencySymbols.Replace(s)
	}
	for _, minus := range []string{"-", "−", "–"} {
		if strings.HasPrefix(s, minus) {
			neg = !neg
			s = strings.TrimSpace(strings.TrimPrefix(s, minus))
			break
		}
		if strings.HasSuffix(s, minus) {
			neg = !neg
			s = strings.TrimSpace(strings.TrimSuffix(s, minus))
			break
		}
	}
	s = strings.TrimPrefix(s, "+")

	s = normalizeSeparators(s)
	if !digitsOnly.MatchString(s) {
		return decimal.Zero, NotNumber
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, NotNumber
	}
	if neg {
		d = d.Neg()
	}
	return d, Number
}

// normalizeSeparators removes grouping characters and converts a decimal comma.
func normalizeSeparators(s string) string {
	s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "'", "", "\u2019", "").Replace(s)
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		// 1.234.567,89
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0 && lastDot < 0 && strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2:
		// 1234,5
		s = strings.Replace(s, ",", ".", 1)
	default:
		s = strings.ReplaceAll(s, ",", "")
	}
	return s
}

// IsDateLike reports tokens that are dates rather than amounts.
func IsDateLike(s string) bool {
	s = strings.TrimSpace(s)
	for _, re := range dateLike {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// LooksNumeric reports whether s is an amount or an explicit null marker.
func LooksNumeric(s string) bool {
	_, k := Parse(s)
	return k != NotNumber
}

// IsYear reports a bare four-digit year token such as a column header.
func IsYear(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s >= "1900" && s <= "2100"
}
