package mapper

import (
	"regexp"
	"strings"

	"github.com/Rhymond/go-money"
)

var (
	reBillions  = regexp.MustCompile(`(?i)\bin\s+billions\b|\bbillions\s+of\b|\(billions\)|\$\s?bn\b`)
	reMillions  = regexp.MustCompile(`(?i)\bin\s+millions\b|\bmillions\s+of\b|\(millions\)|\$\s?m\b|\bin\s+mn\b|\(000,000s?\)`)
	reThousands = regexp.MustCompile(`(?i)\bin\s+thousands\b|\bthousands\s+of\b|\(thousands\)|\(000s?\)|\(000's\)|\$\s?000s?\b|'000s?\b|\b000's\b|\bin\s+000s?\b`)

	reISOCode = regexp.MustCompile(`\b([A-Z]{3})\b`)
)

// detectScale reads the unit multiplier from heading text; default 1.
func detectScale(header string) int64 {
	switch {
	case reBillions.MatchString(header):
		return 1_000_000_000
	case reMillions.MatchString(header):
		return 1_000_000
	case reThousands.MatchString(header):
		return 1_000
	}
	return 1
}

// codeStoplist holds ISO codes that collide with upper-case English words.
var codeStoplist = map[string]struct{}{"ALL": {}, "TOP": {}, "CUP": {}, "MOP": {}}

var symbolCodes = []struct {
	symbol string
	code   string
}{
	{"€", money.EUR},
	{"£", money.GBP},
	{"¥", money.JPY},
	{"₹", money.INR},
	{"$", money.USD},
}

// detectCurrency prefers an ISO code named in the heading, then a currency
// symbol in the heading or amounts. A symbol shared with the default
// currency's grapheme resolves to the default.
func detectCurrency(header string, amounts []string, fallback string) string {
	for _, m := range reISOCode.FindAllStringSubmatch(header, -1) {
		if _, skip := codeStoplist[m[1]]; skip {
			continue
		}
		if money.GetCurrency(m[1]) != nil {
			return m[1]
		}
	}
	texts := append([]string{header}, amounts...)
	def := money.GetCurrency(fallback)
	for _, sc := range symbolCodes {
		for _, t := range texts {
			if !strings.Contains(t, sc.symbol) {
				continue
			}
			if def != nil && strings.HasSuffix(def.Grapheme, sc.symbol) {
				return fallback
			}
			return sc.code
		}
	}
	return fallback
}
