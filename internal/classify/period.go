package classify

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

const monthAlt = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sept?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

var (
	reMonthDayYear = regexp.MustCompile(`(?i)\b` + monthAlt + `\.?\s+(\d{1,2}),?\s+(\d{4})\b`)
	reDayMonthYear = regexp.MustCompile(`(?i)\b(\d{1,2})\s+` + monthAlt + `\.?,?\s+(\d{4})\b`)
	reISODate      = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	reSlashDate    = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	reFiscalYear   = regexp.MustCompile(`(?i)\b(?:fy\s*'?|fiscal\s+(?:year\s+)?)(\d{4})\b`)
	reBareYear     = regexp.MustCompile(`\b(19|20)\d{2}\b`)

	// Duration phrases that may precede the first date.
	reYearEnded   = regexp.MustCompile(`(?i)(?:twelve\s+months|12\s+months|(?:fiscal\s+)?years?)\s+ended\s*$`)
	reMonthsEnded = regexp.MustCompile(`(?i)(three|six|nine|3|6|9)\s+months\s+ended\s*$`)
	reQuarter     = regexp.MustCompile(`(?i)quarter\s+ended\s*$`)
	reAsOf        = regexp.MustCompile(`(?i)\bas\s+(?:of|at)\s*$`)
)

var monthNumbers = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

func monthOf(name string) (time.Month, bool) {
	name = strings.ToLower(name)
	if len(name) < 3 {
		return 0, false
	}
	m, ok := monthNumbers[name[:3]]
	return m, ok
}

// validDate builds a date and rejects overflow such as Feb 30.
func validDate(y int, m time.Month, d int) (time.Time, bool) {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || t.Month() != m || t.Day() != d || y < 1900 || y > 2100 {
		return time.Time{}, false
	}
	return t, true
}

type dateHit struct {
	at   int // byte offset in the searched text
	date time.Time
}

// firstDate returns the earliest date in text.
func firstDate(text string) (dateHit, bool) {
	var best dateHit
	found := false
	consider := func(at int, t time.Time) {
		if !found || at < best.at {
			best, found = dateHit{at: at, date: t}, true
		}
	}
	atoi := func(s string) int { n, _ := strconv.Atoi(s); return n }

	for _, m := range reMonthDayYear.FindAllStringSubmatchIndex(text, -1) {
		mon, ok := monthOf(text[m[2]:m[3]])
		if !ok {
			continue
		}
		if t, ok := validDate(atoi(text[m[6]:m[7]]), mon, atoi(text[m[4]:m[5]])); ok {
			consider(m[0], t)
		}
	}
	for _, m := range reDayMonthYear.FindAllStringSubmatchIndex(text, -1) {
		mon, ok := monthOf(text[m[4]:m[5]])
		if !ok {
			continue
		}
		if t, ok := validDate(atoi(text[m[6]:m[7]]), mon, atoi(text[m[2]:m[3]])); ok {
			consider(m[0], t)
		}
	}
	for _, m := range reISODate.FindAllStringSubmatchIndex(text, -1) {
		if t, ok := validDate(atoi(text[m[2]:m[3]]), time.Month(atoi(text[m[4]:m[5]])), atoi(text[m[6]:m[7]])); ok {
			consider(m[0], t)
		}
	}
	for _, m := range reSlashDate.FindAllStringSubmatchIndex(text, -1) {
		a, b, y := atoi(text[m[2]:m[3]]), atoi(text[m[4]:m[5]]), atoi(text[m[6]:m[7]])
		// Month first unless the first field cannot be a month.
		mon, day := a, b
		if a > 12 {
			mon, day = b, a
		}
		if t, ok := validDate(y, time.Month(mon), day); ok {
			consider(m[0], t)
		}
	}
	return best, found
}

// parsePeriod reads the reporting period from heading text. Balance sheets
// take a single as-of date; flow statements derive the start from the
// duration phrase before the date.
func parsePeriod(st constants.StatementType, text string) (entity.PeriodSpec, []entity.Finding) {
	text = strings.Join(strings.Fields(text), " ")
	hit, ok := firstDate(text)
	if !ok {
		if m := reFiscalYear.FindStringSubmatch(text); m != nil {
			y, _ := strconv.Atoi(m[1])
			if y >= 1900 && y <= 2100 {
				if st == constants.BalanceSheet {
					return entity.PeriodSpec{Start: entity.Date(y, time.December, 31), End: entity.Date(y, time.December, 31), Label: "FY" + m[1]},
						[]entity.Finding{periodFinding("period.assumed_year_end", constants.SeverityInfo, "fiscal year "+m[1]+" assumed to end December 31")}
				}
				return entity.PeriodSpec{Start: entity.Date(y, time.January, 1), End: entity.Date(y, time.December, 31), Label: "FY" + m[1]},
					[]entity.Finding{periodFinding("period.assumed_year_end", constants.SeverityInfo, "fiscal year "+m[1]+" assumed to be the calendar year")}
			}
		}
		if y := reBareYear.FindString(text); y != "" {
			return entity.PeriodSpec{Label: y},
				[]entity.Finding{periodFinding("period.label_only", constants.SeverityWarning, "only the year "+y+" was found")}
		}
		return entity.PeriodSpec{}, []entity.Finding{periodFinding("period.missing", constants.SeverityWarning, "no reporting period found near the statement title")}
	}

	end := hit.date
	label := periodLabel(text, hit.at)
	before := text[:hit.at]

	if st == constants.BalanceSheet {
		return entity.PeriodSpec{Start: &end, End: &end, Label: label}, nil
	}

	var start time.Time
	switch {
	case reYearEnded.MatchString(before):
		start = end.AddDate(0, 0, 1).AddDate(-1, 0, 0)
	case reMonthsEnded.MatchString(before):
		n := map[string]int{"three": 3, "3": 3, "six": 6, "6": 6, "nine": 9, "9": 9}[strings.ToLower(reMonthsEnded.FindStringSubmatch(before)[1])]
		start = end.AddDate(0, 0, 1).AddDate(0, -n, 0)
	case reQuarter.MatchString(before):
		start = end.AddDate(0, 0, 1).AddDate(0, -3, 0)
	case reAsOf.MatchString(before):
		return entity.PeriodSpec{Start: &end, End: &end, Label: label}, nil
	default:
		return entity.PeriodSpec{End: &end, Label: label},
			[]entity.Finding{periodFinding("period.partial", constants.SeverityWarning, "period start could not be determined")}
	}
	return entity.PeriodSpec{Start: &start, End: &end, Label: label}, nil
}

// periodLabel returns the sentence-ish span around the date for display.
func periodLabel(text string, at int) string {
	start := -1
	for _, kw := range []string{"for the ", "For the ", "FOR THE ", "as of ", "As of ", "AS OF ", "as at ", "As at "} {
		if i := strings.LastIndex(text[:at], kw); i > start && at-i < 48 {
			start = i
		}
	}
	if start < 0 {
		start = at
	}
	end := len(text)
	for _, m := range []*regexp.Regexp{reMonthDayYear, reDayMonthYear, reISODate, reSlashDate} {
		if loc := m.FindStringIndex(text[at:]); loc != nil && loc[0] == 0 {
			end = at + loc[1]
			break
		}
	}
	return strings.TrimSpace(text[start:end])
}

func periodFinding(rule string, sev constants.Severity, msg string) entity.Finding {
	return entity.Finding{RuleID: rule, Severity: sev, Message: msg}
}
