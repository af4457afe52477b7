package classify

import (
	"strings"

	"github.com/joseph-ayodele/statements-tracker/constants"
)

// containsAnchors are title phrases that mark a statement wherever they occur
// in a heading line.
var containsAnchors = map[constants.StatementType][]string{
	constants.BalanceSheet: {
		"balance sheet",
		"statement of financial position",
		"statements of financial position",
		"statement of financial condition",
		"statements of financial condition",
	},
	constants.IncomeStatement: {
		"income statement",
		"statement of operations",
		"statements of operations",
		"statement of income",
		"statements of income",
		"statement of earnings",
		"statements of earnings",
		"statement of comprehensive income",
		"statements of comprehensive income",
		"profit and loss",
		"statement of profit or loss",
	},
	constants.CashFlow: {
		"statement of cash flows",
		"statements of cash flows",
		"statement of cash flow",
		"cash flow statement",
		"cash flows statement",
	},
}

// exactAnchors only count when they make up the whole heading, since they
// also appear as section captions inside statements.
var exactAnchors = map[constants.StatementType][]string{
	constants.IncomeStatement: {"p and l", "operations"},
	constants.CashFlow:        {"cash flow", "cash flows"},
}

// anchorOrder fixes iteration order so ties resolve deterministically.
var anchorOrder = []constants.StatementType{constants.BalanceSheet, constants.IncomeStatement, constants.CashFlow}

// matchAnchor returns the statement type a normalized heading names.
func matchAnchor(norm string) (constants.StatementType, bool) {
	for _, st := range anchorOrder {
		for _, a := range exactAnchors[st] {
			if norm == a || strings.TrimPrefix(norm, "consolidated ") == a {
				return st, true
			}
		}
		for _, a := range containsAnchors[st] {
			if strings.Contains(norm, a) {
				return st, true
			}
		}
	}
	return constants.Unknown, false
}

// cueGroups lists, per type, the label groups whose joint presence identifies
// a statement without a title. Each group matches if any phrase occurs.
var cueGroups = map[constants.StatementType][][]string{
	constants.BalanceSheet: {
		{"assets"},
		{"liabilities"},
		{"equity", "stockholders", "shareholders", "net worth"},
	},
	constants.IncomeStatement: {
		{"revenue", "sales", "turnover"},
		{"net income", "net profit", "net earnings", "net loss", "profit for the"},
	},
	constants.CashFlow: {
		{"operating activities"},
		{"investing activities"},
		{"financing activities"},
	},
}

// cueScore is the fraction of st's cue groups present among the labels.
func cueScore(st constants.StatementType, labels []string) float64 {
	groups := cueGroups[st]
	if len(groups) == 0 {
		return 0
	}
	hit := 0
	for _, g := range groups {
		if anyContains(labels, g) {
			hit++
		}
	}
	return float64(hit) / float64(len(groups))
}

func anyContains(labels, phrases []string) bool {
	for _, l := range labels {
		for _, p := range phrases {
			if strings.Contains(l, p) {
				return true
			}
		}
	}
	return false
}
