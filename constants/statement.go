package constants

import "strings"

// StatementType identifies which financial statement a region of a document holds.
type StatementType string

const (
	BalanceSheet    StatementType = "BALANCE_SHEET"
	IncomeStatement StatementType = "INCOME_STATEMENT"
	CashFlow        StatementType = "CASH_FLOW"
	Unknown         StatementType = "UNKNOWN"
)

var allStatementTypes = []StatementType{
	BalanceSheet,
	IncomeStatement,
	CashFlow,
}

// StatementTypes returns the concrete statement types (Unknown excluded).
func StatementTypes() []StatementType {
	out := make([]StatementType, len(allStatementTypes))
	copy(out, allStatementTypes)
	return out
}

func AsStringSlice() []string {
	result := make([]string, len(allStatementTypes))
	for i, st := range allStatementTypes {
		result[i] = string(st)
	}
	return result
}

// ParseStatementType accepts the canonical value or a common synonym.
func ParseStatementType(input string) (StatementType, bool) {
	if input == "" {
		return Unknown, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer("_", " ", "-", " ").Replace(normalized)

	synonyms := map[string]StatementType{
		"balance sheet":       BalanceSheet,
		"bs":                  BalanceSheet,
		"financial position":  BalanceSheet,
		"income statement":    IncomeStatement,
		"is":                  IncomeStatement,
		"p&l":                 IncomeStatement,
		"profit and loss":     IncomeStatement,
		"operations":          IncomeStatement,
		"cash flow":           CashFlow,
		"cash flows":          CashFlow,
		"cf":                  CashFlow,
		"cash flow statement": CashFlow,
	}
	if st, ok := synonyms[normalized]; ok {
		return st, true
	}
	return Unknown, false
}

// Severity of a validation finding.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

// ValidationStatus is the data outcome of a statement, independent of pipeline success.
type ValidationStatus string

const (
	StatusAccepted ValidationStatus = "ACCEPTED"
	StatusRejected ValidationStatus = "REJECTED"
)
