package entity

import "github.com/joseph-ayodele/statements-tracker/constants"

// Finding is a validation note attached to a statement record.
type Finding struct {
	RuleID   string             `json:"rule_id"`
	Severity constants.Severity `json:"severity"`
	Keys     []string           `json:"keys,omitempty"`
	Message  string             `json:"message"`
}

// CountSeverity counts findings at exactly sev.
func CountSeverity(fs []Finding, sev constants.Severity) int {
	n := 0
	for _, f := range fs {
		if f.Severity == sev {
			n++
		}
	}
	return n
}
