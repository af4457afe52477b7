package validate

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

func item(key, value string) entity.LineItem {
	li := entity.LineItem{RawLabel: key, UnitMultiplier: 1}
	if key != "" {
		li.TaxonomyKey = entity.StrPtr(key)
	}
	if value != "" {
		li.Value = decimal.NewNullDecimal(decimal.RequireFromString(value))
	}
	return li
}

func rules(fs []entity.Finding, sev constants.Severity) []string {
	var out []string
	for _, f := range fs {
		if f.Severity == sev {
			out = append(out, f.RuleID)
		}
	}
	return out
}

func TestValidateBalanceSheet(t *testing.T) {
	eng := New(nil, Config{})
	cases := []struct {
		name       string
		equity     string
		scale      int64
		wantErrors []string
		wantInfo   []string
		status     constants.ValidationStatus
		confidence float64
	}{
		{"balanced", "400000", 1, nil, nil, constants.StatusAccepted, 1.0},
		{"equity short", "350000", 1, []string{"identity.balance_sheet"}, nil, constants.StatusRejected, 0.7},
		{"rounding", "399997", 1, nil, []string{"identity.balance_sheet"}, constants.StatusAccepted, 1.0},
		{"missing equity", "", 1, []string{"required.missing"}, nil, constants.StatusRejected, 0.7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items := []entity.LineItem{
				item("cash_and_equivalents", "250000"),
				item("total_assets", "1000000"),
				item("total_liabilities", "600000"),
				item("total_equity", tc.equity),
			}
			fs := eng.Validate(items, constants.BalanceSheet, tc.scale)
			if got := rules(fs, constants.SeverityError); !equal(got, tc.wantErrors) {
				t.Errorf("errors = %v, want %v (%+v)", got, tc.wantErrors, fs)
			}
			if got := rules(fs, constants.SeverityInfo); !equal(got, tc.wantInfo) {
				t.Errorf("info = %v, want %v", got, tc.wantInfo)
			}
			status, conf := eng.Score(fs)
			if status != tc.status || conf != tc.confidence {
				t.Errorf("score = %s %v, want %s %v", status, conf, tc.status, tc.confidence)
			}
		})
	}
}

func TestValidateToleranceFloorUsesScale(t *testing.T) {
	items := []entity.LineItem{
		item("total_assets", "10000"),
		item("total_liabilities", "6000"),
		item("total_equity", "3200"),
	}
	fs := New(nil, Config{}).Validate(items, constants.BalanceSheet, 1000)
	if got := rules(fs, constants.SeverityInfo); !equal(got, []string{"identity.balance_sheet"}) {
		t.Errorf("findings = %+v", fs)
	}
	fs = New(nil, Config{}).Validate(items, constants.BalanceSheet, 1)
	if got := rules(fs, constants.SeverityError); !equal(got, []string{"identity.balance_sheet"}) {
		t.Errorf("findings = %+v", fs)
	}
}

func TestValidateIncomeAndCashFlow(t *testing.T) {
	eng := New(nil, Config{})
	is := []entity.LineItem{
		item("net_revenue", "900"),
		item("cost_of_revenue", "400"),
		item("gross_profit", "500"),
		item("total_expenses", "700"),
		item("net_income", "200"),
	}
	if fs := eng.Validate(is, constants.IncomeStatement, 1); len(fs) != 0 {
		t.Errorf("income statement findings = %+v", fs)
	}

	cf := []entity.LineItem{
		item("net_cash_operating", "300"),
		item("net_cash_investing", "-100"),
		item("net_cash_financing", "-50"),
		item("net_change_in_cash", "160"),
		item("cash_beginning", "40"),
		item("cash_ending", "200"),
	}
	fs := eng.Validate(cf, constants.CashFlow, 1)
	if got := rules(fs, constants.SeverityError); !equal(got, []string{"identity.cash_flow"}) {
		t.Errorf("cash flow errors = %v (%+v)", got, fs)
	}
}

func TestValidateMissingTermSkipsIdentity(t *testing.T) {
	fs := New(nil, Config{}).Validate([]entity.LineItem{
		item("net_revenue", "900"),
		item("net_income", "200"),
	}, constants.IncomeStatement, 1)
	if len(fs) != 0 {
		t.Errorf("findings = %+v", fs)
	}
}

func TestValidateMagnitude(t *testing.T) {
	eng := New(nil, Config{})
	items := []entity.LineItem{
		item("", "100"),
		item("", "200"),
		item("", "300"),
		item("", "5000000"),
		item("", "0"),
	}
	items[3].RawLabel = "Suspicious"
	fs := eng.magnitude(items)
	if len(fs) != 1 || fs[0].RuleID != "magnitude.outlier" || fs[0].Keys[0] != "Suspicious" {
		t.Errorf("findings = %+v", fs)
	}
	if fs := eng.magnitude(items[2:]); len(fs) != 0 {
		t.Errorf("rule should skip fewer than three values: %+v", fs)
	}
}

func TestScoreClampsAtZero(t *testing.T) {
	fs := make([]entity.Finding, 4)
	for i := range fs {
		fs[i].Severity = constants.SeverityError
	}
	fs = append(fs, entity.Finding{Severity: constants.SeverityWarning}, entity.Finding{Severity: constants.SeverityInfo})
	status, conf := New(nil, Config{}).Score(fs)
	if status != constants.StatusRejected || conf != 0 {
		t.Errorf("score = %s %v", status, conf)
	}
	status, conf = New(nil, Config{}).Score([]entity.Finding{{Severity: constants.SeverityWarning}})
	if status != constants.StatusAccepted || conf != 0.9 {
		t.Errorf("score = %s %v", status, conf)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
