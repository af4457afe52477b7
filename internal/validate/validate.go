// Package validate checks mapped statements against accounting identities,
// required line items and magnitude sanity bounds.
package validate

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
	"github.com/joseph-ayodele/statements-tracker/internal/taxonomy"
)

// Validator is Stage 4.
type Validator interface {
	Validate(items []entity.LineItem, st constants.StatementType, scale int64) []entity.Finding
	Score(findings []entity.Finding) (constants.ValidationStatus, float64)
}

type Config struct {
	TolerancePct   float64 // relative tolerance against the identity's anchor total
	ToleranceUnits int64   // absolute floor, in statement units
	ErrorPenalty   float64
	WarningPenalty float64
	MagnitudeSpan  int // orders of magnitude above the median that trigger a warning
	MinMagnitude   int // minimum non-zero values before the magnitude rule applies
	Logger         *slog.Logger
}

func (c *Config) defaults() {
	if c.TolerancePct <= 0 {
		c.TolerancePct = 0.005
	}
	if c.ToleranceUnits <= 0 {
		c.ToleranceUnits = 1
	}
	if c.ErrorPenalty <= 0 {
		c.ErrorPenalty = 0.3
	}
	if c.WarningPenalty <= 0 {
		c.WarningPenalty = 0.1
	}
	if c.MagnitudeSpan <= 0 {
		c.MagnitudeSpan = 3
	}
	if c.MinMagnitude <= 0 {
		c.MinMagnitude = 3
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type Engine struct {
	tax *taxonomy.Taxonomy
	cfg Config
}

func New(tax *taxonomy.Taxonomy, cfg Config) *Engine {
	if tax == nil {
		tax = taxonomy.Default()
	}
	cfg.defaults()
	return &Engine{tax: tax, cfg: cfg}
}

type term struct {
	key  string
	sign int64
}

// identity asserts sum(lhs) == sum(rhs). The anchor sizes the relative tolerance.
type identity struct {
	rule   string
	anchor string
	lhs    []term
	rhs    []term
}

func plus(keys ...string) []term {
	out := make([]term, len(keys))
	for i, k := range keys {
		out[i] = term{key: k, sign: 1}
	}
	return out
}

var identities = map[constants.StatementType][]identity{
	constants.BalanceSheet: {
		{
			rule:   "identity.balance_sheet",
			anchor: taxonomy.KeyTotalAssets,
			lhs:    plus(taxonomy.KeyTotalAssets),
			rhs:    plus(taxonomy.KeyTotalLiabilities, taxonomy.KeyTotalEquity),
		},
		{
			rule:   "identity.balance_sheet_totals",
			anchor: taxonomy.KeyTotalAssets,
			lhs:    plus(taxonomy.KeyTotalAssets),
			rhs:    plus("total_liabilities_and_equity"),
		},
	},
	constants.IncomeStatement: {
		{
			rule:   "identity.income_statement",
			anchor: taxonomy.KeyNetRevenue,
			lhs:    []term{{taxonomy.KeyNetRevenue, 1}, {taxonomy.KeyTotalExpenses, -1}},
			rhs:    plus(taxonomy.KeyNetIncome),
		},
		{
			rule:   "identity.gross_profit",
			anchor: taxonomy.KeyNetRevenue,
			lhs:    []term{{taxonomy.KeyNetRevenue, 1}, {"cost_of_revenue", -1}},
			rhs:    plus("gross_profit"),
		},
	},
	constants.CashFlow: {
		{
			rule:   "identity.cash_flow",
			anchor: taxonomy.KeyNetChangeInCash,
			lhs:    plus(taxonomy.KeyNetCashOperating, taxonomy.KeyNetCashInvesting, taxonomy.KeyNetCashFinancing),
			rhs:    plus(taxonomy.KeyNetChangeInCash),
		},
		{
			rule:   "identity.cash_rollforward",
			anchor: "cash_ending",
			lhs:    plus("cash_beginning", taxonomy.KeyNetChangeInCash),
			rhs:    plus("cash_ending"),
		},
	},
}

// Validate runs every rule for st. scale is the statement's unit multiplier
// and sets the absolute tolerance floor.
func (e *Engine) Validate(items []entity.LineItem, st constants.StatementType, scale int64) []entity.Finding {
	if scale <= 0 {
		scale = 1
	}
	values := make(map[string]decimal.NullDecimal, len(items))
	for _, it := range items {
		if it.Mapped() {
			values[it.Key()] = it.Value
		}
	}

	var out []entity.Finding
	out = append(out, e.required(values, st)...)
	for _, id := range identities[st] {
		if f, ok := e.checkIdentity(id, values, scale); ok {
			out = append(out, f)
		}
	}
	out = append(out, e.magnitude(items)...)
	return out
}

func (e *Engine) required(values map[string]decimal.NullDecimal, st constants.StatementType) []entity.Finding {
	var out []entity.Finding
	for _, key := range e.tax.Required(st) {
		if v, ok := values[key]; ok && v.Valid {
			continue
		}
		out = append(out, entity.Finding{
			RuleID:   "required.missing",
			Severity: constants.SeverityError,
			Keys:     []string{key},
			Message:  fmt.Sprintf("required line item %s is missing or has no value", key),
		})
	}
	return out
}

func sum(terms []term, values map[string]decimal.NullDecimal) (decimal.Decimal, bool) {
	total := decimal.Zero
	for _, t := range terms {
		v, ok := values[t.key]
		if !ok || !v.Valid {
			return decimal.Zero, false
		}
		total = total.Add(v.Decimal.Mul(decimal.NewFromInt(t.sign)))
	}
	return total, true
}

func describe(terms []term) string {
	var sb strings.Builder
	for i, t := range terms {
		switch {
		case t.sign < 0:
			sb.WriteString(" - ")
		case i > 0:
			sb.WriteString(" + ")
		}
		sb.WriteString(t.key)
	}
	return sb.String()
}

// checkIdentity skips identities with a missing term; the required rule
// reports those.
func (e *Engine) checkIdentity(id identity, values map[string]decimal.NullDecimal, scale int64) (entity.Finding, bool) {
	lhs, ok := sum(id.lhs, values)
	if !ok {
		return entity.Finding{}, false
	}
	rhs, ok := sum(id.rhs, values)
	if !ok {
		return entity.Finding{}, false
	}
	diff := lhs.Sub(rhs).Abs()
	if diff.IsZero() {
		return entity.Finding{}, false
	}

	anchor := values[id.anchor].Decimal.Abs()
	tol := decimal.Max(
		decimal.NewFromInt(e.cfg.ToleranceUnits*scale),
		anchor.Mul(decimal.NewFromFloat(e.cfg.TolerancePct)),
	)

	keys := make([]string, 0, len(id.lhs)+len(id.rhs))
	for _, t := range append(append([]term(nil), id.lhs...), id.rhs...) {
		keys = append(keys, t.key)
	}
	f := entity.Finding{RuleID: id.rule, Keys: keys}
	if diff.GreaterThan(tol) {
		f.Severity = constants.SeverityError
		f.Message = fmt.Sprintf("%s (%s) != %s (%s): difference %s exceeds tolerance %s",
			describe(id.lhs), lhs, describe(id.rhs), rhs, diff, tol)
	} else {
		f.Severity = constants.SeverityInfo
		f.Message = fmt.Sprintf("%s and %s differ by %s, within rounding tolerance %s",
			describe(id.lhs), describe(id.rhs), diff, tol)
	}
	return f, true
}

// orderOf is floor(log10(|v|)) for non-zero v.
func orderOf(v decimal.Decimal) int {
	return int(math.Floor(math.Log10(v.Abs().InexactFloat64())))
}

// magnitude flags values far above the statement's median order of magnitude.
func (e *Engine) magnitude(items []entity.LineItem) []entity.Finding {
	type sample struct {
		item  entity.LineItem
		order int
	}
	var samples []sample
	for _, it := range items {
		if it.Value.Valid && !it.Value.Decimal.IsZero() {
			samples = append(samples, sample{it, orderOf(it.Value.Decimal)})
		}
	}
	if len(samples) < e.cfg.MinMagnitude {
		return nil
	}
	orders := make([]int, len(samples))
	for i, s := range samples {
		orders[i] = s.order
	}
	sort.Ints(orders)
	median := orders[(len(orders)-1)/2]

	var out []entity.Finding
	for _, s := range samples {
		if s.order-median <= e.cfg.MagnitudeSpan {
			continue
		}
		name := s.item.Key()
		if name == "" {
			name = s.item.RawLabel
		}
		out = append(out, entity.Finding{
			RuleID:   "magnitude.outlier",
			Severity: constants.SeverityWarning,
			Keys:     []string{name},
			Message:  fmt.Sprintf("%s = %s is %d orders of magnitude above the statement median", name, s.item.Value.Decimal, s.order-median),
		})
	}
	return out
}

// Score derives status and confidence. Any Error rejects.
func (e *Engine) Score(findings []entity.Finding) (constants.ValidationStatus, float64) {
	errs := entity.CountSeverity(findings, constants.SeverityError)
	warns := entity.CountSeverity(findings, constants.SeverityWarning)
	conf := 1 - e.cfg.ErrorPenalty*float64(errs) - e.cfg.WarningPenalty*float64(warns)
	conf = math.Max(0, math.Round(conf*1e4)/1e4)
	if errs > 0 {
		return constants.StatusRejected, conf
	}
	return constants.StatusAccepted, conf
}
