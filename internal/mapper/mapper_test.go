package mapper

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
	"github.com/joseph-ayodele/statements-tracker/internal/taxonomy"
)

func doc(lines ...[]string) []entity.Block {
	var out []entity.Block
	for i, ln := range lines {
		for _, s := range ln {
			out = append(out, entity.Block{Kind: entity.TextBlock, Page: 1, Line: i, Text: s, Row: -1, Col: -1, Seq: len(out)})
		}
	}
	return out
}

func whole(blocks []entity.Block, st constants.StatementType, header string) entity.Detection {
	return entity.Detection{Type: st, FirstSeq: 0, LastSeq: len(blocks) - 1, Header: header}
}

func byKey(items []entity.LineItem, key string) (entity.LineItem, bool) {
	for _, it := range items {
		if it.Key() == key {
			return it, true
		}
	}
	return entity.LineItem{}, false
}

func TestMapBalanceSheet(t *testing.T) {
	blocks := doc(
		[]string{"Line item", "2024", "2023"},
		[]string{"Assets"},
		[]string{"Cash", "500", "400"},
		[]string{"Goodwill", "—"},
		[]string{"Mystery line", "12"},
		[]string{"Total assets", "1,000"},
		[]string{"Total assets", "999"},
	)
	svc := New(taxonomy.Default(), Config{})
	res, err := svc.Map(context.Background(), blocks, whole(blocks, constants.BalanceSheet, "(in thousands of USD)"))
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	if res.Scale != 1000 || res.Currency != "USD" {
		t.Errorf("scale/currency = %d %s", res.Scale, res.Currency)
	}
	if len(res.Items) != 4 {
		t.Fatalf("items = %+v", res.Items)
	}

	cash, _ := byKey(res.Items, "cash_and_equivalents")
	if !cash.Value.Valid || !cash.Value.Decimal.Equal(decimal.NewFromInt(500_000)) || cash.RawValue != "500" || cash.UnitMultiplier != 1000 {
		t.Errorf("cash = %+v", cash)
	}
	if cash.Source.Seq != 5 {
		t.Errorf("cash source = %+v", cash.Source)
	}
	gw, ok := byKey(res.Items, "goodwill")
	if !ok || gw.Value.Valid || gw.RawValue != "—" {
		t.Errorf("goodwill = %+v", gw)
	}
	ta, _ := byKey(res.Items, taxonomy.KeyTotalAssets)
	if !ta.Value.Decimal.Equal(decimal.NewFromInt(1_000_000)) {
		t.Errorf("first total assets should win: %+v", ta)
	}
	un, ok := byKey(res.Items, "")
	if !ok || un.Mapped() || un.RawLabel != "Mystery line" || !un.Value.Decimal.Equal(decimal.NewFromInt(12_000)) {
		t.Errorf("unmapped = %+v", un)
	}

	rules := map[string]constants.Severity{}
	for _, f := range res.Findings {
		rules[f.RuleID] = f.Severity
	}
	if rules["mapping.duplicate"] != constants.SeverityInfo || rules["mapping.unresolved"] != constants.SeverityWarning || len(rules) != 2 {
		t.Errorf("findings = %+v", res.Findings)
	}
}

func TestMapSectionHeadings(t *testing.T) {
	tests := []struct {
		name  string
		st    constants.StatementType
		lines [][]string
		key   string
		want  int64
	}{
		{
			name: "equity heading",
			st:   constants.BalanceSheet,
			lines: [][]string{
				{"Total assets", "1,000,000"},
				{"Total liabilities", "600,000"},
				{"Stockholders' equity:"},
				{"Common stock", "100,000"},
				{"Total stockholders' equity", "400,000"},
			},
			key:  taxonomy.KeyTotalEquity,
			want: 400_000,
		},
		{
			name: "revenue heading",
			st:   constants.IncomeStatement,
			lines: [][]string{
				{"Revenues:"},
				{"Product", "700"},
				{"Service", "300"},
				{"Total revenues", "1,000"},
			},
			key:  taxonomy.KeyNetRevenue,
			want: 1_000,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks := doc(tt.lines...)
			res, err := New(nil, Config{}).Map(context.Background(), blocks, whole(blocks, tt.st, ""))
			if err != nil {
				t.Fatal(err)
			}
			it, ok := byKey(res.Items, tt.key)
			if !ok || !it.Value.Valid || !it.Value.Decimal.Equal(decimal.NewFromInt(tt.want)) {
				t.Fatalf("%s = %+v (items %+v)", tt.key, it, res.Items)
			}
			for _, f := range res.Findings {
				if f.RuleID == "mapping.duplicate" {
					t.Errorf("heading counted as an occurrence: %+v", f)
				}
			}
		})
	}
}

func TestMapRestatedSubtotal(t *testing.T) {
	blocks := doc(
		[]string{"Goodwill", "—"},
		[]string{"Total assets", "1,000"},
		[]string{"Restated"},
		[]string{"Goodwill", "250"},
		[]string{"Total assets", "1,250"},
	)
	res, err := New(nil, Config{}).Map(context.Background(), blocks, whole(blocks, constants.BalanceSheet, ""))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("items = %+v", res.Items)
	}
	if gw, _ := byKey(res.Items, "goodwill"); !gw.Value.Decimal.Equal(decimal.NewFromInt(250)) || gw.RawValue != "250" {
		t.Errorf("placeholder should give way to the amount: %+v", gw)
	}
	if ta, _ := byKey(res.Items, taxonomy.KeyTotalAssets); !ta.Value.Decimal.Equal(decimal.NewFromInt(1_000)) {
		t.Errorf("first valued total should win: %+v", ta)
	}
	dups := 0
	for _, f := range res.Findings {
		if f.RuleID == "mapping.duplicate" {
			dups++
		}
	}
	if dups != 2 {
		t.Errorf("duplicate findings = %d, want 2: %+v", dups, res.Findings)
	}
}

func TestMapLossSign(t *testing.T) {
	tests := []struct {
		label string
		raw   string
		want  int64
	}{
		{"Net loss", "5,000", -5_000},
		{"Net loss", "(5,000)", -5_000},
		{"Net income (loss)", "(5,000)", -5_000},
		{"Net income (loss)", "5,000", 5_000},
		{"Net income", "5,000", 5_000},
	}
	for _, tt := range tests {
		t.Run(tt.label+" "+tt.raw, func(t *testing.T) {
			blocks := doc([]string{tt.label, tt.raw})
			res, err := New(nil, Config{}).Map(context.Background(), blocks, whole(blocks, constants.IncomeStatement, ""))
			if err != nil {
				t.Fatal(err)
			}
			ni, ok := byKey(res.Items, taxonomy.KeyNetIncome)
			if !ok || !ni.Value.Decimal.Equal(decimal.NewFromInt(tt.want)) {
				t.Errorf("net income = %+v, want %d", ni, tt.want)
			}
		})
	}
}

func TestMapMultiplierUniformity(t *testing.T) {
	svc := New(nil, Config{})
	raw := doc([]string{"Total assets", "1,000,000"})
	scaled := doc([]string{"Total assets", "1,000"})

	a, err := svc.Map(context.Background(), raw, whole(raw, constants.BalanceSheet, ""))
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.Map(context.Background(), scaled, whole(scaled, constants.BalanceSheet, "Amounts in thousands"))
	if err != nil {
		t.Fatal(err)
	}
	if !a.Items[0].Value.Decimal.Equal(b.Items[0].Value.Decimal) {
		t.Errorf("values differ: %s vs %s", a.Items[0].Value.Decimal, b.Items[0].Value.Decimal)
	}
	if a.Items[0].UnitMultiplier != 1 || b.Items[0].UnitMultiplier != 1000 {
		t.Errorf("multipliers = %d, %d", a.Items[0].UnitMultiplier, b.Items[0].UnitMultiplier)
	}
}

func TestMapOnlyReadsRegion(t *testing.T) {
	blocks := doc(
		[]string{"Revenue", "10"},
		[]string{"Total assets", "5"},
		[]string{"Revenue", "99"},
	)
	det := entity.Detection{Type: constants.IncomeStatement, FirstSeq: 2, LastSeq: 5}
	res, err := New(nil, Config{}).Map(context.Background(), blocks, det)
	if err != nil {
		t.Fatal(err)
	}
	rev, ok := byKey(res.Items, taxonomy.KeyNetRevenue)
	if !ok || !rev.Value.Decimal.Equal(decimal.NewFromInt(99)) {
		t.Errorf("items = %+v", res.Items)
	}
}

func TestMapUnknownYieldsNothing(t *testing.T) {
	blocks := doc([]string{"Total assets", "5"})
	res, err := New(nil, Config{}).Map(context.Background(), blocks, whole(blocks, constants.Unknown, ""))
	if err != nil || len(res.Items) != 0 {
		t.Fatalf("res = %+v, err = %v", res, err)
	}
}

func TestMapAll(t *testing.T) {
	blocks := doc(
		[]string{"Total assets", "5"},
		[]string{"Net income", "3"},
	)
	dets := []entity.Detection{
		{Type: constants.BalanceSheet, FirstSeq: 0, LastSeq: 1},
		{Type: constants.IncomeStatement, FirstSeq: 2, LastSeq: 3},
	}
	svc := New(nil, Config{Workers: 2})
	results, err := svc.MapAll(context.Background(), blocks, dets)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Items[0].Key() != taxonomy.KeyTotalAssets || results[1].Items[0].Key() != taxonomy.KeyNetIncome {
		t.Errorf("results = %+v", results)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.MapAll(ctx, blocks, dets); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDetectScale(t *testing.T) {
	cases := map[string]int64{
		"":                             1,
		"(in thousands)":               1000,
		"USD (000s)":                   1000,
		"$000":                         1000,
		"EUR'000":                      1000,
		"Amounts in millions of euros": 1_000_000,
		"(in billions)":                1_000_000_000,
		"Balance Sheet as of 2024":     1,
	}
	for in, want := range cases {
		if got := detectScale(in); got != want {
			t.Errorf("detectScale(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestDetectCurrency(t *testing.T) {
	cases := []struct {
		header   string
		amounts  []string
		fallback string
		want     string
	}{
		{"Amounts in EUR", nil, "USD", "EUR"},
		{"ALL AMOUNTS IN THOUSANDS", nil, "USD", "USD"},
		{"", []string{"€ 1.000"}, "USD", "EUR"},
		{"", []string{"£12"}, "USD", "GBP"},
		{"", []string{"$12"}, "CAD", "CAD"},
		{"", []string{"$12"}, "EUR", "USD"},
		{"", nil, "CHF", "CHF"},
	}
	for _, tc := range cases {
		if got := detectCurrency(tc.header, tc.amounts, tc.fallback); got != tc.want {
			t.Errorf("detectCurrency(%q, %v, %s) = %s, want %s", tc.header, tc.amounts, tc.fallback, got, tc.want)
		}
	}
}
