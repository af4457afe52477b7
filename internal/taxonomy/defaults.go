package taxonomy

import "github.com/joseph-ayodele/statements-tracker/constants"

// Keys referenced by the accounting identities.
const (
	KeyTotalAssets      = "total_assets"
	KeyTotalLiabilities = "total_liabilities"
	KeyTotalEquity      = "total_equity"
	KeyNetRevenue       = "net_revenue"
	KeyTotalExpenses    = "total_expenses"
	KeyNetIncome        = "net_income"
	KeyNetCashOperating = "net_cash_operating"
	KeyNetCashInvesting = "net_cash_investing"
	KeyNetCashFinancing = "net_cash_financing"
	KeyNetChangeInCash  = "net_change_in_cash"
)

func activity(kind string) []string {
	return []string{
		"net cash provided by " + kind + " activities",
		"net cash used in " + kind + " activities",
		"net cash provided by used in " + kind + " activities",
		"net cash used in provided by " + kind + " activities",
		"net cash from " + kind + " activities",
		"net cash generated from " + kind + " activities",
		"net cash flows from " + kind + " activities",
		"net cash " + kind + " activities",
		"cash flows from " + kind + " activities net",
		"total " + kind + " activities",
	}
}

func cashAt(when string) []string {
	return []string{
		"cash at " + when + " of period",
		"cash at " + when + " of year",
		"cash and cash equivalents at " + when + " of period",
		"cash and cash equivalents at " + when + " of year",
		"cash and cash equivalents " + when + " of period",
		"cash and cash equivalents " + when + " of year",
	}
}

var balanceSheet = []Entry{
	{Key: "cash_and_equivalents", Label: "Cash and cash equivalents", Aliases: []string{
		"cash and cash equivalents", "cash", "cash and equivalents", "cash and bank balances"}},
	{Key: "short_term_investments", Label: "Short-term investments", Aliases: []string{
		"short-term investments", "marketable securities"}},
	{Key: "accounts_receivable", Label: "Accounts receivable", Aliases: []string{
		"accounts receivable", "accounts receivable, net", "receivables", "trade receivables", "trade and other receivables"}},
	{Key: "inventory", Label: "Inventory", Aliases: []string{"inventory", "inventories"}},
	{Key: "other_current_assets", Label: "Other current assets", Aliases: []string{
		"prepaid expenses", "prepaid expenses and other current assets", "other current assets"}},
	{Key: "current_assets_total", Label: "Total current assets", Aliases: []string{
		"total current assets", "current assets total"}},
	{Key: "property_plant_equipment", Label: "Property, plant and equipment", Aliases: []string{
		"property, plant and equipment", "property, plant and equipment, net", "property and equipment, net", "fixed assets"}},
	{Key: "goodwill", Label: "Goodwill", Aliases: []string{"goodwill"}},
	{Key: "intangible_assets", Label: "Intangible assets", Aliases: []string{"intangible assets", "intangible assets, net", "intangibles"}},
	{Key: "noncurrent_assets_total", Label: "Total non-current assets", Aliases: []string{
		"total non-current assets", "total noncurrent assets", "total long-term assets"}},
	{Key: KeyTotalAssets, Label: "Total assets", Required: true, Aliases: []string{"total assets", "assets, total"}},
	{Key: "accounts_payable", Label: "Accounts payable", Aliases: []string{
		"accounts payable", "trade payables", "payables", "trade and other payables"}},
	{Key: "accrued_liabilities", Label: "Accrued liabilities", Aliases: []string{"accrued liabilities", "accrued expenses"}},
	{Key: "short_term_debt", Label: "Short-term debt", Aliases: []string{
		"short-term debt", "short-term borrowings", "current portion of long-term debt"}},
	{Key: "current_liabilities_total", Label: "Total current liabilities", Aliases: []string{
		"total current liabilities", "current liabilities total"}},
	{Key: "long_term_debt", Label: "Long-term debt", Aliases: []string{"long-term debt", "long-term borrowings"}},
	{Key: "noncurrent_liabilities_total", Label: "Total non-current liabilities", Aliases: []string{
		"total non-current liabilities", "total noncurrent liabilities", "total long-term liabilities"}},
	{Key: KeyTotalLiabilities, Label: "Total liabilities", Required: true, Aliases: []string{
		"total liabilities", "liabilities, total"}},
	{Key: "common_stock", Label: "Common stock", Aliases: []string{"common stock", "share capital", "capital stock"}},
	{Key: "retained_earnings", Label: "Retained earnings", Aliases: []string{
		"retained earnings", "accumulated deficit", "retained earnings (accumulated deficit)"}},
	{Key: KeyTotalEquity, Label: "Total equity", Required: true, Aliases: []string{
		"total equity", "total shareholders' equity", "total stockholders' equity", "total shareholders equity",
		"total stockholders equity", "total owners' equity", "equity, total"}},
	{Key: "total_liabilities_and_equity", Label: "Total liabilities and equity", Aliases: []string{
		"total liabilities and equity", "total liabilities and shareholders' equity",
		"total liabilities and stockholders' equity", "total equity and liabilities"}},
}

var incomeStatement = []Entry{
	{Key: KeyNetRevenue, Label: "Net revenue", Required: true, Aliases: []string{
		"revenue", "revenues", "net revenue", "net revenues", "total revenue", "total revenues",
		"total net revenue", "net sales", "sales", "turnover"}},
	{Key: "cost_of_revenue", Label: "Cost of revenue", Aliases: []string{
		"cost of revenue", "cost of revenues", "cost of sales", "cost of goods sold", "cogs"}},
	{Key: "gross_profit", Label: "Gross profit", Aliases: []string{"gross profit", "gross margin"}},
	{Key: "selling_general_admin", Label: "Selling, general and administrative", Aliases: []string{
		"selling, general and administrative", "selling, general and administrative expenses", "sg&a", "general and administrative"}},
	{Key: "research_development", Label: "Research and development", Aliases: []string{"research and development", "r&d"}},
	{Key: "depreciation_amortization", Label: "Depreciation and amortization", Aliases: []string{"depreciation and amortization", "depreciation"}},
	{Key: "operating_expenses", Label: "Operating expenses", Aliases: []string{"operating expenses", "total operating expenses"}},
	{Key: "operating_income", Label: "Operating income", Aliases: []string{
		"operating income", "income from operations", "operating profit", "operating income (loss)"}},
	{Key: "interest_expense", Label: "Interest expense", Aliases: []string{"interest expense", "finance costs"}},
	{Key: "other_income", Label: "Other income", Aliases: []string{"other income", "other income, net", "other income (expense), net"}},
	{Key: KeyTotalExpenses, Label: "Total expenses", Aliases: []string{
		"total expenses", "total costs and expenses", "total operating costs and expenses", "expenses, total"}},
	{Key: "income_before_tax", Label: "Income before income taxes", Aliases: []string{
		"income before income taxes", "income before taxes", "profit before tax", "pre-tax income"}},
	{Key: "income_tax_expense", Label: "Income tax expense", Aliases: []string{
		"income tax expense", "provision for income taxes", "income taxes", "income tax"}},
	{Key: KeyNetIncome, Label: "Net income", Required: true, Aliases: []string{
		"net income", "net profit", "net earnings", "net income (loss)", "net loss", "net profit (loss)",
		"profit for the year", "profit for the period"}},
}

var cashFlow = []Entry{
	{Key: "net_income", Label: "Net income", Aliases: []string{"net income", "net profit", "net earnings", "net income (loss)", "net loss"}},
	{Key: "depreciation_amortization", Label: "Depreciation and amortization", Aliases: []string{"depreciation and amortization", "depreciation"}},
	{Key: "change_in_working_capital", Label: "Changes in working capital", Aliases: []string{
		"changes in working capital", "changes in operating assets and liabilities"}},
	{Key: KeyNetCashOperating, Label: "Net cash from operating activities", Required: true, Aliases: activity("operating")},
	{Key: "capital_expenditures", Label: "Capital expenditures", Aliases: []string{
		"capital expenditures", "purchases of property and equipment", "purchase of property, plant and equipment"}},
	{Key: KeyNetCashInvesting, Label: "Net cash from investing activities", Required: true, Aliases: activity("investing")},
	{Key: "dividends_paid", Label: "Dividends paid", Aliases: []string{"dividends paid"}},
	{Key: "debt_repayments", Label: "Repayments of debt", Aliases: []string{"repayments of debt", "repayment of borrowings"}},
	{Key: KeyNetCashFinancing, Label: "Net cash from financing activities", Required: true, Aliases: activity("financing")},
	{Key: KeyNetChangeInCash, Label: "Net change in cash", Required: true, Aliases: []string{
		"net change in cash", "net change in cash and cash equivalents", "net increase in cash",
		"net decrease in cash", "net increase in cash and cash equivalents", "net decrease in cash and cash equivalents",
		"net increase (decrease) in cash and cash equivalents", "net (decrease) increase in cash and cash equivalents",
		"change in cash"}},
	{Key: "cash_beginning", Label: "Cash at beginning of period", Aliases: append(cashAt("beginning"), "beginning cash")},
	{Key: "cash_ending", Label: "Cash at end of period", Aliases: append(cashAt("end"), "ending cash")},
}

// DefaultTables returns copies of the built-in tables.
func DefaultTables() map[constants.StatementType][]Entry {
	clone := func(in []Entry) []Entry {
		out := make([]Entry, len(in))
		for i, e := range in {
			e.Aliases = append([]string(nil), e.Aliases...)
			out[i] = e
		}
		return out
	}
	return map[constants.StatementType][]Entry{
		constants.BalanceSheet:    clone(balanceSheet),
		constants.IncomeStatement: clone(incomeStatement),
		constants.CashFlow:        clone(cashFlow),
	}
}

// Default returns the built-in taxonomy.
func Default() *Taxonomy {
	t, err := New(DefaultTables())
	if err != nil {
		panic(err)
	}
	return t
}
