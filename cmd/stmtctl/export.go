package main

import (
	"context"
	"flag"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/repository"
)

type exportCmd struct {
	out    string
	doc    string
	stType string
	status string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write stored statement records to an XLSX workbook" }
func (*exportCmd) Usage() string {
	return `stmtctl export -out <file.xlsx> [-doc <document-key>] [-type <statement-type>] [-status ACCEPTED|REJECTED]
`
}

func (e *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&e.out, "out", "statements.xlsx", "Output workbook path.")
	f.StringVar(&e.doc, "doc", "", "Only records from this document.")
	f.StringVar(&e.stType, "type", "", "Only this statement type (balance_sheet, income_statement, cash_flow).")
	f.StringVar(&e.status, "status", "", "Only records with this validation status.")
}

func (e *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	filter := repository.RecordFilter{DocumentKey: e.doc}
	if e.stType != "" {
		st, ok := constants.ParseStatementType(e.stType)
		if !ok {
			fail("export: unknown statement type %q", e.stType)
			return subcommands.ExitUsageError
		}
		filter.Type = st
	}
	if e.status != "" {
		filter.Status = constants.ValidationStatus(strings.ToUpper(e.status))
	}

	a, _, done, err := setup(ctx)
	if err != nil {
		fail("setup: %v", err)
		return subcommands.ExitFailure
	}
	defer done()

	data, err := a.Export.ExportXLSX(ctx, filter)
	if err != nil {
		fail("export: %v", err)
		return subcommands.ExitFailure
	}
	if err := os.WriteFile(e.out, data, 0o644); err != nil {
		fail("export: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
