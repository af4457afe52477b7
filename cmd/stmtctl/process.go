package main

import (
	"context"
	"flag"
	"strings"

	"github.com/google/subcommands"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/pipeline"
)

type processCmd struct {
	contentType string
	force       bool
}

func (*processCmd) Name() string     { return "process" }
func (*processCmd) Synopsis() string { return "run the pipeline for one stored document" }
func (*processCmd) Usage() string {
	return `stmtctl process [-type <content-type>] [-force] <document-key>

  Extracts, classifies, maps and validates the document stored under the
  given key and prints the outcome as JSON. Exits non-zero when the run
  fails.
`
}

func (p *processCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.contentType, "type", "", "Content type override (e.g. application/pdf, text/csv).")
	f.BoolVar(&p.force, "force", false, "Reprocess even if the last run for this document completed.")
}

func (p *processCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	a, _, done, err := setup(ctx)
	if err != nil {
		fail("setup: %v", err)
		return subcommands.ExitFailure
	}
	defer done()

	out, err := a.Processor.Run(ctx, pipeline.Request{
		DocumentKey: strings.TrimSpace(f.Arg(0)),
		ContentType: p.contentType,
		Force:       p.force,
	})
	if err != nil {
		fail("process: %v", err)
		return subcommands.ExitFailure
	}
	if err := printJSON(out); err != nil {
		fail("write output: %v", err)
		return subcommands.ExitFailure
	}
	if out.State != constants.RunCompleted {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
