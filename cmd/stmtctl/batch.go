package main

import (
	"context"
	"flag"
	"sync"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/ingest"
	"github.com/joseph-ayodele/statements-tracker/internal/pipeline"
)

type batchCmd struct {
	dir     string
	workers int
	force   bool
	hidden  bool
}

func (*batchCmd) Name() string     { return "batch" }
func (*batchCmd) Synopsis() string { return "stage every statement file in a directory and process it" }
func (*batchCmd) Usage() string {
	return `stmtctl batch -dir <path> [-workers N] [-force] [-hidden]

  Walks the directory, stages pdf/xlsx/csv/txt files into the blob store
  by content hash, and runs the pipeline for each staged document.
`
}

func (b *batchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&b.dir, "dir", "", "Directory to ingest (required).")
	f.IntVar(&b.workers, "workers", 4, "Documents processed concurrently.")
	f.BoolVar(&b.force, "force", false, "Reprocess documents whose last run completed.")
	f.BoolVar(&b.hidden, "hidden", false, "Include hidden files and directories.")
}

type batchSummary struct {
	Stats     ingest.DirStats `json:"ingest"`
	Completed int             `json:"completed"`
	Failed    int             `json:"failed"`
	Records   int             `json:"records"`
	Failures  []string        `json:"failures,omitempty"`
}

func (b *batchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if b.dir == "" {
		fail("batch: -dir is required")
		return subcommands.ExitUsageError
	}
	a, logger, done, err := setup(ctx)
	if err != nil {
		fail("setup: %v", err)
		return subcommands.ExitFailure
	}
	defer done()

	w := a.Writer()
	if w == nil {
		fail("batch: blob backend %q cannot stage files", a.Config.Blob.Backend)
		return subcommands.ExitFailure
	}
	stager := ingest.NewStager(w, ingest.Options{SkipHidden: !b.hidden, MaxBytes: a.Config.Blob.MaxObjectBytes}, logger)
	results, stats, err := stager.Directory(ctx, b.dir)
	if err != nil {
		fail("batch: %v", err)
		return subcommands.ExitFailure
	}

	var (
		mu  sync.Mutex
		sum = batchSummary{Stats: stats}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(b.workers, 1))
	for _, req := range ingest.Requests(results) {
		req.Force = b.force
		g.Go(func() error {
			out, err := a.Processor.Run(gctx, req)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if out.State == constants.RunCompleted {
				sum.Completed++
				sum.Records += len(out.Records)
			} else {
				sum.Failed++
				sum.Failures = append(sum.Failures, failureLine(req, out))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fail("batch: %v", err)
		return subcommands.ExitFailure
	}

	if err := printJSON(sum); err != nil {
		fail("write output: %v", err)
		return subcommands.ExitFailure
	}
	if sum.Failed > 0 || stats.Failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func failureLine(req pipeline.Request, out pipeline.Outcome) string {
	if out.Failure == nil {
		return req.DocumentKey + ": " + string(out.State)
	}
	return req.DocumentKey + ": " + out.Failure.Error()
}
