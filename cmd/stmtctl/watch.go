package main

import (
	"context"
	"flag"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/joseph-ayodele/statements-tracker/internal/async"
	"github.com/joseph-ayodele/statements-tracker/internal/ingest"
)

type watchCmd struct {
	dirs     string
	initial  bool
	debounce time.Duration
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "watch directories and process statement files as they appear" }
func (*watchCmd) Usage() string {
	return `stmtctl watch -dir <path>[,<path>...] [-initial] [-debounce 500ms]

  Stages new or updated files under the directories and queues them for
  processing until interrupted.
`
}

func (w *watchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&w.dirs, "dir", "", "Comma-separated directories to watch (required).")
	f.BoolVar(&w.initial, "initial", false, "Process files already present at startup.")
	f.DurationVar(&w.debounce, "debounce", 500*time.Millisecond, "Quiet period before a changed file is picked up.")
}

func (w *watchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var roots []string
	for _, d := range strings.Split(w.dirs, ",") {
		if d = strings.TrimSpace(d); d != "" {
			roots = append(roots, d)
		}
	}
	if len(roots) == 0 {
		fail("watch: -dir is required")
		return subcommands.ExitUsageError
	}
	a, logger, done, err := setup(ctx)
	if err != nil {
		fail("setup: %v", err)
		return subcommands.ExitFailure
	}
	defer done()

	bw := a.Writer()
	if bw == nil {
		fail("watch: blob backend %q cannot stage files", a.Config.Blob.Backend)
		return subcommands.ExitFailure
	}
	stager := ingest.NewStager(bw, ingest.Options{SkipHidden: true, MaxBytes: a.Config.Blob.MaxObjectBytes}, logger)

	queue := async.NewRunQueue(a.Processor, logger,
		async.WithWorkers(a.Config.Pipeline.Workers),
		async.WithQueueSize(a.Config.Pipeline.QueueSize),
		async.WithRunTimeout(a.Config.Pipeline.RunTimeout),
	)
	defer queue.Shutdown(context.Background())

	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       roots,
		InitialScan: w.initial,
		Debounce:    w.debounce,
		Logger:      logger,
	})
	if err != nil {
		fail("watch: %v", err)
		return subcommands.ExitFailure
	}
	logger.Info("watch.started", "roots", roots)

	for paths != nil || errs != nil {
		select {
		case p, ok := <-paths:
			if !ok {
				paths = nil
				continue
			}
			res, err := stager.StagePath(ctx, p)
			if err != nil {
				logger.Warn("watch.stage.failed", "path", p, "err", err)
				continue
			}
			if err := queue.Enqueue(ctx, async.Job{Request: res.Request}); err != nil {
				logger.Warn("watch.enqueue.failed", "path", p, "err", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watch.error", "err", err)
		}
	}
	logger.Info("watch.stopped")
	return subcommands.ExitSuccess
}
