package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&processCmd{}, "pipeline")
	commander.Register(&batchCmd{}, "pipeline")
	commander.Register(&watchCmd{}, "pipeline")
	commander.Register(&exportCmd{}, "records")
	commander.Register(&dbHealthCmd{}, "database")
	commander.Register(&migrateCmd{}, "database")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
