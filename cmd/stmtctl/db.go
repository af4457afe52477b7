package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/subcommands"

	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/repository"
)

type dbHealthCmd struct {
	timeout time.Duration
}

func (*dbHealthCmd) Name() string     { return "dbhealth" }
func (*dbHealthCmd) Synopsis() string { return "ping the configured database" }
func (*dbHealthCmd) Usage() string    { return "stmtctl dbhealth [-timeout 1s]\n" }

func (d *dbHealthCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&d.timeout, "timeout", time.Second, "Ping timeout.")
}

func (d *dbHealthCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	db, logger, done, err := openDB(ctx)
	if err != nil {
		fail("dbhealth: %v", err)
		return subcommands.ExitFailure
	}
	defer done()

	if err := repository.HealthCheck(ctx, db, d.timeout, logger); err != nil {
		fmt.Printf("DB health: FAIL (%v)\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println("DB health: OK")
	return subcommands.ExitSuccess
}

type migrateCmd struct{}

func (*migrateCmd) Name() string           { return "migrate" }
func (*migrateCmd) Synopsis() string       { return "create the record and run tables if missing" }
func (*migrateCmd) Usage() string          { return "stmtctl migrate\n" }
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	db, logger, done, err := openDB(ctx)
	if err != nil {
		fail("migrate: %v", err)
		return subcommands.ExitFailure
	}
	defer done()

	if err := repository.EnsureSchema(ctx, db, logger); err != nil {
		fail("migrate: %v", err)
		return subcommands.ExitFailure
	}
	fmt.Println("schema up to date")
	return subcommands.ExitSuccess
}

// openDB connects without building the rest of the application.
func openDB(ctx context.Context) (*repository.DB, *slog.Logger, func(), error) {
	cfg := common.LoadConfig()
	logger, flush := common.NewLogger(cfg.Log)
	if cfg.Database.DSN == "" {
		flush()
		return nil, nil, nil, fmt.Errorf("DB_URL is required")
	}
	db, err := repository.Open(ctx, repository.ConfigFrom(cfg.Database), logger)
	if err != nil {
		flush()
		return nil, nil, nil, err
	}
	return db, logger, func() { repository.Close(db, logger); flush() }, nil
}
