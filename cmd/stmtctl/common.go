package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joseph-ayodele/statements-tracker/internal/app"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/repository"
)

// setup loads configuration and wires the application. The returned func
// releases every store and flushes the logger.
func setup(ctx context.Context) (*app.App, *slog.Logger, func(), error) {
	cfg := common.LoadConfig()
	logger, flush := common.NewLogger(cfg.Log)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		flush()
		return nil, nil, nil, err
	}
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		flush()
		return nil, nil, nil, err
	}
	if a.DB != nil {
		if err := repository.EnsureSchema(ctx, a.DB, logger); err != nil {
			a.Close()
			flush()
			return nil, nil, nil, err
		}
	}
	return a, logger, func() { a.Close(); flush() }, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}
