// Package app assembles the pipeline and its stores from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"

	"github.com/joseph-ayodele/statements-tracker/internal/blob"
	"github.com/joseph-ayodele/statements-tracker/internal/classify"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/export"
	"github.com/joseph-ayodele/statements-tracker/internal/extract"
	"github.com/joseph-ayodele/statements-tracker/internal/mapper"
	"github.com/joseph-ayodele/statements-tracker/internal/pipeline"
	"github.com/joseph-ayodele/statements-tracker/internal/repository"
	"github.com/joseph-ayodele/statements-tracker/internal/taxonomy"
	"github.com/joseph-ayodele/statements-tracker/internal/validate"
)

// App holds the wired components shared by the server and the CLI.
type App struct {
	Config    *common.Config
	Taxonomy  *taxonomy.Taxonomy
	DB        *repository.DB // nil unless a DSN is configured
	Blobs     blob.Store
	Records   repository.RecordRepository
	Journal   repository.RunJournal
	Processor *pipeline.Processor
	Export    *export.Service

	logger    *slog.Logger
	firestore *firestore.Client
}

// Build opens every store cfg selects and wires the four stages into a processor.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}

	tax := taxonomy.Default()
	if cfg.Taxonomy.Path != "" {
		t, err := taxonomy.LoadFile(cfg.Taxonomy.Path)
		if err != nil {
			return nil, fmt.Errorf("load taxonomy: %w", err)
		}
		tax = t
		logger.Info("taxonomy.loaded", "path", cfg.Taxonomy.Path)
	}
	a.Taxonomy = tax

	blobs, err := blob.New(ctx, cfg.Blob, logger)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	a.Blobs = blobs

	if cfg.Database.DSN != "" {
		db, err := repository.Open(ctx, repository.ConfigFrom(cfg.Database), logger)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.DB = db
		a.Journal = repository.NewRunJournal(db, logger)
	} else {
		logger.Warn("app.journal.memory", "reason", "no DB_URL configured; run checkpoints are not persisted")
		a.Journal = repository.NewMemoryJournal()
	}

	switch cfg.Store.Backend {
	case "sql":
		if a.DB == nil {
			a.Close()
			return nil, common.NewAppError(common.CodeConfig, "RECORD_STORE=sql needs DB_URL", common.ErrInvalidInput)
		}
		a.Records = repository.NewRecordRepository(a.DB, tax, logger)
	case "firestore":
		client, err := repository.NewFirestoreClient(ctx, cfg.Store.FirestoreProject)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open firestore: %w", err)
		}
		a.firestore = client
		a.Records = repository.NewFirestoreRecordRepository(client, cfg.Store.FirestoreRecords, tax, logger)
	default:
		a.Records = repository.NewMemoryRecords(tax)
	}

	a.Processor = pipeline.NewProcessor(
		pipeline.Config{
			RetryAttempts:  cfg.Pipeline.RetryAttempts,
			RetryBaseDelay: cfg.Pipeline.RetryBaseDelay,
			RetryMaxDelay:  cfg.Pipeline.RetryMaxDelay,
			CacheTTL:       cfg.Pipeline.CacheTTL,
			Logger:         logger,
		},
		blobs,
		extract.New(extract.Config{Logger: logger}),
		classify.New(classify.Config{Logger: logger}),
		mapper.New(tax, mapper.Config{DefaultCurrency: cfg.Pipeline.DefaultCurrency, Logger: logger}),
		validate.New(tax, validate.Config{
			TolerancePct:   cfg.Validation.TolerancePct,
			ToleranceUnits: cfg.Validation.ToleranceUnits,
			ErrorPenalty:   cfg.Validation.ErrorPenalty,
			WarningPenalty: cfg.Validation.WarningPenalty,
			Logger:         logger,
		}),
		a.Records,
		a.Journal,
	)
	a.Export = export.NewService(a.Records, logger)
	return a, nil
}

// Writer returns the blob store as a staging target, or nil when the backend is read-only.
func (a *App) Writer() blob.Writer {
	w, _ := a.Blobs.(blob.Writer)
	return w
}

func (a *App) Close() {
	if a.firestore != nil {
		if err := a.firestore.Close(); err != nil {
			a.logger.Warn("firestore.close.failed", "err", err)
		}
	}
	repository.Close(a.DB, a.logger)
}
