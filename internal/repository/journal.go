package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"entgo.io/ent/dialect"
	sq "github.com/Masterminds/squirrel"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

// RunJournal persists one checkpoint per run key. Load returns (nil, nil)
// when no checkpoint exists.
type RunJournal interface {
	Load(ctx context.Context, runKey string) (*entity.Checkpoint, error)
	Save(ctx context.Context, cp *entity.Checkpoint) error
}

type sqlJournal struct {
	db     *DB
	sb     sq.StatementBuilderType
	logger *slog.Logger
}

// NewRunJournal returns the SQL-backed checkpoint journal.
func NewRunJournal(db *DB, logger *slog.Logger) RunJournal {
	if logger == nil {
		logger = slog.Default()
	}
	var ph sq.PlaceholderFormat = sq.Question
	if db.Dialect == dialect.Postgres {
		ph = sq.Dollar
	}
	return &sqlJournal{db: db, sb: sq.StatementBuilder.PlaceholderFormat(ph), logger: logger}
}

func (j *sqlJournal) Save(ctx context.Context, cp *entity.Checkpoint) error {
	var blocks, blocksAt, detections, failure any
	if len(cp.Blocks) > 0 {
		b, err := json.Marshal(cp.Blocks)
		if err != nil {
			return err
		}
		blocks = string(b)
	}
	if cp.BlocksAt != nil {
		blocksAt = cp.BlocksAt.UTC().Format(time.RFC3339Nano)
	}
	if len(cp.Detections) > 0 {
		b, err := json.Marshal(cp.Detections)
		if err != nil {
			return err
		}
		detections = string(b)
	}
	if cp.Failure != nil {
		b, err := json.Marshal(cp.Failure)
		if err != nil {
			return err
		}
		failure = string(b)
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}

	_, err := j.sb.Insert(runsTable).
		Columns("run_key", "run_id", "content_type", "state", "blocks_json", "blocks_at",
			"detections_json", "attempts", "failure_json", "updated_at").
		Values(cp.RunKey, cp.RunID, cp.ContentType, string(cp.State), blocks, blocksAt,
			detections, cp.Attempts, failure, cp.UpdatedAt.UTC().Format(time.RFC3339Nano)).
		Suffix(`ON CONFLICT (run_key) DO UPDATE SET
			run_id = excluded.run_id,
			content_type = excluded.content_type,
			state = excluded.state,
			blocks_json = excluded.blocks_json,
			blocks_at = excluded.blocks_at,
			detections_json = excluded.detections_json,
			attempts = excluded.attempts,
			failure_json = excluded.failure_json,
			updated_at = excluded.updated_at`).
		RunWith(j.db.SQL).
		ExecContext(ctx)
	if err != nil {
		common.LoggerFromContext(ctx, j.logger).Error("pipeline_run save failed", "run_key", cp.RunKey, "state", cp.State, "err", err)
		return err
	}
	return nil
}

func (j *sqlJournal) Load(ctx context.Context, runKey string) (*entity.Checkpoint, error) {
	cp := &entity.Checkpoint{RunKey: runKey}
	var (
		state, updatedAt                      string
		blocks, blocksAt, detections, failure sql.NullString
	)
	err := j.sb.Select("run_id", "content_type", "state", "blocks_json", "blocks_at",
		"detections_json", "attempts", "failure_json", "updated_at").
		From(runsTable).
		Where(sq.Eq{"run_key": runKey}).
		RunWith(j.db.SQL).
		QueryRowContext(ctx).
		Scan(&cp.RunID, &cp.ContentType, &state, &blocks, &blocksAt, &detections, &cp.Attempts, &failure, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		common.LoggerFromContext(ctx, j.logger).Error("pipeline_run load failed", "run_key", runKey, "err", err)
		return nil, err
	}
	cp.State = constants.RunState(state)
	if cp.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	if blocks.Valid {
		if err := json.Unmarshal([]byte(blocks.String), &cp.Blocks); err != nil {
			return nil, err
		}
	}
	if blocksAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, blocksAt.String)
		if err != nil {
			return nil, err
		}
		cp.BlocksAt = &t
	}
	if detections.Valid {
		if err := json.Unmarshal([]byte(detections.String), &cp.Detections); err != nil {
			return nil, err
		}
	}
	if failure.Valid {
		cp.Failure = &entity.FailureReport{}
		if err := json.Unmarshal([]byte(failure.String), cp.Failure); err != nil {
			return nil, err
		}
	}
	return cp, nil
}

// MemoryJournal keeps checkpoints in process; used by tests and dry runs.
type MemoryJournal struct {
	mu  sync.Mutex
	cps map[string][]byte
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{cps: map[string][]byte{}}
}

// Checkpoints are stored as JSON so callers never share slices with the journal.
func (j *MemoryJournal) Save(ctx context.Context, cp *entity.Checkpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cps[cp.RunKey] = b
	return nil
}

func (j *MemoryJournal) Load(ctx context.Context, runKey string) (*entity.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j.mu.Lock()
	b, ok := j.cps[runKey]
	j.mu.Unlock()
	if !ok {
		return nil, nil
	}
	cp := &entity.Checkpoint{}
	if err := json.Unmarshal(b, cp); err != nil {
		return nil, err
	}
	return cp, nil
}
