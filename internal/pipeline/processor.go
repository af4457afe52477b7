// Package pipeline drives one document through extraction, classification,
// mapping and validation as an explicit, journaled state machine.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/blob"
	"github.com/joseph-ayodele/statements-tracker/internal/classify"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
	"github.com/joseph-ayodele/statements-tracker/internal/extract"
	"github.com/joseph-ayodele/statements-tracker/internal/mapper"
	"github.com/joseph-ayodele/statements-tracker/internal/repository"
	"github.com/joseph-ayodele/statements-tracker/internal/validate"
)

// Request asks for one document to be processed.
type Request struct {
	DocumentKey string
	ContentType string // optional; the blob's content type is used when empty
	Force       bool   // reprocess even when the last run completed
}

// Outcome is the result of a run. Failure is set iff State is Failed.
type Outcome struct {
	RunID   string
	State   constants.RunState
	Records []*entity.StatementRecord
	Unknown []entity.Detection // regions no statement type could be assigned to
	Failure *entity.FailureReport
	Reused  bool // records re-emitted from a completed run
}

// Runner is what the queue and transports depend on.
type Runner interface {
	Run(ctx context.Context, req Request) (Outcome, error)
}

type Config struct {
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	CacheTTL       time.Duration // 0 disables the extraction cache
	Logger         *slog.Logger
	Now            func() time.Time
}

func (c *Config) defaults() {
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = 200 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 5 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
}

// Processor coordinates the four stages and the persistence around them.
type Processor struct {
	Blobs      blob.Store
	Extractor  extract.Extractor
	Classifier classify.Classifier
	Mapper     mapper.Mapper
	Validator  validate.Validator
	Records    repository.RecordRepository
	Journal    repository.RunJournal

	cfg Config
}

func NewProcessor(
	cfg Config,
	blobs blob.Store,
	ex extract.Extractor,
	cl classify.Classifier,
	mp mapper.Mapper,
	va validate.Validator,
	records repository.RecordRepository,
	journal repository.RunJournal,
) *Processor {
	cfg.defaults()
	return &Processor{
		Blobs:      blobs,
		Extractor:  ex,
		Classifier: cl,
		Mapper:     mp,
		Validator:  va,
		Records:    records,
		Journal:    journal,
		cfg:        cfg,
	}
}

// run is the mutable state of a single Run call.
type run struct {
	req     Request
	cp      *entity.Checkpoint
	prev    *entity.Checkpoint
	blocks  []entity.Block
	dets    []entity.Detection
	results []mapper.Result
	out     Outcome
	log     *slog.Logger
}

// Run processes req to a terminal state. The returned error is reserved for
// faults that prevent a failure report from being recorded; normal failures
// are reported through Outcome.Failure.
func (p *Processor) Run(ctx context.Context, req Request) (Outcome, error) {
	req.DocumentKey = strings.TrimSpace(req.DocumentKey)
	if req.DocumentKey == "" {
		return Outcome{}, common.NewAppError("INVALID_REQUEST", "document key is required", common.ErrInvalidInput)
	}
	if req.ContentType != "" {
		req.ContentType = constants.NormalizeContentType(req.ContentType)
	}

	runID := uuid.NewString()
	log := p.cfg.Logger.With("run_id", runID, "document_key", req.DocumentKey)
	if traceID := common.TraceIDFromContext(ctx); traceID != "" {
		log = log.With("trace_id", traceID)
	}
	r := &run{
		req: req,
		log: log,
		cp: &entity.Checkpoint{
			RunKey:      req.DocumentKey,
			RunID:       runID,
			ContentType: req.ContentType,
			State:       constants.RunPending,
		},
	}
	r.out.RunID = runID
	ctx = common.WithLogger(ctx, r.log)

	if err := ctx.Err(); err != nil {
		return p.fail(ctx, r, cancelled(err))
	}
	prev, err := p.Journal.Load(ctx, req.DocumentKey)
	if err != nil {
		r.log.Error("pipeline.journal.load_failed", "err", err)
		return Outcome{RunID: runID}, err
	}
	r.prev = prev

	if prev != nil && prev.State == constants.RunCompleted && !req.Force {
		return p.reuse(ctx, r)
	}

	r.log.Info("pipeline.run.start", "force", req.Force, "resumed_from", stateOf(prev))
	if err := p.save(ctx, r); err != nil {
		return p.fail(ctx, r, err)
	}

	steps := []struct {
		state constants.RunState
		fn    func(context.Context, *run) error
	}{
		{constants.RunExtracting, p.extract},
		{constants.RunClassifying, p.classify},
		{constants.RunMapping, p.mapStatements},
		{constants.RunValidating, p.validate},
	}
	for _, step := range steps {
		if err := p.transition(ctx, r, step.state); err != nil {
			return p.fail(ctx, r, err)
		}
		if err := step.fn(ctx, r); err != nil {
			return p.fail(ctx, r, err)
		}
	}
	if err := p.transition(ctx, r, constants.RunCompleted); err != nil {
		return p.fail(ctx, r, err)
	}

	r.out.State = constants.RunCompleted
	r.log.Info("pipeline.run.completed",
		"records", len(r.out.Records),
		"unknown", len(r.out.Unknown),
		"attempts", r.cp.Attempts,
	)
	return r.out, nil
}

// transition moves the run to next and persists the checkpoint. Cancellation
// is observed here, between every pair of stages.
func (p *Processor) transition(ctx context.Context, r *run, next constants.RunState) error {
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}
	if r.cp.State.Terminal() || next.Rank() != r.cp.State.Rank()+1 {
		return common.NewAppError(common.CodeInternal, "illegal transition "+string(r.cp.State)+" -> "+string(next), common.ErrInternal)
	}
	r.cp.State = next
	r.log.Debug("pipeline.state", "state", next)
	return p.save(ctx, r)
}

func (p *Processor) save(ctx context.Context, r *run) error {
	r.cp.UpdatedAt = p.cfg.Now()
	if err := p.Journal.Save(ctx, r.cp); err != nil {
		r.log.Error("pipeline.journal.save_failed", "state", r.cp.State, "err", err)
		return err
	}
	return nil
}

// fail records a FailureReport for the state the run was in and ends it.
func (p *Processor) fail(ctx context.Context, r *run, cause error) (Outcome, error) {
	code := common.ErrorCode(cause)
	if ctx.Err() != nil {
		code = common.CodeCancelled
	}
	report := &entity.FailureReport{
		DocumentKey: r.req.DocumentKey,
		RunID:       r.cp.RunID,
		State:       r.cp.State,
		Code:        code,
		Message:     cause.Error(),
		Attempts:    r.cp.Attempts,
		Retryable:   common.IsRetryable(cause),
		OccurredAt:  p.cfg.Now(),
	}
	r.cp.State = constants.RunFailed
	r.cp.Failure = report
	r.out.State = constants.RunFailed
	r.out.Failure = report
	r.out.Records = nil

	r.log.Error("pipeline.run.failed", "state", report.State, "code", code, "attempts", report.Attempts, "err", cause)
	// the failure is recorded even when the run itself was cancelled
	if err := p.save(context.WithoutCancel(ctx), r); err != nil {
		return r.out, errors.Join(report, err)
	}
	return r.out, nil
}

// reuse re-emits the records of a completed run without reprocessing.
func (p *Processor) reuse(ctx context.Context, r *run) (Outcome, error) {
	recs, err := p.Records.ListByDocument(ctx, r.req.DocumentKey)
	if err != nil {
		r.log.Error("pipeline.records.list_failed", "err", err)
		return Outcome{RunID: r.prev.RunID}, err
	}
	out := Outcome{
		RunID:   r.prev.RunID,
		State:   constants.RunCompleted,
		Records: recs,
		Reused:  true,
	}
	for _, d := range r.prev.Detections {
		if d.Type == constants.Unknown {
			out.Unknown = append(out.Unknown, d)
		}
	}
	r.log.Info("pipeline.run.reused", "previous_run_id", r.prev.RunID, "records", len(recs))
	return out, nil
}

func cancelled(err error) error {
	return common.NewAppError(common.CodeCancelled, "run cancelled", errors.Join(common.ErrCancelled, err))
}

func stateOf(cp *entity.Checkpoint) string {
	if cp == nil {
		return ""
	}
	return string(cp.State)
}
