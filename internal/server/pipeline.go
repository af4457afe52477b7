package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/async"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
	"github.com/joseph-ayodele/statements-tracker/internal/pipeline"
	"github.com/joseph-ayodele/statements-tracker/internal/repository"
)

const maxListLimit = 500

type PipelineService struct {
	runner  pipeline.Runner
	records repository.RecordRepository
	queue   async.Queue
	logger  *slog.Logger
}

// NewPipelineService wires the transport to a runner and record store. queue
// may be nil, in which case Submit reports Unavailable.
func NewPipelineService(runner pipeline.Runner, records repository.RecordRepository, queue async.Queue, logger *slog.Logger) *PipelineService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineService{runner: runner, records: records, queue: queue, logger: logger}
}

func (s *PipelineService) Process(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := parseRequest(in)
	if err != nil {
		return nil, err
	}
	s.logger.Info("rpc.process.start", "document_key", req.DocumentKey, "force", req.Force)

	out, err := s.runner.Run(ctx, req)
	if err != nil {
		s.logger.Error("rpc.process.failed", "document_key", req.DocumentKey, "err", err)
		return nil, common.ToStatus(err)
	}
	return outcomeStruct(out)
}

func (s *PipelineService) Submit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.queue == nil {
		return nil, status.Error(codes.Unavailable, "background processing is disabled")
	}
	req, err := parseRequest(in)
	if err != nil {
		return nil, err
	}
	traceID := uuid.NewString()
	job := async.Job{Request: req, SubmittedAt: time.Now().UTC(), TraceID: traceID}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Warn("rpc.submit.rejected", "document_key", req.DocumentKey, "err", err)
		if errors.Is(err, async.ErrQueueClosed) {
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		return nil, status.FromContextError(err).Err()
	}
	return structpb.NewStruct(map[string]any{
		"trace_id":     traceID,
		"document_key": req.DocumentKey,
		"submitted_at": job.SubmittedAt.Format(time.RFC3339Nano),
	})
}

func (s *PipelineService) GetRecord(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	docKey := strings.TrimSpace(stringField(in, "document_key"))
	if docKey == "" {
		return nil, common.InvalidArgumentError("document_key is required")
	}
	st, ok := constants.ParseStatementType(stringField(in, "statement_type"))
	if !ok || st == constants.Unknown {
		return nil, common.InvalidArgumentErrorf("statement_type must be one of %s", strings.Join(constants.AsStringSlice(), ", "))
	}
	periodKey := strings.TrimSpace(stringField(in, "period_key"))
	if periodKey == "" {
		return nil, common.InvalidArgumentError("period_key is required")
	}

	rec, err := s.records.Get(ctx, docKey, st, periodKey)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			s.logger.Warn("rpc.get_record.failed", "document_key", docKey, "err", err)
		}
		return nil, common.ToStatus(err)
	}
	return structpb.NewStruct(map[string]any{"record": recordMap(rec)})
}

func (s *PipelineService) ListRecords(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	filter := repository.RecordFilter{
		DocumentKey: strings.TrimSpace(stringField(in, "document_key")),
		Limit:       int(numberField(in, "limit")),
	}
	if raw := stringField(in, "statement_type"); raw != "" {
		st, ok := constants.ParseStatementType(raw)
		if !ok {
			return nil, common.InvalidArgumentErrorf("unknown statement_type %q", raw)
		}
		filter.Type = st
	}
	if raw := stringField(in, "status"); raw != "" {
		switch vs := constants.ValidationStatus(strings.ToUpper(raw)); vs {
		case constants.StatusAccepted, constants.StatusRejected:
			filter.Status = vs
		default:
			return nil, common.InvalidArgumentErrorf("unknown status %q", raw)
		}
	}
	if filter.Limit <= 0 || filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	recs, err := s.records.List(ctx, filter)
	if err != nil {
		s.logger.Warn("rpc.list_records.failed", "err", err)
		return nil, common.ToStatus(err)
	}
	items := make([]any, 0, len(recs))
	for _, r := range recs {
		items = append(items, recordMap(r))
	}
	return structpb.NewStruct(map[string]any{"records": items})
}

func parseRequest(in *structpb.Struct) (pipeline.Request, error) {
	req := pipeline.Request{
		DocumentKey: strings.TrimSpace(stringField(in, "document_key")),
		ContentType: strings.TrimSpace(stringField(in, "content_type")),
		Force:       boolField(in, "force"),
	}
	if req.DocumentKey == "" {
		return req, common.InvalidArgumentError("document_key is required")
	}
	return req, nil
}

func stringField(in *structpb.Struct, name string) string {
	return in.GetFields()[name].GetStringValue()
}

func boolField(in *structpb.Struct, name string) bool {
	return in.GetFields()[name].GetBoolValue()
}

func numberField(in *structpb.Struct, name string) float64 {
	return in.GetFields()[name].GetNumberValue()
}

func outcomeStruct(out pipeline.Outcome) (*structpb.Struct, error) {
	m := map[string]any{
		"run_id": out.RunID,
		"state":  string(out.State),
		"reused": out.Reused,
	}
	recs := make([]any, 0, len(out.Records))
	for _, r := range out.Records {
		recs = append(recs, recordMap(r))
	}
	m["records"] = recs
	if len(out.Unknown) > 0 {
		unknown := make([]any, 0, len(out.Unknown))
		for _, d := range out.Unknown {
			unknown = append(unknown, map[string]any{
				"title":     d.Title,
				"first_seq": d.FirstSeq,
				"last_seq":  d.LastSeq,
				"period":    periodMap(d.Period),
			})
		}
		m["unknown"] = unknown
	}
	if f := out.Failure; f != nil {
		m["failure"] = map[string]any{
			"code":        f.Code,
			"message":     f.Message,
			"state":       string(f.State),
			"attempts":    f.Attempts,
			"retryable":   f.Retryable,
			"occurred_at": f.OccurredAt.Format(time.RFC3339Nano),
		}
	}
	return structpb.NewStruct(m)
}

func recordMap(r *entity.StatementRecord) map[string]any {
	items := make([]any, 0, len(r.Items))
	for _, it := range r.Items {
		item := map[string]any{
			"raw_label":       it.RawLabel,
			"currency":        it.Currency,
			"unit_multiplier": it.UnitMultiplier,
			"page":            it.Source.Page,
		}
		if it.Mapped() {
			item["taxonomy_key"] = it.Key()
		} else {
			item["taxonomy_key"] = nil
		}
		if it.Value.Valid {
			item["value"] = it.Value.Decimal.String()
		} else {
			item["value"] = nil
		}
		if it.Source.Sheet != "" {
			item["sheet"] = it.Source.Sheet
		}
		items = append(items, item)
	}
	findings := make([]any, 0, len(r.Findings))
	for _, f := range r.Findings {
		keys := make([]any, len(f.Keys))
		for i, k := range f.Keys {
			keys[i] = k
		}
		findings = append(findings, map[string]any{
			"rule_id":  f.RuleID,
			"severity": string(f.Severity),
			"keys":     keys,
			"message":  f.Message,
		})
	}
	return map[string]any{
		"id":                r.ID.String(),
		"document_key":      r.DocumentKey,
		"statement_type":    string(r.Type),
		"period":            periodMap(r.Period),
		"period_key":        r.Period.Key(),
		"items":             items,
		"findings":          findings,
		"validation_status": string(r.Status),
		"confidence":        r.Confidence,
		"scale":             r.Scale,
		"currency":          r.Currency,
		"run_id":            r.RunID,
		"processed_at":      r.ProcessedAt.Format(time.RFC3339Nano),
	}
}

func periodMap(p entity.PeriodSpec) map[string]any {
	m := map[string]any{"label": p.Label}
	if p.Start != nil {
		m["start"] = p.Start.Format("2006-01-02")
	}
	if p.End != nil {
		m["end"] = p.End.Format("2006-01-02")
	}
	return m
}
