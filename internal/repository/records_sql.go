package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
	"github.com/joseph-ayodele/statements-tracker/internal/taxonomy"
)

const dateLayout = "2006-01-02"

var recordColumns = []string{
	"id", "document_key", "statement_type", "period_key", "period_start", "period_end",
	"period_label", "status", "confidence", "scale", "currency", "findings_json", "run_id", "processed_at",
}

var itemColumns = []string{
	"record_id", "ordinal", "taxonomy_key", "raw_label", "value", "raw_value", "has_value",
	"currency", "unit_multiplier", "page", "sheet", "seq", "row_idx", "col_idx",
}

type sqlRecordRepo struct {
	db     *DB
	tax    *taxonomy.Taxonomy
	logger *slog.Logger
}

// NewRecordRepository returns the SQL-backed record store. tax may be nil to
// skip taxonomy key checks.
func NewRecordRepository(db *DB, tax *taxonomy.Taxonomy, logger *slog.Logger) RecordRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &sqlRecordRepo{db: db, tax: tax, logger: logger}
}

func (r *sqlRecordRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.db.Dialect)
}

// Upsert writes the record row by natural key and replaces its line items in
// one transaction.
func (r *sqlRecordRepo) Upsert(ctx context.Context, rec *entity.StatementRecord) (err error) {
	if err := checkRecord(r.tax, rec); err != nil {
		return err
	}
	findings, err := json.Marshal(rec.Findings)
	if err != nil {
		return err
	}

	id := rec.ID.String()
	insert, insertArgs := r.builder().Insert(recordsTable).
		Columns(recordColumns...).
		Values(
			id, rec.DocumentKey, string(rec.Type), rec.Period.Key(),
			nullDate(rec.Period.Start), nullDate(rec.Period.End), rec.Period.Label,
			string(rec.Status), rec.Confidence, rec.Scale, rec.Currency,
			string(findings), rec.RunID, rec.ProcessedAt.UTC().Format(time.RFC3339Nano),
		).
		OnConflict(
			entsql.ConflictColumns("document_key", "statement_type", "period_key"),
			entsql.ResolveWithNewValues(),
		).
		Query()
	del, delArgs := r.builder().Delete(itemsTable).Where(entsql.EQ("record_id", id)).Query()

	tx, err := r.db.Driver.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				common.LoggerFromContext(ctx, r.logger).Warn("statement_record rollback failed", "id", id, "err", rerr)
			}
		}
	}()

	if err = tx.Exec(ctx, insert, insertArgs, nil); err != nil {
		common.LoggerFromContext(ctx, r.logger).Error("statement_record upsert failed", "key", rec.Key().String(), "err", err)
		return err
	}
	if err = tx.Exec(ctx, del, delArgs, nil); err != nil {
		common.LoggerFromContext(ctx, r.logger).Error("statement_line_items delete failed", "id", id, "err", err)
		return err
	}
	if len(rec.Items) > 0 {
		ins := r.builder().Insert(itemsTable).Columns(itemColumns...)
		for i, it := range rec.Items {
			var value any
			if it.Value.Valid {
				value = it.Value.Decimal.String()
			}
			var key any
			if it.TaxonomyKey != nil {
				key = *it.TaxonomyKey
			}
			ins.Values(
				id, i, key, it.RawLabel, value, it.RawValue, it.Value.Valid,
				it.Currency, it.UnitMultiplier, it.Source.Page, it.Source.Sheet,
				it.Source.Seq, it.Source.Row, it.Source.Col,
			)
		}
		q, args := ins.Query()
		if err = tx.Exec(ctx, q, args, nil); err != nil {
			common.LoggerFromContext(ctx, r.logger).Error("statement_line_items insert failed", "id", id, "err", err)
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	common.LoggerFromContext(ctx, r.logger).Debug("statement_record upserted", "key", rec.Key().String(), "items", len(rec.Items), "status", rec.Status)
	return nil
}

func (r *sqlRecordRepo) Get(ctx context.Context, documentKey string, st constants.StatementType, periodKey string) (*entity.StatementRecord, error) {
	recs, err := r.query(ctx, RecordFilter{DocumentKey: documentKey, Type: st, Limit: 1}, entsql.EQ("period_key", periodKey))
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, notFoundRecord(entity.NaturalKey{DocumentKey: documentKey, Type: st, PeriodKey: periodKey})
	}
	return recs[0], nil
}

func (r *sqlRecordRepo) ListByDocument(ctx context.Context, documentKey string) ([]*entity.StatementRecord, error) {
	return r.query(ctx, RecordFilter{DocumentKey: documentKey})
}

func (r *sqlRecordRepo) List(ctx context.Context, filter RecordFilter) ([]*entity.StatementRecord, error) {
	return r.query(ctx, filter)
}

func (r *sqlRecordRepo) query(ctx context.Context, f RecordFilter, extra ...*entsql.Predicate) ([]*entity.StatementRecord, error) {
	preds := extra
	if f.DocumentKey != "" {
		preds = append(preds, entsql.EQ("document_key", f.DocumentKey))
	}
	if f.Type != "" {
		preds = append(preds, entsql.EQ("statement_type", string(f.Type)))
	}
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", string(f.Status)))
	}
	sel := r.builder().Select(recordColumns...).From(entsql.Table(recordsTable))
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	sel.OrderBy("document_key", "statement_type", "period_key")
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}
	q, args := sel.Query()

	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, q, args, &rows); err != nil {
		common.LoggerFromContext(ctx, r.logger).Error("statement_records query failed", "err", err)
		return nil, err
	}
	var (
		recs []*entity.StatementRecord
		ids  []any
		byID = map[string]*entity.StatementRecord{}
	)
	for rows.Next() {
		rec, err := scanRecord(&rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		recs = append(recs, rec)
		ids = append(ids, rec.ID.String())
		byID[rec.ID.String()] = rec
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()
	if len(ids) == 0 {
		return nil, nil
	}
	if err := r.loadItems(ctx, ids, byID); err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *sqlRecordRepo) loadItems(ctx context.Context, ids []any, byID map[string]*entity.StatementRecord) error {
	q, args := r.builder().Select(itemColumns...).
		From(entsql.Table(itemsTable)).
		Where(entsql.In("record_id", ids...)).
		OrderBy("record_id", "ordinal").
		Query()
	var rows entsql.Rows
	if err := r.db.Driver.Query(ctx, q, args, &rows); err != nil {
		common.LoggerFromContext(ctx, r.logger).Error("statement_line_items query failed", "err", err)
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			recordID, label, rawValue, currency, sheet string
			ordinal, page, seq, row, col               int
			multiplier                                 int64
			key, value                                 sql.NullString
			hasValue                                   bool
		)
		if err := rows.Scan(&recordID, &ordinal, &key, &label, &value, &rawValue, &hasValue,
			&currency, &multiplier, &page, &sheet, &seq, &row, &col); err != nil {
			return err
		}
		it := entity.LineItem{
			RawLabel:       label,
			RawValue:       rawValue,
			Currency:       currency,
			UnitMultiplier: multiplier,
			Source:         entity.SourceRef{Page: page, Sheet: sheet, Seq: seq, Row: row, Col: col},
		}
		if key.Valid {
			it.TaxonomyKey = entity.StrPtr(key.String)
		}
		if hasValue && value.Valid {
			d, err := decimal.NewFromString(value.String)
			if err != nil {
				return fmt.Errorf("line item %s/%d: %w", recordID, ordinal, err)
			}
			it.Value = decimal.NewNullDecimal(d)
		}
		if rec := byID[recordID]; rec != nil {
			rec.Items = append(rec.Items, it)
		}
	}
	return rows.Err()
}

func scanRecord(rows *entsql.Rows) (*entity.StatementRecord, error) {
	var (
		id, docKey, st, periodKey, label, status, currency, findings, runID, processedAt string
		start, end                                                                       sql.NullString
		confidence                                                                       float64
		scale                                                                            int64
	)
	if err := rows.Scan(&id, &docKey, &st, &periodKey, &start, &end, &label, &status,
		&confidence, &scale, &currency, &findings, &runID, &processedAt); err != nil {
		return nil, err
	}
	rec := &entity.StatementRecord{
		DocumentKey: docKey,
		Type:        constants.StatementType(st),
		Status:      constants.ValidationStatus(status),
		Confidence:  confidence,
		Scale:       scale,
		Currency:    currency,
		RunID:       runID,
		Period:      entity.PeriodSpec{Label: label},
	}
	var err error
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if rec.Period.Start, err = parseDate(start); err != nil {
		return nil, err
	}
	if rec.Period.End, err = parseDate(end); err != nil {
		return nil, err
	}
	if rec.ProcessedAt, err = time.Parse(time.RFC3339Nano, processedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(findings), &rec.Findings); err != nil {
		return nil, fmt.Errorf("record %s findings: %w", id, err)
	}
	return rec, nil
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(dateLayout)
}

func parseDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
