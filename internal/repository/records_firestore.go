package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
	"github.com/joseph-ayodele/statements-tracker/internal/taxonomy"
)

// NewFirestoreClient creates a Firestore client for the given project.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return client, nil
}

type fsLineItem struct {
	TaxonomyKey    string `firestore:"taxonomyKey,omitempty"`
	RawLabel       string `firestore:"rawLabel"`
	Value          string `firestore:"value,omitempty"`
	HasValue       bool   `firestore:"hasValue"`
	RawValue       string `firestore:"rawValue,omitempty"`
	Currency       string `firestore:"currency"`
	UnitMultiplier int64  `firestore:"unitMultiplier"`
	Page           int    `firestore:"page"`
	Sheet          string `firestore:"sheet,omitempty"`
	Seq            int    `firestore:"seq"`
	Row            int    `firestore:"row"`
	Col            int    `firestore:"col"`
}

type fsFinding struct {
	RuleID   string   `firestore:"ruleId"`
	Severity string   `firestore:"severity"`
	Keys     []string `firestore:"keys,omitempty"`
	Message  string   `firestore:"message"`
}

// fsRecord is the Firestore document shape. Decimals travel as strings.
type fsRecord struct {
	DocumentKey string       `firestore:"documentKey"`
	Type        string       `firestore:"statementType"`
	PeriodKey   string       `firestore:"periodKey"`
	PeriodStart *time.Time   `firestore:"periodStart"`
	PeriodEnd   *time.Time   `firestore:"periodEnd"`
	PeriodLabel string       `firestore:"periodLabel"`
	Status      string       `firestore:"status"`
	Confidence  float64      `firestore:"confidence"`
	Scale       int64        `firestore:"scale"`
	Currency    string       `firestore:"currency"`
	Items       []fsLineItem `firestore:"items"`
	Findings    []fsFinding  `firestore:"findings"`
	RunID       string       `firestore:"runId"`
	ProcessedAt time.Time    `firestore:"processedAt"`
}

func toFirestore(rec *entity.StatementRecord) fsRecord {
	doc := fsRecord{
		DocumentKey: rec.DocumentKey,
		Type:        string(rec.Type),
		PeriodKey:   rec.Period.Key(),
		PeriodStart: rec.Period.Start,
		PeriodEnd:   rec.Period.End,
		PeriodLabel: rec.Period.Label,
		Status:      string(rec.Status),
		Confidence:  rec.Confidence,
		Scale:       rec.Scale,
		Currency:    rec.Currency,
		Items:       make([]fsLineItem, 0, len(rec.Items)),
		Findings:    make([]fsFinding, 0, len(rec.Findings)),
		RunID:       rec.RunID,
		ProcessedAt: rec.ProcessedAt.UTC(),
	}
	for _, it := range rec.Items {
		fi := fsLineItem{
			TaxonomyKey:    it.Key(),
			RawLabel:       it.RawLabel,
			HasValue:       it.Value.Valid,
			RawValue:       it.RawValue,
			Currency:       it.Currency,
			UnitMultiplier: it.UnitMultiplier,
			Page:           it.Source.Page,
			Sheet:          it.Source.Sheet,
			Seq:            it.Source.Seq,
			Row:            it.Source.Row,
			Col:            it.Source.Col,
		}
		if it.Value.Valid {
			fi.Value = it.Value.Decimal.String()
		}
		doc.Items = append(doc.Items, fi)
	}
	for _, f := range rec.Findings {
		doc.Findings = append(doc.Findings, fsFinding{
			RuleID:   f.RuleID,
			Severity: string(f.Severity),
			Keys:     f.Keys,
			Message:  f.Message,
		})
	}
	return doc
}

func fromFirestore(id string, doc fsRecord) (*entity.StatementRecord, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	rec := &entity.StatementRecord{
		ID:          uid,
		DocumentKey: doc.DocumentKey,
		Type:        constants.StatementType(doc.Type),
		Period:      entity.PeriodSpec{Start: utcDate(doc.PeriodStart), End: utcDate(doc.PeriodEnd), Label: doc.PeriodLabel},
		Status:      constants.ValidationStatus(doc.Status),
		Confidence:  doc.Confidence,
		Scale:       doc.Scale,
		Currency:    doc.Currency,
		RunID:       doc.RunID,
		ProcessedAt: doc.ProcessedAt.UTC(),
	}
	for _, fi := range doc.Items {
		it := entity.LineItem{
			RawLabel:       fi.RawLabel,
			RawValue:       fi.RawValue,
			Currency:       fi.Currency,
			UnitMultiplier: fi.UnitMultiplier,
			Source:         entity.SourceRef{Page: fi.Page, Sheet: fi.Sheet, Seq: fi.Seq, Row: fi.Row, Col: fi.Col},
		}
		if fi.TaxonomyKey != "" {
			it.TaxonomyKey = entity.StrPtr(fi.TaxonomyKey)
		}
		if fi.HasValue {
			d, err := decimal.NewFromString(fi.Value)
			if err != nil {
				return nil, fmt.Errorf("record %s item %q: %w", id, fi.RawLabel, err)
			}
			it.Value = decimal.NewNullDecimal(d)
		}
		rec.Items = append(rec.Items, it)
	}
	for _, f := range doc.Findings {
		rec.Findings = append(rec.Findings, entity.Finding{
			RuleID:   f.RuleID,
			Severity: constants.Severity(f.Severity),
			Keys:     f.Keys,
			Message:  f.Message,
		})
	}
	return rec, nil
}

func utcDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

type firestoreRecordRepo struct {
	client     *firestore.Client
	collection string
	tax        *taxonomy.Taxonomy
	logger     *slog.Logger
}

// NewFirestoreRecordRepository stores one document per record, keyed by the
// record's deterministic ID.
func NewFirestoreRecordRepository(client *firestore.Client, collection string, tax *taxonomy.Taxonomy, logger *slog.Logger) RecordRepository {
	if logger == nil {
		logger = slog.Default()
	}
	if collection == "" {
		collection = recordsTable
	}
	return &firestoreRecordRepo{client: client, collection: collection, tax: tax, logger: logger}
}

func (r *firestoreRecordRepo) Upsert(ctx context.Context, rec *entity.StatementRecord) error {
	if err := checkRecord(r.tax, rec); err != nil {
		return err
	}
	ref := r.client.Collection(r.collection).Doc(rec.ID.String())
	doc := toFirestore(rec)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// Firestore requires reads before writes; the read enlists ref so a
		// concurrent writer forces a retry.
		if _, err := tx.Get(ref); err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		return tx.Set(ref, doc)
	})
	if err != nil {
		common.LoggerFromContext(ctx, r.logger).Error("firestore record upsert failed", "key", rec.Key().String(), "err", err)
		return err
	}
	return nil
}

func (r *firestoreRecordRepo) Get(ctx context.Context, documentKey string, st constants.StatementType, periodKey string) (*entity.StatementRecord, error) {
	k := entity.NaturalKey{DocumentKey: documentKey, Type: st, PeriodKey: periodKey}
	snap, err := r.client.Collection(r.collection).Doc(k.ID().String()).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, notFoundRecord(k)
	}
	if err != nil {
		return nil, err
	}
	var doc fsRecord
	if err := snap.DataTo(&doc); err != nil {
		return nil, err
	}
	return fromFirestore(snap.Ref.ID, doc)
}

func (r *firestoreRecordRepo) ListByDocument(ctx context.Context, documentKey string) ([]*entity.StatementRecord, error) {
	return r.List(ctx, RecordFilter{DocumentKey: documentKey})
}

func (r *firestoreRecordRepo) List(ctx context.Context, filter RecordFilter) ([]*entity.StatementRecord, error) {
	q := r.client.Collection(r.collection).Query
	if filter.DocumentKey != "" {
		q = q.Where("documentKey", "==", filter.DocumentKey)
	}
	if filter.Type != "" {
		q = q.Where("statementType", "==", string(filter.Type))
	}
	if filter.Status != "" {
		q = q.Where("status", "==", string(filter.Status))
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []*entity.StatementRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			common.LoggerFromContext(ctx, r.logger).Error("firestore record list failed", "err", err)
			return nil, err
		}
		var doc fsRecord
		if err := snap.DataTo(&doc); err != nil {
			return nil, err
		}
		rec, err := fromFirestore(snap.Ref.ID, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	// Ordering is applied here so the query needs no composite index.
	sortRecords(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
