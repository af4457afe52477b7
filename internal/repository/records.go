package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/joseph-ayodele/statements-tracker/constants"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
	"github.com/joseph-ayodele/statements-tracker/internal/entity"
	"github.com/joseph-ayodele/statements-tracker/internal/taxonomy"
)

// RecordRepository persists statement records keyed by (document, type, period).
// Upsert replaces any existing record with the same natural key.
type RecordRepository interface {
	Upsert(ctx context.Context, rec *entity.StatementRecord) error
	Get(ctx context.Context, documentKey string, st constants.StatementType, periodKey string) (*entity.StatementRecord, error)
	ListByDocument(ctx context.Context, documentKey string) ([]*entity.StatementRecord, error)
	List(ctx context.Context, filter RecordFilter) ([]*entity.StatementRecord, error)
}

// RecordFilter narrows List. Zero fields match everything.
type RecordFilter struct {
	DocumentKey string
	Type        constants.StatementType
	Status      constants.ValidationStatus
	Limit       int
}

func (f RecordFilter) match(r *entity.StatementRecord) bool {
	if f.DocumentKey != "" && r.DocumentKey != f.DocumentKey {
		return false
	}
	if f.Type != "" && r.Type != f.Type {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

// checkRecord re-validates a record before it is written: taxonomy keys must be
// valid for the statement type and unique, and the status must agree with the
// findings.
func checkRecord(tax *taxonomy.Taxonomy, rec *entity.StatementRecord) error {
	if rec == nil {
		return common.NewAppError("INVALID_RECORD", "nil record", common.ErrInvalidInput)
	}
	v := common.NewValidator().
		Field("document_key", rec.DocumentKey, common.Required).
		Field("statement_type", string(rec.Type), common.OneOf(constants.AsStringSlice()...)).
		Field("validation_status", string(rec.Status), common.OneOf(string(constants.StatusAccepted), string(constants.StatusRejected)))
	if v.HasErrors() {
		return common.NewAppError("INVALID_RECORD", v.ErrorMessage(), common.ErrInvalidInput)
	}
	if err := rec.Period.Validate(); err != nil {
		return common.NewAppError("INVALID_RECORD", err.Error(), common.ErrInvalidInput)
	}
	if rec.ID != rec.Key().ID() {
		return common.NewAppError("INVALID_RECORD", fmt.Sprintf("record id %s does not match natural key %s", rec.ID, rec.Key()), common.ErrInvalidInput)
	}
	seen := make(map[string]bool, len(rec.Items))
	for _, it := range rec.Items {
		if !it.Mapped() {
			continue
		}
		key := it.Key()
		if tax != nil && !tax.Valid(rec.Type, key) {
			return common.NewAppError("INVALID_RECORD", fmt.Sprintf("taxonomy key %q not valid for %s", key, rec.Type), common.ErrInvalidInput)
		}
		if seen[key] {
			return common.NewAppError("INVALID_RECORD", fmt.Sprintf("duplicate taxonomy key %q", key), common.ErrInvalidInput)
		}
		seen[key] = true
	}
	errs := entity.CountSeverity(rec.Findings, constants.SeverityError)
	if (rec.Status == constants.StatusRejected) != (errs > 0) {
		return common.NewAppError("INVALID_RECORD", fmt.Sprintf("status %s inconsistent with %d error findings", rec.Status, errs), common.ErrInvalidInput)
	}
	return nil
}

func notFoundRecord(k entity.NaturalKey) error {
	return common.NewAppError(common.CodeNotFound, "statement record "+k.String(), common.ErrNotFound)
}

func sortRecords(recs []*entity.StatementRecord) {
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.DocumentKey != b.DocumentKey {
			return a.DocumentKey < b.DocumentKey
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Period.Key() < b.Period.Key()
	})
}

func cloneRecord(r *entity.StatementRecord) *entity.StatementRecord {
	out := *r
	out.Items = append([]entity.LineItem(nil), r.Items...)
	for i := range out.Items {
		if k := out.Items[i].TaxonomyKey; k != nil {
			out.Items[i].TaxonomyKey = entity.StrPtr(*k)
		}
	}
	out.Findings = make([]entity.Finding, len(r.Findings))
	for i, f := range r.Findings {
		f.Keys = append([]string(nil), f.Keys...)
		out.Findings[i] = f
	}
	return &out
}
