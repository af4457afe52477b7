package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/statements-tracker/constants"
)

// recordNamespace seeds deterministic record IDs.
var recordNamespace = uuid.MustParse("6f1c2a4e-53b0-4d55-9f61-0c9f0d6f7a21")

// NaturalKey identifies a statement record across runs.
type NaturalKey struct {
	DocumentKey string
	Type        constants.StatementType
	PeriodKey   string
}

// ID is the stable record ID for the key.
func (k NaturalKey) ID() uuid.UUID {
	return uuid.NewSHA1(recordNamespace, []byte(k.DocumentKey+"\x00"+string(k.Type)+"\x00"+k.PeriodKey))
}

func (k NaturalKey) String() string {
	return k.DocumentKey + "/" + string(k.Type) + "/" + k.PeriodKey
}

// StatementRecord is the persisted outcome for one (document, type, period).
type StatementRecord struct {
	ID          uuid.UUID                  `json:"id"`
	DocumentKey string                     `json:"document_key"`
	Type        constants.StatementType    `json:"statement_type"`
	Period      PeriodSpec                 `json:"period"`
	Items       []LineItem                 `json:"items"`
	Findings    []Finding                  `json:"findings"`
	Status      constants.ValidationStatus `json:"validation_status"`
	Confidence  float64                    `json:"confidence"`
	Scale       int64                      `json:"scale"`
	Currency    string                     `json:"currency"`
	RunID       string                     `json:"run_id"`
	ProcessedAt time.Time                  `json:"processed_at"`
}

// Key returns the record's natural key.
func (r *StatementRecord) Key() NaturalKey {
	return NaturalKey{DocumentKey: r.DocumentKey, Type: r.Type, PeriodKey: r.Period.Key()}
}

// SameContent compares everything except run metadata (RunID, ProcessedAt).
func (r *StatementRecord) SameContent(o *StatementRecord) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.ID != o.ID || r.DocumentKey != o.DocumentKey || r.Type != o.Type ||
		r.Period.Key() != o.Period.Key() || r.Period.Label != o.Period.Label ||
		r.Status != o.Status || r.Confidence != o.Confidence ||
		r.Scale != o.Scale || r.Currency != o.Currency {
		return false
	}
	if len(r.Items) != len(o.Items) || len(r.Findings) != len(o.Findings) {
		return false
	}
	for i := range r.Items {
		a, b := r.Items[i], o.Items[i]
		if a.Key() != b.Key() || a.Mapped() != b.Mapped() || a.RawLabel != b.RawLabel ||
			a.Currency != b.Currency || a.UnitMultiplier != b.UnitMultiplier ||
			a.Value.Valid != b.Value.Valid || a.Source != b.Source {
			return false
		}
		if a.Value.Valid && !a.Value.Decimal.Equal(b.Value.Decimal) {
			return false
		}
	}
	for i := range r.Findings {
		a, b := r.Findings[i], o.Findings[i]
		if a.RuleID != b.RuleID || a.Severity != b.Severity || a.Message != b.Message || len(a.Keys) != len(b.Keys) {
			return false
		}
		for j := range a.Keys {
			if a.Keys[j] != b.Keys[j] {
				return false
			}
		}
	}
	return true
}
