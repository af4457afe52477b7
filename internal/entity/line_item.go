package entity

import "github.com/shopspring/decimal"

// SourceRef points back at the block a line item was read from.
type SourceRef struct {
	Page  int    `json:"page"`
	Sheet string `json:"sheet,omitempty"`
	Seq   int    `json:"seq"`
	Row   int    `json:"row"`
	Col   int    `json:"col"`
}

// LineItem is a canonical line item. TaxonomyKey is nil for labels the
// taxonomy could not resolve; such items are kept rather than dropped.
type LineItem struct {
	TaxonomyKey    *string             `json:"taxonomy_key"`
	RawLabel       string              `json:"raw_label"`
	Value          decimal.NullDecimal `json:"value"`
	RawValue       string              `json:"raw_value,omitempty"`
	Currency       string              `json:"currency"`
	UnitMultiplier int64               `json:"unit_multiplier"`
	Source         SourceRef           `json:"source"`
}

// Key returns the taxonomy key or "" when unmapped.
func (li LineItem) Key() string {
	if li.TaxonomyKey == nil {
		return ""
	}
	return *li.TaxonomyKey
}

// Mapped reports whether the label resolved to a taxonomy key.
func (li LineItem) Mapped() bool { return li.TaxonomyKey != nil }

// StrPtr is a small helper for optional string fields.
func StrPtr(s string) *string { return &s }
