package entity

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// PeriodSpec is the fiscal window a statement covers. Either bound may be unknown.
type PeriodSpec struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
	Label string     `json:"label,omitempty"`
}

// Date returns a UTC midnight time for y-m-d.
func Date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// Open reports whether both bounds are unknown.
func (p PeriodSpec) Open() bool { return p.Start == nil && p.End == nil }

// Partial reports whether at least one bound is unknown.
func (p PeriodSpec) Partial() bool { return p.Start == nil || p.End == nil }

// Validate enforces start <= end.
func (p PeriodSpec) Validate() error {
	if p.Start != nil && p.End != nil && p.Start.After(*p.End) {
		return fmt.Errorf("period start %s after end %s", p.Start.Format(dateLayout), p.End.Format(dateLayout))
	}
	return nil
}

// Key is the period component of a record's natural key.
func (p PeriodSpec) Key() string {
	if p.Open() {
		label := strings.ToLower(strings.Join(strings.Fields(p.Label), " "))
		if label == "" {
			return "undated"
		}
		return "label:" + label
	}
	return bound(p.Start) + ".." + bound(p.End)
}

func (p PeriodSpec) String() string {
	if p.Label != "" {
		return p.Label
	}
	return p.Key()
}

func bound(t *time.Time) string {
	if t == nil {
		return "open"
	}
	return t.UTC().Format(dateLayout)
}
