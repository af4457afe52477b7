package entity

import "github.com/joseph-ayodele/statements-tracker/constants"

// Detection is one statement found by the classifier: its type, period and the
// block range (by Seq) that holds it.
type Detection struct {
	Type     constants.StatementType `json:"type"`
	Period   PeriodSpec              `json:"period"`
	FirstSeq int                     `json:"first_seq"`
	LastSeq  int                     `json:"last_seq"`
	Title    string                  `json:"title,omitempty"`
	Header   string                  `json:"header,omitempty"` // text near the title (units, currency)
	Findings []Finding               `json:"findings,omitempty"`
}

// Contains reports whether the block at seq falls within the detection's region.
func (d Detection) Contains(seq int) bool {
	return seq >= d.FirstSeq && seq <= d.LastSeq
}
