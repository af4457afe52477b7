package entity

import (
	"time"

	"github.com/joseph-ayodele/statements-tracker/constants"
)

// FailureReport is the structured cause carried by every failed run.
type FailureReport struct {
	DocumentKey string             `json:"document_key"`
	RunID       string             `json:"run_id"`
	State       constants.RunState `json:"state"` // state the run was in when it failed
	Code        string             `json:"code"`
	Message     string             `json:"message"`
	Attempts    int                `json:"attempts,omitempty"`
	Retryable   bool               `json:"retryable"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

func (f *FailureReport) Error() string {
	return f.Code + ": " + f.Message
}
