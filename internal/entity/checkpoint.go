package entity

import (
	"time"

	"github.com/joseph-ayodele/statements-tracker/constants"
)

// Checkpoint is the persisted progress of the latest run for a document key.
type Checkpoint struct {
	RunKey      string             `json:"run_key"`
	RunID       string             `json:"run_id"`
	ContentType string             `json:"content_type"`
	State       constants.RunState `json:"state"`
	Blocks      []Block            `json:"blocks,omitempty"`
	BlocksAt    *time.Time         `json:"blocks_at,omitempty"`
	Detections  []Detection        `json:"detections,omitempty"`
	Attempts    int                `json:"attempts"`
	Failure     *FailureReport     `json:"failure,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// BlocksFresh reports whether cached blocks are still inside the cache window.
// A non-positive ttl disables the cache.
func (c *Checkpoint) BlocksFresh(now time.Time, ttl time.Duration) bool {
	if c == nil || c.BlocksAt == nil || len(c.Blocks) == 0 || ttl <= 0 {
		return false
	}
	return now.Sub(*c.BlocksAt) < ttl
}
