package constants

// RunState is the canonical state of a pipeline run in pipeline_runs.
type RunState string

// Stable values (store these exact strings in DB).
const (
	RunPending     RunState = "PENDING"
	RunExtracting  RunState = "EXTRACTING"
	RunClassifying RunState = "CLASSIFYING"
	RunMapping     RunState = "MAPPING"
	RunValidating  RunState = "VALIDATING"
	RunCompleted   RunState = "COMPLETED" // terminal
	RunFailed      RunState = "FAILED"    // terminal
)

// Terminal reports whether no further transition is allowed out of s.
func (s RunState) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// Next returns the forward successor of a non-terminal state.
func (s RunState) Next() RunState {
	switch s {
	case RunPending:
		return RunExtracting
	case RunExtracting:
		return RunClassifying
	case RunClassifying:
		return RunMapping
	case RunMapping:
		return RunValidating
	case RunValidating:
		return RunCompleted
	}
	return s
}

// Rank orders states along the happy path; Failed ranks lowest.
func (s RunState) Rank() int {
	switch s {
	case RunPending:
		return 0
	case RunExtracting:
		return 1
	case RunClassifying:
		return 2
	case RunMapping:
		return 3
	case RunValidating:
		return 4
	case RunCompleted:
		return 5
	}
	return -1
}
