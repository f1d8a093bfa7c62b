package pipeline

import "time"

// Outcome is the terminal outcome tag of a run. A run reaches exactly one.
type Outcome int

const (
	// OutcomeFailure covers startup, injection, extraction and cancellation
	// failures. It is the zero value so a half-built Result never reads as
	// success.
	OutcomeFailure Outcome = iota
	// OutcomeSuccess means the completion marker was detected in time.
	OutcomeSuccess
	// OutcomeTimeout means the marker never appeared before the deadline.
	OutcomeTimeout
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "failure"
	}
}

// Result is the terminal report of a run.
type Result struct {
	Outcome Outcome
	// Artifacts maps logical artifact names to their extracted location.
	// Populated only on success.
	Artifacts map[string]string
	// Logs maps stage names to captured diagnostic log text. Populated on
	// timeout for every stage.
	Logs map[string]string
	// Elapsed is the wall-clock time spent polling for completion.
	Elapsed time.Duration
}
