package operations

import "time"

// Outcomes reported to a Recorder besides the command status.
const (
	OutcomeError   = "error"
	OutcomeElapsed = "elapsed"
	OutcomeNoop    = "noop"
)

// Recorder receives one observation per finished routine.
type Recorder interface {
	ObserveOperation(kind, externalID, outcome string, elapsed time.Duration)
}

// Recorders fans an observation out to several recorders.
type Recorders []Recorder

// ObserveOperation forwards to every non-nil recorder.
func (rs Recorders) ObserveOperation(kind, externalID, outcome string, elapsed time.Duration) {
	for _, r := range rs {
		if r != nil {
			r.ObserveOperation(kind, externalID, outcome, elapsed)
		}
	}
}
