package pipeline

import "fmt"

// State tracks a run through its lifecycle. Transitions are linear except
// that a startup failure jumps straight to StateTornDown.
type State int32

const (
	StateCreated State = iota
	StateStarted
	StateInputInjected
	StatePolling
	StateSucceeded
	StateTimedOut
	StateTornDown
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarted:
		return "started"
	case StateInputInjected:
		return "input_injected"
	case StatePolling:
		return "polling"
	case StateSucceeded:
		return "succeeded"
	case StateTimedOut:
		return "timed_out"
	case StateTornDown:
		return "torn_down"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// advance moves the handle to the given state if the current state is one of
// the allowed predecessors. A disallowed transition is a programmer error.
func (h *Handle) advance(to State, allowedFrom ...State) {
	cur := State(h.state.Load())
	for _, from := range allowedFrom {
		if cur == from {
			h.state.Store(int32(to))
			return
		}
	}
	panic(fmt.Sprintf("pipeline: invalid state transition %s -> %s", cur, to))
}

// State returns the handle's current lifecycle state.
func (h *Handle) State() State {
	return State(h.state.Load())
}
