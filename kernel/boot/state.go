package boot

// State is a stage of the boot sequence. The sequence only moves forward;
// any stage may divert to StateFault which is absorbing.
type State uint8

// The list of boot states.
const (
	StateProtocolCheck State = iota
	StateFeatureCheck
	StateTableBootstrap
	StateModeTransition
	StateHandoff
	StateFault
)

// String implements fmt.Stringer for State.
func (s State) String() string {
	switch s {
	case StateProtocolCheck:
		return "protocol-check"
	case StateFeatureCheck:
		return "feature-check"
	case StateTableBootstrap:
		return "table-bootstrap"
	case StateModeTransition:
		return "mode-transition"
	case StateHandoff:
		return "handoff"
	case StateFault:
		return "fault"
	default:
		return "unknown"
	}
}

// CanAdvance returns true if the sequence may move from s to next.
func (s State) CanAdvance(next State) bool {
	switch {
	case s == StateFault:
		return false
	case next == StateFault:
		return true
	default:
		return next == s+1 && next < StateFault
	}
}
