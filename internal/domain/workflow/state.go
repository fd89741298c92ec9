package workflow

// State represents a lifecycle state of a versioned artifact or a phase.
// Version states and phase states share the machine infrastructure but are
// configured into separate machines (see factory.go).
type State string

const (
	// Version lifecycle states.
	StateDraft           State = "DRAFT"
	StatePendingApproval State = "PENDING_APPROVAL"
	StateApproved        State = "APPROVED"
	StateRejected        State = "REJECTED"
	StateSuperseded      State = "SUPERSEDED"

	// Phase lifecycle states.
	StateNotStarted State = "NOT_STARTED"
	StateInProgress State = "IN_PROGRESS"
	StateComplete   State = "COMPLETE"
)

var validStates = map[State]bool{
	StateDraft:           true,
	StatePendingApproval: true,
	StateApproved:        true,
	StateRejected:        true,
	StateSuperseded:      true,
	StateNotStarted:      true,
	StateInProgress:      true,
	StateComplete:        true,
}

// SUPERSEDED never transitions again, and REJECTED only spawns a new revision
// rather than transitioning itself. COMPLETE is not listed because the
// administrative reset transition leaves it.
var terminalStates = map[State]bool{
	StateSuperseded: true,
	StateRejected:   true,
}

// IsTerminal returns true if the state allows no further transitions.
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsValid returns true if the state is a defined lifecycle state.
func (s State) IsValid() bool {
	return validStates[s]
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}
