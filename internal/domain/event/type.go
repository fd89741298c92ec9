package event

// Type identifies the type of domain event
type Type string

const (
	TypePhaseSeeded      Type = "phase.seeded"
	TypePhaseStarted     Type = "phase.started"
	TypePhaseCompleted   Type = "phase.completed"
	TypePhaseReset       Type = "phase.reset"
	TypeVersionCreated   Type = "version.created"
	TypeVersionRevised   Type = "version.revised"
	TypeVersionSubmitted Type = "version.submitted"
	TypeVersionApproved  Type = "version.approved"
	TypeVersionRejected  Type = "version.rejected"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypePhaseSeeded,
		TypePhaseStarted,
		TypePhaseCompleted,
		TypePhaseReset,
		TypeVersionCreated,
		TypeVersionRevised,
		TypeVersionSubmitted,
		TypeVersionApproved,
		TypeVersionRejected:
		return true
	}
	return false
}
