package entity

import "time"

// Assignment is a routed task directing a role to act in response to a phase
// or version transition. Status moves forward only (ASSIGNED → ACKNOWLEDGED →
// IN_PROGRESS → COMPLETED); CANCELLED is terminal and reachable from any
// non-terminal status when the assignment is superseded or withdrawn.
// Completing an assignment never drives phase or version state.
type Assignment struct {
	ID        string `json:"id"`
	PhaseID   int64  `json:"phase_id"`
	VersionID *int64 `json:"version_id,omitempty"`

	FromRole Role           `json:"from_role"`
	ToRole   Role           `json:"to_role"`
	Type     AssignmentType `json:"assignment_type"`

	Status   AssignmentStatus `json:"status"`
	Priority Priority         `json:"priority"`
	DueAt    time.Time        `json:"due_at"`

	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CompletedBy    string     `json:"completed_by,omitempty"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CancelReason   string     `json:"cancel_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanTransition reports whether the assignment may move to the target status.
// Cancellation is allowed from any non-terminal status; all other moves must
// advance the status rank by exactly one step.
func (a *Assignment) CanTransition(to AssignmentStatus) bool {
	if a.Status.IsTerminal() {
		return false
	}
	if to == AssignmentCancelled {
		return true
	}
	from, ok := assignmentRank[a.Status]
	target, ok2 := assignmentRank[to]
	if !ok || !ok2 {
		return false
	}
	return target == from+1
}

// IsOpen returns true while the assignment awaits action.
func (a *Assignment) IsOpen() bool {
	return !a.Status.IsTerminal()
}
