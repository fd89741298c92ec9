package entity

// PhaseName identifies one of the nine ordered phases of a test cycle report.
type PhaseName string

const (
	PhasePlanning         PhaseName = "PLANNING"
	PhaseScoping          PhaseName = "SCOPING"
	PhaseDataProfiling    PhaseName = "DATA_PROFILING"
	PhaseDataOwnerID      PhaseName = "DATA_OWNER_IDENTIFICATION"
	PhaseSampleSelection  PhaseName = "SAMPLE_SELECTION"
	PhaseRequestInfo      PhaseName = "REQUEST_FOR_INFORMATION"
	PhaseTestExecution    PhaseName = "TEST_EXECUTION"
	PhaseObservationMgmt  PhaseName = "OBSERVATION_MANAGEMENT"
	PhaseTestReport       PhaseName = "TEST_REPORT"
)

// PhaseOrder lists all phases in execution order.
var PhaseOrder = []PhaseName{
	PhasePlanning,
	PhaseScoping,
	PhaseDataProfiling,
	PhaseDataOwnerID,
	PhaseSampleSelection,
	PhaseRequestInfo,
	PhaseTestExecution,
	PhaseObservationMgmt,
	PhaseTestReport,
}

var phaseOrdinals = map[PhaseName]int{
	PhasePlanning:        1,
	PhaseScoping:         2,
	PhaseDataProfiling:   3,
	PhaseDataOwnerID:     4,
	PhaseSampleSelection: 5,
	PhaseRequestInfo:     6,
	PhaseTestExecution:   7,
	PhaseObservationMgmt: 8,
	PhaseTestReport:      9,
}

// Ordinal returns the 1-based position of the phase, or 0 for unknown names.
func (p PhaseName) Ordinal() int {
	return phaseOrdinals[p]
}

// IsValid returns true if the phase name is one of the nine defined phases.
func (p PhaseName) IsValid() bool {
	return phaseOrdinals[p] != 0
}

// String returns the string representation of the phase name.
func (p PhaseName) String() string {
	return string(p)
}

// PhaseStatus represents the lifecycle status of a phase.
type PhaseStatus string

const (
	PhaseNotStarted PhaseStatus = "NOT_STARTED"
	PhaseInProgress PhaseStatus = "IN_PROGRESS"
	PhaseComplete   PhaseStatus = "COMPLETE"
)

// IsValid returns true if the status is a defined phase status.
func (s PhaseStatus) IsValid() bool {
	switch s {
	case PhaseNotStarted, PhaseInProgress, PhaseComplete:
		return true
	}
	return false
}

// String returns the string representation of the phase status.
func (s PhaseStatus) String() string {
	return string(s)
}

// VersionStatus represents the lifecycle status of a version.
type VersionStatus string

const (
	VersionDraft           VersionStatus = "DRAFT"
	VersionPendingApproval VersionStatus = "PENDING_APPROVAL"
	VersionApproved        VersionStatus = "APPROVED"
	VersionRejected        VersionStatus = "REJECTED"
	VersionSuperseded      VersionStatus = "SUPERSEDED"
)

// IsValid returns true if the status is a defined version status.
func (s VersionStatus) IsValid() bool {
	switch s {
	case VersionDraft, VersionPendingApproval, VersionApproved, VersionRejected, VersionSuperseded:
		return true
	}
	return false
}

// IsActive returns true for statuses that count against the single-active-draft rule.
func (s VersionStatus) IsActive() bool {
	return s == VersionDraft || s == VersionPendingApproval
}

// String returns the string representation of the version status.
func (s VersionStatus) String() string {
	return string(s)
}

// Decision is a reviewer's verdict on a single item.
type Decision string

const (
	DecisionAccept         Decision = "ACCEPT"
	DecisionReject         Decision = "REJECT"
	DecisionRequestChanges Decision = "REQUEST_CHANGES"
)

// IsValid returns true if the decision is a defined decision value.
func (d Decision) IsValid() bool {
	switch d {
	case DecisionAccept, DecisionReject, DecisionRequestChanges:
		return true
	}
	return false
}

// String returns the string representation of the decision.
func (d Decision) String() string {
	return string(d)
}

// Role identifies a workflow participant role.
type Role string

const (
	RoleTester        Role = "TESTER"
	RoleReportOwner   Role = "REPORT_OWNER"
	RoleTestExecutive Role = "TEST_EXECUTIVE"
	RoleDataOwner     Role = "DATA_OWNER"
	RoleSystem        Role = "SYSTEM"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// AssignmentStatus represents the lifecycle status of an assignment.
type AssignmentStatus string

const (
	AssignmentAssigned     AssignmentStatus = "ASSIGNED"
	AssignmentAcknowledged AssignmentStatus = "ACKNOWLEDGED"
	AssignmentInProgress   AssignmentStatus = "IN_PROGRESS"
	AssignmentCompleted    AssignmentStatus = "COMPLETED"
	AssignmentCancelled    AssignmentStatus = "CANCELLED"
)

var assignmentRank = map[AssignmentStatus]int{
	AssignmentAssigned:     1,
	AssignmentAcknowledged: 2,
	AssignmentInProgress:   3,
	AssignmentCompleted:    4,
}

// IsValid returns true if the status is a defined assignment status.
func (s AssignmentStatus) IsValid() bool {
	switch s {
	case AssignmentAssigned, AssignmentAcknowledged, AssignmentInProgress,
		AssignmentCompleted, AssignmentCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if no further transitions are allowed.
func (s AssignmentStatus) IsTerminal() bool {
	return s == AssignmentCompleted || s == AssignmentCancelled
}

// String returns the string representation of the assignment status.
func (s AssignmentStatus) String() string {
	return string(s)
}

// AssignmentType categorizes why an assignment was routed.
type AssignmentType string

const (
	AssignmentPhaseKickoff    AssignmentType = "PHASE_KICKOFF"
	AssignmentOwnerReview     AssignmentType = "OWNER_REVIEW"
	AssignmentRevisionRequest AssignmentType = "REVISION_REQUEST"
	AssignmentPhaseSignoff    AssignmentType = "PHASE_SIGNOFF"
)

// String returns the string representation of the assignment type.
func (t AssignmentType) String() string {
	return string(t)
}

// Priority indicates assignment urgency.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// IsValid returns true if the priority is a defined priority value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// String returns the string representation of the priority.
func (p Priority) String() string {
	return string(p)
}
