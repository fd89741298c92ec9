package entity

import "time"

// Audit action constants.
const (
	AuditActionPhaseSeeded         = "PHASE_SEEDED"
	AuditActionPhaseStarted        = "PHASE_STARTED"
	AuditActionPhaseCompleted      = "PHASE_COMPLETED"
	AuditActionPhaseReset          = "PHASE_RESET"
	AuditActionVersionCreated      = "VERSION_CREATED"
	AuditActionVersionRevised      = "VERSION_REVISED"
	AuditActionVersionSubmitted    = "VERSION_SUBMITTED"
	AuditActionVersionApproved     = "VERSION_APPROVED"
	AuditActionVersionRejected     = "VERSION_REJECTED"
	AuditActionVersionSuperseded   = "VERSION_SUPERSEDED"
	AuditActionDecisionRecorded    = "DECISION_RECORDED"
	AuditActionDecisionChanged     = "DECISION_CHANGED"
	AuditActionAssignmentCreated   = "ASSIGNMENT_CREATED"
	AuditActionAssignmentUpdated   = "ASSIGNMENT_UPDATED"
	AuditActionAssignmentCancelled = "ASSIGNMENT_CANCELLED"
)

// Entity type constants for audit entries.
const (
	EntityTypePhase      = "PHASE"
	EntityTypeVersion    = "VERSION"
	EntityTypeItem       = "ITEM"
	EntityTypeAssignment = "ASSIGNMENT"
)

// AuditEntry is an append-only record of a state change. Entries are never
// mutated or deleted. Before and After hold opaque JSON snapshots.
type AuditEntry struct {
	ID            int64     `json:"id"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Action        string    `json:"action"`
	Actor         string    `json:"actor"`
	Before        string    `json:"before,omitempty"`
	After         string    `json:"after,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
