package entity

import "time"

// Version is a snapshot of reviewable items produced within a phase. Version
// numbers increase monotonically per phase starting at 1. At most one version
// per phase may be active (DRAFT or PENDING_APPROVAL) and at most one may be
// APPROVED and not superseded.
type Version struct {
	ID      int64         `json:"id"`
	PhaseID int64         `json:"phase_id"`
	Number  int           `json:"version_number"`
	Status  VersionStatus `json:"status"`

	// ParentVersionID references the version this one was revised from.
	// Nil for version 1 of a phase. Modeled as an id lookup, never a pointer.
	ParentVersionID *int64 `json:"parent_version_id,omitempty"`

	CreatedBy       string     `json:"created_by"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	SubmittedBy     string     `json:"submitted_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	ApprovedBy      string     `json:"approved_by,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive returns true while the version counts against the
// single-active-draft rule.
func (v *Version) IsActive() bool {
	return v.Status.IsActive()
}

// IsEditable returns true while item decisions inside the version are mutable.
func (v *Version) IsEditable() bool {
	return v.Status == VersionDraft
}
