package entity

import "time"

// Phase represents one stage of the testing process for a (cycle, report) pair.
// Phases for a given pair have a total order by Ordinal; a phase may only start
// once its predecessor is complete unless configured for parallel execution.
type Phase struct {
	ID       int64       `json:"id"`
	CycleID  int64       `json:"cycle_id"`
	ReportID int64       `json:"report_id"`
	Name     PhaseName   `json:"name"`
	Ordinal  int         `json:"ordinal"`
	Status   PhaseStatus `json:"status"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	StartedBy   string     `json:"started_by,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy string     `json:"completed_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
