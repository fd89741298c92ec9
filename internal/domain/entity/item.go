package entity

import "time"

// Item is a single reviewable unit inside a version, carrying independent
// tester and report-owner decisions. BusinessKey identifies the underlying
// unit (attribute id, profiling rule id, sample id) and is stable across
// versions of the same phase.
//
// Decisions are mutable only while the owning version is in DRAFT. Revision
// is an optimistic-concurrency counter; a write targeting a stale revision
// fails and must be retried with fresh data.
type Item struct {
	ID          int64  `json:"id"`
	VersionID   int64  `json:"version_id"`
	BusinessKey string `json:"business_key"`

	TesterDecision  *Decision `json:"tester_decision,omitempty"`
	TesterRationale string    `json:"tester_rationale,omitempty"`
	OwnerDecision   *Decision `json:"report_owner_decision,omitempty"`
	OwnerRationale  string    `json:"report_owner_rationale,omitempty"`

	// CarriedForward marks decisions copied verbatim from the parent version.
	CarriedForward bool `json:"carried_forward"`

	// OriginVersionID is the version where the decision was first recorded.
	// Nil until a tester decision exists; preserved by carry-forward.
	OriginVersionID *int64 `json:"origin_version_id,omitempty"`

	Revision int `json:"revision"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasTesterDecision returns true once a tester decision is recorded.
func (i *Item) HasTesterDecision() bool {
	return i.TesterDecision != nil
}

// HasOwnerDecision returns true once a report-owner decision is recorded.
func (i *Item) HasOwnerDecision() bool {
	return i.OwnerDecision != nil
}

// NewItemInput describes an item to create with null decisions, either for a
// fresh version or as a changed/new entry in a revision.
type NewItemInput struct {
	BusinessKey string `json:"business_key"`
}
