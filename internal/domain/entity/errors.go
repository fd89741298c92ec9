package entity

import "fmt"

// The engine returns typed failures so callers can render actionable messages
// and choose retry policy. The engine itself never retries.

// ConflictError reports an invariant violation such as an existing active
// draft or a duplicate current version.
type ConflictError struct {
	EntityType string
	EntityID   string
	Reason     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s %s: %s", e.EntityType, e.EntityID, e.Reason)
}

// ValidationError reports an operation whose preconditions are not met, such
// as submitting a version with undecided items or a malformed transition.
type ValidationError struct {
	EntityType string
	EntityID   string
	State      string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("validation failed for %s %s (state %s): %s", e.EntityType, e.EntityID, e.State, e.Reason)
	}
	return fmt.Sprintf("validation failed for %s %s: %s", e.EntityType, e.EntityID, e.Reason)
}

// ImmutableStateError reports a write attempted against items of a version
// that has left DRAFT.
type ImmutableStateError struct {
	VersionID int64
	State     VersionStatus
}

func (e *ImmutableStateError) Error() string {
	return fmt.Sprintf("version %d is %s: item decisions are immutable outside DRAFT", e.VersionID, e.State)
}

// StaleWriteError reports an optimistic-concurrency mismatch on an item
// write. The caller must re-read and retry with fresh data.
type StaleWriteError struct {
	ItemID           int64
	BusinessKey      string
	ExpectedRevision int
}

func (e *StaleWriteError) Error() string {
	return fmt.Sprintf("stale write on item %d (%s): expected revision %d", e.ItemID, e.BusinessKey, e.ExpectedRevision)
}

// NotFoundError reports an unknown phase, version, item, or assignment id.
type NotFoundError struct {
	EntityType string
	EntityID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.EntityType, e.EntityID)
}
