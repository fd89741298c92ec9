// Package port defines the repository contracts the application services
// depend on. Concrete implementations live in internal/repository; tests
// substitute function-field mocks.
package port

import (
	"context"
	"database/sql"
	"time"

	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
)

// TxRunner executes a function within a database transaction. All service
// operations that pair an invariant check with a write run under it.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error
}

// PhaseRepository is the data-access contract for phases.
type PhaseRepository interface {
	Create(tx *sql.Tx, phase *entity.Phase) error
	GetByID(tx *sql.Tx, id int64) (*entity.Phase, error)
	GetByName(tx *sql.Tx, cycleID, reportID int64, name entity.PhaseName) (*entity.Phase, error)
	ListByReport(tx *sql.Tx, cycleID, reportID int64) ([]*entity.Phase, error)
	MarkStarted(tx *sql.Tx, id int64, by string, at time.Time) error
	MarkCompleted(tx *sql.Tx, id int64, by string, at time.Time) error
	Reset(tx *sql.Tx, id int64) error
}

// VersionRepository is the data-access contract for versions.
type VersionRepository interface {
	Create(tx *sql.Tx, version *entity.Version) error
	GetByID(tx *sql.Tx, id int64) (*entity.Version, error)
	GetActive(tx *sql.Tx, phaseID int64) (*entity.Version, error)
	GetCurrent(tx *sql.Tx, phaseID int64) (*entity.Version, error)
	NextNumber(tx *sql.Tx, phaseID int64) (int, error)
	ListByPhase(tx *sql.Tx, phaseID int64) ([]*entity.Version, error)
	MarkSubmitted(tx *sql.Tx, id int64, by string, at time.Time) error
	MarkApproved(tx *sql.Tx, id int64, by string, at time.Time) error
	MarkRejected(tx *sql.Tx, id int64, reason string) error
	MarkSuperseded(tx *sql.Tx, id int64) error
}

// ItemRepository is the data-access contract of the item decision ledger.
type ItemRepository interface {
	BulkInsert(tx *sql.Tx, items []*entity.Item) error
	GetByBusinessKey(tx *sql.Tx, versionID int64, businessKey string) (*entity.Item, error)
	ListByVersion(tx *sql.Tx, versionID int64) ([]*entity.Item, error)
	ListMissingTesterDecision(tx *sql.Tx, versionID int64) ([]*entity.Item, error)
	ListMissingOwnerDecision(tx *sql.Tx, versionID int64) ([]*entity.Item, error)
	ListByTesterDecision(tx *sql.Tx, versionID int64, decision entity.Decision) ([]*entity.Item, error)
	CountMissingTesterDecision(tx *sql.Tx, versionID int64) (int, error)
	CountMissingOwnerDecision(tx *sql.Tx, versionID int64) (int, error)
	CountNonAccept(tx *sql.Tx, versionID int64) (int, error)
	UpdateTesterDecision(tx *sql.Tx, itemID int64, expectedRevision int, decision entity.Decision, rationale string, originVersionID int64) (bool, error)
	UpdateOwnerDecision(tx *sql.Tx, itemID int64, expectedRevision int, decision entity.Decision, rationale string) (bool, error)
}

// AssignmentRepository is the data-access contract for assignments.
type AssignmentRepository interface {
	Create(tx *sql.Tx, assignment *entity.Assignment) error
	GetByID(tx *sql.Tx, id string) (*entity.Assignment, error)
	GetUnacknowledged(tx *sql.Tx, phaseID int64, assignmentType entity.AssignmentType) (*entity.Assignment, error)
	ListByPhase(tx *sql.Tx, phaseID int64) ([]*entity.Assignment, error)
	ListOverdue(tx *sql.Tx, now time.Time) ([]*entity.Assignment, error)
	UpdateStatus(tx *sql.Tx, assignment *entity.Assignment) error
}

// AuditRepository is the data-access contract for the audit trail.
type AuditRepository interface {
	Create(tx *sql.Tx, entry *entity.AuditEntry) error
	ListByEntity(entityType, entityID string, limit, offset int) ([]*entity.AuditEntry, error)
}

// OutboxRepository is the data-access contract for the notification outbox.
type OutboxRepository interface {
	Create(tx *sql.Tx, n *entity.NotificationEvent) error
	ListPending(limit int) ([]*entity.NotificationEvent, error)
	MarkSent(id int64, at time.Time) error
	MarkAttemptFailed(id int64, errMsg string) error
}
