package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
)

// AssignmentRepository handles assignment database operations
type AssignmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *sql.DB, logger *zap.Logger) *AssignmentRepository {
	return &AssignmentRepository{
		db:     db,
		logger: logger,
	}
}

const assignmentColumns = `id, phase_id, version_id, from_role, to_role, assignment_type,
	status, priority, due_at, acknowledged_at, completed_at, completed_by,
	cancelled_at, cancel_reason, created_at, updated_at`

// Create inserts a new assignment row
func (r *AssignmentRepository) Create(tx *sql.Tx, assignment *entity.Assignment) error {
	query := `
		INSERT INTO assignments (
			id, phase_id, version_id, from_role, to_role,
			assignment_type, status, priority, due_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := pick(r.db, tx).Exec(query,
		assignment.ID,
		assignment.PhaseID,
		assignment.VersionID,
		assignment.FromRole,
		assignment.ToRole,
		assignment.Type,
		assignment.Status,
		assignment.Priority,
		assignment.DueAt,
	)
	if err != nil {
		r.logger.Error("Failed to create assignment", zap.String("id", assignment.ID), zap.Error(err))
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	return nil
}

// GetByID retrieves an assignment by ID
func (r *AssignmentRepository) GetByID(tx *sql.Tx, id string) (*entity.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = ?`
	return r.scanOne(pick(r.db, tx).QueryRow(query, id))
}

// GetUnacknowledged retrieves the open, not yet acknowledged assignment of a
// given type for a phase, or nil if none exists
func (r *AssignmentRepository) GetUnacknowledged(tx *sql.Tx, phaseID int64, assignmentType entity.AssignmentType) (*entity.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments
		WHERE phase_id = ? AND assignment_type = ? AND status = ?
		ORDER BY created_at DESC LIMIT 1`
	return r.scanOne(pick(r.db, tx).QueryRow(query, phaseID, assignmentType, entity.AssignmentAssigned))
}

// ListByPhase retrieves all assignments for a phase, newest first
func (r *AssignmentRepository) ListByPhase(tx *sql.Tx, phaseID int64) ([]*entity.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments
		WHERE phase_id = ? ORDER BY created_at DESC`
	return r.list(tx, query, phaseID)
}

// ListOverdue retrieves open assignments whose due date has passed
func (r *AssignmentRepository) ListOverdue(tx *sql.Tx, now time.Time) ([]*entity.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments
		WHERE status IN (?, ?, ?) AND due_at < ? ORDER BY due_at`
	return r.list(tx, query,
		entity.AssignmentAssigned, entity.AssignmentAcknowledged, entity.AssignmentInProgress, now)
}

// UpdateStatus persists a status transition along with its marker fields
func (r *AssignmentRepository) UpdateStatus(tx *sql.Tx, assignment *entity.Assignment) error {
	query := `
		UPDATE assignments
		SET status = ?, acknowledged_at = ?, completed_at = ?, completed_by = ?,
			cancelled_at = ?, cancel_reason = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := pick(r.db, tx).Exec(query,
		assignment.Status,
		assignment.AcknowledgedAt,
		assignment.CompletedAt,
		assignment.CompletedBy,
		assignment.CancelledAt,
		assignment.CancelReason,
		assignment.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update assignment", zap.String("id", assignment.ID), zap.Error(err))
		return fmt.Errorf("failed to update assignment: %w", err)
	}

	return nil
}

func (r *AssignmentRepository) list(tx *sql.Tx, query string, args ...any) ([]*entity.Assignment, error) {
	rows, err := pick(r.db, tx).Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list assignments", zap.Error(err))
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*entity.Assignment
	for rows.Next() {
		assignment, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	return assignments, rows.Err()
}

func (r *AssignmentRepository) scanOne(row *sql.Row) (*entity.Assignment, error) {
	assignment, err := r.scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return assignment, err
}

func (r *AssignmentRepository) scanRow(row rowScanner) (*entity.Assignment, error) {
	var assignment entity.Assignment
	var versionID sql.NullInt64
	var acknowledgedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&assignment.ID,
		&assignment.PhaseID,
		&versionID,
		&assignment.FromRole,
		&assignment.ToRole,
		&assignment.Type,
		&assignment.Status,
		&assignment.Priority,
		&assignment.DueAt,
		&acknowledgedAt,
		&completedAt,
		&assignment.CompletedBy,
		&cancelledAt,
		&assignment.CancelReason,
		&assignment.CreatedAt,
		&assignment.UpdatedAt,
	)
	if err != nil {
		if err != sql.ErrNoRows {
			r.logger.Error("Failed to scan assignment", zap.Error(err))
		}
		return nil, err
	}

	if versionID.Valid {
		assignment.VersionID = &versionID.Int64
	}
	if acknowledgedAt.Valid {
		assignment.AcknowledgedAt = &acknowledgedAt.Time
	}
	if completedAt.Valid {
		assignment.CompletedAt = &completedAt.Time
	}
	if cancelledAt.Valid {
		assignment.CancelledAt = &cancelledAt.Time
	}

	return &assignment, nil
}
