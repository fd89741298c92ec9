package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
)

// PhaseRepository handles phase database operations
type PhaseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPhaseRepository creates a new phase repository
func NewPhaseRepository(db *sql.DB, logger *zap.Logger) *PhaseRepository {
	return &PhaseRepository{
		db:     db,
		logger: logger,
	}
}

const phaseColumns = `id, cycle_id, report_id, name, ordinal, status,
	started_at, started_by, completed_at, completed_by, created_at, updated_at`

// Create inserts a new phase row
func (r *PhaseRepository) Create(tx *sql.Tx, phase *entity.Phase) error {
	query := `
		INSERT INTO phases (cycle_id, report_id, name, ordinal, status)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := pick(r.db, tx).Exec(query,
		phase.CycleID,
		phase.ReportID,
		phase.Name,
		phase.Ordinal,
		phase.Status,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &entity.ConflictError{
				EntityType: entity.EntityTypePhase,
				EntityID:   string(phase.Name),
				Reason:     fmt.Sprintf("phase already exists for cycle %d report %d", phase.CycleID, phase.ReportID),
			}
		}
		r.logger.Error("Failed to create phase", zap.String("name", phase.Name.String()), zap.Error(err))
		return fmt.Errorf("failed to create phase: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	phase.ID = id
	return nil
}

// GetByID retrieves a phase by ID
func (r *PhaseRepository) GetByID(tx *sql.Tx, id int64) (*entity.Phase, error) {
	query := `SELECT ` + phaseColumns + ` FROM phases WHERE id = ?`
	return r.scanOne(pick(r.db, tx).QueryRow(query, id))
}

// GetByName retrieves a phase by its (cycle, report, name) identity
func (r *PhaseRepository) GetByName(tx *sql.Tx, cycleID, reportID int64, name entity.PhaseName) (*entity.Phase, error) {
	query := `SELECT ` + phaseColumns + ` FROM phases WHERE cycle_id = ? AND report_id = ? AND name = ?`
	return r.scanOne(pick(r.db, tx).QueryRow(query, cycleID, reportID, name))
}

// ListByReport retrieves all phases of a (cycle, report) pair in ordinal order
func (r *PhaseRepository) ListByReport(tx *sql.Tx, cycleID, reportID int64) ([]*entity.Phase, error) {
	query := `SELECT ` + phaseColumns + ` FROM phases WHERE cycle_id = ? AND report_id = ? ORDER BY ordinal`

	rows, err := pick(r.db, tx).Query(query, cycleID, reportID)
	if err != nil {
		r.logger.Error("Failed to list phases", zap.Int64("cycle_id", cycleID), zap.Int64("report_id", reportID), zap.Error(err))
		return nil, fmt.Errorf("failed to list phases: %w", err)
	}
	defer rows.Close()

	var phases []*entity.Phase
	for rows.Next() {
		phase, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		phases = append(phases, phase)
	}
	return phases, rows.Err()
}

// MarkStarted transitions a phase to IN_PROGRESS and records the actor
func (r *PhaseRepository) MarkStarted(tx *sql.Tx, id int64, by string, at time.Time) error {
	query := `
		UPDATE phases
		SET status = ?, started_at = ?, started_by = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(tx, query, entity.PhaseInProgress, at, by, id)
}

// MarkCompleted transitions a phase to COMPLETE and records the actor
func (r *PhaseRepository) MarkCompleted(tx *sql.Tx, id int64, by string, at time.Time) error {
	query := `
		UPDATE phases
		SET status = ?, completed_at = ?, completed_by = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(tx, query, entity.PhaseComplete, at, by, id)
}

// Reset forces a phase back to NOT_STARTED, clearing start/complete markers
func (r *PhaseRepository) Reset(tx *sql.Tx, id int64) error {
	query := `
		UPDATE phases
		SET status = ?, started_at = NULL, started_by = '',
			completed_at = NULL, completed_by = '', updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(tx, query, entity.PhaseNotStarted, id)
}

func (r *PhaseRepository) exec(tx *sql.Tx, query string, args ...any) error {
	_, err := pick(r.db, tx).Exec(query, args...)
	if err != nil {
		r.logger.Error("Failed to update phase", zap.Error(err))
		return fmt.Errorf("failed to update phase: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PhaseRepository) scanOne(row *sql.Row) (*entity.Phase, error) {
	phase, err := r.scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return phase, err
}

func (r *PhaseRepository) scanRow(row rowScanner) (*entity.Phase, error) {
	var phase entity.Phase
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&phase.ID,
		&phase.CycleID,
		&phase.ReportID,
		&phase.Name,
		&phase.Ordinal,
		&phase.Status,
		&startedAt,
		&phase.StartedBy,
		&completedAt,
		&phase.CompletedBy,
		&phase.CreatedAt,
		&phase.UpdatedAt,
	)
	if err != nil {
		if err != sql.ErrNoRows {
			r.logger.Error("Failed to scan phase", zap.Error(err))
		}
		return nil, err
	}

	if startedAt.Valid {
		phase.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		phase.CompletedAt = &completedAt.Time
	}

	return &phase, nil
}
