package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
)

// VersionRepository handles version database operations
type VersionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(db *sql.DB, logger *zap.Logger) *VersionRepository {
	return &VersionRepository{
		db:     db,
		logger: logger,
	}
}

const versionColumns = `id, phase_id, version_number, status, parent_version_id,
	created_by, submitted_at, submitted_by, approved_at, approved_by,
	rejection_reason, created_at, updated_at`

// Create inserts a new version row. A violation of the single-active-draft
// index surfaces as a ConflictError; this is what the loser of a concurrent
// create receives.
func (r *VersionRepository) Create(tx *sql.Tx, version *entity.Version) error {
	query := `
		INSERT INTO versions (phase_id, version_number, status, parent_version_id, created_by)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := pick(r.db, tx).Exec(query,
		version.PhaseID,
		version.Number,
		version.Status,
		version.ParentVersionID,
		version.CreatedBy,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &entity.ConflictError{
				EntityType: entity.EntityTypeVersion,
				EntityID:   fmt.Sprintf("phase:%d", version.PhaseID),
				Reason:     "an active version already exists for this phase",
			}
		}
		r.logger.Error("Failed to create version", zap.Int64("phase_id", version.PhaseID), zap.Error(err))
		return fmt.Errorf("failed to create version: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	version.ID = id
	return nil
}

// GetByID retrieves a version by ID
func (r *VersionRepository) GetByID(tx *sql.Tx, id int64) (*entity.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM versions WHERE id = ?`
	return r.scanOne(pick(r.db, tx).QueryRow(query, id))
}

// GetActive retrieves the single DRAFT or PENDING_APPROVAL version of a
// phase, or nil if none exists
func (r *VersionRepository) GetActive(tx *sql.Tx, phaseID int64) (*entity.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM versions
		WHERE phase_id = ? AND status IN (?, ?)`
	return r.scanOne(pick(r.db, tx).QueryRow(query, phaseID, entity.VersionDraft, entity.VersionPendingApproval))
}

// GetCurrent retrieves the single APPROVED, non-superseded version of a
// phase, or nil if none exists
func (r *VersionRepository) GetCurrent(tx *sql.Tx, phaseID int64) (*entity.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM versions WHERE phase_id = ? AND status = ?`
	return r.scanOne(pick(r.db, tx).QueryRow(query, phaseID, entity.VersionApproved))
}

// NextNumber returns the next monotonic version number for a phase
func (r *VersionRepository) NextNumber(tx *sql.Tx, phaseID int64) (int, error) {
	query := `SELECT COALESCE(MAX(version_number), 0) + 1 FROM versions WHERE phase_id = ?`

	var next int
	if err := pick(r.db, tx).QueryRow(query, phaseID).Scan(&next); err != nil {
		r.logger.Error("Failed to compute next version number", zap.Int64("phase_id", phaseID), zap.Error(err))
		return 0, fmt.Errorf("failed to compute next version number: %w", err)
	}
	return next, nil
}

// ListByPhase retrieves all versions of a phase in version order
func (r *VersionRepository) ListByPhase(tx *sql.Tx, phaseID int64) ([]*entity.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM versions WHERE phase_id = ? ORDER BY version_number`

	rows, err := pick(r.db, tx).Query(query, phaseID)
	if err != nil {
		r.logger.Error("Failed to list versions", zap.Int64("phase_id", phaseID), zap.Error(err))
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []*entity.Version
	for rows.Next() {
		version, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

// MarkSubmitted transitions a version to PENDING_APPROVAL
func (r *VersionRepository) MarkSubmitted(tx *sql.Tx, id int64, by string, at time.Time) error {
	query := `
		UPDATE versions
		SET status = ?, submitted_at = ?, submitted_by = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(tx, query, entity.VersionPendingApproval, at, by, id)
}

// MarkApproved transitions a version to APPROVED
func (r *VersionRepository) MarkApproved(tx *sql.Tx, id int64, by string, at time.Time) error {
	query := `
		UPDATE versions
		SET status = ?, approved_at = ?, approved_by = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(tx, query, entity.VersionApproved, at, by, id)
}

// MarkRejected transitions a version to REJECTED with a reason. The deciding
// actor is recorded on the audit trail, not on the version row.
func (r *VersionRepository) MarkRejected(tx *sql.Tx, id int64, reason string) error {
	query := `
		UPDATE versions
		SET status = ?, rejection_reason = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	return r.exec(tx, query, entity.VersionRejected, reason, id)
}

// MarkSuperseded transitions a previously approved version to SUPERSEDED
func (r *VersionRepository) MarkSuperseded(tx *sql.Tx, id int64) error {
	query := `UPDATE versions SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	return r.exec(tx, query, entity.VersionSuperseded, id)
}

func (r *VersionRepository) exec(tx *sql.Tx, query string, args ...any) error {
	_, err := pick(r.db, tx).Exec(query, args...)
	if err != nil {
		r.logger.Error("Failed to update version", zap.Error(err))
		return fmt.Errorf("failed to update version: %w", err)
	}
	return nil
}

func (r *VersionRepository) scanOne(row *sql.Row) (*entity.Version, error) {
	version, err := r.scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return version, err
}

func (r *VersionRepository) scanRow(row rowScanner) (*entity.Version, error) {
	var version entity.Version
	var parentID sql.NullInt64
	var submittedAt, approvedAt sql.NullTime

	err := row.Scan(
		&version.ID,
		&version.PhaseID,
		&version.Number,
		&version.Status,
		&parentID,
		&version.CreatedBy,
		&submittedAt,
		&version.SubmittedBy,
		&approvedAt,
		&version.ApprovedBy,
		&version.RejectionReason,
		&version.CreatedAt,
		&version.UpdatedAt,
	)
	if err != nil {
		if err != sql.ErrNoRows {
			r.logger.Error("Failed to scan version", zap.Error(err))
		}
		return nil, err
	}

	if parentID.Valid {
		version.ParentVersionID = &parentID.Int64
	}
	if submittedAt.Valid {
		version.SubmittedAt = &submittedAt.Time
	}
	if approvedAt.Valid {
		version.ApprovedAt = &approvedAt.Time
	}

	return &version, nil
}
