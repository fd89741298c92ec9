package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
)

// AuditRepository handles the append-only audit trail. Rows are never updated
// or deleted.
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an audit entry
func (r *AuditRepository) Create(tx *sql.Tx, entry *entity.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (
			entity_type, entity_id, action, actor,
			before_snapshot, after_snapshot, correlation_id, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := pick(r.db, tx).Exec(query,
		entry.EntityType,
		entry.EntityID,
		entry.Action,
		entry.Actor,
		entry.Before,
		entry.After,
		entry.CorrelationID,
		entry.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to create audit entry",
			zap.String("entity_type", entry.EntityType),
			zap.String("action", entry.Action),
			zap.Error(err))
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// ListByEntity retrieves audit entries for an entity, newest first
func (r *AuditRepository) ListByEntity(entityType, entityID string, limit, offset int) ([]*entity.AuditEntry, error) {
	query := `
		SELECT id, entity_type, entity_id, action, actor,
			before_snapshot, after_snapshot, correlation_id, timestamp
		FROM audit_entries
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.Query(query, entityType, entityID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list audit entries", zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.AuditEntry
	for rows.Next() {
		var entry entity.AuditEntry
		err := rows.Scan(
			&entry.ID,
			&entry.EntityType,
			&entry.EntityID,
			&entry.Action,
			&entry.Actor,
			&entry.Before,
			&entry.After,
			&entry.CorrelationID,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
