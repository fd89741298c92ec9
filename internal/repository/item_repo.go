package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
)

// ItemRepository is the data-access layer of the item decision ledger. Writes
// use an optimistic revision counter: updates target (id, revision) and a
// miss means the caller lost a concurrent write.
type ItemRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *sql.DB, logger *zap.Logger) *ItemRepository {
	return &ItemRepository{
		db:     db,
		logger: logger,
	}
}

const itemColumns = `id, version_id, business_key, tester_decision, tester_rationale,
	owner_decision, owner_rationale, carried_forward, origin_version_id,
	revision, created_at, updated_at`

// BulkInsert inserts a batch of items. Callers wrap this in a transaction;
// either the whole batch lands or none of it does.
func (r *ItemRepository) BulkInsert(tx *sql.Tx, items []*entity.Item) error {
	query := `
		INSERT INTO items (
			version_id, business_key, tester_decision, tester_rationale,
			owner_decision, owner_rationale, carried_forward, origin_version_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, item := range items {
		result, err := pick(r.db, tx).Exec(query,
			item.VersionID,
			item.BusinessKey,
			decisionValue(item.TesterDecision),
			item.TesterRationale,
			decisionValue(item.OwnerDecision),
			item.OwnerRationale,
			item.CarriedForward,
			item.OriginVersionID,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return &entity.ConflictError{
					EntityType: entity.EntityTypeItem,
					EntityID:   item.BusinessKey,
					Reason:     fmt.Sprintf("item already exists in version %d", item.VersionID),
				}
			}
			r.logger.Error("Failed to insert item",
				zap.Int64("version_id", item.VersionID),
				zap.String("business_key", item.BusinessKey),
				zap.Error(err))
			return fmt.Errorf("failed to insert item: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		item.ID = id
		item.Revision = 1
	}

	return nil
}

// GetByBusinessKey retrieves an item within a version by its stable key
func (r *ItemRepository) GetByBusinessKey(tx *sql.Tx, versionID int64, businessKey string) (*entity.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE version_id = ? AND business_key = ?`
	return r.scanOne(pick(r.db, tx).QueryRow(query, versionID, businessKey))
}

// ListByVersion retrieves all items of a version ordered by business key
func (r *ItemRepository) ListByVersion(tx *sql.Tx, versionID int64) ([]*entity.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE version_id = ? ORDER BY business_key`
	return r.list(tx, query, versionID)
}

// ListMissingTesterDecision retrieves items without a tester decision
func (r *ItemRepository) ListMissingTesterDecision(tx *sql.Tx, versionID int64) ([]*entity.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
		WHERE version_id = ? AND tester_decision IS NULL ORDER BY business_key`
	return r.list(tx, query, versionID)
}

// ListMissingOwnerDecision retrieves items without a report-owner decision
func (r *ItemRepository) ListMissingOwnerDecision(tx *sql.Tx, versionID int64) ([]*entity.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
		WHERE version_id = ? AND owner_decision IS NULL ORDER BY business_key`
	return r.list(tx, query, versionID)
}

// ListByTesterDecision retrieves items whose tester decision matches
func (r *ItemRepository) ListByTesterDecision(tx *sql.Tx, versionID int64, decision entity.Decision) ([]*entity.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
		WHERE version_id = ? AND tester_decision = ? ORDER BY business_key`
	return r.list(tx, query, versionID, decision)
}

// CountMissingTesterDecision counts items without a tester decision
func (r *ItemRepository) CountMissingTesterDecision(tx *sql.Tx, versionID int64) (int, error) {
	return r.count(tx, `SELECT COUNT(*) FROM items WHERE version_id = ? AND tester_decision IS NULL`, versionID)
}

// CountMissingOwnerDecision counts items without a report-owner decision
func (r *ItemRepository) CountMissingOwnerDecision(tx *sql.Tx, versionID int64) (int, error) {
	return r.count(tx, `SELECT COUNT(*) FROM items WHERE version_id = ? AND owner_decision IS NULL`, versionID)
}

// CountNonAccept counts items where either decision is present and not ACCEPT,
// used by the unanimity policy check.
func (r *ItemRepository) CountNonAccept(tx *sql.Tx, versionID int64) (int, error) {
	query := `SELECT COUNT(*) FROM items WHERE version_id = ?
		AND ((tester_decision IS NOT NULL AND tester_decision != ?)
		OR (owner_decision IS NOT NULL AND owner_decision != ?))`

	var n int
	err := pick(r.db, tx).QueryRow(query, versionID, entity.DecisionAccept, entity.DecisionAccept).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count non-accept items: %w", err)
	}
	return n, nil
}

// UpdateTesterDecision writes a tester decision guarded by the revision
// counter. Returns false when the expected revision no longer matches.
func (r *ItemRepository) UpdateTesterDecision(tx *sql.Tx, itemID int64, expectedRevision int, decision entity.Decision, rationale string, originVersionID int64) (bool, error) {
	query := `
		UPDATE items
		SET tester_decision = ?, tester_rationale = ?,
			origin_version_id = COALESCE(origin_version_id, ?),
			revision = revision + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND revision = ?
	`

	result, err := pick(r.db, tx).Exec(query, decision, rationale, originVersionID, itemID, expectedRevision)
	if err != nil {
		r.logger.Error("Failed to update tester decision", zap.Int64("item_id", itemID), zap.Error(err))
		return false, fmt.Errorf("failed to update tester decision: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

// UpdateOwnerDecision writes a report-owner decision guarded by the revision
// counter. Returns false when the expected revision no longer matches.
func (r *ItemRepository) UpdateOwnerDecision(tx *sql.Tx, itemID int64, expectedRevision int, decision entity.Decision, rationale string) (bool, error) {
	query := `
		UPDATE items
		SET owner_decision = ?, owner_rationale = ?,
			revision = revision + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND revision = ?
	`

	result, err := pick(r.db, tx).Exec(query, decision, rationale, itemID, expectedRevision)
	if err != nil {
		r.logger.Error("Failed to update owner decision", zap.Int64("item_id", itemID), zap.Error(err))
		return false, fmt.Errorf("failed to update owner decision: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *ItemRepository) list(tx *sql.Tx, query string, args ...any) ([]*entity.Item, error) {
	rows, err := pick(r.db, tx).Query(query, args...)
	if err != nil {
		r.logger.Error("Failed to list items", zap.Error(err))
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*entity.Item
	for rows.Next() {
		item, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *ItemRepository) count(tx *sql.Tx, query string, args ...any) (int, error) {
	var n int
	if err := pick(r.db, tx).QueryRow(query, args...).Scan(&n); err != nil {
		r.logger.Error("Failed to count items", zap.Error(err))
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return n, nil
}

func (r *ItemRepository) scanOne(row *sql.Row) (*entity.Item, error) {
	item, err := r.scanRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return item, err
}

func (r *ItemRepository) scanRow(row rowScanner) (*entity.Item, error) {
	var item entity.Item
	var testerDecision, ownerDecision sql.NullString
	var originVersionID sql.NullInt64

	err := row.Scan(
		&item.ID,
		&item.VersionID,
		&item.BusinessKey,
		&testerDecision,
		&item.TesterRationale,
		&ownerDecision,
		&item.OwnerRationale,
		&item.CarriedForward,
		&originVersionID,
		&item.Revision,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if err != sql.ErrNoRows {
			r.logger.Error("Failed to scan item", zap.Error(err))
		}
		return nil, err
	}

	if testerDecision.Valid {
		d := entity.Decision(testerDecision.String)
		item.TesterDecision = &d
	}
	if ownerDecision.Valid {
		d := entity.Decision(ownerDecision.String)
		item.OwnerDecision = &d
	}
	if originVersionID.Valid {
		item.OriginVersionID = &originVersionID.Int64
	}

	return &item, nil
}

// decisionValue converts a nullable decision for binding.
func decisionValue(d *entity.Decision) any {
	if d == nil {
		return nil
	}
	return string(*d)
}
