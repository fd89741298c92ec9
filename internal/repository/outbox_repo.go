package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
)

// OutboxRepository handles the notification outbox. Rows are written in the
// same transaction as the assignment change that produced them and drained
// after commit by the notification emitter.
type OutboxRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOutboxRepository creates a new outbox repository
func NewOutboxRepository(db *sql.DB, logger *zap.Logger) *OutboxRepository {
	return &OutboxRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a notification event. A duplicate idempotency key is a no-op
// so redelivered transitions do not queue duplicate notifications.
func (r *OutboxRepository) Create(tx *sql.Tx, n *entity.NotificationEvent) error {
	query := `
		INSERT OR IGNORE INTO notification_events (
			assignment_id, to_role, assignment_type, priority,
			due_at, status, idempotency_key
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := pick(r.db, tx).Exec(query,
		n.AssignmentID,
		n.ToRole,
		n.AssignmentType,
		n.Priority,
		n.DueAt,
		entity.NotificationStatusPending,
		n.IdempotencyKey,
	)
	if err != nil {
		r.logger.Error("Failed to create notification event",
			zap.String("assignment_id", n.AssignmentID),
			zap.Error(err))
		return fmt.Errorf("failed to create notification event: %w", err)
	}

	return nil
}

// ListPending retrieves pending notification events, oldest first
func (r *OutboxRepository) ListPending(limit int) ([]*entity.NotificationEvent, error) {
	query := `
		SELECT id, assignment_id, to_role, assignment_type, priority, due_at,
			status, attempts, idempotency_key, last_error, created_at, sent_at
		FROM notification_events
		WHERE status = ?
		ORDER BY created_at
		LIMIT ?
	`

	rows, err := r.db.Query(query, entity.NotificationStatusPending, limit)
	if err != nil {
		r.logger.Error("Failed to list pending notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	defer rows.Close()

	var events []*entity.NotificationEvent
	for rows.Next() {
		var n entity.NotificationEvent
		var sentAt sql.NullTime

		err := rows.Scan(
			&n.ID,
			&n.AssignmentID,
			&n.ToRole,
			&n.AssignmentType,
			&n.Priority,
			&n.DueAt,
			&n.Status,
			&n.Attempts,
			&n.IdempotencyKey,
			&n.LastError,
			&n.CreatedAt,
			&sentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification event: %w", err)
		}
		if sentAt.Valid {
			n.SentAt = &sentAt.Time
		}
		events = append(events, &n)
	}

	return events, rows.Err()
}

// MarkSent records a successful publish
func (r *OutboxRepository) MarkSent(id int64, at time.Time) error {
	query := `
		UPDATE notification_events
		SET status = ?, attempts = attempts + 1, sent_at = ?, last_error = ''
		WHERE id = ?
	`
	_, err := r.db.Exec(query, entity.NotificationStatusSent, at, id)
	if err != nil {
		r.logger.Error("Failed to mark notification sent", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkAttemptFailed records a failed publish; the row stays pending so the
// next drain retries it.
func (r *OutboxRepository) MarkAttemptFailed(id int64, errMsg string) error {
	query := `
		UPDATE notification_events
		SET attempts = attempts + 1, last_error = ?
		WHERE id = ?
	`
	_, err := r.db.Exec(query, errMsg, id)
	if err != nil {
		r.logger.Error("Failed to record notification failure", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to record notification failure: %w", err)
	}
	return nil
}
