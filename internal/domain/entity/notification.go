package entity

import (
	"fmt"
	"time"
)

// Notification status constants.
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)

// NotificationEvent is an outbox row describing an assignment notification to
// be delivered by an external channel. Rows are written in the same
// transaction as the assignment change and drained after commit, so delivery
// is at-least-once; receivers deduplicate on IdempotencyKey.
type NotificationEvent struct {
	ID             int64          `json:"id"`
	AssignmentID   string         `json:"assignment_id"`
	ToRole         Role           `json:"to_role"`
	AssignmentType AssignmentType `json:"assignment_type"`
	Priority       Priority       `json:"priority"`
	DueAt          time.Time      `json:"due_at"`

	Status         string `json:"status"`
	Attempts       int    `json:"attempts"`
	IdempotencyKey string `json:"idempotency_key"`
	LastError      string `json:"last_error,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// NotificationKey builds the idempotency key for an assignment notification.
func NotificationKey(assignmentID string, status AssignmentStatus) string {
	return fmt.Sprintf("%s:%s", assignmentID, status)
}
