// Package notification drains the assignment notification outbox. Outbox rows
// are written in the same transaction as the assignment change; the emitter
// polls for pending rows and hands them to a Publisher. Delivery is
// at-least-once; receivers deduplicate on the idempotency key.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/dpatel76/synapse-workflow/internal/application/port"
	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
)

// Publisher delivers a notification to an external channel (mail, chat,
// webhook). Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, n *entity.NotificationEvent) error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

const drainBatchSize = 100

// Emitter polls the outbox on a fixed interval and publishes pending rows.
type Emitter struct {
	outboxRepo port.OutboxRepository
	publisher  Publisher
	interval   time.Duration
	logger     Logger
}

// NewEmitter creates a new Emitter
func NewEmitter(outboxRepo port.OutboxRepository, publisher Publisher, interval time.Duration, logger Logger) *Emitter {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Emitter{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		interval:   interval,
		logger:     logger,
	}
}

// Run drains the outbox until the context is cancelled. Blocks; run it in its
// own goroutine.
func (e *Emitter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info("Notification emitter started", "interval", e.interval.String())

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Notification emitter stopped")
			return
		case <-ticker.C:
			e.DrainOnce(ctx)
		}
	}
}

// DrainOnce publishes one batch of pending notifications. A failed publish
// leaves the row pending with the error recorded, so the next tick retries.
func (e *Emitter) DrainOnce(ctx context.Context) {
	pending, err := e.outboxRepo.ListPending(drainBatchSize)
	if err != nil {
		e.logger.Error("Failed to list pending notifications", "error", fmt.Sprintf("%v", err))
		return
	}

	for _, n := range pending {
		if ctx.Err() != nil {
			return
		}
		if err := e.publisher.Publish(ctx, n); err != nil {
			e.logger.Warn("Notification delivery failed",
				"notification_id", n.ID,
				"assignment_id", n.AssignmentID,
				"attempts", n.Attempts+1,
				"error", fmt.Sprintf("%v", err))
			if markErr := e.outboxRepo.MarkAttemptFailed(n.ID, err.Error()); markErr != nil {
				e.logger.Error("Failed to record notification failure", "notification_id", n.ID, "error", fmt.Sprintf("%v", markErr))
			}
			continue
		}
		if err := e.outboxRepo.MarkSent(n.ID, time.Now()); err != nil {
			e.logger.Error("Failed to mark notification sent", "notification_id", n.ID, "error", fmt.Sprintf("%v", err))
		}
	}
}

// LogPublisher writes notifications to the log. Stand-in delivery channel for
// deployments without an external notifier configured.
type LogPublisher struct {
	logger Logger
}

// NewLogPublisher creates a new LogPublisher
func NewLogPublisher(logger Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the notification
func (p *LogPublisher) Publish(ctx context.Context, n *entity.NotificationEvent) error {
	p.logger.Info("Notification",
		"assignment_id", n.AssignmentID,
		"to_role", n.ToRole.String(),
		"type", n.AssignmentType.String(),
		"priority", n.Priority.String(),
		"due_at", n.DueAt)
	return nil
}
