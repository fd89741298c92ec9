package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dpatel76/synapse-workflow/internal/application/port"
	"github.com/dpatel76/synapse-workflow/internal/application/routing"
	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
	"github.com/dpatel76/synapse-workflow/internal/domain/event"
)

// AssignmentService routes assignments on phase/version transitions and
// manages their caller-driven status lifecycle. Routing is table-driven: a
// transition with no rule produces no assignment. A new assignment cancels
// any unacknowledged assignment of the same (phase, type) so a role never
// holds two live copies of the same ask.
type AssignmentService interface {
	// HandleTransition is the dispatcher handler consulting the routing table.
	HandleTransition(ctx context.Context, evt *event.Event) error

	Acknowledge(ctx context.Context, assignmentID, actor string) error
	StartWork(ctx context.Context, assignmentID, actor string) error
	Complete(ctx context.Context, assignmentID, actor string) error
	Cancel(ctx context.Context, assignmentID, reason, actor string) error

	GetAssignment(ctx context.Context, assignmentID string) (*entity.Assignment, error)
	ListByPhase(ctx context.Context, phaseID int64) ([]*entity.Assignment, error)
	ListOverdue(ctx context.Context) ([]*entity.Assignment, error)
}

type assignmentServiceImpl struct {
	assignmentRepo port.AssignmentRepository
	outboxRepo     port.OutboxRepository
	txRunner       port.TxRunner
	auditService   AuditService
	table          *routing.Table
	logger         Logger
}

// NewAssignmentService creates a new AssignmentService
func NewAssignmentService(
	assignmentRepo port.AssignmentRepository,
	outboxRepo port.OutboxRepository,
	txRunner port.TxRunner,
	auditService AuditService,
	table *routing.Table,
	logger Logger,
) AssignmentService {
	return &assignmentServiceImpl{
		assignmentRepo: assignmentRepo,
		outboxRepo:     outboxRepo,
		txRunner:       txRunner,
		auditService:   auditService,
		table:          table,
		logger:         logger,
	}
}

// HandleTransition creates an assignment for the transition per the routing
// table, cancelling any stale unacknowledged assignment of the same type
// first. Both writes and the notification outbox row share one transaction.
func (s *assignmentServiceImpl) HandleTransition(ctx context.Context, evt *event.Event) error {
	rule, ok := s.table.Lookup(evt.PhaseName, evt.Type)
	if !ok {
		return nil
	}

	now := time.Now()
	assignment := &entity.Assignment{
		ID:        uuid.NewString(),
		PhaseID:   evt.PhaseID,
		VersionID: evt.VersionID,
		FromRole:  rule.FromRole,
		ToRole:    rule.ToRole,
		Type:      rule.Type,
		Status:    entity.AssignmentAssigned,
		Priority:  rule.Priority,
		DueAt:     now.Add(time.Duration(rule.SLAHours) * time.Hour),
	}

	var cancelled *entity.Assignment

	err := s.txRunner.WithTransaction(ctx, func(tx *sql.Tx) error {
		stale, err := s.assignmentRepo.GetUnacknowledged(tx, evt.PhaseID, rule.Type)
		if err != nil {
			return err
		}
		if stale != nil {
			at := now
			stale.Status = entity.AssignmentCancelled
			stale.CancelledAt = &at
			stale.CancelReason = "superseded by newer assignment"
			if err := s.assignmentRepo.UpdateStatus(tx, stale); err != nil {
				return err
			}
			cancelled = stale
		}

		if err := s.assignmentRepo.Create(tx, assignment); err != nil {
			return err
		}

		return s.outboxRepo.Create(tx, &entity.NotificationEvent{
			AssignmentID:   assignment.ID,
			ToRole:         assignment.ToRole,
			AssignmentType: assignment.Type,
			Priority:       assignment.Priority,
			DueAt:          assignment.DueAt,
			Status:         entity.NotificationStatusPending,
			IdempotencyKey: entity.NotificationKey(assignment.ID, assignment.Status),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to route assignment for %s on phase %d: %w", evt.Type, evt.PhaseID, err)
	}

	if cancelled != nil {
		s.auditService.Record(entity.EntityTypeAssignment, cancelled.ID,
			entity.AuditActionAssignmentCancelled, entity.RoleSystem.String(),
			map[string]string{"status": entity.AssignmentAssigned.String()},
			map[string]string{"status": entity.AssignmentCancelled.String(), "reason": cancelled.CancelReason},
			evt.CorrelationID)
	}

	s.logger.Info("Assignment routed",
		"assignment_id", assignment.ID,
		"phase_id", evt.PhaseID,
		"type", assignment.Type.String(),
		"to_role", assignment.ToRole.String(),
		"due_at", assignment.DueAt)
	s.auditService.Record(entity.EntityTypeAssignment, assignment.ID,
		entity.AuditActionAssignmentCreated, evt.Actor, nil, assignment, evt.CorrelationID)

	return nil
}

// Acknowledge moves an ASSIGNED assignment to ACKNOWLEDGED.
func (s *assignmentServiceImpl) Acknowledge(ctx context.Context, assignmentID, actor string) error {
	return s.transition(ctx, assignmentID, entity.AssignmentAcknowledged, actor, "", func(a *entity.Assignment, at time.Time) {
		a.AcknowledgedAt = &at
	})
}

// StartWork moves an ACKNOWLEDGED assignment to IN_PROGRESS.
func (s *assignmentServiceImpl) StartWork(ctx context.Context, assignmentID, actor string) error {
	return s.transition(ctx, assignmentID, entity.AssignmentInProgress, actor, "", nil)
}

// Complete moves an IN_PROGRESS assignment to COMPLETED. Completion records
// the actor but never drives phase or version state.
func (s *assignmentServiceImpl) Complete(ctx context.Context, assignmentID, actor string) error {
	return s.transition(ctx, assignmentID, entity.AssignmentCompleted, actor, "", func(a *entity.Assignment, at time.Time) {
		a.CompletedAt = &at
		a.CompletedBy = actor
	})
}

// Cancel withdraws a non-terminal assignment.
func (s *assignmentServiceImpl) Cancel(ctx context.Context, assignmentID, reason, actor string) error {
	return s.transition(ctx, assignmentID, entity.AssignmentCancelled, actor, reason, func(a *entity.Assignment, at time.Time) {
		a.CancelledAt = &at
		a.CancelReason = reason
	})
}

// GetAssignment retrieves an assignment by ID
func (s *assignmentServiceImpl) GetAssignment(ctx context.Context, assignmentID string) (*entity.Assignment, error) {
	assignment, err := s.assignmentRepo.GetByID(nil, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, &entity.NotFoundError{EntityType: entity.EntityTypeAssignment, EntityID: assignmentID}
	}
	return assignment, nil
}

// ListByPhase retrieves all assignments of a phase, newest first
func (s *assignmentServiceImpl) ListByPhase(ctx context.Context, phaseID int64) ([]*entity.Assignment, error) {
	return s.assignmentRepo.ListByPhase(nil, phaseID)
}

// ListOverdue retrieves open assignments past their due date
func (s *assignmentServiceImpl) ListOverdue(ctx context.Context) ([]*entity.Assignment, error) {
	return s.assignmentRepo.ListOverdue(nil, time.Now())
}

func (s *assignmentServiceImpl) transition(ctx context.Context, assignmentID string, to entity.AssignmentStatus, actor, reason string, mark func(*entity.Assignment, time.Time)) error {
	var from entity.AssignmentStatus

	err := s.txRunner.WithTransaction(ctx, func(tx *sql.Tx) error {
		assignment, err := s.assignmentRepo.GetByID(tx, assignmentID)
		if err != nil {
			return err
		}
		if assignment == nil {
			return &entity.NotFoundError{EntityType: entity.EntityTypeAssignment, EntityID: assignmentID}
		}
		if !assignment.CanTransition(to) {
			return &entity.ValidationError{
				EntityType: entity.EntityTypeAssignment,
				EntityID:   assignmentID,
				State:      assignment.Status.String(),
				Reason:     fmt.Sprintf("cannot transition to %s", to),
			}
		}

		from = assignment.Status
		assignment.Status = to
		if mark != nil {
			mark(assignment, time.Now())
		}
		return s.assignmentRepo.UpdateStatus(tx, assignment)
	})
	if err != nil {
		return err
	}

	action := entity.AuditActionAssignmentUpdated
	if to == entity.AssignmentCancelled {
		action = entity.AuditActionAssignmentCancelled
	}
	after := map[string]string{"status": to.String()}
	if reason != "" {
		after["reason"] = reason
	}
	s.auditService.Record(entity.EntityTypeAssignment, assignmentID, action, actor,
		map[string]string{"status": from.String()}, after, "")

	return nil
}
