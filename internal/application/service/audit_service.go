package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dpatel76/synapse-workflow/internal/application/port"
	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
)

// AuditService records immutable audit entries for every state change.
// Recording is best-effort: a failure is surfaced as a degraded-mode warning
// and never fails the operation that produced the change.
type AuditService interface {
	Record(entityType, entityID, action, actor string, before, after any, correlationID string)
	Trail(entityType, entityID string, limit, offset int) ([]*entity.AuditEntry, error)
}

type auditServiceImpl struct {
	auditRepo port.AuditRepository
	logger    Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(auditRepo port.AuditRepository, logger Logger) AuditService {
	return &auditServiceImpl{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// Record appends an audit entry with JSON snapshots of the before/after
// state. Runs outside the primary transaction.
func (s *auditServiceImpl) Record(entityType, entityID, action, actor string, before, after any, correlationID string) {
	entry := &entity.AuditEntry{
		EntityType:    entityType,
		EntityID:      entityID,
		Action:        action,
		Actor:         actor,
		Before:        snapshot(before),
		After:         snapshot(after),
		CorrelationID: correlationID,
		Timestamp:     time.Now(),
	}

	if err := s.auditRepo.Create(nil, entry); err != nil {
		s.logger.Warn("Audit recording degraded: entry not persisted",
			"entity_type", entityType,
			"entity_id", entityID,
			"action", action,
			"error", fmt.Sprintf("%v", err))
	}
}

// Trail retrieves audit entries for an entity, newest first
func (s *auditServiceImpl) Trail(entityType, entityID string, limit, offset int) ([]*entity.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.auditRepo.ListByEntity(entityType, entityID, limit, offset)
}

func snapshot(v any) string {
	if v == nil {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
