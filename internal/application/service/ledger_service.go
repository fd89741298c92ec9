package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dpatel76/synapse-workflow/internal/application/port"
	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
)

// DecisionInput is one tester decision in a bulk write.
type DecisionInput struct {
	BusinessKey string          `json:"business_key"`
	Decision    entity.Decision `json:"decision"`
	Rationale   string          `json:"rationale"`
}

// LedgerService manages the items of a version and their tester decisions.
// Writes are only valid while the owning version is in DRAFT; anything later
// fails with an ImmutableStateError and the caller must revise instead.
type LedgerService interface {
	AddItems(ctx context.Context, versionID int64, inputs []entity.NewItemInput, actor string) ([]*entity.Item, error)
	UpsertTesterDecision(ctx context.Context, versionID int64, businessKey string, decision entity.Decision, rationale, actor string) error
	BulkUpsertTesterDecisions(ctx context.Context, versionID int64, decisions []DecisionInput, actor string) error
	ListItems(ctx context.Context, versionID int64) ([]*entity.Item, error)
	ListUndecided(ctx context.Context, versionID int64) ([]*entity.Item, error)
	ListAwaitingOwner(ctx context.Context, versionID int64) ([]*entity.Item, error)
	ListByDecision(ctx context.Context, versionID int64, decision entity.Decision) ([]*entity.Item, error)
}

type ledgerServiceImpl struct {
	itemRepo     port.ItemRepository
	versionRepo  port.VersionRepository
	txRunner     port.TxRunner
	auditService AuditService
	logger       Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	itemRepo port.ItemRepository,
	versionRepo port.VersionRepository,
	txRunner port.TxRunner,
	auditService AuditService,
	logger Logger,
) LedgerService {
	return &ledgerServiceImpl{
		itemRepo:     itemRepo,
		versionRepo:  versionRepo,
		txRunner:     txRunner,
		auditService: auditService,
		logger:       logger,
	}
}

// AddItems bulk-inserts items with null decisions into a DRAFT version.
// Duplicate business keys within the version fail the whole batch.
func (s *ledgerServiceImpl) AddItems(ctx context.Context, versionID int64, inputs []entity.NewItemInput, actor string) ([]*entity.Item, error) {
	if len(inputs) == 0 {
		return nil, &entity.ValidationError{
			EntityType: entity.EntityTypeVersion,
			EntityID:   fmt.Sprintf("%d", versionID),
			Reason:     "no items to add",
		}
	}

	items := make([]*entity.Item, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for _, input := range inputs {
		if input.BusinessKey == "" {
			return nil, &entity.ValidationError{
				EntityType: entity.EntityTypeItem,
				EntityID:   "",
				Reason:     "business key must not be empty",
			}
		}
		if seen[input.BusinessKey] {
			return nil, &entity.ValidationError{
				EntityType: entity.EntityTypeItem,
				EntityID:   input.BusinessKey,
				Reason:     "duplicate business key in batch",
			}
		}
		seen[input.BusinessKey] = true
		items = append(items, &entity.Item{
			VersionID:   versionID,
			BusinessKey: input.BusinessKey,
		})
	}

	err := s.txRunner.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := s.requireEditable(tx, versionID); err != nil {
			return err
		}
		return s.itemRepo.BulkInsert(tx, items)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Items added", "version_id", versionID, "count", len(items))
	return items, nil
}

// UpsertTesterDecision records or replaces the tester decision on one item.
// The first write stamps the item's origin version; carry-forward preserves
// the stamp on later versions.
func (s *ledgerServiceImpl) UpsertTesterDecision(ctx context.Context, versionID int64, businessKey string, decision entity.Decision, rationale, actor string) error {
	if !decision.IsValid() {
		return &entity.ValidationError{
			EntityType: entity.EntityTypeItem,
			EntityID:   businessKey,
			Reason:     fmt.Sprintf("unknown decision %q", decision),
		}
	}

	var changedFrom *entity.Decision

	err := s.txRunner.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := s.requireEditable(tx, versionID); err != nil {
			return err
		}

		item, err := s.itemRepo.GetByBusinessKey(tx, versionID, businessKey)
		if err != nil {
			return err
		}
		if item == nil {
			return &entity.NotFoundError{EntityType: entity.EntityTypeItem, EntityID: businessKey}
		}
		changedFrom = item.TesterDecision

		return s.applyTesterDecision(tx, item, versionID, decision, rationale)
	})
	if err != nil {
		return err
	}

	action := entity.AuditActionDecisionRecorded
	if changedFrom != nil {
		action = entity.AuditActionDecisionChanged
	}
	s.auditService.Record(entity.EntityTypeItem, fmt.Sprintf("%d:%s", versionID, businessKey),
		action, actor,
		map[string]any{"tester_decision": changedFrom},
		map[string]any{"tester_decision": decision, "rationale": rationale}, "")

	return nil
}

// BulkUpsertTesterDecisions applies a batch of tester decisions in a single
// transaction. Any failure rolls back the whole batch.
func (s *ledgerServiceImpl) BulkUpsertTesterDecisions(ctx context.Context, versionID int64, decisions []DecisionInput, actor string) error {
	if len(decisions) == 0 {
		return &entity.ValidationError{
			EntityType: entity.EntityTypeVersion,
			EntityID:   fmt.Sprintf("%d", versionID),
			Reason:     "no decisions to apply",
		}
	}
	for _, input := range decisions {
		if !input.Decision.IsValid() {
			return &entity.ValidationError{
				EntityType: entity.EntityTypeItem,
				EntityID:   input.BusinessKey,
				Reason:     fmt.Sprintf("unknown decision %q", input.Decision),
			}
		}
	}

	err := s.txRunner.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := s.requireEditable(tx, versionID); err != nil {
			return err
		}

		for _, input := range decisions {
			item, err := s.itemRepo.GetByBusinessKey(tx, versionID, input.BusinessKey)
			if err != nil {
				return err
			}
			if item == nil {
				return &entity.NotFoundError{EntityType: entity.EntityTypeItem, EntityID: input.BusinessKey}
			}
			if err := s.applyTesterDecision(tx, item, versionID, input.Decision, input.Rationale); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Tester decisions applied", "version_id", versionID, "count", len(decisions))
	s.auditService.Record(entity.EntityTypeVersion, fmt.Sprintf("%d", versionID),
		entity.AuditActionDecisionRecorded, actor, nil,
		map[string]any{"bulk_count": len(decisions)}, "")

	return nil
}

// ListItems retrieves all items of a version
func (s *ledgerServiceImpl) ListItems(ctx context.Context, versionID int64) ([]*entity.Item, error) {
	return s.itemRepo.ListByVersion(nil, versionID)
}

// ListUndecided retrieves items with no tester decision yet
func (s *ledgerServiceImpl) ListUndecided(ctx context.Context, versionID int64) ([]*entity.Item, error) {
	return s.itemRepo.ListMissingTesterDecision(nil, versionID)
}

// ListAwaitingOwner retrieves items with no report-owner decision yet
func (s *ledgerServiceImpl) ListAwaitingOwner(ctx context.Context, versionID int64) ([]*entity.Item, error) {
	return s.itemRepo.ListMissingOwnerDecision(nil, versionID)
}

// ListByDecision retrieves items filtered by tester decision
func (s *ledgerServiceImpl) ListByDecision(ctx context.Context, versionID int64, decision entity.Decision) ([]*entity.Item, error) {
	if !decision.IsValid() {
		return nil, &entity.ValidationError{
			EntityType: entity.EntityTypeVersion,
			EntityID:   fmt.Sprintf("%d", versionID),
			Reason:     fmt.Sprintf("unknown decision %q", decision),
		}
	}
	return s.itemRepo.ListByTesterDecision(nil, versionID, decision)
}

func (s *ledgerServiceImpl) applyTesterDecision(tx *sql.Tx, item *entity.Item, versionID int64, decision entity.Decision, rationale string) error {
	ok, err := s.itemRepo.UpdateTesterDecision(tx, item.ID, item.Revision, decision, rationale, versionID)
	if err != nil {
		return err
	}
	if !ok {
		return &entity.StaleWriteError{
			ItemID:           item.ID,
			BusinessKey:      item.BusinessKey,
			ExpectedRevision: item.Revision,
		}
	}
	return nil
}

func (s *ledgerServiceImpl) requireEditable(tx *sql.Tx, versionID int64) error {
	version, err := s.versionRepo.GetByID(tx, versionID)
	if err != nil {
		return err
	}
	if version == nil {
		return &entity.NotFoundError{EntityType: entity.EntityTypeVersion, EntityID: fmt.Sprintf("%d", versionID)}
	}
	if !version.IsEditable() {
		return &entity.ImmutableStateError{VersionID: versionID, State: version.Status}
	}
	return nil
}
