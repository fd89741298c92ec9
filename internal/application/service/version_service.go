package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dpatel76/synapse-workflow/internal/application/dispatcher"
	"github.com/dpatel76/synapse-workflow/internal/application/port"
	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
	"github.com/dpatel76/synapse-workflow/internal/domain/event"
	"github.com/dpatel76/synapse-workflow/internal/domain/workflow"
)

// FinalizeOutcome is the version-level decision applied at finalization.
type FinalizeOutcome string

const (
	OutcomeApprove FinalizeOutcome = "APPROVE"
	OutcomeReject  FinalizeOutcome = "REJECT"
)

// VersionService owns the lifecycle of versioned artifacts: creation,
// revision with carry-forward, submission, report-owner decisions, and
// finalization. All mutations run inside transactions; transition events are
// dispatched after commit.
type VersionService interface {
	CreateVersion(ctx context.Context, phaseID int64, createdBy string) (*entity.Version, error)
	CreateRevision(ctx context.Context, parentVersionID int64, changedItemKeys []string, newItems []entity.NewItemInput, createdBy string) (*entity.Version, error)
	SubmitForApproval(ctx context.Context, versionID int64, submittedBy string) error
	RecordOwnerDecision(ctx context.Context, versionID int64, businessKey string, decision entity.Decision, rationale, actor string) error
	Finalize(ctx context.Context, versionID int64, outcome FinalizeOutcome, by, reason string) error
	GetVersion(ctx context.Context, versionID int64) (*entity.Version, error)
	ListVersions(ctx context.Context, phaseID int64) ([]*entity.Version, error)
}

type versionServiceImpl struct {
	versionRepo     port.VersionRepository
	itemRepo        port.ItemRepository
	phaseRepo       port.PhaseRepository
	txRunner        port.TxRunner
	dispatcher      dispatcher.Dispatcher
	auditService    AuditService
	unanimousPhases map[entity.PhaseName]bool
	logger          Logger
}

// NewVersionService creates a new VersionService
func NewVersionService(
	versionRepo port.VersionRepository,
	itemRepo port.ItemRepository,
	phaseRepo port.PhaseRepository,
	txRunner port.TxRunner,
	disp dispatcher.Dispatcher,
	auditService AuditService,
	unanimousPhases map[entity.PhaseName]bool,
	logger Logger,
) VersionService {
	return &versionServiceImpl{
		versionRepo:     versionRepo,
		itemRepo:        itemRepo,
		phaseRepo:       phaseRepo,
		txRunner:        txRunner,
		dispatcher:      disp,
		auditService:    auditService,
		unanimousPhases: unanimousPhases,
		logger:          logger,
	}
}

// CreateVersion creates version 1 (or the next number) of a phase as an
// empty DRAFT. Fails with a ConflictError when an active version exists;
// concurrent creates are also caught by the single-active-draft index, so
// exactly one of two racing calls succeeds.
func (s *versionServiceImpl) CreateVersion(ctx context.Context, phaseID int64, createdBy string) (*entity.Version, error) {
	var version *entity.Version

	err := s.txRunner.WithTransaction(ctx, func(tx *sql.Tx) error {
		phase, err := s.phaseRepo.GetByID(tx, phaseID)
		if err != nil {
			return err
		}
		if phase == nil {
			return &entity.NotFoundError{EntityType: entity.EntityTypePhase, EntityID: fmt.Sprintf("%d", phaseID)}
		}

		active, err := s.versionRepo.GetActive(tx, phaseID)
		if err != nil {
			return err
		}
		if active != nil {
			return &entity.ConflictError{
				EntityType: entity.EntityTypeVersion,
				EntityID:   fmt.Sprintf("%d", active.ID),
				Reason:     fmt.Sprintf("version %d is already %s for this phase", active.Number, active.Status),
			}
		}

		number, err := s.versionRepo.NextNumber(tx, phaseID)
		if err != nil {
			return err
		}

		version = &entity.Version{
			PhaseID:   phaseID,
			Number:    number,
			Status:    entity.VersionDraft,
			CreatedBy: createdBy,
		}
		return s.versionRepo.Create(tx, version)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Version created", "version_id", version.ID, "phase_id", phaseID, "number", version.Number)
	s.auditService.Record(entity.EntityTypeVersion, fmt.Sprintf("%d", version.ID),
		entity.AuditActionVersionCreated, createdBy, nil, version, "")
	s.dispatchPhaseEvent(ctx, event.TypeVersionCreated, version, createdBy)

	return version, nil
}

// CreateRevision produces a new DRAFT version from an APPROVED or REJECTED
// parent. Items whose business key is not in changedItemKeys are copied with
// their decisions intact and carried_forward set; changed keys and newItems
// start over with null decisions. The parent's origin_version_id values are
// preserved so a decision's provenance survives any number of revisions.
func (s *versionServiceImpl) CreateRevision(ctx context.Context, parentVersionID int64, changedItemKeys []string, newItems []entity.NewItemInput, createdBy string) (*entity.Version, error) {
	changed := make(map[string]bool, len(changedItemKeys))
	for _, key := range changedItemKeys {
		changed[key] = true
	}

	var version *entity.Version

	err := s.txRunner.WithTransaction(ctx, func(tx *sql.Tx) error {
		parent, err := s.versionRepo.GetByID(tx, parentVersionID)
		if err != nil {
			return err
		}
		if parent == nil {
			return &entity.NotFoundError{EntityType: entity.EntityTypeVersion, EntityID: fmt.Sprintf("%d", parentVersionID)}
		}
		if parent.Status != entity.VersionApproved && parent.Status != entity.VersionRejected {
			return &entity.ValidationError{
				EntityType: entity.EntityTypeVersion,
				EntityID:   fmt.Sprintf("%d", parentVersionID),
				State:      parent.Status.String(),
				Reason:     "revisions require an APPROVED or REJECTED parent",
			}
		}

		active, err := s.versionRepo.GetActive(tx, parent.PhaseID)
		if err != nil {
			return err
		}
		if active != nil {
			return &entity.ConflictError{
				EntityType: entity.EntityTypeVersion,
				EntityID:   fmt.Sprintf("%d", active.ID),
				Reason:     fmt.Sprintf("version %d is already %s for this phase", active.Number, active.Status),
			}
		}

		number, err := s.versionRepo.NextNumber(tx, parent.PhaseID)
		if err != nil {
			return err
		}

		parentID := parent.ID
		version = &entity.Version{
			PhaseID:         parent.PhaseID,
			Number:          number,
			Status:          entity.VersionDraft,
			ParentVersionID: &parentID,
			CreatedBy:       createdBy,
		}
		if err := s.versionRepo.Create(tx, version); err != nil {
			return err
		}

		parentItems, err := s.itemRepo.ListByVersion(tx, parent.ID)
		if err != nil {
			return err
		}

		items := make([]*entity.Item, 0, len(parentItems)+len(newItems))
		seen := make(map[string]bool, len(parentItems))
		for _, parentItem := range parentItems {
			seen[parentItem.BusinessKey] = true
			if changed[parentItem.BusinessKey] {
				items = append(items, &entity.Item{
					VersionID:   version.ID,
					BusinessKey: parentItem.BusinessKey,
				})
				continue
			}
			items = append(items, &entity.Item{
				VersionID:       version.ID,
				BusinessKey:     parentItem.BusinessKey,
				TesterDecision:  parentItem.TesterDecision,
				TesterRationale: parentItem.TesterRationale,
				OwnerDecision:   parentItem.OwnerDecision,
				OwnerRationale:  parentItem.OwnerRationale,
				CarriedForward:  true,
				OriginVersionID: parentItem.OriginVersionID,
			})
		}
		for _, input := range newItems {
			if seen[input.BusinessKey] {
				continue
			}
			seen[input.BusinessKey] = true
			items = append(items, &entity.Item{
				VersionID:   version.ID,
				BusinessKey: input.BusinessKey,
			})
		}

		return s.itemRepo.BulkInsert(tx, items)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Revision created",
		"version_id", version.ID,
		"parent_version_id", parentVersionID,
		"number", version.Number,
		"changed_keys", len(changedItemKeys))
	s.auditService.Record(entity.EntityTypeVersion, fmt.Sprintf("%d", version.ID),
		entity.AuditActionVersionRevised, createdBy, nil, version, "")

	s.dispatchPhaseEvent(ctx, event.TypeVersionRevised, version, createdBy)
	return version, nil
}

// SubmitForApproval transitions a DRAFT version to PENDING_APPROVAL once
// every item carries a tester decision.
func (s *versionServiceImpl) SubmitForApproval(ctx context.Context, versionID int64, submittedBy string) error {
	var version *entity.Version

	err := s.txRunner.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		version, err = s.requireVersion(tx, versionID)
		if err != nil {
			return err
		}

		machine := workflow.BuildVersionStateMachine(workflow.State(version.Status))
		if err := machine.Fire(ctx, workflow.TriggerSubmit); err != nil {
			return &entity.ValidationError{
				EntityType: entity.EntityTypeVersion,
				EntityID:   fmt.Sprintf("%d", versionID),
				State:      version.Status.String(),
				Reason:     "only DRAFT versions can be submitted for approval",
			}
		}

		missing, err := s.itemRepo.CountMissingTesterDecision(tx, versionID)
		if err != nil {
			return err
		}
		if missing > 0 {
			return &entity.ValidationError{
				EntityType: entity.EntityTypeVersion,
				EntityID:   fmt.Sprintf("%d", versionID),
				State:      version.Status.String(),
				Reason:     fmt.Sprintf("%d item(s) have no tester decision", missing),
			}
		}

		return s.versionRepo.MarkSubmitted(tx, versionID, submittedBy, time.Now())
	})
	if err != nil {
		return err
	}

	s.logger.Info("Version submitted for approval", "version_id", versionID, "submitted_by", submittedBy)
	s.auditService.Record(entity.EntityTypeVersion, fmt.Sprintf("%d", versionID),
		entity.AuditActionVersionSubmitted, submittedBy,
		map[string]string{"status": version.Status.String()},
		map[string]string{"status": entity.VersionPendingApproval.String()}, "")

	s.dispatchPhaseEvent(ctx, event.TypeVersionSubmitted, version, submittedBy)
	return nil
}

// RecordOwnerDecision records a report-owner decision on one item of a
// PENDING_APPROVAL version. Re-applying the same decision is a no-op;
// changing an earlier decision before finalization is allowed and audited.
func (s *versionServiceImpl) RecordOwnerDecision(ctx context.Context, versionID int64, businessKey string, decision entity.Decision, rationale, actor string) error {
	if !decision.IsValid() {
		return &entity.ValidationError{
			EntityType: entity.EntityTypeItem,
			EntityID:   businessKey,
			Reason:     fmt.Sprintf("unknown decision %q", decision),
		}
	}

	var changedFrom *entity.Decision
	noop := false

	err := s.txRunner.WithTransaction(ctx, func(tx *sql.Tx) error {
		version, err := s.requireVersion(tx, versionID)
		if err != nil {
			return err
		}
		if version.Status != entity.VersionPendingApproval {
			return &entity.ValidationError{
				EntityType: entity.EntityTypeVersion,
				EntityID:   fmt.Sprintf("%d", versionID),
				State:      version.Status.String(),
				Reason:     "report-owner decisions require a PENDING_APPROVAL version",
			}
		}

		item, err := s.itemRepo.GetByBusinessKey(tx, versionID, businessKey)
		if err != nil {
			return err
		}
		if item == nil {
			return &entity.NotFoundError{EntityType: entity.EntityTypeItem, EntityID: businessKey}
		}

		if item.OwnerDecision != nil && *item.OwnerDecision == decision && item.OwnerRationale == rationale {
			noop = true
			return nil
		}
		changedFrom = item.OwnerDecision

		ok, err := s.itemRepo.UpdateOwnerDecision(tx, item.ID, item.Revision, decision, rationale)
		if err != nil {
			return err
		}
		if !ok {
			return &entity.StaleWriteError{
				ItemID:           item.ID,
				BusinessKey:      businessKey,
				ExpectedRevision: item.Revision,
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if noop {
		return nil
	}

	action := entity.AuditActionDecisionRecorded
	if changedFrom != nil {
		action = entity.AuditActionDecisionChanged
	}
	s.auditService.Record(entity.EntityTypeItem, fmt.Sprintf("%d:%s", versionID, businessKey),
		action, actor,
		map[string]any{"report_owner_decision": changedFrom},
		map[string]any{"report_owner_decision": decision, "rationale": rationale}, "")

	return nil
}

// Finalize applies the version-level outcome. APPROVE requires every item to
// carry a report-owner decision and, where the phase is configured for
// unanimity, every decision to be ACCEPT; it supersedes any prior approved
// version so exactly one current version remains. REJECT records the reason
// and leaves the phase free to create a revision. The outcome is an explicit
// business call: item-level disagreement does not block approval unless
// unanimity is configured.
func (s *versionServiceImpl) Finalize(ctx context.Context, versionID int64, outcome FinalizeOutcome, by, reason string) error {
	if outcome != OutcomeApprove && outcome != OutcomeReject {
		return &entity.ValidationError{
			EntityType: entity.EntityTypeVersion,
			EntityID:   fmt.Sprintf("%d", versionID),
			Reason:     fmt.Sprintf("unknown finalize outcome %q", outcome),
		}
	}

	var version *entity.Version
	var supersededID *int64

	err := s.txRunner.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		version, err = s.requireVersion(tx, versionID)
		if err != nil {
			return err
		}

		trigger := workflow.TriggerApprove
		if outcome == OutcomeReject {
			trigger = workflow.TriggerReject
		}
		machine := workflow.BuildVersionStateMachine(workflow.State(version.Status))
		if err := machine.Fire(ctx, trigger); err != nil {
			return &entity.ValidationError{
				EntityType: entity.EntityTypeVersion,
				EntityID:   fmt.Sprintf("%d", versionID),
				State:      version.Status.String(),
				Reason:     "only PENDING_APPROVAL versions can be finalized",
			}
		}

		missing, err := s.itemRepo.CountMissingOwnerDecision(tx, versionID)
		if err != nil {
			return err
		}
		if missing > 0 {
			return &entity.ValidationError{
				EntityType: entity.EntityTypeVersion,
				EntityID:   fmt.Sprintf("%d", versionID),
				State:      version.Status.String(),
				Reason:     fmt.Sprintf("%d item(s) have no report-owner decision", missing),
			}
		}

		if outcome == OutcomeReject {
			return s.versionRepo.MarkRejected(tx, versionID, reason)
		}

		phase, err := s.phaseRepo.GetByID(tx, version.PhaseID)
		if err != nil {
			return err
		}
		if phase != nil && s.unanimousPhases[phase.Name] {
			nonAccept, err := s.itemRepo.CountNonAccept(tx, versionID)
			if err != nil {
				return err
			}
			if nonAccept > 0 {
				return &entity.ValidationError{
					EntityType: entity.EntityTypeVersion,
					EntityID:   fmt.Sprintf("%d", versionID),
					State:      version.Status.String(),
					Reason:     fmt.Sprintf("phase requires unanimous ACCEPT; %d item(s) disagree", nonAccept),
				}
			}
		}

		current, err := s.versionRepo.GetCurrent(tx, version.PhaseID)
		if err != nil {
			return err
		}
		if current != nil {
			if err := s.versionRepo.MarkSuperseded(tx, current.ID); err != nil {
				return err
			}
			supersededID = &current.ID
		}

		return s.versionRepo.MarkApproved(tx, versionID, by, time.Now())
	})
	if err != nil {
		return err
	}

	if outcome == OutcomeReject {
		s.logger.Info("Version rejected", "version_id", versionID, "by", by)
		s.auditService.Record(entity.EntityTypeVersion, fmt.Sprintf("%d", versionID),
			entity.AuditActionVersionRejected, by, nil,
			map[string]string{"status": entity.VersionRejected.String(), "reason": reason}, "")
		s.dispatchPhaseEvent(ctx, event.TypeVersionRejected, version, by)
		return nil
	}

	s.logger.Info("Version approved", "version_id", versionID, "by", by)
	s.auditService.Record(entity.EntityTypeVersion, fmt.Sprintf("%d", versionID),
		entity.AuditActionVersionApproved, by, nil,
		map[string]string{"status": entity.VersionApproved.String()}, "")
	if supersededID != nil {
		s.auditService.Record(entity.EntityTypeVersion, fmt.Sprintf("%d", *supersededID),
			entity.AuditActionVersionSuperseded, by, nil,
			map[string]string{"status": entity.VersionSuperseded.String()}, "")
	}

	s.dispatchPhaseEvent(ctx, event.TypeVersionApproved, version, by)
	return nil
}

// GetVersion retrieves a version by ID
func (s *versionServiceImpl) GetVersion(ctx context.Context, versionID int64) (*entity.Version, error) {
	version, err := s.versionRepo.GetByID(nil, versionID)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, &entity.NotFoundError{EntityType: entity.EntityTypeVersion, EntityID: fmt.Sprintf("%d", versionID)}
	}
	return version, nil
}

// ListVersions retrieves all versions of a phase in version order
func (s *versionServiceImpl) ListVersions(ctx context.Context, phaseID int64) ([]*entity.Version, error) {
	return s.versionRepo.ListByPhase(nil, phaseID)
}

func (s *versionServiceImpl) requireVersion(tx *sql.Tx, versionID int64) (*entity.Version, error) {
	version, err := s.versionRepo.GetByID(tx, versionID)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, &entity.NotFoundError{EntityType: entity.EntityTypeVersion, EntityID: fmt.Sprintf("%d", versionID)}
	}
	return version, nil
}

// dispatchPhaseEvent enriches the event with the phase name and dispatches
// it post-commit.
func (s *versionServiceImpl) dispatchPhaseEvent(ctx context.Context, eventType event.Type, version *entity.Version, actor string) {
	phase, err := s.phaseRepo.GetByID(nil, version.PhaseID)
	if err != nil || phase == nil {
		s.logger.Error("Failed to load phase for event dispatch",
			"phase_id", version.PhaseID, "event_type", eventType.String())
		return
	}

	evt := event.NewEvent(eventType, phase.ID, phase.Name, actor).
		WithVersion(version.ID).
		WithPayload("version_number", version.Number)
	s.dispatcher.Dispatch(ctx, evt)
}
