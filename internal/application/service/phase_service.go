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

// PhaseService manages the nine-phase lifecycle of a (cycle, report) pair:
// seeding, the ordinal start gate with parallel-pair exceptions, completion
// against the current approved version, and the administrative reset.
type PhaseService interface {
	SeedPhases(ctx context.Context, cycleID, reportID int64, actor string) ([]*entity.Phase, error)
	StartPhase(ctx context.Context, phaseID int64, actor string) error
	CompletePhase(ctx context.Context, phaseID int64, actor string, force bool) error
	ResetPhase(ctx context.Context, phaseID int64, actor string) error
	GetPhase(ctx context.Context, phaseID int64) (*entity.Phase, error)
	ListPhases(ctx context.Context, cycleID, reportID int64) ([]*entity.Phase, error)

	// HandleVersionApproved reacts to version approval by completing the
	// owning phase when it is still in progress.
	HandleVersionApproved(ctx context.Context, evt *event.Event) error
}

type phaseServiceImpl struct {
	phaseRepo     port.PhaseRepository
	versionRepo   port.VersionRepository
	txRunner      port.TxRunner
	dispatcher    dispatcher.Dispatcher
	auditService  AuditService
	parallelPairs map[entity.PhaseName]entity.PhaseName
	logger        Logger
}

// NewPhaseService creates a new PhaseService
func NewPhaseService(
	phaseRepo port.PhaseRepository,
	versionRepo port.VersionRepository,
	txRunner port.TxRunner,
	disp dispatcher.Dispatcher,
	auditService AuditService,
	parallelPairs map[entity.PhaseName]entity.PhaseName,
	logger Logger,
) PhaseService {
	return &phaseServiceImpl{
		phaseRepo:     phaseRepo,
		versionRepo:   versionRepo,
		txRunner:      txRunner,
		dispatcher:    disp,
		auditService:  auditService,
		parallelPairs: parallelPairs,
		logger:        logger,
	}
}

// SeedPhases creates all nine phases for a (cycle, report) pair in
// NOT_STARTED. Seeding twice for the same pair fails with a ConflictError.
func (s *phaseServiceImpl) SeedPhases(ctx context.Context, cycleID, reportID int64, actor string) ([]*entity.Phase, error) {
	phases := make([]*entity.Phase, 0, len(entity.PhaseOrder))

	err := s.txRunner.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, name := range entity.PhaseOrder {
			phase := &entity.Phase{
				CycleID:  cycleID,
				ReportID: reportID,
				Name:     name,
				Ordinal:  name.Ordinal(),
				Status:   entity.PhaseNotStarted,
			}
			if err := s.phaseRepo.Create(tx, phase); err != nil {
				return err
			}
			phases = append(phases, phase)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Phases seeded", "cycle_id", cycleID, "report_id", reportID, "count", len(phases))
	s.auditService.Record(entity.EntityTypePhase, fmt.Sprintf("%d:%d", cycleID, reportID),
		entity.AuditActionPhaseSeeded, actor, nil,
		map[string]any{"count": len(phases)}, "")

	return phases, nil
}

// StartPhase transitions a phase to IN_PROGRESS. The first phase may start
// unconditionally; any other phase requires its predecessor COMPLETE, or a
// configured co-phase that has itself started.
func (s *phaseServiceImpl) StartPhase(ctx context.Context, phaseID int64, actor string) error {
	var phase *entity.Phase

	err := s.txRunner.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		phase, err = s.requirePhase(tx, phaseID)
		if err != nil {
			return err
		}

		machine := workflow.BuildPhaseStateMachine(workflow.State(phase.Status))
		if err := machine.Fire(ctx, workflow.TriggerStart); err != nil {
			return &entity.ValidationError{
				EntityType: entity.EntityTypePhase,
				EntityID:   fmt.Sprintf("%d", phaseID),
				State:      phase.Status.String(),
				Reason:     "only NOT_STARTED phases can be started",
			}
		}

		if err := s.checkStartGate(tx, phase); err != nil {
			return err
		}

		return s.phaseRepo.MarkStarted(tx, phaseID, actor, time.Now())
	})
	if err != nil {
		return err
	}

	s.logger.Info("Phase started", "phase_id", phaseID, "phase", phase.Name.String(), "by", actor)
	s.auditService.Record(entity.EntityTypePhase, fmt.Sprintf("%d", phaseID),
		entity.AuditActionPhaseStarted, actor,
		map[string]string{"status": phase.Status.String()},
		map[string]string{"status": entity.PhaseInProgress.String()}, "")

	s.dispatcher.Dispatch(ctx, event.NewEvent(event.TypePhaseStarted, phase.ID, phase.Name, actor))
	return nil
}

// CompletePhase transitions an IN_PROGRESS phase to COMPLETE. It requires the
// phase to hold a current APPROVED version; force bypasses that check for
// phases whose work is not versioned.
func (s *phaseServiceImpl) CompletePhase(ctx context.Context, phaseID int64, actor string, force bool) error {
	var phase *entity.Phase

	err := s.txRunner.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		phase, err = s.requirePhase(tx, phaseID)
		if err != nil {
			return err
		}

		machine := workflow.BuildPhaseStateMachine(workflow.State(phase.Status))
		if err := machine.Fire(ctx, workflow.TriggerComplete); err != nil {
			return &entity.ValidationError{
				EntityType: entity.EntityTypePhase,
				EntityID:   fmt.Sprintf("%d", phaseID),
				State:      phase.Status.String(),
				Reason:     "only IN_PROGRESS phases can be completed",
			}
		}

		if !force {
			current, err := s.versionRepo.GetCurrent(tx, phaseID)
			if err != nil {
				return err
			}
			if current == nil {
				return &entity.ValidationError{
					EntityType: entity.EntityTypePhase,
					EntityID:   fmt.Sprintf("%d", phaseID),
					State:      phase.Status.String(),
					Reason:     "phase has no approved version",
				}
			}
		}

		return s.phaseRepo.MarkCompleted(tx, phaseID, actor, time.Now())
	})
	if err != nil {
		return err
	}

	s.logger.Info("Phase completed", "phase_id", phaseID, "phase", phase.Name.String(), "by", actor, "force", force)
	s.auditService.Record(entity.EntityTypePhase, fmt.Sprintf("%d", phaseID),
		entity.AuditActionPhaseCompleted, actor,
		map[string]string{"status": phase.Status.String()},
		map[string]any{"status": entity.PhaseComplete.String(), "force": force}, "")

	s.dispatcher.Dispatch(ctx, event.NewEvent(event.TypePhaseCompleted, phase.ID, phase.Name, actor))
	return nil
}

// ResetPhase forces a phase back to NOT_STARTED, clearing its start and
// completion markers. Versions and their items are untouched. Destructive
// for downstream sequencing, so always audited.
func (s *phaseServiceImpl) ResetPhase(ctx context.Context, phaseID int64, actor string) error {
	var phase *entity.Phase

	err := s.txRunner.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		phase, err = s.requirePhase(tx, phaseID)
		if err != nil {
			return err
		}

		machine := workflow.BuildPhaseStateMachine(workflow.State(phase.Status))
		if err := machine.Fire(ctx, workflow.TriggerReset); err != nil {
			return &entity.ValidationError{
				EntityType: entity.EntityTypePhase,
				EntityID:   fmt.Sprintf("%d", phaseID),
				State:      phase.Status.String(),
				Reason:     "phase is already NOT_STARTED",
			}
		}

		return s.phaseRepo.Reset(tx, phaseID)
	})
	if err != nil {
		return err
	}

	s.logger.Warn("Phase reset", "phase_id", phaseID, "phase", phase.Name.String(), "by", actor)
	s.auditService.Record(entity.EntityTypePhase, fmt.Sprintf("%d", phaseID),
		entity.AuditActionPhaseReset, actor,
		map[string]string{"status": phase.Status.String()},
		map[string]string{"status": entity.PhaseNotStarted.String()}, "")

	s.dispatcher.Dispatch(ctx, event.NewEvent(event.TypePhaseReset, phase.ID, phase.Name, actor))
	return nil
}

// GetPhase retrieves a phase by ID
func (s *phaseServiceImpl) GetPhase(ctx context.Context, phaseID int64) (*entity.Phase, error) {
	phase, err := s.phaseRepo.GetByID(nil, phaseID)
	if err != nil {
		return nil, err
	}
	if phase == nil {
		return nil, &entity.NotFoundError{EntityType: entity.EntityTypePhase, EntityID: fmt.Sprintf("%d", phaseID)}
	}
	return phase, nil
}

// ListPhases retrieves all phases of a report in ordinal order
func (s *phaseServiceImpl) ListPhases(ctx context.Context, cycleID, reportID int64) ([]*entity.Phase, error) {
	return s.phaseRepo.ListByReport(nil, cycleID, reportID)
}

// HandleVersionApproved completes the owning phase when it is in progress.
// Approval of a revision after the phase already completed is a no-op here.
func (s *phaseServiceImpl) HandleVersionApproved(ctx context.Context, evt *event.Event) error {
	phase, err := s.phaseRepo.GetByID(nil, evt.PhaseID)
	if err != nil {
		return err
	}
	if phase == nil || phase.Status != entity.PhaseInProgress {
		return nil
	}
	return s.CompletePhase(ctx, evt.PhaseID, evt.Actor, false)
}

// checkStartGate enforces the sequential start rule. Runs inside the caller's
// transaction so a concurrent reset of the predecessor cannot slip through.
func (s *phaseServiceImpl) checkStartGate(tx *sql.Tx, phase *entity.Phase) error {
	if phase.Ordinal <= 1 {
		return nil
	}

	predecessor := entity.PhaseOrder[phase.Ordinal-2]
	pred, err := s.phaseRepo.GetByName(tx, phase.CycleID, phase.ReportID, predecessor)
	if err != nil {
		return err
	}
	if pred != nil && pred.Status == entity.PhaseComplete {
		return nil
	}

	if coName, ok := s.parallelPairs[phase.Name]; ok {
		co, err := s.phaseRepo.GetByName(tx, phase.CycleID, phase.ReportID, coName)
		if err != nil {
			return err
		}
		if co != nil && co.Status != entity.PhaseNotStarted {
			return nil
		}
	}

	return &entity.ValidationError{
		EntityType: entity.EntityTypePhase,
		EntityID:   fmt.Sprintf("%d", phase.ID),
		State:      phase.Status.String(),
		Reason:     fmt.Sprintf("predecessor phase %s is not complete", predecessor),
	}
}

func (s *phaseServiceImpl) requirePhase(tx *sql.Tx, phaseID int64) (*entity.Phase, error) {
	phase, err := s.phaseRepo.GetByID(tx, phaseID)
	if err != nil {
		return nil, err
	}
	if phase == nil {
		return nil, &entity.NotFoundError{EntityType: entity.EntityTypePhase, EntityID: fmt.Sprintf("%d", phaseID)}
	}
	return phase, nil
}
