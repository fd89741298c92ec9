package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
	"github.com/dpatel76/synapse-workflow/internal/domain/event"
)

func decisionPtr(d entity.Decision) *entity.Decision {
	return &d
}

func int64Ptr(v int64) *int64 {
	return &v
}

func newVersionService(
	versionRepo *mockVersionRepo,
	itemRepo *mockItemRepo,
	phaseRepo *mockPhaseRepo,
	disp *mockDispatcher,
	audit *mockAuditRepo,
	unanimous map[entity.PhaseName]bool,
) VersionService {
	logger := &mockLogger{}
	return NewVersionService(
		versionRepo, itemRepo, phaseRepo,
		&mockTxRunner{}, disp,
		NewAuditService(audit, logger),
		unanimous, logger,
	)
}

func TestVersionService_CreateVersion(t *testing.T) {
	versionRepo := &mockVersionRepo{
		nextNumberFunc: func(tx *sql.Tx, phaseID int64) (int, error) { return 1, nil },
	}
	audit := &mockAuditRepo{}
	disp := &mockDispatcher{}
	svc := newVersionService(versionRepo, &mockItemRepo{}, &mockPhaseRepo{}, disp, audit, nil)

	version, err := svc.CreateVersion(context.Background(), 1, "tester-1")
	require.NoError(t, err)
	assert.Equal(t, 1, version.Number)
	assert.Equal(t, entity.VersionDraft, version.Status)
	assert.Equal(t, "tester-1", version.CreatedBy)
	assert.Nil(t, version.ParentVersionID)
	assert.Contains(t, audit.actions(), entity.AuditActionVersionCreated)
	assert.Contains(t, disp.types(), event.TypeVersionCreated)
}

func TestVersionService_CreateVersion_ActiveConflict(t *testing.T) {
	versionRepo := &mockVersionRepo{
		getActiveFunc: func(tx *sql.Tx, phaseID int64) (*entity.Version, error) {
			return &entity.Version{ID: 7, PhaseID: phaseID, Number: 2, Status: entity.VersionPendingApproval}, nil
		},
	}
	svc := newVersionService(versionRepo, &mockItemRepo{}, &mockPhaseRepo{}, &mockDispatcher{}, &mockAuditRepo{}, nil)

	_, err := svc.CreateVersion(context.Background(), 1, "tester-1")
	var conflictErr *entity.ConflictError
	require.ErrorAs(t, err, &conflictErr)
}

func TestVersionService_CreateVersion_PhaseNotFound(t *testing.T) {
	phaseRepo := &mockPhaseRepo{
		getByIDFunc: func(tx *sql.Tx, id int64) (*entity.Phase, error) { return nil, nil },
	}
	svc := newVersionService(&mockVersionRepo{}, &mockItemRepo{}, phaseRepo, &mockDispatcher{}, &mockAuditRepo{}, nil)

	_, err := svc.CreateVersion(context.Background(), 99, "tester-1")
	var notFoundErr *entity.NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

func TestVersionService_CreateRevision_CarryForward(t *testing.T) {
	// Parent v1 is REJECTED with three decided items. "attr-2" changed, and
	// "attr-4" is new. Unchanged items keep decisions and origin; changed and
	// new items start over.
	parent := &entity.Version{ID: 10, PhaseID: 1, Number: 1, Status: entity.VersionRejected}
	parentItems := []*entity.Item{
		{
			ID: 1, VersionID: 10, BusinessKey: "attr-1",
			TesterDecision:  decisionPtr(entity.DecisionAccept),
			OwnerDecision:   decisionPtr(entity.DecisionAccept),
			OriginVersionID: int64Ptr(10),
			Revision:        2,
		},
		{
			ID: 2, VersionID: 10, BusinessKey: "attr-2",
			TesterDecision:  decisionPtr(entity.DecisionReject),
			TesterRationale: "stale mapping",
			OwnerDecision:   decisionPtr(entity.DecisionReject),
			OriginVersionID: int64Ptr(10),
			Revision:        3,
		},
		{
			ID: 3, VersionID: 10, BusinessKey: "attr-3",
			TesterDecision:  decisionPtr(entity.DecisionAccept),
			OwnerDecision:   decisionPtr(entity.DecisionRequestChanges),
			OriginVersionID: int64Ptr(4),
			Revision:        1,
		},
	}

	var inserted []*entity.Item
	versionRepo := &mockVersionRepo{
		getByIDFunc: func(tx *sql.Tx, id int64) (*entity.Version, error) { return parent, nil },
		nextNumberFunc: func(tx *sql.Tx, phaseID int64) (int, error) { return 2, nil },
		createFunc: func(tx *sql.Tx, version *entity.Version) error {
			version.ID = 11
			return nil
		},
	}
	itemRepo := &mockItemRepo{
		listByVersionFunc: func(tx *sql.Tx, versionID int64) ([]*entity.Item, error) {
			return parentItems, nil
		},
		bulkInsertFunc: func(tx *sql.Tx, items []*entity.Item) error {
			inserted = items
			return nil
		},
	}
	disp := &mockDispatcher{}
	svc := newVersionService(versionRepo, itemRepo, &mockPhaseRepo{}, disp, &mockAuditRepo{}, nil)

	version, err := svc.CreateRevision(context.Background(), 10,
		[]string{"attr-2"},
		[]entity.NewItemInput{{BusinessKey: "attr-4"}},
		"tester-1")
	require.NoError(t, err)

	assert.Equal(t, 2, version.Number)
	require.NotNil(t, version.ParentVersionID)
	assert.Equal(t, int64(10), *version.ParentVersionID)

	require.Len(t, inserted, 4)
	byKey := make(map[string]*entity.Item, len(inserted))
	for _, item := range inserted {
		byKey[item.BusinessKey] = item
		assert.Equal(t, int64(11), item.VersionID)
	}

	// Scenario A: unchanged item carries decisions and origin forward.
	carried := byKey["attr-1"]
	require.NotNil(t, carried)
	assert.True(t, carried.CarriedForward)
	assert.Equal(t, entity.DecisionAccept, *carried.TesterDecision)
	assert.Equal(t, entity.DecisionAccept, *carried.OwnerDecision)
	assert.Equal(t, int64(10), *carried.OriginVersionID)

	// Origin older than the parent survives intact.
	assert.Equal(t, int64(4), *byKey["attr-3"].OriginVersionID)

	// Scenario B: changed item starts over.
	changed := byKey["attr-2"]
	require.NotNil(t, changed)
	assert.False(t, changed.CarriedForward)
	assert.Nil(t, changed.TesterDecision)
	assert.Nil(t, changed.OwnerDecision)
	assert.Empty(t, changed.TesterRationale)
	assert.Nil(t, changed.OriginVersionID)

	// Scenario C: new item starts empty.
	fresh := byKey["attr-4"]
	require.NotNil(t, fresh)
	assert.False(t, fresh.CarriedForward)
	assert.Nil(t, fresh.TesterDecision)

	assert.Contains(t, disp.types(), event.TypeVersionRevised)
}

func TestVersionService_CreateRevision_RequiresDecidedParent(t *testing.T) {
	for _, status := range []entity.VersionStatus{entity.VersionDraft, entity.VersionPendingApproval, entity.VersionSuperseded} {
		versionRepo := &mockVersionRepo{
			getByIDFunc: func(tx *sql.Tx, id int64) (*entity.Version, error) {
				return &entity.Version{ID: id, PhaseID: 1, Number: 1, Status: status}, nil
			},
		}
		svc := newVersionService(versionRepo, &mockItemRepo{}, &mockPhaseRepo{}, &mockDispatcher{}, &mockAuditRepo{}, nil)

		_, err := svc.CreateRevision(context.Background(), 10, nil, nil, "tester-1")
		var validationErr *entity.ValidationError
		require.ErrorAs(t, err, &validationErr, "parent status %s", status)
	}
}

func TestVersionService_SubmitForApproval(t *testing.T) {
	tests := []struct {
		name          string
		status        entity.VersionStatus
		missingTester int
		wantErr       bool
	}{
		{
			name:   "draft with all decisions",
			status: entity.VersionDraft,
		},
		{
			name:          "draft with undecided items",
			status:        entity.VersionDraft,
			missingTester: 3,
			wantErr:       true,
		},
		{
			name:    "already pending",
			status:  entity.VersionPendingApproval,
			wantErr: true,
		},
		{
			name:    "approved version",
			status:  entity.VersionApproved,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			versionRepo := &mockVersionRepo{
				getByIDFunc: func(tx *sql.Tx, id int64) (*entity.Version, error) {
					return &entity.Version{ID: id, PhaseID: 1, Number: 1, Status: tt.status}, nil
				},
			}
			itemRepo := &mockItemRepo{
				countMissingTesterDecisionFunc: func(tx *sql.Tx, versionID int64) (int, error) {
					return tt.missingTester, nil
				},
			}
			disp := &mockDispatcher{}
			svc := newVersionService(versionRepo, itemRepo, &mockPhaseRepo{}, disp, &mockAuditRepo{}, nil)

			err := svc.SubmitForApproval(context.Background(), 5, "tester-1")
			if tt.wantErr {
				var validationErr *entity.ValidationError
				require.ErrorAs(t, err, &validationErr)
				assert.Empty(t, disp.dispatched())
				return
			}
			require.NoError(t, err)
			assert.Contains(t, disp.types(), event.TypeVersionSubmitted)
		})
	}
}

func TestVersionService_RecordOwnerDecision(t *testing.T) {
	item := &entity.Item{
		ID: 3, VersionID: 5, BusinessKey: "attr-1",
		TesterDecision: decisionPtr(entity.DecisionAccept),
		Revision:       2,
	}
	versionRepo := &mockVersionRepo{
		getByIDFunc: func(tx *sql.Tx, id int64) (*entity.Version, error) {
			return &entity.Version{ID: id, PhaseID: 1, Status: entity.VersionPendingApproval}, nil
		},
	}
	var gotRevision int
	itemRepo := &mockItemRepo{
		getByBusinessKeyFunc: func(tx *sql.Tx, versionID int64, businessKey string) (*entity.Item, error) {
			return item, nil
		},
		updateOwnerDecisionFunc: func(tx *sql.Tx, itemID int64, expectedRevision int, decision entity.Decision, rationale string) (bool, error) {
			gotRevision = expectedRevision
			return true, nil
		},
	}
	audit := &mockAuditRepo{}
	svc := newVersionService(versionRepo, itemRepo, &mockPhaseRepo{}, &mockDispatcher{}, audit, nil)

	err := svc.RecordOwnerDecision(context.Background(), 5, "attr-1", entity.DecisionReject, "disagree", "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 2, gotRevision)
	assert.Contains(t, audit.actions(), entity.AuditActionDecisionRecorded)
}

func TestVersionService_RecordOwnerDecision_Idempotent(t *testing.T) {
	item := &entity.Item{
		ID: 3, VersionID: 5, BusinessKey: "attr-1",
		OwnerDecision:  decisionPtr(entity.DecisionAccept),
		OwnerRationale: "fine",
		Revision:       1,
	}
	versionRepo := &mockVersionRepo{
		getByIDFunc: func(tx *sql.Tx, id int64) (*entity.Version, error) {
			return &entity.Version{ID: id, PhaseID: 1, Status: entity.VersionPendingApproval}, nil
		},
	}
	updates := 0
	itemRepo := &mockItemRepo{
		getByBusinessKeyFunc: func(tx *sql.Tx, versionID int64, businessKey string) (*entity.Item, error) {
			return item, nil
		},
		updateOwnerDecisionFunc: func(tx *sql.Tx, itemID int64, expectedRevision int, decision entity.Decision, rationale string) (bool, error) {
			updates++
			return true, nil
		},
	}
	audit := &mockAuditRepo{}
	svc := newVersionService(versionRepo, itemRepo, &mockPhaseRepo{}, &mockDispatcher{}, audit, nil)

	err := svc.RecordOwnerDecision(context.Background(), 5, "attr-1", entity.DecisionAccept, "fine", "owner-1")
	require.NoError(t, err)
	assert.Zero(t, updates, "re-applying the same decision must be a no-op")
	assert.Empty(t, audit.actions())
}

func TestVersionService_RecordOwnerDecision_ChangeAudited(t *testing.T) {
	item := &entity.Item{
		ID: 3, VersionID: 5, BusinessKey: "attr-1",
		OwnerDecision: decisionPtr(entity.DecisionAccept),
		Revision:      1,
	}
	versionRepo := &mockVersionRepo{
		getByIDFunc: func(tx *sql.Tx, id int64) (*entity.Version, error) {
			return &entity.Version{ID: id, PhaseID: 1, Status: entity.VersionPendingApproval}, nil
		},
	}
	itemRepo := &mockItemRepo{
		getByBusinessKeyFunc: func(tx *sql.Tx, versionID int64, businessKey string) (*entity.Item, error) {
			return item, nil
		},
	}
	audit := &mockAuditRepo{}
	svc := newVersionService(versionRepo, itemRepo, &mockPhaseRepo{}, &mockDispatcher{}, audit, nil)

	err := svc.RecordOwnerDecision(context.Background(), 5, "attr-1", entity.DecisionReject, "changed mind", "owner-1")
	require.NoError(t, err)
	assert.Contains(t, audit.actions(), entity.AuditActionDecisionChanged)
}

func TestVersionService_RecordOwnerDecision_RequiresPending(t *testing.T) {
	versionRepo := &mockVersionRepo{
		getByIDFunc: func(tx *sql.Tx, id int64) (*entity.Version, error) {
			return &entity.Version{ID: id, PhaseID: 1, Status: entity.VersionDraft}, nil
		},
	}
	svc := newVersionService(versionRepo, &mockItemRepo{}, &mockPhaseRepo{}, &mockDispatcher{}, &mockAuditRepo{}, nil)

	err := svc.RecordOwnerDecision(context.Background(), 5, "attr-1", entity.DecisionAccept, "", "owner-1")
	var validationErr *entity.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestVersionService_RecordOwnerDecision_StaleWrite(t *testing.T) {
	versionRepo := &mockVersionRepo{
		getByIDFunc: func(tx *sql.Tx, id int64) (*entity.Version, error) {
			return &entity.Version{ID: id, PhaseID: 1, Status: entity.VersionPendingApproval}, nil
		},
	}
	itemRepo := &mockItemRepo{
		updateOwnerDecisionFunc: func(tx *sql.Tx, itemID int64, expectedRevision int, decision entity.Decision, rationale string) (bool, error) {
			return false, nil
		},
	}
	svc := newVersionService(versionRepo, itemRepo, &mockPhaseRepo{}, &mockDispatcher{}, &mockAuditRepo{}, nil)

	err := svc.RecordOwnerDecision(context.Background(), 5, "attr-1", entity.DecisionAccept, "", "owner-1")
	var staleErr *entity.StaleWriteError
	require.ErrorAs(t, err, &staleErr)
}

func TestVersionService_Finalize_ApproveSupersedesCurrent(t *testing.T) {
	supersededID := int64(0)
	approvedID := int64(0)
	versionRepo := &mockVersionRepo{
		getByIDFunc: func(tx *sql.Tx, id int64) (*entity.Version, error) {
			return &entity.Version{ID: id, PhaseID: 1, Number: 2, Status: entity.VersionPendingApproval}, nil
		},
		getCurrentFunc: func(tx *sql.Tx, phaseID int64) (*entity.Version, error) {
			return &entity.Version{ID: 10, PhaseID: phaseID, Number: 1, Status: entity.VersionApproved}, nil
		},
		markSupersededFunc: func(tx *sql.Tx, id int64) error {
			supersededID = id
			return nil
		},
		markApprovedFunc: func(tx *sql.Tx, id int64, by string, at time.Time) error {
			approvedID = id
			return nil
		},
	}
	disp := &mockDispatcher{}
	audit := &mockAuditRepo{}
	svc := newVersionService(versionRepo, &mockItemRepo{}, &mockPhaseRepo{}, disp, audit, nil)

	err := svc.Finalize(context.Background(), 11, OutcomeApprove, "owner-1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(10), supersededID)
	assert.Equal(t, int64(11), approvedID)
	assert.Contains(t, disp.types(), event.TypeVersionApproved)
	assert.Contains(t, audit.actions(), entity.AuditActionVersionApproved)
	assert.Contains(t, audit.actions(), entity.AuditActionVersionSuperseded)
}

func TestVersionService_Finalize_ApproveDespiteDisagreement(t *testing.T) {
	// Item-level REJECTs do not block approval when unanimity is not
	// configured for the phase.
	versionRepo := &mockVersionRepo{
		getByIDFunc: func(tx *sql.Tx, id int64) (*entity.Version, error) {
			return &entity.Version{ID: id, PhaseID: 1, Status: entity.VersionPendingApproval}, nil
		},
	}
	itemRepo := &mockItemRepo{
		countNonAcceptFunc: func(tx *sql.Tx, versionID int64) (int, error) { return 2, nil },
	}
	svc := newVersionService(versionRepo, itemRepo, &mockPhaseRepo{}, &mockDispatcher{}, &mockAuditRepo{}, nil)

	err := svc.Finalize(context.Background(), 5, OutcomeApprove, "owner-1", "")
	require.NoError(t, err)
}

func TestVersionService_Finalize_UnanimityBlocksApproval(t *testing.T) {
	versionRepo := &mockVersionRepo{
		getByIDFunc: func(tx *sql.Tx, id int64) (*entity.Version, error) {
			return &entity.Version{ID: id, PhaseID: 1, Status: entity.VersionPendingApproval}, nil
		},
	}
	itemRepo := &mockItemRepo{
		countNonAcceptFunc: func(tx *sql.Tx, versionID int64) (int, error) { return 1, nil },
	}
	unanimous := map[entity.PhaseName]bool{entity.PhasePlanning: true}
	svc := newVersionService(versionRepo, itemRepo, &mockPhaseRepo{}, &mockDispatcher{}, &mockAuditRepo{}, unanimous)

	err := svc.Finalize(context.Background(), 5, OutcomeApprove, "owner-1", "")
	var validationErr *entity.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestVersionService_Finalize_RequiresAllOwnerDecisions(t *testing.T) {
	versionRepo := &mockVersionRepo{
		getByIDFunc: func(tx *sql.Tx, id int64) (*entity.Version, error) {
			return &entity.Version{ID: id, PhaseID: 1, Status: entity.VersionPendingApproval}, nil
		},
	}
	itemRepo := &mockItemRepo{
		countMissingOwnerDecisionFunc: func(tx *sql.Tx, versionID int64) (int, error) { return 2, nil },
	}
	svc := newVersionService(versionRepo, itemRepo, &mockPhaseRepo{}, &mockDispatcher{}, &mockAuditRepo{}, nil)

	err := svc.Finalize(context.Background(), 5, OutcomeApprove, "owner-1", "")
	var validationErr *entity.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestVersionService_Finalize_Reject(t *testing.T) {
	gotReason := ""
	versionRepo := &mockVersionRepo{
		getByIDFunc: func(tx *sql.Tx, id int64) (*entity.Version, error) {
			return &entity.Version{ID: id, PhaseID: 1, Status: entity.VersionPendingApproval}, nil
		},
		markRejectedFunc: func(tx *sql.Tx, id int64, reason string) error {
			gotReason = reason
			return nil
		},
	}
	disp := &mockDispatcher{}
	svc := newVersionService(versionRepo, &mockItemRepo{}, &mockPhaseRepo{}, disp, &mockAuditRepo{}, nil)

	err := svc.Finalize(context.Background(), 5, OutcomeReject, "owner-1", "sampling too narrow")
	require.NoError(t, err)
	assert.Equal(t, "sampling too narrow", gotReason)
	assert.Contains(t, disp.types(), event.TypeVersionRejected)
}

func TestVersionService_Finalize_RequiresPending(t *testing.T) {
	versionRepo := &mockVersionRepo{
		getByIDFunc: func(tx *sql.Tx, id int64) (*entity.Version, error) {
			return &entity.Version{ID: id, PhaseID: 1, Status: entity.VersionDraft}, nil
		},
	}
	svc := newVersionService(versionRepo, &mockItemRepo{}, &mockPhaseRepo{}, &mockDispatcher{}, &mockAuditRepo{}, nil)

	err := svc.Finalize(context.Background(), 5, OutcomeApprove, "owner-1", "")
	var validationErr *entity.ValidationError
	require.ErrorAs(t, err, &validationErr)
}
