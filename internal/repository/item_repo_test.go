package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
	"github.com/dpatel76/synapse-workflow/pkg/database"
)

// newTestDB opens a throwaway SQLite database with the full schema applied.
func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:            filepath.Join(t.TempDir(), "workflow.db"),
		MaxOpenConns:    5,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, zap.NewNop()).RunMigrations("../../migrations"))
	return db
}

// seedDraftVersion inserts a phase and a DRAFT version for it.
func seedDraftVersion(t *testing.T, db *database.DB) *entity.Version {
	t.Helper()
	zlog := zap.NewNop()

	phase := &entity.Phase{
		CycleID:  1,
		ReportID: 1,
		Name:     entity.PhasePlanning,
		Ordinal:  1,
		Status:   entity.PhaseInProgress,
	}
	require.NoError(t, NewPhaseRepository(db.DB, zlog).Create(nil, phase))

	version := &entity.Version{
		PhaseID:   phase.ID,
		Number:    1,
		Status:    entity.VersionDraft,
		CreatedBy: "tester-1",
	}
	require.NoError(t, NewVersionRepository(db.DB, zlog).Create(nil, version))
	return version
}

func TestItemRepository_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	itemRepo := NewItemRepository(db.DB, zap.NewNop())
	version := seedDraftVersion(t, db)

	accept := entity.DecisionAccept
	reject := entity.DecisionReject
	items := []*entity.Item{
		{
			VersionID:       version.ID,
			BusinessKey:     "attr-1",
			TesterDecision:  &accept,
			TesterRationale: "matches source",
			OwnerDecision:   &reject,
			OwnerRationale:  "needs evidence",
			CarriedForward:  true,
			OriginVersionID: &version.ID,
		},
		{VersionID: version.ID, BusinessKey: "attr-2"},
	}
	require.NoError(t, itemRepo.BulkInsert(nil, items))

	got, err := itemRepo.ListByVersion(nil, version.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	decided := got[0]
	assert.Equal(t, "attr-1", decided.BusinessKey)
	require.NotNil(t, decided.TesterDecision)
	assert.Equal(t, entity.DecisionAccept, *decided.TesterDecision)
	assert.Equal(t, "matches source", decided.TesterRationale)
	require.NotNil(t, decided.OwnerDecision)
	assert.Equal(t, entity.DecisionReject, *decided.OwnerDecision)
	assert.Equal(t, "needs evidence", decided.OwnerRationale)
	assert.True(t, decided.CarriedForward)
	require.NotNil(t, decided.OriginVersionID)
	assert.Equal(t, version.ID, *decided.OriginVersionID)
	assert.Equal(t, 1, decided.Revision)

	undecided := got[1]
	assert.Equal(t, "attr-2", undecided.BusinessKey)
	assert.Nil(t, undecided.TesterDecision)
	assert.Nil(t, undecided.OwnerDecision)
	assert.False(t, undecided.CarriedForward)
	assert.Nil(t, undecided.OriginVersionID)
	assert.Equal(t, 1, undecided.Revision)

	byKey, err := itemRepo.GetByBusinessKey(nil, version.ID, "attr-1")
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, decided.ID, byKey.ID)
}

func TestItemRepository_UpdateTesterDecision_RevisionGuard(t *testing.T) {
	db := newTestDB(t)
	itemRepo := NewItemRepository(db.DB, zap.NewNop())
	version := seedDraftVersion(t, db)

	items := []*entity.Item{{VersionID: version.ID, BusinessKey: "attr-1"}}
	require.NoError(t, itemRepo.BulkInsert(nil, items))
	item := items[0]

	ok, err := itemRepo.UpdateTesterDecision(nil, item.ID, item.Revision, entity.DecisionReject, "source mismatch", version.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// The same expected revision again must miss: the first write bumped it.
	ok, err = itemRepo.UpdateTesterDecision(nil, item.ID, item.Revision, entity.DecisionAccept, "", version.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := itemRepo.GetByBusinessKey(nil, version.ID, "attr-1")
	require.NoError(t, err)
	require.NotNil(t, got.TesterDecision)
	assert.Equal(t, entity.DecisionReject, *got.TesterDecision)
	assert.Equal(t, 2, got.Revision)
}
