package service

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/dpatel76/synapse-workflow/internal/application/dispatcher"
	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
	"github.com/dpatel76/synapse-workflow/internal/domain/event"
)

// Function-field mocks for the repository ports. Unset fields fall back to
// benign defaults so each test only wires the behavior it cares about.

type mockPhaseRepo struct {
	createFunc        func(tx *sql.Tx, phase *entity.Phase) error
	getByIDFunc       func(tx *sql.Tx, id int64) (*entity.Phase, error)
	getByNameFunc     func(tx *sql.Tx, cycleID, reportID int64, name entity.PhaseName) (*entity.Phase, error)
	listByReportFunc  func(tx *sql.Tx, cycleID, reportID int64) ([]*entity.Phase, error)
	markStartedFunc   func(tx *sql.Tx, id int64, by string, at time.Time) error
	markCompletedFunc func(tx *sql.Tx, id int64, by string, at time.Time) error
	resetFunc         func(tx *sql.Tx, id int64) error
}

func (m *mockPhaseRepo) Create(tx *sql.Tx, phase *entity.Phase) error {
	if m.createFunc != nil {
		return m.createFunc(tx, phase)
	}
	phase.ID = 1
	return nil
}

func (m *mockPhaseRepo) GetByID(tx *sql.Tx, id int64) (*entity.Phase, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(tx, id)
	}
	return &entity.Phase{ID: id, Name: entity.PhasePlanning, Ordinal: 1, Status: entity.PhaseInProgress}, nil
}

func (m *mockPhaseRepo) GetByName(tx *sql.Tx, cycleID, reportID int64, name entity.PhaseName) (*entity.Phase, error) {
	if m.getByNameFunc != nil {
		return m.getByNameFunc(tx, cycleID, reportID, name)
	}
	return nil, nil
}

func (m *mockPhaseRepo) ListByReport(tx *sql.Tx, cycleID, reportID int64) ([]*entity.Phase, error) {
	if m.listByReportFunc != nil {
		return m.listByReportFunc(tx, cycleID, reportID)
	}
	return []*entity.Phase{}, nil
}

func (m *mockPhaseRepo) MarkStarted(tx *sql.Tx, id int64, by string, at time.Time) error {
	if m.markStartedFunc != nil {
		return m.markStartedFunc(tx, id, by, at)
	}
	return nil
}

func (m *mockPhaseRepo) MarkCompleted(tx *sql.Tx, id int64, by string, at time.Time) error {
	if m.markCompletedFunc != nil {
		return m.markCompletedFunc(tx, id, by, at)
	}
	return nil
}

func (m *mockPhaseRepo) Reset(tx *sql.Tx, id int64) error {
	if m.resetFunc != nil {
		return m.resetFunc(tx, id)
	}
	return nil
}

type mockVersionRepo struct {
	createFunc         func(tx *sql.Tx, version *entity.Version) error
	getByIDFunc        func(tx *sql.Tx, id int64) (*entity.Version, error)
	getActiveFunc      func(tx *sql.Tx, phaseID int64) (*entity.Version, error)
	getCurrentFunc     func(tx *sql.Tx, phaseID int64) (*entity.Version, error)
	nextNumberFunc     func(tx *sql.Tx, phaseID int64) (int, error)
	listByPhaseFunc    func(tx *sql.Tx, phaseID int64) ([]*entity.Version, error)
	markSubmittedFunc  func(tx *sql.Tx, id int64, by string, at time.Time) error
	markApprovedFunc   func(tx *sql.Tx, id int64, by string, at time.Time) error
	markRejectedFunc   func(tx *sql.Tx, id int64, reason string) error
	markSupersededFunc func(tx *sql.Tx, id int64) error
}

func (m *mockVersionRepo) Create(tx *sql.Tx, version *entity.Version) error {
	if m.createFunc != nil {
		return m.createFunc(tx, version)
	}
	version.ID = 1
	return nil
}

func (m *mockVersionRepo) GetByID(tx *sql.Tx, id int64) (*entity.Version, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(tx, id)
	}
	return &entity.Version{ID: id, PhaseID: 1, Number: 1, Status: entity.VersionDraft}, nil
}

func (m *mockVersionRepo) GetActive(tx *sql.Tx, phaseID int64) (*entity.Version, error) {
	if m.getActiveFunc != nil {
		return m.getActiveFunc(tx, phaseID)
	}
	return nil, nil
}

func (m *mockVersionRepo) GetCurrent(tx *sql.Tx, phaseID int64) (*entity.Version, error) {
	if m.getCurrentFunc != nil {
		return m.getCurrentFunc(tx, phaseID)
	}
	return nil, nil
}

func (m *mockVersionRepo) NextNumber(tx *sql.Tx, phaseID int64) (int, error) {
	if m.nextNumberFunc != nil {
		return m.nextNumberFunc(tx, phaseID)
	}
	return 1, nil
}

func (m *mockVersionRepo) ListByPhase(tx *sql.Tx, phaseID int64) ([]*entity.Version, error) {
	if m.listByPhaseFunc != nil {
		return m.listByPhaseFunc(tx, phaseID)
	}
	return []*entity.Version{}, nil
}

func (m *mockVersionRepo) MarkSubmitted(tx *sql.Tx, id int64, by string, at time.Time) error {
	if m.markSubmittedFunc != nil {
		return m.markSubmittedFunc(tx, id, by, at)
	}
	return nil
}

func (m *mockVersionRepo) MarkApproved(tx *sql.Tx, id int64, by string, at time.Time) error {
	if m.markApprovedFunc != nil {
		return m.markApprovedFunc(tx, id, by, at)
	}
	return nil
}

func (m *mockVersionRepo) MarkRejected(tx *sql.Tx, id int64, reason string) error {
	if m.markRejectedFunc != nil {
		return m.markRejectedFunc(tx, id, reason)
	}
	return nil
}

func (m *mockVersionRepo) MarkSuperseded(tx *sql.Tx, id int64) error {
	if m.markSupersededFunc != nil {
		return m.markSupersededFunc(tx, id)
	}
	return nil
}

type mockItemRepo struct {
	bulkInsertFunc                 func(tx *sql.Tx, items []*entity.Item) error
	getByBusinessKeyFunc           func(tx *sql.Tx, versionID int64, businessKey string) (*entity.Item, error)
	listByVersionFunc              func(tx *sql.Tx, versionID int64) ([]*entity.Item, error)
	listMissingTesterDecisionFunc  func(tx *sql.Tx, versionID int64) ([]*entity.Item, error)
	listMissingOwnerDecisionFunc   func(tx *sql.Tx, versionID int64) ([]*entity.Item, error)
	listByTesterDecisionFunc       func(tx *sql.Tx, versionID int64, decision entity.Decision) ([]*entity.Item, error)
	countMissingTesterDecisionFunc func(tx *sql.Tx, versionID int64) (int, error)
	countMissingOwnerDecisionFunc  func(tx *sql.Tx, versionID int64) (int, error)
	countNonAcceptFunc             func(tx *sql.Tx, versionID int64) (int, error)
	updateTesterDecisionFunc       func(tx *sql.Tx, itemID int64, expectedRevision int, decision entity.Decision, rationale string, originVersionID int64) (bool, error)
	updateOwnerDecisionFunc        func(tx *sql.Tx, itemID int64, expectedRevision int, decision entity.Decision, rationale string) (bool, error)
}

func (m *mockItemRepo) BulkInsert(tx *sql.Tx, items []*entity.Item) error {
	if m.bulkInsertFunc != nil {
		return m.bulkInsertFunc(tx, items)
	}
	for i, item := range items {
		item.ID = int64(i + 1)
		item.Revision = 1
	}
	return nil
}

func (m *mockItemRepo) GetByBusinessKey(tx *sql.Tx, versionID int64, businessKey string) (*entity.Item, error) {
	if m.getByBusinessKeyFunc != nil {
		return m.getByBusinessKeyFunc(tx, versionID, businessKey)
	}
	return &entity.Item{ID: 1, VersionID: versionID, BusinessKey: businessKey, Revision: 1}, nil
}

func (m *mockItemRepo) ListByVersion(tx *sql.Tx, versionID int64) ([]*entity.Item, error) {
	if m.listByVersionFunc != nil {
		return m.listByVersionFunc(tx, versionID)
	}
	return []*entity.Item{}, nil
}

func (m *mockItemRepo) ListMissingTesterDecision(tx *sql.Tx, versionID int64) ([]*entity.Item, error) {
	if m.listMissingTesterDecisionFunc != nil {
		return m.listMissingTesterDecisionFunc(tx, versionID)
	}
	return []*entity.Item{}, nil
}

func (m *mockItemRepo) ListMissingOwnerDecision(tx *sql.Tx, versionID int64) ([]*entity.Item, error) {
	if m.listMissingOwnerDecisionFunc != nil {
		return m.listMissingOwnerDecisionFunc(tx, versionID)
	}
	return []*entity.Item{}, nil
}

func (m *mockItemRepo) ListByTesterDecision(tx *sql.Tx, versionID int64, decision entity.Decision) ([]*entity.Item, error) {
	if m.listByTesterDecisionFunc != nil {
		return m.listByTesterDecisionFunc(tx, versionID, decision)
	}
	return []*entity.Item{}, nil
}

func (m *mockItemRepo) CountMissingTesterDecision(tx *sql.Tx, versionID int64) (int, error) {
	if m.countMissingTesterDecisionFunc != nil {
		return m.countMissingTesterDecisionFunc(tx, versionID)
	}
	return 0, nil
}

func (m *mockItemRepo) CountMissingOwnerDecision(tx *sql.Tx, versionID int64) (int, error) {
	if m.countMissingOwnerDecisionFunc != nil {
		return m.countMissingOwnerDecisionFunc(tx, versionID)
	}
	return 0, nil
}

func (m *mockItemRepo) CountNonAccept(tx *sql.Tx, versionID int64) (int, error) {
	if m.countNonAcceptFunc != nil {
		return m.countNonAcceptFunc(tx, versionID)
	}
	return 0, nil
}

func (m *mockItemRepo) UpdateTesterDecision(tx *sql.Tx, itemID int64, expectedRevision int, decision entity.Decision, rationale string, originVersionID int64) (bool, error) {
	if m.updateTesterDecisionFunc != nil {
		return m.updateTesterDecisionFunc(tx, itemID, expectedRevision, decision, rationale, originVersionID)
	}
	return true, nil
}

func (m *mockItemRepo) UpdateOwnerDecision(tx *sql.Tx, itemID int64, expectedRevision int, decision entity.Decision, rationale string) (bool, error) {
	if m.updateOwnerDecisionFunc != nil {
		return m.updateOwnerDecisionFunc(tx, itemID, expectedRevision, decision, rationale)
	}
	return true, nil
}

type mockAssignmentRepo struct {
	createFunc            func(tx *sql.Tx, assignment *entity.Assignment) error
	getByIDFunc           func(tx *sql.Tx, id string) (*entity.Assignment, error)
	getUnacknowledgedFunc func(tx *sql.Tx, phaseID int64, assignmentType entity.AssignmentType) (*entity.Assignment, error)
	listByPhaseFunc       func(tx *sql.Tx, phaseID int64) ([]*entity.Assignment, error)
	listOverdueFunc       func(tx *sql.Tx, now time.Time) ([]*entity.Assignment, error)
	updateStatusFunc      func(tx *sql.Tx, assignment *entity.Assignment) error
}

func (m *mockAssignmentRepo) Create(tx *sql.Tx, assignment *entity.Assignment) error {
	if m.createFunc != nil {
		return m.createFunc(tx, assignment)
	}
	return nil
}

func (m *mockAssignmentRepo) GetByID(tx *sql.Tx, id string) (*entity.Assignment, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(tx, id)
	}
	return &entity.Assignment{ID: id, Status: entity.AssignmentAssigned}, nil
}

func (m *mockAssignmentRepo) GetUnacknowledged(tx *sql.Tx, phaseID int64, assignmentType entity.AssignmentType) (*entity.Assignment, error) {
	if m.getUnacknowledgedFunc != nil {
		return m.getUnacknowledgedFunc(tx, phaseID, assignmentType)
	}
	return nil, nil
}

func (m *mockAssignmentRepo) ListByPhase(tx *sql.Tx, phaseID int64) ([]*entity.Assignment, error) {
	if m.listByPhaseFunc != nil {
		return m.listByPhaseFunc(tx, phaseID)
	}
	return []*entity.Assignment{}, nil
}

func (m *mockAssignmentRepo) ListOverdue(tx *sql.Tx, now time.Time) ([]*entity.Assignment, error) {
	if m.listOverdueFunc != nil {
		return m.listOverdueFunc(tx, now)
	}
	return []*entity.Assignment{}, nil
}

func (m *mockAssignmentRepo) UpdateStatus(tx *sql.Tx, assignment *entity.Assignment) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(tx, assignment)
	}
	return nil
}

type mockAuditRepo struct {
	mu      sync.Mutex
	entries []*entity.AuditEntry

	createFunc       func(tx *sql.Tx, entry *entity.AuditEntry) error
	listByEntityFunc func(entityType, entityID string, limit, offset int) ([]*entity.AuditEntry, error)
}

func (m *mockAuditRepo) Create(tx *sql.Tx, entry *entity.AuditEntry) error {
	if m.createFunc != nil {
		return m.createFunc(tx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) ListByEntity(entityType, entityID string, limit, offset int) ([]*entity.AuditEntry, error) {
	if m.listByEntityFunc != nil {
		return m.listByEntityFunc(entityType, entityID, limit, offset)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.AuditEntry{}, m.entries...), nil
}

func (m *mockAuditRepo) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	actions := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		actions = append(actions, e.Action)
	}
	return actions
}

type mockOutboxRepo struct {
	mu      sync.Mutex
	created []*entity.NotificationEvent

	createFunc            func(tx *sql.Tx, n *entity.NotificationEvent) error
	listPendingFunc       func(limit int) ([]*entity.NotificationEvent, error)
	markSentFunc          func(id int64, at time.Time) error
	markAttemptFailedFunc func(id int64, errMsg string) error
}

func (m *mockOutboxRepo) Create(tx *sql.Tx, n *entity.NotificationEvent) error {
	if m.createFunc != nil {
		return m.createFunc(tx, n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, n)
	return nil
}

func (m *mockOutboxRepo) ListPending(limit int) ([]*entity.NotificationEvent, error) {
	if m.listPendingFunc != nil {
		return m.listPendingFunc(limit)
	}
	return []*entity.NotificationEvent{}, nil
}

func (m *mockOutboxRepo) MarkSent(id int64, at time.Time) error {
	if m.markSentFunc != nil {
		return m.markSentFunc(id, at)
	}
	return nil
}

func (m *mockOutboxRepo) MarkAttemptFailed(id int64, errMsg string) error {
	if m.markAttemptFailedFunc != nil {
		return m.markAttemptFailedFunc(id, errMsg)
	}
	return nil
}

type mockTxRunner struct {
	withTransactionFunc func(ctx context.Context, fn func(*sql.Tx) error) error
}

func (m *mockTxRunner) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(nil)
}

// mockDispatcher records dispatched events for assertion.
type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo {
	return nil
}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) dispatched() []*event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*event.Event{}, m.events...)
}

func (m *mockDispatcher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]event.Type, 0, len(m.events))
	for _, evt := range m.events {
		types = append(types, evt.Type)
	}
	return types
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}
