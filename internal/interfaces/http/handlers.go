package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dpatel76/synapse-workflow/internal/application/service"
	"github.com/dpatel76/synapse-workflow/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	phaseService      service.PhaseService
	versionService    service.VersionService
	ledgerService     service.LedgerService
	assignmentService service.AssignmentService
	auditService      service.AuditService
	logger            Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	phaseService service.PhaseService,
	versionService service.VersionService,
	ledgerService service.LedgerService,
	assignmentService service.AssignmentService,
	auditService service.AuditService,
	logger Logger,
) *Handlers {
	return &Handlers{
		phaseService:      phaseService,
		versionService:    versionService,
		ledgerService:     ledgerService,
		assignmentService: assignmentService,
		auditService:      auditService,
		logger:            logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// respondError maps typed domain failures to HTTP status codes so clients
// can distinguish retryable conflicts from precondition failures.
func (h *Handlers) respondError(c *gin.Context, err error) {
	var conflictErr *entity.ConflictError
	var staleErr *entity.StaleWriteError
	var immutableErr *entity.ImmutableStateError
	var validationErr *entity.ValidationError
	var notFoundErr *entity.NotFoundError

	switch {
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error(), Code: "CONFLICT"})
	case errors.As(err, &staleErr):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error(), Code: "STALE_WRITE"})
	case errors.As(err, &immutableErr):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error(), Code: "IMMUTABLE_STATE"})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: err.Error(), Code: "VALIDATION_FAILED"})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error(), Code: "NOT_FOUND"})
	default:
		h.logger.Error("Request failed", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid " + name})
		return 0, false
	}
	return id, true
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// SeedPhasesRequest is the body for POST /api/phases/seed
type SeedPhasesRequest struct {
	CycleID  int64  `json:"cycle_id" binding:"required"`
	ReportID int64  `json:"report_id" binding:"required"`
	Actor    string `json:"actor" binding:"required"`
}

// SeedPhases handles POST /api/phases/seed
func (h *Handlers) SeedPhases(c *gin.Context) {
	var req SeedPhasesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	phases, err := h.phaseService.SeedPhases(c.Request.Context(), req.CycleID, req.ReportID, req.Actor)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: phases})
}

// ListPhases handles GET /api/phases?cycle_id=&report_id=
func (h *Handlers) ListPhases(c *gin.Context) {
	cycleID, err := strconv.ParseInt(c.Query("cycle_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid cycle_id"})
		return
	}
	reportID, err := strconv.ParseInt(c.Query("report_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid report_id"})
		return
	}

	phases, err := h.phaseService.ListPhases(c.Request.Context(), cycleID, reportID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: phases})
}

// GetPhase handles GET /api/phases/:id
func (h *Handlers) GetPhase(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	phase, err := h.phaseService.GetPhase(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: phase})
}

// ActorRequest carries the acting user for state-changing operations.
type ActorRequest struct {
	Actor string `json:"actor" binding:"required"`
}

// StartPhase handles POST /api/phases/:id/start
func (h *Handlers) StartPhase(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if err := h.phaseService.StartPhase(c.Request.Context(), id, req.Actor); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// CompletePhaseRequest is the body for POST /api/phases/:id/complete
type CompletePhaseRequest struct {
	Actor string `json:"actor" binding:"required"`
	Force bool   `json:"force"`
}

// CompletePhase handles POST /api/phases/:id/complete
func (h *Handlers) CompletePhase(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req CompletePhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if err := h.phaseService.CompletePhase(c.Request.Context(), id, req.Actor, req.Force); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// ResetPhase handles POST /api/phases/:id/reset
func (h *Handlers) ResetPhase(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if err := h.phaseService.ResetPhase(c.Request.Context(), id, req.Actor); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// CreateVersion handles POST /api/phases/:id/versions
func (h *Handlers) CreateVersion(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	version, err := h.versionService.CreateVersion(c.Request.Context(), id, req.Actor)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: version})
}

// ListVersions handles GET /api/phases/:id/versions
func (h *Handlers) ListVersions(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	versions, err := h.versionService.ListVersions(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: versions})
}

// GetVersion handles GET /api/versions/:id
func (h *Handlers) GetVersion(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	version, err := h.versionService.GetVersion(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: version})
}

// CreateRevisionRequest is the body for POST /api/versions/:id/revisions
type CreateRevisionRequest struct {
	ChangedItemKeys []string `json:"changed_item_keys"`
	NewItemKeys     []string `json:"new_item_keys"`
	Actor           string   `json:"actor" binding:"required"`
}

// CreateRevision handles POST /api/versions/:id/revisions
func (h *Handlers) CreateRevision(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req CreateRevisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	newItems := make([]entity.NewItemInput, 0, len(req.NewItemKeys))
	for _, key := range req.NewItemKeys {
		newItems = append(newItems, entity.NewItemInput{BusinessKey: key})
	}

	version, err := h.versionService.CreateRevision(c.Request.Context(), id, req.ChangedItemKeys, newItems, req.Actor)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: version})
}

// SubmitForApproval handles POST /api/versions/:id/submit
func (h *Handlers) SubmitForApproval(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if err := h.versionService.SubmitForApproval(c.Request.Context(), id, req.Actor); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// FinalizeRequest is the body for POST /api/versions/:id/finalize
type FinalizeRequest struct {
	Outcome string `json:"outcome" binding:"required"`
	Actor   string `json:"actor" binding:"required"`
	Reason  string `json:"reason"`
}

// FinalizeVersion handles POST /api/versions/:id/finalize
func (h *Handlers) FinalizeVersion(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	err := h.versionService.Finalize(c.Request.Context(), id, service.FinalizeOutcome(req.Outcome), req.Actor, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// AddItemsRequest is the body for POST /api/versions/:id/items
type AddItemsRequest struct {
	BusinessKeys []string `json:"business_keys" binding:"required"`
	Actor        string   `json:"actor" binding:"required"`
}

// AddItems handles POST /api/versions/:id/items
func (h *Handlers) AddItems(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req AddItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	inputs := make([]entity.NewItemInput, 0, len(req.BusinessKeys))
	for _, key := range req.BusinessKeys {
		inputs = append(inputs, entity.NewItemInput{BusinessKey: key})
	}

	items, err := h.ledgerService.AddItems(c.Request.Context(), id, inputs, req.Actor)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: items})
}

// ListItems handles GET /api/versions/:id/items with optional filters
// undecided=true, awaiting_owner=true, or decision=<DECISION>.
func (h *Handlers) ListItems(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var items []*entity.Item
	var err error
	switch {
	case c.Query("undecided") == "true":
		items, err = h.ledgerService.ListUndecided(c.Request.Context(), id)
	case c.Query("awaiting_owner") == "true":
		items, err = h.ledgerService.ListAwaitingOwner(c.Request.Context(), id)
	case c.Query("decision") != "":
		items, err = h.ledgerService.ListByDecision(c.Request.Context(), id, entity.Decision(c.Query("decision")))
	default:
		items, err = h.ledgerService.ListItems(c.Request.Context(), id)
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: items})
}

// DecisionRequest is the body for decision writes.
type DecisionRequest struct {
	Decision  string `json:"decision" binding:"required"`
	Rationale string `json:"rationale"`
	Actor     string `json:"actor" binding:"required"`
}

// UpsertTesterDecision handles PUT /api/versions/:id/items/:key/tester-decision
func (h *Handlers) UpsertTesterDecision(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	err := h.ledgerService.UpsertTesterDecision(c.Request.Context(), id, c.Param("key"),
		entity.Decision(req.Decision), req.Rationale, req.Actor)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// RecordOwnerDecision handles PUT /api/versions/:id/items/:key/owner-decision
func (h *Handlers) RecordOwnerDecision(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	err := h.versionService.RecordOwnerDecision(c.Request.Context(), id, c.Param("key"),
		entity.Decision(req.Decision), req.Rationale, req.Actor)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// BulkDecisionsRequest is the body for POST /api/versions/:id/items/tester-decisions
type BulkDecisionsRequest struct {
	Decisions []service.DecisionInput `json:"decisions" binding:"required"`
	Actor     string                  `json:"actor" binding:"required"`
}

// BulkUpsertTesterDecisions handles POST /api/versions/:id/items/tester-decisions
func (h *Handlers) BulkUpsertTesterDecisions(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req BulkDecisionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if err := h.ledgerService.BulkUpsertTesterDecisions(c.Request.Context(), id, req.Decisions, req.Actor); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// GetAssignment handles GET /api/assignments/:id
func (h *Handlers) GetAssignment(c *gin.Context) {
	assignment, err := h.assignmentService.GetAssignment(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: assignment})
}

// ListAssignments handles GET /api/phases/:id/assignments
func (h *Handlers) ListAssignments(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	assignments, err := h.assignmentService.ListByPhase(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: assignments})
}

// ListOverdueAssignments handles GET /api/assignments/overdue
func (h *Handlers) ListOverdueAssignments(c *gin.Context) {
	assignments, err := h.assignmentService.ListOverdue(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: assignments})
}

// AcknowledgeAssignment handles POST /api/assignments/:id/acknowledge
func (h *Handlers) AcknowledgeAssignment(c *gin.Context) {
	var req ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if err := h.assignmentService.Acknowledge(c.Request.Context(), c.Param("id"), req.Actor); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// StartAssignment handles POST /api/assignments/:id/start
func (h *Handlers) StartAssignment(c *gin.Context) {
	var req ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if err := h.assignmentService.StartWork(c.Request.Context(), c.Param("id"), req.Actor); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// CompleteAssignment handles POST /api/assignments/:id/complete
func (h *Handlers) CompleteAssignment(c *gin.Context) {
	var req ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if err := h.assignmentService.Complete(c.Request.Context(), c.Param("id"), req.Actor); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// CancelAssignmentRequest is the body for POST /api/assignments/:id/cancel
type CancelAssignmentRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor" binding:"required"`
}

// CancelAssignment handles POST /api/assignments/:id/cancel
func (h *Handlers) CancelAssignment(c *gin.Context) {
	var req CancelAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if err := h.assignmentService.Cancel(c.Request.Context(), c.Param("id"), req.Reason, req.Actor); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true})
}

// GetAuditTrail handles GET /api/audit/:entity_type/:entity_id
func (h *Handlers) GetAuditTrail(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := h.auditService.Trail(c.Param("entity_type"), c.Param("entity_id"), limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}
