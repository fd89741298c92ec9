// Package http provides the HTTP server adapter for the application layer.
// This is a thin adapter layer that translates HTTP requests to application service calls.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dpatel76/synapse-workflow/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config            ServerConfig
	httpServer        *http.Server
	router            *gin.Engine
	phaseService      service.PhaseService
	versionService    service.VersionService
	ledgerService     service.LedgerService
	assignmentService service.AssignmentService
	auditService      service.AuditService
	logger            Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(
	config ServerConfig,
	phaseService service.PhaseService,
	versionService service.VersionService,
	ledgerService service.LedgerService,
	assignmentService service.AssignmentService,
	auditService service.AuditService,
	logger Logger,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config:            config,
		router:            router,
		phaseService:      phaseService,
		versionService:    versionService,
		ledgerService:     ledgerService,
		assignmentService: assignmentService,
		auditService:      auditService,
		logger:            logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	handlers := NewHandlers(s.phaseService, s.versionService, s.ledgerService, s.assignmentService, s.auditService, s.logger)

	// Health check
	s.router.GET("/health", handlers.HealthCheck)

	api := s.router.Group("/api")
	{
		// Phases
		api.POST("/phases/seed", handlers.SeedPhases)
		api.GET("/phases", handlers.ListPhases)
		api.GET("/phases/:id", handlers.GetPhase)
		api.POST("/phases/:id/start", handlers.StartPhase)
		api.POST("/phases/:id/complete", handlers.CompletePhase)
		api.POST("/phases/:id/reset", handlers.ResetPhase)
		api.GET("/phases/:id/versions", handlers.ListVersions)
		api.POST("/phases/:id/versions", handlers.CreateVersion)
		api.GET("/phases/:id/assignments", handlers.ListAssignments)

		// Versions
		api.GET("/versions/:id", handlers.GetVersion)
		api.POST("/versions/:id/revisions", handlers.CreateRevision)
		api.POST("/versions/:id/submit", handlers.SubmitForApproval)
		api.POST("/versions/:id/finalize", handlers.FinalizeVersion)

		// Items
		api.GET("/versions/:id/items", handlers.ListItems)
		api.POST("/versions/:id/items", handlers.AddItems)
		api.PUT("/versions/:id/items/:key/tester-decision", handlers.UpsertTesterDecision)
		api.PUT("/versions/:id/items/:key/owner-decision", handlers.RecordOwnerDecision)
		api.POST("/versions/:id/items/tester-decisions", handlers.BulkUpsertTesterDecisions)

		// Assignments
		api.GET("/assignments/overdue", handlers.ListOverdueAssignments)
		api.GET("/assignments/:id", handlers.GetAssignment)
		api.POST("/assignments/:id/acknowledge", handlers.AcknowledgeAssignment)
		api.POST("/assignments/:id/start", handlers.StartAssignment)
		api.POST("/assignments/:id/complete", handlers.CompleteAssignment)
		api.POST("/assignments/:id/cancel", handlers.CancelAssignment)

		// Audit
		api.GET("/audit/:entity_type/:entity_id", handlers.GetAuditTrail)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
