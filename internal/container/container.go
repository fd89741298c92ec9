// Package container manages application dependencies and lifecycle with
// ordered initialization and reverse-order teardown.
package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dpatel76/synapse-workflow/internal/application/dispatcher"
	"github.com/dpatel76/synapse-workflow/internal/application/port"
	"github.com/dpatel76/synapse-workflow/internal/application/routing"
	"github.com/dpatel76/synapse-workflow/internal/application/service"
	"github.com/dpatel76/synapse-workflow/internal/config"
	"github.com/dpatel76/synapse-workflow/internal/domain/event"
	"github.com/dpatel76/synapse-workflow/internal/notification"
	"github.com/dpatel76/synapse-workflow/internal/repository"
	"github.com/dpatel76/synapse-workflow/pkg/database"
)

// Container manages all application dependencies and lifecycle.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure
	db           *database.DB
	repositories *RepositoryBundle

	// Application
	routingTable *routing.Table
	dispatcher   dispatcher.Dispatcher
	services     *ServiceBundle
	emitter      *notification.Emitter

	// Lifecycle
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Phase      port.PhaseRepository
	Version    port.VersionRepository
	Item       port.ItemRepository
	Assignment port.AssignmentRepository
	Audit      port.AuditRepository
	Outbox     port.OutboxRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Phase      service.PhaseService
	Version    service.VersionService
	Ledger     service.LedgerService
	Assignment service.AssignmentService
	Audit      service.AuditService
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database, migrations, repositories
// 2. Routing table
// 3. Dispatcher and services
// 4. Event subscriptions
// 5. Notification emitter
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	table, err := routing.Build(c.config.Workflow.DefaultSLAHours, routingOverrides(c.config.Workflow.Routing))
	if err != nil {
		return fmt.Errorf("failed to build routing table: %w", err)
	}
	c.routingTable = table
	c.logger.Info("Routing table built")

	c.initServices()
	c.logger.Info("Application services initialized")

	c.subscribeHandlers()
	c.logger.Info("Event handlers registered")

	c.startEmitter()
	c.logger.Info("Notification emitter started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	var errs []error
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, err)
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

func (c *Container) initDatabase() error {
	db, err := database.New(database.Config{
		Path:            c.config.Database.Path,
		MaxOpenConns:    c.config.Database.MaxOpenConns,
		MaxIdleConns:    c.config.Database.MaxIdleConns,
		ConnMaxLifetime: c.config.Database.ConnMaxLifetime,
	}, c.logger)
	if err != nil {
		return err
	}
	c.db = db

	migrator := database.NewMigrator(db, c.logger)
	if err := migrator.RunMigrations(c.config.Database.MigrationsDir); err != nil {
		db.Close()
		return err
	}

	c.repositories = &RepositoryBundle{
		Phase:      repository.NewPhaseRepository(db.DB, c.logger),
		Version:    repository.NewVersionRepository(db.DB, c.logger),
		Item:       repository.NewItemRepository(db.DB, c.logger),
		Assignment: repository.NewAssignmentRepository(db.DB, c.logger),
		Audit:      repository.NewAuditRepository(db.DB, c.logger),
		Outbox:     repository.NewOutboxRepository(db.DB, c.logger),
	}
	return nil
}

func (c *Container) initServices() {
	serviceLogger := &zapLoggerAdapter{logger: c.logger}
	c.dispatcher = dispatcher.NewDispatcher(&zapLoggerAdapter{logger: c.logger})

	audit := service.NewAuditService(c.repositories.Audit, serviceLogger)

	c.services = &ServiceBundle{
		Audit: audit,
		Phase: service.NewPhaseService(
			c.repositories.Phase,
			c.repositories.Version,
			c.db,
			c.dispatcher,
			audit,
			c.config.ParallelPairMap(),
			serviceLogger,
		),
		Version: service.NewVersionService(
			c.repositories.Version,
			c.repositories.Item,
			c.repositories.Phase,
			c.db,
			c.dispatcher,
			audit,
			c.config.UnanimousPhases(),
			serviceLogger,
		),
		Ledger: service.NewLedgerService(
			c.repositories.Item,
			c.repositories.Version,
			c.db,
			audit,
			serviceLogger,
		),
		Assignment: service.NewAssignmentService(
			c.repositories.Assignment,
			c.repositories.Outbox,
			c.db,
			audit,
			c.routingTable,
			serviceLogger,
		),
	}
}

// subscribeHandlers wires transition events to their reactions: routable
// transitions create assignments, version approval completes the phase.
func (c *Container) subscribeHandlers() {
	for _, eventType := range []event.Type{
		event.TypePhaseStarted,
		event.TypeVersionCreated,
		event.TypeVersionRevised,
		event.TypeVersionSubmitted,
		event.TypeVersionRejected,
		event.TypeVersionApproved,
	} {
		c.dispatcher.Subscribe(eventType, "assignment_router", c.services.Assignment.HandleTransition)
	}

	c.dispatcher.Subscribe(event.TypeVersionApproved, "phase_completion", c.services.Phase.HandleVersionApproved)
}

func (c *Container) startEmitter() {
	serviceLogger := &zapLoggerAdapter{logger: c.logger}
	publisher := notification.NewLogPublisher(serviceLogger)
	c.emitter = notification.NewEmitter(
		c.repositories.Outbox,
		publisher,
		c.config.Workflow.NotificationDrainInterval,
		serviceLogger,
	)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.emitter.Run(c.ctx)
	}()
}

// DB returns the transaction manager.
func (c *Container) DB() port.TxRunner {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// RoutingTable returns the assignment routing table.
func (c *Container) RoutingTable() *routing.Table {
	return c.routingTable
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// KVLogger returns the key-value logger adapter used by the adapters.
func (c *Container) KVLogger() *zapLoggerAdapter {
	return &zapLoggerAdapter{logger: c.logger}
}

func routingOverrides(rules []config.RoutingRule) []routing.Override {
	overrides := make([]routing.Override, 0, len(rules))
	for _, r := range rules {
		overrides = append(overrides, routing.Override{
			Phase:          r.Phase,
			Transition:     r.Transition,
			FromRole:       r.FromRole,
			ToRole:         r.ToRole,
			AssignmentType: r.AssignmentType,
			SLAHours:       r.SLAHours,
			Priority:       r.Priority,
		})
	}
	return overrides
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	a.logger.Warn(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
