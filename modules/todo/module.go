package todo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	domain "github.com/MossTheFox/coursework-jtodo-server/domain/todo"
	"github.com/MossTheFox/coursework-jtodo-server/events"
	"github.com/MossTheFox/coursework-jtodo-server/modules/cache"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds the todo module configuration.
type Config struct {
	DBPath string
}

// TodoModule owns the collection/item store and the sync engine.
type TodoModule struct {
	config   Config
	db       *gorm.DB
	service  *Service
	eventBus mono.EventBus
	cache    *cache.Cache
}

// Compile-time interface checks.
var _ mono.Module = (*TodoModule)(nil)
var _ mono.ServiceProviderModule = (*TodoModule)(nil)
var _ mono.HealthCheckableModule = (*TodoModule)(nil)
var _ mono.EventEmitterModule = (*TodoModule)(nil)
var _ mono.EventConsumerModule = (*TodoModule)(nil)

// NewModule creates a new TodoModule.
func NewModule(config Config) *TodoModule {
	return &TodoModule{config: config}
}

// Name returns the module name.
func (m *TodoModule) Name() string {
	return "todo"
}

// SetCache attaches the optional snapshot cache.
func (m *TodoModule) SetCache(c *cache.Cache) {
	m.cache = c
	if m.service != nil {
		m.service.SetCache(c)
	}
}

// SetEventBus receives the application event bus.
func (m *TodoModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module publishes.
func (m *TodoModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.SyncAppliedV1.ToBase(),
	}
}

// Start opens the user-data database and builds the sync engine.
func (m *TodoModule) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.config.DBPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(&domain.Collection{}, &domain.Item{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	validator, err := NewValidator()
	if err != nil {
		return fmt.Errorf("failed to build action validator: %w", err)
	}

	collections := NewCollectionRepository(db)
	items := NewItemRepository(db)
	applier := NewApplier(collections, items, validator)
	m.service = NewService(collections, items, applier)
	if m.cache != nil {
		m.service.SetCache(m.cache)
	}

	log.Printf("[todo] Module started (database: %s)", m.config.DBPath)
	return nil
}

// Stop shuts down the module.
func (m *TodoModule) Stop(_ context.Context) error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[todo] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *TodoModule) Health(_ context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}
	if err := sqlDB.Ping(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.config.DBPath,
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *TodoModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "sync-actions", json.Unmarshal, json.Marshal, m.handleSync,
	); err != nil {
		return fmt.Errorf("failed to register sync-actions service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "get-snapshot", json.Unmarshal, json.Marshal, m.handleSnapshot,
	); err != nil {
		return fmt.Errorf("failed to register get-snapshot service: %w", err)
	}

	log.Printf("[todo] Registered services: sync-actions, get-snapshot")
	return nil
}

// RegisterEventConsumers subscribes to account lifecycle events.
func (m *TodoModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.AccountRegisteredV1, m.handleAccountRegistered, m,
	); err != nil {
		return fmt.Errorf("failed to register AccountRegistered consumer: %w", err)
	}

	log.Printf("[todo] Registered event consumers: AccountRegistered")
	return nil
}

// handleSync handles the sync-actions service request: one aggregate outcome
// per batch, never a per-action breakdown.
func (m *TodoModule) handleSync(ctx context.Context, req SyncRequest, _ *mono.Msg) (SyncResponse, error) {
	if req.Owner == "" {
		return SyncResponse{}, fmt.Errorf("owner is required")
	}

	res, err := m.service.Sync(ctx, req.Owner, req.Actions)
	if err != nil {
		return SyncResponse{}, err
	}

	if m.eventBus != nil {
		event := events.SyncAppliedEvent{
			Owner:     req.Owner,
			Applied:   res.Applied,
			Skipped:   res.Skipped,
			AppliedAt: time.Now(),
		}
		if err := events.SyncAppliedV1.Publish(m.eventBus, event, nil); err != nil {
			// Event publishing is best-effort; log but don't fail the batch.
			log.Printf("[todo] Warning: failed to publish SyncApplied event for %s: %v", req.Owner, err)
		}
	}

	return SyncResponse{Applied: res.Applied, Skipped: res.Skipped}, nil
}

// handleSnapshot handles the get-snapshot service request.
func (m *TodoModule) handleSnapshot(ctx context.Context, req SnapshotRequest, _ *mono.Msg) (SnapshotResponse, error) {
	if req.Owner == "" {
		return SnapshotResponse{}, fmt.Errorf("owner is required")
	}

	snap, err := m.service.Snapshot(ctx, req.Owner)
	if err != nil {
		return SnapshotResponse{}, err
	}

	return SnapshotResponse{
		Collections: snap.Collections,
		Items:       snap.Items,
	}, nil
}

// handleAccountRegistered seeds the default collection for a new account.
func (m *TodoModule) handleAccountRegistered(_ context.Context, event events.AccountRegisteredEvent, _ *mono.Msg) error {
	if err := m.service.SeedDefaultCollection(event.QQUnionID); err != nil {
		return err
	}
	log.Printf("[todo] Seeded default collection for new account %s", event.QQUnionID)
	return nil
}
