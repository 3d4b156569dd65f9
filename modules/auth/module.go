package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	domain "github.com/MossTheFox/coursework-jtodo-server/domain/account"
	"github.com/MossTheFox/coursework-jtodo-server/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds the auth module configuration.
type Config struct {
	DBPath  string
	QQ      QQConfig
	Session SessionConfig
}

// AuthModule provides identity resolution: QQ OAuth exchange, session
// tokens, and account storage.
type AuthModule struct {
	config   Config
	db       *gorm.DB
	service  *AuthService
	eventBus mono.EventBus
}

// Compile-time interface checks.
var _ mono.Module = (*AuthModule)(nil)
var _ mono.ServiceProviderModule = (*AuthModule)(nil)
var _ mono.HealthCheckableModule = (*AuthModule)(nil)
var _ mono.EventEmitterModule = (*AuthModule)(nil)

// NewModule creates a new AuthModule.
func NewModule(config Config) *AuthModule {
	return &AuthModule{config: config}
}

// Name returns the module name.
func (m *AuthModule) Name() string {
	return "auth"
}

// SetEventBus receives the application event bus.
func (m *AuthModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module publishes.
func (m *AuthModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.AccountRegisteredV1.ToBase(),
	}
}

// Start opens the account database and builds the auth service.
func (m *AuthModule) Start(_ context.Context) error {
	db, err := gorm.Open(sqlite.Open(m.config.DBPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := db.AutoMigrate(&domain.Account{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	repo := NewAccountRepository(db)
	qq := NewQQClient(m.config.QQ)
	sessions := NewSessionManager(m.config.Session)
	m.service = NewAuthService(repo, qq, sessions)

	log.Printf("[auth] Module started (database: %s)", m.config.DBPath)
	return nil
}

// Stop shuts down the module.
func (m *AuthModule) Stop(_ context.Context) error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
	log.Println("[auth] Module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *AuthModule) Health(_ context.Context) mono.HealthStatus {
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
func (m *AuthModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "login", json.Unmarshal, json.Marshal, m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register login service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "validate-token", json.Unmarshal, json.Marshal, m.handleValidateToken,
	); err != nil {
		return fmt.Errorf("failed to register validate-token service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "get-account", json.Unmarshal, json.Marshal, m.handleGetAccount,
	); err != nil {
		return fmt.Errorf("failed to register get-account service: %w", err)
	}

	log.Printf("[auth] Registered services: login, validate-token, get-account")
	return nil
}

// handleLogin handles the OAuth code exchange.
func (m *AuthModule) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (LoginResponse, error) {
	result, err := m.service.LoginWithCode(ctx, req.Code, req.RedirectURI)
	if err != nil {
		return LoginResponse{}, err
	}

	if result.NewAccount && m.eventBus != nil {
		event := events.AccountRegisteredEvent{
			QQUnionID:    result.Account.QQUnionID,
			Username:     result.Account.Username,
			RegisteredAt: result.Account.RegisteredAt,
		}
		if err := events.AccountRegisteredV1.Publish(m.eventBus, event, nil); err != nil {
			log.Printf("[auth] Warning: failed to publish AccountRegistered event for %s: %v", result.Account.QQUnionID, err)
		}
	}

	return LoginResponse{
		Token:        result.Token,
		ExpiresIn:    result.ExpiresIn,
		Username:     result.Account.Username,
		AvatarURL:    result.Account.AvatarURL,
		RegisteredAt: result.Account.RegisteredAt,
	}, nil
}

// handleValidateToken handles token validation. Validation failures are a
// response, not an error.
func (m *AuthModule) handleValidateToken(ctx context.Context, req ValidateTokenRequest, _ *mono.Msg) (ValidateTokenResponse, error) {
	claims, err := m.service.ValidateToken(ctx, req.Token)
	if err != nil {
		errMsg := "invalid token"
		if errors.Is(err, ErrExpiredToken) {
			errMsg = "token expired"
		}
		return ValidateTokenResponse{Valid: false, Error: errMsg}, nil
	}

	return ValidateTokenResponse{
		Valid:     true,
		QQUnionID: claims.QQUnionID,
	}, nil
}

// handleGetAccount handles account lookup requests.
func (m *AuthModule) handleGetAccount(ctx context.Context, req GetAccountRequest, _ *mono.Msg) (GetAccountResponse, error) {
	acct, err := m.service.GetAccount(ctx, req.QQUnionID)
	if err != nil {
		return GetAccountResponse{}, err
	}

	return GetAccountResponse{
		QQUnionID:    acct.QQUnionID,
		Username:     acct.Username,
		AvatarURL:    acct.AvatarURL,
		RegisteredAt: acct.RegisteredAt,
	}, nil
}
