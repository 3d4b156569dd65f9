package auth

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/MossTheFox/coursework-jtodo-server/domain/account"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuthPort defines the interface other modules use to resolve identities.
type AuthPort interface {
	ValidateToken(ctx context.Context, token string) (*domain.Claims, error)
	GetAccount(ctx context.Context, unionID string) (*domain.Account, error)
}

// AuthAdapter implements AuthPort using the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	return &AuthAdapter{container: container}
}

// ValidateToken validates a session token and returns claims.
func (a *AuthAdapter) ValidateToken(ctx context.Context, token string) (*domain.Claims, error) {
	req := ValidateTokenRequest{Token: token}
	var resp ValidateTokenResponse

	if err := helper.CallRequestReplyService(
		ctx, a.container, "validate-token", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("validate-token request failed: %w", err)
	}

	if !resp.Valid {
		return nil, fmt.Errorf("token validation failed: %s", resp.Error)
	}

	return &domain.Claims{QQUnionID: resp.QQUnionID}, nil
}

// GetAccount retrieves an account by unionID.
func (a *AuthAdapter) GetAccount(ctx context.Context, unionID string) (*domain.Account, error) {
	req := GetAccountRequest{QQUnionID: unionID}
	var resp GetAccountResponse

	if err := helper.CallRequestReplyService(
		ctx, a.container, "get-account", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("get-account request failed: %w", err)
	}

	return &domain.Account{
		QQUnionID:    resp.QQUnionID,
		Username:     resp.Username,
		AvatarURL:    resp.AvatarURL,
		RegisteredAt: resp.RegisteredAt,
	}, nil
}
