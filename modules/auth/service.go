package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	domain "github.com/MossTheFox/coursework-jtodo-server/domain/account"
)

// AuthService handles the OAuth exchange and session lifecycle.
type AuthService struct {
	repo     *AccountRepository
	qq       *QQClient
	sessions *SessionManager
	nowFunc  func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(repo *AccountRepository, qq *QQClient, sessions *SessionManager) *AuthService {
	return &AuthService{
		repo:     repo,
		qq:       qq,
		sessions: sessions,
		nowFunc:  time.Now,
	}
}

// LoginResult is the outcome of a completed OAuth login.
type LoginResult struct {
	Account    *domain.Account
	Token      string
	ExpiresIn  int64
	NewAccount bool
}

// LoginWithCode completes the QQ OAuth flow for an authorization code:
// exchange, identity lookup, account upsert, session issue. A brand-new
// unionID creates the account on the spot.
func (s *AuthService) LoginWithCode(ctx context.Context, code, redirectURI string) (*LoginResult, error) {
	token, err := s.qq.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	identity, err := s.qq.FetchOpenID(ctx, token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("identity lookup failed: %w", err)
	}

	// Profile fetch is best-effort: a login must not fail because the
	// profile endpoint hiccups.
	profile, err := s.qq.FetchUserInfo(ctx, token.AccessToken, identity.OpenID)
	if err != nil {
		log.Printf("[auth] Failed to fetch user info for %s: %v", identity.UnionID, err)
		profile = &UserInfo{Nickname: "User"}
	}

	acct, err := s.repo.FindByUnionID(identity.UnionID)
	newAccount := false
	switch {
	case errors.Is(err, ErrAccountNotFound):
		acct = &domain.Account{
			QQUnionID:    identity.UnionID,
			Username:     profile.Nickname,
			AvatarURL:    profile.FigureURL,
			RegisteredAt: s.nowFunc(),
		}
		if acct.Username == "" {
			acct.Username = "User"
		}
		if err := s.repo.Create(acct); err != nil {
			return nil, err
		}
		newAccount = true
	case err != nil:
		return nil, err
	default:
		// Refresh the mutable profile fields on every login.
		if profile.Nickname != "" {
			acct.Username = profile.Nickname
		}
		if profile.FigureURL != "" {
			acct.AvatarURL = profile.FigureURL
		}
		if err := s.repo.Save(acct); err != nil {
			return nil, err
		}
	}

	session, err := s.sessions.Generate(acct.QQUnionID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &LoginResult{
		Account:    acct,
		Token:      session,
		ExpiresIn:  s.sessions.TokenDuration(),
		NewAccount: newAccount,
	}, nil
}

// ValidateToken validates a session token and confirms the account still
// exists before yielding claims.
func (s *AuthService) ValidateToken(_ context.Context, tokenString string) (*domain.Claims, error) {
	claims, err := s.sessions.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.FindByUnionID(claims.QQUnionID); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return &domain.Claims{QQUnionID: claims.QQUnionID}, nil
}

// GetAccount retrieves an account by unionID.
func (s *AuthService) GetAccount(_ context.Context, unionID string) (*domain.Account, error) {
	return s.repo.FindByUnionID(unionID)
}
