package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
)

// SessionConfig holds session token signing configuration.
type SessionConfig struct {
	SecretKey     string
	TokenDuration time.Duration
	Issuer        string
}

// DefaultSessionConfig returns a default session configuration.
// In production, the secret key must come from the environment.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SecretKey:     "change-me-in-production",
		TokenDuration: 30 * 24 * time.Hour,
		Issuer:        "jtodo-server",
	}
}

// SessionClaims represents the custom claims for session tokens.
type SessionClaims struct {
	QQUnionID string `json:"qqUnionID"`
	jwt.RegisteredClaims
}

// SessionManager issues and validates bearer session tokens.
type SessionManager struct {
	config SessionConfig
}

// NewSessionManager creates a new SessionManager with the given configuration.
func NewSessionManager(config SessionConfig) *SessionManager {
	return &SessionManager{config: config}
}

// Generate signs a new session token for the given unionID.
func (m *SessionManager) Generate(unionID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		QQUnionID: unionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   unionID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.SecretKey))
}

// Validate parses the token and returns the claims if valid.
func (m *SessionManager) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.SecretKey), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.QQUnionID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// TokenDuration returns the session token duration in seconds.
func (m *SessionManager) TokenDuration() int64 {
	return int64(m.config.TokenDuration.Seconds())
}
