package auth

import "time"

// LoginRequest represents an OAuth code exchange request.
type LoginRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirect_uri"`
}

// LoginResponse represents a completed login with a session token.
type LoginResponse struct {
	Token        string    `json:"token"`
	ExpiresIn    int64     `json:"expires_in"`
	Username     string    `json:"username"`
	AvatarURL    string    `json:"avatar_url"`
	RegisteredAt time.Time `json:"registered_at"`
}

// ValidateTokenRequest represents a token validation request.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse represents a token validation response.
type ValidateTokenResponse struct {
	Valid     bool   `json:"valid"`
	QQUnionID string `json:"qq_union_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// GetAccountRequest represents a get account request.
type GetAccountRequest struct {
	QQUnionID string `json:"qq_union_id"`
}

// GetAccountResponse represents a get account response.
type GetAccountResponse struct {
	QQUnionID    string    `json:"qq_union_id"`
	Username     string    `json:"username"`
	AvatarURL    string    `json:"avatar_url"`
	RegisteredAt time.Time `json:"registered_at"`
}
