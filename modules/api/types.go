package api

import (
	"time"

	domain "github.com/MossTheFox/coursework-jtodo-server/domain/todo"
	"github.com/MossTheFox/coursework-jtodo-server/modules/activity"
	todomod "github.com/MossTheFox/coursework-jtodo-server/modules/todo"
)

// The wire format follows the original client protocol: every response
// carries a code of "ok" or "error".

// LoginRequest is the HTTP request for the OAuth code exchange.
type LoginRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri"`
}

// LoginData is the payload of a successful login.
type LoginData struct {
	Token        string    `json:"token"`
	ExpiresIn    int64     `json:"expiresIn"`
	Username     string    `json:"username"`
	AvatarURL    string    `json:"avatarUrl"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// LoginResponse is the HTTP response for a successful login.
type LoginResponse struct {
	Code string    `json:"code"`
	Data LoginData `json:"data"`
}

// SyncRequest is the HTTP request carrying one action batch.
type SyncRequest struct {
	Actions []domain.Action `json:"actions"`
}

// SnapshotResponse is the HTTP response for the full-state read.
type SnapshotResponse struct {
	Code string                   `json:"code"`
	Data todomod.SnapshotResponse `json:"data"`
}

// ActivityResponse is the HTTP response for recent activity.
type ActivityResponse struct {
	Code string           `json:"code"`
	Data []activity.Entry `json:"data"`
}

// StatusResponse is the HTTP response for plain outcomes: exactly one
// success or one failure per request, never a per-action breakdown.
type StatusResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HealthResponse is the HTTP response for the health check.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
