// Package events defines the typed cross-module event contracts.
package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// AccountRegisteredEvent is emitted when a QQ login creates a new account.
type AccountRegisteredEvent struct {
	QQUnionID    string    `json:"qq_union_id"`
	Username     string    `json:"username"`
	RegisteredAt time.Time `json:"registered_at"`
}

// AccountRegisteredV1 is the typed event definition for account creation.
// Subject: events.auth.v1.account-registered
var AccountRegisteredV1 = helper.EventDefinition[AccountRegisteredEvent](
	"auth", "AccountRegistered", "v1",
)

// SyncAppliedEvent is emitted after an action batch finishes applying.
type SyncAppliedEvent struct {
	Owner     string    `json:"owner"`
	Applied   int       `json:"applied"`
	Skipped   int       `json:"skipped"`
	AppliedAt time.Time `json:"applied_at"`
}

// SyncAppliedV1 is the typed event definition for a completed sync batch.
// Subject: events.todo.v1.sync-applied
var SyncAppliedV1 = helper.EventDefinition[SyncAppliedEvent](
	"todo", "SyncApplied", "v1",
)
