// Package activity keeps a bounded in-memory log of account and sync events,
// queryable through the service container.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/MossTheFox/coursework-jtodo-server/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// Entry is one recorded event.
type Entry struct {
	Owner  string    `json:"owner"`
	Kind   string    `json:"kind"`
	Detail string    `json:"detail"`
	At     time.Time `json:"at"`
}

const maxEntries = 256

// ActivityModule subscribes to domain events and records them.
type ActivityModule struct {
	mu      sync.RWMutex
	entries []Entry
}

var _ mono.Module = (*ActivityModule)(nil)
var _ mono.ServiceProviderModule = (*ActivityModule)(nil)
var _ mono.EventConsumerModule = (*ActivityModule)(nil)

// NewModule creates a new ActivityModule.
func NewModule() *ActivityModule {
	return &ActivityModule{
		entries: make([]Entry, 0),
	}
}

// Name returns the module name.
func (m *ActivityModule) Name() string {
	return "activity"
}

// Start starts the module.
func (m *ActivityModule) Start(_ context.Context) error {
	log.Println("[activity] Module started - listening for account and sync events")
	return nil
}

// Stop stops the module.
func (m *ActivityModule) Stop(_ context.Context) error {
	log.Println("[activity] Module stopped")
	return nil
}

// RegisterEventConsumers subscribes to the events this module records.
func (m *ActivityModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.AccountRegisteredV1, m.handleAccountRegistered, m); err != nil {
		return fmt.Errorf("failed to register AccountRegistered consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.SyncAppliedV1, m.handleSyncApplied, m); err != nil {
		return fmt.Errorf("failed to register SyncApplied consumer: %w", err)
	}

	log.Printf("[activity] Registered event consumers: AccountRegistered, SyncApplied")
	return nil
}

// RegisterServices registers request-reply services in the service container.
func (m *ActivityModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "recent-activity", json.Unmarshal, json.Marshal, m.handleRecent,
	); err != nil {
		return fmt.Errorf("failed to register recent-activity service: %w", err)
	}

	log.Printf("[activity] Registered services: recent-activity")
	return nil
}

func (m *ActivityModule) handleAccountRegistered(_ context.Context, event events.AccountRegisteredEvent, _ *mono.Msg) error {
	m.record(Entry{
		Owner:  event.QQUnionID,
		Kind:   "account_registered",
		Detail: fmt.Sprintf("account %q registered", event.Username),
		At:     event.RegisteredAt,
	})
	return nil
}

func (m *ActivityModule) handleSyncApplied(_ context.Context, event events.SyncAppliedEvent, _ *mono.Msg) error {
	m.record(Entry{
		Owner:  event.Owner,
		Kind:   "sync_applied",
		Detail: fmt.Sprintf("%d applied, %d skipped", event.Applied, event.Skipped),
		At:     event.AppliedAt,
	})
	return nil
}

// RecentRequest asks for the latest entries, newest last. Owner filters when
// non-empty.
type RecentRequest struct {
	Owner string `json:"owner"`
	Limit int    `json:"limit"`
}

// RecentResponse carries the matching entries.
type RecentResponse struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
}

// handleRecent handles the recent-activity service request.
func (m *ActivityModule) handleRecent(_ context.Context, req RecentRequest, _ *mono.Msg) (RecentResponse, error) {
	limit := req.Limit
	if limit <= 0 || limit > maxEntries {
		limit = 20
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]Entry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(matched) < limit; i-- {
		if req.Owner != "" && m.entries[i].Owner != req.Owner {
			continue
		}
		matched = append(matched, m.entries[i])
	}
	// Restore chronological order.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}

	return RecentResponse{Entries: matched, Total: len(matched)}, nil
}

func (m *ActivityModule) record(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, e)
	if len(m.entries) > maxEntries {
		m.entries = m.entries[len(m.entries)-maxEntries:]
	}
}
