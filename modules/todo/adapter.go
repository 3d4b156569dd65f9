package todo

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/MossTheFox/coursework-jtodo-server/domain/todo"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// TodoPort defines the interface other modules use to reach the sync engine
// and the read side.
type TodoPort interface {
	Sync(ctx context.Context, owner string, actions []domain.Action) (*SyncResponse, error)
	Snapshot(ctx context.Context, owner string) (*SnapshotResponse, error)
}

// TodoAdapter implements TodoPort using the service container.
type TodoAdapter struct {
	container mono.ServiceContainer
}

// NewTodoAdapter creates a new TodoAdapter.
func NewTodoAdapter(container mono.ServiceContainer) *TodoAdapter {
	return &TodoAdapter{container: container}
}

// Sync submits one action batch for the given owner.
func (a *TodoAdapter) Sync(ctx context.Context, owner string, actions []domain.Action) (*SyncResponse, error) {
	req := SyncRequest{Owner: owner, Actions: actions}
	var resp SyncResponse

	if err := helper.CallRequestReplyService(
		ctx, a.container, "sync-actions", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("sync-actions request failed: %w", err)
	}
	return &resp, nil
}

// Snapshot fetches the owner's full current state.
func (a *TodoAdapter) Snapshot(ctx context.Context, owner string) (*SnapshotResponse, error) {
	req := SnapshotRequest{Owner: owner}
	var resp SnapshotResponse

	if err := helper.CallRequestReplyService(
		ctx, a.container, "get-snapshot", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("get-snapshot request failed: %w", err)
	}
	return &resp, nil
}
