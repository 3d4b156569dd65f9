package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ActivityPort defines the interface other modules use to read activity.
type ActivityPort interface {
	Recent(ctx context.Context, owner string, limit int) ([]Entry, error)
}

// ActivityAdapter implements ActivityPort using the service container.
type ActivityAdapter struct {
	container mono.ServiceContainer
}

// NewActivityAdapter creates a new ActivityAdapter.
func NewActivityAdapter(container mono.ServiceContainer) *ActivityAdapter {
	return &ActivityAdapter{container: container}
}

// Recent returns the latest recorded entries, oldest first.
func (a *ActivityAdapter) Recent(ctx context.Context, owner string, limit int) ([]Entry, error) {
	req := RecentRequest{Owner: owner, Limit: limit}
	var resp RecentResponse

	if err := helper.CallRequestReplyService(
		ctx, a.container, "recent-activity", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("recent-activity request failed: %w", err)
	}
	return resp.Entries, nil
}
