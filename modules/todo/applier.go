package todo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	domain "github.com/MossTheFox/coursework-jtodo-server/domain/todo"
)

// Applier applies a validated, ordered batch of actions against the entity
// stores. Every kind is idempotent: re-applying an already-present effect is
// a no-op, so a client may safely retry a whole batch after a dropped
// response.
type Applier struct {
	collections CollectionStore
	items       ItemStore
	validator   *Validator
	nowFunc     func() time.Time
}

// NewApplier creates a new Applier. Creation timestamps come from the
// injected clock, defaulting to time.Now.
func NewApplier(collections CollectionStore, items ItemStore, validator *Validator) *Applier {
	return &Applier{
		collections: collections,
		items:       items,
		validator:   validator,
		nowFunc:     time.Now,
	}
}

// BatchResult summarizes one batch application.
type BatchResult struct {
	Applied int
	Skipped int
}

// ApplyBatch validates, then applies actions strictly in submission order.
// A structural validation failure rejects the whole batch before any
// mutation. A store failure aborts the remaining actions but leaves earlier
// effects applied; there is no transaction spanning the batch, retry
// convergence relies on idempotent no-ops instead.
func (a *Applier) ApplyBatch(_ context.Context, owner string, actions []domain.Action) (BatchResult, error) {
	var res BatchResult
	if err := a.validator.CheckBatch(actions); err != nil {
		return res, err
	}
	for i, action := range actions {
		applied, err := a.apply(owner, action)
		if err != nil {
			return res, fmt.Errorf("action %d (%s): %w", i, action.Kind, err)
		}
		if applied {
			res.Applied++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}

// apply dispatches one action. The boolean reports whether state changed;
// no-ops (already applied, absent target, unknown kind) return false.
func (a *Applier) apply(owner string, action domain.Action) (bool, error) {
	switch action.Kind {
	case domain.KindCreateCollection:
		return a.createCollection(owner, action.Payload)
	case domain.KindDeleteCollection:
		return a.deleteCollection(owner, action.Payload)
	case domain.KindCreateItem:
		return a.createItem(owner, action.Payload)
	case domain.KindUpdateItem:
		return a.updateItem(owner, action.Payload)
	case domain.KindDeleteItem:
		return a.deleteItem(owner, action.Payload)
	default:
		log.Printf("[todo] Skipping unknown action kind %q", action.Kind)
		return false, nil
	}
}

func (a *Applier) createCollection(owner string, payload map[string]any) (bool, error) {
	id := stringField(payload, "uuid")
	if id == "" {
		log.Printf("[todo] createCollection dropped: empty uuid")
		return false, nil
	}
	inserted, err := a.collections.InsertIfAbsent(&domain.Collection{
		UUID:        id,
		Name:        stringFieldDefault(payload, "name", "untitled"),
		Description: stringField(payload, "description"),
		CreatedAt:   a.nowFunc(),
		Owner:       owner,
	})
	if err != nil {
		return false, err
	}
	if !inserted {
		// Already present: a retried batch converging, not an error.
		log.Printf("[todo] createCollection %s already applied", id)
	}
	return inserted, nil
}

func (a *Applier) deleteCollection(owner string, payload map[string]any) (bool, error) {
	id := stringField(payload, "uuid")
	if id == "" {
		log.Printf("[todo] deleteCollection dropped: empty uuid")
		return false, nil
	}
	existing, err := a.collections.FindByUUID(id)
	if errors.Is(err, ErrNotFound) {
		// Nothing to delete; still sweep items so a retry after a crash
		// mid-cascade converges.
		if _, err := a.items.DeleteByCollection(id); err != nil {
			return false, err
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if existing.Owner != owner {
		log.Printf("[todo] deleteCollection %s denied: not owned by %s", id, owner)
		return false, nil
	}
	if _, err := a.collections.DeleteOwned(id, owner); err != nil {
		return false, err
	}
	// Cascade: independent deletes, a crash here can orphan items until the
	// batch is retried.
	if _, err := a.items.DeleteByCollection(id); err != nil {
		return false, err
	}
	return true, nil
}

func (a *Applier) createItem(owner string, payload map[string]any) (bool, error) {
	id := stringField(payload, "uuid")
	collectionUUID := stringField(payload, "inCollection")
	if id == "" || collectionUUID == "" {
		log.Printf("[todo] createItem dropped: empty uuid or inCollection")
		return false, nil
	}
	parent, err := a.collections.FindByUUID(collectionUUID)
	if errors.Is(err, ErrNotFound) {
		// The referenced collection does not exist (yet). Drop the item and
		// keep going: a bad reference must never crash the rest of the batch.
		log.Printf("[todo] createItem %s dropped: collection %s does not exist", id, collectionUUID)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if parent.Owner != owner {
		log.Printf("[todo] createItem %s denied: collection %s not owned by %s", id, collectionUUID, owner)
		return false, nil
	}
	now := a.nowFunc()
	inserted, err := a.items.InsertIfAbsent(&domain.Item{
		UUID:         id,
		InCollection: collectionUUID,
		Name:         stringFieldDefault(payload, "name", "untitled"),
		Description:  stringField(payload, "description"),
		CreatedAt:    now,
		UpdatedAt:    now,
		DeadLine:     timeField(payload, "deadLine"),
		Checked:      false,
	})
	if err != nil {
		return false, err
	}
	if !inserted {
		log.Printf("[todo] createItem %s already applied", id)
	}
	return inserted, nil
}

func (a *Applier) updateItem(owner string, payload map[string]any) (bool, error) {
	id := stringField(payload, "uuid")
	if id == "" {
		return false, nil
	}
	existing, err := a.items.FindByUUID(id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	owned, err := a.ownsItem(owner, existing)
	if err != nil {
		return false, err
	}
	if !owned {
		log.Printf("[todo] updateItem %s denied: not owned by %s", id, owner)
		return false, nil
	}
	fields := updatableFields(payload)
	if len(fields) == 0 {
		return false, nil
	}
	return a.items.UpdateFields(id, fields)
}

func (a *Applier) deleteItem(owner string, payload map[string]any) (bool, error) {
	id := stringField(payload, "uuid")
	if id == "" {
		return false, nil
	}
	existing, err := a.items.FindByUUID(id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	owned, err := a.ownsItem(owner, existing)
	if err != nil {
		return false, err
	}
	if !owned {
		log.Printf("[todo] deleteItem %s denied: not owned by %s", id, owner)
		return false, nil
	}
	return a.items.DeleteByUUID(id)
}

// ownsItem reports whether the item's collection belongs to the given user.
// An orphaned item (collection already gone) is treated as not owned.
func (a *Applier) ownsItem(owner string, it *domain.Item) (bool, error) {
	parent, err := a.collections.FindByUUID(it.InCollection)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return parent.Owner == owner, nil
}

// updatableFields filters an updateItem payload down to the columns a client
// may touch. The uuid locates the row and is never merged.
func updatableFields(payload map[string]any) map[string]any {
	fields := make(map[string]any)
	if v, ok := payload["name"].(string); ok && v != "" {
		fields["name"] = v
	}
	if v, ok := payload["description"].(string); ok {
		fields["description"] = v
	}
	if v, ok := payload["checked"].(bool); ok {
		fields["checked"] = v
	}
	if v := timeField(payload, "deadLine"); v != nil {
		fields["dead_line"] = *v
	}
	return fields
}

func stringField(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}

func stringFieldDefault(payload map[string]any, key, fallback string) string {
	if v, ok := payload[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func timeField(payload map[string]any, key string) *time.Time {
	raw, ok := payload[key].(string)
	if !ok || raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}
