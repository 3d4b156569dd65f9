package todo

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/MossTheFox/coursework-jtodo-server/domain/todo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(&domain.Collection{}, &domain.Item{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func newTestApplier(t *testing.T) (*Applier, *CollectionRepository, *ItemRepository) {
	t.Helper()
	db := setupTestDB(t)
	collections := NewCollectionRepository(db)
	items := NewItemRepository(db)
	return NewApplier(collections, items, newTestValidator(t)), collections, items
}

func createAction(uuid, name string) domain.Action {
	return domain.Action{
		Kind:    domain.KindCreateCollection,
		Payload: map[string]any{"uuid": uuid, "name": name},
	}
}

func createItemAction(uuid, inCollection, name string) domain.Action {
	return domain.Action{
		Kind:    domain.KindCreateItem,
		Payload: map[string]any{"uuid": uuid, "inCollection": inCollection, "name": name},
	}
}

func TestApplier_CreateAndRetry(t *testing.T) {
	applier, collections, _ := newTestApplier(t)
	ctx := context.Background()

	batch := []domain.Action{
		createAction("c1", "Groceries"),
		createItemAction("i1", "c1", "Milk"),
	}

	res, err := applier.ApplyBatch(ctx, "user-1", batch)
	if err != nil {
		t.Fatalf("ApplyBatch() error = %v", err)
	}
	if res.Applied != 2 || res.Skipped != 0 {
		t.Fatalf("first pass = %+v, want 2 applied, 0 skipped", res)
	}

	// Retrying the identical batch converges to all no-ops.
	res, err = applier.ApplyBatch(ctx, "user-1", batch)
	if err != nil {
		t.Fatalf("ApplyBatch() retry error = %v", err)
	}
	if res.Applied != 0 || res.Skipped != 2 {
		t.Fatalf("retry = %+v, want 0 applied, 2 skipped", res)
	}

	// The first write wins: a duplicate uuid with different content is ignored.
	res, err = applier.ApplyBatch(ctx, "user-1", []domain.Action{createAction("c1", "Renamed")})
	if err != nil {
		t.Fatalf("ApplyBatch() duplicate error = %v", err)
	}
	if res.Applied != 0 {
		t.Fatalf("duplicate create applied = %d, want 0", res.Applied)
	}
	c, err := collections.FindByUUID("c1")
	if err != nil {
		t.Fatalf("FindByUUID() error = %v", err)
	}
	if c.Name != "Groceries" {
		t.Errorf("collection name = %q, want %q", c.Name, "Groceries")
	}
}

func TestApplier_OrderWithinBatch(t *testing.T) {
	applier, _, items := newTestApplier(t)
	ctx := context.Background()

	// Item before its collection: the item is dropped but the collection
	// still lands, and a follow-up retry of the item succeeds.
	res, err := applier.ApplyBatch(ctx, "user-1", []domain.Action{
		createItemAction("i1", "c1", "Milk"),
		createAction("c1", "Groceries"),
	})
	if err != nil {
		t.Fatalf("ApplyBatch() error = %v", err)
	}
	if res.Applied != 1 || res.Skipped != 1 {
		t.Fatalf("result = %+v, want 1 applied, 1 skipped", res)
	}
	if _, err := items.FindByUUID("i1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("item should have been dropped, got err = %v", err)
	}

	res, err = applier.ApplyBatch(ctx, "user-1", []domain.Action{
		createItemAction("i1", "c1", "Milk"),
	})
	if err != nil {
		t.Fatalf("ApplyBatch() retry error = %v", err)
	}
	if res.Applied != 1 {
		t.Fatalf("retry applied = %d, want 1", res.Applied)
	}
}

func TestApplier_BatchRejection(t *testing.T) {
	applier, collections, _ := newTestApplier(t)
	ctx := context.Background()

	// A single malformed action poisons the whole batch; even the valid
	// leading action must not be applied.
	_, err := applier.ApplyBatch(ctx, "user-1", []domain.Action{
		createAction("c1", "Groceries"),
		{Kind: domain.KindCreateItem, Payload: map[string]any{"uuid": "i1"}},
	})
	if !errors.Is(err, ErrBatchRejected) {
		t.Fatalf("ApplyBatch() error = %v, want ErrBatchRejected", err)
	}
	if _, err := collections.FindByUUID("c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("collection should not exist after rejection, got err = %v", err)
	}
}

func TestApplier_DeleteCollectionCascade(t *testing.T) {
	applier, collections, items := newTestApplier(t)
	ctx := context.Background()

	seed := []domain.Action{
		createAction("c1", "Groceries"),
		createAction("c2", "Work"),
		createItemAction("i1", "c1", "Milk"),
		createItemAction("i2", "c1", "Eggs"),
		createItemAction("i3", "c2", "Report"),
	}
	if _, err := applier.ApplyBatch(ctx, "user-1", seed); err != nil {
		t.Fatalf("seed error = %v", err)
	}

	res, err := applier.ApplyBatch(ctx, "user-1", []domain.Action{
		{Kind: domain.KindDeleteCollection, Payload: map[string]any{"uuid": "c1"}},
	})
	if err != nil {
		t.Fatalf("ApplyBatch() error = %v", err)
	}
	if res.Applied != 1 {
		t.Fatalf("applied = %d, want 1", res.Applied)
	}

	if _, err := collections.FindByUUID("c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("collection c1 should be gone, got err = %v", err)
	}
	for _, id := range []string{"i1", "i2"} {
		if _, err := items.FindByUUID(id); !errors.Is(err, ErrNotFound) {
			t.Errorf("item %s should be cascaded, got err = %v", id, err)
		}
	}
	if _, err := items.FindByUUID("i3"); err != nil {
		t.Errorf("item i3 in another collection should survive, got err = %v", err)
	}

	// Deleting again is a no-op, not an error.
	res, err = applier.ApplyBatch(ctx, "user-1", []domain.Action{
		{Kind: domain.KindDeleteCollection, Payload: map[string]any{"uuid": "c1"}},
	})
	if err != nil {
		t.Fatalf("repeat delete error = %v", err)
	}
	if res.Applied != 0 || res.Skipped != 1 {
		t.Fatalf("repeat delete = %+v, want 0 applied, 1 skipped", res)
	}
}

func TestApplier_OwnershipScoping(t *testing.T) {
	applier, collections, items := newTestApplier(t)
	ctx := context.Background()

	if _, err := applier.ApplyBatch(ctx, "alice", []domain.Action{
		createAction("c1", "Groceries"),
		createItemAction("i1", "c1", "Milk"),
	}); err != nil {
		t.Fatalf("seed error = %v", err)
	}

	tests := []struct {
		name   string
		action domain.Action
	}{
		{
			name:   "deleteCollection of foreign collection",
			action: domain.Action{Kind: domain.KindDeleteCollection, Payload: map[string]any{"uuid": "c1"}},
		},
		{
			name:   "createItem into foreign collection",
			action: createItemAction("i9", "c1", "Sneaky"),
		},
		{
			name:   "updateItem of foreign item",
			action: domain.Action{Kind: domain.KindUpdateItem, Payload: map[string]any{"uuid": "i1", "checked": true}},
		},
		{
			name:   "deleteItem of foreign item",
			action: domain.Action{Kind: domain.KindDeleteItem, Payload: map[string]any{"uuid": "i1"}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := applier.ApplyBatch(ctx, "mallory", []domain.Action{tc.action})
			if err != nil {
				t.Fatalf("ApplyBatch() error = %v", err)
			}
			if res.Applied != 0 {
				t.Fatalf("foreign action applied = %d, want 0", res.Applied)
			}
		})
	}

	// Alice's data is untouched.
	if _, err := collections.FindByUUID("c1"); err != nil {
		t.Fatalf("collection c1 should survive, got err = %v", err)
	}
	it, err := items.FindByUUID("i1")
	if err != nil {
		t.Fatalf("item i1 should survive, got err = %v", err)
	}
	if it.Checked {
		t.Error("item i1 should not have been checked by a foreign user")
	}
	if _, err := items.FindByUUID("i9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("item i9 should not exist, got err = %v", err)
	}
}

func TestApplier_UpdateItem(t *testing.T) {
	applier, _, items := newTestApplier(t)
	ctx := context.Background()

	deadline := time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)
	if _, err := applier.ApplyBatch(ctx, "user-1", []domain.Action{
		createAction("c1", "Groceries"),
		createItemAction("i1", "c1", "Milk"),
	}); err != nil {
		t.Fatalf("seed error = %v", err)
	}

	res, err := applier.ApplyBatch(ctx, "user-1", []domain.Action{
		{Kind: domain.KindUpdateItem, Payload: map[string]any{
			"uuid":        "i1",
			"name":        "Oat milk",
			"description": "2 liters",
			"checked":     true,
			"deadLine":    deadline.Format(time.RFC3339),
		}},
	})
	if err != nil {
		t.Fatalf("ApplyBatch() error = %v", err)
	}
	if res.Applied != 1 {
		t.Fatalf("applied = %d, want 1", res.Applied)
	}

	it, err := items.FindByUUID("i1")
	if err != nil {
		t.Fatalf("FindByUUID() error = %v", err)
	}
	if it.Name != "Oat milk" {
		t.Errorf("name = %q, want %q", it.Name, "Oat milk")
	}
	if it.Description != "2 liters" {
		t.Errorf("description = %q, want %q", it.Description, "2 liters")
	}
	if !it.Checked {
		t.Error("checked = false, want true")
	}
	if it.DeadLine == nil || !it.DeadLine.Equal(deadline) {
		t.Errorf("deadLine = %v, want %v", it.DeadLine, deadline)
	}

	t.Run("update of absent item is a no-op", func(t *testing.T) {
		res, err := applier.ApplyBatch(ctx, "user-1", []domain.Action{
			{Kind: domain.KindUpdateItem, Payload: map[string]any{"uuid": "ghost", "checked": true}},
		})
		if err != nil {
			t.Fatalf("ApplyBatch() error = %v", err)
		}
		if res.Applied != 0 || res.Skipped != 1 {
			t.Fatalf("result = %+v, want 0 applied, 1 skipped", res)
		}
	})

	t.Run("empty name is not merged", func(t *testing.T) {
		if _, err := applier.ApplyBatch(ctx, "user-1", []domain.Action{
			{Kind: domain.KindUpdateItem, Payload: map[string]any{"uuid": "i1", "name": ""}},
		}); err != nil {
			t.Fatalf("ApplyBatch() error = %v", err)
		}
		it, err := items.FindByUUID("i1")
		if err != nil {
			t.Fatalf("FindByUUID() error = %v", err)
		}
		if it.Name != "Oat milk" {
			t.Errorf("name = %q, want unchanged %q", it.Name, "Oat milk")
		}
	})
}

func TestApplier_UnknownKindSkipped(t *testing.T) {
	applier, collections, _ := newTestApplier(t)
	ctx := context.Background()

	res, err := applier.ApplyBatch(ctx, "user-1", []domain.Action{
		createAction("c1", "Groceries"),
		{Kind: "archiveCollection", Payload: map[string]any{"uuid": "c1"}},
		createAction("c2", "Work"),
	})
	if err != nil {
		t.Fatalf("ApplyBatch() error = %v", err)
	}
	if res.Applied != 2 || res.Skipped != 1 {
		t.Fatalf("result = %+v, want 2 applied, 1 skipped", res)
	}
	if _, err := collections.FindByUUID("c2"); err != nil {
		t.Errorf("action after the unknown kind should still apply, got err = %v", err)
	}
}

func TestApplier_EmptyUUIDDropped(t *testing.T) {
	applier, _, _ := newTestApplier(t)
	ctx := context.Background()

	res, err := applier.ApplyBatch(ctx, "user-1", []domain.Action{
		{Kind: domain.KindCreateCollection, Payload: map[string]any{"uuid": "", "name": "No ID"}},
	})
	if err != nil {
		t.Fatalf("ApplyBatch() error = %v", err)
	}
	if res.Applied != 0 || res.Skipped != 1 {
		t.Fatalf("result = %+v, want 0 applied, 1 skipped", res)
	}
}

// failingItemStore wraps an ItemStore and fails InsertIfAbsent after a set
// number of calls.
type failingItemStore struct {
	ItemStore
	calls     int
	failAfter int
}

func (f *failingItemStore) InsertIfAbsent(it *domain.Item) (bool, error) {
	f.calls++
	if f.calls > f.failAfter {
		return false, errors.New("disk full")
	}
	return f.ItemStore.InsertIfAbsent(it)
}

func TestApplier_PartialFailureLeavesEarlierEffects(t *testing.T) {
	db := setupTestDB(t)
	collections := NewCollectionRepository(db)
	items := NewItemRepository(db)
	failing := &failingItemStore{ItemStore: items, failAfter: 1}
	applier := NewApplier(collections, failing, newTestValidator(t))
	ctx := context.Background()

	res, err := applier.ApplyBatch(ctx, "user-1", []domain.Action{
		createAction("c1", "Groceries"),
		createItemAction("i1", "c1", "Milk"),
		createItemAction("i2", "c1", "Eggs"),
		createItemAction("i3", "c1", "Bread"),
	})
	if err == nil {
		t.Fatal("ApplyBatch() expected store failure, got nil")
	}
	if res.Applied != 2 {
		t.Fatalf("applied = %d, want 2 before the failure", res.Applied)
	}

	// Earlier effects are durable.
	if _, err := collections.FindByUUID("c1"); err != nil {
		t.Errorf("collection c1 should exist, got err = %v", err)
	}
	if _, err := items.FindByUUID("i1"); err != nil {
		t.Errorf("item i1 should exist, got err = %v", err)
	}
	// The failing and subsequent actions never landed.
	for _, id := range []string{"i2", "i3"} {
		if _, err := items.FindByUUID(id); !errors.Is(err, ErrNotFound) {
			t.Errorf("item %s should not exist, got err = %v", id, err)
		}
	}

	// Retrying the same batch against a healthy store converges.
	applier = NewApplier(collections, items, newTestValidator(t))
	res, err = applier.ApplyBatch(ctx, "user-1", []domain.Action{
		createAction("c1", "Groceries"),
		createItemAction("i1", "c1", "Milk"),
		createItemAction("i2", "c1", "Eggs"),
		createItemAction("i3", "c1", "Bread"),
	})
	if err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if res.Applied != 2 || res.Skipped != 2 {
		t.Fatalf("retry = %+v, want 2 applied, 2 skipped", res)
	}
}

func TestApplier_InjectedClock(t *testing.T) {
	applier, collections, _ := newTestApplier(t)
	frozen := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	applier.nowFunc = func() time.Time { return frozen }
	ctx := context.Background()

	if _, err := applier.ApplyBatch(ctx, "user-1", []domain.Action{
		createAction("c1", "Groceries"),
	}); err != nil {
		t.Fatalf("ApplyBatch() error = %v", err)
	}

	c, err := collections.FindByUUID("c1")
	if err != nil {
		t.Fatalf("FindByUUID() error = %v", err)
	}
	if !c.CreatedAt.Equal(frozen) {
		t.Errorf("createdAt = %v, want %v", c.CreatedAt, frozen)
	}
}
