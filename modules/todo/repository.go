package todo

import (
	"errors"
	"fmt"

	domain "github.com/MossTheFox/coursework-jtodo-server/domain/todo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a collection or item does not exist.
var ErrNotFound = errors.New("entity not found")

// CollectionStore is the durable keyed storage the sync core requires for
// collections. Presence and absence are ordinary return values, never
// error-driven control flow, so that every action kind stays idempotent.
type CollectionStore interface {
	InsertIfAbsent(c *domain.Collection) (bool, error)
	FindByUUID(uuid string) (*domain.Collection, error)
	DeleteOwned(uuid, owner string) (bool, error)
	ListByOwner(owner string) ([]domain.Collection, error)
}

// ItemStore is the storage contract for items.
type ItemStore interface {
	InsertIfAbsent(it *domain.Item) (bool, error)
	FindByUUID(uuid string) (*domain.Item, error)
	DeleteByUUID(uuid string) (bool, error)
	DeleteByCollection(collectionUUID string) (int64, error)
	UpdateFields(uuid string, fields map[string]any) (bool, error)
	ListByCollections(collectionUUIDs []string) ([]domain.Item, error)
}

// CollectionRepository implements CollectionStore using GORM.
type CollectionRepository struct {
	db *gorm.DB
}

// NewCollectionRepository creates a new CollectionRepository.
func NewCollectionRepository(db *gorm.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// InsertIfAbsent creates the collection unless one with the same UUID already
// exists. Returns false when the row was already present.
func (r *CollectionRepository) InsertIfAbsent(c *domain.Collection) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(c)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert collection: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FindByUUID retrieves a collection by its client-assigned UUID.
func (r *CollectionRepository) FindByUUID(uuid string) (*domain.Collection, error) {
	var c domain.Collection
	if err := r.db.First(&c, "uuid = ?", uuid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find collection: %w", err)
	}
	return &c, nil
}

// DeleteOwned removes a collection only when it belongs to the given owner.
// Returns false when nothing matched.
func (r *CollectionRepository) DeleteOwned(uuid, owner string) (bool, error) {
	result := r.db.Delete(&domain.Collection{}, "uuid = ? AND owner = ?", uuid, owner)
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete collection: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListByOwner retrieves all collections of one owner, oldest first.
func (r *CollectionRepository) ListByOwner(owner string) ([]domain.Collection, error) {
	var out []domain.Collection
	if err := r.db.Order("created_at ASC").Find(&out, "owner = ?", owner).Error; err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return out, nil
}

// ItemRepository implements ItemStore using GORM.
type ItemRepository struct {
	db *gorm.DB
}

// NewItemRepository creates a new ItemRepository.
func NewItemRepository(db *gorm.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// InsertIfAbsent creates the item unless one with the same UUID already
// exists. Returns false when the row was already present.
func (r *ItemRepository) InsertIfAbsent(it *domain.Item) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(it)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert item: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FindByUUID retrieves an item by its client-assigned UUID.
func (r *ItemRepository) FindByUUID(uuid string) (*domain.Item, error) {
	var it domain.Item
	if err := r.db.First(&it, "uuid = ?", uuid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find item: %w", err)
	}
	return &it, nil
}

// DeleteByUUID removes one item. Returns false when nothing matched.
func (r *ItemRepository) DeleteByUUID(uuid string) (bool, error) {
	result := r.db.Delete(&domain.Item{}, "uuid = ?", uuid)
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete item: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DeleteByCollection removes every item referencing the given collection.
// Used for cascade delete; each row is an independent delete, there is no
// transaction spanning the cascade.
func (r *ItemRepository) DeleteByCollection(collectionUUID string) (int64, error) {
	result := r.db.Delete(&domain.Item{}, "in_collection = ?", collectionUUID)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete items of collection: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// UpdateFields merges the given column values into one item. Returns false
// when the item does not exist.
func (r *ItemRepository) UpdateFields(uuid string, fields map[string]any) (bool, error) {
	result := r.db.Model(&domain.Item{}).Where("uuid = ?", uuid).Updates(fields)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update item: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListByCollections retrieves all items of the given collections, sorted
// ascending by creation time.
func (r *ItemRepository) ListByCollections(collectionUUIDs []string) ([]domain.Item, error) {
	if len(collectionUUIDs) == 0 {
		return []domain.Item{}, nil
	}
	var out []domain.Item
	if err := r.db.Where("in_collection IN ?", collectionUUIDs).
		Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return out, nil
}
