package todo

import (
	"context"
	"fmt"
	"log"
	"time"

	domain "github.com/MossTheFox/coursework-jtodo-server/domain/todo"
	"github.com/MossTheFox/coursework-jtodo-server/modules/cache"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Service serves the read side and coordinates cache invalidation around
// sync batches. The cache is optional: with a nil cache every snapshot is
// loaded from storage.
type Service struct {
	collections CollectionStore
	items       ItemStore
	applier     *Applier
	cache       *cache.Cache
	sfGroup     singleflight.Group // prevents snapshot stampede on cache miss
}

// NewService creates a new Service.
func NewService(collections CollectionStore, items ItemStore, applier *Applier) *Service {
	return &Service{
		collections: collections,
		items:       items,
		applier:     applier,
	}
}

// SetCache attaches the snapshot cache.
func (s *Service) SetCache(c *cache.Cache) {
	s.cache = c
}

// CollectionView is the read-side projection of a collection.
type CollectionView struct {
	UUID        string    `json:"uuid"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ItemView is the read-side projection of an item.
type ItemView struct {
	UUID         string     `json:"uuid"`
	InCollection string     `json:"inCollection"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	CreatedAt    time.Time  `json:"createdAt"`
	Checked      bool       `json:"checked"`
	DeadLine     *time.Time `json:"deadLine,omitempty"`
}

// Snapshot is the full current state for one user: all owned collections and
// every item whose collection belongs to the user, items oldest first.
type Snapshot struct {
	Collections []CollectionView `json:"collections"`
	Items       []ItemView       `json:"items"`
}

func snapshotCacheKey(owner string) string {
	return "snapshot:" + owner
}

// Snapshot returns the user's full current state, cache-aside.
func (s *Service) Snapshot(ctx context.Context, owner string) (*Snapshot, error) {
	if s.cache != nil {
		var cached Snapshot
		found, err := s.cache.Get(ctx, snapshotCacheKey(owner), &cached)
		if err != nil {
			log.Printf("[todo] Snapshot cache error for %s: %v", owner, err)
		}
		if found {
			return &cached, nil
		}
	}

	val, err, _ := s.sfGroup.Do(owner, func() (any, error) {
		return s.loadSnapshot(owner)
	})
	if err != nil {
		return nil, err
	}
	snap := val.(*Snapshot)

	if s.cache != nil {
		if err := s.cache.Set(ctx, snapshotCacheKey(owner), snap); err != nil {
			log.Printf("[todo] Failed to cache snapshot for %s: %v", owner, err)
		}
	}
	return snap, nil
}

func (s *Service) loadSnapshot(owner string) (*Snapshot, error) {
	collections, err := s.collections.ListByOwner(owner)
	if err != nil {
		return nil, err
	}

	collectionUUIDs := make([]string, 0, len(collections))
	collectionViews := make([]CollectionView, 0, len(collections))
	for _, c := range collections {
		collectionUUIDs = append(collectionUUIDs, c.UUID)
		collectionViews = append(collectionViews, CollectionView{
			UUID:        c.UUID,
			Name:        c.Name,
			Description: c.Description,
			CreatedAt:   c.CreatedAt,
		})
	}

	items, err := s.items.ListByCollections(collectionUUIDs)
	if err != nil {
		return nil, err
	}
	itemViews := make([]ItemView, 0, len(items))
	for _, it := range items {
		itemViews = append(itemViews, ItemView{
			UUID:         it.UUID,
			InCollection: it.InCollection,
			Name:         it.Name,
			Description:  it.Description,
			CreatedAt:    it.CreatedAt,
			Checked:      it.Checked,
			DeadLine:     it.DeadLine,
		})
	}

	return &Snapshot{Collections: collectionViews, Items: itemViews}, nil
}

// Sync applies one action batch, then invalidates the owner's cached
// snapshot if anything was applied. A partial failure still invalidates:
// earlier effects are durable.
func (s *Service) Sync(ctx context.Context, owner string, actions []domain.Action) (BatchResult, error) {
	res, err := s.applier.ApplyBatch(ctx, owner, actions)
	if err == nil || res.Applied > 0 {
		s.invalidate(ctx, owner)
	}
	return res, err
}

func (s *Service) invalidate(ctx context.Context, owner string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, snapshotCacheKey(owner)); err != nil {
		log.Printf("[todo] Failed to invalidate snapshot cache for %s: %v", owner, err)
	}
}

// SeedDefaultCollection creates the starter list for a freshly registered
// account, mirroring what the client would otherwise create on first sync.
func (s *Service) SeedDefaultCollection(owner string) error {
	_, err := s.collections.InsertIfAbsent(&domain.Collection{
		UUID:        uuid.New().String(),
		Name:        "待办事项",
		Description: "默认列表",
		CreatedAt:   s.applier.nowFunc(),
		Owner:       owner,
	})
	if err != nil {
		return fmt.Errorf("failed to seed default collection: %w", err)
	}
	return nil
}
