package repository

import (
	"context"
	"fmt"

	"github.com/shinyyama/rental-backend/internal/docstore"
	"github.com/shinyyama/rental-backend/internal/model"
)

type ItemRepository interface {
	FindByID(ctx context.Context, id string) (*model.Item, error)
	Name(ctx context.Context, id string) (string, error)
	SetAvailable(ctx context.Context, id string, available bool) error
}

type itemRepository struct {
	store docstore.Store
}

func NewItemRepository(store docstore.Store) ItemRepository {
	return &itemRepository{store: store}
}

func (r *itemRepository) FindByID(ctx context.Context, id string) (*model.Item, error) {
	if r.store == nil {
		return nil, ErrStoreNotReady
	}
	rec, err := r.store.ReadOnce(ctx, model.ItemPath(id))
	if err != nil {
		return nil, err
	}
	item := &model.Item{ID: id}
	item.Name, _ = rec["name"].(string)
	item.OwnerID, _ = rec["ownerId"].(string)
	item.IsAvailable, _ = rec["isAvailable"].(bool)
	return item, nil
}

func (r *itemRepository) Name(ctx context.Context, id string) (string, error) {
	item, err := r.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if item.Name == "" {
		return "", fmt.Errorf("item %s has no name", id)
	}
	return item.Name, nil
}

func (r *itemRepository) SetAvailable(ctx context.Context, id string, available bool) error {
	if r.store == nil {
		return ErrStoreNotReady
	}
	return r.store.Write(ctx, model.ItemPath(id), map[string]any{"isAvailable": available})
}
