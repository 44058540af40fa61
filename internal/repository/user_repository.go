package repository

import (
	"context"

	"github.com/shinyyama/rental-backend/internal/docstore"
	"github.com/shinyyama/rental-backend/internal/model"
)

// UserRepository is read-only; profiles are owned elsewhere.
type UserRepository interface {
	DisplayName(ctx context.Context, uid string) (string, error)
}

type userRepository struct {
	store docstore.Store
}

func NewUserRepository(store docstore.Store) UserRepository {
	return &userRepository{store: store}
}

func (r *userRepository) DisplayName(ctx context.Context, uid string) (string, error) {
	if r.store == nil {
		return "", ErrStoreNotReady
	}
	rec, err := r.store.ReadOnce(ctx, model.UserPath(uid))
	if err != nil {
		return "", err
	}
	name, _ := rec["displayName"].(string)
	return name, nil
}
